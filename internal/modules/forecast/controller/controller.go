package controller

import (
	"context"
	"net/http"

	"aquacast-server/internal/modules/forecast/types"
)

const projectName = "Water Quality Forecast"

type RelayService interface {
	Forecast(ctx context.Context, raw types.ForecastRequest) ([]byte, error)
	Analytics(ctx context.Context) ([]byte, error)
	Runs(ctx context.Context, limit int) ([]types.ForecastRun, error)
	Districts() []string
}

type ForecastController interface {
	RegisterRoutes(mux *http.ServeMux)
}

type forecastControllerImpl struct {
	service RelayService
}

func NewForecastController(service RelayService) ForecastController {
	return &forecastControllerImpl{service: service}
}

func (c *forecastControllerImpl) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /", c.handleDashboard)
	mux.HandleFunc("GET /analytics", c.handleAnalyticsPage)
	mux.HandleFunc("GET /about", c.handleAboutPage)

	mux.HandleFunc("GET /forecast", c.handleForecast)
	mux.HandleFunc("GET /api/analytics", c.handleAnalytics)
	mux.HandleFunc("GET /api/districts", c.handleDistricts)
	mux.HandleFunc("GET /api/forecast/runs", c.handleRuns)
}
