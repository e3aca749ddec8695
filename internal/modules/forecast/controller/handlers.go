package controller

import (
	"bytes"
	"errors"
	"log/slog"
	"net/http"

	"aquacast-server/internal/modules/forecast/service"
	"aquacast-server/internal/modules/forecast/views"
	"aquacast-server/internal/utils"
)

func (c *forecastControllerImpl) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	c.renderPage(w, views.PageDashboard, &views.PageData{
		Project:   projectName,
		Title:     "Forecast",
		Active:    "dashboard",
		Districts: c.service.Districts(),
	})
}

func (c *forecastControllerImpl) handleAnalyticsPage(w http.ResponseWriter, r *http.Request) {
	c.renderPage(w, views.PageAnalytics, &views.PageData{
		Project: projectName,
		Title:   "Analytics",
		Active:  "analytics",
	})
}

func (c *forecastControllerImpl) handleAboutPage(w http.ResponseWriter, r *http.Request) {
	c.renderPage(w, views.PageAbout, &views.PageData{
		Project: projectName,
		Title:   "About",
		Active:  "about",
	})
}

func (c *forecastControllerImpl) renderPage(w http.ResponseWriter, page string, data *views.PageData) {
	var buf bytes.Buffer
	if err := views.RenderPage(&buf, page, data); err != nil {
		slog.Error("page render failed", "page", page, "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to render page")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := w.Write(buf.Bytes()); err != nil {
		slog.Error("page: write response failed", "page", page, "error", err)
	}
}

func (c *forecastControllerImpl) handleForecast(w http.ResponseWriter, r *http.Request) {
	body, err := c.service.Forecast(r.Context(), parseForecastQuery(r))
	if err != nil {
		writeForecastError(w, err)
		return
	}
	utils.WriteRawJSON(w, http.StatusOK, body)
}

func writeForecastError(w http.ResponseWriter, err error) {
	var re *service.RelayError
	if !errors.As(err, &re) {
		slog.Error("forecast: unexpected error", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "internal error")
		return
	}

	switch re.Kind {
	case service.KindMissingParameter, service.KindInvalidParameter:
		utils.WriteError(w, re.Status(), re.Details)
	case service.KindDomainError:
		utils.WriteRawJSON(w, re.Status(), re.Payload)
	case service.KindOutputParseError:
		utils.WriteErrorDetails(w, re.Status(), "Error parsing forecast data", re.Details)
	default:
		utils.WriteErrorDetails(w, re.Status(), "Error generating forecast", re.Details)
	}
}

func (c *forecastControllerImpl) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	body, err := c.service.Analytics(r.Context())
	if err != nil {
		utils.WriteJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "Failed to generate analytics",
		})
		return
	}
	utils.WriteRawJSON(w, http.StatusOK, body)
}

func (c *forecastControllerImpl) handleDistricts(w http.ResponseWriter, r *http.Request) {
	utils.WriteJSON(w, http.StatusOK, c.service.Districts())
}

func (c *forecastControllerImpl) handleRuns(w http.ResponseWriter, r *http.Request) {
	limit, err := parseRunsQuery(r)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	runs, err := c.service.Runs(r.Context(), limit)
	if err != nil {
		slog.Error("runs: list failed", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to load runs")
		return
	}
	utils.WriteJSON(w, http.StatusOK, runs)
}
