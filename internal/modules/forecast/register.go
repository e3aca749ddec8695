package forecast

import (
	"net/http"

	"aquacast-server/internal/modules/forecast/controller"
	"aquacast-server/internal/modules/forecast/service"
)

func RegisterFeature(mux *http.ServeMux, svc *service.Service) {
	forecastController := controller.NewForecastController(svc)
	forecastController.RegisterRoutes(mux)
}
