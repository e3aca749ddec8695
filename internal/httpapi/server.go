package httpapi

import (
	"net/http"
	"time"

	"aquacast-server/internal/config"
	"aquacast-server/internal/metrics"
)

const (
	readHeaderTimeout = 10 * time.Second
	idleTimeout       = 2 * time.Minute
	// writeSlack is added on top of the slowest relay so a forecast that
	// finishes just inside its timeout can still be written out.
	writeSlack = 30 * time.Second
)

func NewServer(cfg config.Config, mux *http.ServeMux, m *metrics.Metrics) *http.Server {
	return &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           requestLogger(mux, m),
		ReadHeaderTimeout: readHeaderTimeout,
		WriteTimeout:      writeTimeout(cfg),
		IdleTimeout:       idleTimeout,
	}
}

// writeTimeout is zero (unlimited) when either relay runs without a timeout.
func writeTimeout(cfg config.Config) time.Duration {
	if cfg.ForecastTimeout == 0 || cfg.AnalyticsTimeout == 0 {
		return 0
	}
	return max(cfg.ForecastTimeout, cfg.AnalyticsTimeout) + writeSlack
}
