package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors for the relay server.
type Metrics struct {
	// Relay metrics.
	RelayRuns       *prometheus.CounterVec   // labels: endpoint={forecast,analytics}, outcome={ok,missing_parameter,invalid_parameter,external_process_error,output_parse_error,domain_error}
	ProcessDuration *prometheus.HistogramVec // labels: endpoint
	ProcessInFlight prometheus.Gauge
	Cache           *prometheus.CounterVec // labels: result={hit,miss,error}
	Advisories      *prometheus.CounterVec // labels: outcome={published,error}

	// HTTP metrics.
	HTTPRequests *prometheus.CounterVec   // labels: method, route, status
	HTTPDuration *prometheus.HistogramVec // labels: route
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.RelayRuns,
		m.ProcessDuration,
		m.ProcessInFlight,
		m.Cache,
		m.Advisories,
		m.HTTPRequests,
		m.HTTPDuration,
	)
	return m
}

// NewMetricsForTesting creates Metrics that are not registered anywhere, so
// tests can build as many as they like.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		RelayRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "aquacast",
			Name:      "relay_requests_total",
			Help:      "Relay requests by endpoint and outcome.",
		}, []string{"endpoint", "outcome"}),
		ProcessDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "aquacast",
			Name:      "process_duration_seconds",
			Help:      "Wall time of external model processes.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}, []string{"endpoint"}),
		ProcessInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "aquacast",
			Name:      "processes_in_flight",
			Help:      "External model processes currently running.",
		}),
		Cache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "aquacast",
			Name:      "forecast_cache_total",
			Help:      "Forecast cache lookups by result.",
		}, []string{"result"}),
		Advisories: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "aquacast",
			Name:      "advisories_total",
			Help:      "Forecast advisories sent to the MQTT broker by outcome.",
		}, []string{"outcome"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "aquacast",
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "aquacast",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}
}
