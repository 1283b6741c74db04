package obs

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Self-instrumentation collectors, registered on the default registry.
var (
	// RequestTotal counts API requests by method, path, and response status.
	RequestTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "meshwatch_api_requests_total",
		Help: "Total API requests.",
	}, []string{"method", "path", "status"})

	// RequestDuration observes API request latency by method and path.
	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "meshwatch_api_request_duration_seconds",
		Help:    "API request duration.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	// WSConnections tracks the current number of live push subscribers.
	WSConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "meshwatch_ws_active_connections",
		Help: "Currently connected WebSocket clients.",
	})

	// Broadcasts counts completed fan-outs by envelope type.
	Broadcasts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "meshwatch_ws_broadcasts_total",
		Help: "Completed broadcast fan-outs by envelope type.",
	}, []string{"type"})

	// SendFailures counts per-connection delivery failures.
	SendFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "meshwatch_ws_send_failures_total",
		Help: "WebSocket deliveries that failed and unregistered the client.",
	})

	// CollectorPolls counts collector loop iterations by outcome.
	CollectorPolls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "meshwatch_collector_polls_total",
		Help: "Collector poll iterations by outcome (ok | error).",
	}, []string{"outcome"})
)

// Handler returns the Prometheus exposition endpoint for the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
