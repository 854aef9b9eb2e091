package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusExporter exports metrics to Prometheus format.
type PrometheusExporter struct {
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
	httpErrors   *prometheus.CounterVec
}

// NewPrometheusExporter creates a new Prometheus exporter.
func NewPrometheusExporter() *PrometheusExporter {
	return &PrometheusExporter{
		httpRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "groupgraph_http_requests_total",
			Help: "Total number of HTTP requests by route",
		}, []string{"route"}),
		httpDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "groupgraph_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds by route",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		httpErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "groupgraph_http_errors_total",
			Help: "Total number of HTTP error responses by route and status",
		}, []string{"route", "status"}),
	}
}

// RecordRequest records an HTTP request for a route.
func (e *PrometheusExporter) RecordRequest(route string) {
	e.httpRequests.WithLabelValues(route).Inc()
}

// RecordDuration records the duration of an HTTP request for a route.
func (e *PrometheusExporter) RecordDuration(route string, d time.Duration) {
	e.httpDuration.WithLabelValues(route).Observe(d.Seconds())
}

// RecordError records an HTTP error response for a route.
func (e *PrometheusExporter) RecordError(route, status string) {
	e.httpErrors.WithLabelValues(route, status).Inc()
}
