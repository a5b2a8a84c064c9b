package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the process-wide HTTP metrics.
type Metrics struct {
	EndpointLatency *prometheus.HistogramVec
	ResponseStatus  *prometheus.CounterVec
}

// New creates and registers the HTTP metrics on the default registerer.
func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer registers the HTTP metrics on reg. Tests pass a fresh registry.
func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		EndpointLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "expatdesk_http_request_duration_seconds",
			Help:    "Latency of HTTP requests by route pattern",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		ResponseStatus: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "expatdesk_http_responses_total",
			Help: "HTTP responses by route pattern and status code",
		}, []string{"route", "status"}),
	}
}

// ObserveEndpointLatency records request latency. Safe on a nil receiver.
func (m *Metrics) ObserveEndpointLatency(method, route string, seconds float64) {
	if m == nil {
		return
	}
	m.EndpointLatency.WithLabelValues(method, route).Observe(seconds)
}

// IncrementResponseStatus counts a response. Safe on a nil receiver.
func (m *Metrics) IncrementResponseStatus(route, status string) {
	if m == nil {
		return
	}
	m.ResponseStatus.WithLabelValues(route, status).Inc()
}
