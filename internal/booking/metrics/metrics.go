package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts projected booking events. Nil-safe.
type Metrics struct {
	EventsProjected *prometheus.CounterVec
}

func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		EventsProjected: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "expatdesk_booking_events_total",
			Help: "Booking webhook events by trigger and outcome",
		}, []string{"event", "outcome"}),
	}
}

// IncrementEvent records one webhook event. outcome is created, updated,
// ignored or failed.
func (m *Metrics) IncrementEvent(event, outcome string) {
	if m == nil {
		return
	}
	m.EventsProjected.WithLabelValues(event, outcome).Inc()
}
