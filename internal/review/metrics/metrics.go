package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the review module.
// Methods are safe on a nil receiver so tests can omit metrics.
type Metrics struct {
	ReviewsCreated    prometheus.Counter
	ReviewsSubmitted  prometheus.Counter
	StatusTransitions *prometheus.CounterVec
	FlagsRaised       *prometheus.CounterVec
	AmbiguityScore    prometheus.Histogram
	CacheLookups      *prometheus.CounterVec
	UpdateDuration    prometheus.Histogram
}

// New creates the review metrics on the default registerer.
func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer creates the review metrics on reg.
func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ReviewsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "expatdesk_reviews_created_total",
			Help: "Total number of paid reviews opened",
		}),
		ReviewsSubmitted: factory.NewCounter(prometheus.CounterOpts{
			Name: "expatdesk_reviews_submitted_total",
			Help: "Total number of intake forms submitted",
		}),
		StatusTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "expatdesk_review_status_transitions_total",
			Help: "Operator status changes by target status",
		}, []string{"to"}),
		FlagsRaised: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "expatdesk_review_escalation_flags_total",
			Help: "Escalation flags raised at submission",
		}, []string{"flag"}),
		AmbiguityScore: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "expatdesk_review_ambiguity_score",
			Help:    "Ambiguity score of submitted intakes",
			Buckets: []float64{0, 1, 2, 3, 5, 8, 13, 21},
		}),
		CacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "expatdesk_review_cache_lookups_total",
			Help: "Review token cache lookups by result",
		}, []string{"result"}),
		UpdateDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "expatdesk_review_update_duration_seconds",
			Help:    "Duration of update_review_by_token",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}

func (m *Metrics) IncrementCreated() {
	if m == nil {
		return
	}
	m.ReviewsCreated.Inc()
}

// ObserveSubmission records a submission with its assessment.
func (m *Metrics) ObserveSubmission(flags []string, score int) {
	if m == nil {
		return
	}
	m.ReviewsSubmitted.Inc()
	for _, f := range flags {
		m.FlagsRaised.WithLabelValues(f).Inc()
	}
	m.AmbiguityScore.Observe(float64(score))
}

func (m *Metrics) IncrementTransition(to string) {
	if m == nil {
		return
	}
	m.StatusTransitions.WithLabelValues(to).Inc()
}

// IncrementCacheLookup counts a cache lookup; result is hit, miss or error.
func (m *Metrics) IncrementCacheLookup(result string) {
	if m == nil {
		return
	}
	m.CacheLookups.WithLabelValues(result).Inc()
}

// ObserveUpdate records the duration of an update.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveUpdate(start time.Time) {
	if m == nil {
		return
	}
	m.UpdateDuration.Observe(time.Since(start).Seconds())
}
