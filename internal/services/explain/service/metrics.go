package service

import (
	"github.com/prometheus/client_golang/prometheus"

	"ruleexplain/internal/platform/metrics"
)

// Metrics are the submission collectors
type Metrics struct {
	submissions *prometheus.CounterVec
	attempts    prometheus.Histogram
	duration    *prometheus.HistogramVec
	inFlight    prometheus.Gauge
	transitions *prometheus.CounterVec
}

// NewMetrics registers the submission collectors on reg; a nil reg leaves them unregistered
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metrics.Namespace,
			Subsystem: "explain",
			Name:      "submissions_total",
			Help:      "Finished submissions by outcome.",
		}, []string{"outcome"}),
		attempts: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metrics.Namespace,
			Subsystem: "explain",
			Name:      "poll_attempts",
			Help:      "Read attempts used by submissions that reached polling.",
			Buckets:   prometheus.LinearBuckets(1, 3, 11),
		}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metrics.Namespace,
			Subsystem: "explain",
			Name:      "submission_duration_seconds",
			Help:      "Time from submission to terminal state.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		}, []string{"outcome"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metrics.Namespace,
			Subsystem: "explain",
			Name:      "in_flight",
			Help:      "Submissions not yet terminal.",
		}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metrics.Namespace,
			Subsystem: "explain",
			Name:      "transitions_total",
			Help:      "Status transitions by state.",
		}, []string{"state"}),
	}
	if reg != nil {
		reg.MustRegister(m.submissions, m.attempts, m.duration, m.inFlight, m.transitions)
	}
	return m
}
