// Package metrics exposes Prometheus collectors for generation and history activity.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "prosocialflow"

// Outcome labels.
const (
	OutcomeSuccess  = "success"
	OutcomeFailure  = "failure"
	OutcomeFallback = "fallback"
)

// Metrics bundles the collectors used across the service.
type Metrics struct {
	GenerationRequests *prometheus.CounterVec
	GenerationDuration *prometheus.HistogramVec
	HistoryWrites      *prometheus.CounterVec
	HashtagOverflow    prometheus.Counter
	ActiveSessions     prometheus.Gauge
}

// New creates collectors and registers them with reg when it is non-nil.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		GenerationRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generation_requests_total",
			Help:      "Generation calls by flow and outcome.",
		}, []string{"flow", "outcome"}),
		GenerationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "generation_duration_seconds",
			Help:      "Latency of generation calls by flow.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40},
		}, []string{"flow"}),
		HistoryWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "history_writes_total",
			Help:      "Topic history record calls by outcome.",
		}, []string{"outcome"}),
		HashtagOverflow: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "hashtag_overflow_total",
			Help:      "Generated posts carrying more than two hashtags.",
		}),
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "workflow_sessions",
			Help:      "Workflow sessions currently held in memory.",
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.GenerationRequests,
			m.GenerationDuration,
			m.HistoryWrites,
			m.HashtagOverflow,
			m.ActiveSessions,
		)
	}
	return m
}

// ObserveGeneration records one generation call.
func (m *Metrics) ObserveGeneration(flow, outcome string, started time.Time) {
	if m == nil {
		return
	}
	m.GenerationRequests.WithLabelValues(flow, outcome).Inc()
	m.GenerationDuration.WithLabelValues(flow).Observe(time.Since(started).Seconds())
}

// ObserveHistoryWrite records one history write.
func (m *Metrics) ObserveHistoryWrite(err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.HistoryWrites.WithLabelValues(OutcomeFailure).Inc()
		return
	}
	m.HistoryWrites.WithLabelValues(OutcomeSuccess).Inc()
}

// ObserveHashtagOverflow counts a post exceeding the hashtag budget.
func (m *Metrics) ObserveHashtagOverflow() {
	if m == nil {
		return
	}
	m.HashtagOverflow.Inc()
}

// SetSessions publishes the current session count.
func (m *Metrics) SetSessions(n int) {
	if m == nil {
		return
	}
	m.ActiveSessions.Set(float64(n))
}
