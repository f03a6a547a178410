package triage

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/spec-kit/ticket-triage/internal/domain"
)

// Metrics holds Prometheus metrics for the triage pipeline.
type Metrics struct {
	RunsTotal         *prometheus.CounterVec
	RunDuration       *prometheus.HistogramVec
	Confidence        prometheus.Histogram
	BackendCallsTotal *prometheus.CounterVec
	BackendDuration   *prometheus.HistogramVec
	RetrievalsTotal   *prometheus.CounterVec
	ArticlesRetrieved prometheus.Histogram
	AuditFailures     *prometheus.CounterVec
}

// NewMetrics registers and returns triage metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "triage_runs_total",
			Help: "Total triage runs by outcome.",
		}, []string{"outcome"}),
		RunDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "triage_run_duration_seconds",
			Help:    "Duration of triage runs in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms .. ~20s
		}, []string{"outcome"}),
		Confidence: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "triage_confidence",
			Help:    "Classification confidence of completed runs.",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11),
		}),
		BackendCallsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "triage_backend_calls_total",
			Help: "Backend calls by operation and result.",
		}, []string{"op", "result"}),
		BackendDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "triage_backend_call_duration_seconds",
			Help:    "Duration of backend calls in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms .. ~10s
		}, []string{"op"}),
		RetrievalsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "triage_retrievals_total",
			Help: "Knowledge base retrievals by strategy that produced the result.",
		}, []string{"strategy"}),
		ArticlesRetrieved: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "triage_articles_retrieved",
			Help:    "Articles returned per retrieval.",
			Buckets: prometheus.LinearBuckets(0, 1, 6),
		}),
		AuditFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "triage_audit_write_failures_total",
			Help: "Audit events that could not be written, by action.",
		}, []string{"action"}),
	}

	reg.MustRegister(
		m.RunsTotal,
		m.RunDuration,
		m.Confidence,
		m.BackendCallsTotal,
		m.BackendDuration,
		m.RetrievalsTotal,
		m.ArticlesRetrieved,
		m.AuditFailures,
	)

	return m
}

// Hooks returns orchestrator hooks that update the metrics.
func (m *Metrics) Hooks() Hooks {
	return Hooks{
		OnBackendCall: func(op string, seconds float64, err error) {
			m.BackendCallsTotal.WithLabelValues(op, ErrorKind(err)).Inc()
			m.BackendDuration.WithLabelValues(op).Observe(seconds)
		},
		OnRetrieve: func(results int, fallback bool) {
			strategy := "primary"
			if fallback {
				strategy = "fallback"
			}
			m.RetrievalsTotal.WithLabelValues(strategy).Inc()
			m.ArticlesRetrieved.Observe(float64(results))
		},
		OnComplete: func(o Outcome) {
			outcome := OutcomeLabel(o)
			m.RunsTotal.WithLabelValues(outcome).Inc()
			m.RunDuration.WithLabelValues(outcome).Observe(o.Duration)
			if o.Err == nil {
				m.Confidence.Observe(o.Confidence)
			}
		},
	}
}

// AuditFailureHook counts failed audit writes; pass it to Recorder.WithFailureHook.
func (m *Metrics) AuditFailureHook() func(domain.AuditAction) {
	return func(action domain.AuditAction) {
		m.AuditFailures.WithLabelValues(string(action)).Inc()
	}
}

// OutcomeLabel is auto_closed, escalated or the error kind of a failed run.
func OutcomeLabel(o Outcome) string {
	switch {
	case o.Err != nil:
		return ErrorKind(o.Err)
	case o.AutoClosed:
		return "auto_closed"
	default:
		return "escalated"
	}
}
