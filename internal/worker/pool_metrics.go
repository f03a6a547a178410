package worker

import "github.com/prometheus/client_golang/prometheus"

const (
	resultSucceeded = "succeeded"
	resultFailed    = "failed"
	resultPanic     = "panic"
	resultRejected  = "rejected"
)

// PoolMetrics tracks detached triage jobs. A nil *PoolMetrics is a no-op.
type PoolMetrics struct {
	Jobs       *prometheus.CounterVec
	QueueDepth prometheus.Gauge
}

// NewPoolMetrics registers the pool collectors with reg.
func NewPoolMetrics(reg prometheus.Registerer) *PoolMetrics {
	m := &PoolMetrics{
		Jobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "triage",
			Subsystem: "worker",
			Name:      "jobs_total",
			Help:      "Detached triage jobs by result.",
		}, []string{"result"}),
		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "triage",
			Subsystem: "worker",
			Name:      "queue_depth",
			Help:      "Triage jobs waiting for a worker.",
		}),
	}
	reg.MustRegister(m.Jobs, m.QueueDepth)
	return m
}

func (m *PoolMetrics) observe(result string) {
	if m == nil {
		return
	}
	m.Jobs.WithLabelValues(result).Inc()
}

func (m *PoolMetrics) enqueued() {
	if m == nil {
		return
	}
	m.QueueDepth.Inc()
}

func (m *PoolMetrics) dequeued() {
	if m == nil {
		return
	}
	m.QueueDepth.Dec()
}
