// Package metrics exposes prometheus instrumentation for the agent service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles the collectors the runner and loop report into.
type Metrics struct {
	SessionsSubmitted *prometheus.CounterVec
	SessionsCompleted *prometheus.CounterVec
	SubmissionsDenied *prometheus.CounterVec
	FramesCaptured    prometheus.Counter
	LoopIterations    prometheus.Histogram
	SessionRunning    prometheus.Gauge
}

// New registers all collectors on the given registry.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		SessionsSubmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lucid",
			Subsystem: "agent",
			Name:      "sessions_submitted_total",
			Help:      "Accepted task submissions by task kind.",
		}, []string{"kind"}),
		SessionsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lucid",
			Subsystem: "agent",
			Name:      "sessions_completed_total",
			Help:      "Finished sessions by task kind and terminal status.",
		}, []string{"kind", "status"}),
		SubmissionsDenied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lucid",
			Subsystem: "agent",
			Name:      "submissions_denied_total",
			Help:      "Rejected submissions by error category.",
		}, []string{"category"}),
		FramesCaptured: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "lucid",
			Subsystem: "agent",
			Name:      "frames_captured_total",
			Help:      "Audit frames written across all sessions.",
		}),
		LoopIterations: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "lucid",
			Subsystem: "agent",
			Name:      "loop_iterations",
			Help:      "Model iterations used per finished session.",
			Buckets:   prometheus.LinearBuckets(1, 2, 12),
		}),
		SessionRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "lucid",
			Subsystem: "agent",
			Name:      "session_running",
			Help:      "1 while the execution slot is held.",
		}),
	}

	reg.MustRegister(
		m.SessionsSubmitted,
		m.SessionsCompleted,
		m.SubmissionsDenied,
		m.FramesCaptured,
		m.LoopIterations,
		m.SessionRunning,
	)
	return m
}

// NewUnregistered returns collectors that are not attached to any registry.
// Used in tests.
func NewUnregistered() *Metrics {
	return New(prometheus.NewRegistry())
}
