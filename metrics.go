package lambert

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics collects the sweep statistics. A nil *Metrics is valid and records nothing.
type Metrics struct {
	Samples    *prometheus.CounterVec
	Iterations prometheus.Histogram
	Retries    prometheus.Counter
}

// NewMetrics creates the sweep metrics and registers them on reg (if not nil).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Samples: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lambert_samples_total",
			Help: "Number of trajectory samples computed, by validity.",
		}, []string{"status"}),
		Iterations: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "lambert_solver_iterations",
			Help:    "Iterations of the nonlinear solver per sample.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		}),
		Retries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lambert_retries_total",
			Help: "Number of re-seeded solves after a failed warm start.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Samples, m.Iterations, m.Retries)
	}
	return m
}

func (m *Metrics) observe(s Sample) {
	if m == nil {
		return
	}
	status := "valid"
	if !s.Valid {
		status = "invalid"
	}
	m.Samples.WithLabelValues(status).Inc()
	m.Iterations.Observe(float64(s.Iterations))
}

func (m *Metrics) retried() {
	if m == nil {
		return
	}
	m.Retries.Inc()
}
