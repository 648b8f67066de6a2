// Package metrics exports what the strategies do as Prometheus metrics.
package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"gitlab.com/slon/readerswriters/event"
	"gitlab.com/slon/readerswriters/rw"
)

const namespace = "readerswriters"

type Metrics struct {
	ops    *prometheus.CounterVec
	inside *prometheus.GaugeVec
	runs   *prometheus.HistogramVec
}

// New creates the metrics and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Read and write calls by outcome.",
		}, []string{"strategy", "role", "outcome"}),
		inside: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "inside",
			Help:      "Callers currently inside the critical section.",
		}, []string{"strategy", "role"}),
		runs: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of a simulation run.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}, []string{"strategy"}),
	}
	reg.MustRegister(m.ops, m.inside, m.runs)
	return m
}

// Succeeded counts a call that returned no error. Events are not counted:
// a barrier read emits before its second rendezvous and may still fail.
func (m *Metrics) Succeeded(strategy string, role event.Role) {
	m.ops.WithLabelValues(strategy, string(role), "ok").Inc()
}

// Failed counts a failed operation.
func (m *Metrics) Failed(strategy string, role event.Role, err error) {
	m.ops.WithLabelValues(strategy, string(role), Outcome(err)).Inc()
}

// Outcome is the outcome label for err.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, rw.ErrInterruptedWait):
		return "interrupted"
	case errors.Is(err, rw.ErrBrokenRendezvous):
		return "broken"
	default:
		return "error"
	}
}

// Track wraps a critical section so that the inside gauge follows it.
func (m *Metrics) Track(strategy string, next rw.Section) rw.Section {
	return func(ctx context.Context, role event.Role) {
		g := m.inside.WithLabelValues(strategy, string(role))
		g.Inc()
		defer g.Dec()
		next(ctx, role)
	}
}

func (m *Metrics) ObserveRun(strategy string, d time.Duration) {
	m.runs.WithLabelValues(strategy).Observe(d.Seconds())
}
