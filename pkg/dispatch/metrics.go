package dispatch

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics is a Sink that exports send counts and latencies to Prometheus.
type Metrics struct {
	sends    *prometheus.CounterVec
	duration *prometheus.HistogramVec
	runs     *prometheus.CounterVec
}

// NewMetrics creates the dispatch collectors and registers them with reg.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		sends: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "dispatch",
				Name:      "sends_total",
				Help:      "Total number of dispatched messages by outcome",
			},
			[]string{"outcome"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "dispatch",
				Name:      "send_duration_seconds",
				Help:      "Time from send start to outcome",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"outcome"},
		),
		runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "dispatch",
				Name:      "runs_total",
				Help:      "Total number of finished dispatch runs by final state",
			},
			[]string{"state"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.sends, m.duration, m.runs)
	}
	return m
}

func (m *Metrics) Report(_ context.Context, o Outcome) {
	outcome := "success"
	if !o.OK() {
		outcome = "failure"
	}
	m.sends.WithLabelValues(outcome).Inc()
	m.duration.WithLabelValues(outcome).Observe(o.Duration().Seconds())
}

// RunFinished records the final state of a run.
func (m *Metrics) RunFinished(state string) {
	m.runs.WithLabelValues(state).Inc()
}
