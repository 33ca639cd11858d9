// Package metrics exports routine activity as prometheus series. Collectors
// are fed through routine.Hooks so the runner itself stays free of them.
package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mj1618/user-routine/internal/routine"
)

type Metrics struct {
	runs         *prometheus.CounterVec
	runDuration  prometheus.Histogram
	steps        *prometheus.CounterVec
	stepDuration *prometheus.HistogramVec
	active       prometheus.Gauge
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "user_routine_runs_total",
				Help: "Finished routines by outcome",
			},
			[]string{"outcome"},
		),
		runDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "user_routine_run_duration_seconds",
				Help:    "Wall time of finished routines",
				Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
			},
		),
		steps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "user_routine_steps_total",
				Help: "Executed actions by command and outcome",
			},
			[]string{"command", "outcome"},
		),
		stepDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "user_routine_step_duration_seconds",
				Help: "Duration of single actions",
			},
			[]string{"command"},
		),
		active: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "user_routine_active_runs",
				Help: "Routines currently executing",
			},
		),
	}
	reg.MustRegister(m.runs, m.runDuration, m.steps, m.stepDuration, m.active)
	return m
}

// Hooks returns runner hooks that record into m.
func (m *Metrics) Hooks() routine.Hooks {
	return routine.Hooks{
		OnRunStart: func(context.Context, string, int) {
			m.active.Inc()
		},
		OnStepEnd: func(_ context.Context, ev routine.StepEvent) {
			m.steps.WithLabelValues(ev.Kind, stepOutcome(ev.Err)).Inc()
			m.stepDuration.WithLabelValues(ev.Kind).Observe(ev.Duration.Seconds())
		},
		OnRunEnd: func(_ context.Context, _ string, res routine.Result, elapsed time.Duration) {
			m.active.Dec()
			outcome := "success"
			if !res.Success {
				outcome = "failure"
			}
			m.runs.WithLabelValues(outcome).Inc()
			m.runDuration.Observe(elapsed.Seconds())
		},
	}
}

func stepOutcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, routine.ErrStopped):
		return "stopped"
	case errors.Is(err, routine.ErrTimeout):
		return "timeout"
	default:
		return "failed"
	}
}
