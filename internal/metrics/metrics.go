// Package metrics exposes sweep counters on a private Prometheus registry.
// A sweep is a one-shot batch job, so the registry is written to a textfile
// for the node exporter instead of being served.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Point outcomes.
const (
	OutcomeCached      = "cached"
	OutcomeComputed    = "computed"
	OutcomeFailed      = "failed"
	OutcomeConfigError = "config_error"
)

// Sweep holds the metrics of one sweep run.
type Sweep struct {
	registry *prometheus.Registry

	points         *prometheus.CounterVec
	rollbacks      prometheus.Counter
	solverDuration prometheus.Histogram
	stageStatus    *prometheus.CounterVec
}

// NewSweep registers the sweep metrics, labelled with the sweep name.
func NewSweep(name string) *Sweep {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	labels := prometheus.Labels{"sweep": name}

	return &Sweep{
		registry: reg,
		points: factory.NewCounterVec(prometheus.CounterOpts{
			Name:        "sweepgrid_points_total",
			Help:        "Sweep points processed, by outcome",
			ConstLabels: labels,
		}, []string{"outcome"}),
		rollbacks: factory.NewCounter(prometheus.CounterOpts{
			Name:        "sweepgrid_rollbacks_total",
			Help:        "Cases removed after a failed solver run",
			ConstLabels: labels,
		}),
		solverDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:        "sweepgrid_solver_duration_seconds",
			Help:        "Wall time of one full solver invocation",
			ConstLabels: labels,
			Buckets:     prometheus.ExponentialBuckets(0.1, 4, 10),
		}),
		stageStatus: factory.NewCounterVec(prometheus.CounterOpts{
			Name:        "sweepgrid_stages_total",
			Help:        "Solver stages run, by stage and result",
			ConstLabels: labels,
		}, []string{"stage", "result"}),
	}
}

// Point records the outcome of one sweep point.
func (s *Sweep) Point(outcome string) {
	if s == nil {
		return
	}
	s.points.WithLabelValues(outcome).Inc()
	if outcome == OutcomeFailed {
		s.rollbacks.Inc()
	}
}

// SolverRun records the duration of a solver invocation.
func (s *Sweep) SolverRun(elapsed time.Duration) {
	if s == nil {
		return
	}
	s.solverDuration.Observe(elapsed.Seconds())
}

// Stage records one stage result. It matches solver.Observer.
func (s *Sweep) Stage(stage string, status int, _ time.Duration) {
	if s == nil {
		return
	}
	result := "ok"
	if status != 0 {
		result = "failed"
	}
	s.stageStatus.WithLabelValues(stage, result).Inc()
}

// Registry returns the underlying registry.
func (s *Sweep) Registry() *prometheus.Registry {
	return s.registry
}

// WriteTextfile writes all metrics in the text exposition format.
func (s *Sweep) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, s.registry)
}
