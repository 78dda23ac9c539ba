// Package metrics records run outcomes as Prometheus metrics.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dhd-cli/dhd/internal/ports"
)

const namespace = "dhd"

// PrometheusRecorder implements ports.Metrics on a private registry.
type PrometheusRecorder struct {
	registry *prometheus.Registry

	stepsTotal     *prometheus.CounterVec
	stepDuration   *prometheus.HistogramVec
	runsTotal      *prometheus.CounterVec
	runDuration    prometheus.Histogram
	modulesSkipped *prometheus.CounterVec
}

// NewPrometheusRecorder creates a recorder and registers its collectors.
func NewPrometheusRecorder() (*PrometheusRecorder, error) {
	r := &PrometheusRecorder{
		registry: prometheus.NewRegistry(),
		stepsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "steps_total",
				Help:      "Steps processed, by module and outcome",
			},
			[]string{"module", "outcome"},
		),
		stepDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "step_duration_seconds",
				Help:      "Time spent checking and applying a step",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"module"},
		),
		runsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_total",
				Help:      "Runs finished, by outcome",
			},
			[]string{"outcome"},
		),
		runDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "run_duration_seconds",
				Help:      "Wall time of a run",
				Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
			},
		),
		modulesSkipped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "modules_skipped_total",
				Help:      "Modules whose condition excluded them, by reason",
			},
			[]string{"module", "reason"},
		),
	}

	for _, c := range []prometheus.Collector{
		r.stepsTotal, r.stepDuration, r.runsTotal, r.runDuration, r.modulesSkipped,
	} {
		if err := r.registry.Register(c); err != nil {
			return nil, fmt.Errorf("register metric: %w", err)
		}
	}
	return r, nil
}

// RecordStep implements ports.Metrics.
func (r *PrometheusRecorder) RecordStep(module, outcome string, duration time.Duration) {
	r.stepsTotal.WithLabelValues(module, outcome).Inc()
	r.stepDuration.WithLabelValues(module).Observe(duration.Seconds())
}

// RecordRun implements ports.Metrics.
func (r *PrometheusRecorder) RecordRun(outcome string, duration time.Duration) {
	r.runsTotal.WithLabelValues(outcome).Inc()
	r.runDuration.Observe(duration.Seconds())
}

// RecordModuleSkipped implements ports.Metrics.
func (r *PrometheusRecorder) RecordModuleSkipped(module, reason string) {
	r.modulesSkipped.WithLabelValues(module, reason).Inc()
}

// Registry exposes the underlying registry.
func (r *PrometheusRecorder) Registry() *prometheus.Registry {
	return r.registry
}

// WriteTextfile writes all metrics in the node_exporter textfile format.
func (r *PrometheusRecorder) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.registry)
}

var _ ports.Metrics = (*PrometheusRecorder)(nil)
