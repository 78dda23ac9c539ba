package ports

import "time"

// Metrics records run and step outcomes.
type Metrics interface {
	RecordStep(module, outcome string, duration time.Duration)
	RecordRun(outcome string, duration time.Duration)
	RecordModuleSkipped(module, reason string)
}

// NopMetrics discards all measurements.
type NopMetrics struct{}

// RecordStep implements Metrics.
func (NopMetrics) RecordStep(string, string, time.Duration) {}

// RecordRun implements Metrics.
func (NopMetrics) RecordRun(string, time.Duration) {}

// RecordModuleSkipped implements Metrics.
func (NopMetrics) RecordModuleSkipped(string, string) {}
