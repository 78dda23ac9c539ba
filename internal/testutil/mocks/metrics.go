package mocks

import (
	"sync"
	"time"

	"github.com/dhd-cli/dhd/internal/ports"
)

// Metrics counts recorded outcomes.
type Metrics struct {
	mu             sync.Mutex
	Steps          map[string]int
	Runs           map[string]int
	SkippedModules []string
}

// NewMetrics creates an empty Metrics recorder.
func NewMetrics() *Metrics {
	return &Metrics{Steps: make(map[string]int), Runs: make(map[string]int)}
}

// RecordStep implements ports.Metrics.
func (m *Metrics) RecordStep(_ string, outcome string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Steps[outcome]++
}

// RecordRun implements ports.Metrics.
func (m *Metrics) RecordRun(outcome string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Runs[outcome]++
}

// RecordModuleSkipped implements ports.Metrics.
func (m *Metrics) RecordModuleSkipped(module, _ string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SkippedModules = append(m.SkippedModules, module)
}

// StepCount returns the count recorded for outcome.
func (m *Metrics) StepCount(outcome string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Steps[outcome]
}

var _ ports.Metrics = (*Metrics)(nil)
