// Package execution runs a validated step graph level by level.
package execution

import (
	"time"

	"github.com/dhd-cli/dhd/internal/domain/compiler"
)

// Outcome is the final state of one step in a run.
type Outcome string

// Step outcomes.
const (
	OutcomeCompleted    Outcome = "completed"
	OutcomeSkipped      Outcome = "skipped"
	OutcomeFailed       Outcome = "failed"
	OutcomeNotAttempted Outcome = "not_attempted"
)

// StepResult captures the outcome of a single step.
type StepResult struct {
	StepID      compiler.StepID
	Module      string
	Description string
	Level       int
	Outcome     Outcome
	// Err is a *compiler.StepError for failed steps.
	Err      error
	Started  time.Time
	Finished time.Time
}

// Duration returns how long Check and Apply took together.
func (r StepResult) Duration() time.Duration {
	if r.Started.IsZero() || r.Finished.IsZero() {
		return 0
	}
	return r.Finished.Sub(r.Started)
}

// Attempted reports whether the step was run at all.
func (r StepResult) Attempted() bool {
	return r.Outcome != OutcomeNotAttempted
}
