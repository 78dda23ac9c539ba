package compiler

// StepStatus is the outcome of checking a step.
type StepStatus string

const (
	// StatusSatisfied means the desired state is already met.
	StatusSatisfied StepStatus = "satisfied"
	// StatusNeedsApply means the step must run.
	StatusNeedsApply StepStatus = "needs-apply"
	// StatusUnknown means the state could not be determined.
	StatusUnknown StepStatus = "unknown"
)

// StatusFor maps a boolean "must run" answer onto a StepStatus.
func StatusFor(mustRun bool) StepStatus {
	if mustRun {
		return StatusNeedsApply
	}
	return StatusSatisfied
}

// String returns the string representation of the status.
func (s StepStatus) String() string {
	return string(s)
}

// NeedsAction reports whether Apply should be called. Unknown is treated
// as needing action so a step is never silently considered converged.
func (s StepStatus) NeedsAction() bool {
	return s != StatusSatisfied
}
