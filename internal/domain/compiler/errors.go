package compiler

import (
	"errors"
	"fmt"
	"strings"
)

// Error codes attached to StepError.
const (
	ErrCodeStepDuplicate     = "STEP_DUPLICATE"
	ErrCodeDependencyMissing = "DEPENDENCY_MISSING"
	ErrCodeCyclicDependency  = "CYCLIC_DEPENDENCY"
	ErrCodeCheckFailed       = "CHECK_FAILED"
	ErrCodeApplyFailed       = "APPLY_FAILED"
	ErrCodeTimeout           = "STEP_TIMEOUT"
)

// Sentinel errors for graph construction.
var (
	ErrDuplicateStep    = errors.New("step with this ID already exists")
	ErrCyclicDependency = errors.New("cyclic dependency detected")
	ErrMissingDep       = errors.New("step depends on nonexistent step")
)

// StepError is a step-attributed failure with an actionable suggestion.
type StepError struct {
	Code       string
	Message    string
	Module     string
	StepID     string
	Suggestion string
	Underlying error
}

// Error returns the formatted error message.
func (e *StepError) Error() string {
	var b strings.Builder
	if e.StepID != "" {
		fmt.Fprintf(&b, "step %q: ", e.StepID)
	}
	b.WriteString(e.Message)
	if e.Underlying != nil {
		b.WriteString(": ")
		b.WriteString(e.Underlying.Error())
	}
	return b.String()
}

// Unwrap returns the underlying error.
func (e *StepError) Unwrap() error {
	return e.Underlying
}

// Format renders the error with all details on separate lines.
func (e *StepError) Format() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", e.Code, e.Message)
	if e.Module != "" {
		fmt.Fprintf(&b, "\n  Module: %s", e.Module)
	}
	if e.StepID != "" {
		fmt.Fprintf(&b, "\n  Step: %s", e.StepID)
	}
	if e.Underlying != nil {
		fmt.Fprintf(&b, "\n  Cause: %s", e.Underlying.Error())
	}
	if e.Suggestion != "" {
		fmt.Fprintf(&b, "\n  Suggestion: %s", e.Suggestion)
	}
	return b.String()
}

// NewStepDuplicateError creates an error for a duplicate step ID.
func NewStepDuplicateError(stepID string) *StepError {
	return &StepError{
		Code:       ErrCodeStepDuplicate,
		Message:    "step with this ID already exists in the graph",
		StepID:     stepID,
		Suggestion: "The same action is declared twice in one module; remove the duplicate.",
		Underlying: ErrDuplicateStep,
	}
}

// NewDependencyMissingError creates an error for an unknown dependency id.
func NewDependencyMissingError(stepID, dependsOn string) *StepError {
	return &StepError{
		Code:       ErrCodeDependencyMissing,
		Message:    fmt.Sprintf("depends on %q which does not exist", dependsOn),
		StepID:     stepID,
		Underlying: ErrMissingDep,
	}
}

// NewCheckFailedError wraps a failure returned by Step.Check.
func NewCheckFailedError(step Step, err error) *StepError {
	return &StepError{
		Code:       ErrCodeCheckFailed,
		Message:    "status check failed",
		Module:     step.Module(),
		StepID:     step.ID().String(),
		Suggestion: "The step could not determine whether it is satisfied; re-run with --verbose.",
		Underlying: err,
	}
}

// NewApplyFailedError wraps a failure returned by Step.Apply.
func NewApplyFailedError(step Step, err error) *StepError {
	return &StepError{
		Code:       ErrCodeApplyFailed,
		Message:    "execution failed",
		Module:     step.Module(),
		StepID:     step.ID().String(),
		Underlying: err,
	}
}

// NewTimeoutError reports a step that exceeded its deadline.
func NewTimeoutError(step Step, err error) *StepError {
	return &StepError{
		Code:       ErrCodeTimeout,
		Message:    "step timed out",
		Module:     step.Module(),
		StepID:     step.ID().String(),
		Suggestion: "Raise --step-timeout or check whether the command waits for input.",
		Underlying: err,
	}
}

// CycleError reports a dependency cycle among steps. Path starts and ends
// at StepID.
type CycleError struct {
	StepID string
	Path   []string
}

func (e *CycleError) Error() string {
	if len(e.Path) == 0 {
		return fmt.Sprintf("%s involving step %q", ErrCyclicDependency, e.StepID)
	}
	return fmt.Sprintf("%s involving step %q: %s",
		ErrCyclicDependency, e.StepID, strings.Join(e.Path, " → "))
}

// Is matches ErrCyclicDependency.
func (e *CycleError) Is(target error) bool {
	return target == ErrCyclicDependency
}
