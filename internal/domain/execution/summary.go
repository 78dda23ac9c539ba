package execution

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dhd-cli/dhd/internal/domain/compiler"
)

// Failure describes one failed step.
type Failure struct {
	StepID  string
	Module  string
	Message string
	Err     error
}

// Summary reports the outcome of a run.
type Summary struct {
	RunID     string
	DryRun    bool
	Total     int
	Completed int
	Skipped   int
	// Failed is sorted by step id.
	Failed []Failure
	// NotAttempted lists the ids of steps that never started, sorted.
	NotAttempted []string
	// Results holds every step result in execution order.
	Results  []StepResult
	Duration time.Duration
}

func newSummary(runID string, dryRun bool, results []StepResult, d time.Duration) *Summary {
	s := &Summary{
		RunID:    runID,
		DryRun:   dryRun,
		Total:    len(results),
		Results:  append([]StepResult(nil), results...),
		Duration: d,
	}
	for _, r := range results {
		switch r.Outcome {
		case OutcomeCompleted:
			s.Completed++
		case OutcomeSkipped:
			s.Skipped++
		case OutcomeFailed:
			s.Failed = append(s.Failed, Failure{
				StepID:  r.StepID.String(),
				Module:  r.Module,
				Message: failureMessage(r.Err),
				Err:     r.Err,
			})
		case OutcomeNotAttempted:
			s.NotAttempted = append(s.NotAttempted, r.StepID.String())
		}
	}
	sort.Slice(s.Failed, func(i, j int) bool { return s.Failed[i].StepID < s.Failed[j].StepID })
	sort.Strings(s.NotAttempted)
	return s
}

// failureMessage drops the step prefix a StepError adds, since Failure
// already carries the id.
func failureMessage(err error) string {
	if err == nil {
		return "unknown failure"
	}
	var se *compiler.StepError
	if errors.As(err, &se) {
		if se.Underlying != nil {
			return se.Message + ": " + se.Underlying.Error()
		}
		return se.Message
	}
	return err.Error()
}

// Success reports whether no step failed and every step was attempted.
func (s *Summary) Success() bool {
	return len(s.Failed) == 0 && len(s.NotAttempted) == 0
}

// Changed is the number of steps that applied (or would apply) a change.
func (s *Summary) Changed() int {
	return s.Completed
}

// StepsFor returns the results of steps declared by module.
func (s *Summary) StepsFor(module string) []StepResult {
	var out []StepResult
	for _, r := range s.Results {
		if r.Module == module {
			out = append(out, r)
		}
	}
	return out
}

// Result returns the result recorded for id.
func (s *Summary) Result(id string) (StepResult, bool) {
	for _, r := range s.Results {
		if r.StepID.String() == id {
			return r, true
		}
	}
	return StepResult{}, false
}

// Err aggregates the failures of the run into a single error, or returns
// nil when the run succeeded.
func (s *Summary) Err() error {
	if s.Success() {
		return nil
	}
	return &RunError{
		Total:        s.Total,
		Failures:     append([]Failure(nil), s.Failed...),
		NotAttempted: append([]string(nil), s.NotAttempted...),
	}
}

// RunError is the aggregate error of a run with failed or unattempted steps.
type RunError struct {
	Total        int
	Failures     []Failure
	NotAttempted []string
}

func (e *RunError) Error() string {
	var b strings.Builder
	if len(e.Failures) > 0 {
		fmt.Fprintf(&b, "%d of %d steps failed", len(e.Failures), e.Total)
	} else {
		fmt.Fprintf(&b, "run incomplete")
	}
	if n := len(e.NotAttempted); n > 0 {
		fmt.Fprintf(&b, " (%d not attempted)", n)
	}
	for i, f := range e.Failures {
		if i == 0 {
			b.WriteString(": ")
		} else {
			b.WriteString("; ")
		}
		fmt.Fprintf(&b, "%s: %s", f.StepID, f.Message)
	}
	return b.String()
}

// Unwrap exposes the individual step errors to errors.Is and errors.As.
func (e *RunError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		if f.Err != nil {
			errs = append(errs, f.Err)
		}
	}
	return errs
}
