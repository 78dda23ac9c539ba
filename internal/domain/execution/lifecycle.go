package execution

import (
	"fmt"

	"github.com/felixgeelhaar/statekit"
)

// Lifecycle states of a step.
const (
	statePending      = "pending"
	stateChecking     = "checking"
	stateExecuting    = "executing"
	stateSkipped      = "skipped"
	stateCompleted    = "completed"
	stateFailed       = "failed"
	stateNotAttempted = "not_attempted"
)

// Lifecycle events.
const (
	eventCheck     = "CHECK"
	eventWithhold  = "WITHHOLD"
	eventUpToDate  = "UP_TO_DATE"
	eventProceed   = "PROCEED"
	eventSimulate  = "SIMULATE"
	eventSucceeded = "SUCCEEDED"
	eventFailed    = "FAILED"
)

// lifecycleContext is the statekit context type. The executor keeps its own
// bookkeeping, so it carries nothing.
type lifecycleContext struct{}

type lifecycle = statekit.Interpreter[lifecycleContext]

// newLifecycleFactory builds the step state machine once and returns a
// constructor for per-step interpreters:
//
//	pending -> checking -> skipped
//	                    -> completed            (dry run)
//	                    -> executing -> completed | failed
//	                    -> failed               (check error)
//	pending -> not_attempted
func newLifecycleFactory() (func() *lifecycle, error) {
	machine, err := statekit.NewMachine[lifecycleContext]("dhd-step").
		WithInitial(statePending).
		WithContext(lifecycleContext{}).
		State(statePending).
		On(eventCheck).Target(stateChecking).
		On(eventWithhold).Target(stateNotAttempted).Done().
		State(stateChecking).
		On(eventUpToDate).Target(stateSkipped).
		On(eventSimulate).Target(stateCompleted).
		On(eventProceed).Target(stateExecuting).
		On(eventFailed).Target(stateFailed).Done().
		State(stateExecuting).
		On(eventSucceeded).Target(stateCompleted).
		On(eventFailed).Target(stateFailed).Done().
		State(stateSkipped).Done().
		State(stateCompleted).Done().
		State(stateFailed).Done().
		State(stateNotAttempted).Done().
		Build()
	if err != nil {
		return nil, fmt.Errorf("build step lifecycle: %w", err)
	}
	return func() *lifecycle {
		interp := statekit.NewInterpreter(machine)
		interp.Start()
		return interp
	}, nil
}

func send(l *lifecycle, event string) {
	l.Send(statekit.Event{Type: statekit.EventType(event)})
}

func currentState(l *lifecycle) string {
	return string(l.State().Value)
}

// outcomeOf maps a terminal lifecycle state to an Outcome.
func outcomeOf(state string) (Outcome, error) {
	switch state {
	case stateSkipped:
		return OutcomeSkipped, nil
	case stateCompleted:
		return OutcomeCompleted, nil
	case stateFailed:
		return OutcomeFailed, nil
	case stateNotAttempted:
		return OutcomeNotAttempted, nil
	default:
		return "", fmt.Errorf("step lifecycle stopped in non-terminal state %q", state)
	}
}
