// Package compiler defines the executable step contract and the dependency
// graph that orders steps for execution.
package compiler

// Step is a concrete, independently checkable and executable unit of work
// produced by planning an action.
type Step interface {
	// ID is unique within a run and stable across runs.
	ID() StepID
	// Module names the module that declared the step.
	Module() string
	// DependsOn lists steps that must complete before this one starts.
	DependsOn() []StepID
	// Check reports StatusNeedsApply when the step must run and
	// StatusSatisfied when its effect is already in place.
	Check(ctx RunContext) (StepStatus, error)
	// Apply performs the effect. It is called only after Check reported
	// StatusNeedsApply.
	Apply(ctx RunContext) error
	// Describe is a stable one-line summary.
	Describe() string
}

// WithDependencies returns step with extra dependencies appended. Duplicate
// and self references are dropped.
func WithDependencies(step Step, extra ...StepID) Step {
	if len(extra) == 0 {
		return step
	}

	inner := step
	if d, ok := step.(*dependentStep); ok {
		inner = d.Step
	}

	seen := make(map[string]bool)
	seen[step.ID().String()] = true
	deps := make([]StepID, 0, len(step.DependsOn())+len(extra))
	for _, id := range append(append([]StepID(nil), step.DependsOn()...), extra...) {
		if id.IsZero() || seen[id.String()] {
			continue
		}
		seen[id.String()] = true
		deps = append(deps, id)
	}
	return &dependentStep{Step: inner, deps: deps}
}

// Unwrap returns the step that was decorated by WithDependencies.
func Unwrap(step Step) Step {
	if d, ok := step.(*dependentStep); ok {
		return d.Step
	}
	return step
}

type dependentStep struct {
	Step
	deps []StepID
}

func (d *dependentStep) DependsOn() []StepID {
	return d.deps
}
