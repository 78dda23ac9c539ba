package app

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/dhd-cli/dhd/internal/domain/action"
	"github.com/dhd-cli/dhd/internal/domain/compiler"
	"github.com/dhd-cli/dhd/internal/domain/condition"
	"github.com/dhd-cli/dhd/internal/domain/module"
	"github.com/dhd-cli/dhd/internal/domain/planner"
	"github.com/dhd-cli/dhd/internal/ports"
)

// Skip reasons recorded for modules that contribute no steps.
const (
	SkipConditionFalse = "condition_not_met"
	SkipConditionError = "condition_error"
)

// SkippedModule is a module whose condition kept it out of the plan.
type SkippedModule struct {
	Name   string
	Reason string
	Err    error
}

// Plan is the full set of steps for an ordered module list.
type Plan struct {
	Modules        []module.Module
	Steps          []compiler.Step
	Graph          *compiler.StepGraph
	Diagnostics    []planner.Diagnostic
	SkippedModules []SkippedModule
}

// StepsFor returns the planned steps of module name.
func (p *Plan) StepsFor(name string) []compiler.Step {
	var out []compiler.Step
	for _, s := range p.Steps {
		if s.Module() == name {
			out = append(out, s)
		}
	}
	return out
}

// Plan gates each module on its condition, expands its actions and links
// the resulting steps:
//
//   - within a module, the first steps of an action depend on the last
//     steps of the nearest earlier action that produced any;
//   - a module's first steps depend on the frontier of each module it
//     depends on. The frontier is a module's last steps or, when it planned
//     none, its own dependencies' frontier.
//
// ordered must already be resolved. Any returned error happens before a step
// has run.
func (e *Engine) Plan(ctx context.Context, ordered []module.Module) (*Plan, error) {
	ctx, span := e.tracer.Start(ctx, "dhd.plan", trace.WithAttributes(
		attribute.Int("dhd.modules", len(ordered)),
	))
	defer span.End()

	plan := &Plan{}
	frontier := make(map[string][]compiler.StepID, len(ordered))

	for _, m := range ordered {
		upstream := dependencyFrontier(m, frontier)
		frontier[m.Name] = upstream

		run, err := e.evaluator.WithBaseDir(m.Dir).Evaluate(ctx, m.Condition)
		if err != nil {
			e.warn(ctx, "module condition could not be evaluated; skipping module",
				ports.F("module", m.Name),
				ports.F("condition", condition.Describe(m.Condition)),
				ports.F("error", err.Error()),
			)
			e.metrics.RecordModuleSkipped(m.Name, SkipConditionError)
			plan.SkippedModules = append(plan.SkippedModules, SkippedModule{Name: m.Name, Reason: SkipConditionError, Err: err})
			continue
		}
		if !run {
			e.debug(ctx, "module condition not met; skipping module",
				ports.F("module", m.Name),
				ports.F("condition", condition.Describe(m.Condition)),
			)
			e.metrics.RecordModuleSkipped(m.Name, SkipConditionFalse)
			plan.SkippedModules = append(plan.SkippedModules, SkippedModule{Name: m.Name, Reason: SkipConditionFalse})
			continue
		}

		steps, diags, last, err := e.planModule(ctx, m, upstream)
		if err != nil {
			return nil, err
		}
		plan.Modules = append(plan.Modules, m)
		plan.Steps = append(plan.Steps, steps...)
		plan.Diagnostics = append(plan.Diagnostics, diags...)
		frontier[m.Name] = last
	}

	graph, err := compiler.BuildStepGraph(plan.Steps)
	if err != nil {
		return nil, fmt.Errorf("build step graph: %w", err)
	}
	plan.Graph = graph

	span.SetAttributes(
		attribute.Int("dhd.steps", len(plan.Steps)),
		attribute.Int("dhd.skipped_modules", len(plan.SkippedModules)),
	)
	return plan, nil
}

// planModule expands the actions of m. upstream is what the first producing
// action waits for; the returned frontier is what dependents wait for.
func (e *Engine) planModule(ctx context.Context, m module.Module, upstream []compiler.StepID) ([]compiler.Step, []planner.Diagnostic, []compiler.StepID, error) {
	var (
		steps []compiler.Step
		diags []planner.Diagnostic
	)
	prev := upstream

	for _, a := range m.Actions {
		resolved, err := action.ResolveSecrets(ctx, a, e.secrets)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("module %s: %w", m.Name, err)
		}
		exp, err := e.planner.Plan(ctx, m.Name, resolved, m.Dir)
		if err != nil {
			return nil, nil, nil, err
		}
		diags = append(diags, exp.Diagnostics...)
		if len(exp.Steps) == 0 {
			continue
		}

		entries, exits := boundary(exp.Steps)
		for i, s := range exp.Steps {
			if entries[i] {
				s = compiler.WithDependencies(s, prev...)
			}
			steps = append(steps, s)
		}
		prev = exits
	}
	return steps, diags, prev, nil
}

// boundary marks which steps of one expansion have no dependency inside the
// expansion (entries) and returns the ids no other step of it depends on
// (exits).
func boundary(steps []compiler.Step) ([]bool, []compiler.StepID) {
	local := make(map[string]bool, len(steps))
	for _, s := range steps {
		local[s.ID().String()] = true
	}

	entries := make([]bool, len(steps))
	depended := make(map[string]bool)
	for i, s := range steps {
		entries[i] = true
		for _, d := range s.DependsOn() {
			if local[d.String()] {
				entries[i] = false
				depended[d.String()] = true
			}
		}
	}

	var exits []compiler.StepID
	for _, s := range steps {
		if !depended[s.ID().String()] {
			exits = append(exits, s.ID())
		}
	}
	return entries, exits
}

func dependencyFrontier(m module.Module, frontier map[string][]compiler.StepID) []compiler.StepID {
	seen := make(map[string]bool)
	var out []compiler.StepID
	for _, dep := range m.Dependencies {
		for _, id := range frontier[dep] {
			if !seen[id.String()] {
				seen[id.String()] = true
				out = append(out, id)
			}
		}
	}
	return out
}
