package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/dhd-cli/dhd/internal/domain/execution"
	"github.com/dhd-cli/dhd/internal/domain/module"
)

var (
	colorPrimary = lipgloss.AdaptiveColor{Light: "#1e66f5", Dark: "#89b4fa"}
	colorSuccess = lipgloss.AdaptiveColor{Light: "#40a02b", Dark: "#a6e3a1"}
	colorWarning = lipgloss.AdaptiveColor{Light: "#df8e1d", Dark: "#f9e2af"}
	colorError   = lipgloss.AdaptiveColor{Light: "#d20f39", Dark: "#f38ba8"}
	colorMuted   = lipgloss.AdaptiveColor{Light: "#6c6f85", Dark: "#6c7086"}
)

type styles struct {
	title   lipgloss.Style
	module  lipgloss.Style
	success lipgloss.Style
	warning lipgloss.Style
	failure lipgloss.Style
	muted   lipgloss.Style
}

func defaultStyles() styles {
	return styles{
		title:   lipgloss.NewStyle().Bold(true).Foreground(colorPrimary),
		module:  lipgloss.NewStyle().Bold(true),
		success: lipgloss.NewStyle().Foreground(colorSuccess),
		warning: lipgloss.NewStyle().Foreground(colorWarning),
		failure: lipgloss.NewStyle().Foreground(colorError),
		muted:   lipgloss.NewStyle().Foreground(colorMuted),
	}
}

// PrintPlan writes the planned steps grouped by module.
func (e *Engine) PrintPlan(plan *Plan) {
	st := defaultStyles()

	e.printf("%s\n\n", st.title.Render("dhd plan"))
	if len(plan.Steps) == 0 {
		e.printf("No steps planned.\n")
	}
	for _, m := range plan.Modules {
		steps := plan.StepsFor(m.Name)
		e.printf("%s %s\n", st.module.Render(m.Name), st.muted.Render(fmt.Sprintf("(%d steps)", len(steps))))
		for _, s := range steps {
			e.printf("  + %s\n", s.Describe())
			e.printf("    %s\n", st.muted.Render(s.ID().String()))
			if deps := s.DependsOn(); len(deps) > 0 {
				ids := make([]string, len(deps))
				for i, d := range deps {
					ids[i] = d.String()
				}
				e.printf("    %s\n", st.muted.Render("after "+strings.Join(ids, ", ")))
			}
		}
	}

	if len(plan.SkippedModules) > 0 {
		e.printf("\n")
		for _, sm := range plan.SkippedModules {
			line := fmt.Sprintf("- %s skipped (%s)", sm.Name, strings.ReplaceAll(sm.Reason, "_", " "))
			if sm.Err != nil {
				line += ": " + sm.Err.Error()
			}
			e.printf("%s\n", st.warning.Render(line))
		}
	}
	if len(plan.Diagnostics) > 0 {
		e.printf("\n")
		for _, d := range plan.Diagnostics {
			e.printf("%s\n", st.warning.Render("! "+d.String()))
		}
	}
	e.printf("\n%d steps across %d modules\n", len(plan.Steps), len(plan.Modules))
}

// PrintSummary writes the outcome of a run, listing every failure.
func (e *Engine) PrintSummary(s *execution.Summary) {
	st := defaultStyles()

	title := "dhd apply"
	if s.DryRun {
		title += " (dry run)"
	}
	e.printf("%s\n\n", st.title.Render(title))

	for _, r := range s.Results {
		switch r.Outcome {
		case execution.OutcomeCompleted:
			e.printf("  %s %s\n", st.success.Render("✓"), r.Description)
		case execution.OutcomeSkipped:
			e.printf("  %s %s\n", st.muted.Render("-"), st.muted.Render(r.Description+" (up to date)"))
		case execution.OutcomeFailed:
			e.printf("  %s %s\n", st.failure.Render("✗"), r.Description)
		case execution.OutcomeNotAttempted:
			e.printf("  %s %s\n", st.warning.Render("·"), st.muted.Render(r.Description+" (not attempted)"))
		}
	}

	for _, f := range s.Failed {
		e.printf("\n%s %s\n    %s\n", st.failure.Render("failed:"), f.StepID, f.Message)
	}

	counts := fmt.Sprintf("total %d, completed %d, skipped %d, failed %d",
		s.Total, s.Completed, s.Skipped, len(s.Failed))
	if n := len(s.NotAttempted); n > 0 {
		counts += fmt.Sprintf(", not attempted %d", n)
	}
	style := st.success
	if !s.Success() {
		style = st.failure
	}
	e.printf("\n%s %s\n", style.Render(counts), st.muted.Render("in "+s.Duration.Round(time.Millisecond).String()))
}

// PrintModules lists modules with their tags and dependencies.
func (e *Engine) PrintModules(mods []module.Module) {
	st := defaultStyles()
	for _, m := range mods {
		line := st.module.Render(m.Name)
		if m.Description != "" {
			line += " " + m.Description
		}
		e.printf("%s\n", line)
		if len(m.Tags) > 0 {
			e.printf("    %s\n", st.muted.Render("tags: "+strings.Join(m.Tags, ", ")))
		}
		if len(m.Dependencies) > 0 {
			e.printf("    %s\n", st.muted.Render("depends on: "+strings.Join(m.Dependencies, ", ")))
		}
	}
}

func (e *Engine) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(e.out, format, args...)
}
