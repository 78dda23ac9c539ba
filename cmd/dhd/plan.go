package main

import (
	"github.com/spf13/cobra"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Show the steps apply would consider",
	Long: `Plan evaluates module conditions and expands the selected modules into
steps without checking or changing anything on the machine.

Modules whose condition is false, or could not be evaluated, are listed
as skipped.`,
	RunE: runPlan,
}

func init() {
	rootCmd.AddCommand(planCmd)
}

func runPlan(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	s, err := newSession(ctx, sessionConfig{out: cmd.OutOrStdout(), errOut: cmd.ErrOrStderr()})
	if err != nil {
		return err
	}

	selected, err := s.engine.SelectModules(s.modules, selection())
	if err != nil {
		return err
	}
	plan, err := s.engine.Plan(ctx, selected)
	if err != nil {
		return err
	}
	s.engine.PrintPlan(plan)
	return nil
}
