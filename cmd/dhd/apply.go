package main

import (
	"errors"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"github.com/dhd-cli/dhd/internal/domain/execution"
)

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Apply the selected modules to this machine",
	Long: `Apply plans the selected modules and runs every step whose effect is
not already present.

Steps run level by level: a step starts only after all of its
dependencies have completed. By default the run stops after the first
level that contains a failure; --continue-on-error keeps going with
steps that do not depend on a failed one.

Use --dry-run to see what would change without changing anything.`,
	Example: `  dhd apply
  dhd apply -m neovim -m zsh
  dhd apply --tag desktop --dry-run`,
	RunE: runApply,
}

var (
	applyDryRun      bool
	applyContinue    bool
	applyConcurrency int
	applyTimeout     time.Duration
	applyMetricsFile string
)

func init() {
	applyCmd.Flags().BoolVar(&applyDryRun, "dry-run", false, "check steps without applying them")
	applyCmd.Flags().BoolVar(&applyContinue, "continue-on-error", false, "keep running steps that do not depend on a failed step")
	applyCmd.Flags().IntVarP(&applyConcurrency, "concurrency", "j", runtime.NumCPU(), "maximum steps running at once")
	applyCmd.Flags().DurationVar(&applyTimeout, "step-timeout", 0, "limit for a single step, e.g. 10m (0 disables)")
	applyCmd.Flags().StringVar(&applyMetricsFile, "metrics-file", "", "write Prometheus textfile metrics to this path")

	rootCmd.AddCommand(applyCmd)
}

func applyOptions() (execution.Options, error) {
	if applyTimeout < 0 {
		return execution.Options{}, errors.New("--step-timeout must not be negative")
	}
	if applyConcurrency < 1 {
		return execution.Options{}, errors.New("--concurrency must be at least 1")
	}

	opts := execution.DefaultOptions()
	opts.Concurrency = applyConcurrency
	opts.DryRun = applyDryRun
	opts.FailFast = !applyContinue
	opts.StepTimeout = applyTimeout
	opts.Verbose = verbose
	return opts, nil
}

func runApply(cmd *cobra.Command, _ []string) error {
	opts, err := applyOptions()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	s, err := newSession(ctx, sessionConfig{
		out:         cmd.OutOrStdout(),
		errOut:      cmd.ErrOrStderr(),
		metricsFile: applyMetricsFile,
	})
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
	if verbose {
		s.engine.PrintPlan(plan)
	}

	summary, runErr := s.engine.ExecutePlan(ctx, plan, opts)
	if summary != nil {
		s.engine.PrintSummary(summary)
	}
	if err := s.flushMetrics(applyMetricsFile); err != nil {
		return errors.Join(runErr, err)
	}
	return runErr
}
