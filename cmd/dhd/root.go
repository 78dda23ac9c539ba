package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dhd-cli/dhd/internal/adapters/modulefile"
	"github.com/dhd-cli/dhd/internal/domain/compiler"
	"github.com/dhd-cli/dhd/internal/domain/execution"
	"github.com/dhd-cli/dhd/internal/domain/module"
)

var (
	// Global flags
	modulesDir    string
	moduleNames   []string
	moduleTags    []string
	verbose       bool
	logFormat     string
	traceEnabled  bool
	shutdownTrace func(context.Context) error
)

var rootCmd = &cobra.Command{
	Use:   "dhd",
	Short: "Converge a machine onto its declared configuration",
	Long: `dhd reads modules from a directory, orders them by their dependencies
and applies only the steps whose effect is not already present.

Running apply twice in a row is safe: the second run changes nothing.`,
	SilenceErrors:     true,
	SilenceUsage:      true,
	PersistentPreRunE: setupTracing,
}

// Execute runs the root command and reports any error on stderr.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	if shutdownTrace != nil {
		if serr := shutdownTrace(context.Background()); serr != nil && err == nil {
			err = fmt.Errorf("flush traces: %w", serr)
		}
		shutdownTrace = nil
	}
	if err != nil {
		printError(err)
	}
	return err
}

func init() {
	rootCmd.PersistentFlags().StringVar(&modulesDir, "modules-dir", defaultModulesDir(),
		"directory containing module files (env DHD_MODULES_DIR)")
	rootCmd.PersistentFlags().StringSliceVarP(&moduleNames, "module", "m", nil,
		"select a module and its dependencies (repeatable)")
	rootCmd.PersistentFlags().StringSliceVarP(&moduleTags, "tag", "t", nil,
		"select modules carrying a tag (repeatable)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format (text, json)")
	rootCmd.PersistentFlags().BoolVar(&traceEnabled, "trace", false, "write OpenTelemetry spans to stderr")

	registerFlagCompletions()

	rootCmd.AddCommand(versionCmd)
}

func defaultModulesDir() string {
	if dir := os.Getenv("DHD_MODULES_DIR"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".config", "dhd", "modules")
	}
	return filepath.Join(home, ".config", "dhd", "modules")
}

func selection() module.Filter {
	return module.Filter{Names: moduleNames, Tags: moduleTags}
}

// formatError returns a user-facing message with a suggestion where one
// applies. Underlying causes are included only with --verbose.
func formatError(err error) string {
	var (
		parseErr   *modulefile.ParseError
		missingErr *module.MissingDependencyError
		cycleErr   *module.CyclicDependencyError
		runErr     *execution.RunError
		stepErr    *compiler.StepError
	)

	switch {
	case errors.As(err, &parseErr):
		msg := fmt.Sprintf("invalid module file %s", parseErr.Path)
		if parseErr.Err != nil {
			msg += fmt.Sprintf(": %v", parseErr.Err)
		}
		return msg
	case errors.As(err, &missingErr):
		return fmt.Sprintf("%s\n\nSuggestion: add a module named %q to %s or remove it from depends_on",
			missingErr.Error(), missingErr.Dependency, modulesDir)
	case errors.As(err, &cycleErr):
		return fmt.Sprintf("%s\n\nSuggestion: break the cycle by removing one of these depends_on entries",
			cycleErr.Error())
	case errors.Is(err, module.ErrUnknownModule):
		return fmt.Sprintf("%v\n\nSuggestion: run 'dhd list' to see available modules", err)
	case errors.Is(err, modulefile.ErrNoModules):
		return fmt.Sprintf("%v\n\nSuggestion: set --modules-dir or DHD_MODULES_DIR", err)
	case errors.As(err, &runErr):
		msg := runErr.Error()
		if verbose {
			details := make([]string, 0, len(runErr.Failures))
			for _, f := range runErr.Failures {
				if errors.As(f.Err, &stepErr) && stepErr.Suggestion != "" {
					details = append(details, fmt.Sprintf("  %s: %s", f.StepID, stepErr.Suggestion))
				}
			}
			if len(details) > 0 {
				msg += "\n\nSuggestions:\n" + strings.Join(details, "\n")
			}
		}
		return msg
	}
	return err.Error()
}

// printError prints an error message to stderr.
func printError(err error) {
	printErrorTo(os.Stderr, err)
}

// printErrorTo prints an error message to the given writer.
func printErrorTo(w io.Writer, err error) {
	_, _ = fmt.Fprintf(w, "Error: %s\n", formatError(err))
}

// registerFlagCompletions sets up custom completions for global flags.
func registerFlagCompletions() {
	_ = rootCmd.RegisterFlagCompletionFunc("log-format", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{
			"text\tHuman readable console lines",
			"json\tOne JSON object per line",
		}, cobra.ShellCompDirectiveNoFileComp
	})

	_ = rootCmd.RegisterFlagCompletionFunc("modules-dir", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return nil, cobra.ShellCompDirectiveFilterDirs
	})

	// Module names and tags come from the modules directory.
	completeFrom := func(pick func(module.Module) []string) func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
			mods, err := modulefile.Load(modulesDir)
			if err != nil {
				return nil, cobra.ShellCompDirectiveNoFileComp
			}
			seen := make(map[string]bool)
			var out []string
			for _, m := range mods {
				for _, v := range pick(m) {
					if !seen[v] {
						seen[v] = true
						out = append(out, v)
					}
				}
			}
			return out, cobra.ShellCompDirectiveNoFileComp
		}
	}
	_ = rootCmd.RegisterFlagCompletionFunc("module", completeFrom(func(m module.Module) []string {
		return []string{m.Name}
	}))
	_ = rootCmd.RegisterFlagCompletionFunc("tag", completeFrom(func(m module.Module) []string {
		return m.Tags
	}))
}
