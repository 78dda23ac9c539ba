// Package ports defines interfaces for external dependencies.
package ports

import (
	"context"
)

// CommandResult represents the result of executing a command.
type CommandResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Success returns true if the command exited with code 0.
func (r CommandResult) Success() bool {
	return r.ExitCode == 0
}

// CommandSpec describes a single process invocation.
type CommandSpec struct {
	Name string
	Args []string
	// Dir is the working directory. Empty means the current directory.
	Dir string
	// Env entries in KEY=VALUE form, appended to the inherited environment.
	Env []string
}

// CommandCall records a command invocation.
type CommandCall struct {
	Command string
	Args    []string
	Dir     string
	Env     []string
}

// CommandRunner executes external commands.
//
// A non-zero exit status is reported through CommandResult.ExitCode with a nil
// error. An error is returned only when the process could not be started or
// the context was cancelled.
type CommandRunner interface {
	Run(ctx context.Context, command string, args ...string) (CommandResult, error)
	RunSpec(ctx context.Context, spec CommandSpec) (CommandResult, error)
	// LookPath reports the absolute path of an executable found on PATH.
	LookPath(name string) (string, bool)
}
