// Package command provides the process execution adapter.
package command

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"strings"

	"github.com/dhd-cli/dhd/internal/ports"
)

// RealRunner executes processes on the host.
type RealRunner struct {
	lookPath func(string) (string, error)
}

// NewRealRunner creates a new RealRunner.
func NewRealRunner() *RealRunner {
	return &RealRunner{lookPath: exec.LookPath}
}

// Run executes a command and returns the result.
func (r *RealRunner) Run(ctx context.Context, command string, args ...string) (ports.CommandResult, error) {
	return r.RunSpec(ctx, ports.CommandSpec{Name: command, Args: args})
}

// RunSpec executes the described process. A non-zero exit is not an error.
func (r *RealRunner) RunSpec(ctx context.Context, spec ports.CommandSpec) (ports.CommandResult, error) {
	cmd := exec.CommandContext(ctx, spec.Name, spec.Args...)
	cmd.Dir = spec.Dir
	if len(spec.Env) > 0 {
		cmd.Env = append(os.Environ(), spec.Env...)
	}

	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	result := ports.CommandResult{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}
	if err == nil {
		return result, nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		result.ExitCode = -1
		return result, ctxErr
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		result.ExitCode = exitErr.ExitCode()
		return result, nil
	}
	return result, err
}

// LookPath reports whether name resolves to an executable on PATH.
func (r *RealRunner) LookPath(name string) (string, bool) {
	path, err := r.lookPath(name)
	if err != nil {
		return "", false
	}
	return path, true
}

var _ ports.CommandRunner = (*RealRunner)(nil)
