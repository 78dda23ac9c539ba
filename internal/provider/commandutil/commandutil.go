// Package commandutil holds helpers shared by steps that shell out.
package commandutil

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/dhd-cli/dhd/internal/ports"
)

// IsCommandNotFound reports whether an error indicates a missing executable.
func IsCommandNotFound(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, exec.ErrNotFound) {
		return true
	}
	var execErr *exec.Error
	if errors.As(err, &execErr) && errors.Is(execErr.Err, exec.ErrNotFound) {
		return true
	}
	var pathErr *os.PathError
	if errors.As(err, &pathErr) && errors.Is(pathErr.Err, os.ErrNotExist) {
		return true
	}
	return false
}

// Run executes name with args and turns a non-zero exit status into an error
// that quotes stderr.
func Run(ctx context.Context, runner ports.CommandRunner, name string, args ...string) (ports.CommandResult, error) {
	result, err := runner.Run(ctx, name, args...)
	if err != nil {
		if IsCommandNotFound(err) {
			return result, fmt.Errorf("%s: command not found", name)
		}
		return result, err
	}
	if !result.Success() {
		return result, Failure(name, args, result)
	}
	return result, nil
}

// Failure describes a command that exited non-zero.
func Failure(name string, args []string, result ports.CommandResult) error {
	msg := strings.TrimSpace(result.Stderr)
	if msg == "" {
		msg = strings.TrimSpace(result.Stdout)
	}
	cmd := strings.TrimSpace(name + " " + strings.Join(args, " "))
	if msg == "" {
		return fmt.Errorf("%s failed with exit code %d", cmd, result.ExitCode)
	}
	return fmt.Errorf("%s failed with exit code %d: %s", cmd, result.ExitCode, msg)
}
