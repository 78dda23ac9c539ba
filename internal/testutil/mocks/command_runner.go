// Package mocks provides test doubles for the ports interfaces.
package mocks

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/dhd-cli/dhd/internal/ports"
)

// CommandHandler computes a result for an invocation dynamically.
type CommandHandler func(spec ports.CommandSpec) (ports.CommandResult, error)

// CommandRunner is a thread-safe test double for ports.CommandRunner.
//
// Lookup order for an invocation: registered error, registered result,
// handler. Unmatched invocations return an error.
type CommandRunner struct {
	mu      sync.RWMutex
	results map[string]ports.CommandResult
	errors  map[string]error
	paths   map[string]string
	handler CommandHandler
	calls   []ports.CommandCall
}

// NewCommandRunner creates a new CommandRunner mock.
func NewCommandRunner() *CommandRunner {
	return &CommandRunner{
		results: make(map[string]ports.CommandResult),
		errors:  make(map[string]error),
		paths:   make(map[string]string),
	}
}

// AddResult registers an expected command and its result.
func (m *CommandRunner) AddResult(command string, args []string, result ports.CommandResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results[buildKey(command, args)] = result
}

// AddError registers an expected command that fails to start.
func (m *CommandRunner) AddError(command string, args []string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[buildKey(command, args)] = err
}

// AddExecutable makes LookPath find name.
func (m *CommandRunner) AddExecutable(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.paths[name] = "/usr/bin/" + name
}

// SetHandler installs a fallback for invocations without a registered result.
func (m *CommandRunner) SetHandler(h CommandHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handler = h
}

// Run executes a mock command.
func (m *CommandRunner) Run(ctx context.Context, command string, args ...string) (ports.CommandResult, error) {
	return m.RunSpec(ctx, ports.CommandSpec{Name: command, Args: args})
}

// RunSpec executes a mock command described by spec.
func (m *CommandRunner) RunSpec(ctx context.Context, spec ports.CommandSpec) (ports.CommandResult, error) {
	m.mu.Lock()
	m.calls = append(m.calls, ports.CommandCall{
		Command: spec.Name,
		Args:    spec.Args,
		Dir:     spec.Dir,
		Env:     spec.Env,
	})
	key := buildKey(spec.Name, spec.Args)
	err, hasErr := m.errors[key]
	result, hasResult := m.results[key]
	handler := m.handler
	m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return ports.CommandResult{ExitCode: -1}, err
	}
	if hasErr {
		return ports.CommandResult{}, err
	}
	if hasResult {
		return result, nil
	}
	if handler != nil {
		return handler(spec)
	}
	return ports.CommandResult{}, fmt.Errorf("no mock result for command: %s %v", spec.Name, spec.Args)
}

// LookPath reports executables registered with AddExecutable.
func (m *CommandRunner) LookPath(name string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.paths[name]
	return p, ok
}

// Calls returns all recorded command invocations.
func (m *CommandRunner) Calls() []ports.CommandCall {
	m.mu.RLock()
	defer m.mu.RUnlock()
	calls := make([]ports.CommandCall, len(m.calls))
	copy(calls, m.calls)
	return calls
}

// CallCount returns how many times command was invoked with args.
func (m *CommandRunner) CallCount(command string, args ...string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	want := buildKey(command, args)
	n := 0
	for _, c := range m.calls {
		if buildKey(c.Command, c.Args) == want {
			n++
		}
	}
	return n
}

// Reset clears all registered results, errors, and recorded calls.
func (m *CommandRunner) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results = make(map[string]ports.CommandResult)
	m.errors = make(map[string]error)
	m.paths = make(map[string]string)
	m.handler = nil
	m.calls = nil
}

func buildKey(command string, args []string) string {
	return command + ":" + strings.Join(args, ":")
}

var _ ports.CommandRunner = (*CommandRunner)(nil)
