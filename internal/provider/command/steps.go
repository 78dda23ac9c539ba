// Package command runs arbitrary processes as steps.
package command

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/dhd-cli/dhd/internal/domain/compiler"
	"github.com/dhd-cli/dhd/internal/ports"
	"github.com/dhd-cli/dhd/internal/provider/commandutil"
	"github.com/dhd-cli/dhd/internal/provider/stepmeta"
)

// DefaultShell interprets Shell commands and Unless guards.
const DefaultShell = "sh"

// Spec describes the process to run.
type Spec struct {
	// Shell, when set, runs Command through "<Shell> -c". Args become the
	// script's positional parameters.
	Shell   string
	Command string
	Args    []string
	Dir     string
	Env     map[string]string
	// Creates is an absolute path whose existence means the command already
	// ran.
	Creates string
	// Unless is a shell snippet; exit status 0 means the command already ran.
	Unless string
}

// RunStep runs a command. Without a guard it runs on every apply.
type RunStep struct {
	stepmeta.Meta
	spec   Spec
	runner ports.CommandRunner
	fs     ports.FileSystem
}

// NewRunStep creates a RunStep. The ID is derived from the command line and
// working directory, so the same command declared twice in a module collides.
func NewRunStep(module string, spec Spec, runner ports.CommandRunner, fs ports.FileSystem) (*RunStep, error) {
	if spec.Command == "" {
		return nil, fmt.Errorf("command must not be empty")
	}
	meta, err := stepmeta.New(module, "run", firstWord(spec.Command)+"-"+fingerprint(spec))
	if err != nil {
		return nil, err
	}
	return &RunStep{Meta: meta, spec: spec, runner: runner, fs: fs}, nil
}

// Check consults the Creates and Unless guards.
func (s *RunStep) Check(ctx compiler.RunContext) (compiler.StepStatus, error) {
	if s.spec.Creates != "" && s.fs.Exists(s.spec.Creates) {
		return compiler.StatusSatisfied, nil
	}
	if s.spec.Unless != "" {
		res, err := s.runner.RunSpec(ctx.Context(), ports.CommandSpec{
			Name: s.shell(),
			Args: []string{"-c", s.spec.Unless},
			Dir:  s.spec.Dir,
			Env:  envList(s.spec.Env),
		})
		if err != nil {
			return compiler.StatusUnknown, fmt.Errorf("unless guard: %w", err)
		}
		if res.Success() {
			return compiler.StatusSatisfied, nil
		}
	}
	return compiler.StatusNeedsApply, nil
}

// Apply runs the command.
func (s *RunStep) Apply(ctx compiler.RunContext) error {
	cmd := s.commandSpec()
	res, err := s.runner.RunSpec(ctx.Context(), cmd)
	if err != nil {
		if commandutil.IsCommandNotFound(err) {
			return fmt.Errorf("%s: command not found", cmd.Name)
		}
		return err
	}
	if logger := ctx.Logger(); logger != nil && ctx.Verbose() {
		logOutput(ctx.Context(), logger, s.ID().String(), res)
	}
	if !res.Success() {
		return commandutil.Failure(cmd.Name, cmd.Args, res)
	}
	return nil
}

// Describe returns a one-line summary. Environment values are omitted.
func (s *RunStep) Describe() string {
	if s.spec.Shell != "" {
		return fmt.Sprintf("run %s -c %q", s.spec.Shell, s.spec.Command)
	}
	return strings.TrimSpace("run " + s.spec.Command + " " + strings.Join(s.spec.Args, " "))
}

func (s *RunStep) commandSpec() ports.CommandSpec {
	spec := ports.CommandSpec{Dir: s.spec.Dir, Env: envList(s.spec.Env)}
	if s.spec.Shell != "" {
		spec.Name = s.spec.Shell
		spec.Args = append([]string{"-c", s.spec.Command, s.spec.Shell}, s.spec.Args...)
		return spec
	}
	spec.Name = s.spec.Command
	spec.Args = s.spec.Args
	return spec
}

func (s *RunStep) shell() string {
	if s.spec.Shell != "" {
		return s.spec.Shell
	}
	return DefaultShell
}

func envList(env map[string]string) []string {
	if len(env) == 0 {
		return nil
	}
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, k+"="+v)
	}
	sort.Strings(out)
	return out
}

func fingerprint(spec Spec) string {
	h := sha256.New()
	for _, part := range append([]string{spec.Shell, spec.Command, spec.Dir}, spec.Args...) {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))[:8]
}

func firstWord(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return s
	}
	return fields[0]
}

func logOutput(ctx context.Context, logger ports.Logger, id string, res ports.CommandResult) {
	if out := strings.TrimSpace(res.Stdout); out != "" {
		logger.Debug(ctx, "command stdout", ports.F("step", id), ports.F("output", out))
	}
	if out := strings.TrimSpace(res.Stderr); out != "" {
		logger.Debug(ctx, "command stderr", ports.F("step", id), ports.F("output", out))
	}
}
