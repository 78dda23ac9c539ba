package systemd

import (
	"context"
	"fmt"
	"strings"

	"github.com/dhd-cli/dhd/internal/domain/compiler"
	"github.com/dhd-cli/dhd/internal/ports"
	"github.com/dhd-cli/dhd/internal/provider/commandutil"
	"github.com/dhd-cli/dhd/internal/provider/stepmeta"
	"github.com/dhd-cli/dhd/internal/validation"
)

// Operation is a systemctl state change.
type Operation string

// Operations.
const (
	OpEnable     Operation = "enable"
	OpDisable    Operation = "disable"
	OpStart      Operation = "start"
	OpStop       Operation = "stop"
	OpRestart    Operation = "restart"
	OpEnableNow  Operation = "enable-now"
	OpDisableNow Operation = "disable-now"
)

// Operations lists every supported operation.
var Operations = []Operation{OpEnable, OpDisable, OpStart, OpStop, OpRestart, OpEnableNow, OpDisableNow}

// ParseOperation validates op. Empty means enable.
func ParseOperation(op string) (Operation, error) {
	if op == "" {
		return OpEnable, nil
	}
	for _, o := range Operations {
		if string(o) == op {
			return o, nil
		}
	}
	return "", fmt.Errorf("unknown systemd operation %q (supported: %v)", op, Operations)
}

// want is the unit state an operation leads to. Nil means "don't care".
func (o Operation) want() (enabled, active *bool) {
	yes, no := true, false
	switch o {
	case OpEnable:
		return &yes, nil
	case OpDisable:
		return &no, nil
	case OpStart:
		return nil, &yes
	case OpStop:
		return nil, &no
	case OpEnableNow:
		return &yes, &yes
	case OpDisableNow:
		return &no, &no
	default:
		return nil, nil
	}
}

func (o Operation) args() []string {
	switch o {
	case OpEnableNow:
		return []string{"enable", "--now"}
	case OpDisableNow:
		return []string{"disable", "--now"}
	default:
		return []string{string(o)}
	}
}

// ManageStep moves a unit into the state an Operation describes.
type ManageStep struct {
	stepmeta.Meta
	name   string
	op     Operation
	scope  Scope
	runner ports.CommandRunner
	asRoot bool
}

// NewManageStep creates a new ManageStep.
func NewManageStep(module, name string, op Operation, scope Scope, runner ports.CommandRunner, asRoot bool) (*ManageStep, error) {
	if err := validation.ValidateUnitName(name); err != nil {
		return nil, err
	}
	meta, err := stepmeta.New(module, "systemd", string(scope)+"/"+name+"/"+string(op))
	if err != nil {
		return nil, err
	}
	return &ManageStep{Meta: meta, name: name, op: op, scope: scope, runner: runner, asRoot: asRoot}, nil
}

// Check queries is-enabled and is-active. Restart always needs apply.
func (s *ManageStep) Check(ctx compiler.RunContext) (compiler.StepStatus, error) {
	enabled, active := s.op.want()
	if enabled == nil && active == nil {
		return compiler.StatusNeedsApply, nil
	}
	if enabled != nil {
		ok, err := s.is(ctx.Context(), "is-enabled")
		if err != nil {
			return compiler.StatusUnknown, err
		}
		if ok != *enabled {
			return compiler.StatusNeedsApply, nil
		}
	}
	if active != nil {
		ok, err := s.is(ctx.Context(), "is-active")
		if err != nil {
			return compiler.StatusUnknown, err
		}
		if ok != *active {
			return compiler.StatusNeedsApply, nil
		}
	}
	return compiler.StatusSatisfied, nil
}

// is runs a systemctl predicate. Exit status 0 means true.
func (s *ManageStep) is(ctx context.Context, predicate string) (bool, error) {
	res, err := s.runner.Run(ctx, "systemctl", query(s.scope, predicate, "--quiet", s.name)...)
	if err != nil {
		if commandutil.IsCommandNotFound(err) {
			return false, fmt.Errorf("systemctl: command not found")
		}
		return false, err
	}
	return res.Success(), nil
}

// Apply runs the operation.
func (s *ManageStep) Apply(ctx compiler.RunContext) error {
	args := append(s.op.args(), s.name)
	name, argv := systemctl(s.scope, s.asRoot, args...)
	_, err := commandutil.Run(ctx.Context(), s.runner, name, argv...)
	return err
}

// Describe returns a one-line summary.
func (s *ManageStep) Describe() string {
	return fmt.Sprintf("%s %s systemd unit %s", strings.ReplaceAll(string(s.op), "-", " "), s.scope, s.name)
}
