// Package systemd installs unit files and drives systemctl.
package systemd

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dhd-cli/dhd/internal/domain/compiler"
	"github.com/dhd-cli/dhd/internal/ports"
	"github.com/dhd-cli/dhd/internal/provider/commandutil"
	"github.com/dhd-cli/dhd/internal/provider/stepmeta"
	"github.com/dhd-cli/dhd/internal/validation"
)

// Scope selects the user or the system service manager.
type Scope string

// Scopes.
const (
	ScopeUser   Scope = "user"
	ScopeSystem Scope = "system"
)

// ParseScope accepts "user", "system" or empty, which means user.
func ParseScope(s string) (Scope, error) {
	switch Scope(strings.ToLower(s)) {
	case "", ScopeUser:
		return ScopeUser, nil
	case ScopeSystem:
		return ScopeSystem, nil
	default:
		return "", fmt.Errorf("unknown systemd scope %q (want user or system)", s)
	}
}

// UnitDir is where unit files for scope live. User units go below
// configDir.
func UnitDir(scope Scope, configDir string) string {
	if scope == ScopeSystem {
		return "/etc/systemd/system"
	}
	return filepath.Join(configDir, "systemd", "user")
}

// Service is the subset of a service unit that can be declared.
type Service struct {
	Description string
	Type        string // simple when empty
	ExecStart   string
	Restart     string
	RestartSec  int
}

// Render produces the unit file content.
func (s Service) Render() ([]byte, error) {
	if s.ExecStart == "" {
		return nil, errors.New("exec_start is required")
	}
	typ := s.Type
	if typ == "" {
		typ = "simple"
	}

	u := &unit{}
	u.section("Unit", "Description", s.Description)
	u.section("Service", "Type", typ, "ExecStart", s.ExecStart, "Restart", s.Restart)
	if s.RestartSec > 0 {
		u.set("RestartSec", strconv.Itoa(s.RestartSec))
	}
	u.section("Install", "WantedBy", "default.target")
	return u.bytes()
}

// Socket is the subset of a socket unit that can be declared.
type Socket struct {
	Description  string
	ListenStream string
}

// Render produces the unit file content.
func (s Socket) Render() ([]byte, error) {
	if s.ListenStream == "" {
		return nil, errors.New("listen_stream is required")
	}
	u := &unit{}
	u.section("Unit", "Description", s.Description)
	u.section("Socket", "ListenStream", s.ListenStream)
	u.section("Install", "WantedBy", "sockets.target")
	return u.bytes()
}

// unit writes sections in order. Empty values are left out.
type unit struct {
	buf bytes.Buffer
	err error
}

func (u *unit) section(name string, kv ...string) {
	if u.buf.Len() > 0 {
		u.buf.WriteByte('\n')
	}
	fmt.Fprintf(&u.buf, "[%s]\n", name)
	for i := 0; i+1 < len(kv); i += 2 {
		u.set(kv[i], kv[i+1])
	}
}

func (u *unit) set(key, value string) {
	if value == "" || u.err != nil {
		return
	}
	if strings.ContainsAny(value, "\n\r") {
		u.err = fmt.Errorf("%w: %s contains a newline", validation.ErrNewlineInjection, key)
		return
	}
	fmt.Fprintf(&u.buf, "%s=%s\n", key, value)
}

func (u *unit) bytes() ([]byte, error) {
	if u.err != nil {
		return nil, u.err
	}
	return u.buf.Bytes(), nil
}

// Unit describes one unit file to install.
type Unit struct {
	Name    string
	Scope   Scope
	Dir     string
	Content []byte
}

// Path is the absolute location of the unit file.
func (u Unit) Path() string {
	return filepath.Join(u.Dir, u.Name)
}

// UnitStep installs a unit file and reloads the service manager.
type UnitStep struct {
	stepmeta.Meta
	unit   Unit
	fs     ports.FileSystem
	runner ports.CommandRunner
	asRoot bool
}

// NewUnitStep creates a new UnitStep.
func NewUnitStep(module string, u Unit, fs ports.FileSystem, runner ports.CommandRunner, asRoot bool) (*UnitStep, error) {
	if err := validation.ValidateUnitName(u.Name); err != nil {
		return nil, err
	}
	meta, err := stepmeta.New(module, "systemd-unit", u.Path())
	if err != nil {
		return nil, err
	}
	return &UnitStep{Meta: meta, unit: u, fs: fs, runner: runner, asRoot: asRoot}, nil
}

// Check compares the installed unit file with the declared content.
func (s *UnitStep) Check(_ compiler.RunContext) (compiler.StepStatus, error) {
	current, err := s.fs.ReadFile(s.unit.Path())
	if errors.Is(err, os.ErrNotExist) {
		return compiler.StatusNeedsApply, nil
	}
	if err != nil {
		return compiler.StatusUnknown, err
	}
	return compiler.StatusFor(!bytes.Equal(current, s.unit.Content)), nil
}

// Apply writes the unit file and runs daemon-reload. System units are
// staged in the temp directory and installed with sudo unless running as
// root.
func (s *UnitStep) Apply(ctx compiler.RunContext) error {
	path := s.unit.Path()
	if s.unit.Scope == ScopeUser || s.asRoot {
		if err := s.fs.MkdirAll(s.unit.Dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", s.unit.Dir, err)
		}
		if err := s.fs.WriteFile(path, s.unit.Content, 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
	} else if err := s.installPrivileged(ctx, path); err != nil {
		return err
	}

	name, args := systemctl(s.unit.Scope, s.asRoot, "daemon-reload")
	_, err := commandutil.Run(ctx.Context(), s.runner, name, args...)
	return err
}

func (s *UnitStep) installPrivileged(ctx compiler.RunContext, path string) error {
	staged := filepath.Join(os.TempDir(), "dhd-"+s.unit.Name)
	if err := s.fs.WriteFile(staged, s.unit.Content, 0o600); err != nil {
		return fmt.Errorf("failed to stage %s: %w", path, err)
	}
	defer func() { _ = s.fs.Remove(staged) }()

	_, err := commandutil.Run(ctx.Context(), s.runner, "sudo", "install", "-D", "-m", "0644", staged, path)
	return err
}

// Describe returns a one-line summary.
func (s *UnitStep) Describe() string {
	return fmt.Sprintf("install %s systemd unit %s", s.unit.Scope, s.unit.Name)
}

// systemctl builds a mutating systemctl invocation. System scope goes
// through sudo unless already root.
func systemctl(scope Scope, asRoot bool, args ...string) (string, []string) {
	if scope == ScopeUser {
		return "systemctl", append([]string{"--user"}, args...)
	}
	if asRoot {
		return "systemctl", args
	}
	return "sudo", append([]string{"systemctl"}, args...)
}

// query builds a read-only systemctl invocation.
func query(scope Scope, args ...string) []string {
	if scope == ScopeUser {
		return append([]string{"--user"}, args...)
	}
	return args
}
