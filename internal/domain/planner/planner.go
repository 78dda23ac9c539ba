// Package planner expands declared actions into executable steps.
//
// Planning never mutates the host: conditions are evaluated and paths are
// resolved, but every effect is deferred to the steps it returns.
package planner

import (
	"context"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strings"

	"github.com/dhd-cli/dhd/internal/domain/action"
	"github.com/dhd-cli/dhd/internal/domain/compiler"
	"github.com/dhd-cli/dhd/internal/domain/condition"
	"github.com/dhd-cli/dhd/internal/ports"
)

// Severity grades a Diagnostic.
type Severity string

// Diagnostic severities.
const (
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Diagnostic is a planning-time finding that did not abort planning, such
// as a conditional action whose condition could not be evaluated.
type Diagnostic struct {
	Severity  Severity
	Module    string
	Action    string
	Condition string
	Err       error
}

func (d Diagnostic) String() string {
	msg := fmt.Sprintf("%s: %s: %s", d.Severity, d.Module, d.Action)
	if d.Condition != "" {
		msg += " (condition " + d.Condition + ")"
	}
	if d.Err != nil {
		msg += ": " + d.Err.Error()
	}
	return msg
}

// Expansion is the result of planning one action.
type Expansion struct {
	Steps       []compiler.Step
	Diagnostics []Diagnostic
}

// request is what an expander sees of one Plan call.
type request struct {
	module  string
	baseDir string
}

type expandFunc func(ctx context.Context, req request, a action.Action) (Expansion, error)

// Planner turns actions into steps using a dispatch table keyed by kind.
type Planner struct {
	runner     ports.CommandRunner
	fs         ports.FileSystem
	downloader ports.Downloader
	secrets    ports.SecretProvider
	evaluator  *condition.Evaluator
	logger     ports.Logger
	home       string
	configDir  string
	username   string
	asRoot     bool

	expanders map[action.Kind]expandFunc
}

// Option configures a Planner.
type Option func(*Planner)

// WithDownloader sets the HTTP client used by download steps.
func WithDownloader(d ports.Downloader) Option {
	return func(p *Planner) { p.downloader = d }
}

// WithSecrets sets the provider for secrets referenced inside conditional
// actions.
func WithSecrets(s ports.SecretProvider) Option {
	return func(p *Planner) { p.secrets = s }
}

// WithEvaluator sets the evaluator used for conditional actions.
func WithEvaluator(e *condition.Evaluator) Option {
	return func(p *Planner) { p.evaluator = e }
}

// WithLogger sets the logger diagnostics are reported to.
func WithLogger(l ports.Logger) Option {
	return func(p *Planner) { p.logger = l }
}

// WithHome overrides the home directory used for "~" and the git global
// scope.
func WithHome(dir string) Option {
	return func(p *Planner) { p.home = dir }
}

// WithConfigDir overrides the directory bare relative targets resolve
// against.
func WithConfigDir(dir string) Option {
	return func(p *Planner) { p.configDir = dir }
}

// WithUser overrides the account user_group actions apply to by default.
func WithUser(name string) Option {
	return func(p *Planner) { p.username = name }
}

// WithRoot reports whether the process already runs as root, so privileged
// package managers are not wrapped in sudo.
func WithRoot(asRoot bool) Option {
	return func(p *Planner) { p.asRoot = asRoot }
}

// New creates a Planner.
func New(runner ports.CommandRunner, fs ports.FileSystem, opts ...Option) *Planner {
	p := &Planner{runner: runner, fs: fs}
	if home, err := os.UserHomeDir(); err == nil {
		p.home = home
	}
	if dir, err := os.UserConfigDir(); err == nil {
		p.configDir = dir
	}
	if u, err := user.Current(); err == nil {
		p.username = u.Username
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.evaluator == nil {
		p.evaluator = condition.NewEvaluator(runner, fs, condition.WithSecrets(p.secrets))
	}
	p.expanders = map[action.Kind]expandFunc{
		action.KindPackageInstall: p.packageInstall,
		action.KindPackageRemove:  p.packageRemove,
		action.KindExtensions:     p.extensions,
		action.KindLinkFile:       p.linkFile,
		action.KindLinkDirectory:  p.linkDirectory,
		action.KindCopyFile:       p.copyFile,
		action.KindFileWrite:      p.fileWrite,
		action.KindDirectory:      p.directory,
		action.KindExecuteCommand: p.executeCommand,
		action.KindHTTPDownload:   p.httpDownload,
		action.KindGitConfig:      p.gitConfig,
		action.KindSystemdService: p.systemdService,
		action.KindSystemdSocket:  p.systemdSocket,
		action.KindSystemdManage:  p.systemdManage,
		action.KindUserGroup:      p.userGroup,
		action.KindDconfImport:    p.dconfImport,
		action.KindConditional:    p.conditional,
	}
	return p
}

// Plan expands a into the steps for module. Relative paths resolve against
// baseDir. An error means the action is malformed; an unmet or unevaluable
// condition is not an error.
func (p *Planner) Plan(ctx context.Context, module string, a action.Action, baseDir string) (Expansion, error) {
	if a == nil {
		return Expansion{}, fmt.Errorf("module %s: nil action", module)
	}
	expand, ok := p.expanders[a.Kind()]
	if !ok {
		return Expansion{}, fmt.Errorf("module %s: unsupported action kind %q", module, a.Kind())
	}
	exp, err := expand(ctx, request{module: module, baseDir: baseDir}, a)
	if err != nil {
		return Expansion{}, fmt.Errorf("module %s: %s: %w", module, a.Describe(), err)
	}
	return exp, nil
}

// source resolves a path that names something shipped with the module.
func (p *Planner) source(path, baseDir string) string {
	return p.resolve(path, baseDir)
}

// target resolves a destination path. Bare relative targets such as
// "nvim/init.lua" land in the user config directory; "./x" stays relative to
// the module.
func (p *Planner) target(path, baseDir string) string {
	if isBare(path) && p.configDir != "" {
		return filepath.Join(p.configDir, path)
	}
	return p.resolve(path, baseDir)
}

func (p *Planner) resolve(path, baseDir string) string {
	switch {
	case path == "~":
		return p.home
	case strings.HasPrefix(path, "~/"):
		return filepath.Join(p.home, path[2:])
	case filepath.IsAbs(path):
		return filepath.Clean(path)
	default:
		return filepath.Join(baseDir, path)
	}
}

func isBare(path string) bool {
	if path == "" || filepath.IsAbs(path) || strings.HasPrefix(path, "~") {
		return false
	}
	return !strings.HasPrefix(path, "./") && !strings.HasPrefix(path, "../") && path != "." && path != ".."
}
