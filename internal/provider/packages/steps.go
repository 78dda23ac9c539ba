package packages

import (
	"fmt"
	"strings"

	"github.com/dhd-cli/dhd/internal/domain/compiler"
	"github.com/dhd-cli/dhd/internal/ports"
	"github.com/dhd-cli/dhd/internal/provider/commandutil"
	"github.com/dhd-cli/dhd/internal/provider/stepmeta"
	"github.com/dhd-cli/dhd/internal/validation"
)

// Steps expands one package install into steps. Managers with an index
// refresh yield a refresh step and an install step that depends on it.
func Steps(module string, mgr Manager, names []string, runner ports.CommandRunner, asRoot bool) ([]compiler.Step, error) {
	if len(names) == 0 {
		return nil, nil
	}
	for _, n := range names {
		if err := validation.ValidatePackageName(n); err != nil {
			return nil, err
		}
	}
	discriminator := mgr.Name + "/" + strings.Join(names, "+")

	var steps []compiler.Step
	var deps []compiler.StepID
	if mgr.Refresh != nil {
		meta, err := stepmeta.New(module, "packages-refresh", discriminator)
		if err != nil {
			return nil, err
		}
		refresh := &RefreshStep{Meta: meta, mgr: mgr, names: names, runner: runner, asRoot: asRoot}
		steps = append(steps, refresh)
		deps = append(deps, refresh.ID())
	}

	meta, err := stepmeta.New(module, "packages", discriminator, deps...)
	if err != nil {
		return nil, err
	}
	steps = append(steps, &InstallStep{Meta: meta, mgr: mgr, names: names, runner: runner, asRoot: asRoot})
	return steps, nil
}

// RefreshStep updates the package index ahead of an install.
type RefreshStep struct {
	stepmeta.Meta
	mgr    Manager
	names  []string
	runner ports.CommandRunner
	asRoot bool
}

// Check needs apply only when the paired install has something to do.
func (s *RefreshStep) Check(ctx compiler.RunContext) (compiler.StepStatus, error) {
	missing, err := s.mgr.Missing(ctx.Context(), s.runner, s.names)
	if err != nil {
		return compiler.StatusUnknown, err
	}
	return compiler.StatusFor(len(missing) > 0), nil
}

// Apply refreshes the index.
func (s *RefreshStep) Apply(ctx compiler.RunContext) error {
	name, args := s.mgr.command(s.asRoot, s.mgr.Refresh)
	_, err := commandutil.Run(ctx.Context(), s.runner, name, args...)
	return err
}

// Describe returns a one-line summary.
func (s *RefreshStep) Describe() string {
	return fmt.Sprintf("refresh %s package index", s.mgr.Name)
}

// InstallStep installs a set of packages in one manager invocation.
type InstallStep struct {
	stepmeta.Meta
	mgr    Manager
	names  []string
	runner ports.CommandRunner
	asRoot bool
}

// Check determines if any package is missing.
func (s *InstallStep) Check(ctx compiler.RunContext) (compiler.StepStatus, error) {
	missing, err := s.mgr.Missing(ctx.Context(), s.runner, s.names)
	if err != nil {
		return compiler.StatusUnknown, err
	}
	return compiler.StatusFor(len(missing) > 0), nil
}

// Apply installs the missing packages.
func (s *InstallStep) Apply(ctx compiler.RunContext) error {
	missing, err := s.mgr.Missing(ctx.Context(), s.runner, s.names)
	if err != nil {
		return err
	}
	if len(missing) == 0 {
		return nil
	}

	argv := make([]string, 0, len(s.mgr.Install)+len(missing))
	argv = append(argv, s.mgr.Install...)
	argv = append(argv, missing...)
	name, args := s.mgr.command(s.asRoot, argv)
	_, err = commandutil.Run(ctx.Context(), s.runner, name, args...)
	return err
}

// Describe returns a one-line summary.
func (s *InstallStep) Describe() string {
	return fmt.Sprintf("install %s packages: %s", s.mgr.Name, strings.Join(s.names, ", "))
}

// Packages returns the package names this step manages.
func (s *InstallStep) Packages() []string {
	return append([]string(nil), s.names...)
}

// RemoveSteps expands one package removal into a single step.
func RemoveSteps(module string, mgr Manager, names []string, runner ports.CommandRunner, asRoot bool) ([]compiler.Step, error) {
	if len(names) == 0 {
		return nil, nil
	}
	if mgr.Remove == nil {
		return nil, fmt.Errorf("package manager %s cannot remove packages", mgr.Name)
	}
	for _, n := range names {
		if err := validation.ValidatePackageName(n); err != nil {
			return nil, err
		}
	}
	meta, err := stepmeta.New(module, "packages-remove", mgr.Name+"/"+strings.Join(names, "+"))
	if err != nil {
		return nil, err
	}
	return []compiler.Step{&RemoveStep{Meta: meta, mgr: mgr, names: names, runner: runner, asRoot: asRoot}}, nil
}

// RemoveStep uninstalls a set of packages in one manager invocation.
type RemoveStep struct {
	stepmeta.Meta
	mgr    Manager
	names  []string
	runner ports.CommandRunner
	asRoot bool
}

// Check needs apply while any of the packages is still installed.
func (s *RemoveStep) Check(ctx compiler.RunContext) (compiler.StepStatus, error) {
	installed, err := s.mgr.Installed(ctx.Context(), s.runner, s.names)
	if err != nil {
		return compiler.StatusUnknown, err
	}
	return compiler.StatusFor(len(installed) > 0), nil
}

// Apply removes the packages that are still installed.
func (s *RemoveStep) Apply(ctx compiler.RunContext) error {
	installed, err := s.mgr.Installed(ctx.Context(), s.runner, s.names)
	if err != nil {
		return err
	}
	if len(installed) == 0 {
		return nil
	}

	argv := make([]string, 0, len(s.mgr.Remove)+len(installed))
	argv = append(argv, s.mgr.Remove...)
	argv = append(argv, installed...)
	name, args := s.mgr.command(s.asRoot, argv)
	_, err = commandutil.Run(ctx.Context(), s.runner, name, args...)
	return err
}

// Describe returns a one-line summary.
func (s *RemoveStep) Describe() string {
	return fmt.Sprintf("remove %s packages: %s", s.mgr.Name, strings.Join(s.names, ", "))
}
