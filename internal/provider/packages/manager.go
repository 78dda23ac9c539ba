// Package packages installs system packages through the host package manager.
package packages

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dhd-cli/dhd/internal/ports"
)

// ErrNoManager is returned when no supported package manager is on PATH.
var ErrNoManager = errors.New("no supported package manager found")

// Manager describes how to drive one package manager.
type Manager struct {
	Name string
	// Privileged managers are run through sudo unless already root.
	Privileged bool
	// Refresh updates the package index before installing. Nil means the
	// manager does not need it.
	Refresh []string
	Install []string
	Remove  []string
	// installed reports whether pkg is present given the query result.
	query     func(pkg string) []string
	installed func(pkg string, res ports.CommandResult) bool
}

// Managers lists supported managers in detection order.
var Managers = []Manager{
	{
		Name:       "apt",
		Privileged: true,
		Refresh:    []string{"apt-get", "update"},
		Install:    []string{"apt-get", "install", "-y"},
		Remove:     []string{"apt-get", "remove", "-y"},
		query: func(pkg string) []string {
			return []string{"dpkg-query", "-W", "-f=${db:Status-Status}", pkg}
		},
		installed: func(_ string, res ports.CommandResult) bool {
			return res.Success() && strings.TrimSpace(res.Stdout) == "installed"
		},
	},
	{
		Name:       "dnf",
		Privileged: true,
		Install:    []string{"dnf", "install", "-y"},
		Remove:     []string{"dnf", "remove", "-y"},
		query:      func(pkg string) []string { return []string{"rpm", "-q", pkg} },
		installed:  exitZero,
	},
	{
		Name:       "pacman",
		Privileged: true,
		Install:    []string{"pacman", "-S", "--noconfirm", "--needed"},
		Remove:     []string{"pacman", "-R", "--noconfirm"},
		query:      func(pkg string) []string { return []string{"pacman", "-Q", pkg} },
		installed:  exitZero,
	},
	{
		Name:       "zypper",
		Privileged: true,
		Refresh:    []string{"zypper", "--non-interactive", "refresh"},
		Install:    []string{"zypper", "--non-interactive", "install"},
		Remove:     []string{"zypper", "--non-interactive", "remove"},
		query:      func(pkg string) []string { return []string{"rpm", "-q", pkg} },
		installed:  exitZero,
	},
	{
		Name:    "brew",
		Install: []string{"brew", "install"},
		Remove:  []string{"brew", "uninstall"},
		query:   func(pkg string) []string { return []string{"brew", "list", "--versions", pkg} },
		installed: func(_ string, res ports.CommandResult) bool {
			return res.Success() && strings.TrimSpace(res.Stdout) != ""
		},
	},
}

func exitZero(_ string, res ports.CommandResult) bool {
	return res.Success()
}

// Lookup returns the manager called name.
func Lookup(name string) (Manager, bool) {
	for _, m := range Managers {
		if m.Name == name {
			return m, true
		}
	}
	return Manager{}, false
}

// Detect returns the first supported manager found on PATH.
func Detect(runner ports.CommandRunner) (Manager, error) {
	for _, m := range Managers {
		if _, ok := runner.LookPath(m.Install[0]); ok {
			return m, nil
		}
	}
	return Manager{}, ErrNoManager
}

// Resolve picks the named manager, or detects one when name is empty.
func Resolve(runner ports.CommandRunner, name string) (Manager, error) {
	if name == "" {
		return Detect(runner)
	}
	m, ok := Lookup(name)
	if !ok {
		return Manager{}, fmt.Errorf("unsupported package manager %q", name)
	}
	return m, nil
}

// Missing returns the packages in names that are not installed.
func (m Manager) Missing(ctx context.Context, runner ports.CommandRunner, names []string) ([]string, error) {
	_, missing, err := m.partition(ctx, runner, names)
	return missing, err
}

// Installed returns the packages in names that are installed.
func (m Manager) Installed(ctx context.Context, runner ports.CommandRunner, names []string) ([]string, error) {
	installed, _, err := m.partition(ctx, runner, names)
	return installed, err
}

func (m Manager) partition(ctx context.Context, runner ports.CommandRunner, names []string) ([]string, []string, error) {
	var installed, missing []string
	for _, pkg := range names {
		q := m.query(pkg)
		res, err := runner.Run(ctx, q[0], q[1:]...)
		if err != nil {
			return nil, nil, fmt.Errorf("query %s package %s: %w", m.Name, pkg, err)
		}
		if m.installed(pkg, res) {
			installed = append(installed, pkg)
		} else {
			missing = append(missing, pkg)
		}
	}
	return installed, missing, nil
}

// command prefixes argv with sudo when the manager needs privileges.
func (m Manager) command(asRoot bool, argv []string) (string, []string) {
	if m.Privileged && !asRoot {
		return "sudo", argv
	}
	return argv[0], argv[1:]
}
