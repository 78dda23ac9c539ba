// Package module holds the loaded module model and orders modules by their
// declared dependencies.
package module

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dhd-cli/dhd/internal/domain/action"
	"github.com/dhd-cli/dhd/internal/domain/condition"
)

// Module is a named bundle of actions with metadata. Modules are immutable
// once loaded.
type Module struct {
	Name         string
	Description  string
	Tags         []string
	Dependencies []string
	// Condition gates the whole module. Nil means always.
	Condition condition.Condition
	Actions   []action.Action
	// Dir is the directory relative paths in Actions resolve against.
	Dir string
}

// HasTag reports whether the module carries tag, ignoring case.
func (m Module) HasTag(tag string) bool {
	for _, t := range m.Tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}

// Errors returned by Resolve and Select.
var (
	ErrDuplicateModule  = errors.New("duplicate module name")
	ErrUnknownModule    = errors.New("unknown module")
	ErrMissingDep       = errors.New("missing module dependency")
	ErrCyclicDependency = errors.New("cyclic module dependency")
)

// MissingDependencyError reports a dependency absent from the load set.
type MissingDependencyError struct {
	Module     string
	Dependency string
}

func (e *MissingDependencyError) Error() string {
	return fmt.Sprintf("module %q depends on %q which was not found", e.Module, e.Dependency)
}

// Is matches ErrMissingDep.
func (e *MissingDependencyError) Is(target error) bool {
	return target == ErrMissingDep
}

// CyclicDependencyError carries one dependency cycle. The first name is
// repeated at the end.
type CyclicDependencyError struct {
	Cycle []string
}

func (e *CyclicDependencyError) Error() string {
	return "cyclic dependency detected: " + strings.Join(e.Cycle, " -> ")
}

// Is matches ErrCyclicDependency.
func (e *CyclicDependencyError) Is(target error) bool {
	return target == ErrCyclicDependency
}
