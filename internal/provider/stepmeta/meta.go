// Package stepmeta carries the identity every step kind shares.
package stepmeta

import (
	"github.com/dhd-cli/dhd/internal/domain/compiler"
)

// Meta implements the identity half of compiler.Step. Step kinds embed it.
type Meta struct {
	id     compiler.StepID
	module string
	deps   []compiler.StepID
}

// New builds a Meta whose ID is module:kind:discriminator. Segments are
// sanitized so arbitrary paths and package names are accepted.
func New(module, kind, discriminator string, deps ...compiler.StepID) (Meta, error) {
	id, err := compiler.JoinStepID(module, kind, discriminator)
	if err != nil {
		return Meta{}, err
	}
	return Meta{id: id, module: module, deps: deps}, nil
}

// ID returns the step identifier.
func (m Meta) ID() compiler.StepID {
	return m.id
}

// Module returns the owning module.
func (m Meta) Module() string {
	return m.module
}

// DependsOn returns the step dependencies.
func (m Meta) DependsOn() []compiler.StepID {
	return m.deps
}
