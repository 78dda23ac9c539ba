// Package condition evaluates boolean predicate trees that gate modules and
// actions.
//
// A Condition is a closed set of node types: combinators (AllOf, AnyOf, Not)
// own their children, and leaves perform one external check. Trees are built
// bottom-up, so they cannot contain cycles.
package condition

import (
	"fmt"
	"strings"
)

// Condition is a node of a predicate tree. String renders the node for
// diagnostics.
type Condition interface {
	fmt.Stringer
	isCondition()
}

// AllOf holds when every child holds. An empty AllOf is true.
type AllOf struct {
	Conditions []Condition
}

// AnyOf holds when at least one child holds. An empty AnyOf is false.
type AnyOf struct {
	Conditions []Condition
}

// Not negates its child.
type Not struct {
	Condition Condition
}

// FileExists holds when Path is a regular file.
type FileExists struct {
	Path string
}

// DirectoryExists holds when Path is a directory.
type DirectoryExists struct {
	Path string
}

// CommandExists holds when Command resolves on PATH.
type CommandExists struct {
	Command string
}

// CommandSucceeds holds when Command exits 0. A command that cannot be
// started is an evaluation error, not a false result.
type CommandSucceeds struct {
	Command string
	Args    []string
}

// EnvVar holds when Name is set and, if Value is non-nil, equal to *Value.
type EnvVar struct {
	Name  string
	Value *string
}

// Property compares a system property such as "os.distro" against Value.
// An unknown property never holds.
type Property struct {
	Path     string
	Operator Operator
	Value    string
}

// SecretExists holds when Reference resolves to a value.
type SecretExists struct {
	Reference string
}

func (AllOf) isCondition()           {}
func (AnyOf) isCondition()           {}
func (Not) isCondition()             {}
func (FileExists) isCondition()      {}
func (DirectoryExists) isCondition() {}
func (CommandExists) isCondition()   {}
func (CommandSucceeds) isCondition() {}
func (EnvVar) isCondition()          {}
func (Property) isCondition()        {}
func (SecretExists) isCondition()    {}

func (c AllOf) String() string {
	return "all of: [" + joinConditions(c.Conditions) + "]"
}

func (c AnyOf) String() string {
	return "any of: [" + joinConditions(c.Conditions) + "]"
}

func (c Not) String() string {
	if c.Condition == nil {
		return "not: <nil>"
	}
	return "not: " + c.Condition.String()
}

func (c FileExists) String() string      { return "file exists: " + c.Path }
func (c DirectoryExists) String() string { return "directory exists: " + c.Path }
func (c CommandExists) String() string   { return "command exists: " + c.Command }

func (c CommandSucceeds) String() string {
	if len(c.Args) == 0 {
		return "command succeeds: " + c.Command
	}
	return "command succeeds: " + c.Command + " " + strings.Join(c.Args, " ")
}

func (c EnvVar) String() string {
	if c.Value == nil {
		return "environment variable " + c.Name + " is set"
	}
	return "environment variable " + c.Name + " = " + *c.Value
}

func (c Property) String() string {
	return fmt.Sprintf("system property %s %s %s", c.Path, c.Operator.Symbol(), c.Value)
}

func (c SecretExists) String() string { return "secret exists: " + c.Reference }

func joinConditions(cs []Condition) string {
	parts := make([]string, len(cs))
	for i, c := range cs {
		if c == nil {
			parts[i] = "<nil>"
			continue
		}
		parts[i] = c.String()
	}
	return strings.Join(parts, ", ")
}

// Describe renders c, treating nil as the absent condition.
func Describe(c Condition) string {
	if c == nil {
		return "always"
	}
	return c.String()
}

// All builds an AllOf.
func All(cs ...Condition) AllOf { return AllOf{Conditions: cs} }

// Any builds an AnyOf.
func Any(cs ...Condition) AnyOf { return AnyOf{Conditions: cs} }

// Negate builds a Not.
func Negate(c Condition) Not { return Not{Condition: c} }

// EnvEquals builds an EnvVar that requires a specific value.
func EnvEquals(name, value string) EnvVar { return EnvVar{Name: name, Value: &value} }

// EnvSet builds an EnvVar that only requires presence.
func EnvSet(name string) EnvVar { return EnvVar{Name: name} }
