// Package users manages supplementary group membership.
package users

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/dhd-cli/dhd/internal/domain/compiler"
	"github.com/dhd-cli/dhd/internal/ports"
	"github.com/dhd-cli/dhd/internal/provider/commandutil"
	"github.com/dhd-cli/dhd/internal/provider/stepmeta"
	"github.com/dhd-cli/dhd/internal/validation"
)

// Membership is the group set wanted for User. With Replace the
// supplementary groups become exactly Groups; otherwise Groups are added.
type Membership struct {
	User    string
	Groups  []string
	Replace bool
}

// GroupsStep brings a user's supplementary groups in line with a Membership.
type GroupsStep struct {
	stepmeta.Meta
	m      Membership
	runner ports.CommandRunner
	asRoot bool
}

// NewGroupsStep creates a new GroupsStep.
func NewGroupsStep(module string, m Membership, runner ports.CommandRunner, asRoot bool) (*GroupsStep, error) {
	if err := validation.ValidateUserName(m.User); err != nil {
		return nil, err
	}
	if len(m.Groups) == 0 && !m.Replace {
		return nil, fmt.Errorf("no groups given for user %s", m.User)
	}
	for _, g := range m.Groups {
		if err := validation.ValidateUserName(g); err != nil {
			return nil, err
		}
	}
	groups := slices.Clone(m.Groups)
	slices.Sort(groups)
	m.Groups = slices.Compact(groups)

	meta, err := stepmeta.New(module, "groups", m.User)
	if err != nil {
		return nil, err
	}
	return &GroupsStep{Meta: meta, m: m, runner: runner, asRoot: asRoot}, nil
}

// Check compares the groups reported by id.
func (s *GroupsStep) Check(ctx compiler.RunContext) (compiler.StepStatus, error) {
	current, err := s.supplementary(ctx.Context())
	if err != nil {
		return compiler.StatusUnknown, err
	}
	if s.m.Replace {
		return compiler.StatusFor(!slices.Equal(current, s.m.Groups)), nil
	}
	for _, g := range s.m.Groups {
		if _, found := slices.BinarySearch(current, g); !found {
			return compiler.StatusNeedsApply, nil
		}
	}
	return compiler.StatusSatisfied, nil
}

// supplementary returns the sorted groups of the user without its primary
// group.
func (s *GroupsStep) supplementary(ctx context.Context) ([]string, error) {
	all, err := commandutil.Run(ctx, s.runner, "id", "-nG", s.m.User)
	if err != nil {
		return nil, fmt.Errorf("look up groups of %s: %w", s.m.User, err)
	}
	primary, err := commandutil.Run(ctx, s.runner, "id", "-gn", s.m.User)
	if err != nil {
		return nil, fmt.Errorf("look up primary group of %s: %w", s.m.User, err)
	}
	skip := strings.TrimSpace(primary.Stdout)

	var groups []string
	for _, g := range strings.Fields(all.Stdout) {
		if g != skip {
			groups = append(groups, g)
		}
	}
	slices.Sort(groups)
	return slices.Compact(groups), nil
}

// Apply runs usermod.
func (s *GroupsStep) Apply(ctx compiler.RunContext) error {
	argv := []string{"usermod"}
	if !s.m.Replace {
		argv = append(argv, "-a")
	}
	argv = append(argv, "-G", strings.Join(s.m.Groups, ","), s.m.User)

	name, args := argv[0], argv[1:]
	if !s.asRoot {
		name, args = "sudo", argv
	}
	_, err := commandutil.Run(ctx.Context(), s.runner, name, args...)
	return err
}

// Describe returns a one-line summary.
func (s *GroupsStep) Describe() string {
	verb := "add"
	if s.m.Replace {
		verb = "set"
	}
	return fmt.Sprintf("%s groups of %s: %s", verb, s.m.User, strings.Join(s.m.Groups, ", "))
}
