package modulefile

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/dhd-cli/dhd/internal/domain/action"
	"github.com/dhd-cli/dhd/internal/domain/condition"
	"github.com/dhd-cli/dhd/internal/domain/module"
)

func (d document) toModule(name, dir string) (module.Module, error) {
	if d.Name != "" {
		name = d.Name
	}
	m := module.Module{
		Name:         name,
		Description:  d.Description,
		Tags:         d.Tags,
		Dependencies: d.DependsOn,
		Dir:          dir,
	}

	if d.When != nil {
		c, err := d.When.toCondition()
		if err != nil {
			return module.Module{}, fmt.Errorf("when: %w", err)
		}
		m.Condition = c
	}

	for i, raw := range d.Actions {
		a, err := raw.toAction()
		if err != nil {
			return module.Module{}, fmt.Errorf("actions[%d] (%s): %w", i, raw.Type, err)
		}
		m.Actions = append(m.Actions, a)
	}
	return m, nil
}

func (r actionDoc) toAction() (action.Action, error) {
	a, err := r.base()
	if err != nil {
		return nil, err
	}

	switch {
	case len(r.OnlyIf) > 0 && len(r.SkipIf) > 0:
		return nil, errors.New("only_if and skip_if are mutually exclusive")
	case len(r.OnlyIf) > 0:
		conds, err := toConditions(r.OnlyIf)
		if err != nil {
			return nil, fmt.Errorf("only_if: %w", err)
		}
		return action.Conditional{Action: a, Conditions: conds, Policy: action.OnlyIf}, nil
	case len(r.SkipIf) > 0:
		conds, err := toConditions(r.SkipIf)
		if err != nil {
			return nil, fmt.Errorf("skip_if: %w", err)
		}
		return action.Conditional{Action: a, Conditions: conds, Policy: action.SkipIf}, nil
	}
	return a, nil
}

func (r actionDoc) base() (action.Action, error) {
	mode, err := parseMode(r.Mode)
	if err != nil {
		return nil, err
	}

	switch action.Kind(r.Type) {
	case action.KindPackageInstall:
		if len(r.Names) == 0 {
			return nil, errors.New("names is required")
		}
		return action.PackageInstall{Names: r.Names, Manager: r.Manager}, nil

	case action.KindPackageRemove:
		if len(r.Names) == 0 {
			return nil, errors.New("names is required")
		}
		return action.PackageRemove{Names: r.Names, Manager: r.Manager}, nil

	case action.KindExtensions:
		if r.Tool == "" {
			return nil, errors.New("tool is required")
		}
		if len(r.Names) == 0 {
			return nil, errors.New("names is required")
		}
		return action.Extensions{Tool: r.Tool, Names: r.Names}, nil

	case action.KindLinkFile:
		if err := requireFields("source", r.Source, "target", r.Target); err != nil {
			return nil, err
		}
		return action.LinkFile{Source: r.Source, Target: r.Target, Force: r.Force, Backup: r.Backup}, nil

	case action.KindLinkDirectory:
		if err := requireFields("source", r.Source, "target", r.Target); err != nil {
			return nil, err
		}
		return action.LinkDirectory{Source: r.Source, Target: r.Target, Force: r.Force}, nil

	case action.KindCopyFile:
		if err := requireFields("source", r.Source, "target", r.Target); err != nil {
			return nil, err
		}
		return action.CopyFile{Source: r.Source, Target: r.Target, Mode: mode, Backup: r.Backup}, nil

	case action.KindFileWrite:
		if err := requireFields("target", r.Target); err != nil {
			return nil, err
		}
		if r.Content != "" && r.ContentSecret != "" {
			return nil, errors.New("content and content_secret are mutually exclusive")
		}
		return action.FileWrite{
			Target:        r.Target,
			Content:       r.Content,
			ContentSecret: r.ContentSecret,
			Mode:          mode,
			Backup:        r.Backup,
		}, nil

	case action.KindDirectory:
		if err := requireFields("path", r.Path); err != nil {
			return nil, err
		}
		return action.Directory{Path: r.Path, Mode: mode}, nil

	case action.KindExecuteCommand:
		if err := requireFields("command", r.Command); err != nil {
			return nil, err
		}
		return action.ExecuteCommand{
			Shell:     r.Shell,
			Command:   r.Command,
			Args:      r.Args,
			Cwd:       r.Cwd,
			Env:       r.Env,
			SecretEnv: r.SecretEnv,
			Creates:   r.Creates,
			Unless:    r.Unless,
		}, nil

	case action.KindHTTPDownload:
		if err := requireFields("url", r.URL, "target", r.Target); err != nil {
			return nil, err
		}
		return action.HTTPDownload{
			URL:          r.URL,
			Target:       r.Target,
			Checksum:     r.Checksum,
			ChecksumType: r.ChecksumType,
			Mode:         mode,
		}, nil

	case action.KindGitConfig:
		if len(r.Values) == 0 {
			return nil, errors.New("values is required")
		}
		return action.GitConfig{Scope: r.Scope, Values: r.Values}, nil

	case action.KindSystemdService:
		if err := requireFields("name", r.Name, "exec_start", r.ExecStart); err != nil {
			return nil, err
		}
		return action.SystemdService{
			Name:        r.Name,
			Description: r.Description,
			ExecStart:   r.ExecStart,
			Type:        r.ServiceType,
			Scope:       r.Scope,
			Restart:     r.Restart,
			RestartSec:  r.RestartSec,
		}, nil

	case action.KindSystemdSocket:
		if err := requireFields("name", r.Name, "listen_stream", r.ListenStream); err != nil {
			return nil, err
		}
		return action.SystemdSocket{
			Name:         r.Name,
			Description:  r.Description,
			ListenStream: r.ListenStream,
			Scope:        r.Scope,
		}, nil

	case action.KindSystemdManage:
		if err := requireFields("name", r.Name); err != nil {
			return nil, err
		}
		return action.SystemdManage{Name: r.Name, Operation: r.Operation, Scope: r.Scope}, nil

	case action.KindUserGroup:
		if len(r.Groups) == 0 {
			return nil, errors.New("groups is required")
		}
		return action.UserGroup{
			User:    r.User,
			Groups:  r.Groups,
			Replace: r.Append != nil && !*r.Append,
		}, nil

	case action.KindDconfImport:
		if err := requireFields("source", r.Source, "path", r.Path); err != nil {
			return nil, err
		}
		return action.DconfImport{Source: r.Source, Path: r.Path, Backup: r.Backup}, nil

	case action.KindConditional:
		return nil, errors.New(`use only_if or skip_if on the wrapped action instead of type "conditional"`)

	default:
		return nil, fmt.Errorf("unknown action type %q", r.Type)
	}
}

// requireFields takes name/value pairs and reports the first empty value.
func requireFields(pairs ...string) error {
	for i := 0; i+1 < len(pairs); i += 2 {
		if strings.TrimSpace(pairs[i+1]) == "" {
			return fmt.Errorf("%s is required", pairs[i])
		}
	}
	return nil
}

func parseMode(s string) (os.FileMode, error) {
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseUint(s, 8, 32)
	if err != nil || v > 0o7777 {
		return 0, fmt.Errorf("mode %q is not an octal permission", s)
	}
	return os.FileMode(v), nil
}

func toConditions(docs []conditionDoc) ([]condition.Condition, error) {
	out := make([]condition.Condition, 0, len(docs))
	for i, d := range docs {
		c, err := d.toCondition()
		if err != nil {
			return nil, fmt.Errorf("[%d]: %w", i, err)
		}
		out = append(out, c)
	}
	return out, nil
}

func (d conditionDoc) toCondition() (condition.Condition, error) {
	var found []condition.Condition
	add := func(c condition.Condition) { found = append(found, c) }

	if d.AllOf != nil {
		cs, err := toConditions(d.AllOf)
		if err != nil {
			return nil, fmt.Errorf("all_of%w", err)
		}
		add(condition.All(cs...))
	}
	if d.AnyOf != nil {
		cs, err := toConditions(d.AnyOf)
		if err != nil {
			return nil, fmt.Errorf("any_of%w", err)
		}
		add(condition.Any(cs...))
	}
	if d.Not != nil {
		c, err := d.Not.toCondition()
		if err != nil {
			return nil, fmt.Errorf("not: %w", err)
		}
		add(condition.Negate(c))
	}
	if d.FileExists != "" {
		add(condition.FileExists{Path: d.FileExists})
	}
	if d.DirectoryExists != "" {
		add(condition.DirectoryExists{Path: d.DirectoryExists})
	}
	if d.CommandExists != "" {
		add(condition.CommandExists{Command: d.CommandExists})
	}
	if d.CommandSucceeds != nil {
		add(condition.CommandSucceeds{Command: d.CommandSucceeds.Command, Args: d.CommandSucceeds.Args})
	}
	if d.Env != nil {
		add(condition.EnvVar{Name: d.Env.Name, Value: d.Env.Equals})
	}
	if d.Property != nil {
		op, err := condition.ParseOperator(d.Property.Operator)
		if err != nil {
			return nil, fmt.Errorf("property %s: %w", d.Property.Path, err)
		}
		add(condition.Property{Path: d.Property.Path, Operator: op, Value: d.Property.Value})
	}
	if d.SecretExists != "" {
		add(condition.SecretExists{Reference: d.SecretExists})
	}
	if d.OS != "" {
		add(condition.Property{Path: "os.kind", Operator: condition.OpEqualsFold, Value: d.OS})
	}
	if d.Distro != "" {
		add(condition.Property{Path: "os.distro", Operator: condition.OpEqualsFold, Value: d.Distro})
	}
	if d.Arch != "" {
		add(condition.Property{Path: "os.arch", Operator: condition.OpEqualsFold, Value: d.Arch})
	}

	switch len(found) {
	case 0:
		return nil, errors.New("empty condition")
	case 1:
		return found[0], nil
	default:
		return nil, fmt.Errorf("condition sets %d kinds; use all_of to combine them", len(found))
	}
}
