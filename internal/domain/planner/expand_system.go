package planner

import (
	"context"
	"errors"
	"strings"

	"github.com/dhd-cli/dhd/internal/domain/action"
	"github.com/dhd-cli/dhd/internal/provider/dconf"
	"github.com/dhd-cli/dhd/internal/provider/packages"
	"github.com/dhd-cli/dhd/internal/provider/systemd"
	"github.com/dhd-cli/dhd/internal/provider/users"
)

func (p *Planner) packageRemove(_ context.Context, req request, a action.Action) (Expansion, error) {
	pr := a.(action.PackageRemove)
	if len(pr.Names) == 0 {
		return Expansion{}, nil
	}
	mgr, err := packages.Resolve(p.runner, pr.Manager)
	if err != nil {
		return Expansion{}, err
	}
	return many(packages.RemoveSteps(req.module, mgr, pr.Names, p.runner, p.asRoot))
}

func (p *Planner) systemdService(_ context.Context, req request, a action.Action) (Expansion, error) {
	s := a.(action.SystemdService)
	content, err := systemd.Service{
		Description: s.Description,
		Type:        s.Type,
		ExecStart:   s.ExecStart,
		Restart:     s.Restart,
		RestartSec:  s.RestartSec,
	}.Render()
	if err != nil {
		return Expansion{}, err
	}
	return p.unit(req, s.Name, s.Scope, content)
}

func (p *Planner) systemdSocket(_ context.Context, req request, a action.Action) (Expansion, error) {
	s := a.(action.SystemdSocket)
	content, err := systemd.Socket{Description: s.Description, ListenStream: s.ListenStream}.Render()
	if err != nil {
		return Expansion{}, err
	}
	name := s.Name
	if name != "" && !strings.HasSuffix(name, ".socket") {
		name += ".socket"
	}
	return p.unit(req, name, s.Scope, content)
}

func (p *Planner) unit(req request, name, rawScope string, content []byte) (Expansion, error) {
	scope, err := systemd.ParseScope(rawScope)
	if err != nil {
		return Expansion{}, err
	}
	return single(systemd.NewUnitStep(req.module, systemd.Unit{
		Name:    name,
		Scope:   scope,
		Dir:     systemd.UnitDir(scope, p.configDir),
		Content: content,
	}, p.fs, p.runner, p.asRoot))
}

func (p *Planner) systemdManage(_ context.Context, req request, a action.Action) (Expansion, error) {
	m := a.(action.SystemdManage)
	scope, err := systemd.ParseScope(m.Scope)
	if err != nil {
		return Expansion{}, err
	}
	op, err := systemd.ParseOperation(m.Operation)
	if err != nil {
		return Expansion{}, err
	}
	return single(systemd.NewManageStep(req.module, m.Name, op, scope, p.runner, p.asRoot))
}

func (p *Planner) userGroup(_ context.Context, req request, a action.Action) (Expansion, error) {
	g := a.(action.UserGroup)
	name := g.User
	if name == "" || name == "current" || name == "${USER}" {
		name = p.username
	}
	if name == "" {
		return Expansion{}, errors.New("cannot determine the current user")
	}
	return single(users.NewGroupsStep(req.module, users.Membership{
		User:    name,
		Groups:  g.Groups,
		Replace: g.Replace,
	}, p.runner, p.asRoot))
}

func (p *Planner) dconfImport(_ context.Context, req request, a action.Action) (Expansion, error) {
	d := a.(action.DconfImport)
	return single(dconf.NewLoadStep(req.module, dconf.Import{
		Source: p.source(d.Source, req.baseDir),
		Path:   d.Path,
		Backup: d.Backup,
	}, p.fs, p.runner))
}
