package planner

import (
	"context"
	"errors"
	"fmt"

	"github.com/dhd-cli/dhd/internal/domain/action"
	"github.com/dhd-cli/dhd/internal/domain/compiler"
	"github.com/dhd-cli/dhd/internal/domain/condition"
	"github.com/dhd-cli/dhd/internal/ports"
	"github.com/dhd-cli/dhd/internal/provider/command"
	"github.com/dhd-cli/dhd/internal/provider/download"
	"github.com/dhd-cli/dhd/internal/provider/extensions"
	"github.com/dhd-cli/dhd/internal/provider/files"
	"github.com/dhd-cli/dhd/internal/provider/git"
	"github.com/dhd-cli/dhd/internal/provider/packages"
)

func single(step compiler.Step, err error) (Expansion, error) {
	if err != nil {
		return Expansion{}, err
	}
	return Expansion{Steps: []compiler.Step{step}}, nil
}

func many(steps []compiler.Step, err error) (Expansion, error) {
	if err != nil {
		return Expansion{}, err
	}
	return Expansion{Steps: steps}, nil
}

func (p *Planner) packageInstall(_ context.Context, req request, a action.Action) (Expansion, error) {
	pi := a.(action.PackageInstall)
	if len(pi.Names) == 0 {
		return Expansion{}, nil
	}
	mgr, err := packages.Resolve(p.runner, pi.Manager)
	if err != nil {
		return Expansion{}, err
	}
	return many(packages.Steps(req.module, mgr, pi.Names, p.runner, p.asRoot))
}

func (p *Planner) extensions(_ context.Context, req request, a action.Action) (Expansion, error) {
	ext := a.(action.Extensions)
	tool, ok := extensions.Lookup(ext.Tool)
	if !ok {
		return Expansion{}, fmt.Errorf("unsupported extension tool %q (supported: %v)", ext.Tool, extensions.Tools())
	}
	return many(extensions.NewSteps(req.module, tool, ext.Names, p.runner))
}

func (p *Planner) linkFile(_ context.Context, req request, a action.Action) (Expansion, error) {
	l := a.(action.LinkFile)
	return single(files.NewLinkStep(req.module, files.Link{
		Source: p.source(l.Source, req.baseDir),
		Target: p.target(l.Target, req.baseDir),
		Force:  l.Force,
		Backup: l.Backup,
	}, p.fs))
}

func (p *Planner) linkDirectory(_ context.Context, req request, a action.Action) (Expansion, error) {
	l := a.(action.LinkDirectory)
	return single(files.NewLinkStep(req.module, files.Link{
		Source:    p.source(l.Source, req.baseDir),
		Target:    p.target(l.Target, req.baseDir),
		Force:     l.Force,
		Directory: true,
	}, p.fs))
}

func (p *Planner) copyFile(_ context.Context, req request, a action.Action) (Expansion, error) {
	c := a.(action.CopyFile)
	return single(files.NewCopyStep(req.module, files.Copy{
		Source: p.source(c.Source, req.baseDir),
		Target: p.target(c.Target, req.baseDir),
		Mode:   c.Mode,
		Backup: c.Backup,
	}, p.fs))
}

func (p *Planner) fileWrite(_ context.Context, req request, a action.Action) (Expansion, error) {
	w := a.(action.FileWrite)
	if w.ContentSecret != "" {
		return Expansion{}, fmt.Errorf("secret %s was not resolved before planning", w.ContentSecret)
	}
	return single(files.NewWriteStep(req.module, files.Write{
		Target:  p.target(w.Target, req.baseDir),
		Content: []byte(w.Content),
		Mode:    w.Mode,
		Backup:  w.Backup,
	}, p.fs))
}

func (p *Planner) directory(_ context.Context, req request, a action.Action) (Expansion, error) {
	d := a.(action.Directory)
	return single(files.NewDirectoryStep(req.module, p.target(d.Path, req.baseDir), d.Mode, p.fs))
}

func (p *Planner) executeCommand(_ context.Context, req request, a action.Action) (Expansion, error) {
	c := a.(action.ExecuteCommand)
	if len(c.SecretEnv) > 0 {
		return Expansion{}, errors.New("secret environment was not resolved before planning")
	}
	dir := req.baseDir
	if c.Cwd != "" {
		dir = p.resolve(c.Cwd, req.baseDir)
	}
	spec := command.Spec{
		Shell:   c.Shell,
		Command: c.Command,
		Args:    c.Args,
		Dir:     dir,
		Env:     c.Env,
		Unless:  c.Unless,
	}
	if c.Creates != "" {
		spec.Creates = p.resolve(c.Creates, dir)
	}
	return single(command.NewRunStep(req.module, spec, p.runner, p.fs))
}

func (p *Planner) httpDownload(_ context.Context, req request, a action.Action) (Expansion, error) {
	d := a.(action.HTTPDownload)
	if p.downloader == nil {
		return Expansion{}, errors.New("no downloader configured")
	}
	return single(download.NewStep(req.module, download.File{
		URL:          d.URL,
		Target:       p.target(d.Target, req.baseDir),
		Checksum:     d.Checksum,
		ChecksumType: d.ChecksumType,
		Mode:         d.Mode,
	}, p.downloader, p.fs))
}

func (p *Planner) gitConfig(_ context.Context, req request, a action.Action) (Expansion, error) {
	g := a.(action.GitConfig)
	file := p.resolve(git.ScopePath(g.Scope, p.home), req.baseDir)
	return many(git.NewConfigSteps(req.module, file, g.Values, p.runner, p.fs))
}

// conditional evaluates the gate now. A failed evaluation is reported as a
// diagnostic and yields no steps.
func (p *Planner) conditional(ctx context.Context, req request, a action.Action) (Expansion, error) {
	c := a.(action.Conditional)
	if c.Action == nil {
		return Expansion{}, errors.New("conditional has no action")
	}
	if c.Policy != action.OnlyIf && c.Policy != action.SkipIf {
		return Expansion{}, fmt.Errorf("unknown conditional policy %q", c.Policy)
	}

	gate := c.Gate()
	ok, err := p.evaluator.WithBaseDir(req.baseDir).Evaluate(ctx, gate)
	if err != nil {
		diag := Diagnostic{
			Severity:  SeverityWarning,
			Module:    req.module,
			Action:    c.Action.Describe(),
			Condition: condition.Describe(gate),
			Err:       err,
		}
		if p.logger != nil {
			p.logger.Warn(ctx, "condition evaluation failed, action not planned",
				ports.F("module", req.module),
				ports.F("action", diag.Action),
				ports.F("condition", diag.Condition),
				ports.F("error", err.Error()),
			)
		}
		return Expansion{Diagnostics: []Diagnostic{diag}}, nil
	}
	if !ok {
		if p.logger != nil {
			p.logger.Debug(ctx, "conditional action not planned",
				ports.F("module", req.module),
				ports.F("action", c.Action.Describe()),
			)
		}
		return Expansion{}, nil
	}

	inner, err := action.ResolveSecrets(ctx, c.Action, p.secrets)
	if err != nil {
		return Expansion{}, err
	}
	expand, ok := p.expanders[inner.Kind()]
	if !ok {
		return Expansion{}, fmt.Errorf("unsupported action kind %q", inner.Kind())
	}
	return expand(ctx, req, inner)
}
