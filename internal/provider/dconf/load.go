// Package dconf loads GNOME settings from keyfiles.
package dconf

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/ini.v1"

	"github.com/dhd-cli/dhd/internal/domain/compiler"
	"github.com/dhd-cli/dhd/internal/ports"
	"github.com/dhd-cli/dhd/internal/provider/commandutil"
	"github.com/dhd-cli/dhd/internal/provider/stepmeta"
	"github.com/dhd-cli/dhd/internal/validation"
)

// NormalizePath makes p an absolute dconf directory: one leading and one
// trailing slash.
func NormalizePath(p string) string {
	p = strings.Trim(strings.TrimSpace(p), "/")
	if p == "" {
		return "/"
	}
	return "/" + p + "/"
}

// Import describes a keyfile loaded below a dconf directory.
type Import struct {
	Source string
	Path   string
	Backup bool
}

// LoadStep runs "dconf load" when a keyfile is not reflected in the
// database.
type LoadStep struct {
	stepmeta.Meta
	imp    Import
	fs     ports.FileSystem
	runner ports.CommandRunner
	now    func() time.Time
}

// NewLoadStep creates a new LoadStep. Path is normalized.
func NewLoadStep(module string, imp Import, fs ports.FileSystem, runner ports.CommandRunner) (*LoadStep, error) {
	imp.Path = NormalizePath(imp.Path)
	if err := validation.ValidateDconfPath(imp.Path); err != nil {
		return nil, err
	}
	if err := validation.ValidatePath(imp.Source); err != nil {
		return nil, fmt.Errorf("invalid source path: %w", err)
	}
	meta, err := stepmeta.New(module, "dconf", imp.Path)
	if err != nil {
		return nil, err
	}
	return &LoadStep{Meta: meta, imp: imp, fs: fs, runner: runner, now: time.Now}, nil
}

// Check needs apply when any key of the keyfile is missing from, or
// differs in, the current dump. Values compare as text, so a keyfile should
// use the formatting dconf dump prints.
func (s *LoadStep) Check(ctx compiler.RunContext) (compiler.StepStatus, error) {
	want, err := s.fs.ReadFile(s.imp.Source)
	if err != nil {
		return compiler.StatusUnknown, fmt.Errorf("read %s: %w", s.imp.Source, err)
	}
	res, err := commandutil.Run(ctx.Context(), s.runner, "dconf", "dump", s.imp.Path)
	if err != nil {
		return compiler.StatusUnknown, err
	}
	ok, err := Contains([]byte(res.Stdout), want)
	if err != nil {
		return compiler.StatusUnknown, fmt.Errorf("%s: %w", s.imp.Source, err)
	}
	return compiler.StatusFor(!ok), nil
}

// Apply backs up the directory when asked and loads the keyfile.
func (s *LoadStep) Apply(ctx compiler.RunContext) error {
	if s.imp.Backup {
		if err := s.backup(ctx); err != nil {
			return err
		}
	}
	_, err := commandutil.Run(ctx.Context(), s.runner,
		"sh", "-c", `dconf load "$1" < "$2"`, "sh", s.imp.Path, s.imp.Source)
	return err
}

func (s *LoadStep) backup(ctx compiler.RunContext) error {
	res, err := commandutil.Run(ctx.Context(), s.runner, "dconf", "dump", s.imp.Path)
	if err != nil {
		return err
	}
	if strings.TrimSpace(res.Stdout) == "" {
		return nil
	}
	name := fmt.Sprintf("dconf-backup%s%s.ini",
		strings.ReplaceAll(s.imp.Path, "/", "_"), s.now().Format("20060102_150405"))
	dest := filepath.Join(os.TempDir(), name)
	if err := s.fs.WriteFile(dest, []byte(res.Stdout), 0o600); err != nil {
		return fmt.Errorf("failed to back up %s: %w", s.imp.Path, err)
	}
	return nil
}

// Describe returns a one-line summary.
func (s *LoadStep) Describe() string {
	return fmt.Sprintf("load %s into dconf %s", s.imp.Source, s.imp.Path)
}

var keyfileOptions = ini.LoadOptions{
	KeyValueDelimiters:      "=",
	IgnoreInlineComment:     true,
	PreserveSurroundedQuote: true,
	SkipUnrecognizableLines: true,
}

// Contains reports whether every key of the keyfile want is present with
// the same value in the keyfile have.
func Contains(have, want []byte) (bool, error) {
	h, err := ini.LoadSources(keyfileOptions, have)
	if err != nil {
		return false, fmt.Errorf("parse dconf dump: %w", err)
	}
	w, err := ini.LoadSources(keyfileOptions, want)
	if err != nil {
		return false, fmt.Errorf("parse keyfile: %w", err)
	}

	for _, sec := range w.Sections() {
		if len(sec.Keys()) == 0 {
			continue
		}
		got, err := h.GetSection(sec.Name())
		if err != nil {
			return false, nil
		}
		for _, key := range sec.Keys() {
			if !got.HasKey(key.Name()) || strings.TrimSpace(got.Key(key.Name()).Value()) != strings.TrimSpace(key.Value()) {
				return false, nil
			}
		}
	}
	return true, nil
}
