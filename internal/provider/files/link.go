// Package files provides steps that manage files, symlinks and directories.
package files

import (
	"fmt"
	"path/filepath"

	"github.com/dhd-cli/dhd/internal/domain/compiler"
	"github.com/dhd-cli/dhd/internal/ports"
	"github.com/dhd-cli/dhd/internal/provider/stepmeta"
	"github.com/dhd-cli/dhd/internal/validation"
)

// Link describes a symlink at Target pointing to Source. Both are absolute.
type Link struct {
	Source string
	Target string
	// Force replaces an existing target.
	Force bool
	// Backup moves an existing target to Target+".bak" first.
	Backup bool
	// Directory links a whole directory tree.
	Directory bool
}

// LinkStep represents a symlink creation step.
type LinkStep struct {
	stepmeta.Meta
	link Link
	fs   ports.FileSystem
}

// NewLinkStep creates a new LinkStep.
func NewLinkStep(module string, link Link, fs ports.FileSystem) (*LinkStep, error) {
	kind := "link"
	if link.Directory {
		kind = "link-dir"
	}
	meta, err := stepmeta.New(module, kind, link.Target)
	if err != nil {
		return nil, err
	}
	return &LinkStep{Meta: meta, link: link, fs: fs}, nil
}

// Check determines if the symlink is already correct.
func (s *LinkStep) Check(_ compiler.RunContext) (compiler.StepStatus, error) {
	isLink, target := s.fs.IsSymlink(s.link.Target)
	return compiler.StatusFor(!isLink || target != s.link.Source), nil
}

// Apply creates the symlink, clearing the way first when allowed.
func (s *LinkStep) Apply(_ compiler.RunContext) error {
	if err := validation.ValidatePath(s.link.Source); err != nil {
		return fmt.Errorf("invalid source path: %w", err)
	}
	if err := validation.ValidatePath(s.link.Target); err != nil {
		return fmt.Errorf("invalid target path: %w", err)
	}
	if !s.fs.Exists(s.link.Source) {
		return fmt.Errorf("link source %s does not exist", s.link.Source)
	}
	if s.link.Directory && !s.fs.IsDir(s.link.Source) {
		return fmt.Errorf("link source %s is not a directory", s.link.Source)
	}

	if err := s.clearTarget(); err != nil {
		return err
	}
	if err := s.fs.MkdirAll(filepath.Dir(s.link.Target), 0o755); err != nil {
		return fmt.Errorf("failed to create parent of %s: %w", s.link.Target, err)
	}
	if err := s.fs.CreateSymlink(s.link.Source, s.link.Target); err != nil {
		return fmt.Errorf("failed to create symlink: %w", err)
	}
	return nil
}

func (s *LinkStep) clearTarget() error {
	dest := s.link.Target
	if !s.fs.Exists(dest) {
		return nil
	}
	// A stale symlink is ours to replace.
	if isLink, _ := s.fs.IsSymlink(dest); isLink {
		if err := s.fs.Remove(dest); err != nil {
			return fmt.Errorf("failed to remove %s: %w", dest, err)
		}
		return nil
	}

	switch {
	case s.link.Backup, s.link.Force && s.fs.IsDir(dest):
		if err := s.fs.Rename(dest, dest+".bak"); err != nil {
			return fmt.Errorf("failed to backup %s: %w", dest, err)
		}
	case s.link.Force:
		if err := s.fs.Remove(dest); err != nil {
			return fmt.Errorf("failed to remove %s: %w", dest, err)
		}
	default:
		return fmt.Errorf("destination exists: %s (use force or backup)", dest)
	}
	return nil
}

// Describe returns a one-line summary.
func (s *LinkStep) Describe() string {
	return fmt.Sprintf("link %s -> %s", s.link.Target, s.link.Source)
}
