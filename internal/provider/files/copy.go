package files

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dhd-cli/dhd/internal/domain/compiler"
	"github.com/dhd-cli/dhd/internal/ports"
	"github.com/dhd-cli/dhd/internal/provider/stepmeta"
	"github.com/dhd-cli/dhd/internal/validation"
)

// Copy describes copying Source to Target. Zero Mode keeps the source mode.
type Copy struct {
	Source string
	Target string
	Mode   os.FileMode
	Backup bool
}

// CopyStep represents a file copy step.
type CopyStep struct {
	stepmeta.Meta
	cp Copy
	fs ports.FileSystem
}

// NewCopyStep creates a new CopyStep.
func NewCopyStep(module string, cp Copy, fs ports.FileSystem) (*CopyStep, error) {
	meta, err := stepmeta.New(module, "copy", cp.Target)
	if err != nil {
		return nil, err
	}
	return &CopyStep{Meta: meta, cp: cp, fs: fs}, nil
}

// Check compares content hashes and, when set, the mode.
func (s *CopyStep) Check(_ compiler.RunContext) (compiler.StepStatus, error) {
	if !s.fs.Exists(s.cp.Target) {
		return compiler.StatusNeedsApply, nil
	}

	srcHash, err := s.fs.FileHash(s.cp.Source)
	if err != nil {
		return compiler.StatusUnknown, err
	}
	destHash, err := s.fs.FileHash(s.cp.Target)
	if err != nil {
		return compiler.StatusUnknown, err
	}
	if srcHash != destHash {
		return compiler.StatusNeedsApply, nil
	}
	return modeStatus(s.fs, s.cp.Target, s.cp.Mode)
}

// Apply copies the file.
func (s *CopyStep) Apply(_ compiler.RunContext) error {
	if err := validation.ValidatePath(s.cp.Source); err != nil {
		return fmt.Errorf("invalid source path: %w", err)
	}
	if err := validation.ValidatePath(s.cp.Target); err != nil {
		return fmt.Errorf("invalid target path: %w", err)
	}

	if s.cp.Backup {
		if err := backup(s.fs, s.cp.Target); err != nil {
			return err
		}
	}
	if err := s.fs.MkdirAll(filepath.Dir(s.cp.Target), 0o755); err != nil {
		return fmt.Errorf("failed to create parent of %s: %w", s.cp.Target, err)
	}
	if err := s.fs.CopyFile(s.cp.Source, s.cp.Target); err != nil {
		return fmt.Errorf("failed to copy file: %w", err)
	}
	if s.cp.Mode != 0 {
		if err := s.fs.Chmod(s.cp.Target, s.cp.Mode); err != nil {
			return fmt.Errorf("failed to chmod %s: %w", s.cp.Target, err)
		}
	}
	return nil
}

// Describe returns a one-line summary.
func (s *CopyStep) Describe() string {
	return fmt.Sprintf("copy %s to %s", s.cp.Source, s.cp.Target)
}

// backup moves an existing regular file out of the way.
func backup(fs ports.FileSystem, path string) error {
	if !fs.Exists(path) {
		return nil
	}
	if isLink, _ := fs.IsSymlink(path); isLink {
		return nil
	}
	if err := fs.Rename(path, path+".bak"); err != nil {
		return fmt.Errorf("failed to backup %s: %w", path, err)
	}
	return nil
}

func modeStatus(fs ports.FileSystem, path string, want os.FileMode) (compiler.StepStatus, error) {
	if want == 0 {
		return compiler.StatusSatisfied, nil
	}
	info, err := fs.GetFileInfo(path)
	if err != nil {
		return compiler.StatusUnknown, err
	}
	return compiler.StatusFor(info.Mode.Perm() != want.Perm()), nil
}
