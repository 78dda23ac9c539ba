package files

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dhd-cli/dhd/internal/domain/compiler"
	"github.com/dhd-cli/dhd/internal/ports"
	"github.com/dhd-cli/dhd/internal/provider/stepmeta"
	"github.com/dhd-cli/dhd/internal/validation"
)

const defaultFileMode os.FileMode = 0o644

// Write describes literal content for Target.
type Write struct {
	Target  string
	Content []byte
	Mode    os.FileMode
	Backup  bool
}

// WriteStep writes a file when its content or mode differ.
type WriteStep struct {
	stepmeta.Meta
	w  Write
	fs ports.FileSystem
}

// NewWriteStep creates a new WriteStep.
func NewWriteStep(module string, w Write, fs ports.FileSystem) (*WriteStep, error) {
	meta, err := stepmeta.New(module, "write", w.Target)
	if err != nil {
		return nil, err
	}
	return &WriteStep{Meta: meta, w: w, fs: fs}, nil
}

// Check compares the current content and mode.
func (s *WriteStep) Check(_ compiler.RunContext) (compiler.StepStatus, error) {
	current, err := s.fs.ReadFile(s.w.Target)
	if errors.Is(err, os.ErrNotExist) {
		return compiler.StatusNeedsApply, nil
	}
	if err != nil {
		return compiler.StatusUnknown, err
	}
	if !bytes.Equal(current, s.w.Content) {
		return compiler.StatusNeedsApply, nil
	}
	return modeStatus(s.fs, s.w.Target, s.w.Mode)
}

// Apply writes the file.
func (s *WriteStep) Apply(_ compiler.RunContext) error {
	if err := validation.ValidatePath(s.w.Target); err != nil {
		return fmt.Errorf("invalid target path: %w", err)
	}
	if s.w.Backup {
		if err := backup(s.fs, s.w.Target); err != nil {
			return err
		}
	}
	if err := s.fs.MkdirAll(filepath.Dir(s.w.Target), 0o755); err != nil {
		return fmt.Errorf("failed to create parent of %s: %w", s.w.Target, err)
	}

	mode := s.w.Mode
	if mode == 0 {
		mode = defaultFileMode
	}
	if err := s.fs.WriteFile(s.w.Target, s.w.Content, mode); err != nil {
		return fmt.Errorf("failed to write %s: %w", s.w.Target, err)
	}
	return nil
}

// Describe returns a one-line summary. Content is never included.
func (s *WriteStep) Describe() string {
	return "write " + s.w.Target
}

// DirectoryStep ensures a directory exists.
type DirectoryStep struct {
	stepmeta.Meta
	path string
	mode os.FileMode
	fs   ports.FileSystem
}

// NewDirectoryStep creates a new DirectoryStep.
func NewDirectoryStep(module, path string, mode os.FileMode, fs ports.FileSystem) (*DirectoryStep, error) {
	meta, err := stepmeta.New(module, "dir", path)
	if err != nil {
		return nil, err
	}
	if mode == 0 {
		mode = 0o755
	}
	return &DirectoryStep{Meta: meta, path: path, mode: mode, fs: fs}, nil
}

// Check determines if the directory exists.
func (s *DirectoryStep) Check(_ compiler.RunContext) (compiler.StepStatus, error) {
	if s.fs.IsDir(s.path) {
		return compiler.StatusSatisfied, nil
	}
	if s.fs.Exists(s.path) {
		return compiler.StatusUnknown, fmt.Errorf("%s exists and is not a directory", s.path)
	}
	return compiler.StatusNeedsApply, nil
}

// Apply creates the directory and its parents.
func (s *DirectoryStep) Apply(_ compiler.RunContext) error {
	if err := validation.ValidatePath(s.path); err != nil {
		return err
	}
	if err := s.fs.MkdirAll(s.path, s.mode); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", s.path, err)
	}
	return nil
}

// Describe returns a one-line summary.
func (s *DirectoryStep) Describe() string {
	return "create directory " + s.path
}
