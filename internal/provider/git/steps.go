package git

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/dhd-cli/dhd/internal/domain/compiler"
	"github.com/dhd-cli/dhd/internal/ports"
	"github.com/dhd-cli/dhd/internal/provider/commandutil"
	"github.com/dhd-cli/dhd/internal/provider/stepmeta"
	"github.com/dhd-cli/dhd/internal/validation"
)

// ConfigStep sets one key in a git config file.
type ConfigStep struct {
	stepmeta.Meta
	file   string
	key    string
	value  string
	runner ports.CommandRunner
	fs     ports.FileSystem
}

// NewConfigSteps returns one step per key, ordered by key.
func NewConfigSteps(module, file string, values map[string]string, runner ports.CommandRunner, fs ports.FileSystem) ([]compiler.Step, error) {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	steps := make([]compiler.Step, 0, len(keys))
	for _, k := range keys {
		if err := validation.ValidateGitConfigKey(k); err != nil {
			return nil, err
		}
		if err := validation.ValidateGitConfigValue(values[k]); err != nil {
			return nil, fmt.Errorf("%s: %w", k, err)
		}
		meta, err := stepmeta.New(module, "git-config", file+"/"+k)
		if err != nil {
			return nil, err
		}
		steps = append(steps, &ConfigStep{Meta: meta, file: file, key: k, value: values[k], runner: runner, fs: fs})
	}
	return steps, nil
}

// Check reads the config file and compares the current value.
func (s *ConfigStep) Check(_ compiler.RunContext) (compiler.StepStatus, error) {
	content, err := s.fs.ReadFile(s.file)
	if errors.Is(err, os.ErrNotExist) {
		return compiler.StatusNeedsApply, nil
	}
	if err != nil {
		return compiler.StatusUnknown, err
	}
	current, found, err := Lookup(content, s.key)
	if err != nil {
		return compiler.StatusUnknown, err
	}
	return compiler.StatusFor(!found || current != s.value), nil
}

// Apply writes the key with git itself so the file keeps git's formatting.
func (s *ConfigStep) Apply(ctx compiler.RunContext) error {
	_, err := commandutil.Run(ctx.Context(), s.runner, "git", "config", "--file", s.file, s.key, s.value)
	return err
}

// Describe returns a one-line summary.
func (s *ConfigStep) Describe() string {
	return fmt.Sprintf("git config %s = %q in %s", s.key, s.value, s.file)
}
