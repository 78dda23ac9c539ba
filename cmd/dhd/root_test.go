package main

import (
	"bytes"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dhd-cli/dhd/internal/adapters/modulefile"
	"github.com/dhd-cli/dhd/internal/domain/compiler"
	"github.com/dhd-cli/dhd/internal/domain/execution"
	"github.com/dhd-cli/dhd/internal/domain/module"
)

func TestRootCommand_Use(t *testing.T) {
	assert.Equal(t, "dhd", rootCmd.Use)
	assert.True(t, rootCmd.SilenceErrors)
	assert.True(t, rootCmd.SilenceUsage)
}

func TestRootCommand_HasPersistentFlags(t *testing.T) {
	flags := rootCmd.PersistentFlags()

	tests := []struct {
		name      string
		shorthand string
		def       string
	}{
		{"modules-dir", "", defaultModulesDir()},
		{"module", "m", "[]"},
		{"tag", "t", "[]"},
		{"verbose", "v", "false"},
		{"log-format", "", "text"},
		{"trace", "", "false"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flag := flags.Lookup(tt.name)
			require.NotNil(t, flag)
			assert.Equal(t, tt.shorthand, flag.Shorthand)
			assert.Equal(t, tt.def, flag.DefValue)
		})
	}
}

func TestDefaultModulesDir_FromEnv(t *testing.T) {
	t.Setenv("DHD_MODULES_DIR", "/srv/dotfiles/modules")
	assert.Equal(t, "/srv/dotfiles/modules", defaultModulesDir())
}

func TestFormatError(t *testing.T) {
	boom := errors.New("boom")
	stepErr := &compiler.StepError{
		Code:       compiler.ErrCodeApplyFailed,
		Message:    "apply failed",
		StepID:     "zsh:file:link",
		Suggestion: "remove the existing file",
		Underlying: boom,
	}

	tests := []struct {
		name    string
		err     error
		verbose bool
		want    []string
		notWant []string
	}{
		{
			name: "parse error",
			err:  &modulefile.ParseError{Path: "/m/zsh/module.yaml", Err: boom},
			want: []string{"invalid module file /m/zsh/module.yaml: boom"},
		},
		{
			name: "missing dependency",
			err:  fmt.Errorf("resolve: %w", &module.MissingDependencyError{Module: "app", Dependency: "runtime"}),
			want: []string{`module "app" depends on "runtime"`, `add a module named "runtime"`},
		},
		{
			name: "cycle",
			err:  &module.CyclicDependencyError{Cycle: []string{"a", "b", "a"}},
			want: []string{"a -> b -> a", "break the cycle"},
		},
		{
			name: "unknown module",
			err:  fmt.Errorf("%w: ghost", module.ErrUnknownModule),
			want: []string{"unknown module: ghost", "dhd list"},
		},
		{
			name:    "run error quiet",
			err:     &execution.RunError{Total: 3, Failures: []execution.Failure{{StepID: "zsh:file:link", Module: "zsh", Message: "apply failed: boom", Err: stepErr}}},
			want:    []string{"1 of 3 steps failed"},
			notWant: []string{"Suggestions"},
		},
		{
			name:    "run error verbose",
			err:     &execution.RunError{Total: 3, Failures: []execution.Failure{{StepID: "zsh:file:link", Module: "zsh", Message: "apply failed: boom", Err: stepErr}}},
			verbose: true,
			want:    []string{"Suggestions:", "zsh:file:link: remove the existing file"},
		},
		{
			name: "plain",
			err:  boom,
			want: []string{"boom"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verbose = tt.verbose
			defer func() { verbose = false }()

			msg := formatError(tt.err)
			for _, w := range tt.want {
				assert.Contains(t, msg, w)
			}
			for _, nw := range tt.notWant {
				assert.NotContains(t, msg, nw)
			}
		})
	}
}

func TestPrintErrorTo(t *testing.T) {
	var buf bytes.Buffer
	printErrorTo(&buf, errors.New("nope"))
	assert.Equal(t, "Error: nope\n", buf.String())
}

func TestVersionCmd(t *testing.T) {
	out, _, err := executeCommand(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "dhd "+version)
	assert.Contains(t, out, "commit:")
}
