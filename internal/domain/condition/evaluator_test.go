package condition

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/dhd-cli/dhd/internal/ports"
	"github.com/dhd-cli/dhd/internal/testutil/mocks"
)

type props map[string]string

func (p props) Property(path string) (string, bool) {
	v, ok := p[path]
	return v, ok
}

func newTestEvaluator(t *testing.T) (*Evaluator, *mocks.CommandRunner, *mocks.FileSystem) {
	t.Helper()
	runner := mocks.NewCommandRunner()
	fs := mocks.NewFileSystem()
	env := map[string]string{"EDITOR": "nvim", "CI": ""}
	e := NewEvaluator(runner, fs,
		WithProperties(props{
			"os.family":  "debian",
			"os.distro":  "ubuntu",
			"os.version": "22.04",
			"host.name":  "work-laptop-01",
			"user.shell": "/usr/bin/zsh",
		}),
		WithLookupEnv(func(k string) (string, bool) {
			v, ok := env[k]
			return v, ok
		}),
	)
	return e, runner, fs
}

func TestEvaluate_CombinatorIdentities(t *testing.T) {
	t.Parallel()

	e, _, _ := newTestEvaluator(t)
	ctx := context.Background()

	tests := []struct {
		name string
		cond Condition
		want bool
	}{
		{"nil holds", nil, true},
		{"empty all-of is true", All(), true},
		{"empty any-of is false", Any(), false},
		{"not all-of any-of empty", Negate(All(Any())), true},
		{"not empty all-of", Negate(All()), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := e.Evaluate(ctx, tt.cond)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvaluate_SymlinksAreFollowed(t *testing.T) {
	t.Parallel()

	e, _, fs := newTestEvaluator(t)
	fs.AddFile("/home/me/dotfiles/zshrc", "")
	fs.AddDir("/home/me/dotfiles/nvim")
	fs.AddSymlink("/home/me/.zshrc", "dotfiles/zshrc")
	fs.AddSymlink("/home/me/.zprofile", "/home/me/.zshrc")
	fs.AddSymlink("/home/me/.bashrc", "dotfiles/gone")
	fs.AddSymlink("/home/me/.config/nvim", "/home/me/dotfiles/nvim")
	fs.AddSymlink("/home/me/.vim", "/home/me/dotfiles/vim")
	fs.AddSymlink("/home/me/loop-a", "/home/me/loop-b")
	fs.AddSymlink("/home/me/loop-b", "/home/me/loop-a")
	ctx := context.Background()

	tests := []struct {
		name string
		cond Condition
		want bool
	}{
		{"relative link to file", FileExists{Path: "/home/me/.zshrc"}, true},
		{"chained links", FileExists{Path: "/home/me/.zprofile"}, true},
		{"dangling link is not a file", FileExists{Path: "/home/me/.bashrc"}, false},
		{"link to directory is not a file", FileExists{Path: "/home/me/.config/nvim"}, false},
		{"link to directory", DirectoryExists{Path: "/home/me/.config/nvim"}, true},
		{"dangling link is not a directory", DirectoryExists{Path: "/home/me/.vim"}, false},
		{"link loop", FileExists{Path: "/home/me/loop-a"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := e.Evaluate(ctx, tt.cond)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvaluate_Leaves(t *testing.T) {
	t.Parallel()

	e, runner, fs := newTestEvaluator(t)
	fs.AddFile("/home/me/.zshrc", "")
	fs.AddDir("/home/me/.config")
	fs.AddDir("/mods/base/files")
	runner.AddExecutable("git")
	runner.AddResult("test", []string{"-d", "/proc"}, ports.CommandResult{ExitCode: 0})
	runner.AddResult("grep", []string{"-q", "x", "/etc/y"}, ports.CommandResult{ExitCode: 1})

	e = e.WithBaseDir("/mods/base")
	ctx := context.Background()

	tests := []struct {
		name string
		cond Condition
		want bool
	}{
		{"file exists", FileExists{Path: "/home/me/.zshrc"}, true},
		{"file missing", FileExists{Path: "/home/me/.bashrc"}, false},
		{"directory is not a file", FileExists{Path: "/home/me/.config"}, false},
		{"directory exists", DirectoryExists{Path: "/home/me/.config"}, true},
		{"relative directory uses base dir", DirectoryExists{Path: "files"}, true},
		{"command exists", CommandExists{Command: "git"}, true},
		{"command absent", CommandExists{Command: "hg"}, false},
		{"command succeeds", CommandSucceeds{Command: "test", Args: []string{"-d", "/proc"}}, true},
		{"command fails", CommandSucceeds{Command: "grep", Args: []string{"-q", "x", "/etc/y"}}, false},
		{"env set", EnvSet("EDITOR"), true},
		{"env set but empty", EnvSet("CI"), true},
		{"env unset", EnvSet("VISUAL"), false},
		{"env value match", EnvEquals("EDITOR", "nvim"), true},
		{"env value mismatch", EnvEquals("EDITOR", "vim"), false},
		{"property equals", Property{Path: "os.distro", Operator: OpEquals, Value: "ubuntu"}, true},
		{"property not equals", Property{Path: "os.distro", Operator: OpNotEquals, Value: "ubuntu"}, false},
		{"property contains", Property{Path: "user.shell", Operator: OpContains, Value: "zsh"}, true},
		{"property starts with", Property{Path: "host.name", Operator: OpStartsWith, Value: "work-"}, true},
		{"property ends with", Property{Path: "host.name", Operator: OpEndsWith, Value: "-02"}, false},
		{"property fold", Property{Path: "os.distro", Operator: OpEqualsFold, Value: "UBUNTU"}, true},
		{"property version", Property{Path: "os.version", Operator: OpVersionAtLeast, Value: "20.04"}, true},
		{"property version too new", Property{Path: "os.version", Operator: OpVersionAtLeast, Value: "24.04"}, false},
		{"property glob", Property{Path: "host.name", Operator: OpMatches, Value: "work-*"}, true},
		{"unknown property", Property{Path: "hardware.tpm", Operator: OpEquals, Value: "true"}, false},
		{"secret shape", SecretExists{Reference: "op://a/b/c"}, true},
		{"secret bad shape", SecretExists{Reference: "vault://a"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := e.Evaluate(ctx, tt.cond)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvaluate_ErrorsPropagate(t *testing.T) {
	t.Parallel()

	e, runner, _ := newTestEvaluator(t)
	spawnErr := errors.New("exec: \"nope\": executable file not found")
	runner.AddError("nope", nil, spawnErr)
	broken := CommandSucceeds{Command: "nope"}
	ctx := context.Background()

	for _, c := range []Condition{
		broken,
		Negate(broken),
		All(EnvSet("EDITOR"), broken),
		Any(EnvSet("VISUAL"), broken),
	} {
		_, err := e.Evaluate(ctx, c)
		var evalErr *EvaluationError
		require.ErrorAs(t, err, &evalErr, c.String())
		assert.ErrorIs(t, err, spawnErr)
		assert.Equal(t, "command succeeds: nope", evalErr.Condition)
	}
}

func TestEvaluate_ShortCircuits(t *testing.T) {
	t.Parallel()

	e, runner, _ := newTestEvaluator(t)
	runner.AddError("boom", nil, errors.New("spawn"))
	ctx := context.Background()

	ok, err := e.Evaluate(ctx, All(EnvSet("VISUAL"), CommandSucceeds{Command: "boom"}))
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = e.Evaluate(ctx, Any(EnvSet("EDITOR"), CommandSucceeds{Command: "boom"}))
	require.NoError(t, err)
	assert.True(t, ok)

	assert.Empty(t, runner.Calls())
}

func TestEvaluate_SecretExistsWithProvider(t *testing.T) {
	t.Parallel()

	e := NewEvaluator(mocks.NewCommandRunner(), mocks.NewFileSystem(),
		WithSecrets(mocks.NewSecretProvider(map[string]string{"env://TOKEN": "x"})))

	ok, err := e.Evaluate(context.Background(), SecretExists{Reference: "env://TOKEN"})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = e.Evaluate(context.Background(), SecretExists{Reference: "env://OTHER"})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDescribe(t *testing.T) {
	t.Parallel()

	c := All(
		FileExists{Path: "~/.zshrc"},
		Any(CommandExists{Command: "apt"}, Negate(EnvSet("CI"))),
		Property{Path: "os.family", Operator: OpEquals, Value: "debian"},
		CommandSucceeds{Command: "systemctl", Args: []string{"is-system-running"}},
		EnvEquals("SHELL", "/bin/zsh"),
	)

	assert.Equal(t,
		"all of: [file exists: ~/.zshrc, any of: [command exists: apt, not: environment variable CI is set], "+
			"system property os.family == debian, command succeeds: systemctl is-system-running, "+
			"environment variable SHELL = /bin/zsh]",
		c.String())
	assert.Equal(t, "always", Describe(nil))
	assert.Equal(t, "any of: []", Describe(Any()))
}

// Random trees built only from constant leaves: double negation is the
// identity and De Morgan's laws hold.
func TestEvaluate_BooleanLaws(t *testing.T) {
	t.Parallel()

	e := NewEvaluator(mocks.NewCommandRunner(), mocks.NewFileSystem(),
		WithLookupEnv(func(k string) (string, bool) { return "", k == "T" }))
	ctx := context.Background()

	rapid.Check(t, func(t *rapid.T) {
		c := genCondition(t, 3)
		d := genCondition(t, 3)

		vc, err := e.Evaluate(ctx, c)
		if err != nil {
			t.Fatal(err)
		}
		vd, err := e.Evaluate(ctx, d)
		if err != nil {
			t.Fatal(err)
		}

		nn, _ := e.Evaluate(ctx, Negate(Negate(c)))
		if nn != vc {
			t.Fatalf("not(not(%s)) = %v, want %v", c, nn, vc)
		}
		lhs, _ := e.Evaluate(ctx, Negate(All(c, d)))
		rhs, _ := e.Evaluate(ctx, Any(Negate(c), Negate(d)))
		if lhs != rhs {
			t.Fatalf("De Morgan failed for %s and %s", c, d)
		}
		and, _ := e.Evaluate(ctx, All(c, d))
		if and != (vc && vd) {
			t.Fatalf("all-of mismatch for %s and %s", c, d)
		}
	})
}

func genCondition(t *rapid.T, depth int) Condition {
	kind := rapid.IntRange(0, 4).Draw(t, "kind")
	if depth == 0 || kind < 2 {
		if kind%2 == 0 {
			return EnvSet("T")
		}
		return EnvSet("F")
	}
	switch kind {
	case 2:
		return Negate(genCondition(t, depth-1))
	case 3:
		n := rapid.IntRange(0, 3).Draw(t, "n")
		cs := make([]Condition, n)
		for i := range cs {
			cs[i] = genCondition(t, depth-1)
		}
		return All(cs...)
	default:
		n := rapid.IntRange(0, 3).Draw(t, "n")
		cs := make([]Condition, n)
		for i := range cs {
			cs[i] = genCondition(t, depth-1)
		}
		return Any(cs...)
	}
}
