package action

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dhd-cli/dhd/internal/domain/condition"
	"github.com/dhd-cli/dhd/internal/testutil/mocks"
)

func TestDescribe(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		action Action
		want   string
	}{
		{"packages", PackageInstall{Names: []string{"git", "curl"}, Manager: "apt"}, "install packages [git, curl] with apt"},
		{"packages auto", PackageInstall{Names: []string{"jq"}}, "install packages [jq] with auto"},
		{"link", LinkFile{Source: "/d/vimrc", Target: "/h/.vimrc"}, "link /h/.vimrc -> /d/vimrc"},
		{"write", FileWrite{Target: "/h/.npmrc"}, "write /h/.npmrc"},
		{"command", ExecuteCommand{Command: "echo", Args: []string{"hi"}}, "run echo hi"},
		{"remove", PackageRemove{Names: []string{"nano"}}, "remove packages [nano] with auto"},
		{"service", SystemdService{Name: "sync.service"}, "install systemd service sync.service"},
		{"socket", SystemdSocket{Name: "agent"}, "install systemd socket agent"},
		{"manage default", SystemdManage{Name: "docker"}, "enable systemd unit docker"},
		{"manage", SystemdManage{Name: "docker", Operation: "restart"}, "restart systemd unit docker"},
		{"groups", UserGroup{Groups: []string{"docker", "video"}}, "add user current to groups [docker, video]"},
		{"dconf", DconfImport{Source: "gnome.ini", Path: "/org/gnome/"}, "import dconf settings gnome.ini into /org/gnome/"},
		{"git", GitConfig{Values: map[string]string{"user.name": "x"}}, "set 1 git global config key(s)"},
		{
			"conditional",
			Conditional{
				Action:     Directory{Path: "/tmp/x"},
				Conditions: []condition.Condition{condition.CommandExists{Command: "go"}},
				Policy:     SkipIf,
			},
			"create directory /tmp/x (skip if command exists: go)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.action.Describe())
		})
	}
}

func TestConditional_Gate(t *testing.T) {
	t.Parallel()

	c := condition.CommandExists{Command: "go"}

	only := Conditional{Conditions: []condition.Condition{c}, Policy: OnlyIf}
	assert.Equal(t, condition.All(c), only.Gate())

	skip := Conditional{Conditions: []condition.Condition{c}, Policy: SkipIf}
	assert.Equal(t, condition.Negate(condition.Any(c)), skip.Gate())
}

func TestResolveSecrets(t *testing.T) {
	t.Parallel()

	provider := mocks.NewSecretProvider(map[string]string{
		"op://vault/npm/token": "s3cret",
		"env://GH_TOKEN":       "ghp",
	})

	t.Run("file write content", func(t *testing.T) {
		t.Parallel()
		got, err := ResolveSecrets(context.Background(), FileWrite{Target: "/x", ContentSecret: "op://vault/npm/token"}, provider)
		require.NoError(t, err)
		fw := got.(FileWrite)
		assert.Equal(t, "s3cret", fw.Content)
		assert.Empty(t, fw.ContentSecret)
	})

	t.Run("command env", func(t *testing.T) {
		t.Parallel()
		a := ExecuteCommand{
			Command:   "gh",
			Env:       map[string]string{"A": "1"},
			SecretEnv: map[string]string{"GH_TOKEN": "env://GH_TOKEN"},
		}
		got, err := ResolveSecrets(context.Background(), a, provider)
		require.NoError(t, err)
		ec := got.(ExecuteCommand)
		assert.Equal(t, map[string]string{"A": "1", "GH_TOKEN": "ghp"}, ec.Env)
		assert.Nil(t, ec.SecretEnv)
		assert.Len(t, a.Env, 1, "original action is not mutated")
	})

	t.Run("non consumer passes through", func(t *testing.T) {
		t.Parallel()
		d := Directory{Path: "/x"}
		got, err := ResolveSecrets(context.Background(), d, nil)
		require.NoError(t, err)
		assert.Equal(t, d, got)
	})

	t.Run("missing secret", func(t *testing.T) {
		t.Parallel()
		_, err := ResolveSecrets(context.Background(), FileWrite{Target: "/x", ContentSecret: "op://vault/none/x"}, provider)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "op://vault/none/x")
	})

	t.Run("no provider", func(t *testing.T) {
		t.Parallel()
		_, err := ResolveSecrets(context.Background(), FileWrite{Target: "/x", ContentSecret: "env://X"}, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no secret provider")
	})
}
