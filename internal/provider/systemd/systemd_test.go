package systemd

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dhd-cli/dhd/internal/domain/compiler"
	"github.com/dhd-cli/dhd/internal/ports"
	"github.com/dhd-cli/dhd/internal/testutil/mocks"
	"github.com/dhd-cli/dhd/internal/validation"
)

func TestParseScope(t *testing.T) {
	t.Parallel()

	s, err := ParseScope("")
	require.NoError(t, err)
	assert.Equal(t, ScopeUser, s)

	s, err = ParseScope("System")
	require.NoError(t, err)
	assert.Equal(t, ScopeSystem, s)

	_, err = ParseScope("global")
	require.Error(t, err)
}

func TestUnitDir(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "/home/u/.config/systemd/user", UnitDir(ScopeUser, "/home/u/.config"))
	assert.Equal(t, "/etc/systemd/system", UnitDir(ScopeSystem, "/home/u/.config"))
}

func TestService_Render(t *testing.T) {
	t.Parallel()

	got, err := Service{
		Description: "Postgres backup",
		Type:        "oneshot",
		ExecStart:   "/usr/local/bin/pg-backup.sh",
		Restart:     "on-failure",
		RestartSec:  30,
	}.Render()
	require.NoError(t, err)
	assert.Equal(t, `[Unit]
Description=Postgres backup

[Service]
Type=oneshot
ExecStart=/usr/local/bin/pg-backup.sh
Restart=on-failure
RestartSec=30

[Install]
WantedBy=default.target
`, string(got))

	minimal, err := Service{ExecStart: "/bin/true"}.Render()
	require.NoError(t, err)
	assert.Contains(t, string(minimal), "Type=simple\nExecStart=/bin/true\n\n[Install]")
	assert.NotContains(t, string(minimal), "Restart")

	_, err = Service{Description: "x"}.Render()
	require.Error(t, err)

	_, err = Service{ExecStart: "/bin/true\nExecStartPre=/bin/evil"}.Render()
	require.ErrorIs(t, err, validation.ErrNewlineInjection)
}

func TestSocket_Render(t *testing.T) {
	t.Parallel()

	got, err := Socket{Description: "Agent socket", ListenStream: "%t/agent.sock"}.Render()
	require.NoError(t, err)
	assert.Equal(t, `[Unit]
Description=Agent socket

[Socket]
ListenStream=%t/agent.sock

[Install]
WantedBy=sockets.target
`, string(got))

	_, err = Socket{}.Render()
	require.Error(t, err)
}

func TestUnitStep_CheckAndApplyUser(t *testing.T) {
	t.Parallel()

	fs := mocks.NewFileSystem()
	runner := mocks.NewCommandRunner()
	runner.AddResult("systemctl", []string{"--user", "daemon-reload"}, ports.CommandResult{})

	u := Unit{Name: "sync.service", Scope: ScopeUser, Dir: "/home/u/.config/systemd/user", Content: []byte("[Unit]\n")}
	step, err := NewUnitStep("svc", u, fs, runner, false)
	require.NoError(t, err)
	assert.Equal(t, "svc:systemd-unit:home/u/.config/systemd/user/sync.service", step.ID().String())

	ctx := compiler.NewRunContext(context.Background())
	status, err := step.Check(ctx)
	require.NoError(t, err)
	assert.Equal(t, compiler.StatusNeedsApply, status)

	require.NoError(t, step.Apply(ctx))
	content, err := fs.ReadFile("/home/u/.config/systemd/user/sync.service")
	require.NoError(t, err)
	assert.Equal(t, "[Unit]\n", string(content))
	assert.Equal(t, 1, runner.CallCount("systemctl", "--user", "daemon-reload"))

	status, err = step.Check(ctx)
	require.NoError(t, err)
	assert.Equal(t, compiler.StatusSatisfied, status)

	fs.AddFile(u.Path(), "[Unit]\nDescription=old\n")
	status, err = step.Check(ctx)
	require.NoError(t, err)
	assert.Equal(t, compiler.StatusNeedsApply, status)
}

func TestUnitStep_ApplySystemUsesSudo(t *testing.T) {
	t.Parallel()

	fs := mocks.NewFileSystem()
	runner := mocks.NewCommandRunner()
	runner.SetHandler(func(_ ports.CommandSpec) (ports.CommandResult, error) {
		return ports.CommandResult{}, nil
	})

	u := Unit{Name: "backup.service", Scope: ScopeSystem, Dir: "/etc/systemd/system", Content: []byte("[Unit]\n")}
	step, err := NewUnitStep("svc", u, fs, runner, false)
	require.NoError(t, err)
	require.NoError(t, step.Apply(compiler.NewRunContext(context.Background())))

	calls := runner.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "sudo", calls[0].Command)
	assert.Equal(t, "install", calls[0].Args[0])
	assert.Equal(t, "/etc/systemd/system/backup.service", calls[0].Args[len(calls[0].Args)-1])
	assert.Equal(t, []string{"systemctl", "daemon-reload"}, calls[1].Args)
	assert.False(t, fs.Exists("/etc/systemd/system/backup.service"), "written by sudo install, not directly")
}

func TestUnitStep_ApplyFailsOnReload(t *testing.T) {
	t.Parallel()

	runner := mocks.NewCommandRunner()
	runner.AddResult("systemctl", []string{"daemon-reload"}, ports.CommandResult{ExitCode: 1, Stderr: "Access denied"})

	u := Unit{Name: "backup.service", Scope: ScopeSystem, Dir: "/etc/systemd/system", Content: []byte("x")}
	step, err := NewUnitStep("svc", u, mocks.NewFileSystem(), runner, true)
	require.NoError(t, err)

	err = step.Apply(compiler.NewRunContext(context.Background()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Access denied")
}

func TestNewUnitStep_RejectsBadName(t *testing.T) {
	t.Parallel()

	_, err := NewUnitStep("svc", Unit{Name: "../x.service", Dir: "/etc/systemd/system"}, mocks.NewFileSystem(), mocks.NewCommandRunner(), false)
	require.ErrorIs(t, err, validation.ErrInvalidUnitName)
}

func TestParseOperation(t *testing.T) {
	t.Parallel()

	op, err := ParseOperation("")
	require.NoError(t, err)
	assert.Equal(t, OpEnable, op)

	for _, want := range Operations {
		got, err := ParseOperation(string(want))
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err = ParseOperation("mask")
	require.Error(t, err)
}

func TestManageStep_Check(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		op      Operation
		enabled bool
		active  bool
		want    compiler.StepStatus
	}{
		{"enable when enabled", OpEnable, true, false, compiler.StatusSatisfied},
		{"enable when disabled", OpEnable, false, true, compiler.StatusNeedsApply},
		{"disable when disabled", OpDisable, false, true, compiler.StatusSatisfied},
		{"start when active", OpStart, false, true, compiler.StatusSatisfied},
		{"start when inactive", OpStart, true, false, compiler.StatusNeedsApply},
		{"stop when inactive", OpStop, true, false, compiler.StatusSatisfied},
		{"enable-now needs both", OpEnableNow, true, false, compiler.StatusNeedsApply},
		{"enable-now satisfied", OpEnableNow, true, true, compiler.StatusSatisfied},
		{"disable-now satisfied", OpDisableNow, false, false, compiler.StatusSatisfied},
		{"disable-now still running", OpDisableNow, false, true, compiler.StatusNeedsApply},
		{"restart always applies", OpRestart, true, true, compiler.StatusNeedsApply},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			runner := mocks.NewCommandRunner()
			runner.AddResult("systemctl", []string{"--user", "is-enabled", "--quiet", "sync.service"}, exit(tt.enabled))
			runner.AddResult("systemctl", []string{"--user", "is-active", "--quiet", "sync.service"}, exit(tt.active))

			step, err := NewManageStep("svc", "sync.service", tt.op, ScopeUser, runner, false)
			require.NoError(t, err)

			status, err := step.Check(compiler.NewRunContext(context.Background()))
			require.NoError(t, err)
			assert.Equal(t, tt.want, status)
		})
	}
}

func exit(ok bool) ports.CommandResult {
	if ok {
		return ports.CommandResult{}
	}
	return ports.CommandResult{ExitCode: 1}
}

func TestManageStep_Apply(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		op     Operation
		scope  Scope
		asRoot bool
		cmd    string
		args   []string
	}{
		{"user enable", OpEnable, ScopeUser, false, "systemctl", []string{"--user", "enable", "sync.service"}},
		{"system enable-now with sudo", OpEnableNow, ScopeSystem, false, "sudo", []string{"systemctl", "enable", "--now", "sync.service"}},
		{"system stop as root", OpStop, ScopeSystem, true, "systemctl", []string{"stop", "sync.service"}},
		{"user disable-now", OpDisableNow, ScopeUser, false, "systemctl", []string{"--user", "disable", "--now", "sync.service"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			runner := mocks.NewCommandRunner()
			runner.AddResult(tt.cmd, tt.args, ports.CommandResult{})

			step, err := NewManageStep("svc", "sync.service", tt.op, tt.scope, runner, tt.asRoot)
			require.NoError(t, err)
			require.NoError(t, step.Apply(compiler.NewRunContext(context.Background())))
			assert.Equal(t, 1, runner.CallCount(tt.cmd, tt.args...))
		})
	}
}

func TestManageStep_IDAndDescribe(t *testing.T) {
	t.Parallel()

	step, err := NewManageStep("svc", "sync.service", OpEnableNow, ScopeSystem, mocks.NewCommandRunner(), false)
	require.NoError(t, err)
	assert.Equal(t, "svc:systemd:system/sync.service/enable-now", step.ID().String())
	assert.Equal(t, "enable now system systemd unit sync.service", step.Describe())
}
