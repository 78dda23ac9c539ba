package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dhd-cli/dhd/internal/ports"
)

func TestNopLogger(t *testing.T) {
	t.Parallel()

	logger := NewNopLogger()
	ctx := context.Background()

	logger.Debug(ctx, "debug")
	logger.Error(ctx, "error", ports.F("k", "v"))
	assert.Same(t, logger, logger.With(ports.F("key", "value")))

	assert.Equal(t, ports.LevelInfo, logger.Level())
	logger.SetLevel(ports.LevelDebug)
	assert.Equal(t, ports.LevelDebug, logger.Level())
}

func TestZerologLogger_JSON(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := New(WithOutput(&buf), WithJSONFormat(true), WithTimestamp(false))

	logger.Info(context.Background(), "step completed",
		ports.F("step", "base:run:echo"),
		ports.F("attempt", 2),
	)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "step completed", entry["message"])
	assert.Equal(t, "base:run:echo", entry["step"])
	assert.InDelta(t, 2, entry["attempt"], 0)
	assert.NotContains(t, entry, "time")
}

func TestZerologLogger_LevelFiltering(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := New(WithOutput(&buf), WithJSONFormat(true), WithLevel(ports.LevelWarn))
	ctx := context.Background()

	logger.Debug(ctx, "hidden")
	logger.Info(ctx, "hidden")
	logger.Warn(ctx, "shown")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "shown")
}

func TestZerologLogger_WithSharesLevel(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	parent := New(WithOutput(&buf), WithJSONFormat(true), WithTimestamp(false))
	child := parent.With(ports.F("module", "base"))

	parent.SetLevel(ports.LevelError)
	assert.Equal(t, ports.LevelError, child.Level())

	child.Error(context.Background(), "failed", ports.F("error", errors.New("exit 1")))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "base", entry["module"])
	assert.Equal(t, "exit 1", entry["error"])
}

func TestZerologLogger_ConsoleFormat(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := New(WithOutput(&buf), WithTimestamp(false))

	logger.Warn(context.Background(), "module skipped", ports.F("module", "gpu"))

	out := buf.String()
	assert.Contains(t, out, "WRN")
	assert.Contains(t, out, "module skipped")
	assert.Contains(t, out, "module=gpu")
}
