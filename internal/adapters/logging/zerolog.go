// Package logging provides ports.Logger implementations: a zerolog-backed
// logger for the CLI and a NopLogger for tests and library use.
package logging

import (
	"context"
	"io"
	"os"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/dhd-cli/dhd/internal/ports"
)

// ZerologLogger adapts zerolog to ports.Logger.
type ZerologLogger struct {
	zl    zerolog.Logger
	level *atomic.Int32
}

// Option configures a ZerologLogger.
type Option func(*options)

type options struct {
	out       io.Writer
	level     ports.Level
	json      bool
	timestamp bool
}

// WithOutput sets the output writer (default: os.Stderr).
func WithOutput(w io.Writer) Option {
	return func(o *options) { o.out = w }
}

// WithLevel sets the minimum log level (default: Info).
func WithLevel(level ports.Level) Option {
	return func(o *options) { o.level = level }
}

// WithJSONFormat switches from human console output to JSON lines.
func WithJSONFormat(enabled bool) Option {
	return func(o *options) { o.json = enabled }
}

// WithTimestamp includes a timestamp in log entries.
func WithTimestamp(enabled bool) Option {
	return func(o *options) { o.timestamp = enabled }
}

// New creates a ZerologLogger.
func New(opts ...Option) *ZerologLogger {
	o := options{out: os.Stderr, level: ports.LevelInfo, timestamp: true}
	for _, opt := range opts {
		opt(&o)
	}

	w := o.out
	if !o.json {
		w = zerolog.ConsoleWriter{Out: o.out, NoColor: true, TimeFormat: time.RFC3339}
	}

	ctx := zerolog.New(w).With()
	if o.timestamp {
		ctx = ctx.Timestamp()
	}

	lvl := &atomic.Int32{}
	lvl.Store(int32(o.level))
	return &ZerologLogger{zl: ctx.Logger(), level: lvl}
}

// Debug logs a debug message.
func (l *ZerologLogger) Debug(_ context.Context, msg string, fields ...ports.Field) {
	l.log(ports.LevelDebug, msg, fields)
}

// Info logs an informational message.
func (l *ZerologLogger) Info(_ context.Context, msg string, fields ...ports.Field) {
	l.log(ports.LevelInfo, msg, fields)
}

// Warn logs a warning.
func (l *ZerologLogger) Warn(_ context.Context, msg string, fields ...ports.Field) {
	l.log(ports.LevelWarn, msg, fields)
}

// Error logs an error.
func (l *ZerologLogger) Error(_ context.Context, msg string, fields ...ports.Field) {
	l.log(ports.LevelError, msg, fields)
}

// With returns a child logger carrying fields. The child shares the parent's
// level.
func (l *ZerologLogger) With(fields ...ports.Field) ports.Logger {
	return &ZerologLogger{
		zl:    l.zl.With().Fields(flatten(fields)).Logger(),
		level: l.level,
	}
}

// Level returns the minimum log level.
func (l *ZerologLogger) Level() ports.Level {
	return ports.Level(l.level.Load())
}

// SetLevel sets the minimum log level.
func (l *ZerologLogger) SetLevel(level ports.Level) {
	l.level.Store(int32(level))
}

func (l *ZerologLogger) log(level ports.Level, msg string, fields []ports.Field) {
	if level < l.Level() {
		return
	}
	var ev *zerolog.Event
	switch level {
	case ports.LevelDebug:
		ev = l.zl.Debug()
	case ports.LevelInfo:
		ev = l.zl.Info()
	case ports.LevelWarn:
		ev = l.zl.Warn()
	default:
		ev = l.zl.Error()
	}
	if len(fields) > 0 {
		ev = ev.Fields(flatten(fields))
	}
	ev.Msg(msg)
}

func flatten(fields []ports.Field) []any {
	kv := make([]any, 0, len(fields)*2)
	for _, f := range fields {
		kv = append(kv, f.Key, f.Value)
	}
	return kv
}

var _ ports.Logger = (*ZerologLogger)(nil)
