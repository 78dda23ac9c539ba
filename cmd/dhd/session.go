package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/dhd-cli/dhd/internal/adapters/command"
	"github.com/dhd-cli/dhd/internal/adapters/filesystem"
	"github.com/dhd-cli/dhd/internal/adapters/httpget"
	"github.com/dhd-cli/dhd/internal/adapters/logging"
	"github.com/dhd-cli/dhd/internal/adapters/metrics"
	"github.com/dhd-cli/dhd/internal/adapters/modulefile"
	"github.com/dhd-cli/dhd/internal/adapters/secrets"
	"github.com/dhd-cli/dhd/internal/app"
	"github.com/dhd-cli/dhd/internal/domain/module"
	"github.com/dhd-cli/dhd/internal/domain/platform"
	"github.com/dhd-cli/dhd/internal/ports"
)

// session holds the collaborators shared by plan, apply and list.
type session struct {
	engine   *app.Engine
	modules  []module.Module
	recorder *metrics.PrometheusRecorder
	logger   ports.Logger
}

type sessionConfig struct {
	out         io.Writer
	errOut      io.Writer
	metricsFile string
}

func newLogger(w io.Writer) (ports.Logger, error) {
	var json bool
	switch logFormat {
	case "text", "":
	case "json":
		json = true
	default:
		return nil, fmt.Errorf("unknown log format %q (want text or json)", logFormat)
	}

	level := ports.LevelWarn
	if verbose {
		level = ports.LevelDebug
	}
	return logging.New(
		logging.WithOutput(w),
		logging.WithLevel(level),
		logging.WithJSONFormat(json),
	), nil
}

// newSession loads the modules directory and wires the engine against the
// real host.
func newSession(ctx context.Context, cfg sessionConfig) (*session, error) {
	logger, err := newLogger(cfg.errOut)
	if err != nil {
		return nil, err
	}

	mods, err := modulefile.Load(modulesDir)
	if err != nil {
		return nil, err
	}
	logger.Debug(ctx, "loaded modules",
		ports.F("dir", modulesDir),
		ports.F("count", len(mods)),
	)

	runner := command.NewRealRunner()
	fs := filesystem.NewRealFileSystem()
	info := platform.NewDetector(runner).Detect(ctx)
	logger.Debug(ctx, "detected platform",
		ports.F("os", info.OS.Kind),
		ports.F("distro", info.OS.Distro),
		ports.F("arch", info.OS.Arch),
	)

	s := &session{modules: mods, logger: logger}
	opts := []app.Option{
		app.WithLogger(logger),
		app.WithVerbose(verbose),
		app.WithOutput(cfg.out),
		app.WithProperties(info),
		app.WithSecrets(secrets.NewReferenceProvider(runner)),
		app.WithDownloader(httpget.NewClient(nil, "dhd/"+version)),
	}
	if cfg.metricsFile != "" {
		s.recorder, err = metrics.NewPrometheusRecorder()
		if err != nil {
			return nil, err
		}
		opts = append(opts, app.WithMetrics(s.recorder))
	}
	s.engine = app.New(runner, fs, opts...)
	return s, nil
}

// flushMetrics writes the textfile when --metrics-file was given.
func (s *session) flushMetrics(path string) error {
	if s.recorder == nil || path == "" {
		return nil
	}
	if err := s.recorder.WriteTextfile(path); err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}
	return nil
}

// setupTracing installs a global tracer provider that prints spans to
// stderr when --trace is set.
func setupTracing(cmd *cobra.Command, _ []string) error {
	if !traceEnabled || shutdownTrace != nil {
		return nil
	}
	exporter, err := stdouttrace.New(
		stdouttrace.WithWriter(cmd.ErrOrStderr()),
		stdouttrace.WithPrettyPrint(),
	)
	if err != nil {
		return fmt.Errorf("create trace exporter: %w", err)
	}

	res := resource.NewSchemaless(
		attribute.String("service.name", "dhd"),
		attribute.String("service.version", version),
	)
	provider := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exporter),
	)
	otel.SetTracerProvider(provider)
	shutdownTrace = provider.Shutdown
	return nil
}
