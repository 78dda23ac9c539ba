// Package app wires the module, planning and execution layers into the
// operations the CLI exposes.
package app

import (
	"context"
	"fmt"
	"io"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/dhd-cli/dhd/internal/domain/condition"
	"github.com/dhd-cli/dhd/internal/domain/execution"
	"github.com/dhd-cli/dhd/internal/domain/module"
	"github.com/dhd-cli/dhd/internal/domain/planner"
	"github.com/dhd-cli/dhd/internal/ports"
)

const tracerName = "github.com/dhd-cli/dhd/internal/app"

// Engine plans and executes modules.
type Engine struct {
	runner     ports.CommandRunner
	fs         ports.FileSystem
	logger     ports.Logger
	secrets    ports.SecretProvider
	metrics    ports.Metrics
	tracer     trace.Tracer
	properties condition.PropertySource
	downloader ports.Downloader
	evaluator  *condition.Evaluator
	planner    *planner.Planner
	verbose    bool
	out        io.Writer
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(l ports.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithSecrets sets the provider secret references resolve through.
func WithSecrets(s ports.SecretProvider) Option {
	return func(e *Engine) { e.secrets = s }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m ports.Metrics) Option {
	return func(e *Engine) {
		if m != nil {
			e.metrics = m
		}
	}
}

// WithTracer overrides the global OpenTelemetry tracer.
func WithTracer(t trace.Tracer) Option {
	return func(e *Engine) {
		if t != nil {
			e.tracer = t
		}
	}
}

// WithProperties sets the system properties module conditions compare
// against.
func WithProperties(p condition.PropertySource) Option {
	return func(e *Engine) { e.properties = p }
}

// WithDownloader sets the HTTP client for download actions.
func WithDownloader(d ports.Downloader) Option {
	return func(e *Engine) { e.downloader = d }
}

// WithEvaluator replaces the condition evaluator built from the other
// options.
func WithEvaluator(ev *condition.Evaluator) Option {
	return func(e *Engine) { e.evaluator = ev }
}

// WithPlanner replaces the planner built from the other options.
func WithPlanner(p *planner.Planner) Option {
	return func(e *Engine) { e.planner = p }
}

// WithVerbose enables per-condition tracing.
func WithVerbose(v bool) Option {
	return func(e *Engine) { e.verbose = v }
}

// WithOutput sets where PrintPlan and PrintSummary write.
func WithOutput(w io.Writer) Option {
	return func(e *Engine) { e.out = w }
}

// New creates an Engine. Collaborators not set through options are built
// from runner and fs.
func New(runner ports.CommandRunner, fs ports.FileSystem, opts ...Option) *Engine {
	e := &Engine{
		runner:  runner,
		fs:      fs,
		metrics: ports.NopMetrics{},
		tracer:  otel.Tracer(tracerName),
		out:     os.Stdout,
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.evaluator == nil {
		evalOpts := []condition.Option{condition.WithSecrets(e.secrets)}
		if e.properties != nil {
			evalOpts = append(evalOpts, condition.WithProperties(e.properties))
		}
		if e.logger != nil {
			evalOpts = append(evalOpts, condition.WithLogger(e.logger, e.verbose))
		}
		e.evaluator = condition.NewEvaluator(runner, fs, evalOpts...)
	}
	if e.planner == nil {
		planOpts := []planner.Option{
			planner.WithEvaluator(e.evaluator),
			planner.WithSecrets(e.secrets),
			planner.WithRoot(os.Geteuid() == 0),
		}
		if e.downloader != nil {
			planOpts = append(planOpts, planner.WithDownloader(e.downloader))
		}
		if e.logger != nil {
			planOpts = append(planOpts, planner.WithLogger(e.logger))
		}
		e.planner = planner.New(runner, fs, planOpts...)
	}
	return e
}

// ResolveModules orders mods so every module follows its dependencies.
func (e *Engine) ResolveModules(mods []module.Module) ([]module.Module, error) {
	return module.Resolve(mods)
}

// SelectModules applies filter to all, pulls in dependencies and orders the
// result.
func (e *Engine) SelectModules(all []module.Module, filter module.Filter) ([]module.Module, error) {
	selected, err := module.Select(all, filter)
	if err != nil {
		return nil, err
	}
	return module.Resolve(selected)
}

// Execute plans ordered and runs the plan. The returned error aggregates
// every step failure; the summary is non-nil whenever execution started.
func (e *Engine) Execute(ctx context.Context, ordered []module.Module, opts execution.Options) (*execution.Summary, error) {
	ctx, span := e.tracer.Start(ctx, "dhd.execute", trace.WithAttributes(
		attribute.Int("dhd.modules", len(ordered)),
	))
	defer span.End()

	plan, err := e.Plan(ctx, ordered)
	if err != nil {
		return nil, err
	}
	return e.ExecutePlan(ctx, plan, opts)
}

// ExecutePlan runs an already built plan.
func (e *Engine) ExecutePlan(ctx context.Context, plan *Plan, opts execution.Options) (*execution.Summary, error) {
	exec, err := execution.NewExecutor(opts,
		execution.WithLogger(e.logger),
		execution.WithMetrics(e.metrics),
		execution.WithTracer(e.tracer),
	)
	if err != nil {
		return nil, err
	}

	summary, err := exec.Run(ctx, plan.Graph)
	if err != nil {
		return nil, fmt.Errorf("execute plan: %w", err)
	}
	return summary, summary.Err()
}

// Run selects modules from all, resolves them and executes the result.
func (e *Engine) Run(ctx context.Context, all []module.Module, filter module.Filter, opts execution.Options) (*execution.Summary, error) {
	ordered, err := e.SelectModules(all, filter)
	if err != nil {
		return nil, err
	}
	return e.Execute(ctx, ordered, opts)
}

func (e *Engine) debug(ctx context.Context, msg string, fields ...ports.Field) {
	if e.logger != nil {
		e.logger.Debug(ctx, msg, fields...)
	}
}

func (e *Engine) warn(ctx context.Context, msg string, fields ...ports.Field) {
	if e.logger != nil {
		e.logger.Warn(ctx, msg, fields...)
	}
}
