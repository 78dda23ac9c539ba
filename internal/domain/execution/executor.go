package execution

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/dhd-cli/dhd/internal/domain/compiler"
	"github.com/dhd-cli/dhd/internal/ports"
)

const tracerName = "github.com/dhd-cli/dhd/internal/domain/execution"

// Options controls how a graph is executed.
type Options struct {
	// Concurrency bounds the number of steps of one level running at once.
	Concurrency int
	// DryRun runs Check only; steps that need applying are reported as
	// completed without calling Apply.
	DryRun bool
	// FailFast stops after the first level that contains a failure.
	FailFast bool
	// StepTimeout bounds Check plus Apply of a single step. Zero disables it.
	StepTimeout time.Duration
	Verbose     bool
}

// DefaultOptions returns one worker per CPU with fail-fast enabled.
func DefaultOptions() Options {
	return Options{
		Concurrency: runtime.NumCPU(),
		FailFast:    true,
	}
}

// Option configures an Executor.
type Option func(*Executor)

// WithLogger sets the logger for step progress.
func WithLogger(l ports.Logger) Option {
	return func(e *Executor) { e.logger = l }
}

// WithMetrics sets the recorder for step and run outcomes.
func WithMetrics(m ports.Metrics) Option {
	return func(e *Executor) {
		if m != nil {
			e.metrics = m
		}
	}
}

// WithTracer overrides the global OpenTelemetry tracer.
func WithTracer(t trace.Tracer) Option {
	return func(e *Executor) {
		if t != nil {
			e.tracer = t
		}
	}
}

// Executor runs a StepGraph level by level. Steps within a level run
// concurrently on a bounded pool and a level starts only after every step
// of the previous level has reached a terminal outcome.
type Executor struct {
	opts      Options
	logger    ports.Logger
	metrics   ports.Metrics
	tracer    trace.Tracer
	lifecycle func() *lifecycle
}

// NewExecutor creates an Executor.
func NewExecutor(opts Options, options ...Option) (*Executor, error) {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.StepTimeout < 0 {
		return nil, fmt.Errorf("step timeout must not be negative, got %s", opts.StepTimeout)
	}

	factory, err := newLifecycleFactory()
	if err != nil {
		return nil, err
	}

	e := &Executor{
		opts:      opts,
		metrics:   ports.NopMetrics{},
		tracer:    otel.Tracer(tracerName),
		lifecycle: factory,
	}
	for _, opt := range options {
		opt(e)
	}
	return e, nil
}

// Options returns the effective options.
func (e *Executor) Options() Options {
	return e.opts
}

// Run executes g. Graph errors (cycles, unknown dependencies) are returned
// before any step is checked. Step failures do not produce an error here;
// they are recorded on the Summary, and Summary.Err aggregates them.
func (e *Executor) Run(ctx context.Context, g *compiler.StepGraph) (*Summary, error) {
	levels, err := g.Levels()
	if err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	ctx, span := e.tracer.Start(ctx, "dhd.run", trace.WithAttributes(
		attribute.String("dhd.run_id", runID),
		attribute.Int("dhd.steps", g.Len()),
		attribute.Int("dhd.levels", len(levels)),
		attribute.Bool("dhd.dry_run", e.opts.DryRun),
	))
	defer span.End()

	if e.logger != nil {
		scoped := *e
		scoped.logger = e.logger.With(ports.F("run_id", runID))
		e = &scoped
	}
	e.info(ctx, "starting run",
		ports.F("steps", g.Len()),
		ports.F("levels", len(levels)),
		ports.F("dry_run", e.opts.DryRun),
	)

	start := time.Now()
	c := newCollector(g.Len())
	halted := false

	for depth, level := range levels {
		if !halted && ctx.Err() != nil {
			e.warn(ctx, "run cancelled", ports.F("error", ctx.Err().Error()))
			halted = true
		}
		if halted {
			for _, step := range level {
				c.add(e.withhold(step, depth))
			}
			continue
		}

		if failures := e.runLevel(ctx, c, level, depth); failures > 0 && e.opts.FailFast {
			e.warn(ctx, "stopping after failed level",
				ports.F("level", depth),
				ports.F("failures", failures),
			)
			halted = true
		}
	}

	summary := c.summary(runID, e.opts.DryRun, time.Since(start))

	outcome := "success"
	if !summary.Success() {
		outcome = "failure"
		span.SetStatus(codes.Error, fmt.Sprintf("%d steps failed", len(summary.Failed)))
	}
	span.SetAttributes(
		attribute.Int("dhd.completed", summary.Completed),
		attribute.Int("dhd.skipped", summary.Skipped),
		attribute.Int("dhd.failed", len(summary.Failed)),
		attribute.Int("dhd.not_attempted", len(summary.NotAttempted)),
	)
	e.metrics.RecordRun(outcome, summary.Duration)
	e.info(ctx, "run finished",
		ports.F("completed", summary.Completed),
		ports.F("skipped", summary.Skipped),
		ports.F("failed", len(summary.Failed)),
		ports.F("not_attempted", len(summary.NotAttempted)),
		ports.F("duration", summary.Duration.String()),
	)
	return summary, nil
}

// runLevel runs one level and returns how many of its steps failed.
func (e *Executor) runLevel(ctx context.Context, c *collector, level []compiler.Step, depth int) int {
	results := make([]StepResult, len(level))

	var eg errgroup.Group
	eg.SetLimit(e.opts.Concurrency)
	for i, step := range level {
		if c.blocked(step) {
			results[i] = e.withhold(step, depth)
			continue
		}
		eg.Go(func() error {
			results[i] = e.runStep(ctx, step, depth)
			return nil
		})
	}
	_ = eg.Wait()

	failures := 0
	for _, r := range results {
		if r.Outcome == OutcomeFailed {
			failures++
		}
		c.add(r)
	}
	return failures
}

func (e *Executor) runStep(ctx context.Context, step compiler.Step, depth int) StepResult {
	result := StepResult{
		StepID:      step.ID(),
		Module:      step.Module(),
		Description: step.Describe(),
		Level:       depth,
	}
	if ctx.Err() != nil {
		return e.withhold(step, depth)
	}

	ctx, span := e.tracer.Start(ctx, "dhd.step", trace.WithAttributes(
		attribute.String("dhd.step_id", step.ID().String()),
		attribute.String("dhd.module", step.Module()),
		attribute.Int("dhd.level", depth),
	))
	defer span.End()

	stepCtx := ctx
	if e.opts.StepTimeout > 0 {
		var cancel context.CancelFunc
		stepCtx, cancel = context.WithTimeout(ctx, e.opts.StepTimeout)
		defer cancel()
	}

	rc := compiler.NewRunContext(stepCtx).
		WithDryRun(e.opts.DryRun).
		WithVerbose(e.opts.Verbose).
		WithLogger(e.stepLogger(step))

	lc := e.lifecycle()
	defer lc.Stop()

	result.Started = time.Now()
	send(lc, eventCheck)
	result.Err = e.drive(stepCtx, lc, step, rc)
	result.Finished = time.Now()

	outcome, err := outcomeOf(currentState(lc))
	if err != nil {
		outcome = OutcomeFailed
		result.Err = errors.Join(result.Err, err)
	}
	result.Outcome = outcome

	span.SetAttributes(attribute.String("dhd.outcome", string(outcome)))
	if result.Err != nil {
		span.RecordError(result.Err)
		span.SetStatus(codes.Error, result.Err.Error())
	}
	e.metrics.RecordStep(step.Module(), string(outcome), result.Duration())
	e.logResult(ctx, result)
	return result
}

// drive moves the lifecycle from checking to a terminal state and returns
// the step error, if any.
func (e *Executor) drive(ctx context.Context, lc *lifecycle, step compiler.Step, rc compiler.RunContext) error {
	status, err := step.Check(rc)
	if err != nil {
		send(lc, eventFailed)
		if timedOut(ctx) {
			return compiler.NewTimeoutError(step, err)
		}
		return compiler.NewCheckFailedError(step, err)
	}
	if !status.NeedsAction() {
		send(lc, eventUpToDate)
		return nil
	}
	if e.opts.DryRun {
		send(lc, eventSimulate)
		return nil
	}

	send(lc, eventProceed)
	if err := step.Apply(rc); err != nil {
		send(lc, eventFailed)
		if timedOut(ctx) {
			return compiler.NewTimeoutError(step, err)
		}
		return compiler.NewApplyFailedError(step, err)
	}
	send(lc, eventSucceeded)
	return nil
}

func timedOut(ctx context.Context) bool {
	return errors.Is(ctx.Err(), context.DeadlineExceeded)
}

// withhold records a step that was never started.
func (e *Executor) withhold(step compiler.Step, depth int) StepResult {
	lc := e.lifecycle()
	defer lc.Stop()
	send(lc, eventWithhold)

	outcome, err := outcomeOf(currentState(lc))
	if err != nil {
		outcome = OutcomeNotAttempted
	}
	e.metrics.RecordStep(step.Module(), string(outcome), 0)
	return StepResult{
		StepID:      step.ID(),
		Module:      step.Module(),
		Description: step.Describe(),
		Level:       depth,
		Outcome:     outcome,
	}
}

func (e *Executor) stepLogger(step compiler.Step) ports.Logger {
	if e.logger == nil {
		return nil
	}
	return e.logger.With(
		ports.F("step", step.ID().String()),
		ports.F("module", step.Module()),
	)
}

func (e *Executor) logResult(ctx context.Context, r StepResult) {
	if e.logger == nil {
		return
	}
	fields := []ports.Field{
		ports.F("step", r.StepID.String()),
		ports.F("module", r.Module),
		ports.F("outcome", string(r.Outcome)),
		ports.F("duration", r.Duration().String()),
	}
	if r.Err != nil {
		e.logger.Error(ctx, r.Description, append(fields, ports.F("error", r.Err.Error()))...)
		return
	}
	e.logger.Info(ctx, r.Description, fields...)
}

func (e *Executor) info(ctx context.Context, msg string, fields ...ports.Field) {
	if e.logger != nil {
		e.logger.Info(ctx, msg, fields...)
	}
}

func (e *Executor) warn(ctx context.Context, msg string, fields ...ports.Field) {
	if e.logger != nil {
		e.logger.Warn(ctx, msg, fields...)
	}
}

// collector accumulates results across levels.
type collector struct {
	mu      sync.Mutex
	results []StepResult
	// unmet holds steps whose dependents must not start.
	unmet map[string]bool
}

func newCollector(n int) *collector {
	return &collector{
		results: make([]StepResult, 0, n),
		unmet:   make(map[string]bool),
	}
}

func (c *collector) add(r StepResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results = append(c.results, r)
	if r.Outcome == OutcomeFailed || r.Outcome == OutcomeNotAttempted {
		c.unmet[r.StepID.String()] = true
	}
}

// blocked reports whether a dependency of step failed or never ran.
func (c *collector) blocked(step compiler.Step) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, dep := range step.DependsOn() {
		if c.unmet[dep.String()] {
			return true
		}
	}
	return false
}

func (c *collector) summary(runID string, dryRun bool, d time.Duration) *Summary {
	c.mu.Lock()
	defer c.mu.Unlock()
	return newSummary(runID, dryRun, c.results, d)
}
