package compiler

import (
	"context"

	"github.com/dhd-cli/dhd/internal/ports"
)

// RunContext carries per-run settings into Check and Apply.
type RunContext struct {
	ctx     context.Context
	dryRun  bool
	verbose bool
	logger  ports.Logger
}

// NewRunContext creates a RunContext for ctx.
func NewRunContext(ctx context.Context) RunContext {
	return RunContext{ctx: ctx}
}

// Context returns the underlying context.Context.
func (r RunContext) Context() context.Context {
	return r.ctx
}

// DryRun reports whether effects must be suppressed.
func (r RunContext) DryRun() bool {
	return r.dryRun
}

// Verbose reports whether steps should emit detailed tracing.
func (r RunContext) Verbose() bool {
	return r.verbose
}

// Logger returns the run logger, or nil.
func (r RunContext) Logger() ports.Logger {
	return r.logger
}

// WithDryRun returns a copy with the dry-run flag set.
func (r RunContext) WithDryRun(dryRun bool) RunContext {
	r.dryRun = dryRun
	return r
}

// WithVerbose returns a copy with the verbose flag set.
func (r RunContext) WithVerbose(verbose bool) RunContext {
	r.verbose = verbose
	return r
}

// WithLogger returns a copy carrying logger.
func (r RunContext) WithLogger(logger ports.Logger) RunContext {
	r.logger = logger
	return r
}

// WithContext returns a copy bound to ctx, e.g. one with a step deadline.
func (r RunContext) WithContext(ctx context.Context) RunContext {
	r.ctx = ctx
	return r
}
