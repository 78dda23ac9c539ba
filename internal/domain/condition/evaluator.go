package condition

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dhd-cli/dhd/internal/ports"
)

// PropertySource exposes precomputed system properties.
type PropertySource interface {
	Property(path string) (string, bool)
}

// EvaluationError reports a leaf whose check could not be performed, for
// example a command that failed to start.
type EvaluationError struct {
	Condition string
	Err       error
}

func (e *EvaluationError) Error() string {
	return fmt.Sprintf("evaluate %q: %v", e.Condition, e.Err)
}

func (e *EvaluationError) Unwrap() error {
	return e.Err
}

// Evaluator evaluates Conditions against the host.
type Evaluator struct {
	runner     ports.CommandRunner
	fs         ports.FileSystem
	properties PropertySource
	secrets    ports.SecretProvider
	lookupEnv  func(string) (string, bool)
	baseDir    string
	logger     ports.Logger
	verbose    bool
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithProperties sets the system property source.
func WithProperties(p PropertySource) Option {
	return func(e *Evaluator) { e.properties = p }
}

// WithSecrets enables SecretExists checks against a provider.
func WithSecrets(s ports.SecretProvider) Option {
	return func(e *Evaluator) { e.secrets = s }
}

// WithLookupEnv replaces os.LookupEnv.
func WithLookupEnv(fn func(string) (string, bool)) Option {
	return func(e *Evaluator) { e.lookupEnv = fn }
}

// WithLogger traces per-leaf outcomes at debug level when verbose is set.
func WithLogger(logger ports.Logger, verbose bool) Option {
	return func(e *Evaluator) {
		e.logger = logger
		e.verbose = verbose
	}
}

// NewEvaluator creates an Evaluator.
func NewEvaluator(runner ports.CommandRunner, fs ports.FileSystem, opts ...Option) *Evaluator {
	e := &Evaluator{
		runner:    runner,
		fs:        fs,
		lookupEnv: os.LookupEnv,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// WithBaseDir returns a copy that resolves relative paths against dir.
func (e *Evaluator) WithBaseDir(dir string) *Evaluator {
	c := *e
	c.baseDir = dir
	return &c
}

// Evaluate reduces c to a boolean. A nil condition holds. The first leaf
// error stops evaluation and is returned as *EvaluationError.
func (e *Evaluator) Evaluate(ctx context.Context, c Condition) (bool, error) {
	if c == nil {
		return true, nil
	}

	ok, err := e.eval(ctx, c)
	if err == nil && e.verbose && e.logger != nil {
		e.logger.Debug(ctx, "condition evaluated",
			ports.F("condition", c.String()),
			ports.F("result", ok),
		)
	}
	return ok, err
}

func (e *Evaluator) eval(ctx context.Context, c Condition) (bool, error) {
	switch c := c.(type) {
	case AllOf:
		for _, child := range c.Conditions {
			ok, err := e.Evaluate(ctx, child)
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil

	case AnyOf:
		for _, child := range c.Conditions {
			ok, err := e.Evaluate(ctx, child)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil

	case Not:
		ok, err := e.Evaluate(ctx, c.Condition)
		if err != nil {
			return false, err
		}
		return !ok, nil

	case FileExists:
		path, ok := e.followLinks(ports.ResolvePath(c.Path, e.baseDir))
		return ok && e.fs.Exists(path) && !e.fs.IsDir(path), nil

	case DirectoryExists:
		path, ok := e.followLinks(ports.ResolvePath(c.Path, e.baseDir))
		return ok && e.fs.IsDir(path), nil

	case CommandExists:
		_, ok := e.runner.LookPath(c.Command)
		return ok, nil

	case CommandSucceeds:
		return e.commandSucceeds(ctx, c)

	case EnvVar:
		v, ok := e.lookupEnv(c.Name)
		if !ok {
			return false, nil
		}
		return c.Value == nil || v == *c.Value, nil

	case Property:
		return e.property(c)

	case SecretExists:
		return e.secretExists(ctx, c)

	default:
		return false, &EvaluationError{Condition: fmt.Sprintf("%T", c), Err: errors.New("unsupported condition")}
	}
}

// maxLinkHops matches the kernel's ELOOP limit.
const maxLinkHops = 40

// followLinks resolves path through any chain of symlinks. Relative targets
// are taken from the link's directory. It reports false for a loop.
func (e *Evaluator) followLinks(path string) (string, bool) {
	for range maxLinkHops {
		isLink, target := e.fs.IsSymlink(path)
		if !isLink {
			return path, true
		}
		if target == "" {
			return "", false
		}
		if !filepath.IsAbs(target) {
			target = filepath.Join(filepath.Dir(path), target)
		}
		path = filepath.Clean(target)
	}
	return "", false
}

func (e *Evaluator) commandSucceeds(ctx context.Context, c CommandSucceeds) (bool, error) {
	result, err := e.runner.RunSpec(ctx, ports.CommandSpec{
		Name: c.Command,
		Args: c.Args,
		Dir:  e.baseDir,
	})
	if err != nil {
		return false, &EvaluationError{Condition: c.String(), Err: err}
	}
	return result.Success(), nil
}

func (e *Evaluator) property(c Property) (bool, error) {
	if e.properties == nil {
		return false, nil
	}
	actual, ok := e.properties.Property(c.Path)
	if !ok {
		return false, nil
	}
	matched, err := c.Operator.Compare(actual, c.Value)
	if err != nil {
		return false, &EvaluationError{Condition: c.String(), Err: err}
	}
	return matched, nil
}

func (e *Evaluator) secretExists(ctx context.Context, c SecretExists) (bool, error) {
	if e.secrets == nil {
		return strings.HasPrefix(c.Reference, "op://") ||
			strings.HasPrefix(c.Reference, "env://") ||
			strings.HasPrefix(c.Reference, "literal://"), nil
	}
	v, err := e.secrets.Resolve(ctx, c.Reference)
	if errors.Is(err, ports.ErrSecretNotFound) {
		return false, nil
	}
	if err != nil {
		return false, &EvaluationError{Condition: c.String(), Err: err}
	}
	return v != "", nil
}
