// Package secrets resolves secret references used by module actions.
//
// Supported schemes:
//
//	op://vault/item/field   read through the 1Password CLI
//	env://NAME              read from the process environment
//	literal://value         the value itself
package secrets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/dhd-cli/dhd/internal/ports"
)

// ErrInvalidReference is returned for references with an unknown scheme or shape.
var ErrInvalidReference = errors.New("invalid secret reference")

const (
	schemeOnePassword = "op://"
	schemeEnv         = "env://"
	schemeLiteral     = "literal://"
)

// ReferenceProvider implements ports.SecretProvider with a per-run cache.
type ReferenceProvider struct {
	runner  ports.CommandRunner
	account string
	getenv  func(string) (string, bool)

	mu    sync.Mutex
	cache map[string]string
}

// Option configures a ReferenceProvider.
type Option func(*ReferenceProvider)

// WithAccount passes --account to the 1Password CLI.
func WithAccount(account string) Option {
	return func(p *ReferenceProvider) { p.account = account }
}

// WithLookupEnv replaces os.LookupEnv.
func WithLookupEnv(fn func(string) (string, bool)) Option {
	return func(p *ReferenceProvider) { p.getenv = fn }
}

// NewReferenceProvider creates a ReferenceProvider.
func NewReferenceProvider(runner ports.CommandRunner, opts ...Option) *ReferenceProvider {
	p := &ReferenceProvider{
		runner: runner,
		getenv: os.LookupEnv,
		cache:  make(map[string]string),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Validate checks the shape of ref without resolving it.
func Validate(ref string) error {
	switch {
	case strings.HasPrefix(ref, schemeOnePassword):
		parts := strings.Split(strings.TrimPrefix(ref, schemeOnePassword), "/")
		if len(parts) < 3 {
			return fmt.Errorf("%w: %q must be op://vault/item/field", ErrInvalidReference, ref)
		}
		for _, p := range parts {
			if p == "" {
				return fmt.Errorf("%w: %q has an empty segment", ErrInvalidReference, ref)
			}
		}
		return nil
	case strings.HasPrefix(ref, schemeEnv):
		if strings.TrimPrefix(ref, schemeEnv) == "" {
			return fmt.Errorf("%w: %q names no variable", ErrInvalidReference, ref)
		}
		return nil
	case strings.HasPrefix(ref, schemeLiteral):
		return nil
	default:
		return fmt.Errorf("%w: %q must start with op://, env:// or literal://", ErrInvalidReference, ref)
	}
}

// Resolve returns the plaintext for ref. Successful lookups are cached.
func (p *ReferenceProvider) Resolve(ctx context.Context, ref string) (string, error) {
	p.mu.Lock()
	if v, ok := p.cache[ref]; ok {
		p.mu.Unlock()
		return v, nil
	}
	p.mu.Unlock()

	if err := Validate(ref); err != nil {
		return "", err
	}

	var (
		value string
		err   error
	)
	switch {
	case strings.HasPrefix(ref, schemeOnePassword):
		value, err = p.readOnePassword(ctx, ref)
	case strings.HasPrefix(ref, schemeEnv):
		name := strings.TrimPrefix(ref, schemeEnv)
		v, ok := p.getenv(name)
		if !ok {
			err = fmt.Errorf("%w: environment variable %s", ports.ErrSecretNotFound, name)
		}
		value = v
	default:
		value = strings.TrimPrefix(ref, schemeLiteral)
	}
	if err != nil {
		return "", err
	}

	p.mu.Lock()
	p.cache[ref] = value
	p.mu.Unlock()
	return value, nil
}

func (p *ReferenceProvider) readOnePassword(ctx context.Context, ref string) (string, error) {
	if p.runner == nil {
		return "", fmt.Errorf("resolve %s: no command runner configured", ref)
	}
	if _, ok := p.runner.LookPath("op"); !ok {
		return "", fmt.Errorf("resolve %s: 1Password CLI (op) not found on PATH", ref)
	}

	args := []string{"read", ref}
	if p.account != "" {
		args = append(args, "--account", p.account)
	}
	result, err := p.runner.Run(ctx, "op", args...)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", ref, err)
	}
	if !result.Success() {
		return "", fmt.Errorf("resolve %s: op read exited %d: %s",
			ref, result.ExitCode, strings.TrimSpace(result.Stderr))
	}
	return strings.TrimRight(result.Stdout, "\r\n"), nil
}

var _ ports.SecretProvider = (*ReferenceProvider)(nil)
