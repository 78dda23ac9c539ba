package mocks

import (
	"context"
	"fmt"
	"sync"

	"github.com/dhd-cli/dhd/internal/ports"
)

// SecretProvider resolves references from an in-memory table.
type SecretProvider struct {
	mu       sync.Mutex
	values   map[string]string
	resolved []string
}

// NewSecretProvider creates a SecretProvider seeded with values.
func NewSecretProvider(values map[string]string) *SecretProvider {
	v := make(map[string]string, len(values))
	for k, s := range values {
		v[k] = s
	}
	return &SecretProvider{values: v}
}

// Resolve looks up ref.
func (p *SecretProvider) Resolve(_ context.Context, ref string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resolved = append(p.resolved, ref)
	v, ok := p.values[ref]
	if !ok {
		return "", fmt.Errorf("%w: %s", ports.ErrSecretNotFound, ref)
	}
	return v, nil
}

// Resolved lists the references asked for, in order.
func (p *SecretProvider) Resolved() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.resolved...)
}

var _ ports.SecretProvider = (*SecretProvider)(nil)
