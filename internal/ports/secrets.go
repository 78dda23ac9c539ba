package ports

import (
	"context"
	"errors"
)

// ErrSecretNotFound is returned when a secret reference resolves to nothing.
var ErrSecretNotFound = errors.New("secret not found")

// SecretProvider resolves secret references such as "op://vault/item/field"
// or "env://NAME" into their plaintext values.
type SecretProvider interface {
	Resolve(ctx context.Context, ref string) (string, error)
}
