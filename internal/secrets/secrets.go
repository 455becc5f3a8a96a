package secrets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

var (
	ErrSecretNotFound  = errors.New("secret not found")
	ErrSecretAccess    = errors.New("secret access denied")
	ErrSecretMalformed = errors.New("secret malformed")
)

// Store looks up a named secret and returns its value as a key/value map.
type Store interface {
	Lookup(ctx context.Context, name string) (map[string]string, error)
}

// Resolver fetches the search API key from a Store. Failures are logged
// here; callers get the error back to decide whether to continue.
type Resolver struct {
	store  Store
	logger *slog.Logger
}

func NewResolver(store Store, logger *slog.Logger) *Resolver {
	return &Resolver{
		store:  store,
		logger: logger.With("component", "secrets"),
	}
}

// Resolve returns the full key map stored under name.
func (r *Resolver) Resolve(ctx context.Context, name string) (map[string]string, error) {
	values, err := r.store.Lookup(ctx, name)
	if err != nil {
		r.logger.Error("failed to resolve secret", "secret", name, "error", err)
		return nil, err
	}
	return values, nil
}

// APIKey returns the value stored under the secret's own name, which is the
// layout the secret store uses: {"<secret-name>": "<api-key>"}.
func (r *Resolver) APIKey(ctx context.Context, name string) (string, error) {
	values, err := r.Resolve(ctx, name)
	if err != nil {
		return "", err
	}

	key, ok := values[name]
	if !ok || key == "" {
		err := fmt.Errorf("%w: secret %q has no key %q", ErrSecretMalformed, name, name)
		r.logger.Error("failed to resolve secret", "secret", name, "error", err)
		return "", err
	}
	return key, nil
}
