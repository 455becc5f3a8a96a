package secrets

import (
	"context"
	"fmt"
	"os"
)

// EnvStore serves a single secret from an environment variable. Useful for
// local runs where the variable comes from a .env file.
type EnvStore struct {
	envVar string
}

func NewEnvStore(envVar string) *EnvStore {
	return &EnvStore{envVar: envVar}
}

func (s *EnvStore) Lookup(_ context.Context, name string) (map[string]string, error) {
	value := os.Getenv(s.envVar)
	if value == "" {
		return nil, fmt.Errorf("%w: secret %q not found in $%s", ErrSecretNotFound, name, s.envVar)
	}
	return map[string]string{name: value}, nil
}
