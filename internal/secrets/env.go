package secrets

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// Env читает секреты из переменных окружения процесса.
type Env struct {
	// Lookup подменяется в тестах. nil — os.LookupEnv.
	Lookup func(string) (string, bool)
}

// Resolve реализует Resolver.
func (e Env) Resolve(_ context.Context, name string) (string, error) {
	const op = "secrets/Env/Resolve"

	lookup := e.Lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}

	v, ok := lookup(name)
	if !ok || strings.TrimSpace(v) == "" {
		return "", fmt.Errorf("%s: %s: %w", op, name, ErrNotFound)
	}

	return strings.TrimSpace(v), nil
}
