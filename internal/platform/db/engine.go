package db

import (
	"fmt"
	"strings"

	domainerrors "turnstile/contexts/request-integrity/idempotency-service/domain/errors"
	"turnstile/contexts/request-integrity/idempotency-service/ports"
)

type Engine string

const (
	EnginePostgres Engine = "postgres"
	EngineSQLite   Engine = "sqlite"
)

// DetectEngine maps a connection target to its engine. Detection happens once
// per table at registry build time; an unrecognized target is a startup
// failure, never a per-request one.
func DetectEngine(target string) (Engine, error) {
	t := strings.TrimSpace(target)
	switch {
	case strings.HasPrefix(t, "postgres://"),
		strings.HasPrefix(t, "postgresql://"),
		strings.Contains(t, "host="):
		return EnginePostgres, nil
	case strings.HasPrefix(t, "sqlite://"),
		strings.HasPrefix(t, "file:"),
		t == ":memory:",
		strings.HasSuffix(t, ".db"):
		return EngineSQLite, nil
	}
	return "", fmt.Errorf("%w: %q", domainerrors.ErrUnsupportedEngine, target)
}

// Resolver adapts engine detection to the registry's build-time validation.
type Resolver struct{}

func (Resolver) ResolveEngine(target string) (string, error) {
	engine, err := DetectEngine(target)
	if err != nil {
		return "", err
	}
	return string(engine), nil
}

var _ ports.EngineResolver = Resolver{}
