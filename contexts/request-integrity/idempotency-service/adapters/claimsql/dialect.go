package claimsql

import (
	"context"

	"turnstile/contexts/request-integrity/idempotency-service/domain/entities"

	"gorm.io/gorm"
)

// Dialect isolates everything engine-specific: the schema DDL and the
// recognition of the engine's duplicate-key signal. The store and the
// orchestrator above it never see an engine error code, so supporting a new
// engine means writing one more dialect and nothing else.
type Dialect interface {
	Name() string
	// TableRef returns the fully qualified, quoted claim table reference.
	TableRef(table entities.ClaimTable) string
	// EnsureSchema creates the namespace and table if absent. Safe to call
	// repeatedly.
	EnsureSchema(ctx context.Context, db *gorm.DB, table entities.ClaimTable) error
	// IsDuplicateKey reports whether err is this engine's uniqueness
	// violation. Every other error is fatal and passes through unmodified.
	IsDuplicateKey(err error) bool
}
