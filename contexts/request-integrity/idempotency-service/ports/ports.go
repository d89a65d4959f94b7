package ports

import (
	"context"
	"net/textproto"

	"turnstile/contexts/request-integrity/idempotency-service/domain/entities"
)

// RequestInfo is the transport-agnostic description of an inbound request
// handed to key selectors.
type RequestInfo struct {
	Method  string
	Path    string
	Headers map[string][]string
}

func (r RequestInfo) Header(name string) string {
	values := r.Headers[textproto.CanonicalMIMEHeaderKey(name)]
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

// SelectedKey is the outcome of key selection. Present=false means the
// request carried no key at all; a malformed key is an error, not absence.
type SelectedKey struct {
	Value   string
	Present bool
}

// KeySelector derives the idempotency key for an inbound request. Any
// strategy producing a deterministic key for semantically identical requests
// is a valid implementation.
type KeySelector interface {
	SelectKey(ctx context.Context, table entities.ClaimTable, req RequestInfo) (SelectedKey, error)
}

// KeyBinder attaches the resolved idempotency key to the in-flight request
// context so downstream layers observe it without re-deriving it.
type KeyBinder func(ctx context.Context, key string) context.Context

// EngineResolver maps a connection target to an engine identifier, failing
// with ErrUnsupportedEngine when no provider is registered for it.
type EngineResolver interface {
	ResolveEngine(target string) (string, error)
}

// LockHandle is the scoped guard over the transaction opened by a successful
// claim. Release rolls back unless Commit or Rollback already ran, so a
// crashed or cancelled handler never leaves a Pending row holding the key.
type LockHandle interface {
	Acquired() bool
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
	Release()
}

type ClaimStatus int

const (
	// ClaimStatusClaimed means the insert won and the caller holds the lock.
	ClaimStatusClaimed ClaimStatus = iota
	// ClaimStatusConflictPending means a live duplicate holds the key and has
	// not finalized yet.
	ClaimStatusConflictPending
	// ClaimStatusConflictCompleted means a prior request finalized the key;
	// Response and StatusCode carry its result for verbatim replay.
	ClaimStatusConflictCompleted
)

type ClaimResult struct {
	Status     ClaimStatus
	Lock       LockHandle
	Response   *string
	StatusCode *int
}

// ClaimStore is the per-engine claim provider. The engine-specific
// duplicate-key signal is the only storage error a store may intercept; it is
// reclassified into a conflict result. Every other storage error propagates
// unmodified.
type ClaimStore interface {
	EnsureSchema(ctx context.Context, table entities.ClaimTable) error
	Claim(ctx context.Context, table entities.ClaimTable, key string, useTransaction bool) (ClaimResult, error)
	Finalize(ctx context.Context, lock LockHandle, table entities.ClaimTable, key string, response string, statusCode int) error
}
