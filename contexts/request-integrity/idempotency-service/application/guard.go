package application

import (
	"context"
	"fmt"
	"log/slog"

	"turnstile/contexts/request-integrity/idempotency-service/domain/entities"
	domainerrors "turnstile/contexts/request-integrity/idempotency-service/domain/errors"
	"turnstile/contexts/request-integrity/idempotency-service/ports"
)

// Outcome is the terminal state of one guarded request.
type Outcome int

const (
	// OutcomePassedThrough means no key was present and the table does not
	// require one; the handler ran unguarded.
	OutcomePassedThrough Outcome = iota
	// OutcomeCompleted means this request won the claim, executed the handler
	// and committed its response.
	OutcomeCompleted
	// OutcomeReplayed means a prior request already finalized this key; the
	// stored response is returned verbatim and the handler never ran.
	OutcomeReplayed
	// OutcomeProcessing means a live duplicate holds the key and the table
	// policy is to signal rather than throw; the caller layer decides.
	OutcomeProcessing
)

// GuardedHandler is the downstream operation executed under the claim lock.
type GuardedHandler func(ctx context.Context) (entities.GuardedResponse, error)

type Result struct {
	Outcome  Outcome
	Key      string
	Response entities.GuardedResponse
}

// Guard sequences key selection, claiming, guarded execution and
// finalization for one request. It is stateless per request and safe to run
// identically for every concurrent duplicate: ordering between duplicates is
// decided entirely by the store's uniqueness constraint.
type Guard struct {
	Registry       *Registry
	Stores         map[string]ports.ClaimStore
	Selector       ports.KeySelector
	BindKey        ports.KeyBinder
	UseTransaction bool
	Logger         *slog.Logger
}

// Execute runs the guarded request against the named claim table. Validation
// and conflict failures surface as the sentinel errors in domain/errors;
// storage failures other than the recognized duplicate-key signal propagate
// unmodified and are never retried here.
func (g Guard) Execute(ctx context.Context, tableName string, req ports.RequestInfo, handler GuardedHandler) (Result, error) {
	logger := ResolveLogger(g.Logger)

	table, err := g.Registry.Table(tableName)
	if err != nil {
		return Result{}, err
	}
	store, ok := g.Stores[tableName]
	if !ok {
		return Result{}, fmt.Errorf("no claim store wired for table %q", tableName)
	}

	selected, err := g.Selector.SelectKey(ctx, table, req)
	if err != nil {
		logger.Warn("idempotency key rejected",
			"event", "idempotency_key_rejected",
			"module", "request-integrity/idempotency-service",
			"layer", "application",
			"table", tableName,
			"method", req.Method,
			"path", req.Path,
			"error", err.Error(),
		)
		return Result{}, err
	}

	if !selected.Present {
		if table.IdempotencyKeyRequired {
			logger.Warn("idempotency key missing",
				"event", "idempotency_key_missing",
				"module", "request-integrity/idempotency-service",
				"layer", "application",
				"table", tableName,
				"method", req.Method,
				"path", req.Path,
			)
			return Result{}, domainerrors.ErrIdempotencyKeyRequired
		}
		response, err := handler(ctx)
		if err != nil {
			return Result{}, err
		}
		return Result{Outcome: OutcomePassedThrough, Response: response}, nil
	}

	key := selected.Value
	if g.BindKey != nil {
		ctx = g.BindKey(ctx, key)
	}

	claim, err := store.Claim(ctx, table, key, g.UseTransaction)
	if err != nil {
		logger.Error("claim attempt failed",
			"event", "idempotency_claim_failed",
			"module", "request-integrity/idempotency-service",
			"layer", "application",
			"table", tableName,
			"key", key,
			"error", err.Error(),
		)
		return Result{}, err
	}

	switch claim.Status {
	case ports.ClaimStatusClaimed:
		return g.execute(ctx, store, table, key, claim.Lock, handler, logger)

	case ports.ClaimStatusConflictCompleted:
		logger.Info("replaying finalized response",
			"event", "idempotency_replayed",
			"module", "request-integrity/idempotency-service",
			"layer", "application",
			"table", tableName,
			"key", key,
			"status_code", *claim.StatusCode,
		)
		return Result{
			Outcome: OutcomeReplayed,
			Key:     key,
			Response: entities.GuardedResponse{
				StatusCode: *claim.StatusCode,
				Body:       *claim.Response,
			},
		}, nil

	case ports.ClaimStatusConflictPending:
		logger.Warn("concurrent duplicate in flight",
			"event", "idempotency_conflict_pending",
			"module", "request-integrity/idempotency-service",
			"layer", "application",
			"table", tableName,
			"key", key,
			"throw_on_conflict", table.ThrowOnConflict,
		)
		if table.ThrowOnConflict {
			return Result{}, domainerrors.ErrIdempotencyConflict
		}
		return Result{Outcome: OutcomeProcessing, Key: key}, nil

	default:
		return Result{}, fmt.Errorf("unexpected claim status %d for table %q", claim.Status, tableName)
	}
}

// execute runs the handler under the open lock. The lock is released on every
// exit path: commit after finalize on success, rollback on handler failure or
// panic, so the key reverts to claimable instead of staying Pending forever.
func (g Guard) execute(
	ctx context.Context,
	store ports.ClaimStore,
	table entities.ClaimTable,
	key string,
	lock ports.LockHandle,
	handler GuardedHandler,
	logger *slog.Logger,
) (Result, error) {
	defer lock.Release()

	response, err := handler(ctx)
	if err != nil {
		if rbErr := lock.Rollback(ctx); rbErr != nil {
			logger.Error("claim rollback failed",
				"event", "idempotency_rollback_failed",
				"module", "request-integrity/idempotency-service",
				"layer", "application",
				"table", table.Name,
				"key", key,
				"error", rbErr.Error(),
			)
		}
		return Result{}, err
	}

	if err := store.Finalize(ctx, lock, table, key, response.Body, response.StatusCode); err != nil {
		if rbErr := lock.Rollback(ctx); rbErr != nil {
			logger.Error("claim rollback failed",
				"event", "idempotency_rollback_failed",
				"module", "request-integrity/idempotency-service",
				"layer", "application",
				"table", table.Name,
				"key", key,
				"error", rbErr.Error(),
			)
		}
		return Result{}, err
	}
	if err := lock.Commit(ctx); err != nil {
		return Result{}, err
	}

	logger.Info("guarded request finalized",
		"event", "idempotency_finalized",
		"module", "request-integrity/idempotency-service",
		"layer", "application",
		"table", table.Name,
		"key", key,
		"status_code", response.StatusCode,
	)
	return Result{Outcome: OutcomeCompleted, Key: key, Response: response}, nil
}
