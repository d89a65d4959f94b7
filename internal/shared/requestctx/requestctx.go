// Package requestctx carries per-request ambient state (the correlation id
// and the resolved idempotency key) through the context chain, so layers
// observe them without threading explicit parameters everywhere.
//
// State is an immutable value: Push derives a child context holding a copy,
// the caller's context is never mutated, and leaving the lexical scope of the
// derived context restores the prior state on every exit path. Concurrent
// operations forked from the same point each capture an independent snapshot;
// a change made on one branch after the fork never leaks into a sibling.
package requestctx

import "context"

type State struct {
	CorrelationID  string
	IdempotencyKey string
}

type ctxKey struct{}

// Push installs state on a derived context.
func Push(ctx context.Context, state State) context.Context {
	return context.WithValue(ctx, ctxKey{}, state)
}

// From returns the installed state, if any.
func From(ctx context.Context) (State, bool) {
	state, ok := ctx.Value(ctxKey{}).(State)
	return state, ok
}

// WithIdempotencyKey derives a context whose state carries the resolved key,
// preserving the correlation id already installed.
func WithIdempotencyKey(ctx context.Context, key string) context.Context {
	state, _ := From(ctx)
	state.IdempotencyKey = key
	return Push(ctx, state)
}

// WithCorrelationID derives a context whose state carries the correlation id.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	state, _ := From(ctx)
	state.CorrelationID = id
	return Push(ctx, state)
}

func CorrelationID(ctx context.Context) string {
	state, _ := From(ctx)
	return state.CorrelationID
}

func IdempotencyKey(ctx context.Context) string {
	state, _ := From(ctx)
	return state.IdempotencyKey
}
