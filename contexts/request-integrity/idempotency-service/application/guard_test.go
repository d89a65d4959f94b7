package application_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"turnstile/contexts/request-integrity/idempotency-service/adapters/keyselect"
	"turnstile/contexts/request-integrity/idempotency-service/adapters/memory"
	"turnstile/contexts/request-integrity/idempotency-service/application"
	"turnstile/contexts/request-integrity/idempotency-service/domain/entities"
	domainerrors "turnstile/contexts/request-integrity/idempotency-service/domain/errors"
	"turnstile/contexts/request-integrity/idempotency-service/ports"
)

const validKey = "3fa85f64-5717-4562-b3fc-2c963f66afa6"

func newGuard(t *testing.T, opts application.TableOptions) (application.Guard, *memory.Store) {
	t.Helper()
	registry, err := application.NewRegistryBuilder("memory://local", memory.EngineResolver{}, nil).
		Register(application.DefaultTableName, opts).
		Build()
	if err != nil {
		t.Fatalf("build registry: %v", err)
	}
	store := memory.NewStore()
	guard := application.Guard{
		Registry:       registry,
		Stores:         map[string]ports.ClaimStore{application.DefaultTableName: store},
		Selector:       keyselect.HeaderSelector{},
		UseTransaction: true,
	}
	return guard, store
}

func requestWithKey(key string) ports.RequestInfo {
	headers := map[string][]string{}
	if key != "" {
		headers["Idempotency-Key"] = []string{key}
	}
	return ports.RequestInfo{Method: "POST", Path: "/v1/things", Headers: headers}
}

func okHandler(body string) application.GuardedHandler {
	return func(context.Context) (entities.GuardedResponse, error) {
		return entities.GuardedResponse{StatusCode: 200, Body: body}, nil
	}
}

func TestExecuteMissingKeyRequired(t *testing.T) {
	guard, _ := newGuard(t, application.TableOptions{})

	_, err := guard.Execute(context.Background(), application.DefaultTableName, requestWithKey(""), okHandler("ok"))
	if !errors.Is(err, domainerrors.ErrIdempotencyKeyRequired) {
		t.Fatalf("expected ErrIdempotencyKeyRequired, got %v", err)
	}
}

func TestExecuteMissingKeyOptionalPassesThrough(t *testing.T) {
	guard, store := newGuard(t, application.TableOptions{IdempotencyKeyOptional: true})

	result, err := guard.Execute(context.Background(), application.DefaultTableName, requestWithKey(""), okHandler("ok"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Outcome != application.OutcomePassedThrough {
		t.Fatalf("expected pass-through, got %v", result.Outcome)
	}
	if _, found := store.Record(application.DefaultTableName, validKey); found {
		t.Fatal("pass-through must not touch the claim store")
	}
}

func TestExecuteMalformedKeyRejectedBeforeStore(t *testing.T) {
	guard, _ := newGuard(t, application.TableOptions{})

	calls := 0
	_, err := guard.Execute(context.Background(), application.DefaultTableName, requestWithKey("not-a-guid"),
		func(context.Context) (entities.GuardedResponse, error) {
			calls++
			return entities.GuardedResponse{StatusCode: 200}, nil
		})
	if !errors.Is(err, domainerrors.ErrMalformedIdempotencyKey) {
		t.Fatalf("expected ErrMalformedIdempotencyKey, got %v", err)
	}
	if calls != 0 {
		t.Fatal("handler must not run for a malformed key")
	}
}

func TestExecuteClaimsFinalizesAndCommits(t *testing.T) {
	guard, store := newGuard(t, application.TableOptions{})

	result, err := guard.Execute(context.Background(), application.DefaultTableName, requestWithKey(validKey), okHandler(`{"ok":true}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Outcome != application.OutcomeCompleted {
		t.Fatalf("expected completed, got %v", result.Outcome)
	}

	record, found := store.Record(application.DefaultTableName, validKey)
	if !found || !record.Completed() {
		t.Fatalf("expected a committed completed record, got %+v found=%v", record, found)
	}
	if *record.Response != `{"ok":true}` || *record.StatusCode != 200 {
		t.Fatalf("unexpected finalized record: %+v", record)
	}
}

func TestExecuteReplaysFinalizedResponseVerbatim(t *testing.T) {
	guard, _ := newGuard(t, application.TableOptions{})

	if _, err := guard.Execute(context.Background(), application.DefaultTableName, requestWithKey(validKey), okHandler(`{"n":1}`)); err != nil {
		t.Fatalf("first request: %v", err)
	}

	calls := 0
	result, err := guard.Execute(context.Background(), application.DefaultTableName, requestWithKey(validKey),
		func(context.Context) (entities.GuardedResponse, error) {
			calls++
			return entities.GuardedResponse{StatusCode: 200, Body: `{"n":2}`}, nil
		})
	if err != nil {
		t.Fatalf("second request: %v", err)
	}
	if calls != 0 {
		t.Fatal("handler must not run for a replay")
	}
	if result.Outcome != application.OutcomeReplayed {
		t.Fatalf("expected replay, got %v", result.Outcome)
	}
	if result.Response.Body != `{"n":1}` || result.Response.StatusCode != 200 {
		t.Fatalf("replay must return the original response, got %+v", result.Response)
	}
}

func TestExecuteHandlerFailureReleasesClaim(t *testing.T) {
	guard, store := newGuard(t, application.TableOptions{})

	handlerErr := errors.New("downstream exploded")
	_, err := guard.Execute(context.Background(), application.DefaultTableName, requestWithKey(validKey),
		func(context.Context) (entities.GuardedResponse, error) {
			return entities.GuardedResponse{}, handlerErr
		})
	if !errors.Is(err, handlerErr) {
		t.Fatalf("expected handler error to propagate, got %v", err)
	}
	if _, found := store.Record(application.DefaultTableName, validKey); found {
		t.Fatal("failed claim must be rolled back")
	}

	result, err := guard.Execute(context.Background(), application.DefaultTableName, requestWithKey(validKey), okHandler("ok"))
	if err != nil {
		t.Fatalf("retry after failure: %v", err)
	}
	if result.Outcome != application.OutcomeCompleted {
		t.Fatalf("retry must claim and execute, got %v", result.Outcome)
	}
}

func TestExecutePendingConflictThrows(t *testing.T) {
	guard, _ := newGuard(t, application.TableOptions{ThrowOnConflict: true})

	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		_, err := guard.Execute(context.Background(), application.DefaultTableName, requestWithKey(validKey),
			func(context.Context) (entities.GuardedResponse, error) {
				close(started)
				<-release
				return entities.GuardedResponse{StatusCode: 200, Body: "ok"}, nil
			})
		done <- err
	}()

	<-started
	_, err := guard.Execute(context.Background(), application.DefaultTableName, requestWithKey(validKey), okHandler("dup"))
	if !errors.Is(err, domainerrors.ErrIdempotencyConflict) {
		t.Fatalf("expected ErrIdempotencyConflict while winner is pending, got %v", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("winner failed: %v", err)
	}
}

func TestExecutePendingConflictSignalsProcessing(t *testing.T) {
	guard, _ := newGuard(t, application.TableOptions{})

	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		_, err := guard.Execute(context.Background(), application.DefaultTableName, requestWithKey(validKey),
			func(context.Context) (entities.GuardedResponse, error) {
				close(started)
				<-release
				return entities.GuardedResponse{StatusCode: 200, Body: "ok"}, nil
			})
		done <- err
	}()

	<-started
	result, err := guard.Execute(context.Background(), application.DefaultTableName, requestWithKey(validKey), okHandler("dup"))
	if err != nil {
		t.Fatalf("non-throwing policy must not error: %v", err)
	}
	if result.Outcome != application.OutcomeProcessing {
		t.Fatalf("expected processing signal, got %v", result.Outcome)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("winner failed: %v", err)
	}
}

func TestExecuteAtMostOnceUnderConcurrency(t *testing.T) {
	guard, _ := newGuard(t, application.TableOptions{})

	const workers = 16
	var executions atomic.Int32
	var replays atomic.Int32
	var conflicts atomic.Int32

	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			result, err := guard.Execute(context.Background(), application.DefaultTableName, requestWithKey(validKey),
				func(context.Context) (entities.GuardedResponse, error) {
					executions.Add(1)
					return entities.GuardedResponse{StatusCode: 200, Body: "winner"}, nil
				})
			switch {
			case err != nil:
				t.Errorf("unexpected error: %v", err)
			case result.Outcome == application.OutcomeReplayed:
				replays.Add(1)
			case result.Outcome == application.OutcomeProcessing:
				conflicts.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	if got := executions.Load(); got != 1 {
		t.Fatalf("exactly one handler execution expected, got %d", got)
	}
	if replays.Load()+conflicts.Load() != workers-1 {
		t.Fatalf("losers must resolve to replay or conflict: replays=%d conflicts=%d", replays.Load(), conflicts.Load())
	}
}

func TestExecuteUnknownTable(t *testing.T) {
	guard, _ := newGuard(t, application.TableOptions{})

	_, err := guard.Execute(context.Background(), "Nope", requestWithKey(validKey), okHandler("ok"))
	if !errors.Is(err, domainerrors.ErrUnknownTable) {
		t.Fatalf("expected ErrUnknownTable, got %v", err)
	}
}
