package memory

import (
	"context"
	"sync"

	"turnstile/contexts/request-integrity/idempotency-service/domain/entities"
	domainerrors "turnstile/contexts/request-integrity/idempotency-service/domain/errors"
	"turnstile/contexts/request-integrity/idempotency-service/ports"
)

// Store is the in-memory claim provider used by tests and local wiring. It
// mirrors the relational semantics: a Pending row is visible to concurrent
// claimers the moment it is inserted, finalized values only land on commit,
// and rollback removes the Pending row.
type Store struct {
	mu     sync.Mutex
	tables map[string]map[string]entities.ClaimRecord
}

func NewStore() *Store {
	return &Store{tables: make(map[string]map[string]entities.ClaimRecord)}
}

func (s *Store) EnsureSchema(_ context.Context, table entities.ClaimTable) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tables[table.Name]; !ok {
		s.tables[table.Name] = make(map[string]entities.ClaimRecord)
	}
	return nil
}

func (s *Store) Claim(_ context.Context, table entities.ClaimTable, key string, _ bool) (ports.ClaimResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, ok := s.tables[table.Name]
	if !ok {
		rows = make(map[string]entities.ClaimRecord)
		s.tables[table.Name] = rows
	}

	if existing, found := rows[key]; found {
		if existing.Completed() {
			response := *existing.Response
			statusCode := *existing.StatusCode
			return ports.ClaimResult{
				Status:     ports.ClaimStatusConflictCompleted,
				Response:   &response,
				StatusCode: &statusCode,
			}, nil
		}
		return ports.ClaimResult{Status: ports.ClaimStatusConflictPending}, nil
	}

	rows[key] = entities.ClaimRecord{Key: key}
	return ports.ClaimResult{
		Status: ports.ClaimStatusClaimed,
		Lock:   &lockHandle{store: s, table: table.Name, key: key},
	}, nil
}

func (s *Store) Finalize(_ context.Context, lock ports.LockHandle, _ entities.ClaimTable, _ string, response string, statusCode int) error {
	handle, ok := lock.(*lockHandle)
	if !ok {
		return domainerrors.ErrForeignLock
	}
	handle.mu.Lock()
	defer handle.mu.Unlock()
	if handle.done {
		return domainerrors.ErrLockReleased
	}
	handle.response = &response
	handle.statusCode = &statusCode
	return nil
}

func (s *Store) commit(handle *lockHandle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := s.tables[handle.table]
	record := rows[handle.key]
	record.Response = handle.response
	record.StatusCode = handle.statusCode
	rows[handle.key] = record
}

func (s *Store) rollback(handle *lockHandle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rows, ok := s.tables[handle.table]; ok {
		if record, found := rows[handle.key]; found && !record.Completed() {
			delete(rows, handle.key)
		}
	}
}

// Record exposes the committed row for assertions in tests.
func (s *Store) Record(table string, key string) (entities.ClaimRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.tables[table][key]
	return record, ok
}

// lockHandle stages finalized values until commit, the way an open
// transaction would.
type lockHandle struct {
	store *Store
	table string
	key   string

	mu         sync.Mutex
	done       bool
	response   *string
	statusCode *int
}

func (l *lockHandle) Acquired() bool { return true }

func (l *lockHandle) Commit(context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.done {
		return domainerrors.ErrLockReleased
	}
	l.done = true
	l.store.commit(l)
	return nil
}

func (l *lockHandle) Rollback(context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.done {
		return nil
	}
	l.done = true
	l.store.rollback(l)
	return nil
}

func (l *lockHandle) Release() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.done {
		l.done = true
		l.store.rollback(l)
	}
}

var _ ports.ClaimStore = (*Store)(nil)
var _ ports.LockHandle = (*lockHandle)(nil)

// EngineResolver accepts any connection target; the in-memory provider has no
// real engine behind it.
type EngineResolver struct{}

func (EngineResolver) ResolveEngine(string) (string, error) { return "memory", nil }

var _ ports.EngineResolver = EngineResolver{}
