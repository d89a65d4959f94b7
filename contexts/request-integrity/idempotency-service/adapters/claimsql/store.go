package claimsql

import (
	"context"
	"fmt"
	"log/slog"

	"turnstile/contexts/request-integrity/idempotency-service/domain/entities"
	domainerrors "turnstile/contexts/request-integrity/idempotency-service/domain/errors"
	"turnstile/contexts/request-integrity/idempotency-service/ports"

	"gorm.io/gorm"
)

// Store is the relational claim provider. The insert's uniqueness violation
// is the synchronization primitive: whichever caller's insert lands first
// wins, everyone else is classified into a conflict by the dialect. No
// in-process locking takes part in the coordination.
type Store struct {
	db      *gorm.DB
	dialect Dialect
	logger  *slog.Logger
}

func NewStore(db *gorm.DB, dialect Dialect, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		db:      db,
		dialect: dialect,
		logger:  logger,
	}
}

func (s *Store) EnsureSchema(ctx context.Context, table entities.ClaimTable) error {
	if err := s.dialect.EnsureSchema(ctx, s.db, table); err != nil {
		return err
	}
	s.logger.Info("claim schema ensured",
		"event", "claimsql_schema_ensured",
		"module", "request-integrity/idempotency-service",
		"layer", "adapters",
		"engine", s.dialect.Name(),
		"table", table.Name,
	)
	return nil
}

func (s *Store) Claim(ctx context.Context, table entities.ClaimTable, key string, useTransaction bool) (ports.ClaimResult, error) {
	ref := s.dialect.TableRef(table)
	insert := fmt.Sprintf(`INSERT INTO %s ("key") VALUES (?)`, ref)

	if useTransaction {
		tx := s.db.WithContext(ctx).Begin()
		if tx.Error != nil {
			return ports.ClaimResult{}, fmt.Errorf("begin claim transaction: %w", tx.Error)
		}
		err := tx.Exec(insert, key).Error
		if err == nil {
			return ports.ClaimResult{
				Status: ports.ClaimStatusClaimed,
				Lock:   &txLock{tx: tx},
			}, nil
		}
		_ = tx.Rollback()
		return s.classify(ctx, table, key, err)
	}

	err := s.db.WithContext(ctx).Exec(insert, key).Error
	if err == nil {
		return ports.ClaimResult{
			Status: ports.ClaimStatusClaimed,
			Lock:   &plainLock{db: s.db, tableRef: ref, key: key},
		}, nil
	}
	return s.classify(ctx, table, key, err)
}

// classify turns a failed insert into a conflict result when the dialect
// recognizes its engine's duplicate-key signal. Every other storage error
// propagates unmodified.
func (s *Store) classify(ctx context.Context, table entities.ClaimTable, key string, insertErr error) (ports.ClaimResult, error) {
	if !s.dialect.IsDuplicateKey(insertErr) {
		return ports.ClaimResult{}, insertErr
	}

	var row struct {
		Response   *string
		StatusCode *int
	}
	lookup := s.db.WithContext(ctx).Raw(
		fmt.Sprintf(`SELECT response, status_code FROM %s WHERE "key" = ?`, s.dialect.TableRef(table)), key,
	).Scan(&row)
	if lookup.Error != nil {
		return ports.ClaimResult{}, fmt.Errorf("read existing claim: %w", lookup.Error)
	}
	if lookup.RowsAffected == 0 {
		// The winner rolled back between our failed insert and this read.
		// Treat it as a live duplicate; the key is claimable again shortly.
		return ports.ClaimResult{Status: ports.ClaimStatusConflictPending}, nil
	}
	if row.Response == nil || row.StatusCode == nil {
		return ports.ClaimResult{Status: ports.ClaimStatusConflictPending}, nil
	}

	s.logger.Info("claim conflict resolved to replay",
		"event", "claimsql_conflict_completed",
		"module", "request-integrity/idempotency-service",
		"layer", "adapters",
		"engine", s.dialect.Name(),
		"table", table.Name,
		"key", key,
	)
	return ports.ClaimResult{
		Status:     ports.ClaimStatusConflictCompleted,
		Response:   row.Response,
		StatusCode: row.StatusCode,
	}, nil
}

// Finalize writes the terminal response into the claimed row, through the
// claim's open transaction when one exists.
func (s *Store) Finalize(ctx context.Context, lock ports.LockHandle, table entities.ClaimTable, key string, response string, statusCode int) error {
	update := fmt.Sprintf(`UPDATE %s SET response = ?, status_code = ? WHERE "key" = ?`, s.dialect.TableRef(table))

	switch l := lock.(type) {
	case *txLock:
		if l.done {
			return domainerrors.ErrLockReleased
		}
		if err := l.tx.Exec(update, response, statusCode, key).Error; err != nil {
			return fmt.Errorf("finalize claim %q: %w", key, err)
		}
		return nil
	case *plainLock:
		if l.done {
			return domainerrors.ErrLockReleased
		}
		if err := s.db.WithContext(ctx).Exec(update, response, statusCode, key).Error; err != nil {
			return fmt.Errorf("finalize claim %q: %w", key, err)
		}
		return nil
	default:
		return domainerrors.ErrForeignLock
	}
}

var _ ports.ClaimStore = (*Store)(nil)
