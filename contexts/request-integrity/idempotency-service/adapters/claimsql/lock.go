package claimsql

import (
	"context"

	domainerrors "turnstile/contexts/request-integrity/idempotency-service/domain/errors"
	"turnstile/contexts/request-integrity/idempotency-service/ports"

	"gorm.io/gorm"
)

// txLock guards the transaction opened by a winning claim. The transaction
// stays open for the full guarded handler duration; Release rolls back unless
// Commit or Rollback already ran.
type txLock struct {
	tx   *gorm.DB
	done bool
}

func (l *txLock) Acquired() bool { return true }

func (l *txLock) Commit(context.Context) error {
	if l.done {
		return domainerrors.ErrLockReleased
	}
	l.done = true
	return l.tx.Commit().Error
}

func (l *txLock) Rollback(context.Context) error {
	if l.done {
		return nil
	}
	l.done = true
	return l.tx.Rollback().Error
}

func (l *txLock) Release() {
	if !l.done {
		l.done = true
		_ = l.tx.Rollback()
	}
}

// plainLock backs claims taken without a transaction. There is nothing to
// commit; rolling back deletes the Pending row so the key becomes claimable
// again.
type plainLock struct {
	db       *gorm.DB
	tableRef string
	key      string
	done     bool
}

func (l *plainLock) Acquired() bool { return true }

func (l *plainLock) Commit(context.Context) error {
	if l.done {
		return domainerrors.ErrLockReleased
	}
	l.done = true
	return nil
}

func (l *plainLock) Rollback(ctx context.Context) error {
	if l.done {
		return nil
	}
	l.done = true
	return l.deletePending(ctx)
}

func (l *plainLock) Release() {
	if !l.done {
		l.done = true
		_ = l.deletePending(context.Background())
	}
}

func (l *plainLock) deletePending(ctx context.Context) error {
	return l.db.WithContext(ctx).Exec(
		`DELETE FROM `+l.tableRef+` WHERE "key" = ? AND response IS NULL`, l.key,
	).Error
}

var _ ports.LockHandle = (*txLock)(nil)
var _ ports.LockHandle = (*plainLock)(nil)
