package errors

import "errors"

var (
	ErrNoConnectionTarget      = errors.New("no connection target resolvable for claim table")
	ErrUnsupportedEngine       = errors.New("connection target maps to an unsupported database engine")
	ErrInvalidKeyType          = errors.New("invalid claim table key type")
	ErrUnknownTable            = errors.New("claim table is not registered")
	ErrIdempotencyKeyRequired  = errors.New("idempotency key is required")
	ErrMalformedIdempotencyKey = errors.New("idempotency key is malformed")
	ErrIdempotencyConflict     = errors.New("idempotency key conflict")
	ErrLockReleased            = errors.New("claim lock already released")
	ErrForeignLock             = errors.New("claim lock does not belong to this store")
)
