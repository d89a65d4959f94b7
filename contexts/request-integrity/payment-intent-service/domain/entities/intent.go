package entities

import "time"

type IntentStatus string

const (
	IntentStatusCreated   IntentStatus = "created"
	IntentStatusSucceeded IntentStatus = "succeeded"
)

// PaymentIntent is the canonical guarded resource: creating one twice for the
// same idempotency key must produce exactly one intent.
type PaymentIntent struct {
	ID          string
	AmountCents int64
	Currency    string
	Status      IntentStatus
	CreatedAt   time.Time
}
