package ports

import (
	"context"
	"time"

	"turnstile/contexts/request-integrity/payment-intent-service/domain/entities"
)

type PaymentIntentRepository interface {
	CreateIntent(ctx context.Context, intent entities.PaymentIntent) error
	GetIntent(ctx context.Context, intentID string) (entities.PaymentIntent, error)
}

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}
