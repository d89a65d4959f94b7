package application

import (
	"context"
	"log/slog"
	"strings"

	"turnstile/contexts/request-integrity/payment-intent-service/domain/entities"
	domainerrors "turnstile/contexts/request-integrity/payment-intent-service/domain/errors"
	"turnstile/contexts/request-integrity/payment-intent-service/ports"
)

type CreateIntentCommand struct {
	AmountCents int64
	Currency    string
}

// Service owns payment intent writes and reads. Duplicate submission
// protection is not handled here; the idempotency guard wraps the transport
// route, so this service only ever sees the winning request.
type Service struct {
	Intents ports.PaymentIntentRepository
	Clock   ports.Clock
	IDGen   ports.IDGenerator
	Logger  *slog.Logger
}

func (s Service) CreateIntent(ctx context.Context, cmd CreateIntentCommand) (entities.PaymentIntent, error) {
	logger := ResolveLogger(s.Logger)

	currency := strings.ToUpper(strings.TrimSpace(cmd.Currency))
	if cmd.AmountCents <= 0 || len(currency) != 3 {
		logger.Warn("payment intent validation failed",
			"event", "payment_intent_validation_failed",
			"module", "request-integrity/payment-intent-service",
			"layer", "application",
			"amount_cents", cmd.AmountCents,
			"currency", currency,
		)
		return entities.PaymentIntent{}, domainerrors.ErrInvalidIntentInput
	}

	id, err := s.IDGen.NewID(ctx)
	if err != nil {
		return entities.PaymentIntent{}, err
	}
	intent := entities.PaymentIntent{
		ID:          id,
		AmountCents: cmd.AmountCents,
		Currency:    currency,
		Status:      entities.IntentStatusCreated,
		CreatedAt:   s.Clock.Now().UTC(),
	}
	if err := s.Intents.CreateIntent(ctx, intent); err != nil {
		logger.Error("payment intent create failed",
			"event", "payment_intent_create_failed",
			"module", "request-integrity/payment-intent-service",
			"layer", "application",
			"intent_id", id,
			"error", err.Error(),
		)
		return entities.PaymentIntent{}, err
	}

	logger.Info("payment intent created",
		"event", "payment_intent_created",
		"module", "request-integrity/payment-intent-service",
		"layer", "application",
		"intent_id", id,
		"amount_cents", intent.AmountCents,
		"currency", intent.Currency,
	)
	return intent, nil
}

func (s Service) GetIntent(ctx context.Context, intentID string) (entities.PaymentIntent, error) {
	intentID = strings.TrimSpace(intentID)
	if intentID == "" {
		return entities.PaymentIntent{}, domainerrors.ErrInvalidIntentInput
	}
	return s.Intents.GetIntent(ctx, intentID)
}
