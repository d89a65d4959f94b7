package httpadapter

import (
	"context"
	"log/slog"
	"time"

	"turnstile/contexts/request-integrity/payment-intent-service/application"
	"turnstile/contexts/request-integrity/payment-intent-service/domain/entities"
	httptransport "turnstile/contexts/request-integrity/payment-intent-service/transport/http"
)

type Handler struct {
	Intents application.Service
	Logger  *slog.Logger
}

// CreateIntentHandler godoc
// @Summary Create a payment intent
// @Description Creates a payment intent exactly once per idempotency key; duplicates replay the original response.
// @Tags payment-intent-service
// @Accept json
// @Produce json
// @Param Idempotency-Key header string true "Client-chosen idempotency key (UUID)"
// @Param X-Request-Id header string false "Request correlation id"
// @Param request body httptransport.CreateIntentRequest true "Intent to create"
// @Success 201 {object} httptransport.IntentResponse
// @Failure 400 {object} httptransport.ErrorResponse
// @Failure 409 {object} httptransport.ErrorResponse
// @Failure 500 {object} httptransport.ErrorResponse
// @Router /v1/payment-intents [post]
func (h Handler) CreateIntentHandler(ctx context.Context, req httptransport.CreateIntentRequest) (httptransport.IntentResponse, error) {
	intent, err := h.Intents.CreateIntent(ctx, application.CreateIntentCommand{
		AmountCents: req.AmountCents,
		Currency:    req.Currency,
	})
	if err != nil {
		return httptransport.IntentResponse{}, err
	}
	return mapIntent(intent), nil
}

// GetIntentHandler godoc
// @Summary Get a payment intent
// @Tags payment-intent-service
// @Produce json
// @Param X-Request-Id header string false "Request correlation id"
// @Param intent_id path string true "Intent id"
// @Success 200 {object} httptransport.IntentResponse
// @Failure 404 {object} httptransport.ErrorResponse
// @Failure 500 {object} httptransport.ErrorResponse
// @Router /v1/payment-intents/{intent_id} [get]
func (h Handler) GetIntentHandler(ctx context.Context, intentID string) (httptransport.IntentResponse, error) {
	intent, err := h.Intents.GetIntent(ctx, intentID)
	if err != nil {
		return httptransport.IntentResponse{}, err
	}
	return mapIntent(intent), nil
}

func mapIntent(intent entities.PaymentIntent) httptransport.IntentResponse {
	return httptransport.IntentResponse{
		IntentID:    intent.ID,
		AmountCents: intent.AmountCents,
		Currency:    intent.Currency,
		Status:      string(intent.Status),
		CreatedAt:   intent.CreatedAt.Format(time.RFC3339),
	}
}
