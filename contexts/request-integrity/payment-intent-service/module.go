package paymentintent

import (
	"log/slog"

	httpadapter "turnstile/contexts/request-integrity/payment-intent-service/adapters/http"
	"turnstile/contexts/request-integrity/payment-intent-service/adapters/memory"
	"turnstile/contexts/request-integrity/payment-intent-service/application"
	"turnstile/contexts/request-integrity/payment-intent-service/ports"
)

type Module struct {
	Handler httpadapter.Handler
	Store   *memory.Store
}

type Dependencies struct {
	Intents ports.PaymentIntentRepository
	Clock   ports.Clock
	IDGen   ports.IDGenerator
	Logger  *slog.Logger
}

func NewModule(deps Dependencies) Module {
	service := application.Service{
		Intents: deps.Intents,
		Clock:   deps.Clock,
		IDGen:   deps.IDGen,
		Logger:  deps.Logger,
	}
	return Module{
		Handler: httpadapter.Handler{
			Intents: service,
			Logger:  deps.Logger,
		},
	}
}

func NewInMemoryModule(logger *slog.Logger) Module {
	store := memory.NewStore()
	module := NewModule(Dependencies{
		Intents: store,
		Clock:   store,
		IDGen:   store,
		Logger:  logger,
	})
	module.Store = store
	return module
}
