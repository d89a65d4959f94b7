package idempotency

import (
	"log/slog"

	"turnstile/contexts/request-integrity/idempotency-service/adapters/keyselect"
	"turnstile/contexts/request-integrity/idempotency-service/adapters/memory"
	"turnstile/contexts/request-integrity/idempotency-service/application"
	"turnstile/contexts/request-integrity/idempotency-service/ports"
	"turnstile/internal/shared/requestctx"
)

type Module struct {
	Guard    application.Guard
	Registry *application.Registry
	Store    *memory.Store
}

type Dependencies struct {
	Registry       *application.Registry
	Stores         map[string]ports.ClaimStore
	Selector       ports.KeySelector
	UseTransaction bool
	Logger         *slog.Logger
}

func NewModule(deps Dependencies) Module {
	selector := deps.Selector
	if selector == nil {
		selector = keyselect.HeaderSelector{}
	}
	return Module{
		Guard: application.Guard{
			Registry:       deps.Registry,
			Stores:         deps.Stores,
			Selector:       selector,
			BindKey:        requestctx.WithIdempotencyKey,
			UseTransaction: deps.UseTransaction,
			Logger:         deps.Logger,
		},
		Registry: deps.Registry,
	}
}

// NewInMemoryModule wires the guard against the in-memory claim store with
// the implicit default table. Used by tests and local composition.
func NewInMemoryModule(tables map[string]application.TableOptions, logger *slog.Logger) (Module, error) {
	builder := application.NewRegistryBuilder("memory://local", memory.EngineResolver{}, logger)
	for name, opts := range tables {
		builder.Register(name, opts)
	}
	registry, err := builder.Build()
	if err != nil {
		return Module{}, err
	}

	store := memory.NewStore()
	stores := make(map[string]ports.ClaimStore, len(registry.Tables()))
	for _, table := range registry.Tables() {
		stores[table.Name] = store
	}

	module := NewModule(Dependencies{
		Registry:       registry,
		Stores:         stores,
		UseTransaction: true,
		Logger:         logger,
	})
	module.Store = store
	return module, nil
}
