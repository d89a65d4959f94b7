package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	idempotency "turnstile/contexts/request-integrity/idempotency-service"
	"turnstile/contexts/request-integrity/idempotency-service/adapters/claimsql"
	"turnstile/contexts/request-integrity/idempotency-service/application"
	"turnstile/contexts/request-integrity/idempotency-service/ports"
	paymentintent "turnstile/contexts/request-integrity/payment-intent-service"
	"turnstile/internal/platform/config"
	"turnstile/internal/platform/db"
	"turnstile/internal/platform/httpserver"
)

// Package bootstrap is the composition root.
// Keep construction/wiring here so module code stays framework-agnostic.

type APIApp struct {
	server *httpserver.Server
	conns  []*db.Conn
	logger *slog.Logger
}

func BuildAPI() (*APIApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := slog.Default().With("service", cfg.ServiceName, "process", "api")
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		return nil, errors.New("DATABASE_URL is required")
	}

	registry, err := application.NewRegistryBuilder(cfg.DatabaseURL, db.Resolver{}, logger).Build()
	if err != nil {
		return nil, err
	}

	conns := make(map[string]*db.Conn)
	stores := make(map[string]ports.ClaimStore)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, table := range registry.Tables() {
		conn, ok := conns[table.ConnectionTarget]
		if !ok {
			conn, err = db.Connect(table.ConnectionTarget)
			if err != nil {
				closeAll(conns)
				return nil, err
			}
			conns[table.ConnectionTarget] = conn
		}

		dialect, err := dialectFor(conn.Engine)
		if err != nil {
			closeAll(conns)
			return nil, err
		}
		store := claimsql.NewStore(conn.DB, dialect, logger)
		if err := store.EnsureSchema(ctx, table); err != nil {
			closeAll(conns)
			return nil, err
		}
		stores[table.Name] = store
	}

	idemModule := idempotency.NewModule(idempotency.Dependencies{
		Registry:       registry,
		Stores:         stores,
		UseTransaction: cfg.ClaimUseTransaction,
		Logger:         logger,
	})
	intentModule := paymentintent.NewInMemoryModule(logger)

	server := httpserver.New(intentModule, idemModule, logger, normalizeAddr(cfg.HTTPPort))

	held := make([]*db.Conn, 0, len(conns))
	for _, conn := range conns {
		held = append(held, conn)
	}
	return &APIApp{
		server: server,
		conns:  held,
		logger: logger,
	}, nil
}

func dialectFor(engine db.Engine) (claimsql.Dialect, error) {
	switch engine {
	case db.EnginePostgres:
		return claimsql.PostgresDialect{}, nil
	case db.EngineSQLite:
		return claimsql.SQLiteDialect{}, nil
	default:
		return nil, fmt.Errorf("no claim dialect for engine %q", engine)
	}
}

func (a *APIApp) Run(_ context.Context) error {
	if a.logger != nil {
		a.logger.Info("api app started",
			"event", "bootstrap_api_started",
			"module", "internal/app/bootstrap",
			"layer", "platform",
		)
	}
	return a.server.Start()
}

func (a *APIApp) Close() error {
	var firstErr error
	for _, conn := range a.conns {
		if err := conn.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func closeAll(conns map[string]*db.Conn) {
	for _, conn := range conns {
		_ = conn.Close()
	}
}

func normalizeAddr(port string) string {
	value := strings.TrimSpace(port)
	if value == "" {
		return ":8080"
	}
	if strings.HasPrefix(value, ":") {
		return value
	}
	return ":" + value
}
