package application

import (
	"fmt"
	"log/slog"

	"turnstile/contexts/request-integrity/idempotency-service/domain/entities"
	domainerrors "turnstile/contexts/request-integrity/idempotency-service/domain/errors"
	"turnstile/contexts/request-integrity/idempotency-service/ports"
)

// DefaultTableName is registered implicitly when no table is configured.
const DefaultTableName = "Keys"

// TableOptions are the per-table policy overrides accepted at registration.
// Zero values mean: use the process-default connection target, Guid keys,
// unclustered primary key, idempotency key required, conflicts surfaced as
// errors handled non-fatally by the caller layer.
type TableOptions struct {
	ConnectionTarget    string
	KeyType             entities.KeyType
	PrimaryKeyClustered bool
	// IdempotencyKeyOptional inverts the default so the zero value keeps the
	// key mandatory for guarded routes.
	IdempotencyKeyOptional bool
	ThrowOnConflict        bool
}

// Registry is the frozen table mapping. Built once at startup, read-only
// afterward, safe for unsynchronized concurrent reads.
type Registry struct {
	tables map[string]entities.ClaimTable
}

func (r *Registry) Table(name string) (entities.ClaimTable, error) {
	table, ok := r.tables[name]
	if !ok {
		return entities.ClaimTable{}, fmt.Errorf("%w: %q", domainerrors.ErrUnknownTable, name)
	}
	return table, nil
}

func (r *Registry) Tables() []entities.ClaimTable {
	tables := make([]entities.ClaimTable, 0, len(r.tables))
	for _, table := range r.tables {
		tables = append(tables, table)
	}
	return tables
}

// RegistryBuilder collects table registrations and validates them at build
// time. Every configuration failure happens here, never at request time.
type RegistryBuilder struct {
	defaultTarget string
	resolver      ports.EngineResolver
	logger        *slog.Logger
	names         []string
	options       map[string]TableOptions
}

func NewRegistryBuilder(defaultTarget string, resolver ports.EngineResolver, logger *slog.Logger) *RegistryBuilder {
	return &RegistryBuilder{
		defaultTarget: defaultTarget,
		resolver:      resolver,
		logger:        ResolveLogger(logger),
		options:       make(map[string]TableOptions),
	}
}

func (b *RegistryBuilder) Register(name string, opts TableOptions) *RegistryBuilder {
	if _, seen := b.options[name]; !seen {
		b.names = append(b.names, name)
	}
	b.options[name] = opts
	return b
}

// Build resolves every table to a connection target and an engine, then
// freezes the registry. A table with no resolvable target or an unsupported
// engine fails the build.
func (b *RegistryBuilder) Build() (*Registry, error) {
	if len(b.names) == 0 {
		b.Register(DefaultTableName, TableOptions{})
	}

	tables := make(map[string]entities.ClaimTable, len(b.names))
	for _, name := range b.names {
		opts := b.options[name]

		target := opts.ConnectionTarget
		if target == "" {
			target = b.defaultTarget
		}
		if target == "" {
			return nil, fmt.Errorf("%w: table %q", domainerrors.ErrNoConnectionTarget, name)
		}

		keyType := opts.KeyType
		if keyType == "" {
			keyType = entities.KeyTypeGuid
		}
		if keyType != entities.KeyTypeGuid && keyType != entities.KeyTypeString {
			return nil, fmt.Errorf("%w: table %q key type %q", domainerrors.ErrInvalidKeyType, name, keyType)
		}

		engine, err := b.resolver.ResolveEngine(target)
		if err != nil {
			return nil, fmt.Errorf("resolve engine for table %q: %w", name, err)
		}

		tables[name] = entities.ClaimTable{
			Name:                   name,
			ConnectionTarget:       target,
			KeyType:                keyType,
			PrimaryKeyClustered:    opts.PrimaryKeyClustered,
			IdempotencyKeyRequired: !opts.IdempotencyKeyOptional,
			ThrowOnConflict:        opts.ThrowOnConflict,
		}

		b.logger.Info("claim table registered",
			"event", "idempotency_table_registered",
			"module", "request-integrity/idempotency-service",
			"layer", "application",
			"table", name,
			"engine", engine,
			"key_type", string(keyType),
			"clustered", opts.PrimaryKeyClustered,
			"key_required", !opts.IdempotencyKeyOptional,
			"throw_on_conflict", opts.ThrowOnConflict,
		)
	}

	return &Registry{tables: tables}, nil
}
