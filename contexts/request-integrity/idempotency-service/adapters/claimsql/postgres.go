package claimsql

import (
	"context"
	"errors"
	"fmt"

	"turnstile/contexts/request-integrity/idempotency-service/domain/entities"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// pgUniqueViolation is the SQLSTATE Postgres raises when an insert loses the
// uniqueness race on the claim primary key.
const pgUniqueViolation = "23505"

// PostgresDialect maps the claim schema onto Postgres. The clustered
// primary-key hint has no Postgres equivalent and is accepted as a no-op.
type PostgresDialect struct{}

func (PostgresDialect) Name() string { return "postgres" }

func (PostgresDialect) TableRef(table entities.ClaimTable) string {
	return fmt.Sprintf("%s.%q", entities.SchemaName, table.Name)
}

func (d PostgresDialect) EnsureSchema(ctx context.Context, db *gorm.DB, table entities.ClaimTable) error {
	if err := db.WithContext(ctx).Exec(
		fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", entities.SchemaName),
	).Error; err != nil {
		return fmt.Errorf("create schema %s: %w", entities.SchemaName, err)
	}

	keyColumn := "uuid"
	if table.KeyType == entities.KeyTypeString {
		keyColumn = fmt.Sprintf("varchar(%d)", entities.MaxStringKeyLength)
	}
	ddl := fmt.Sprintf(
		`CREATE TABLE IF NOT EXISTS %s ("key" %s PRIMARY KEY, response text, status_code integer)`,
		d.TableRef(table), keyColumn,
	)
	if err := db.WithContext(ctx).Exec(ddl).Error; err != nil {
		return fmt.Errorf("create claim table %q: %w", table.Name, err)
	}
	return nil
}

func (PostgresDialect) IsDuplicateKey(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

var _ Dialect = PostgresDialect{}
