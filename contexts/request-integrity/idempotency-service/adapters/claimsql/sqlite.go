package claimsql

import (
	"context"
	"errors"
	"fmt"

	"turnstile/contexts/request-integrity/idempotency-service/domain/entities"

	sqlite3 "github.com/mattn/go-sqlite3"
	"gorm.io/gorm"
)

// SQLiteDialect maps the claim schema onto SQLite. SQLite has no schema
// namespaces, so the namespace becomes a table-name prefix; the clustered
// primary-key hint becomes a WITHOUT ROWID table, which physically orders
// rows by the primary key.
type SQLiteDialect struct{}

func (SQLiteDialect) Name() string { return "sqlite" }

func (SQLiteDialect) TableRef(table entities.ClaimTable) string {
	return fmt.Sprintf("%q", entities.SchemaName+"_"+table.Name)
}

func (d SQLiteDialect) EnsureSchema(ctx context.Context, db *gorm.DB, table entities.ClaimTable) error {
	layout := ""
	if table.PrimaryKeyClustered {
		layout = " WITHOUT ROWID"
	}
	ddl := fmt.Sprintf(
		`CREATE TABLE IF NOT EXISTS %s ("key" text PRIMARY KEY, response text, status_code integer)%s`,
		d.TableRef(table), layout,
	)
	if err := db.WithContext(ctx).Exec(ddl).Error; err != nil {
		return fmt.Errorf("create claim table %q: %w", table.Name, err)
	}
	return nil
}

// IsDuplicateKey recognizes the extended result codes SQLite raises for
// primary-key and unique-index violations (1555 and 2067).
func (SQLiteDialect) IsDuplicateKey(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey ||
		sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}

var _ Dialect = SQLiteDialect{}
