package claimsql

import (
	"errors"
	"fmt"
	"testing"

	"turnstile/contexts/request-integrity/idempotency-service/domain/entities"

	"github.com/jackc/pgx/v5/pgconn"
	sqlite3 "github.com/mattn/go-sqlite3"
)

func TestPostgresDuplicateKeyClassification(t *testing.T) {
	dialect := PostgresDialect{}

	if !dialect.IsDuplicateKey(&pgconn.PgError{Code: "23505"}) {
		t.Fatal("SQLSTATE 23505 must classify as duplicate key")
	}
	if !dialect.IsDuplicateKey(fmt.Errorf("insert claim: %w", &pgconn.PgError{Code: "23505"})) {
		t.Fatal("wrapped 23505 must classify as duplicate key")
	}
	if dialect.IsDuplicateKey(&pgconn.PgError{Code: "42P01"}) {
		t.Fatal("undefined table must stay fatal")
	}
	if dialect.IsDuplicateKey(errors.New("connection refused")) {
		t.Fatal("plain errors must stay fatal")
	}
}

func TestSQLiteDuplicateKeyClassification(t *testing.T) {
	dialect := SQLiteDialect{}

	primaryKey := sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintPrimaryKey}
	if !dialect.IsDuplicateKey(primaryKey) {
		t.Fatal("extended code 1555 must classify as duplicate key")
	}
	unique := sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintUnique}
	if !dialect.IsDuplicateKey(unique) {
		t.Fatal("extended code 2067 must classify as duplicate key")
	}
	if !dialect.IsDuplicateKey(fmt.Errorf("insert claim: %w", primaryKey)) {
		t.Fatal("wrapped constraint error must classify as duplicate key")
	}
	busy := sqlite3.Error{Code: sqlite3.ErrBusy}
	if dialect.IsDuplicateKey(busy) {
		t.Fatal("busy must stay fatal")
	}
	if dialect.IsDuplicateKey(errors.New("disk I/O error")) {
		t.Fatal("plain errors must stay fatal")
	}
}

func TestTableRefs(t *testing.T) {
	table := entities.ClaimTable{Name: "Keys"}

	if got := (PostgresDialect{}).TableRef(table); got != `idempotency."Keys"` {
		t.Fatalf("unexpected postgres table ref %q", got)
	}
	if got := (SQLiteDialect{}).TableRef(table); got != `"idempotency_Keys"` {
		t.Fatalf("unexpected sqlite table ref %q", got)
	}
}
