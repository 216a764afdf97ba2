// Package storage provides the data persistence layer for nuam.
//
// One SQL code path serves both SQLite (the default, also used by tests) and
// PostgreSQL. Queries are written with "?" placeholders and rebound for the
// active dialect.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/pressly/goose/v3"

	"github.com/Veraticus/nuam/internal/service"
)

// Supported driver names.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// dialect captures the few places where SQLite and PostgreSQL differ.
type dialect struct {
	goose    goose.Dialect
	name     string
	idColumn string
	decimal  string
	ordinal  bool
}

var (
	sqliteDialect = dialect{
		name:     DriverSQLite,
		goose:    goose.DialectSQLite3,
		idColumn: "INTEGER PRIMARY KEY AUTOINCREMENT",
		decimal:  "TEXT",
	}
	postgresDialect = dialect{
		name:     DriverPostgres,
		goose:    goose.DialectPostgres,
		idColumn: "BIGINT GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY",
		decimal:  "NUMERIC",
		ordinal:  true,
	}
)

// rebind rewrites "?" placeholders as "$1", "$2", ... for dialects that
// need ordinal parameters.
func (d dialect) rebind(query string) string {
	if !d.ordinal {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 16)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// ddl fills the dialect specific column types into a schema statement.
func (d dialect) ddl(stmt string) string {
	return strings.NewReplacer("{{id}}", d.idColumn, "{{decimal}}", d.decimal).Replace(stmt)
}

// queryable is satisfied by both *sql.DB and *sql.Tx.
type queryable interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

var (
	_ service.Storage     = (*SQLStorage)(nil)
	_ service.Transaction = (*sqlTransaction)(nil)
)

// SQLStorage implements service.Storage on database/sql.
type SQLStorage struct {
	db      *sql.DB
	q       queryable
	dialect dialect
}

// Open connects to the database named by driver ("sqlite" or "postgres").
// For SQLite dsn is a file path, for PostgreSQL a connection URL.
func Open(driver, dsn string) (*SQLStorage, error) {
	switch driver {
	case DriverSQLite, "sqlite3", "":
		return NewSQLiteStorage(dsn)
	case DriverPostgres, "postgresql", "pgx":
		return NewPostgresStorage(dsn)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}
}

func newSQLStorage(db *sql.DB, d dialect) *SQLStorage {
	return &SQLStorage{db: db, q: db, dialect: d}
}

// Driver names the active dialect.
func (s *SQLStorage) Driver() string {
	return s.dialect.name
}

// DB exposes the underlying pool for tooling such as migration status.
func (s *SQLStorage) DB() *sql.DB {
	return s.db
}

func (s *SQLStorage) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.q.ExecContext(ctx, s.dialect.rebind(query), args...)
}

func (s *SQLStorage) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.q.QueryContext(ctx, s.dialect.rebind(query), args...)
}

func (s *SQLStorage) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return s.q.QueryRowContext(ctx, s.dialect.rebind(query), args...)
}

// insert runs an INSERT ... RETURNING id statement and returns the new id.
func (s *SQLStorage) insert(ctx context.Context, query string, args ...any) (int64, error) {
	var id int64
	if err := s.queryRow(ctx, query+" RETURNING id", args...).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

func (s *SQLStorage) count(ctx context.Context, query string, args ...any) (int, error) {
	var n int
	if err := s.queryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// Close closes the database connection.
func (s *SQLStorage) Close() error {
	return s.db.Close()
}

// BeginTx starts a new database transaction. Every Storage method called on
// the returned Transaction runs inside it.
func (s *SQLStorage) BeginTx(ctx context.Context) (service.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	return &sqlTransaction{
		SQLStorage: &SQLStorage{db: s.db, q: tx, dialect: s.dialect},
		tx:         tx,
	}, nil
}

// sqlTransaction wraps sql.Tx to implement service.Transaction.
type sqlTransaction struct {
	*SQLStorage
	tx *sql.Tx
}

func (t *sqlTransaction) Commit() error {
	return t.tx.Commit()
}

func (t *sqlTransaction) Rollback() error {
	return t.tx.Rollback()
}

func (t *sqlTransaction) BeginTx(_ context.Context) (service.Transaction, error) {
	return nil, ErrNestedTransaction
}

func (t *sqlTransaction) Migrate(_ context.Context) error {
	return ErrMigrateInTransaction
}

// Close rolls the transaction back. The pool stays open.
func (t *sqlTransaction) Close() error {
	if err := t.tx.Rollback(); err != nil && err != sql.ErrTxDone {
		return err
	}
	return nil
}
