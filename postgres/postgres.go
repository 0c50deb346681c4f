// Package postgres implements cms.DB/cms.Tx over database/sql + lib/pq
// (spec section 6.1: "a standard transactional SQL database"), the
// concrete store every other package's DB-shaped collaborator talks to
// through the narrower cms.Queryer/cms.DB interfaces. Grounded in the
// teacher's own dialect/sql.Driver: a thin wrapper letting the engine treat
// *sql.DB/*sql.Tx as dialect-qualified, context-first collaborators.
package postgres

import (
	"context"
	"database/sql"

	_ "github.com/lib/pq"

	cms "github.com/loomcms/loom"
)

// DB wraps a *sql.DB opened against Postgres.
type DB struct {
	db *sql.DB
}

// Open dials dsn via lib/pq.
func Open(dsn string) (*DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, cms.Wrap(cms.KindInternal, err)
	}
	return &DB{db: db}, nil
}

// NewFromDB wraps an already-opened *sql.DB, e.g. one obtained from
// go-sqlmock in tests or from a connection pool the host process manages.
func NewFromDB(db *sql.DB) *DB {
	return &DB{db: db}
}

func (d *DB) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return d.db.QueryContext(ctx, query, args...)
}

func (d *DB) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return d.db.QueryRowContext(ctx, query, args...)
}

func (d *DB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return d.db.ExecContext(ctx, query, args...)
}

func (d *DB) Begin(ctx context.Context) (cms.Tx, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, cms.Wrap(cms.KindInternal, err)
	}
	return &Tx{tx: tx}, nil
}

func (d *DB) Dialect() string { return "postgres" }

// Close releases the underlying connection pool.
func (d *DB) Close() error { return d.db.Close() }

// Ping checks connectivity, used by the engine's health check.
func (d *DB) Ping(ctx context.Context) error { return d.db.PingContext(ctx) }

// Tx wraps a *sql.Tx.
type Tx struct {
	tx *sql.Tx
}

func (t *Tx) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return t.tx.QueryContext(ctx, query, args...)
}

func (t *Tx) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return t.tx.QueryRowContext(ctx, query, args...)
}

func (t *Tx) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return t.tx.ExecContext(ctx, query, args...)
}

func (t *Tx) Commit(ctx context.Context) error { return t.tx.Commit() }

func (t *Tx) Rollback(ctx context.Context) error { return t.tx.Rollback() }
