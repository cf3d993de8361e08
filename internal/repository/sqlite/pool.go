// Package sqlite implements internal/repository.Store atop an
// embedded, pure-Go SQLite engine (modernc.org/sqlite), so the
// synchronization core runs as a single process with no external
// database dependency (spec.md §6). Translated from
// rcong315/RunDJServer's internal/db package, which used pgx/pgxpool
// against a standalone Postgres instance; see DESIGN.md for why that
// driver was dropped.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaFS embed.FS

// Store is the concrete internal/repository.Store implementation.
type Store struct {
	db *sql.DB
	// tx is non-nil when this Store was produced by WithTx: every
	// method below runs its query against tx instead of db.
	tx *sql.Tx
}

// Open creates (or attaches to) the SQLite file at path and applies
// the embedded schema. path may be ":memory:" for tests.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database %q: %w", path, err)
	}
	// The one-writer-per-playlist contract (spec.md §4.2) is enforced
	// at the binding-lock layer, not by serializing every connection,
	// but SQLite itself only tolerates one writer transaction at a
	// time process-wide without WAL contention; capping to a single
	// connection avoids SQLITE_BUSY under concurrent writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	schema, err := schemaFS.ReadFile("schema.sql")
	if err != nil {
		return fmt.Errorf("reading embedded schema: %w", err)
	}
	if _, err := s.db.Exec(string(schema)); err != nil {
		return fmt.Errorf("applying schema: %w", err)
	}
	return nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// querier is satisfied by both *sql.DB and *sql.Tx, letting every
// entity method below run unmodified whether or not it is inside a
// WithTx scope.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) q() querier {
	if s.tx != nil {
		return s.tx
	}
	return s.db
}
