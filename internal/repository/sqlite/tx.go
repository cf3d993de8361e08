package sqlite

import (
	"context"
	"fmt"

	"github.com/rcong315/selecta-sync/internal/repository"
)

// WithTx implements repository.Store.WithTx: fn runs against a Store
// bound to one *sql.Tx, committed on a nil return and rolled back
// otherwise. Grounded on llehouerou-waves/internal/db/tx.go's WithTx,
// generalized from a bare *sql.Tx callback to a repository.Store so
// callers keep using the same entity methods inside and outside a
// transaction.
func (s *Store) WithTx(ctx context.Context, fn func(tx repository.Store) error) error {
	if s.tx != nil {
		// Already inside a transaction: run fn against the same scope
		// rather than nesting, since SQLite has no true nested
		// transactions and WithTx is meant to delimit one sync apply.
		return fn(s)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	txStore := &Store{db: s.db, tx: tx}
	if err := fn(txStore); err != nil {
		return err
	}
	return tx.Commit()
}
