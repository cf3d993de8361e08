package sqlite

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rcong315/selecta-sync/internal/repository"
)

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func timePtrToString(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}

func nullableTimeToPtr(n sql.NullString) *time.Time {
	if !n.Valid {
		return nil
	}
	parsed, err := time.Parse(time.RFC3339, n.String)
	if err != nil {
		return nil
	}
	return &parsed
}

// classifyWriteErr maps a SQLite uniqueness-constraint failure to
// repository.ErrConflict, matching spec.md §4.2's "rejects a write
// that would violate a uniqueness invariant with a ConflictError".
func classifyWriteErr(err error) error {
	if err == nil {
		return nil
	}
	if strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "constraint failed: UNIQUE") {
		return fmt.Errorf("%w: %s", repository.ErrConflict, err.Error())
	}
	return err
}

func requireRowAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}
