package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rcong315/selecta-sync/internal/model"
	"github.com/rcong315/selecta-sync/internal/repository"
)

// GetSnapshot loads the single most recent snapshot for a binding.
// There is only ever one row per binding_id: ReplaceSnapshot overwrites
// it atomically rather than appending history, per spec.md §4.4.
func (s *Store) GetSnapshot(ctx context.Context, bindingID int64) (model.Snapshot, error) {
	row := s.q().QueryRowContext(ctx, `
		SELECT binding_id, schema_version, taken_at, library_members, platform_members, link_pairs
		FROM snapshots WHERE binding_id = ?`, bindingID)

	var snap model.Snapshot
	var takenAt, libraryJSON, platformJSON, linkPairsJSON string
	err := row.Scan(&snap.BindingID, &snap.SchemaVersion, &takenAt, &libraryJSON, &platformJSON, &linkPairsJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Snapshot{}, repository.ErrNotFound
	}
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("scanning snapshot: %w", err)
	}
	snap.TakenAt, _ = time.Parse(time.RFC3339, takenAt)
	if err := json.Unmarshal([]byte(libraryJSON), &snap.LibraryMembers); err != nil {
		return model.Snapshot{}, fmt.Errorf("decoding library members: %w", err)
	}
	if err := json.Unmarshal([]byte(platformJSON), &snap.PlatformMembers); err != nil {
		return model.Snapshot{}, fmt.Errorf("decoding platform members: %w", err)
	}
	if err := json.Unmarshal([]byte(linkPairsJSON), &snap.LinkPairs); err != nil {
		return model.Snapshot{}, fmt.Errorf("decoding link pairs: %w", err)
	}
	return snap, nil
}

// ReplaceSnapshot atomically replaces the prior snapshot for
// snap.BindingID, per spec.md §4.4: on write it replaces the previous
// snapshot wholesale, never appending a history row.
func (s *Store) ReplaceSnapshot(ctx context.Context, snap model.Snapshot) error {
	libraryJSON, err := json.Marshal(snap.LibraryMembers)
	if err != nil {
		return fmt.Errorf("encoding library members: %w", err)
	}
	platformJSON, err := json.Marshal(snap.PlatformMembers)
	if err != nil {
		return fmt.Errorf("encoding platform members: %w", err)
	}
	linkPairsJSON, err := json.Marshal(snap.LinkPairs)
	if err != nil {
		return fmt.Errorf("encoding link pairs: %w", err)
	}

	_, err = s.q().ExecContext(ctx, `
		INSERT INTO snapshots (binding_id, schema_version, taken_at, library_members, platform_members, link_pairs)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (binding_id) DO UPDATE SET
		    schema_version = excluded.schema_version,
		    taken_at = excluded.taken_at,
		    library_members = excluded.library_members,
		    platform_members = excluded.platform_members,
		    link_pairs = excluded.link_pairs`,
		snap.BindingID, snap.SchemaVersion, snap.TakenAt.UTC().Format(time.RFC3339),
		string(libraryJSON), string(platformJSON), string(linkPairsJSON))
	return classifyWriteErr(err)
}
