package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rcong315/selecta-sync/internal/model"
	"github.com/rcong315/selecta-sync/internal/repository"
)

func (s *Store) GetPlaylist(ctx context.Context, id int64) (model.Playlist, error) {
	row := s.q().QueryRowContext(ctx, `
		SELECT id, name, kind, parent_id, is_system, created_at, updated_at
		FROM playlists WHERE id = ?`, id)

	var p model.Playlist
	var kind string
	var createdAt, updatedAt string
	var isSystem int
	err := row.Scan(&p.ID, &p.Name, &kind, &p.ParentID, &isSystem, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Playlist{}, repository.ErrNotFound
	}
	if err != nil {
		return model.Playlist{}, fmt.Errorf("scanning playlist: %w", err)
	}
	p.Kind = model.PlaylistKind(kind)
	p.IsSystem = isSystem != 0
	p.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	p.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return p, nil
}

func (s *Store) CreatePlaylist(ctx context.Context, p model.Playlist) (int64, error) {
	if err := s.checkParentAcyclic(ctx, nil, p.ParentID); err != nil {
		return 0, err
	}

	now := time.Now().UTC().Format(time.RFC3339)
	res, err := s.q().ExecContext(ctx, `
		INSERT INTO playlists (name, kind, parent_id, is_system, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		p.Name, string(p.Kind), p.ParentID, boolToInt(p.IsSystem), now, now)
	if err != nil {
		return 0, classifyWriteErr(err)
	}
	return res.LastInsertId()
}

// UpdatePlaylist rejects renaming or reparenting a system playlist
// (spec.md §3: "is_system playlists cannot be deleted or renamed") and
// rejects any reparenting that would make p's own parent chain loop
// back through p (spec.md §3/§9: parent chain is acyclic, enforced on
// write).
func (s *Store) UpdatePlaylist(ctx context.Context, p model.Playlist) error {
	existing, err := s.GetPlaylist(ctx, p.ID)
	if err != nil {
		return err
	}
	if existing.IsSystem {
		return fmt.Errorf("%w: playlist %d is a system playlist and cannot be renamed", repository.ErrConflict, p.ID)
	}
	if err := s.checkParentAcyclic(ctx, &p.ID, p.ParentID); err != nil {
		return err
	}

	res, err := s.q().ExecContext(ctx, `
		UPDATE playlists SET name = ?, kind = ?, parent_id = ?, is_system = ?, updated_at = ?
		WHERE id = ?`,
		p.Name, string(p.Kind), p.ParentID, boolToInt(p.IsSystem),
		time.Now().UTC().Format(time.RFC3339), p.ID)
	if err != nil {
		return classifyWriteErr(err)
	}
	return requireRowAffected(res)
}

// DeletePlaylist rejects deleting a system playlist (spec.md §3).
func (s *Store) DeletePlaylist(ctx context.Context, id int64) error {
	existing, err := s.GetPlaylist(ctx, id)
	if err != nil {
		return err
	}
	if existing.IsSystem {
		return fmt.Errorf("%w: playlist %d is a system playlist and cannot be deleted", repository.ErrConflict, id)
	}

	res, err := s.q().ExecContext(ctx, `DELETE FROM playlists WHERE id = ?`, id)
	if err != nil {
		return classifyWriteErr(err)
	}
	return requireRowAffected(res)
}

// maxParentDepth bounds the parent-chain walk checkParentAcyclic does,
// so a chain that is somehow already cyclic fails fast instead of
// looping forever.
const maxParentDepth = 1000

// checkParentAcyclic walks the parent chain starting at parentID and
// fails if selfID appears in it, enforcing spec.md §3/§9's "parent
// chain is acyclic" invariant on every write that sets parent_id.
// selfID is nil for CreatePlaylist, where the new row has no id yet
// and only the pre-existing chain can be checked.
func (s *Store) checkParentAcyclic(ctx context.Context, selfID *int64, parentID *int64) error {
	if parentID == nil {
		return nil
	}
	current := *parentID
	for i := 0; i < maxParentDepth; i++ {
		if selfID != nil && current == *selfID {
			return fmt.Errorf("%w: playlist %d cannot be its own ancestor", repository.ErrConflict, *selfID)
		}
		var next sql.NullInt64
		err := s.q().QueryRowContext(ctx,
			`SELECT parent_id FROM playlists WHERE id = ?`, current).Scan(&next)
		if errors.Is(err, sql.ErrNoRows) {
			return repository.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("walking parent chain: %w", err)
		}
		if !next.Valid {
			return nil
		}
		current = next.Int64
	}
	return fmt.Errorf("%w: parent chain exceeds %d levels, likely cyclic", repository.ErrConflict, maxParentDepth)
}

func (s *Store) Members(ctx context.Context, playlistID int64) ([]model.PlaylistMember, error) {
	rows, err := s.q().QueryContext(ctx, `
		SELECT playlist_id, track_id, position, added_at
		FROM playlist_members WHERE playlist_id = ? ORDER BY position`, playlistID)
	if err != nil {
		return nil, fmt.Errorf("loading playlist members: %w", err)
	}
	defer rows.Close()

	var members []model.PlaylistMember
	for rows.Next() {
		var m model.PlaylistMember
		var addedAt string
		if err := rows.Scan(&m.PlaylistID, &m.TrackID, &m.Position, &addedAt); err != nil {
			return nil, fmt.Errorf("scanning playlist member: %w", err)
		}
		m.AddedAt, _ = time.Parse(time.RFC3339, addedAt)
		members = append(members, m)
	}
	return members, rows.Err()
}

func (s *Store) AddMember(ctx context.Context, m model.PlaylistMember) error {
	addedAt := m.AddedAt
	if addedAt.IsZero() {
		addedAt = time.Now().UTC()
	}
	_, err := s.q().ExecContext(ctx, `
		INSERT INTO playlist_members (playlist_id, track_id, position, added_at)
		VALUES (?, ?, ?, ?)`,
		m.PlaylistID, m.TrackID, m.Position, addedAt.Format(time.RFC3339))
	return classifyWriteErr(err)
}

// RemoveMember deletes one membership row and closes the gap it left,
// so positions stay a dense contiguous sequence starting at zero
// (spec.md §3). Grounded on
// llehouerou-waves/internal/playlists/position.go's shiftRanges: a
// single removal is that calculator's one-position, delta -1 case,
// shifting every later member back by one instead of computing a
// multi-range move.
func (s *Store) RemoveMember(ctx context.Context, playlistID, trackID int64) error {
	var removedPosition int
	err := s.q().QueryRowContext(ctx,
		`SELECT position FROM playlist_members WHERE playlist_id = ? AND track_id = ?`,
		playlistID, trackID).Scan(&removedPosition)
	if errors.Is(err, sql.ErrNoRows) {
		return repository.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("finding member position: %w", err)
	}

	res, err := s.q().ExecContext(ctx,
		`DELETE FROM playlist_members WHERE playlist_id = ? AND track_id = ?`, playlistID, trackID)
	if err != nil {
		return classifyWriteErr(err)
	}
	if err := requireRowAffected(res); err != nil {
		return err
	}

	if _, err := s.q().ExecContext(ctx,
		`UPDATE playlist_members SET position = position - 1 WHERE playlist_id = ? AND position > ?`,
		playlistID, removedPosition); err != nil {
		return fmt.Errorf("renumbering playlist members: %w", err)
	}
	return nil
}
