package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rcong315/selecta-sync/internal/model"
	"github.com/rcong315/selecta-sync/internal/repository"
)

func (s *Store) GetBinding(ctx context.Context, id int64) (model.PlaylistPlatformBinding, error) {
	row := s.q().QueryRowContext(ctx, `
		SELECT id, playlist_id, platform, external_playlist_id, sync_mode, is_personal, last_synced_at
		FROM playlist_platform_bindings WHERE id = ?`, id)
	b, err := scanBinding(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.PlaylistPlatformBinding{}, repository.ErrNotFound
	}
	return b, err
}

func (s *Store) BindingsForPlaylist(ctx context.Context, playlistID int64) ([]model.PlaylistPlatformBinding, error) {
	rows, err := s.q().QueryContext(ctx, `
		SELECT id, playlist_id, platform, external_playlist_id, sync_mode, is_personal, last_synced_at
		FROM playlist_platform_bindings WHERE playlist_id = ?`, playlistID)
	if err != nil {
		return nil, fmt.Errorf("loading bindings for playlist: %w", err)
	}
	defer rows.Close()

	var bindings []model.PlaylistPlatformBinding
	for rows.Next() {
		b, err := scanBinding(rows)
		if err != nil {
			return nil, err
		}
		bindings = append(bindings, b)
	}
	return bindings, rows.Err()
}

// CreateBinding rejects a binding on a system playlist before the
// insert: the root "Library Collection" (and any other is_system
// playlist) is local-only and may never carry a PlaylistPlatformBinding
// (spec.md §9 design note 2).
func (s *Store) CreateBinding(ctx context.Context, b model.PlaylistPlatformBinding) (int64, error) {
	playlist, err := s.GetPlaylist(ctx, b.PlaylistID)
	if err != nil {
		return 0, err
	}
	if playlist.IsSystem {
		return 0, fmt.Errorf("%w: playlist %d is a system playlist and cannot be bound", repository.ErrConflict, b.PlaylistID)
	}

	res, err := s.q().ExecContext(ctx, `
		INSERT INTO playlist_platform_bindings
		    (playlist_id, platform, external_playlist_id, sync_mode, is_personal, last_synced_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		b.PlaylistID, string(b.Platform), b.ExternalPlaylistID, string(b.SyncMode),
		boolToInt(b.IsPersonal), timePtrToString(b.LastSyncedAt))
	if err != nil {
		return 0, classifyWriteErr(err)
	}
	return res.LastInsertId()
}

func (s *Store) UpdateBinding(ctx context.Context, b model.PlaylistPlatformBinding) error {
	res, err := s.q().ExecContext(ctx, `
		UPDATE playlist_platform_bindings
		SET playlist_id = ?, platform = ?, external_playlist_id = ?, sync_mode = ?,
		    is_personal = ?, last_synced_at = ?
		WHERE id = ?`,
		b.PlaylistID, string(b.Platform), b.ExternalPlaylistID, string(b.SyncMode),
		boolToInt(b.IsPersonal), timePtrToString(b.LastSyncedAt), b.ID)
	if err != nil {
		return classifyWriteErr(err)
	}
	return requireRowAffected(res)
}

func (s *Store) DeleteBinding(ctx context.Context, id int64) error {
	res, err := s.q().ExecContext(ctx, `DELETE FROM playlist_platform_bindings WHERE id = ?`, id)
	if err != nil {
		return classifyWriteErr(err)
	}
	return requireRowAffected(res)
}

func scanBinding(row rowScanner) (model.PlaylistPlatformBinding, error) {
	var b model.PlaylistPlatformBinding
	var platform, syncMode string
	var isPersonal int
	var lastSyncedAt sql.NullString
	err := row.Scan(&b.ID, &b.PlaylistID, &platform, &b.ExternalPlaylistID, &syncMode,
		&isPersonal, &lastSyncedAt)
	if err != nil {
		return model.PlaylistPlatformBinding{}, fmt.Errorf("scanning binding: %w", err)
	}
	b.Platform = model.Platform(platform)
	b.SyncMode = model.SyncMode(syncMode)
	b.IsPersonal = isPersonal != 0
	b.LastSyncedAt = nullableTimeToPtr(lastSyncedAt)
	return b, nil
}
