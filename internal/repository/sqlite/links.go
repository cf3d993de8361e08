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

func (s *Store) GetLink(ctx context.Context, trackID int64, platform model.Platform) (model.PlatformLink, error) {
	row := s.q().QueryRowContext(ctx, `
		SELECT track_id, platform, external_id, external_uri, metadata_blob,
		       last_synced_at, needs_refresh, match_confidence
		FROM platform_links WHERE track_id = ? AND platform = ?`, trackID, string(platform))
	link, err := scanLink(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.PlatformLink{}, repository.ErrNotFound
	}
	return link, err
}

func (s *Store) LinksForTrack(ctx context.Context, trackID int64) ([]model.PlatformLink, error) {
	rows, err := s.q().QueryContext(ctx, `
		SELECT track_id, platform, external_id, external_uri, metadata_blob,
		       last_synced_at, needs_refresh, match_confidence
		FROM platform_links WHERE track_id = ?`, trackID)
	if err != nil {
		return nil, fmt.Errorf("loading links for track: %w", err)
	}
	defer rows.Close()

	var links []model.PlatformLink
	for rows.Next() {
		l, err := scanLink(rows)
		if err != nil {
			return nil, err
		}
		links = append(links, l)
	}
	return links, rows.Err()
}

func (s *Store) LinkByExternalID(ctx context.Context, platform model.Platform, externalID string) (model.PlatformLink, error) {
	row := s.q().QueryRowContext(ctx, `
		SELECT track_id, platform, external_id, external_uri, metadata_blob,
		       last_synced_at, needs_refresh, match_confidence
		FROM platform_links WHERE platform = ? AND external_id = ?`, string(platform), externalID)
	link, err := scanLink(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.PlatformLink{}, repository.ErrNotFound
	}
	return link, err
}

func (s *Store) UpsertLink(ctx context.Context, link model.PlatformLink) error {
	lastSynced := link.LastSyncedAt
	if lastSynced.IsZero() {
		lastSynced = time.Now().UTC()
	}
	_, err := s.q().ExecContext(ctx, `
		INSERT INTO platform_links
		    (track_id, platform, external_id, external_uri, metadata_blob, last_synced_at,
		     needs_refresh, match_confidence)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (track_id, platform) DO UPDATE SET
		    external_id = excluded.external_id,
		    external_uri = excluded.external_uri,
		    metadata_blob = excluded.metadata_blob,
		    last_synced_at = excluded.last_synced_at,
		    needs_refresh = excluded.needs_refresh,
		    match_confidence = excluded.match_confidence`,
		link.TrackID, string(link.Platform), link.ExternalID, link.ExternalURI, link.MetadataBlob,
		lastSynced.Format(time.RFC3339), boolToInt(link.NeedsRefresh), link.MatchConfidence)
	return classifyWriteErr(err)
}

func (s *Store) DeleteLink(ctx context.Context, trackID int64, platform model.Platform) error {
	res, err := s.q().ExecContext(ctx,
		`DELETE FROM platform_links WHERE track_id = ? AND platform = ?`, trackID, string(platform))
	if err != nil {
		return classifyWriteErr(err)
	}
	return requireRowAffected(res)
}

func scanLink(row rowScanner) (model.PlatformLink, error) {
	var l model.PlatformLink
	var platform string
	var lastSyncedAt string
	var needsRefresh int
	err := row.Scan(&l.TrackID, &platform, &l.ExternalID, &l.ExternalURI, &l.MetadataBlob,
		&lastSyncedAt, &needsRefresh, &l.MatchConfidence)
	if err != nil {
		return model.PlatformLink{}, fmt.Errorf("scanning platform link: %w", err)
	}
	l.Platform = model.Platform(platform)
	l.NeedsRefresh = needsRefresh != 0
	l.LastSyncedAt, _ = time.Parse(time.RFC3339, lastSyncedAt)
	return l, nil
}
