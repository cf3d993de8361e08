package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sahilm/fuzzy"

	"github.com/rcong315/selecta-sync/internal/model"
	"github.com/rcong315/selecta-sync/internal/repository"
)

func (s *Store) GetTrack(ctx context.Context, id int64) (model.Track, error) {
	row := s.q().QueryRowContext(ctx, `
		SELECT id, title, primary_artist, album_ref, duration_ms, year, bpm,
		       is_local_file, local_path, quality_rating, deleted_at
		FROM tracks WHERE id = ?`, id)
	t, err := scanTrack(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Track{}, repository.ErrNotFound
	}
	return t, err
}

func (s *Store) CreateTrack(ctx context.Context, t model.Track) (int64, error) {
	res, err := s.q().ExecContext(ctx, `
		INSERT INTO tracks (title, primary_artist, album_ref, duration_ms, year, bpm,
		                     is_local_file, local_path, quality_rating, deleted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.Title, t.PrimaryArtist, t.AlbumRef, t.DurationMS, t.Year, t.BPM,
		boolToInt(t.IsLocalFile), t.LocalPath, t.QualityRating, timePtrToString(t.DeletedAt))
	if err != nil {
		return 0, classifyWriteErr(err)
	}
	return res.LastInsertId()
}

func (s *Store) UpdateTrack(ctx context.Context, t model.Track) error {
	res, err := s.q().ExecContext(ctx, `
		UPDATE tracks SET title = ?, primary_artist = ?, album_ref = ?, duration_ms = ?,
		       year = ?, bpm = ?, is_local_file = ?, local_path = ?, quality_rating = ?,
		       deleted_at = ?
		WHERE id = ?`,
		t.Title, t.PrimaryArtist, t.AlbumRef, t.DurationMS, t.Year, t.BPM,
		boolToInt(t.IsLocalFile), t.LocalPath, t.QualityRating, timePtrToString(t.DeletedAt), t.ID)
	if err != nil {
		return classifyWriteErr(err)
	}
	return requireRowAffected(res)
}

// SoftDeleteTrack sets deleted_at rather than removing the row:
// per spec.md §3, a Track is deleted only when not referenced by any
// playlist, and soft delete lets the repository enforce that without
// losing PlatformLink history. The referencing check runs first and
// rejects with ErrConflict while the track still has a membership row.
func (s *Store) SoftDeleteTrack(ctx context.Context, id int64) error {
	var refCount int
	if err := s.q().QueryRowContext(ctx,
		`SELECT COUNT(*) FROM playlist_members WHERE track_id = ?`, id).Scan(&refCount); err != nil {
		return fmt.Errorf("checking track references: %w", err)
	}
	if refCount > 0 {
		return fmt.Errorf("%w: track %d is still referenced by %d playlist member(s)", repository.ErrConflict, id, refCount)
	}

	res, err := s.q().ExecContext(ctx,
		`UPDATE tracks SET deleted_at = ? WHERE id = ?`, time.Now().UTC().Format(time.RFC3339), id)
	if err != nil {
		return classifyWriteErr(err)
	}
	return requireRowAffected(res)
}

// SearchTracks loads every non-deleted track matching the platform
// filter, then ranks by fuzzy relevance to filter.Query when one is
// given. The platform/deleted filtering happens in SQL since it's
// selective; free-text ranking happens in-memory because SQLite LIKE
// cannot express the tolerant subsequence matching a library search
// box needs (typos, partial words, reordered terms).
func (s *Store) SearchTracks(ctx context.Context, filter repository.SearchFilter) ([]model.Track, error) {
	query := `
		SELECT DISTINCT t.id, t.title, t.primary_artist, t.album_ref, t.duration_ms, t.year, t.bpm,
		       t.is_local_file, t.local_path, t.quality_rating, t.deleted_at
		FROM tracks t`
	var args []any
	where := []string{`t.deleted_at IS NULL`}

	if filter.Platform != "" {
		query += ` JOIN platform_links pl ON pl.track_id = t.id`
		where = append(where, `pl.platform = ?`)
		args = append(args, string(filter.Platform))
	}
	query += " WHERE " + strings.Join(where, " AND ")
	query += " ORDER BY t.title"

	rows, err := s.q().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("searching tracks: %w", err)
	}
	defer rows.Close()

	var tracks []model.Track
	for rows.Next() {
		t, err := scanTrack(rows)
		if err != nil {
			return nil, err
		}
		tracks = append(tracks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if filter.Query != "" {
		tracks = rankByFuzzyMatch(tracks, filter.Query)
	}
	if filter.Limit > 0 && len(tracks) > filter.Limit {
		tracks = tracks[:filter.Limit]
	}
	return tracks, nil
}

func rankByFuzzyMatch(tracks []model.Track, query string) []model.Track {
	source := make(searchableTracks, len(tracks))
	for i, t := range tracks {
		source[i] = t
	}
	// Each term is matched on its own, so terms may appear in any order;
	// a track is kept only when every term matches, ranked by the first.
	terms := strings.Fields(query)
	if len(terms) == 0 {
		return tracks
	}
	hits := make([]int, len(tracks))
	for _, term := range terms[1:] {
		for _, m := range fuzzy.FindFrom(term, source) {
			hits[m.Index]++
		}
	}
	ranked := make([]model.Track, 0, len(tracks))
	for _, m := range fuzzy.FindFrom(terms[0], source) {
		if hits[m.Index] == len(terms)-1 {
			ranked = append(ranked, tracks[m.Index])
		}
	}
	return ranked
}

// searchableTracks implements fuzzy.Source over title + primary
// artist, so a query like "miles blue" matches "Blue in Green" by
// Miles Davis.
type searchableTracks []model.Track

func (s searchableTracks) String(i int) string {
	return s[i].Title + " " + s[i].PrimaryArtist
}

func (s searchableTracks) Len() int { return len(s) }

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanTrack(row rowScanner) (model.Track, error) {
	var t model.Track
	var deletedAt sql.NullString
	var isLocalFile int
	err := row.Scan(&t.ID, &t.Title, &t.PrimaryArtist, &t.AlbumRef, &t.DurationMS, &t.Year,
		&t.BPM, &isLocalFile, &t.LocalPath, &t.QualityRating, &deletedAt)
	if err != nil {
		return model.Track{}, fmt.Errorf("scanning track: %w", err)
	}
	t.IsLocalFile = isLocalFile != 0
	if deletedAt.Valid {
		parsed, err := time.Parse(time.RFC3339, deletedAt.String)
		if err == nil {
			t.DeletedAt = &parsed
		}
	}
	return t, nil
}
