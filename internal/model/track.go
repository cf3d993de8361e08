// Package model defines the data types shared by every component of the
// synchronization core: tracks, platform links, playlists, membership
// edges, platform bindings, snapshots, and sync changes.
package model

import "time"

// Platform identifies one external service the core can synchronize with.
type Platform string

const (
	PlatformStream    Platform = "stream"    // streaming service
	PlatformDJLibrary Platform = "dj_library" // local DJ-library application
	PlatformVinyl     Platform = "vinyl"      // vinyl-catalog collection/wantlist service
	PlatformVideo     Platform = "video"      // video service
)

// Track is a song as known to the local library.
type Track struct {
	ID             int64      `json:"id"`
	Title          string     `json:"title"`
	PrimaryArtist  string     `json:"primary_artist"`
	AlbumRef       *string    `json:"album_ref,omitempty"`
	DurationMS     *int       `json:"duration_ms,omitempty"`
	Year           *int       `json:"year,omitempty"`
	BPM            *float64   `json:"bpm,omitempty"`
	IsLocalFile    bool       `json:"is_local_file"`
	LocalPath      *string    `json:"local_path,omitempty"`
	QualityRating  *int       `json:"quality_rating,omitempty"`
	DeletedAt      *time.Time `json:"deleted_at,omitempty"`
}

// SoftDeleted reports whether the track has been soft-deleted (§7: a
// track is deleted only when not referenced by any playlist).
func (t Track) SoftDeleted() bool {
	return t.DeletedAt != nil
}

// PlatformLink bridges a local Track to its representation on one platform.
type PlatformLink struct {
	TrackID         int64     `json:"track_id"`
	Platform        Platform  `json:"platform"`
	ExternalID      string    `json:"external_id"`
	ExternalURI     *string   `json:"external_uri,omitempty"`
	MetadataBlob    []byte    `json:"metadata_blob,omitempty"`
	LastSyncedAt    time.Time `json:"last_synced_at"`
	NeedsRefresh    bool      `json:"needs_refresh"`
	MatchConfidence float64   `json:"match_confidence"`
}
