package model

import "time"

// PlaylistKind distinguishes the three shapes a Playlist row can take.
type PlaylistKind string

const (
	PlaylistKindFolder         PlaylistKind = "folder"
	PlaylistKindPlaylist       PlaylistKind = "playlist"
	PlaylistKindCollectionView PlaylistKind = "collection-view"
)

// SystemPlaylistName is the name of the one playlist every library has:
// the root collection. It is local-only (see SPEC_FULL.md §9, decision 2)
// and can never be bound to a platform.
const SystemPlaylistName = "Library Collection"

// Playlist is an ordered collection of tracks, or a folder containing
// other playlists.
type Playlist struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Kind      PlaylistKind `json:"kind"`
	ParentID  *int64    `json:"parent_id,omitempty"`
	IsSystem  bool      `json:"is_system"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PlaylistMember is an ordered membership edge between a playlist and a track.
type PlaylistMember struct {
	PlaylistID int64     `json:"playlist_id"`
	TrackID    int64     `json:"track_id"`
	Position   int       `json:"position"`
	AddedAt    time.Time `json:"added_at"`
}

// SyncMode governs which direction(s) of change the Planner is allowed
// to emit for one binding.
type SyncMode string

const (
	SyncModeFullBidirectional  SyncMode = "full_bidirectional"
	SyncModeAddOnly            SyncMode = "add_only"
	SyncModeMirrorFromPlatform SyncMode = "mirror_from_platform"
	SyncModeMirrorToPlatform   SyncMode = "mirror_to_platform"
	SyncModeImportOnly         SyncMode = "import_only"
)

// PlaylistPlatformBinding records that a local playlist is linked to an
// external playlist on one platform.
type PlaylistPlatformBinding struct {
	ID                  int64      `json:"id"`
	PlaylistID          int64      `json:"playlist_id"`
	Platform            Platform   `json:"platform"`
	ExternalPlaylistID  string     `json:"external_playlist_id"`
	SyncMode            SyncMode   `json:"sync_mode"`
	IsPersonal          bool       `json:"is_personal"`
	LastSyncedAt        *time.Time `json:"last_synced_at,omitempty"`
}

// EffectiveSyncMode applies the Planner's blanket downgrade of any
// shared (non-personal) binding to import-only, regardless of the
// binding's configured mode (spec.md §4.6: "The Planner refuses to
// emit remove changes on library_to_platform when is_personal=false...
// those bindings are treated as import_only regardless of requested
// mode").
func (b PlaylistPlatformBinding) EffectiveSyncMode() SyncMode {
	if !b.IsPersonal {
		return SyncModeImportOnly
	}
	return b.SyncMode
}
