// Package repository defines the Repository Layer (L2): the
// interfaces through which every other layer reads and mutates Tracks,
// Playlists, PlaylistMembers, PlatformLinks,
// PlaylistPlatformBindings, and Snapshots. Concrete storage lives in
// internal/repository/sqlite; callers depend only on these interfaces.
package repository

import (
	"context"
	"errors"

	"github.com/rcong315/selecta-sync/internal/model"
)

// ErrConflict is returned when a write would violate a uniqueness
// invariant (e.g. a duplicate PlaylistPlatformBinding for the same
// playlist+platform). Store implementations must wrap this sentinel
// with errors.Is-compatible context, never replace it.
var ErrConflict = errors.New("repository: conflict")

// ErrNotFound is returned when a lookup by id finds nothing.
var ErrNotFound = errors.New("repository: not found")

// SearchFilter narrows a track search by optional criteria; zero
// values mean "no filter" for that field.
type SearchFilter struct {
	Query    string
	Genre    string
	Tag      string
	Platform model.Platform // only tracks with a PlatformLink on this platform
	Limit    int
}

// TrackStore is CRUD and search over Tracks.
type TrackStore interface {
	GetTrack(ctx context.Context, id int64) (model.Track, error)
	CreateTrack(ctx context.Context, t model.Track) (int64, error)
	UpdateTrack(ctx context.Context, t model.Track) error
	SoftDeleteTrack(ctx context.Context, id int64) error
	SearchTracks(ctx context.Context, filter SearchFilter) ([]model.Track, error)
}

// PlaylistStore is CRUD over Playlists and their membership.
type PlaylistStore interface {
	GetPlaylist(ctx context.Context, id int64) (model.Playlist, error)
	CreatePlaylist(ctx context.Context, p model.Playlist) (int64, error)
	UpdatePlaylist(ctx context.Context, p model.Playlist) error
	DeletePlaylist(ctx context.Context, id int64) error

	Members(ctx context.Context, playlistID int64) ([]model.PlaylistMember, error)
	AddMember(ctx context.Context, m model.PlaylistMember) error
	RemoveMember(ctx context.Context, playlistID, trackID int64) error
}

// LinkStore is CRUD over PlatformLinks, the cross-platform identity
// table joining a Track to one external id per platform.
type LinkStore interface {
	GetLink(ctx context.Context, trackID int64, platform model.Platform) (model.PlatformLink, error)
	LinksForTrack(ctx context.Context, trackID int64) ([]model.PlatformLink, error)
	LinkByExternalID(ctx context.Context, platform model.Platform, externalID string) (model.PlatformLink, error)
	UpsertLink(ctx context.Context, link model.PlatformLink) error
	DeleteLink(ctx context.Context, trackID int64, platform model.Platform) error
}

// BindingStore is CRUD over PlaylistPlatformBindings.
type BindingStore interface {
	GetBinding(ctx context.Context, id int64) (model.PlaylistPlatformBinding, error)
	BindingsForPlaylist(ctx context.Context, playlistID int64) ([]model.PlaylistPlatformBinding, error)
	CreateBinding(ctx context.Context, b model.PlaylistPlatformBinding) (int64, error)
	UpdateBinding(ctx context.Context, b model.PlaylistPlatformBinding) error
	DeleteBinding(ctx context.Context, id int64) error
}

// SnapshotStore implements L4 atop the repository: atomic
// replace-on-write, single-version-per-binding read.
type SnapshotStore interface {
	GetSnapshot(ctx context.Context, bindingID int64) (model.Snapshot, error)
	ReplaceSnapshot(ctx context.Context, snap model.Snapshot) error
}

// Store is the full Repository Layer surface, composed from the
// per-entity interfaces above plus transactional scoping.
type Store interface {
	TrackStore
	PlaylistStore
	LinkStore
	BindingStore
	SnapshotStore

	// WithTx runs fn inside one transactional scope: if fn returns a
	// non-nil error, every mutation inside fn is rolled back. Per
	// spec.md §4.2, each sync apply runs in exactly one transaction;
	// partial success is never persisted. The Store passed to fn is
	// bound to the transaction; the outer Store must not be used
	// concurrently with it.
	WithTx(ctx context.Context, fn func(tx Store) error) error

	Close() error
}
