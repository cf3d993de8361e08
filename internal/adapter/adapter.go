// Package adapter defines the Platform Adapter Interface (L3): the one
// contract every external platform integration must satisfy, and the
// capability flags Detector/Planner/Executor query to decide what an
// adapter is allowed to do. Adapters never touch the repository; they
// only translate between this interface and a remote wire format.
package adapter

import "context"

// ExtPlaylist is a platform's own playlist representation, reduced to
// the fields the sync core cares about.
type ExtPlaylist struct {
	ExternalID  string
	Name        string
	Description string
	Owned       bool
}

// ExtTrack is a platform's own track representation.
type ExtTrack struct {
	ExternalID string
	Title      string
	Artist     string
	Album      string
	DurationMS int
	ISRC       string
}

// CapabilityFlags is the static description of what one adapter
// instance supports, per spec.md §4.3.
type CapabilityFlags struct {
	CanCreate           bool
	CanDelete           bool
	CanModifyShared     bool
	OwnsFilesystemPaths bool
	IsPersonalOnly      bool
	RateBudgetPerMinute int
}

// ItemResult is one entry in a batched add/remove outcome: the
// operation reports success per item rather than failing the whole
// batch atomically, per spec.md §4.3's "ok/partial" contract.
type ItemResult struct {
	ExternalTrackID string
	Err             error
}

// Adapter is the platform integration surface. Every method may
// return a syncerr sentinel-classifiable error; see internal/syncerr.
type Adapter interface {
	Platform() string

	// Authenticated is a pure read of cached credentials. Never fails.
	Authenticated() bool

	// Authenticate may block on an external OAuth flow. Fails with
	// syncerr.ErrAuthFailed.
	Authenticate(ctx context.Context) error

	// ListPlaylists is paginated under the hood.
	ListPlaylists(ctx context.Context) ([]ExtPlaylist, error)

	// FetchPlaylistTracks preserves platform order.
	FetchPlaylistTracks(ctx context.Context, externalPlaylistID string) ([]ExtTrack, error)

	// CreatePlaylist returns the new playlist's external id. Fails
	// with syncerr.ErrNotPermitted if the adapter's capabilities do
	// not include creation.
	CreatePlaylist(ctx context.Context, name, description string, private bool) (string, error)

	// AddTracks is batched and reports per-item success.
	AddTracks(ctx context.Context, externalPlaylistID string, externalTrackIDs []string) ([]ItemResult, error)

	// RemoveTracks is batched; may reject with syncerr.ErrNotPermitted
	// if the remote playlist is not owned.
	RemoveTracks(ctx context.Context, externalPlaylistID string, externalTrackIDs []string) ([]ItemResult, error)

	// Search is used by the Change Detector to propose a platform
	// counterpart for a library track that has no link yet.
	Search(ctx context.Context, query string, limit int) ([]ExtTrack, error)

	Capabilities() CapabilityFlags
}
