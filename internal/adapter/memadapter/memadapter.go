// Package memadapter is an in-memory Adapter implementation used by
// tests and local demos in place of a real wire client (out of scope
// per spec.md §1). Its rate-limit shape is grounded on
// rcong315/RunDJServer's internal/spotify/api.go
// (fetchPaginatedItems/fetchAllResults, 429 handling), translated from
// an HTTP round trip into an in-process fixture: FetchPlaylistTracks
// returns a playlist's whole track list in one call, with no paging,
// and InjectRateLimit makes the next remote call return
// syncerr.ErrRateLimited once, the way a real client would surface a
// 429; no Retry-After hint is carried.
package memadapter

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/rcong315/selecta-sync/internal/adapter"
	"github.com/rcong315/selecta-sync/internal/syncerr"
)

// Adapter is a fully in-memory fake of adapter.Adapter, keyed by
// external playlist id.
type Adapter struct {
	mu sync.Mutex

	name          string
	caps          adapter.CapabilityFlags
	authenticated bool

	playlists map[string]adapter.ExtPlaylist
	tracks    map[string][]adapter.ExtTrack // externalPlaylistID -> ordered tracks
	catalog   []adapter.ExtTrack            // searchable universe

	nextPlaylistID     int
	rateLimitRemaining int
}

// New creates a fake adapter named platform, with the given static
// capabilities. Authenticated starts true: real OAuth is out of scope.
func New(platform string, caps adapter.CapabilityFlags) *Adapter {
	return &Adapter{
		name:          platform,
		caps:          caps,
		authenticated: true,
		playlists:     map[string]adapter.ExtPlaylist{},
		tracks:        map[string][]adapter.ExtTrack{},
	}
}

// SeedPlaylist registers a playlist with an initial track list, as if
// it already existed on the remote platform before the sync core ever
// ran.
func (a *Adapter) SeedPlaylist(externalID, name string, owned bool, tracks []adapter.ExtTrack) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.playlists[externalID] = adapter.ExtPlaylist{ExternalID: externalID, Name: name, Owned: owned}
	a.tracks[externalID] = append([]adapter.ExtTrack(nil), tracks...)
}

// SeedCatalog adds tracks reachable via Search, independent of any
// playlist membership.
func (a *Adapter) SeedCatalog(tracks ...adapter.ExtTrack) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.catalog = append(a.catalog, tracks...)
}

// InjectRateLimit makes the next call return syncerr.ErrRateLimited
// instead of doing its normal work, exercising the retry/backoff path
// in internal/ratelimit without a real network dependency.
func (a *Adapter) InjectRateLimit() {
	a.InjectRateLimitN(1)
}

// InjectRateLimitN makes the next n calls (across any method) return
// syncerr.ErrRateLimited, so a caller can simulate a platform that
// stays rate-limited for more than one retry attempt.
func (a *Adapter) InjectRateLimitN(n int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.rateLimitRemaining = n
}

func (a *Adapter) consumeRateLimit() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.rateLimitRemaining > 0 {
		a.rateLimitRemaining--
		return syncerr.ErrRateLimited
	}
	return nil
}

func (a *Adapter) Platform() string { return a.name }

func (a *Adapter) Authenticated() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.authenticated
}

func (a *Adapter) Authenticate(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.authenticated = true
	return nil
}

func (a *Adapter) ListPlaylists(ctx context.Context) ([]adapter.ExtPlaylist, error) {
	if err := a.consumeRateLimit(); err != nil {
		return nil, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]adapter.ExtPlaylist, 0, len(a.playlists))
	for _, p := range a.playlists {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExternalID < out[j].ExternalID })
	return out, nil
}

func (a *Adapter) FetchPlaylistTracks(ctx context.Context, externalPlaylistID string) ([]adapter.ExtTrack, error) {
	if err := a.consumeRateLimit(); err != nil {
		return nil, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	tracks, ok := a.tracks[externalPlaylistID]
	if !ok {
		return nil, fmt.Errorf("%w: playlist %s", syncerr.ErrNotFound, externalPlaylistID)
	}
	return append([]adapter.ExtTrack(nil), tracks...), nil
}

func (a *Adapter) CreatePlaylist(ctx context.Context, name, description string, private bool) (string, error) {
	if !a.caps.CanCreate {
		return "", syncerr.ErrNotPermitted
	}
	if err := a.consumeRateLimit(); err != nil {
		return "", err
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	a.nextPlaylistID++
	id := fmt.Sprintf("%s-generated-%d", a.name, a.nextPlaylistID)
	a.playlists[id] = adapter.ExtPlaylist{ExternalID: id, Name: name, Description: description, Owned: true}
	a.tracks[id] = nil
	return id, nil
}

func (a *Adapter) AddTracks(ctx context.Context, externalPlaylistID string, externalTrackIDs []string) ([]adapter.ItemResult, error) {
	if err := a.consumeRateLimit(); err != nil {
		return nil, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	results := make([]adapter.ItemResult, 0, len(externalTrackIDs))
	for _, id := range externalTrackIDs {
		track, ok := a.findInCatalog(id)
		if !ok {
			results = append(results, adapter.ItemResult{ExternalTrackID: id, Err: syncerr.ErrNotFound})
			continue
		}
		a.tracks[externalPlaylistID] = append(a.tracks[externalPlaylistID], track)
		results = append(results, adapter.ItemResult{ExternalTrackID: id})
	}
	return results, nil
}

func (a *Adapter) RemoveTracks(ctx context.Context, externalPlaylistID string, externalTrackIDs []string) ([]adapter.ItemResult, error) {
	if playlist, ok := a.playlists[externalPlaylistID]; ok && !playlist.Owned && !a.caps.CanModifyShared {
		return nil, syncerr.ErrNotPermitted
	}
	if err := a.consumeRateLimit(); err != nil {
		return nil, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	toRemove := map[string]bool{}
	for _, id := range externalTrackIDs {
		toRemove[id] = true
	}

	var remaining []adapter.ExtTrack
	results := make([]adapter.ItemResult, 0, len(externalTrackIDs))
	seen := map[string]bool{}
	for _, t := range a.tracks[externalPlaylistID] {
		if toRemove[t.ExternalID] {
			seen[t.ExternalID] = true
			continue
		}
		remaining = append(remaining, t)
	}
	a.tracks[externalPlaylistID] = remaining

	for _, id := range externalTrackIDs {
		if seen[id] {
			results = append(results, adapter.ItemResult{ExternalTrackID: id})
		} else {
			results = append(results, adapter.ItemResult{ExternalTrackID: id, Err: syncerr.ErrNotFound})
		}
	}
	return results, nil
}

func (a *Adapter) Search(ctx context.Context, query string, limit int) ([]adapter.ExtTrack, error) {
	if err := a.consumeRateLimit(); err != nil {
		return nil, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	// containsFold is checked in both directions: a short query like
	// "golden" is a substring of the catalog's "Golden Hour", while
	// internal/detect's "title artist" query is the other way around,
	// a superstring of the catalog's own title/artist fields.
	var matches []adapter.ExtTrack
	for _, t := range a.catalog {
		if containsFold(t.Title, query) || containsFold(t.Artist, query) ||
			containsFold(query, t.Title) || containsFold(query, t.Artist) {
			matches = append(matches, t)
			if limit > 0 && len(matches) >= limit {
				break
			}
		}
	}
	return matches, nil
}

func (a *Adapter) Capabilities() adapter.CapabilityFlags {
	return a.caps
}

func (a *Adapter) findInCatalog(externalID string) (adapter.ExtTrack, bool) {
	for _, t := range a.catalog {
		if t.ExternalID == externalID {
			return t, true
		}
	}
	return adapter.ExtTrack{}, false
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}
