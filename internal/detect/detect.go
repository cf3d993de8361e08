// Package detect implements the Change Detector (L5): the three-way
// diff between current library membership, current platform
// membership, and the last recorded snapshot for one binding, per
// spec.md §4.5.
package detect

import (
	"context"
	"fmt"
	"sort"

	"github.com/rcong315/selecta-sync/internal/adapter"
	"github.com/rcong315/selecta-sync/internal/matching"
	"github.com/rcong315/selecta-sync/internal/model"
	"github.com/rcong315/selecta-sync/internal/repository"
)

// Category mirrors spec.md §4.5's classification table.
type Category string

const (
	CategoryPlatformAdded   Category = "platform_added"
	CategoryPlatformRemoved Category = "platform_removed"
	CategoryLibraryAdded    Category = "library_added"
	CategoryLibraryRemoved  Category = "library_removed"
	CategoryConflict        Category = "conflict"
	CategoryUnchanged       Category = "unchanged"
)

// Detection is one classified item of the three-way diff, carrying
// enough identity to be turned into a SyncChange by internal/plan.
type Detection struct {
	Category Category

	// TrackID is set whenever the item resolves to a known local
	// Track (either it was already, or matching/search just found one).
	TrackID *int64

	// ExternalID is set whenever the item corresponds to a platform
	// track (either observed now, or recovered from the snapshot's
	// link_pairs for a LibraryRemoved item whose link is already gone).
	ExternalID *string

	NeedsConfirmation bool
	MatchConfidence   float64

	// LibraryMetadata/PlatformMetadata are populated only for
	// CategoryConflict, so the Planner can attach a human-facing diff
	// without re-querying either side.
	LibraryMetadata  map[string]string
	PlatformMetadata map[string]string
}

// Detector computes the three-way diff for one binding.
type Detector struct {
	repo repository.Store
	adp  adapter.Adapter
	th   matching.Thresholds
}

func New(repo repository.Store, adp adapter.Adapter, th matching.Thresholds) *Detector {
	return &Detector{repo: repo, adp: adp, th: th}
}

// Detect runs the full diff for playlistID against binding, using the
// given previously-recorded snapshot.
func (d *Detector) Detect(ctx context.Context, binding model.PlaylistPlatformBinding, snap model.Snapshot) ([]Detection, error) {
	members, err := d.repo.Members(ctx, binding.PlaylistID)
	if err != nil {
		return nil, fmt.Errorf("loading playlist members: %w", err)
	}
	libraryTrackIDs := make(map[int64]bool, len(members))
	for _, m := range members {
		libraryTrackIDs[m.TrackID] = true
	}

	platformTracks, err := d.adp.FetchPlaylistTracks(ctx, binding.ExternalPlaylistID)
	if err != nil {
		return nil, fmt.Errorf("fetching platform tracks: %w", err)
	}
	platformExternalIDs := make(map[string]adapter.ExtTrack, len(platformTracks))
	for _, t := range platformTracks {
		platformExternalIDs[t.ExternalID] = t
	}

	snapshotLibrary := toSet(snap.LibraryMembers)
	snapshotPlatform := toStringSet(snap.PlatformMembers)

	// existingLinks maps in both directions so membership checks below
	// don't repeatedly hit the repository.
	trackToExternal := map[int64]string{}
	externalToTrack := map[string]int64{}
	for trackID := range libraryTrackIDs {
		links, err := d.repo.LinksForTrack(ctx, trackID)
		if err != nil {
			return nil, fmt.Errorf("loading links for track %d: %w", trackID, err)
		}
		for _, l := range links {
			if l.Platform == binding.Platform {
				trackToExternal[trackID] = l.ExternalID
				externalToTrack[l.ExternalID] = trackID
			}
		}
	}

	var detections []Detection

	// Platform-side classification.
	unlinkedLibraryTrackIDs := map[int64]bool{}
	for trackID := range libraryTrackIDs {
		if _, linked := trackToExternal[trackID]; !linked {
			unlinkedLibraryTrackIDs[trackID] = true
		}
	}

	for externalID, extTrack := range platformExternalIDs {
		trackID, linked := externalToTrack[externalID]
		if !linked {
			resolved, needsConfirmation, confidence, err := d.resolveUnlinkedPlatformTrack(ctx, extTrack, unlinkedLibraryTrackIDs)
			if err != nil {
				return nil, err
			}
			cat := CategoryPlatformAdded
			if snapshotPlatform[externalID] {
				// Was already present at snapshot time under a
				// different (now-gone) link: treat as unchanged rather
				// than a fresh add.
				cat = CategoryUnchanged
			}
			ext := externalID
			det := Detection{Category: cat, ExternalID: &ext, NeedsConfirmation: needsConfirmation, MatchConfidence: confidence}
			if resolved != nil {
				det.TrackID = resolved
				if !needsConfirmation {
					// Auto-matched: the pair is classified here, so the
					// library-side loop below skips this track.
					trackToExternal[*resolved] = externalID
				}
			} else if cat == CategoryPlatformAdded {
				// No local match at all: the Executor will need to create
				// a brand new Track, so carry the platform's own fields
				// along rather than requiring a second remote fetch.
				det.PlatformMetadata = extTrackMetadata(extTrack)
			}
			detections = append(detections, det)
			continue
		}

		ext := externalID
		if !snapshotPlatform[externalID] {
			detections = append(detections, Detection{Category: CategoryPlatformAdded, TrackID: &trackID, ExternalID: &ext, MatchConfidence: 1.0})
			continue
		}

		cat, confidence, err := d.classifyLinkedPair(ctx, trackID, extTrack)
		if err != nil {
			return nil, err
		}
		det := Detection{Category: cat, TrackID: &trackID, ExternalID: &ext, MatchConfidence: confidence}
		if cat == CategoryConflict {
			track, err := d.repo.GetTrack(ctx, trackID)
			if err != nil {
				return nil, fmt.Errorf("loading track %d: %w", trackID, err)
			}
			det.LibraryMetadata, det.PlatformMetadata = conflictMetadata(track, extTrack)
		}
		detections = append(detections, det)
	}
	for externalID := range snapshotPlatform {
		if _, present := platformExternalIDs[externalID]; !present {
			ext := externalID
			det := Detection{Category: CategoryPlatformRemoved, ExternalID: &ext}
			if trackID, ok := externalToTrack[externalID]; ok {
				det.TrackID = &trackID
			} else if link, err := d.repo.LinkByExternalID(ctx, binding.Platform, externalID); err == nil {
				id := link.TrackID
				det.TrackID = &id
			}
			detections = append(detections, det)
		}
	}

	// Library-side classification.
	for trackID := range libraryTrackIDs {
		if _, linked := trackToExternal[trackID]; linked {
			// Already fully classified by the platform-side loop above
			// (added/removed/unchanged/conflict against its one
			// external counterpart); emitting it again here would
			// double-count the same pair.
			continue
		}

		resolvedExternal, needsConfirmation, confidence, err := d.resolveUnlinkedLibraryTrack(ctx, trackID)
		if err != nil {
			return nil, err
		}
		id := trackID
		cat := CategoryLibraryAdded
		if snapshotLibrary[trackID] {
			cat = CategoryUnchanged
		}
		det := Detection{Category: cat, TrackID: &id, NeedsConfirmation: needsConfirmation, MatchConfidence: confidence}
		if resolvedExternal != nil {
			det.ExternalID = resolvedExternal
		}
		detections = append(detections, det)
	}
	for trackID := range snapshotLibrary {
		if !libraryTrackIDs[trackID] {
			id := trackID
			det := Detection{Category: CategoryLibraryRemoved, TrackID: &id}
			// A LibraryRemoved track whose PlatformLink is gone is
			// still emitted, using the snapshot's link_pairs to find
			// the external id (spec.md §4.5 edge case).
			if ext, ok := snapshotExternalFor(snap, trackID); ok {
				det.ExternalID = &ext
			}
			detections = append(detections, det)
		}
	}

	sortDeterministic(detections)
	return detections, nil
}

// resolveUnlinkedPlatformTrack routes a platform track without an
// existing link through matching against the library, per spec.md
// §4.5's resolution step.
func (d *Detector) resolveUnlinkedPlatformTrack(ctx context.Context, extTrack adapter.ExtTrack, libraryTrackIDs map[int64]bool) (*int64, bool, float64, error) {
	var candidates []struct {
		trackID int64
		track   model.Track
	}
	for trackID := range libraryTrackIDs {
		track, err := d.repo.GetTrack(ctx, trackID)
		if err != nil {
			return nil, false, 0, fmt.Errorf("loading track %d: %w", trackID, err)
		}
		candidates = append(candidates, struct {
			trackID int64
			track   model.Track
		}{trackID, track})
	}

	best := matching.Scored{}
	bestTrackID := int64(0)
	found := false
	for _, c := range candidates {
		q := trackToQuery(c.track)
		cand := extTrackToCandidate(extTrack)
		decision := matching.Score(q, cand, d.th)
		if !found || decision.Confidence > best.Decision.Confidence {
			best = matching.Scored{Candidate: cand, Decision: decision}
			bestTrackID = c.trackID
			found = true
		}
	}

	if !found || best.Decision.Confidence < d.th.Candidate {
		return nil, false, 0, nil
	}
	id := bestTrackID
	return &id, !best.Decision.IsMatch, best.Decision.Confidence, nil
}

// resolveUnlinkedLibraryTrack routes a library track without a link to
// this platform through the adapter's search, per spec.md §4.5.
func (d *Detector) resolveUnlinkedLibraryTrack(ctx context.Context, trackID int64) (*string, bool, float64, error) {
	track, err := d.repo.GetTrack(ctx, trackID)
	if err != nil {
		return nil, false, 0, fmt.Errorf("loading track %d: %w", trackID, err)
	}

	results, err := d.adp.Search(ctx, track.Title+" "+track.PrimaryArtist, 10)
	if err != nil {
		return nil, false, 0, fmt.Errorf("searching platform for track %d: %w", trackID, err)
	}
	if len(results) == 0 {
		return nil, false, 0, nil
	}

	candidates := make([]matching.Candidate, len(results))
	for i, r := range results {
		candidates[i] = extTrackToCandidate(r)
	}
	best, ok := matching.Best(trackToQuery(track), candidates, d.th)
	if !ok || best.Decision.Confidence < d.th.Candidate {
		return nil, false, 0, nil
	}
	ext := best.Candidate.ExternalID
	return &ext, !best.Decision.IsMatch, best.Decision.Confidence, nil
}

// classifyLinkedPair decides whether an already-linked (track,
// external track) pair is Unchanged or a Conflict: per spec.md §4.5,
// a Conflict is the same identity changed on both sides in
// incompatible ways, e.g. metadata now differs beyond the matching
// threshold even though the link itself is still intact.
func (d *Detector) classifyLinkedPair(ctx context.Context, trackID int64, extTrack adapter.ExtTrack) (Category, float64, error) {
	track, err := d.repo.GetTrack(ctx, trackID)
	if err != nil {
		return "", 0, fmt.Errorf("loading track %d: %w", trackID, err)
	}
	decision := matching.Score(trackToQuery(track), extTrackToCandidate(extTrack), d.th)
	if decision.Confidence < d.th.Candidate {
		return CategoryConflict, decision.Confidence, nil
	}
	return CategoryUnchanged, decision.Confidence, nil
}

func conflictMetadata(track model.Track, extTrack adapter.ExtTrack) (map[string]string, map[string]string) {
	libraryMeta := map[string]string{"title": track.Title, "artist": track.PrimaryArtist}
	return libraryMeta, extTrackMetadata(extTrack)
}

// extTrackMetadata flattens the fields of a platform track needed to
// create a matching local Track, as plain strings so they travel
// unchanged through Detection and SyncChange.
func extTrackMetadata(t adapter.ExtTrack) map[string]string {
	meta := map[string]string{"title": t.Title, "artist": t.Artist}
	if t.Album != "" {
		meta["album"] = t.Album
	}
	if t.DurationMS > 0 {
		meta["duration_ms"] = fmt.Sprintf("%d", t.DurationMS)
	}
	if t.ISRC != "" {
		meta["isrc"] = t.ISRC
	}
	return meta
}

func trackToQuery(t model.Track) matching.Query {
	q := matching.Query{Title: t.Title, Artist: t.PrimaryArtist}
	if t.AlbumRef != nil {
		q.Album = *t.AlbumRef
	}
	if t.DurationMS != nil {
		q.DurationMS = *t.DurationMS
	}
	return q
}

func extTrackToCandidate(t adapter.ExtTrack) matching.Candidate {
	return matching.Candidate{
		ExternalID: t.ExternalID,
		Title:      t.Title,
		Artist:     t.Artist,
		Album:      t.Album,
		DurationMS: t.DurationMS,
		ISRC:       t.ISRC,
	}
}

func snapshotExternalFor(snap model.Snapshot, trackID int64) (string, bool) {
	for ext, id := range snap.LinkPairs {
		if id == trackID {
			return ext, true
		}
	}
	return "", false
}

func toSet(ids []int64) map[int64]bool {
	set := make(map[int64]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

func toStringSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

// sortDeterministic orders detections so downstream change_id
// generation and test assertions never depend on map iteration order.
func sortDeterministic(detections []Detection) {
	sort.SliceStable(detections, func(i, j int) bool {
		a, b := detections[i], detections[j]
		if a.Category != b.Category {
			return a.Category < b.Category
		}
		aKey, bKey := detectionKey(a), detectionKey(b)
		return aKey < bKey
	})
}

func detectionKey(d Detection) string {
	if d.ExternalID != nil {
		return "e:" + *d.ExternalID
	}
	if d.TrackID != nil {
		return fmt.Sprintf("t:%d", *d.TrackID)
	}
	return ""
}
