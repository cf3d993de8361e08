// Package plan implements the Sync Planner (L6): turning the Change
// Detector's classified diff into an ordered list of SyncChange
// records, tagged by direction and kind, filtered by the binding's
// sync_mode.
package plan

import (
	"fmt"
	"hash/fnv"
	"sort"

	"github.com/rcong315/selecta-sync/internal/detect"
	"github.com/rcong315/selecta-sync/internal/model"
)

// Build converts detections into an ordered, sync_mode-filtered list
// of SyncChange records for one binding.
func Build(binding model.PlaylistPlatformBinding, detections []detect.Detection) []model.SyncChange {
	var changes []model.SyncChange
	for _, d := range detections {
		if c, ok := fromDetection(binding, d); ok {
			changes = append(changes, c)
		}
	}

	changes = filterBySyncMode(binding, changes)

	sort.SliceStable(changes, func(i, j int) bool {
		return changes[i].ChangeID < changes[j].ChangeID
	})
	return changes
}

func fromDetection(binding model.PlaylistPlatformBinding, d detect.Detection) (model.SyncChange, bool) {
	switch d.Category {
	case detect.CategoryUnchanged:
		return model.SyncChange{}, false

	case detect.CategoryPlatformAdded:
		if d.TrackID != nil {
			// Matched an existing playlist member: the song is already
			// present on both sides, it was simply never linked.
			return newChange(binding, model.DirectionPlatformToLibrary, model.KindLink, d,
				fmt.Sprintf("Link existing track to platform id %s", derefStr(d.ExternalID))), true
		}
		c := newChange(binding, model.DirectionPlatformToLibrary, model.KindAdd, d,
			"Add new track discovered on platform")
		c.PlatformMetadata = d.PlatformMetadata
		return c, true

	case detect.CategoryPlatformRemoved:
		return newChange(binding, model.DirectionPlatformToLibrary, model.KindRemove, d,
			"Remove track that was removed on platform"), true

	case detect.CategoryLibraryAdded:
		return newChange(binding, model.DirectionLibraryToPlatform, model.KindAdd, d,
			"Add locally-added track to platform playlist"), true

	case detect.CategoryLibraryRemoved:
		return newChange(binding, model.DirectionLibraryToPlatform, model.KindRemove, d,
			"Remove locally-removed track from platform playlist"), true

	case detect.CategoryConflict:
		c := newChange(binding, model.DirectionPlatformToLibrary, model.KindConflict, d,
			"Metadata diverged between library and platform beyond the matching threshold")
		c.LibraryMetadata = d.LibraryMetadata
		c.PlatformMetadata = d.PlatformMetadata
		return c, true

	default:
		return model.SyncChange{}, false
	}
}

func newChange(binding model.PlaylistPlatformBinding, direction model.ChangeDirection, kind model.ChangeKind, d detect.Detection, description string) model.SyncChange {
	category := categoryFor(kind, direction)
	c := model.SyncChange{
		BindingID:         binding.ID,
		Direction:         direction,
		Kind:              kind,
		Category:          category,
		Description:       description,
		TrackID:           d.TrackID,
		ExternalID:        d.ExternalID,
		NeedsConfirmation: d.NeedsConfirmation,
		MatchConfidence:   d.MatchConfidence,
	}
	c.UserSelected = model.DefaultUserSelected(kind, direction, binding.IsPersonal, d.NeedsConfirmation)
	c.ChangeID = changeID(c)
	return c
}

func categoryFor(kind model.ChangeKind, direction model.ChangeDirection) model.ChangeCategory {
	switch {
	case kind == model.KindConflict:
		return model.CategoryConflict
	case direction == model.DirectionPlatformToLibrary && kind == model.KindAdd:
		return model.CategoryPlatformAdded
	case direction == model.DirectionPlatformToLibrary && kind == model.KindRemove:
		return model.CategoryPlatformRemoved
	case direction == model.DirectionLibraryToPlatform && kind == model.KindAdd:
		return model.CategoryLibraryAdded
	case direction == model.DirectionLibraryToPlatform && kind == model.KindRemove:
		return model.CategoryLibraryRemoved
	default:
		return model.CategoryUnchanged
	}
}

// changeID hashes binding + direction + kind + identifiers into a
// stable id, per spec.md §4.6, so the same logical change produces
// the same id across successive preview calls.
func changeID(c model.SyncChange) string {
	h := fnv.New64a()
	fmt.Fprintf(h, "%d|%s|%s", c.BindingID, c.Direction, c.Kind)
	if c.TrackID != nil {
		fmt.Fprintf(h, "|t:%d", *c.TrackID)
	}
	if c.ExternalID != nil {
		fmt.Fprintf(h, "|e:%s", *c.ExternalID)
	}
	return fmt.Sprintf("%016x", h.Sum64())
}

func derefStr(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// filterBySyncMode applies spec.md §4.6's sync_mode rules. A binding
// with is_personal=false is always treated as import_only regardless
// of its configured mode, since the Planner refuses library_to_platform
// removes against playlists the user doesn't own, and import_only is
// the tightest mode that already guarantees that.
func filterBySyncMode(binding model.PlaylistPlatformBinding, changes []model.SyncChange) []model.SyncChange {
	mode := binding.EffectiveSyncMode()

	var out []model.SyncChange
	for _, c := range changes {
		if !binding.IsPersonal && c.Direction == model.DirectionLibraryToPlatform && c.Kind == model.KindRemove {
			continue
		}

		switch mode {
		case model.SyncModeImportOnly:
			if c.Direction == model.DirectionLibraryToPlatform {
				continue
			}
		case model.SyncModeAddOnly:
			if c.Kind == model.KindRemove {
				continue
			}
		case model.SyncModeMirrorFromPlatform:
			if c.Direction == model.DirectionLibraryToPlatform && c.Kind != model.KindRemove {
				continue
			}
		case model.SyncModeMirrorToPlatform:
			if c.Direction == model.DirectionPlatformToLibrary && c.Kind != model.KindRemove {
				continue
			}
		case model.SyncModeFullBidirectional:
			// keep everything
		}
		out = append(out, c)
	}
	return out
}
