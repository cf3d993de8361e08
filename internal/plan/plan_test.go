package plan

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rcong315/selecta-sync/internal/detect"
	"github.com/rcong315/selecta-sync/internal/model"
)

func personalBinding() model.PlaylistPlatformBinding {
	return model.PlaylistPlatformBinding{
		ID: 7, PlaylistID: 1, Platform: model.PlatformStream, ExternalPlaylistID: "ext",
		SyncMode: model.SyncModeFullBidirectional, IsPersonal: true,
	}
}

func trackID(id int64) *int64 { return &id }
func extID(s string) *string  { return &s }

func TestPlatformAddedWithMatchBecomesLink(t *testing.T) {
	binding := personalBinding()
	detections := []detect.Detection{
		{Category: detect.CategoryPlatformAdded, TrackID: trackID(5), ExternalID: extID("ext-5")},
	}
	changes := Build(binding, detections)
	require.Len(t, changes, 1)
	require.Equal(t, model.KindLink, changes[0].Kind)
	require.Equal(t, model.DirectionPlatformToLibrary, changes[0].Direction)
}

func TestPlatformAddedWithoutMatchBecomesAdd(t *testing.T) {
	binding := personalBinding()
	detections := []detect.Detection{
		{Category: detect.CategoryPlatformAdded, ExternalID: extID("ext-5")},
	}
	changes := Build(binding, detections)
	require.Len(t, changes, 1)
	require.Equal(t, model.KindAdd, changes[0].Kind)
	require.Equal(t, model.DirectionPlatformToLibrary, changes[0].Direction)
}

func TestConflictCarriesMetadataAndDefaultsUnselected(t *testing.T) {
	binding := personalBinding()
	detections := []detect.Detection{
		{
			Category:          detect.CategoryConflict,
			TrackID:           trackID(5),
			ExternalID:        extID("ext-5"),
			NeedsConfirmation: true,
			LibraryMetadata:   map[string]string{"title": "A"},
			PlatformMetadata:  map[string]string{"title": "B"},
		},
	}
	changes := Build(binding, detections)
	require.Len(t, changes, 1)
	require.Equal(t, model.KindConflict, changes[0].Kind)
	require.False(t, changes[0].UserSelected)
	require.Equal(t, "A", changes[0].LibraryMetadata["title"])
	require.Equal(t, "B", changes[0].PlatformMetadata["title"])
}

func TestUnchangedDetectionProducesNoChange(t *testing.T) {
	binding := personalBinding()
	detections := []detect.Detection{{Category: detect.CategoryUnchanged, TrackID: trackID(1)}}
	require.Empty(t, Build(binding, detections))
}

func TestImportOnlyDiscardsLibraryToPlatformChanges(t *testing.T) {
	binding := personalBinding()
	binding.SyncMode = model.SyncModeImportOnly
	detections := []detect.Detection{
		{Category: detect.CategoryLibraryAdded, TrackID: trackID(1)},
		{Category: detect.CategoryPlatformAdded, ExternalID: extID("ext-2")},
	}
	changes := Build(binding, detections)
	require.Len(t, changes, 1)
	require.Equal(t, model.DirectionPlatformToLibrary, changes[0].Direction)
}

func TestAddOnlyDiscardsAllRemoves(t *testing.T) {
	binding := personalBinding()
	binding.SyncMode = model.SyncModeAddOnly
	detections := []detect.Detection{
		{Category: detect.CategoryLibraryAdded, TrackID: trackID(1)},
		{Category: detect.CategoryLibraryRemoved, TrackID: trackID(2)},
		{Category: detect.CategoryPlatformRemoved, ExternalID: extID("ext-3")},
	}
	changes := Build(binding, detections)
	require.Len(t, changes, 1)
	require.Equal(t, model.KindAdd, changes[0].Kind)
}

func TestMirrorFromPlatformKeepsOnlyPlatformDrivenChanges(t *testing.T) {
	binding := personalBinding()
	binding.SyncMode = model.SyncModeMirrorFromPlatform
	detections := []detect.Detection{
		{Category: detect.CategoryPlatformAdded, ExternalID: extID("ext-1")},
		{Category: detect.CategoryLibraryRemoved, TrackID: trackID(2)}, // mirrors a platform removal, kept
		{Category: detect.CategoryLibraryAdded, TrackID: trackID(3)},  // pure local add, discarded
	}
	changes := Build(binding, detections)
	require.Len(t, changes, 2)
	for _, c := range changes {
		require.False(t, c.Direction == model.DirectionLibraryToPlatform && c.Kind == model.KindAdd)
	}
}

func TestNonPersonalBindingForcesImportOnlyAndDropsLibraryRemoves(t *testing.T) {
	binding := personalBinding()
	binding.IsPersonal = false
	binding.SyncMode = model.SyncModeFullBidirectional
	detections := []detect.Detection{
		{Category: detect.CategoryLibraryRemoved, TrackID: trackID(1)},
		{Category: detect.CategoryLibraryAdded, TrackID: trackID(2)},
		{Category: detect.CategoryPlatformAdded, ExternalID: extID("ext-3")},
	}
	changes := Build(binding, detections)
	require.Len(t, changes, 1)
	require.Equal(t, model.DirectionPlatformToLibrary, changes[0].Direction)
}

func TestChangeIDIsStableAcrossRebuilds(t *testing.T) {
	binding := personalBinding()
	detections := []detect.Detection{
		{Category: detect.CategoryPlatformAdded, ExternalID: extID("ext-5")},
	}
	first := Build(binding, detections)
	second := Build(binding, detections)
	require.Equal(t, first[0].ChangeID, second[0].ChangeID)
}

func TestChangeIDDiffersForDifferentIdentifiers(t *testing.T) {
	binding := personalBinding()
	a := Build(binding, []detect.Detection{{Category: detect.CategoryPlatformAdded, ExternalID: extID("ext-5")}})
	b := Build(binding, []detect.Detection{{Category: detect.CategoryPlatformAdded, ExternalID: extID("ext-6")}})
	require.NotEqual(t, a[0].ChangeID, b[0].ChangeID)
}
