package detect

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rcong315/selecta-sync/internal/adapter"
	"github.com/rcong315/selecta-sync/internal/adapter/memadapter"
	"github.com/rcong315/selecta-sync/internal/matching"
	"github.com/rcong315/selecta-sync/internal/model"
	"github.com/rcong315/selecta-sync/internal/repository/sqlite"
)

func setup(t *testing.T) (*sqlite.Store, model.PlaylistPlatformBinding) {
	t.Helper()
	repo, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	ctx := context.Background()
	playlistID, err := repo.CreatePlaylist(ctx, model.Playlist{Name: "Road Trip", Kind: model.PlaylistKindPlaylist})
	require.NoError(t, err)
	bindingID, err := repo.CreateBinding(ctx, model.PlaylistPlatformBinding{
		PlaylistID: playlistID, Platform: model.PlatformStream, ExternalPlaylistID: "ext-playlist",
		SyncMode: model.SyncModeFullBidirectional, IsPersonal: true,
	})
	require.NoError(t, err)
	binding, err := repo.GetBinding(ctx, bindingID)
	require.NoError(t, err)
	return repo, binding
}

func TestFirstSyncTreatsEverythingAsAdded(t *testing.T) {
	repo, binding := setup(t)
	ctx := context.Background()

	trackID, err := repo.CreateTrack(ctx, model.Track{Title: "Golden Hour", PrimaryArtist: "JVKE"})
	require.NoError(t, err)
	require.NoError(t, repo.AddMember(ctx, model.PlaylistMember{PlaylistID: binding.PlaylistID, TrackID: trackID, Position: 0}))

	fake := memadapter.New("stream", adapter.CapabilityFlags{})
	fake.SeedPlaylist(binding.ExternalPlaylistID, "Road Trip", true, []adapter.ExtTrack{
		{ExternalID: "ext-1", Title: "Anti-Hero", Artist: "Taylor Swift"},
	})

	d := New(repo, fake, matching.DefaultThresholds())
	detections, err := d.Detect(ctx, binding, model.NewSnapshot(binding.ID, time.Time{}, nil, nil, nil))
	require.NoError(t, err)

	var sawLibraryAdded, sawPlatformAdded bool
	for _, det := range detections {
		switch det.Category {
		case CategoryLibraryAdded:
			sawLibraryAdded = true
		case CategoryPlatformAdded:
			sawPlatformAdded = true
		case CategoryUnchanged, CategoryPlatformRemoved, CategoryLibraryRemoved, CategoryConflict:
			t.Fatalf("unexpected category on first sync: %v", det.Category)
		}
	}
	require.True(t, sawLibraryAdded)
	require.True(t, sawPlatformAdded)
}

func TestLinkedTrackStillPresentIsUnchanged(t *testing.T) {
	repo, binding := setup(t)
	ctx := context.Background()

	trackID, err := repo.CreateTrack(ctx, model.Track{Title: "Golden Hour", PrimaryArtist: "JVKE"})
	require.NoError(t, err)
	require.NoError(t, repo.AddMember(ctx, model.PlaylistMember{PlaylistID: binding.PlaylistID, TrackID: trackID, Position: 0}))
	require.NoError(t, repo.UpsertLink(ctx, model.PlatformLink{
		TrackID: trackID, Platform: model.PlatformStream, ExternalID: "ext-1", LastSyncedAt: time.Now(),
	}))

	fake := memadapter.New("stream", adapter.CapabilityFlags{})
	fake.SeedPlaylist(binding.ExternalPlaylistID, "Road Trip", true, []adapter.ExtTrack{
		{ExternalID: "ext-1", Title: "Golden Hour", Artist: "JVKE"},
	})

	snap := model.NewSnapshot(binding.ID, time.Now(), []int64{trackID}, []string{"ext-1"}, map[string]int64{"ext-1": trackID})

	d := New(repo, fake, matching.DefaultThresholds())
	detections, err := d.Detect(ctx, binding, snap)
	require.NoError(t, err)

	require.Len(t, detections, 1)
	require.Equal(t, CategoryUnchanged, detections[0].Category)
}

func TestLinkedTrackMetadataDriftIsConflict(t *testing.T) {
	repo, binding := setup(t)
	ctx := context.Background()

	trackID, err := repo.CreateTrack(ctx, model.Track{Title: "Golden Hour", PrimaryArtist: "JVKE"})
	require.NoError(t, err)
	require.NoError(t, repo.AddMember(ctx, model.PlaylistMember{PlaylistID: binding.PlaylistID, TrackID: trackID, Position: 0}))
	require.NoError(t, repo.UpsertLink(ctx, model.PlatformLink{
		TrackID: trackID, Platform: model.PlatformStream, ExternalID: "ext-1", LastSyncedAt: time.Now(),
	}))

	fake := memadapter.New("stream", adapter.CapabilityFlags{})
	fake.SeedPlaylist(binding.ExternalPlaylistID, "Road Trip", true, []adapter.ExtTrack{
		{ExternalID: "ext-1", Title: "Totally Different Song Name", Artist: "Someone Else Entirely"},
	})

	snap := model.NewSnapshot(binding.ID, time.Now(), []int64{trackID}, []string{"ext-1"}, map[string]int64{"ext-1": trackID})

	d := New(repo, fake, matching.DefaultThresholds())
	detections, err := d.Detect(ctx, binding, snap)
	require.NoError(t, err)

	require.Len(t, detections, 1)
	require.Equal(t, CategoryConflict, detections[0].Category)
}

func TestLibraryRemovedUsesSnapshotLinkPairsForExternalID(t *testing.T) {
	repo, binding := setup(t)
	ctx := context.Background()

	// The track and its link have both been deleted locally since the
	// snapshot was taken; only the snapshot remembers the external id.
	snap := model.NewSnapshot(binding.ID, time.Now(), []int64{99}, nil, map[string]int64{"ext-99": 99})

	fake := memadapter.New("stream", adapter.CapabilityFlags{})
	fake.SeedPlaylist(binding.ExternalPlaylistID, "Road Trip", true, nil)

	d := New(repo, fake, matching.DefaultThresholds())
	detections, err := d.Detect(ctx, binding, snap)
	require.NoError(t, err)

	require.Len(t, detections, 1)
	require.Equal(t, CategoryLibraryRemoved, detections[0].Category)
	require.NotNil(t, detections[0].ExternalID)
	require.Equal(t, "ext-99", *detections[0].ExternalID)
}

func TestPlatformRemovedDetected(t *testing.T) {
	repo, binding := setup(t)
	ctx := context.Background()

	trackID, err := repo.CreateTrack(ctx, model.Track{Title: "Golden Hour", PrimaryArtist: "JVKE"})
	require.NoError(t, err)
	require.NoError(t, repo.UpsertLink(ctx, model.PlatformLink{
		TrackID: trackID, Platform: model.PlatformStream, ExternalID: "ext-1", LastSyncedAt: time.Now(),
	}))

	fake := memadapter.New("stream", adapter.CapabilityFlags{})
	fake.SeedPlaylist(binding.ExternalPlaylistID, "Road Trip", true, nil) // now empty on the platform

	snap := model.NewSnapshot(binding.ID, time.Now(), nil, []string{"ext-1"}, map[string]int64{"ext-1": trackID})

	d := New(repo, fake, matching.DefaultThresholds())
	detections, err := d.Detect(ctx, binding, snap)
	require.NoError(t, err)

	require.Len(t, detections, 1)
	require.Equal(t, CategoryPlatformRemoved, detections[0].Category)
}
