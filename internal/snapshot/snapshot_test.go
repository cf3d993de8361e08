package snapshot

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rcong315/selecta-sync/internal/model"
	"github.com/rcong315/selecta-sync/internal/repository/sqlite"
)

func TestGetWithNoPriorSnapshotIsEmptyNotError(t *testing.T) {
	repo, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	store := New(repo)
	snap, err := store.Get(context.Background(), 42)
	require.NoError(t, err)
	require.Empty(t, snap.LibraryMembers)
	require.Empty(t, snap.PlatformMembers)
}

func TestTakeThenGetRoundTrips(t *testing.T) {
	repo, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	ctx := context.Background()
	playlistID, err := repo.CreatePlaylist(ctx, model.Playlist{Name: "Road Trip", Kind: model.PlaylistKindPlaylist})
	require.NoError(t, err)
	bindingID, err := repo.CreateBinding(ctx, model.PlaylistPlatformBinding{
		PlaylistID: playlistID, Platform: model.PlatformStream, ExternalPlaylistID: "ext-1",
		SyncMode: model.SyncModeFullBidirectional, IsPersonal: true,
	})
	require.NoError(t, err)

	store := New(repo)
	require.NoError(t, store.Take(ctx, bindingID, time.Now().UTC(), []int64{1, 2, 3}, []string{"a", "b"}, map[string]int64{"a": 1}))

	got, err := store.Get(ctx, bindingID)
	require.NoError(t, err)
	require.Equal(t, []int64{1, 2, 3}, got.LibraryMembers)
	require.Equal(t, []string{"a", "b"}, got.PlatformMembers)
	require.Equal(t, int64(1), got.LinkPairs["a"])
}
