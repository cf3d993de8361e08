package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rcong315/selecta-sync/internal/model"
	"github.com/rcong315/selecta-sync/internal/repository"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCreateAndGetTrack(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.CreateTrack(ctx, model.Track{Title: "Alfie", PrimaryArtist: "Lily Allen"})
	require.NoError(t, err)

	got, err := s.GetTrack(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "Alfie", got.Title)
	require.Equal(t, "Lily Allen", got.PrimaryArtist)
	require.False(t, got.SoftDeleted())
}

func TestGetTrackNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetTrack(context.Background(), 999)
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestSoftDeleteTrackSetsDeletedAt(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.CreateTrack(ctx, model.Track{Title: "X", PrimaryArtist: "Y"})
	require.NoError(t, err)
	require.NoError(t, s.SoftDeleteTrack(ctx, id))

	got, err := s.GetTrack(ctx, id)
	require.NoError(t, err)
	require.True(t, got.SoftDeleted())
}

func TestUpsertLinkThenLinkByExternalID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	trackID, err := s.CreateTrack(ctx, model.Track{Title: "X", PrimaryArtist: "Y"})
	require.NoError(t, err)

	link := model.PlatformLink{
		TrackID:      trackID,
		Platform:     model.PlatformStream,
		ExternalID:   "spotify:track:abc",
		LastSyncedAt: time.Now().UTC(),
	}
	require.NoError(t, s.UpsertLink(ctx, link))

	got, err := s.LinkByExternalID(ctx, model.PlatformStream, "spotify:track:abc")
	require.NoError(t, err)
	require.Equal(t, trackID, got.TrackID)

	// Upserting again with a new external id updates the same row rather
	// than creating a duplicate for (track_id, platform).
	link.ExternalID = "spotify:track:def"
	require.NoError(t, s.UpsertLink(ctx, link))

	links, err := s.LinksForTrack(ctx, trackID)
	require.NoError(t, err)
	require.Len(t, links, 1)
	require.Equal(t, "spotify:track:def", links[0].ExternalID)
}

func TestDuplicateExternalIDAcrossTracksConflicts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	trackA, err := s.CreateTrack(ctx, model.Track{Title: "A", PrimaryArtist: "Artist"})
	require.NoError(t, err)
	trackB, err := s.CreateTrack(ctx, model.Track{Title: "B", PrimaryArtist: "Artist"})
	require.NoError(t, err)

	require.NoError(t, s.UpsertLink(ctx, model.PlatformLink{
		TrackID: trackA, Platform: model.PlatformStream, ExternalID: "shared-id", LastSyncedAt: time.Now(),
	}))

	err = s.UpsertLink(ctx, model.PlatformLink{
		TrackID: trackB, Platform: model.PlatformStream, ExternalID: "shared-id", LastSyncedAt: time.Now(),
	})
	require.ErrorIs(t, err, repository.ErrConflict)
}

func TestWithTxRollsBackOnError(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	sentinel := errors.New("boom")

	err := s.WithTx(ctx, func(tx repository.Store) error {
		if _, err := tx.CreateTrack(ctx, model.Track{Title: "Rolled Back", PrimaryArtist: "Nobody"}); err != nil {
			return err
		}
		return sentinel
	})
	require.ErrorIs(t, err, sentinel)

	tracks, err := s.SearchTracks(ctx, repository.SearchFilter{})
	require.NoError(t, err)
	require.Empty(t, tracks)
}

func TestWithTxCommitsOnSuccess(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.WithTx(ctx, func(tx repository.Store) error {
		_, err := tx.CreateTrack(ctx, model.Track{Title: "Committed", PrimaryArtist: "Someone"})
		return err
	})
	require.NoError(t, err)

	tracks, err := s.SearchTracks(ctx, repository.SearchFilter{})
	require.NoError(t, err)
	require.Len(t, tracks, 1)
}

func TestSnapshotReplaceIsAtomic(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	playlistID, err := s.CreatePlaylist(ctx, model.Playlist{Name: "Road Trip", Kind: model.PlaylistKindPlaylist})
	require.NoError(t, err)
	bindingID, err := s.CreateBinding(ctx, model.PlaylistPlatformBinding{
		PlaylistID: playlistID, Platform: model.PlatformStream, ExternalPlaylistID: "ext-1",
		SyncMode: model.SyncModeFullBidirectional, IsPersonal: true,
	})
	require.NoError(t, err)

	first := model.NewSnapshot(bindingID, time.Now().UTC(), []int64{1, 2}, []string{"a"}, nil)
	require.NoError(t, s.ReplaceSnapshot(ctx, first))

	second := model.NewSnapshot(bindingID, time.Now().UTC(), []int64{3}, []string{"b", "c"}, map[string]int64{"b": 3})
	require.NoError(t, s.ReplaceSnapshot(ctx, second))

	got, err := s.GetSnapshot(ctx, bindingID)
	require.NoError(t, err)
	require.Equal(t, []int64{3}, got.LibraryMembers)
	require.Equal(t, []string{"b", "c"}, got.PlatformMembers)
}

func TestRemoveMemberRenumbersRemainingPositions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	playlistID, err := s.CreatePlaylist(ctx, model.Playlist{Name: "Set", Kind: model.PlaylistKindPlaylist})
	require.NoError(t, err)

	var trackIDs []int64
	for _, title := range []string{"First", "Second", "Third"} {
		id, err := s.CreateTrack(ctx, model.Track{Title: title, PrimaryArtist: "Artist"})
		require.NoError(t, err)
		trackIDs = append(trackIDs, id)
	}
	for i, id := range trackIDs {
		require.NoError(t, s.AddMember(ctx, model.PlaylistMember{PlaylistID: playlistID, TrackID: id, Position: i}))
	}

	require.NoError(t, s.RemoveMember(ctx, playlistID, trackIDs[1]))

	members, err := s.Members(ctx, playlistID)
	require.NoError(t, err)
	require.Len(t, members, 2)
	require.Equal(t, trackIDs[0], members[0].TrackID)
	require.Equal(t, 0, members[0].Position)
	require.Equal(t, trackIDs[2], members[1].TrackID)
	require.Equal(t, 1, members[1].Position, "the member after the removed one must shift down to close the gap")
}

func TestCreateBindingRejectsSystemPlaylist(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	playlistID, err := s.CreatePlaylist(ctx, model.Playlist{Name: "Library Collection", Kind: model.PlaylistKindPlaylist, IsSystem: true})
	require.NoError(t, err)

	_, err = s.CreateBinding(ctx, model.PlaylistPlatformBinding{
		PlaylistID: playlistID, Platform: model.PlatformStream, ExternalPlaylistID: "ext-1",
		SyncMode: model.SyncModeFullBidirectional, IsPersonal: true,
	})
	require.ErrorIs(t, err, repository.ErrConflict)
}

func TestSystemPlaylistCannotBeRenamedOrDeleted(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	playlistID, err := s.CreatePlaylist(ctx, model.Playlist{Name: "Library Collection", Kind: model.PlaylistKindPlaylist, IsSystem: true})
	require.NoError(t, err)
	playlist, err := s.GetPlaylist(ctx, playlistID)
	require.NoError(t, err)

	playlist.Name = "Renamed"
	require.ErrorIs(t, s.UpdatePlaylist(ctx, playlist), repository.ErrConflict)
	require.ErrorIs(t, s.DeletePlaylist(ctx, playlistID), repository.ErrConflict)
}

func TestPlaylistParentChainRejectsCycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rootID, err := s.CreatePlaylist(ctx, model.Playlist{Name: "Root", Kind: model.PlaylistKindPlaylist})
	require.NoError(t, err)
	childID, err := s.CreatePlaylist(ctx, model.Playlist{Name: "Child", Kind: model.PlaylistKindPlaylist, ParentID: &rootID})
	require.NoError(t, err)

	root, err := s.GetPlaylist(ctx, rootID)
	require.NoError(t, err)
	root.ParentID = &childID
	err = s.UpdatePlaylist(ctx, root)
	require.ErrorIs(t, err, repository.ErrConflict, "making root a child of its own child would make the chain cyclic")
}

func TestSoftDeleteTrackRejectsWhileReferenced(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	playlistID, err := s.CreatePlaylist(ctx, model.Playlist{Name: "Set", Kind: model.PlaylistKindPlaylist})
	require.NoError(t, err)
	trackID, err := s.CreateTrack(ctx, model.Track{Title: "Referenced", PrimaryArtist: "Artist"})
	require.NoError(t, err)
	require.NoError(t, s.AddMember(ctx, model.PlaylistMember{PlaylistID: playlistID, TrackID: trackID, Position: 0}))

	err = s.SoftDeleteTrack(ctx, trackID)
	require.ErrorIs(t, err, repository.ErrConflict)

	require.NoError(t, s.RemoveMember(ctx, playlistID, trackID))
	require.NoError(t, s.SoftDeleteTrack(ctx, trackID), "once unreferenced the track can be soft-deleted")
}

func TestSearchTracksRanksFuzzyMatches(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.CreateTrack(ctx, model.Track{Title: "Blue in Green", PrimaryArtist: "Miles Davis"})
	require.NoError(t, err)
	_, err = s.CreateTrack(ctx, model.Track{Title: "So What", PrimaryArtist: "Miles Davis"})
	require.NoError(t, err)
	_, err = s.CreateTrack(ctx, model.Track{Title: "Unrelated Track", PrimaryArtist: "Someone Else"})
	require.NoError(t, err)

	results, err := s.SearchTracks(ctx, repository.SearchFilter{Query: "miles blue"})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	require.Equal(t, "Blue in Green", results[0].Title)
}
