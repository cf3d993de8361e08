package safety

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rcong315/selecta-sync/internal/model"
	"github.com/rcong315/selecta-sync/internal/syncerr"
)

func personalBinding() model.PlaylistPlatformBinding {
	return model.PlaylistPlatformBinding{ID: 1, IsPersonal: true}
}

func ordinaryPlaylist() model.Playlist {
	return model.Playlist{ID: 9, Name: "Road Trip"}
}

func TestEmergencyStopRejectsEverything(t *testing.T) {
	g := New(false, nil)
	g.Stop()
	err := g.Check(personalBinding(), ordinaryPlaylist(), model.SyncChange{Kind: model.KindAdd})
	require.ErrorIs(t, err, syncerr.ErrStopped)
}

func TestResumeClearsEmergencyStop(t *testing.T) {
	g := New(false, nil)
	g.Stop()
	g.Resume()
	err := g.Check(personalBinding(), ordinaryPlaylist(), model.SyncChange{Kind: model.KindAdd})
	require.NoError(t, err)
}

func TestRemoveRejectedOnNonPersonalBinding(t *testing.T) {
	g := New(false, nil)
	binding := personalBinding()
	binding.IsPersonal = false
	err := g.Check(binding, ordinaryPlaylist(), model.SyncChange{Kind: model.KindRemove})
	require.ErrorIs(t, err, syncerr.ErrNotPermitted)
}

func TestRemoveRejectedOnSystemPlaylist(t *testing.T) {
	g := New(false, nil)
	sys := model.Playlist{ID: 1, Name: model.SystemPlaylistName, IsSystem: true}
	err := g.Check(personalBinding(), sys, model.SyncChange{Kind: model.KindRemove})
	require.ErrorIs(t, err, syncerr.ErrNotPermitted)
}

func TestAddToSystemPlaylistIsAllowed(t *testing.T) {
	g := New(false, nil)
	sys := model.Playlist{ID: 1, Name: model.SystemPlaylistName, IsSystem: true}
	err := g.Check(personalBinding(), sys, model.SyncChange{Kind: model.KindAdd})
	require.NoError(t, err)
}

func TestTestModeRejectsRemoteChangeOutsideAllowedPrefix(t *testing.T) {
	g := New(true, []string{"test-"})
	change := model.SyncChange{Kind: model.KindAdd, Direction: model.DirectionLibraryToPlatform}
	err := g.Check(personalBinding(), ordinaryPlaylist(), change)
	require.ErrorIs(t, err, syncerr.ErrNotPermitted)
}

func TestTestModeAllowsRemoteChangeWithAllowedPrefix(t *testing.T) {
	g := New(true, []string{"test-"})
	change := model.SyncChange{Kind: model.KindAdd, Direction: model.DirectionLibraryToPlatform}
	playlist := model.Playlist{ID: 9, Name: "test-road-trip"}
	err := g.Check(personalBinding(), playlist, change)
	require.NoError(t, err)
}

func TestTestModeIgnoresLocalOnlyChanges(t *testing.T) {
	g := New(true, []string{"test-"})
	change := model.SyncChange{Kind: model.KindAdd, Direction: model.DirectionPlatformToLibrary}
	err := g.Check(personalBinding(), ordinaryPlaylist(), change)
	require.NoError(t, err)
}
