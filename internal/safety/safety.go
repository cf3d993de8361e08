// Package safety implements the Safety Gate (L9): the last check
// between a Planner's output and the Executor, independent of the
// adapter being called. It never mutates state itself; it only
// approves or rejects one SyncChange at a time.
package safety

import (
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/rcong315/selecta-sync/internal/model"
	"github.com/rcong315/selecta-sync/internal/syncerr"
)

// Gate holds the process-wide emergency stop flag and the test-mode
// prefix policy. Zero value is a gate with test mode disabled and no
// emergency stop in effect.
type Gate struct {
	stopped atomic.Bool

	// testMode and allowedPrefixes implement the test-prefix policy of
	// spec.md §4.9: when testMode is true, only playlists whose names
	// begin with one of allowedPrefixes may be mutated on any remote.
	testMode        bool
	allowedPrefixes []string
}

// New builds a Gate. When testMode is true, Check rejects any change
// whose playlist name does not begin with one of allowedPrefixes.
func New(testMode bool, allowedPrefixes []string) *Gate {
	return &Gate{testMode: testMode, allowedPrefixes: allowedPrefixes}
}

// Stop sets the emergency stop flag. Every subsequent Check call fails
// until Resume is called.
func (g *Gate) Stop() {
	g.stopped.Store(true)
}

// Resume clears the emergency stop flag.
func (g *Gate) Resume() {
	g.stopped.Store(false)
}

// Stopped reports whether the emergency stop flag is currently set.
func (g *Gate) Stopped() bool {
	return g.stopped.Load()
}

// Check approves or rejects one SyncChange against the given binding
// and playlist. It returns nil when the change may proceed, or a
// syncerr-classifiable error explaining the rejection.
func (g *Gate) Check(binding model.PlaylistPlatformBinding, playlist model.Playlist, change model.SyncChange) error {
	if g.Stopped() {
		return syncerr.ErrStopped
	}

	if change.Kind == model.KindRemove {
		if !binding.IsPersonal {
			return fmt.Errorf("%w: binding %d is not personally owned", syncerr.ErrNotPermitted, binding.ID)
		}
		if playlist.IsSystem {
			return fmt.Errorf("%w: cannot remove from system playlist %q", syncerr.ErrNotPermitted, playlist.Name)
		}
	}

	if g.testMode && touchesRemote(change) && !g.hasAllowedPrefix(playlist.Name) {
		return fmt.Errorf("%w: playlist %q does not match test-mode prefix policy", syncerr.ErrNotPermitted, playlist.Name)
	}

	return nil
}

// touchesRemote reports whether change issues any call to the
// adapter. Link changes only record an id mapping locally;
// platform_to_library adds/removes only mutate local playlist
// membership. Everything pushed towards the platform, plus conflict
// resolutions (which may write to either side), counts as remote.
func touchesRemote(change model.SyncChange) bool {
	return change.Direction == model.DirectionLibraryToPlatform || change.Kind == model.KindConflict
}

func (g *Gate) hasAllowedPrefix(name string) bool {
	for _, p := range g.allowedPrefixes {
		if strings.HasPrefix(name, p) {
			return true
		}
	}
	return false
}
