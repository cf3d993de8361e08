// Package snapshot implements the Snapshot Store (L4): a thin
// domain-level layer atop internal/repository that builds a Snapshot
// from current membership and replaces the stored one atomically. The
// only historical state the sync core retains is exactly one snapshot
// per binding; every prior version is discarded on replace.
package snapshot

import (
	"context"
	"time"

	"github.com/rcong315/selecta-sync/internal/model"
	"github.com/rcong315/selecta-sync/internal/repository"
)

// Store wraps a repository.SnapshotStore with the construction logic
// Change Detector and Executor need, so neither has to know the
// storage encoding.
type Store struct {
	repo repository.SnapshotStore
}

func New(repo repository.SnapshotStore) *Store {
	return &Store{repo: repo}
}

// Get returns the last recorded snapshot for a binding, or a
// zero-value empty Snapshot (not an error) when none exists yet — the
// "no snapshot exists" edge case of spec.md §4.5 treats S_L and S_P as
// empty rather than failing.
func (s *Store) Get(ctx context.Context, bindingID int64) (model.Snapshot, error) {
	snap, err := s.repo.GetSnapshot(ctx, bindingID)
	if err == repository.ErrNotFound {
		return model.NewSnapshot(bindingID, time.Time{}, nil, nil, nil), nil
	}
	return snap, err
}

// Take builds a new Snapshot from current membership and atomically
// replaces whatever was stored for this binding.
func (s *Store) Take(ctx context.Context, bindingID int64, takenAt time.Time, library []int64, platform []string, linkPairs map[string]int64) error {
	snap := model.NewSnapshot(bindingID, takenAt, library, platform, linkPairs)
	return s.repo.ReplaceSnapshot(ctx, snap)
}
