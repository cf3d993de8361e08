// Package exec implements the Sync Executor (L7): applies a
// (possibly user-filtered) plan against one binding, idempotently and
// tolerant of per-item remote failure, per spec.md §4.7.
package exec

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/rcong315/selecta-sync/internal/adapter"
	"github.com/rcong315/selecta-sync/internal/breaker"
	"github.com/rcong315/selecta-sync/internal/metrics"
	"github.com/rcong315/selecta-sync/internal/model"
	"github.com/rcong315/selecta-sync/internal/ratelimit"
	"github.com/rcong315/selecta-sync/internal/repository"
	"github.com/rcong315/selecta-sync/internal/safety"
	"github.com/rcong315/selecta-sync/internal/snapshot"
	"github.com/rcong315/selecta-sync/internal/syncerr"
)

// Executor applies SyncChanges against the repository and one
// platform adapter, wrapping all local mutations in a single
// transaction and recording a fresh snapshot only on full success.
type Executor struct {
	repo      repository.Store
	snapshots *snapshot.Store
	gate      *safety.Gate
	limiter   *ratelimit.Registry
	breakers  *breaker.Registry
	metrics   *metrics.Metrics
}

func New(repo repository.Store, snapshots *snapshot.Store, gate *safety.Gate, limiter *ratelimit.Registry, breakers *breaker.Registry) *Executor {
	return &Executor{repo: repo, snapshots: snapshots, gate: gate, limiter: limiter, breakers: breakers}
}

// WithMetrics attaches a collector set; calls to the Executor before
// this is set simply skip instrumentation.
func (e *Executor) WithMetrics(m *metrics.Metrics) *Executor {
	e.metrics = m
	return e
}

// localOp is one repository mutation deferred until every remote step
// has succeeded, so it can run inside the one transaction spec.md
// §4.7 requires for local state.
type localOp func(tx repository.Store) error

type applyContext struct {
	ctx      context.Context
	e        *Executor
	binding  model.PlaylistPlatformBinding
	playlist model.Playlist
	adp      adapter.Adapter
	progress chan<- model.ProgressEvent
	summary  model.JobSummary
	localOps []localOp
}

func (ac *applyContext) emit(c model.SyncChange, state model.ProgressState, message string) {
	ev := model.ProgressEvent{ChangeID: c.ChangeID, State: state, Message: message}
	if ac.progress != nil {
		select {
		case ac.progress <- ev:
		case <-ac.ctx.Done():
		}
	}
	ac.summary.PerChange[c.ChangeID] = ev
	switch state {
	case model.ProgressSucceeded:
		ac.summary.AppliedCount++
	case model.ProgressFailed:
		ac.summary.FailedCount++
	case model.ProgressSkipped:
		ac.summary.SkippedCount++
	default:
		return
	}
	if ac.e.metrics != nil {
		ac.e.metrics.ChangesAppliedTotal.WithLabelValues(string(c.Kind), string(c.Direction), string(state)).Inc()
	}
}

func (ac *applyContext) queueLocal(op localOp) {
	ac.localOps = append(ac.localOps, op)
}

// precheck applies UserSelected filtering and the Safety Gate. It
// returns proceed=false with no further action needed when the change
// was skipped or locally rejected; it returns a non-nil error only
// when the whole job must abort (emergency stop).
func (ac *applyContext) precheck(c model.SyncChange) (proceed bool, err error) {
	if !c.UserSelected {
		ac.emit(c, model.ProgressSkipped, "not selected by user")
		return false, nil
	}
	if gateErr := ac.e.gate.Check(ac.binding, ac.playlist, c); gateErr != nil {
		if syncerr.Classify(gateErr) == syncerr.KindStopped {
			return false, gateErr
		}
		ac.emit(c, model.ProgressFailed, gateErr.Error())
		return false, nil
	}
	return true, nil
}

// callAdapter runs op through this binding's rate limiter, circuit
// breaker, and retry policy.
func (ac *applyContext) callAdapter(op func() (any, error)) (any, error) {
	platform := string(ac.binding.Platform)
	budget := ac.adp.Capabilities().RateBudgetPerMinute
	if err := ac.e.limiter.Wait(ac.ctx, platform, budget); err != nil {
		return nil, err
	}

	start := time.Now()
	var result any
	err := ac.e.limiter.Retry(ac.ctx, func() error {
		r, doErr := ac.e.breakers.Do(platform, op)
		if doErr != nil {
			return doErr
		}
		result = r
		return nil
	})

	if ac.e.metrics != nil {
		outcome := "success"
		if err != nil {
			outcome = "error"
		}
		ac.e.metrics.AdapterCallsTotal.WithLabelValues(platform, outcome).Inc()
		ac.e.metrics.AdapterCallDuration.WithLabelValues(platform).Observe(time.Since(start).Seconds())
	}
	return result, err
}

// Apply applies changes (the user's already-filtered selection, see
// internal/plan) against binding/playlist through adp. It returns the
// job summary collected so far even when it returns a non-nil error —
// a job-fatal error means every remaining step was abandoned, the
// local transaction (if any mutations were queued) was never started,
// and no snapshot was written.
func (e *Executor) Apply(ctx context.Context, binding model.PlaylistPlatformBinding, playlist model.Playlist, adp adapter.Adapter, changes []model.SyncChange, progress chan<- model.ProgressEvent) (model.JobSummary, error) {
	ac := &applyContext{ctx: ctx, e: e, binding: binding, playlist: playlist, adp: adp, progress: progress}
	ac.summary.PerChange = make(map[string]model.ProgressEvent, len(changes))

	for _, c := range changes {
		ac.emit(c, model.ProgressPending, "")
	}

	steps := []struct {
		items []model.SyncChange
		apply func([]model.SyncChange) error
	}{
		{filterChanges(changes, isLink), ac.applyLinkStep},
		{filterChanges(changes, isPlatformToLibraryAdd), ac.applyPlatformAddStep},
		{filterChanges(changes, isLibraryToPlatformAdd), ac.applyLibraryAddStep},
		{filterChanges(changes, isLibraryToPlatformRemove), ac.applyLibraryRemoveStep},
		{filterChanges(changes, isPlatformToLibraryRemove), ac.applyPlatformRemoveStep},
		{filterChanges(changes, isConflict), ac.applyConflictStep},
	}

	for _, step := range steps {
		if len(step.items) == 0 {
			continue
		}
		if err := step.apply(step.items); err != nil {
			logger.Error("sync job aborted", zap.Int64("binding_id", binding.ID), zap.Error(err))
			return ac.summary, err
		}
	}

	if len(ac.localOps) > 0 {
		err := e.repo.WithTx(ctx, func(tx repository.Store) error {
			for _, op := range ac.localOps {
				if err := op(tx); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return ac.summary, fmt.Errorf("committing local mutations: %w", err)
		}
	}

	if err := e.recordSnapshot(ctx, binding, adp); err != nil {
		return ac.summary, fmt.Errorf("recording snapshot: %w", err)
	}

	return ac.summary, nil
}

func (e *Executor) recordSnapshot(ctx context.Context, binding model.PlaylistPlatformBinding, adp adapter.Adapter) error {
	members, err := e.repo.Members(ctx, binding.PlaylistID)
	if err != nil {
		return err
	}
	library := make([]int64, len(members))
	for i, m := range members {
		library[i] = m.TrackID
	}

	platformTracks, err := adp.FetchPlaylistTracks(ctx, binding.ExternalPlaylistID)
	if err != nil {
		return err
	}
	platform := make([]string, len(platformTracks))
	linkPairs := make(map[string]int64, len(platformTracks))
	for i, t := range platformTracks {
		platform[i] = t.ExternalID
	}
	for _, trackID := range library {
		links, err := e.repo.LinksForTrack(ctx, trackID)
		if err != nil {
			return err
		}
		for _, l := range links {
			if l.Platform == binding.Platform {
				linkPairs[l.ExternalID] = trackID
			}
		}
	}

	return e.snapshots.Take(ctx, binding.ID, time.Now().UTC(), library, platform, linkPairs)
}

// --- step 1: link ---

func (ac *applyContext) applyLinkStep(items []model.SyncChange) error {
	for _, c := range items {
		proceed, err := ac.precheck(c)
		if err != nil {
			return err
		}
		if !proceed {
			continue
		}
		ac.emit(c, model.ProgressRunning, "")

		if c.TrackID == nil || c.ExternalID == nil {
			ac.emit(c, model.ProgressFailed, "link change missing track id or external id")
			continue
		}
		trackID, externalID, confidence := *c.TrackID, *c.ExternalID, c.MatchConfidence
		ac.queueLocal(func(tx repository.Store) error {
			return tx.UpsertLink(ac.ctx, model.PlatformLink{
				TrackID: trackID, Platform: ac.binding.Platform, ExternalID: externalID,
				LastSyncedAt: time.Now().UTC(), MatchConfidence: confidence,
			})
		})
		ac.emit(c, model.ProgressSucceeded, "")
	}
	return nil
}

// --- step 2: platform_to_library adds (local only: new Track + member + link) ---

func (ac *applyContext) applyPlatformAddStep(items []model.SyncChange) error {
	for _, c := range items {
		proceed, err := ac.precheck(c)
		if err != nil {
			return err
		}
		if !proceed {
			continue
		}
		ac.emit(c, model.ProgressRunning, "")

		if c.ExternalID == nil {
			ac.emit(c, model.ProgressFailed, "platform add missing external id")
			continue
		}
		title := c.PlatformMetadata["title"]
		artist := c.PlatformMetadata["artist"]
		if title == "" || artist == "" {
			ac.emit(c, model.ProgressFailed, "platform track metadata incomplete")
			continue
		}

		track := model.Track{Title: title, PrimaryArtist: artist}
		if album, ok := c.PlatformMetadata["album"]; ok && album != "" {
			track.AlbumRef = &album
		}
		if durStr, ok := c.PlatformMetadata["duration_ms"]; ok {
			if d, convErr := strconv.Atoi(durStr); convErr == nil {
				track.DurationMS = &d
			}
		}
		externalID, confidence := *c.ExternalID, c.MatchConfidence
		playlistID := ac.binding.PlaylistID

		ac.queueLocal(func(tx repository.Store) error {
			trackID, err := tx.CreateTrack(ac.ctx, track)
			if err != nil {
				return err
			}
			members, err := tx.Members(ac.ctx, playlistID)
			if err != nil {
				return err
			}
			if err := tx.AddMember(ac.ctx, model.PlaylistMember{
				PlaylistID: playlistID, TrackID: trackID, Position: len(members), AddedAt: time.Now().UTC(),
			}); err != nil {
				return err
			}
			return tx.UpsertLink(ac.ctx, model.PlatformLink{
				TrackID: trackID, Platform: ac.binding.Platform, ExternalID: externalID,
				LastSyncedAt: time.Now().UTC(), MatchConfidence: confidence,
			})
		})
		ac.emit(c, model.ProgressSucceeded, "")
	}
	return nil
}

// --- step 3: library_to_platform adds (remote, batched) ---

func (ac *applyContext) applyLibraryAddStep(items []model.SyncChange) error {
	eligible := make(map[string]model.SyncChange, len(items))
	var externalIDs []string
	for _, c := range items {
		proceed, err := ac.precheck(c)
		if err != nil {
			return err
		}
		if !proceed {
			continue
		}
		ac.emit(c, model.ProgressRunning, "")
		if c.ExternalID == nil {
			ac.emit(c, model.ProgressFailed, "no platform match found to add")
			continue
		}
		eligible[*c.ExternalID] = c
		externalIDs = append(externalIDs, *c.ExternalID)
	}
	if len(externalIDs) == 0 {
		return nil
	}

	result, err := ac.callAdapter(func() (any, error) {
		return ac.adp.AddTracks(ac.ctx, ac.binding.ExternalPlaylistID, externalIDs)
	})
	if err != nil {
		return err
	}
	results, _ := result.([]adapter.ItemResult)

	for _, r := range results {
		c, ok := eligible[r.ExternalTrackID]
		if !ok {
			continue
		}
		if syncerr.Classify(r.Err) == syncerr.KindNotFound {
			ac.emit(c, model.ProgressSkipped, "track not found on platform: "+r.Err.Error())
			continue
		}
		if r.Err != nil {
			ac.emit(c, model.ProgressFailed, r.Err.Error())
			continue
		}
		if c.TrackID != nil {
			trackID, externalID := *c.TrackID, r.ExternalTrackID
			ac.queueLocal(func(tx repository.Store) error {
				return tx.UpsertLink(ac.ctx, model.PlatformLink{
					TrackID: trackID, Platform: ac.binding.Platform, ExternalID: externalID,
					LastSyncedAt: time.Now().UTC(), MatchConfidence: c.MatchConfidence,
				})
			})
		}
		ac.emit(c, model.ProgressSucceeded, "")
	}
	return nil
}

// --- step 4: library_to_platform removes (remote, batched) ---

func (ac *applyContext) applyLibraryRemoveStep(items []model.SyncChange) error {
	eligible := make(map[string]model.SyncChange, len(items))
	var externalIDs []string
	for _, c := range items {
		proceed, err := ac.precheck(c)
		if err != nil {
			return err
		}
		if !proceed {
			continue
		}
		ac.emit(c, model.ProgressRunning, "")
		if c.ExternalID == nil {
			ac.emit(c, model.ProgressFailed, "no platform id to remove")
			continue
		}
		eligible[*c.ExternalID] = c
		externalIDs = append(externalIDs, *c.ExternalID)
	}
	if len(externalIDs) == 0 {
		return nil
	}

	result, err := ac.callAdapter(func() (any, error) {
		return ac.adp.RemoveTracks(ac.ctx, ac.binding.ExternalPlaylistID, externalIDs)
	})
	if err != nil {
		return err
	}
	results, _ := result.([]adapter.ItemResult)

	for _, r := range results {
		c, ok := eligible[r.ExternalTrackID]
		if !ok {
			continue
		}
		if syncerr.Classify(r.Err) == syncerr.KindNotFound {
			ac.emit(c, model.ProgressSkipped, "already absent on platform")
			continue
		}
		if r.Err != nil {
			ac.emit(c, model.ProgressFailed, r.Err.Error())
			continue
		}
		ac.emit(c, model.ProgressSucceeded, "")
	}
	return nil
}

// --- step 5: platform_to_library removes (local only) ---

func (ac *applyContext) applyPlatformRemoveStep(items []model.SyncChange) error {
	for _, c := range items {
		proceed, err := ac.precheck(c)
		if err != nil {
			return err
		}
		if !proceed {
			continue
		}
		ac.emit(c, model.ProgressRunning, "")

		if c.TrackID == nil {
			ac.emit(c, model.ProgressFailed, "could not resolve local track to remove")
			continue
		}
		trackID, playlistID := *c.TrackID, ac.binding.PlaylistID
		ac.queueLocal(func(tx repository.Store) error {
			err := tx.RemoveMember(ac.ctx, playlistID, trackID)
			if err == repository.ErrNotFound {
				return nil // already gone locally: idempotent no-op
			}
			return err
		})
		ac.emit(c, model.ProgressSucceeded, "")
	}
	return nil
}

// --- step 6: conflict resolutions (local only) ---

func (ac *applyContext) applyConflictStep(items []model.SyncChange) error {
	for _, c := range items {
		proceed, err := ac.precheck(c)
		if err != nil {
			return err
		}
		if !proceed {
			continue
		}
		ac.emit(c, model.ProgressRunning, "")

		if c.TrackID == nil {
			ac.emit(c, model.ProgressFailed, "conflict missing local track id")
			continue
		}
		trackID := *c.TrackID

		switch c.ConflictResolution {
		case model.ResolutionNone:
			ac.emit(c, model.ProgressSkipped, "conflict has no chosen resolution")
			continue

		case model.ResolutionKeepPlatform:
			title := c.PlatformMetadata["title"]
			artist := c.PlatformMetadata["artist"]
			ac.queueLocal(func(tx repository.Store) error {
				track, err := tx.GetTrack(ac.ctx, trackID)
				if err != nil {
					return err
				}
				if title != "" {
					track.Title = title
				}
				if artist != "" {
					track.PrimaryArtist = artist
				}
				return tx.UpdateTrack(ac.ctx, track)
			})

		case model.ResolutionKeepLibrary, model.ResolutionKeepBothLinked:
			confidence := c.MatchConfidence
			ac.queueLocal(func(tx repository.Store) error {
				link, err := tx.GetLink(ac.ctx, trackID, ac.binding.Platform)
				if err != nil {
					return err
				}
				link.LastSyncedAt = time.Now().UTC()
				link.MatchConfidence = confidence
				link.NeedsRefresh = false
				return tx.UpsertLink(ac.ctx, link)
			})

		default:
			ac.emit(c, model.ProgressFailed, fmt.Sprintf("unknown conflict resolution %q", c.ConflictResolution))
			continue
		}

		ac.emit(c, model.ProgressSucceeded, "")
	}
	return nil
}

func filterChanges(changes []model.SyncChange, keep func(model.SyncChange) bool) []model.SyncChange {
	var out []model.SyncChange
	for _, c := range changes {
		if keep(c) {
			out = append(out, c)
		}
	}
	return out
}

func isLink(c model.SyncChange) bool { return c.Kind == model.KindLink }
func isPlatformToLibraryAdd(c model.SyncChange) bool {
	return c.Direction == model.DirectionPlatformToLibrary && c.Kind == model.KindAdd
}
func isLibraryToPlatformAdd(c model.SyncChange) bool {
	return c.Direction == model.DirectionLibraryToPlatform && c.Kind == model.KindAdd
}
func isLibraryToPlatformRemove(c model.SyncChange) bool {
	return c.Direction == model.DirectionLibraryToPlatform && c.Kind == model.KindRemove
}
func isPlatformToLibraryRemove(c model.SyncChange) bool {
	return c.Direction == model.DirectionPlatformToLibrary && c.Kind == model.KindRemove
}
func isConflict(c model.SyncChange) bool { return c.Kind == model.KindConflict }
