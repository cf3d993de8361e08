package main

import (
	"context"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/rcong315/selecta-sync/internal/adapter"
	"github.com/rcong315/selecta-sync/internal/detect"
	"github.com/rcong315/selecta-sync/internal/matching"
	"github.com/rcong315/selecta-sync/internal/model"
	"github.com/rcong315/selecta-sync/internal/plan"
	"github.com/rcong315/selecta-sync/internal/queue"
	"github.com/rcong315/selecta-sync/internal/repository"
)

// Server holds every collaborator an HTTP handler needs to drive one
// binding through detect → plan → (preview) or detect → plan → apply
// (sync), per spec.md §3's call graph.
type Server struct {
	repo       repository.Store
	thresholds matching.Thresholds
	adapters   map[model.Platform]adapter.Adapter
	dispatcher *queue.Dispatcher
	executor   applier
	logger     *zap.Logger
}

// applier is the subset of internal/exec.Executor the HTTP layer
// needs; narrowed to keep handler tests from requiring a full
// Executor.
type applier interface {
	Apply(ctx context.Context, binding model.PlaylistPlatformBinding, playlist model.Playlist, adp adapter.Adapter, changes []model.SyncChange, progress chan<- model.ProgressEvent) (model.JobSummary, error)
}

func (s *Server) healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

func (s *Server) loadBindingAndAdapter(c *gin.Context) (model.PlaylistPlatformBinding, model.Playlist, adapter.Adapter, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid binding id"})
		return model.PlaylistPlatformBinding{}, model.Playlist{}, nil, false
	}

	binding, err := s.repo.GetBinding(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "binding not found"})
		return model.PlaylistPlatformBinding{}, model.Playlist{}, nil, false
	}

	playlist, err := s.repo.GetPlaylist(c.Request.Context(), binding.PlaylistID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "loading playlist: " + err.Error()})
		return model.PlaylistPlatformBinding{}, model.Playlist{}, nil, false
	}

	adp, ok := s.adapters[binding.Platform]
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "no adapter registered for platform " + string(binding.Platform)})
		return model.PlaylistPlatformBinding{}, model.Playlist{}, nil, false
	}

	return binding, playlist, adp, true
}

// previewHandler runs Detect + Plan against one binding and returns
// the resulting SyncChanges without applying any of them.
func (s *Server) previewHandler(c *gin.Context) {
	binding, _, adp, ok := s.loadBindingAndAdapter(c)
	if !ok {
		return
	}

	snap, err := s.repo.GetSnapshot(c.Request.Context(), binding.ID)
	if err != nil && err != repository.ErrNotFound {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "loading snapshot: " + err.Error()})
		return
	}

	detector := detect.New(s.repo, adp, s.thresholds)
	detections, err := detector.Detect(c.Request.Context(), binding, snap)
	if err != nil {
		s.logger.Error("detect failed", zap.Int64("binding_id", binding.ID), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "detect failed: " + err.Error()})
		return
	}

	changes := plan.Build(binding, detections)
	c.JSON(http.StatusOK, gin.H{"binding_id": binding.ID, "changes": changes})
}

// syncRequest selects which previewed changes to apply and whether
// this job should jump the queue ahead of already-pending normal jobs.
type syncRequest struct {
	Changes  []model.SyncChange `json:"changes" binding:"required"`
	Priority bool                `json:"priority"`
}

// syncHandler submits an Executor.Apply run to the Job Queue and
// streams its ProgressEvents back over SSE as they occur.
func (s *Server) syncHandler(c *gin.Context) {
	binding, playlist, adp, ok := s.loadBindingAndAdapter(c)
	if !ok {
		return
	}

	var req syncRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	progress := make(chan model.ProgressEvent, len(req.Changes)+1)
	job := queue.NewJob(strconv.FormatInt(binding.ID, 10), binding, req.Priority, func(ctx context.Context) (model.JobSummary, error) {
		return s.executor.Apply(ctx, binding, playlist, adp, req.Changes, progress)
	})

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	done := make(chan struct{})
	go func() {
		defer close(done)
		defer close(progress)
		if _, err := job.Wait(c.Request.Context()); err != nil {
			s.logger.Warn("sync job failed", zap.Int64("binding_id", binding.ID), zap.Error(err))
		}
	}()
	s.dispatcher.Submit(job)

	c.Stream(func(w io.Writer) bool {
		select {
		case ev, open := <-progress:
			if !open {
				return false
			}
			c.SSEvent("progress", ev)
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
	<-done
}

// emergencyStopHandler trips the Safety Gate's global stop flag. Every
// in-flight and future Apply call rejects with syncerr.ErrStopped
// until emergencyResumeHandler clears it.
func (s *Server) emergencyStopHandler(gate interface{ Stop() }) gin.HandlerFunc {
	return func(c *gin.Context) {
		gate.Stop()
		s.logger.Warn("emergency stop engaged", zap.String("ip", c.ClientIP()))
		c.JSON(http.StatusOK, gin.H{"status": "stopped"})
	}
}

func (s *Server) emergencyResumeHandler(gate interface{ Resume() }) gin.HandlerFunc {
	return func(c *gin.Context) {
		gate.Resume()
		s.logger.Info("emergency stop cleared", zap.String("ip", c.ClientIP()))
		c.JSON(http.StatusOK, gin.H{"status": "resumed"})
	}
}
