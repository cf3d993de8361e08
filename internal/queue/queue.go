// Package queue implements the Job Queue half of L8: bounded global
// and per-adapter concurrency, FIFO ordering with a priority override
// for foreground user-initiated syncs, and cooperative cancellation,
// per spec.md §4.8/§5.
package queue

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/rcong315/selecta-sync/internal/metrics"
	"github.com/rcong315/selecta-sync/internal/model"
)

// Job is one SyncJob: the work of syncing a single binding, along with
// enough identity for the Dispatcher to enforce per-binding
// serialization and per-adapter concurrency limits.
type Job struct {
	ID       string
	Binding  model.PlaylistPlatformBinding
	Priority bool
	Run      func(ctx context.Context) (model.JobSummary, error)

	resultCh chan jobOutcome
}

type jobOutcome struct {
	Summary model.JobSummary
	Err     error
}

// NewJob builds a Job ready to Submit. Priority jumps every
// already-queued normal job but never an already-running one.
func NewJob(id string, binding model.PlaylistPlatformBinding, priority bool, run func(ctx context.Context) (model.JobSummary, error)) *Job {
	return &Job{ID: id, Binding: binding, Priority: priority, Run: run, resultCh: make(chan jobOutcome, 1)}
}

// Wait blocks until job finishes or ctx is cancelled.
func (j *Job) Wait(ctx context.Context) (model.JobSummary, error) {
	select {
	case out := <-j.resultCh:
		return out.Summary, out.Err
	case <-ctx.Done():
		return model.JobSummary{}, ctx.Err()
	}
}

// Dispatcher schedules Jobs under spec.md §4.8's concurrency rules:
// bounded globally, bounded per adapter, and strictly serial within
// one binding (a binding is a critical section, per §5).
type Dispatcher struct {
	cfg Config

	mu       sync.Mutex
	priority []*Job
	normal   []*Job
	active   map[int64]bool // binding ids with a job currently running

	wake chan struct{}

	global     *semaphore.Weighted
	adaptersMu sync.Mutex
	adapters   map[model.Platform]*semaphore.Weighted

	metrics *metrics.Metrics

	wg sync.WaitGroup
}

func New(cfg Config) *Dispatcher {
	cfg = cfg.WithDefaults()
	return &Dispatcher{
		cfg:      cfg,
		active:   make(map[int64]bool),
		wake:     make(chan struct{}, 1),
		global:   semaphore.NewWeighted(int64(cfg.GlobalConcurrency)),
		adapters: make(map[model.Platform]*semaphore.Weighted),
	}
}

// WithMetrics attaches a collector set that queue depth and job
// outcomes report to.
func (d *Dispatcher) WithMetrics(m *metrics.Metrics) *Dispatcher {
	d.metrics = m
	return d
}

func (d *Dispatcher) adapterSem(platform model.Platform) *semaphore.Weighted {
	d.adaptersMu.Lock()
	defer d.adaptersMu.Unlock()
	s, ok := d.adapters[platform]
	if !ok {
		s = semaphore.NewWeighted(int64(d.cfg.PerAdapterConcurrency))
		d.adapters[platform] = s
	}
	return s
}

// Submit enqueues job. Priority jobs are scanned for dispatch ahead of
// every queued normal job, per spec.md §4.8's "priority overrides
// allow a foreground user-initiated job to jump the queue".
func (d *Dispatcher) Submit(job *Job) {
	d.mu.Lock()
	if job.Priority {
		d.priority = append(d.priority, job)
	} else {
		d.normal = append(d.normal, job)
	}
	d.mu.Unlock()
	d.reportDepth()
	d.signal()
}

func (d *Dispatcher) signal() {
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

// Run drives the dispatch loop until ctx is cancelled, then waits for
// every already-started job to finish before returning. Jobs still
// queued (not yet started) when ctx is cancelled are simply abandoned;
// callers that submitted them observe ctx.Err() from Job.Wait.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		// Take a global slot before choosing a job, so a priority job
		// submitted while every slot is busy is still chosen first.
		if err := d.global.Acquire(ctx, 1); err != nil {
			d.wg.Wait()
			return
		}
		job, ok := d.popRunnable()
		if !ok {
			d.global.Release(1)
			select {
			case <-ctx.Done():
				d.wg.Wait()
				return
			case <-d.wake:
				continue
			}
		}

		d.wg.Add(1)
		go d.runJob(ctx, job)
	}
}

// popRunnable returns the highest-priority queued job whose binding is
// not already running, or ok=false if none is currently runnable.
func (d *Dispatcher) popRunnable() (*Job, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if job, ok := popFirstRunnable(&d.priority, d.active); ok {
		d.active[job.Binding.ID] = true
		return job, true
	}
	if job, ok := popFirstRunnable(&d.normal, d.active); ok {
		d.active[job.Binding.ID] = true
		return job, true
	}
	return nil, false
}

func popFirstRunnable(queue *[]*Job, active map[int64]bool) (*Job, bool) {
	for i, job := range *queue {
		if active[job.Binding.ID] {
			continue
		}
		*queue = append((*queue)[:i], (*queue)[i+1:]...)
		return job, true
	}
	return nil, false
}

func (d *Dispatcher) reportDepth() {
	if d.metrics != nil {
		d.metrics.QueueDepth.Set(float64(d.Pending()))
	}
}

func (d *Dispatcher) runJob(ctx context.Context, job *Job) {
	defer d.wg.Done()
	defer d.freeBinding(job.Binding.ID)
	d.reportDepth()

	// The global slot was taken by Run before this job was chosen.
	defer d.global.Release(1)

	sem := d.adapterSem(job.Binding.Platform)

	if err := sem.Acquire(ctx, 1); err != nil {
		job.resultCh <- jobOutcome{Err: err}
		return
	}
	defer sem.Release(1)

	d.cfg.Logger.Debug("running sync job", zap.String("job_id", job.ID), zap.Int64("binding_id", job.Binding.ID))
	start := time.Now()
	summary, err := job.Run(ctx)
	if err != nil {
		d.cfg.Logger.Warn("sync job failed", zap.String("job_id", job.ID), zap.Error(err))
	}
	if d.metrics != nil {
		outcome := "success"
		if err != nil {
			outcome = "error"
		}
		d.metrics.JobsTotal.WithLabelValues(outcome).Inc()
		d.metrics.JobDuration.Observe(time.Since(start).Seconds())
	}
	job.resultCh <- jobOutcome{Summary: summary, Err: err}
}

func (d *Dispatcher) freeBinding(bindingID int64) {
	d.mu.Lock()
	delete(d.active, bindingID)
	d.mu.Unlock()
	d.signal()
}

// Pending reports how many jobs are queued but not yet running, for
// queue-depth metrics.
func (d *Dispatcher) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.priority) + len(d.normal)
}
