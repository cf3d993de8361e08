package queue

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rcong315/selecta-sync/internal/model"
)

func binding(id int64, platform model.Platform) model.PlaylistPlatformBinding {
	return model.PlaylistPlatformBinding{ID: id, Platform: platform}
}

func TestGlobalConcurrencyIsBounded(t *testing.T) {
	d := New(Config{GlobalConcurrency: 2, PerAdapterConcurrency: 10})
	ctx, cancel := context.WithCancel(context.Background())
	go d.Run(ctx)
	defer cancel()

	var inFlight int32
	var maxInFlight int32
	var mu sync.Mutex
	release := make(chan struct{})

	jobs := make([]*Job, 0, 5)
	for i := int64(0); i < 5; i++ {
		i := i
		job := NewJob("j", binding(i, "stream"), false, func(ctx context.Context) (model.JobSummary, error) {
			n := atomic.AddInt32(&inFlight, 1)
			mu.Lock()
			if n > maxInFlight {
				maxInFlight = n
			}
			mu.Unlock()
			<-release
			atomic.AddInt32(&inFlight, -1)
			return model.JobSummary{}, nil
		})
		jobs = append(jobs, job)
		d.Submit(job)
	}

	time.Sleep(100 * time.Millisecond)
	mu.Lock()
	require.LessOrEqual(t, maxInFlight, int32(2))
	mu.Unlock()

	close(release)
	for _, j := range jobs {
		_, err := j.Wait(context.Background())
		require.NoError(t, err)
	}
}

func TestPerAdapterConcurrencyIsBounded(t *testing.T) {
	d := New(Config{GlobalConcurrency: 10, PerAdapterConcurrency: 1})
	ctx, cancel := context.WithCancel(context.Background())
	go d.Run(ctx)
	defer cancel()

	var inFlight int32
	var maxInFlight int32
	var mu sync.Mutex
	release := make(chan struct{})

	jobs := make([]*Job, 0, 3)
	for i := int64(0); i < 3; i++ {
		job := NewJob("j", binding(i, "stream"), false, func(ctx context.Context) (model.JobSummary, error) {
			n := atomic.AddInt32(&inFlight, 1)
			mu.Lock()
			if n > maxInFlight {
				maxInFlight = n
			}
			mu.Unlock()
			<-release
			atomic.AddInt32(&inFlight, -1)
			return model.JobSummary{}, nil
		})
		jobs = append(jobs, job)
		d.Submit(job)
	}

	time.Sleep(100 * time.Millisecond)
	mu.Lock()
	require.Equal(t, int32(1), maxInFlight)
	mu.Unlock()

	close(release)
	for _, j := range jobs {
		_, err := j.Wait(context.Background())
		require.NoError(t, err)
	}
}

func TestPriorityJobJumpsNormalQueue(t *testing.T) {
	d := New(Config{GlobalConcurrency: 1, PerAdapterConcurrency: 1})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	blockFirst := make(chan struct{})
	var order []string
	var mu sync.Mutex

	first := NewJob("first", binding(1, "stream"), false, func(ctx context.Context) (model.JobSummary, error) {
		<-blockFirst
		mu.Lock()
		order = append(order, "first")
		mu.Unlock()
		return model.JobSummary{}, nil
	})
	d.Submit(first)

	go d.Run(ctx)
	time.Sleep(20 * time.Millisecond) // let first occupy the only slot

	normal := NewJob("normal", binding(2, "stream"), false, func(ctx context.Context) (model.JobSummary, error) {
		mu.Lock()
		order = append(order, "normal")
		mu.Unlock()
		return model.JobSummary{}, nil
	})
	priority := NewJob("priority", binding(3, "stream"), true, func(ctx context.Context) (model.JobSummary, error) {
		mu.Lock()
		order = append(order, "priority")
		mu.Unlock()
		return model.JobSummary{}, nil
	})
	d.Submit(normal)
	d.Submit(priority)
	time.Sleep(20 * time.Millisecond)

	close(blockFirst)
	_, err := first.Wait(context.Background())
	require.NoError(t, err)
	_, err = priority.Wait(context.Background())
	require.NoError(t, err)
	_, err = normal.Wait(context.Background())
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{"first", "priority", "normal"}, order)
}

func TestSameBindingJobsRunSerially(t *testing.T) {
	d := New(Config{GlobalConcurrency: 5, PerAdapterConcurrency: 5})
	ctx, cancel := context.WithCancel(context.Background())
	go d.Run(ctx)
	defer cancel()

	var running int32
	var overlapped bool
	var mu sync.Mutex

	jobs := make([]*Job, 0, 3)
	for i := 0; i < 3; i++ {
		job := NewJob("j", binding(42, "stream"), false, func(ctx context.Context) (model.JobSummary, error) {
			n := atomic.AddInt32(&running, 1)
			if n > 1 {
				mu.Lock()
				overlapped = true
				mu.Unlock()
			}
			time.Sleep(10 * time.Millisecond)
			atomic.AddInt32(&running, -1)
			return model.JobSummary{}, nil
		})
		jobs = append(jobs, job)
		d.Submit(job)
	}

	for _, j := range jobs {
		_, err := j.Wait(context.Background())
		require.NoError(t, err)
	}

	mu.Lock()
	defer mu.Unlock()
	require.False(t, overlapped)
}

func TestRunStopsAcceptingNewWorkAfterCancel(t *testing.T) {
	d := New(Config{GlobalConcurrency: 1, PerAdapterConcurrency: 1})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}
