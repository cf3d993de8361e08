// Package ratelimit maintains one token bucket per adapter and a
// bounded-retry-with-backoff policy for transient remote failures, per
// spec.md §4.8. The Executor acquires a token before each batched
// add or remove call; the Change Detector's adapter calls and the
// Executor's post-apply snapshot fetch do not go through the limiter.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"

	"github.com/rcong315/selecta-sync/internal/syncerr"
)

// DefaultMaxAttempts, DefaultBaseDelay, and DefaultJitterRatio mirror
// spec.md §6's stated defaults for retry_max_attempts,
// retry_base_delay_ms, and retry_jitter_ratio, and are the fallback a
// Registry uses when constructed with a zero value for that field
// (e.g. in tests that don't care about the retry budget).
const (
	DefaultMaxAttempts = 5
	DefaultBaseDelay   = 250 * time.Millisecond
	DefaultJitterRatio = 0.2
)

// Registry hands out one *rate.Limiter per platform name, creating it
// lazily from the adapter's declared budget the first time it's asked
// for, and holds the retry/backoff policy every platform's Retry calls
// share, sourced from internal/config's §6 retry_* settings.
type Registry struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter

	maxAttempts int
	baseDelay   time.Duration
	jitterRatio float64
}

// NewRegistry builds a Registry whose Retry policy uses maxAttempts,
// baseDelay, and jitterRatio (config.Config's RetryMaxAttempts,
// RetryBaseDelay(), RetryJitterRatio); a zero or negative value for
// any of the three falls back to its Default* constant.
func NewRegistry(maxAttempts int, baseDelay time.Duration, jitterRatio float64) *Registry {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if baseDelay <= 0 {
		baseDelay = DefaultBaseDelay
	}
	if jitterRatio <= 0 {
		jitterRatio = DefaultJitterRatio
	}
	return &Registry{
		limiters:    make(map[string]*rate.Limiter),
		maxAttempts: maxAttempts,
		baseDelay:   baseDelay,
		jitterRatio: jitterRatio,
	}
}

// Limiter returns the token bucket for platform, creating one sized to
// budgetPerMinute if this is the first call for that platform. Later
// calls for the same platform ignore budgetPerMinute and return the
// existing limiter — an adapter's budget does not change at runtime.
func (r *Registry) Limiter(platform string, budgetPerMinute int) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()
	if l, ok := r.limiters[platform]; ok {
		return l
	}
	if budgetPerMinute <= 0 {
		budgetPerMinute = 1
	}
	l := rate.NewLimiter(rate.Every(time.Minute/time.Duration(budgetPerMinute)), budgetPerMinute)
	r.limiters[platform] = l
	return l
}

// Wait acquires one token for platform, blocking until one is
// available or ctx is cancelled.
func (r *Registry) Wait(ctx context.Context, platform string, budgetPerMinute int) error {
	if err := r.Limiter(platform, budgetPerMinute).Wait(ctx); err != nil {
		return syncerr.ErrCancelled
	}
	return nil
}

// Retry runs op, retrying on transient or rate-limited errors with
// exponential backoff and jitter, up to r.maxAttempts. Any other error
// kind (auth, not-permitted, conflict, not-found, cancelled, stopped)
// is returned immediately without retrying.
func (r *Registry) Retry(ctx context.Context, op func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.baseDelay
	b.RandomizationFactor = r.jitterRatio
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(r.maxAttempts-1)), ctx)

	return backoff.Retry(func() error {
		err := op()
		if err == nil {
			return nil
		}
		kind := syncerr.Classify(err)
		if !syncerr.Retryable(kind) {
			return backoff.Permanent(err)
		}
		return err
	}, policy)
}
