package ratelimit

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rcong315/selecta-sync/internal/syncerr"
)

func TestLimiterIsReusedPerPlatform(t *testing.T) {
	r := NewRegistry(0, 0, 0)
	a := r.Limiter("stream", 60)
	b := r.Limiter("stream", 600) // budget ignored on second call
	require.Same(t, a, b)
}

func TestLimiterIsDistinctPerPlatform(t *testing.T) {
	r := NewRegistry(0, 0, 0)
	a := r.Limiter("stream", 60)
	b := r.Limiter("vinyl", 60)
	require.NotSame(t, a, b)
}

func TestNewRegistryFallsBackToDefaults(t *testing.T) {
	r := NewRegistry(0, 0, 0)
	require.Equal(t, DefaultMaxAttempts, r.maxAttempts)
	require.Equal(t, DefaultBaseDelay, r.baseDelay)
	require.Equal(t, DefaultJitterRatio, r.jitterRatio)
}

func TestRetrySucceedsWithoutRetryingOnNonTransientError(t *testing.T) {
	r := NewRegistry(0, 0, 0)
	calls := 0
	err := r.Retry(context.Background(), func() error {
		calls++
		return syncerr.ErrAuthFailed
	})
	require.ErrorIs(t, err, syncerr.ErrAuthFailed)
	require.Equal(t, 1, calls)
}

func TestRetryRetriesTransientUntilSuccess(t *testing.T) {
	r := NewRegistry(0, 0, 0)
	calls := 0
	err := r.Retry(context.Background(), func() error {
		calls++
		if calls < 3 {
			return syncerr.ErrTransient
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, calls)
}

func TestRetryGivesUpAfterConfiguredMaxAttempts(t *testing.T) {
	r := NewRegistry(3, 0, 0)
	calls := 0
	err := r.Retry(context.Background(), func() error {
		calls++
		return syncerr.ErrRateLimited
	})
	require.True(t, errors.Is(err, syncerr.ErrRateLimited))
	require.Equal(t, 3, calls)
}
