// Package breaker wraps each adapter's remote calls in a per-adapter
// circuit breaker, so a platform experiencing an outage stops being
// hammered by every in-flight job the moment it starts failing
// consistently.
package breaker

import (
	"sync"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/rcong315/selecta-sync/internal/metrics"
	"github.com/rcong315/selecta-sync/internal/syncerr"
)

// FailureThreshold trips a breaker after this many consecutive
// failures on calls through it.
const FailureThreshold = 5

// OpenTimeout is how long a tripped breaker stays open before allowing
// a single probe request through.
const OpenTimeout = 30 * time.Second

// Registry hands out one circuit breaker per platform, parameterized
// over the call's result type.
type Registry struct {
	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[any]
	metrics  *metrics.Metrics
}

func NewRegistry() *Registry {
	return &Registry{breakers: make(map[string]*gobreaker.CircuitBreaker[any])}
}

// WithMetrics attaches a collector set that State transitions report
// to.
func (r *Registry) WithMetrics(m *metrics.Metrics) *Registry {
	r.metrics = m
	return r
}

func (r *Registry) breaker(platform string) *gobreaker.CircuitBreaker[any] {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.breakers[platform]; ok {
		return b
	}
	b := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:    platform,
		Timeout: OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= FailureThreshold
		},
	})
	r.breakers[platform] = b
	return b
}

// Do runs op through platform's circuit breaker. A tripped breaker
// rejects the call immediately with syncerr.ErrTransient rather than
// letting it reach the adapter.
func (r *Registry) Do(platform string, op func() (any, error)) (any, error) {
	result, err := r.breaker(platform).Execute(func() (any, error) {
		return op()
	})
	if r.metrics != nil {
		open := 0.0
		if r.breaker(platform).State() == gobreaker.StateOpen {
			open = 1.0
		}
		r.metrics.CircuitBreakerOpen.WithLabelValues(platform).Set(open)
	}
	if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
		return nil, syncerr.ErrTransient
	}
	return result, err
}

// State reports the current state of platform's breaker as a string,
// for health/metrics surfaces.
func (r *Registry) State(platform string) string {
	return r.breaker(platform).State().String()
}
