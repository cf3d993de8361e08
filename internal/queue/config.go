package queue

import "go.uber.org/zap"

// Config governs the bounded concurrency and logging of the Job Queue.
type Config struct {
	// GlobalConcurrency caps how many SyncJobs run at once across every
	// binding and platform. Default 2, per spec.md §4.8.
	GlobalConcurrency int

	// PerAdapterConcurrency caps how many SyncJobs touching the same
	// platform run at once. Default 1, per spec.md §4.8.
	PerAdapterConcurrency int

	Logger *zap.Logger
}

// WithDefaults fills zero-valued fields with spec.md §4.8's defaults.
func (c Config) WithDefaults() Config {
	if c.GlobalConcurrency <= 0 {
		c.GlobalConcurrency = 2
	}
	if c.PerAdapterConcurrency <= 0 {
		c.PerAdapterConcurrency = 1
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	return c
}
