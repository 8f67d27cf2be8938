package calcq

import "time"

// Config holds configuration for the Dispatcher.
type Config struct {
	// QueueCapacity is the maximum number of admitted-but-undrained
	// requests. Zero or negative means unbounded.
	QueueCapacity int

	// SubmitTimeout is how long Submit waits for a capacity permit before
	// failing with ErrQueueFull. Zero means wait for the caller's context.
	SubmitTimeout time.Duration

	// DrainRate is the maximum sustained requests per second processed by
	// the worker loop, bounding load on the backing store. Zero disables
	// rate limiting.
	DrainRate float64

	// DrainBurst is the burst size for the drain rate limiter. Defaults to
	// 1 if DrainRate is set but DrainBurst is zero.
	DrainBurst int

	// ErrorBackoff is how long the worker loop pauses after an unexpected
	// error before resuming.
	ErrorBackoff time.Duration

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	ShutdownTimeout time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		QueueCapacity:   3,
		SubmitTimeout:   1 * time.Second,
		ErrorBackoff:    1 * time.Second,
		ShutdownTimeout: 30 * time.Second,
	}
}
