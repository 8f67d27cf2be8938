// Package hook defines lifecycle hooks for the calculation pipeline.
// Hooks are notified of pipeline events (request enqueued, request
// completed, result recorded, shutdown) and can react to them, for auditing,
// metrics, cache invalidation, etc.
//
// Each lifecycle hook is a separate interface so implementations opt in
// only to the events they care about.
package hook

import (
	"context"
	"time"

	"github.com/xraph/calcq/message"
)

// Hook is the base interface all hooks must implement.
type Hook interface {
	// Name returns a unique human-readable name for the hook.
	Name() string
}

// RequestEnqueued is called after a request is accepted into the queue.
type RequestEnqueued interface {
	OnRequestEnqueued(ctx context.Context, req *message.CalculationRequest) error
}

// RequestCompleted is called after a request has been fully processed,
// whether the calculation succeeded or produced an error result.
type RequestCompleted interface {
	OnRequestCompleted(ctx context.Context, res *message.CalculationResult, elapsed time.Duration) error
}

// ResultRecorded is called after a result's notification has been
// persisted to the store.
type ResultRecorded interface {
	OnResultRecorded(ctx context.Context, res *message.CalculationResult) error
}

// Shutdown is called during graceful shutdown.
type Shutdown interface {
	OnShutdown(ctx context.Context) error
}
