package hook

import (
	"context"
	"log/slog"
	"time"

	"github.com/xraph/calcq/message"
)

// Named entry types pair a hook implementation with the hook name
// captured at registration time. This avoids type-asserting back to
// Hook inside the emit methods.
type requestEnqueuedEntry struct {
	name string
	hook RequestEnqueued
}

type requestCompletedEntry struct {
	name string
	hook RequestCompleted
}

type resultRecordedEntry struct {
	name string
	hook ResultRecorded
}

type shutdownEntry struct {
	name string
	hook Shutdown
}

// Registry holds registered hooks and dispatches pipeline events to
// them. It type-caches hooks at registration time so emit calls iterate
// only over hooks that implement the relevant event.
type Registry struct {
	hooks  []Hook
	logger *slog.Logger

	// Type-cached slices for each lifecycle event.
	requestEnqueued  []requestEnqueuedEntry
	requestCompleted []requestCompletedEntry
	resultRecorded   []resultRecordedEntry
	shutdown         []shutdownEntry
}

// NewRegistry creates a hook registry with the given logger.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{logger: logger}
}

// Register adds a hook and type-asserts it into all applicable event
// caches. Hooks are notified in registration order.
func (r *Registry) Register(h Hook) {
	r.hooks = append(r.hooks, h)
	name := h.Name()

	if e, ok := h.(RequestEnqueued); ok {
		r.requestEnqueued = append(r.requestEnqueued, requestEnqueuedEntry{name, e})
	}
	if e, ok := h.(RequestCompleted); ok {
		r.requestCompleted = append(r.requestCompleted, requestCompletedEntry{name, e})
	}
	if e, ok := h.(ResultRecorded); ok {
		r.resultRecorded = append(r.resultRecorded, resultRecordedEntry{name, e})
	}
	if e, ok := h.(Shutdown); ok {
		r.shutdown = append(r.shutdown, shutdownEntry{name, e})
	}
}

// Hooks returns all registered hooks.
func (r *Registry) Hooks() []Hook { return r.hooks }

// EmitRequestEnqueued notifies all hooks that implement RequestEnqueued.
func (r *Registry) EmitRequestEnqueued(ctx context.Context, req *message.CalculationRequest) {
	for _, e := range r.requestEnqueued {
		if err := e.hook.OnRequestEnqueued(ctx, req); err != nil {
			r.logHookError("OnRequestEnqueued", e.name, err)
		}
	}
}

// EmitRequestCompleted notifies all hooks that implement RequestCompleted.
func (r *Registry) EmitRequestCompleted(ctx context.Context, res *message.CalculationResult, elapsed time.Duration) {
	for _, e := range r.requestCompleted {
		if err := e.hook.OnRequestCompleted(ctx, res, elapsed); err != nil {
			r.logHookError("OnRequestCompleted", e.name, err)
		}
	}
}

// EmitResultRecorded notifies all hooks that implement ResultRecorded.
func (r *Registry) EmitResultRecorded(ctx context.Context, res *message.CalculationResult) {
	for _, e := range r.resultRecorded {
		if err := e.hook.OnResultRecorded(ctx, res); err != nil {
			r.logHookError("OnResultRecorded", e.name, err)
		}
	}
}

// EmitShutdown notifies all hooks that implement Shutdown.
func (r *Registry) EmitShutdown(ctx context.Context) {
	for _, e := range r.shutdown {
		if err := e.hook.OnShutdown(ctx); err != nil {
			r.logHookError("OnShutdown", e.name, err)
		}
	}
}

// logHookError logs a warning when a lifecycle hook returns an error.
// Errors from hooks are never propagated; they must not block the pipeline.
func (r *Registry) logHookError(event, hookName string, err error) {
	r.logger.Warn("hook error",
		slog.String("event", event),
		slog.String("hook", hookName),
		slog.String("error", err.Error()),
	)
}
