package hook_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/xraph/calcq/hook"
	"github.com/xraph/calcq/message"
)

// allEventsHook implements every lifecycle event for testing.
type allEventsHook struct {
	calls []string
}

func (h *allEventsHook) Name() string { return "all-events" }

func (h *allEventsHook) OnRequestEnqueued(_ context.Context, _ *message.CalculationRequest) error {
	h.calls = append(h.calls, "OnRequestEnqueued")
	return nil
}

func (h *allEventsHook) OnRequestCompleted(_ context.Context, _ *message.CalculationResult, _ time.Duration) error {
	h.calls = append(h.calls, "OnRequestCompleted")
	return nil
}

func (h *allEventsHook) OnResultRecorded(_ context.Context, _ *message.CalculationResult) error {
	h.calls = append(h.calls, "OnResultRecorded")
	return nil
}

func (h *allEventsHook) OnShutdown(_ context.Context) error {
	h.calls = append(h.calls, "OnShutdown")
	return nil
}

// enqueueOnlyHook only implements the enqueue event.
type enqueueOnlyHook struct {
	calls []string
}

func (h *enqueueOnlyHook) Name() string { return "enqueue-only" }

func (h *enqueueOnlyHook) OnRequestEnqueued(_ context.Context, _ *message.CalculationRequest) error {
	h.calls = append(h.calls, "OnRequestEnqueued")
	return nil
}

// failingHook returns errors from events.
type failingHook struct{}

func (h *failingHook) Name() string { return "failing" }

func (h *failingHook) OnRequestEnqueued(_ context.Context, _ *message.CalculationRequest) error {
	return errors.New("boom")
}

func testRequest() *message.CalculationRequest {
	return message.NewRequest("asset-1", "Strength", "user-1", "alice")
}

func TestRegistry_RegisterDiscoversInterfaces(t *testing.T) {
	r := hook.NewRegistry(slog.Default())
	all := &allEventsHook{}
	r.Register(all)

	if got := len(r.Hooks()); got != 1 {
		t.Fatalf("expected 1 hook, got %d", got)
	}
	if got := r.Hooks()[0].Name(); got != "all-events" {
		t.Fatalf("expected name 'all-events', got %q", got)
	}
}

func TestRegistry_EmitFiresOnlyImplementors(t *testing.T) {
	r := hook.NewRegistry(slog.Default())
	all := &allEventsHook{}
	eo := &enqueueOnlyHook{}
	r.Register(all)
	r.Register(eo)

	ctx := context.Background()
	req := testRequest()

	// Both implement OnRequestEnqueued → both called.
	r.EmitRequestEnqueued(ctx, req)
	if len(all.calls) != 1 || all.calls[0] != "OnRequestEnqueued" {
		t.Fatalf("all: expected [OnRequestEnqueued], got %v", all.calls)
	}
	if len(eo.calls) != 1 || eo.calls[0] != "OnRequestEnqueued" {
		t.Fatalf("eo: expected [OnRequestEnqueued], got %v", eo.calls)
	}

	// Only all implements OnResultRecorded → eo not called.
	r.EmitResultRecorded(ctx, message.NewResult(req))
	if len(all.calls) != 2 || all.calls[1] != "OnResultRecorded" {
		t.Fatalf("all: expected OnResultRecorded as 2nd, got %v", all.calls)
	}
	if len(eo.calls) != 1 {
		t.Fatalf("eo: should still have 1 call, got %v", eo.calls)
	}
}

func TestRegistry_AllEventsFire(t *testing.T) {
	r := hook.NewRegistry(slog.Default())
	all := &allEventsHook{}
	r.Register(all)

	ctx := context.Background()
	req := testRequest()
	res := message.NewResult(req)

	r.EmitRequestEnqueued(ctx, req)
	r.EmitRequestCompleted(ctx, res, time.Second)
	r.EmitResultRecorded(ctx, res)
	r.EmitShutdown(ctx)

	expected := []string{
		"OnRequestEnqueued", "OnRequestCompleted", "OnResultRecorded", "OnShutdown",
	}
	if len(all.calls) != len(expected) {
		t.Fatalf("expected %d calls, got %d: %v", len(expected), len(all.calls), all.calls)
	}
	for i, want := range expected {
		if all.calls[i] != want {
			t.Errorf("call[%d] = %q, want %q", i, all.calls[i], want)
		}
	}
}

func TestRegistry_HookErrorsLoggedNotPropagated(t *testing.T) {
	r := hook.NewRegistry(slog.Default())
	failing := &failingHook{}
	all := &allEventsHook{}

	// Register failing first, then all-events. Both should be called.
	r.Register(failing)
	r.Register(all)

	// No panic, no error propagation. allEventsHook should still fire.
	r.EmitRequestEnqueued(context.Background(), testRequest())

	if len(all.calls) != 1 || all.calls[0] != "OnRequestEnqueued" {
		t.Fatalf("all: expected [OnRequestEnqueued] despite failing hook, got %v", all.calls)
	}
}

func TestRegistry_EmptyRegistryNoOp(_ *testing.T) {
	r := hook.NewRegistry(slog.Default())
	ctx := context.Background()
	req := testRequest()

	// None of these should panic or error.
	r.EmitRequestEnqueued(ctx, req)
	r.EmitRequestCompleted(ctx, message.NewResult(req), time.Second)
	r.EmitResultRecorded(ctx, message.NewResult(req))
	r.EmitShutdown(ctx)
}

func TestRegistry_MultipleHooksOrderPreserved(t *testing.T) {
	r := hook.NewRegistry(slog.Default())
	h1 := &allEventsHook{}
	h2 := &allEventsHook{}
	r.Register(h1)
	r.Register(h2)

	r.EmitRequestEnqueued(context.Background(), testRequest())

	// Both should be called.
	if len(h1.calls) != 1 {
		t.Errorf("h1: expected 1 call, got %d", len(h1.calls))
	}
	if len(h2.calls) != 1 {
		t.Errorf("h2: expected 1 call, got %d", len(h2.calls))
	}
}
