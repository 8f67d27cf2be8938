package calcq_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/xraph/calcq"
	"github.com/xraph/calcq/hook"
	"github.com/xraph/calcq/message"
	"github.com/xraph/calcq/store/memory"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition never met")
}

func seededStore() *memory.Store {
	m := memory.New()
	m.AddSignal("asset-1", 10)
	m.AddSignal("asset-1", 20)
	m.AddSignal("asset-1", 30)
	return m
}

func TestNew_RequiresStores(t *testing.T) {
	if _, err := calcq.New(); !errors.Is(err, calcq.ErrNoSignalStore) {
		t.Fatalf("expected ErrNoSignalStore, got %v", err)
	}

	m := memory.New()
	if _, err := calcq.New(calcq.WithSignalStore(m)); !errors.Is(err, calcq.ErrNoNotificationStore) {
		t.Fatalf("expected ErrNoNotificationStore, got %v", err)
	}
}

func TestSubmit_Validation(t *testing.T) {
	m := seededStore()
	d, err := calcq.New(calcq.WithSignalStore(m), calcq.WithNotificationStore(m))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx := context.Background()
	if _, err := d.Submit(ctx, calcq.SubmitInput{ColumnName: "Strength"}); !errors.Is(err, calcq.ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest for missing asset, got %v", err)
	}
	if _, err := d.Submit(ctx, calcq.SubmitInput{AssetID: "asset-1"}); !errors.Is(err, calcq.ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest for missing column, got %v", err)
	}
}

func TestDispatcher_EndToEnd(t *testing.T) {
	m := seededStore()

	d, err := calcq.New(
		calcq.WithSignalStore(m),
		calcq.WithNotificationStore(m),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx := context.Background()
	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer d.Stop(ctx) //nolint:errcheck

	reqID, err := d.Submit(ctx, calcq.SubmitInput{
		AssetID:    "asset-1",
		ColumnName: "Strength",
		UserID:     "user-1",
		UserName:   "alice",
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if reqID.IsNil() {
		t.Fatal("expected a request id")
	}

	waitFor(t, func() bool { return m.NotificationCount() == 1 })

	list, err := m.ListUserNotifications(ctx, "user-1")
	if err != nil {
		t.Fatalf("ListUserNotifications: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(list))
	}
	if list[0].Message != "The average for column Strength is 20" {
		t.Fatalf("unexpected message: %q", list[0].Message)
	}
}

func TestSubmit_QueueFull(t *testing.T) {
	m := seededStore()
	cfg := calcq.DefaultConfig()
	cfg.QueueCapacity = 1
	cfg.SubmitTimeout = 30 * time.Millisecond

	d, err := calcq.New(
		calcq.WithConfig(cfg),
		calcq.WithSignalStore(m),
		calcq.WithNotificationStore(m),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	// The loop is not started, so the first submit occupies the only
	// slot and the second must time out.
	ctx := context.Background()
	if _, err := d.Submit(ctx, calcq.SubmitInput{AssetID: "asset-1", ColumnName: "Strength"}); err != nil {
		t.Fatalf("first Submit: %v", err)
	}

	_, err = d.Submit(ctx, calcq.SubmitInput{AssetID: "asset-1", ColumnName: "Strength"})
	if !errors.Is(err, calcq.ErrQueueFull) {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}
}

func TestSubmit_CallerCancellationIsNotQueueFull(t *testing.T) {
	m := seededStore()
	cfg := calcq.DefaultConfig()
	cfg.QueueCapacity = 1
	cfg.SubmitTimeout = time.Minute

	d, err := calcq.New(
		calcq.WithConfig(cfg),
		calcq.WithSignalStore(m),
		calcq.WithNotificationStore(m),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx := context.Background()
	if _, err := d.Submit(ctx, calcq.SubmitInput{AssetID: "asset-1", ColumnName: "Strength"}); err != nil {
		t.Fatalf("first Submit: %v", err)
	}

	cctx, cancel := context.WithCancel(ctx)
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err = d.Submit(cctx, calcq.SubmitInput{AssetID: "asset-1", ColumnName: "Strength"})
	if errors.Is(err, calcq.ErrQueueFull) {
		t.Fatalf("caller cancellation must not masquerade as queue-full: %v", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

// enqueueHook records enqueue events.
type enqueueHook struct {
	mu   sync.Mutex
	reqs []*message.CalculationRequest
}

func (h *enqueueHook) Name() string { return "test-enqueue" }

func (h *enqueueHook) OnRequestEnqueued(_ context.Context, req *message.CalculationRequest) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.reqs = append(h.reqs, req)
	return nil
}

var _ hook.RequestEnqueued = (*enqueueHook)(nil)

func TestSubmit_FiresEnqueueHook(t *testing.T) {
	m := seededStore()
	h := &enqueueHook{}

	d, err := calcq.New(
		calcq.WithSignalStore(m),
		calcq.WithNotificationStore(m),
		calcq.WithHook(h),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if _, err := d.Submit(context.Background(), calcq.SubmitInput{AssetID: "asset-1", ColumnName: "Strength"}); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.reqs) != 1 || h.reqs[0].AssetID != "asset-1" {
		t.Fatalf("enqueue hook did not fire: %v", h.reqs)
	}
}
