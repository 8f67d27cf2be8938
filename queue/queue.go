// Package queue provides the capacity-limited in-process FIFO of pending
// calculation requests. Producers block (honoring cancellation) when the
// queue is full; consumers block when it is empty. Admission control and
// consumer wake-up use two independent counting signals so that neither side
// busy-polls and multiple producers never notify-storm a consumer.
package queue

import (
	"context"
	"math"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/xraph/calcq/message"
)

// BoundedQueue is a thread-safe FIFO of calculation requests with an
// optional maximum in-flight capacity. Safe for multiple producers and
// multiple consumers, although the reference dispatcher drains it with a
// single consumer.
type BoundedQueue struct {
	mu   sync.Mutex
	fifo []*message.CalculationRequest

	// items counts enqueued-but-not-yet-awaited entries. It starts at zero
	// and gains one credit per enqueue; WaitForItem consumes one credit.
	items *semaphore.Weighted

	// permits counts free capacity slots. Nil when the queue is unbounded.
	permits *semaphore.Weighted
}

// New creates a BoundedQueue. A capacity of zero or less means unbounded:
// Enqueue never blocks and admission is limited only by memory.
func New(capacity int) *BoundedQueue {
	q := &BoundedQueue{
		items: newCounter(),
	}
	if capacity > 0 {
		q.permits = semaphore.NewWeighted(int64(capacity))
	}
	return q
}

// newCounter builds a counting signal that starts at zero: a weighted
// semaphore with all credits pre-acquired, so Release hands out credits
// one enqueue at a time. Releasing past the MaxInt64 ceiling would
// panic, but that needs MaxInt64 undrained enqueues, which cannot fit
// in memory.
func newCounter() *semaphore.Weighted {
	s := semaphore.NewWeighted(math.MaxInt64)
	s.TryAcquire(math.MaxInt64)
	return s
}

// Enqueue appends req to the queue. When a capacity is configured it first
// waits for a free slot, honoring ctx cancellation; a canceled Enqueue
// leaves capacity unchanged and the item absent. An Enqueue that returns
// nil has made the item visible to exactly one future TryDequeue.
func (q *BoundedQueue) Enqueue(ctx context.Context, req *message.CalculationRequest) error {
	if q.permits != nil {
		if err := q.permits.Acquire(ctx, 1); err != nil {
			return err
		}
	}

	q.mu.Lock()
	q.fifo = append(q.fifo, req)
	q.mu.Unlock()

	q.items.Release(1)
	return nil
}

// WaitForItem suspends the caller until at least one item has been signaled
// as available, or until ctx is canceled. It does not remove the item; call
// TryDequeue afterwards. A drain loop that empties the queue may leave
// surplus item credits behind, so a later WaitForItem can return with the
// queue already empty; callers must treat an empty TryDequeue as normal.
func (q *BoundedQueue) WaitForItem(ctx context.Context) error {
	return q.items.Acquire(ctx, 1)
}

// TryDequeue removes and returns the head item without blocking. When a
// capacity is configured, a successful dequeue frees one slot, unblocking
// one waiting producer. Returns ok=false without mutation when empty.
func (q *BoundedQueue) TryDequeue() (req *message.CalculationRequest, ok bool) {
	q.mu.Lock()
	if len(q.fifo) == 0 {
		q.mu.Unlock()
		return nil, false
	}
	req = q.fifo[0]
	q.fifo[0] = nil
	q.fifo = q.fifo[1:]
	q.mu.Unlock()

	if q.permits != nil {
		q.permits.Release(1)
	}
	return req, true
}

// Len returns the instantaneous queue size. Advisory only: the value may be
// stale by the time the caller acts on it.
func (q *BoundedQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.fifo)
}
