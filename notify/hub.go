package notify

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
)

// DefaultBufferSize is the default per-subscription delivery buffer.
const DefaultBufferSize = 64

// Compile-time interface check.
var _ Notifier = (*Hub)(nil)

// Hub fans deliveries out to per-user subscriptions. A user may hold any
// number of concurrent subscriptions (several browser tabs, a CLI feed);
// each gets its own buffered channel. Deliveries to users with no active
// subscription, or to subscriptions with full buffers, are counted and
// dropped. The persisted notification remains the durable record.
type Hub struct {
	logger *slog.Logger

	mu   sync.RWMutex
	subs map[string][]*Subscription // userID → active subscriptions

	bufferSize int

	delivered atomic.Int64
	dropped   atomic.Int64
}

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithBufferSize sets the per-subscription delivery buffer size.
func WithBufferSize(size int) HubOption {
	return func(h *Hub) { h.bufferSize = size }
}

// NewHub creates a delivery hub.
func NewHub(logger *slog.Logger, opts ...HubOption) *Hub {
	h := &Hub{
		logger:     logger,
		subs:       make(map[string][]*Subscription),
		bufferSize: DefaultBufferSize,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Subscription is one user's live delivery feed.
type Subscription struct {
	userID string
	ch     chan Delivery
	closed atomic.Bool
}

// C returns the read-only delivery channel. It is closed when the
// subscription is canceled or the hub shuts down.
func (s *Subscription) C() <-chan Delivery { return s.ch }

// UserID returns the user this subscription belongs to.
func (s *Subscription) UserID() string { return s.userID }

// send attempts a non-blocking delivery. Returns false on a full buffer
// or closed subscription.
func (s *Subscription) send(d Delivery) bool {
	if s.closed.Load() {
		return false
	}
	select {
	case s.ch <- d:
		return true
	default:
		return false
	}
}

// close closes the channel. Safe to call multiple times.
func (s *Subscription) close() {
	if s.closed.CompareAndSwap(false, true) {
		close(s.ch)
	}
}

// Subscribe opens a delivery feed for the given user.
func (h *Hub) Subscribe(userID string) *Subscription {
	sub := &Subscription{
		userID: userID,
		ch:     make(chan Delivery, h.bufferSize),
	}
	h.mu.Lock()
	h.subs[userID] = append(h.subs[userID], sub)
	h.mu.Unlock()
	return sub
}

// Unsubscribe cancels a subscription and closes its channel.
func (h *Hub) Unsubscribe(sub *Subscription) {
	h.mu.Lock()
	list := h.subs[sub.userID]
	for i, s := range list {
		if s == sub {
			list = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(list) == 0 {
		delete(h.subs, sub.userID)
	} else {
		h.subs[sub.userID] = list
	}
	h.mu.Unlock()
	sub.close()
}

// Deliver implements Notifier. A user with no active subscription is a
// successful no-op; a full subscription buffer drops the delivery for
// that subscription only.
func (h *Hub) Deliver(_ context.Context, userID string, d Delivery) error {
	h.mu.RLock()
	list := make([]*Subscription, len(h.subs[userID]))
	copy(list, h.subs[userID])
	h.mu.RUnlock()

	for _, sub := range list {
		if sub.send(d) {
			h.delivered.Add(1)
		} else {
			h.dropped.Add(1)
			h.logger.Debug("delivery dropped",
				slog.String("user_id", userID),
				slog.String("notification_id", d.NotificationID.String()),
			)
		}
	}
	return nil
}

// Stats returns hub delivery counters.
func (h *Hub) Stats() HubStats {
	h.mu.RLock()
	users := len(h.subs)
	subs := 0
	for _, list := range h.subs {
		subs += len(list)
	}
	h.mu.RUnlock()
	return HubStats{
		Users:         users,
		Subscriptions: subs,
		Delivered:     h.delivered.Load(),
		Dropped:       h.dropped.Load(),
	}
}

// HubStats contains hub delivery metrics.
type HubStats struct {
	Users         int   `json:"users"`
	Subscriptions int   `json:"subscriptions"`
	Delivered     int64 `json:"delivered"`
	Dropped       int64 `json:"dropped"`
}

// Close cancels all subscriptions and closes their channels.
func (h *Hub) Close() {
	h.mu.Lock()
	for _, list := range h.subs {
		for _, sub := range list {
			sub.close()
		}
	}
	h.subs = make(map[string][]*Subscription)
	h.mu.Unlock()
	h.logger.Info("notification hub shut down")
}
