// Package memory provides a fully in-memory store implementation.
// Safe for concurrent access. Intended for unit testing and development.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/xraph/calcq/id"
	"github.com/xraph/calcq/store"
)

// Ensure Store implements both contracts at compile time.
var (
	_ store.SignalStore       = (*Store)(nil)
	_ store.NotificationStore = (*Store)(nil)
)

// Store is an in-memory implementation of the signal and notification
// stores.
type Store struct {
	mu sync.RWMutex

	signals           []store.Signal
	nextSignalID      int64
	notifications     map[string]*store.Notification
	userNotifications []*store.UserNotification
}

// New returns a new empty Store.
func New() *Store {
	return &Store{
		nextSignalID:  1,
		notifications: make(map[string]*store.Notification),
	}
}

// AddSignal seeds one Strength reading for an asset and returns its row ID.
func (m *Store) AddSignal(assetID string, strength int) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	sid := m.nextSignalID
	m.nextSignalID++
	m.signals = append(m.signals, store.Signal{
		ID:       sid,
		AssetID:  assetID,
		Strength: strength,
	})
	return sid
}

// StrengthValues returns the Strength readings for the given asset.
// An unknown asset yields an empty slice.
func (m *Store) StrengthValues(_ context.Context, assetID string) ([]float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var values []float64
	for _, s := range m.signals {
		if s.AssetID == assetID {
			values = append(values, float64(s.Strength))
		}
	}
	return values, nil
}

// CreateNotification persists a notification record.
func (m *Store) CreateNotification(_ context.Context, n *store.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *n
	m.notifications[n.ID.String()] = &cp
	return nil
}

// CreateUserNotification links a notification to a user.
func (m *Store) CreateUserNotification(_ context.Context, un *store.UserNotification) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *un
	m.userNotifications = append(m.userNotifications, &cp)
	return nil
}

// ListUserNotifications returns a user's notifications, newest first.
func (m *Store) ListUserNotifications(_ context.Context, userID string) ([]*store.Notification, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*store.Notification
	for _, un := range m.userNotifications {
		if un.UserID != userID {
			continue
		}
		if n, ok := m.notifications[un.NotificationID.String()]; ok {
			cp := *n
			out = append(out, &cp)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// MarkRead flags a user's notification link as read.
func (m *Store) MarkRead(_ context.Context, userID string, notificationID id.NotificationID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, un := range m.userNotifications {
		if un.UserID == userID && un.NotificationID == notificationID {
			un.IsRead = true
			return nil
		}
	}
	return store.ErrNotificationNotFound
}

// NotificationCount returns the number of persisted notifications.
// Intended for tests.
func (m *Store) NotificationCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.notifications)
}
