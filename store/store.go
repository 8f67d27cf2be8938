// Package store defines the persistence contracts the pipeline depends on:
// the signal table the aggregate reads from and the notification tables the
// results are recorded into. The CRUD application owning these tables is an
// external collaborator; the pipeline only needs the narrow interfaces here.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/xraph/calcq/id"
)

// ErrNotificationNotFound is returned when a notification lookup misses.
var ErrNotificationNotFound = errors.New("store: notification not found")

// Signal is one reading attached to an asset.
type Signal struct {
	ID       int64  `json:"id"`
	AssetID  string `json:"asset_id"`
	Strength int    `json:"strength"`
}

// Notification is the persisted record of a completed calculation. It is
// written before any real-time delivery is attempted, so a user who was
// offline can recover missed results by listing their notifications.
type Notification struct {
	ID        id.NotificationID `json:"id"`
	Message   string            `json:"message"`
	CreatedBy string            `json:"created_by"`
	CreatedAt time.Time         `json:"created_at"`
}

// NewNotification creates a Notification with a fresh ID and creation
// timestamp.
func NewNotification(message, createdBy string) *Notification {
	return &Notification{
		ID:        id.NewNotificationID(),
		Message:   message,
		CreatedBy: createdBy,
		CreatedAt: time.Now().UTC(),
	}
}

// UserNotification links a notification to the user it targets.
type UserNotification struct {
	UserID         string            `json:"user_id"`
	NotificationID id.NotificationID `json:"notification_id"`
	IsRead         bool              `json:"is_read"`
}

// SignalStore reads signal values scoped by asset. Implementations must
// treat an asset with no signals as an empty result, not an error.
type SignalStore interface {
	// StrengthValues returns the Strength readings for the given asset.
	StrengthValues(ctx context.Context, assetID string) ([]float64, error)
}

// NotificationStore persists calculation outcome notifications.
type NotificationStore interface {
	// CreateNotification persists n. The caller provides the ID.
	CreateNotification(ctx context.Context, n *Notification) error

	// CreateUserNotification links an existing notification to a user.
	CreateUserNotification(ctx context.Context, un *UserNotification) error

	// ListUserNotifications returns a user's notifications, newest first.
	ListUserNotifications(ctx context.Context, userID string) ([]*Notification, error)

	// MarkRead flags the link between userID and notificationID as read.
	// Returns ErrNotificationNotFound if no such link exists.
	MarkRead(ctx context.Context, userID string, notificationID id.NotificationID) error
}
