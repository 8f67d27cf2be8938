// Package notify delivers calculation outcomes to users in real time.
//
// Delivery is best-effort by contract: the durable record of an outcome is
// the persisted notification, and a user who is offline when the result
// lands simply reads it from the store later. Notifier implementations
// must therefore never fail the pipeline because a recipient is absent.
package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/xraph/calcq/id"
)

// Delivery is the real-time payload pushed to a user when a calculation
// finishes. It mirrors the persisted notification, not the raw result:
// subscribers see the same message text a store read would return.
type Delivery struct {
	Event          string            `json:"event"`
	NotificationID id.NotificationID `json:"notificationId"`
	RequestID      id.RequestID      `json:"requestId"`
	Message        string            `json:"message"`
	CreatedBy      string            `json:"createdBy"`
	CreatedAt      time.Time         `json:"createdAtUtc"`
}

// EventCalcResult is the Delivery.Event value for completed calculations.
const EventCalcResult = "calc.result"

// Notifier pushes a delivery to one user. Implementations must treat an
// offline or unknown user as a successful no-op.
type Notifier interface {
	Deliver(ctx context.Context, userID string, d Delivery) error
}

// LogNotifier writes deliveries to a logger instead of a transport.
// Useful as a default when no real-time channel is configured.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a LogNotifier on the given logger.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Deliver implements Notifier.
func (n *LogNotifier) Deliver(_ context.Context, userID string, d Delivery) error {
	n.logger.Info("notification delivered",
		slog.String("user_id", userID),
		slog.String("event", d.Event),
		slog.String("notification_id", d.NotificationID.String()),
		slog.String("message", d.Message),
	)
	return nil
}
