// Package worker contains the consumer side of the calculation pipeline:
// the Processor turns one request into one recorded, delivered result,
// and the Loop drains the in-process queue through it.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xraph/calcq/calc"
	"github.com/xraph/calcq/hook"
	"github.com/xraph/calcq/message"
	"github.com/xraph/calcq/notify"
	"github.com/xraph/calcq/store"
)

// SystemUser is recorded as the notification author when the request
// carries no user name.
const SystemUser = "system"

// Processor executes the request → result → notification pipeline.
// Calculation failures (unsupported column, store read errors) are
// absorbed into the result's Error field; only persistence failures
// surface as errors, so callers can retry or reject the transport
// message without losing the "every request yields a result" contract.
type Processor struct {
	registry      *calc.Registry
	notifications store.NotificationStore
	notifier      notify.Notifier
	hooks         *hook.Registry
	logger        *slog.Logger
}

// NewProcessor wires a processor. notifier may be nil to disable
// real-time delivery; hooks may be nil to disable lifecycle events.
func NewProcessor(
	registry *calc.Registry,
	notifications store.NotificationStore,
	notifier notify.Notifier,
	hooks *hook.Registry,
	logger *slog.Logger,
) *Processor {
	return &Processor{
		registry:      registry,
		notifications: notifications,
		notifier:      notifier,
		hooks:         hooks,
		logger:        logger,
	}
}

// Compute runs the aggregate for req and always returns a result. A
// failed computation yields Average 0.0 with the error text recorded on
// the result.
func (p *Processor) Compute(ctx context.Context, req *message.CalculationRequest) *message.CalculationResult {
	res := message.NewResult(req)

	avg, err := p.registry.Compute(ctx, req.AssetID, req.ColumnName)
	if err != nil {
		res.Average = 0
		res.Error = err.Error()
		p.logger.Warn("calculation failed",
			slog.String("request_id", req.RequestID.String()),
			slog.String("asset_id", req.AssetID),
			slog.String("column", req.ColumnName),
			slog.String("error", err.Error()),
		)
		return res
	}

	res.Average = avg
	return res
}

// Record persists the notification for res and, when the result is
// addressed to a user, links it to that user. Returns the persisted
// notification.
func (p *Processor) Record(ctx context.Context, res *message.CalculationResult) (*store.Notification, error) {
	createdBy := res.UserName
	if createdBy == "" {
		createdBy = SystemUser
	}

	n := store.NewNotification(res.Text(), createdBy)
	if err := p.notifications.CreateNotification(ctx, n); err != nil {
		return nil, fmt.Errorf("worker: persist notification for request %s: %w", res.RequestID, err)
	}

	if res.UserID != "" {
		un := &store.UserNotification{
			UserID:         res.UserID,
			NotificationID: n.ID,
		}
		if err := p.notifications.CreateUserNotification(ctx, un); err != nil {
			return nil, fmt.Errorf("worker: link notification %s to user %s: %w", n.ID, res.UserID, err)
		}
	}

	if p.hooks != nil {
		p.hooks.EmitResultRecorded(ctx, res)
	}
	return n, nil
}

// Deliver pushes the recorded outcome to the addressed user. Results
// without a user are recorded but not pushed; delivery failures are
// logged and swallowed, the persisted notification is the durable record.
func (p *Processor) Deliver(ctx context.Context, res *message.CalculationResult, n *store.Notification) {
	if p.notifier == nil {
		return
	}
	if res.UserID == "" {
		p.logger.Debug("result has no addressed user, skipping delivery",
			slog.String("request_id", res.RequestID.String()),
		)
		return
	}

	d := notify.Delivery{
		Event:          notify.EventCalcResult,
		NotificationID: n.ID,
		RequestID:      res.RequestID,
		Message:        n.Message,
		CreatedBy:      n.CreatedBy,
		CreatedAt:      n.CreatedAt,
	}
	if err := p.notifier.Deliver(ctx, res.UserID, d); err != nil {
		p.logger.Warn("delivery failed",
			slog.String("request_id", res.RequestID.String()),
			slog.String("user_id", res.UserID),
			slog.String("error", err.Error()),
		)
	}
}

// Process runs the full pipeline for one request: compute, record,
// deliver. The returned result is always non-nil; a non-nil error means
// the result could not be recorded.
func (p *Processor) Process(ctx context.Context, req *message.CalculationRequest) (*message.CalculationResult, error) {
	start := time.Now()

	res := p.Compute(ctx, req)
	n, err := p.Record(ctx, res)
	if err != nil {
		return res, err
	}
	p.Deliver(ctx, res, n)

	if p.hooks != nil {
		p.hooks.EmitRequestCompleted(ctx, res, time.Since(start))
	}
	return res, nil
}

// HandleResult records and delivers an already-computed result. Used by
// the broker listener, which receives results computed elsewhere.
func (p *Processor) HandleResult(ctx context.Context, res *message.CalculationResult) error {
	n, err := p.Record(ctx, res)
	if err != nil {
		return err
	}
	p.Deliver(ctx, res, n)
	return nil
}
