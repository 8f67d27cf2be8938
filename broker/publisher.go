package broker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/xraph/calcq"
	"github.com/xraph/calcq/message"
)

// Publisher pushes calculation requests onto the durable request queue
// with depth-based backpressure: before each publish it checks the queue
// depth and waits, up to Config.PublishWaitTimeout, for it to drop below
// Config.MaxQueueLength. Safe for concurrent use; publishes are
// serialized on one channel.
type Publisher struct {
	opener ChannelOpener
	cfg    Config
	logger *slog.Logger

	mu sync.Mutex
	ch Channel
}

// NewPublisher opens a channel and ensures the request queue exists.
func NewPublisher(opener ChannelOpener, cfg Config, logger *slog.Logger) (*Publisher, error) {
	ch, err := opener.OpenChannel()
	if err != nil {
		return nil, err
	}
	if _, err := declareQueue(ch, cfg.RequestsQueue); err != nil {
		ch.Close() //nolint:errcheck
		return nil, err
	}
	return &Publisher{
		opener: opener,
		cfg:    cfg,
		logger: logger,
		ch:     ch,
	}, nil
}

// Publish enqueues req onto the configured request queue.
func (p *Publisher) Publish(ctx context.Context, req *message.CalculationRequest) error {
	return p.PublishTo(ctx, p.cfg.RequestsQueue, req)
}

// PublishTo enqueues req onto the named queue. When the queue is at or
// above MaxQueueLength it polls the depth until there is room or
// PublishWaitTimeout elapses, then fails with calcq.ErrQueueFull. A
// MaxQueueLength of zero or less means unbounded: the message is
// published immediately without inspecting the depth. A canceled ctx
// aborts the wait with ctx's error.
func (p *Publisher) PublishTo(ctx context.Context, queue string, req *message.CalculationRequest) error {
	data, err := message.EncodeRequest(req)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cfg.MaxQueueLength > 0 {
		deadline := time.Now().Add(p.cfg.PublishWaitTimeout)
		for {
			depth, err := p.queueDepth(queue)
			if err != nil {
				return err
			}

			if depth < p.cfg.MaxQueueLength {
				break
			}

			remaining := time.Until(deadline)
			if remaining <= 0 {
				p.logger.Warn("request queue saturated",
					slog.String("queue", queue),
					slog.Int("depth", depth),
					slog.Int("max", p.cfg.MaxQueueLength),
				)
				return calcq.ErrQueueFull
			}

			if err := p.pause(ctx, remaining); err != nil {
				return err
			}
		}
	}

	err = p.ch.PublishWithContext(ctx, "", queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    req.RequestID.String(),
		Timestamp:    req.EnqueuedAt,
		Body:         data,
	})
	if err != nil {
		return fmt.Errorf("broker: publish request %s: %w", req.RequestID, err)
	}

	p.logger.Debug("request published",
		slog.String("request_id", req.RequestID.String()),
		slog.String("queue", queue),
	)
	return nil
}

// queueDepth reads the current message count via a passive declare. A
// 404 means the queue vanished (e.g. broker restart with a non-durable
// setup); the failed declare has closed our channel, so reopen one and
// redeclare the queue, which restores a depth of zero.
func (p *Publisher) queueDepth(queue string) (int, error) {
	q, err := p.ch.QueueDeclarePassive(queue, true, false, false, false, nil)
	if err == nil {
		return q.Messages, nil
	}
	if !isNotFound(err) {
		return 0, fmt.Errorf("broker: inspect queue %s: %w", queue, err)
	}

	p.logger.Warn("request queue missing, redeclaring",
		slog.String("queue", queue),
	)

	ch, err := p.opener.OpenChannel()
	if err != nil {
		return 0, err
	}
	if _, err := declareQueue(ch, queue); err != nil {
		ch.Close() //nolint:errcheck
		return 0, err
	}
	p.ch = ch
	return 0, nil
}

// pause sleeps for the poll interval, capped by the remaining wait
// budget, honoring ctx cancellation.
func (p *Publisher) pause(ctx context.Context, remaining time.Duration) error {
	d := p.cfg.PollInterval
	if remaining < d {
		d = remaining
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close releases the publisher's channel.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ch.Close()
}
