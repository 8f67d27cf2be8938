// Package broker is the durable RabbitMQ transport for calculation
// requests and results. It declares one queue per direction, applies
// depth-based backpressure on the publishing side, and processes one
// message at a time on the consuming side.
package broker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/xraph/calcq"
	"github.com/xraph/calcq/backoff"
)

// Channel is the slice of *amqp.Channel the transport uses. Narrowing
// the surface keeps publishers and consumers testable against fakes.
type Channel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	QueueDeclarePassive(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Qos(prefetchCount, prefetchSize int, global bool) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	Close() error
}

// ChannelOpener opens fresh channels on an established connection. A
// failed passive declare closes the AMQP channel it ran on, so the
// publisher needs to reopen mid-flight.
type ChannelOpener interface {
	OpenChannel() (Channel, error)
}

// Conn wraps an established AMQP connection.
type Conn struct {
	raw *amqp.Connection
}

// OpenChannel implements ChannelOpener.
func (c *Conn) OpenChannel() (Channel, error) {
	ch, err := c.raw.Channel()
	if err != nil {
		return nil, fmt.Errorf("broker: open channel: %w", err)
	}
	return ch, nil
}

// Close closes the underlying connection.
func (c *Conn) Close() error {
	return c.raw.Close()
}

// Dial connects to the broker with a bounded retry budget: up to
// cfg.DialAttempts attempts, cfg.DialDelay apart. When the budget is
// exhausted the returned error wraps calcq.ErrBrokerUnreachable, so
// callers can treat it as fatal.
func Dial(ctx context.Context, cfg Config, logger *slog.Logger) (*Conn, error) {
	strategy := backoff.Constant(cfg.DialDelay)

	var lastErr error
	for attempt := 1; attempt <= cfg.DialAttempts; attempt++ {
		conn, err := amqp.Dial(cfg.AMQPURL())
		if err == nil {
			logger.Info("broker connected",
				slog.String("host", cfg.Host),
				slog.Int("attempt", attempt),
			)
			return &Conn{raw: conn}, nil
		}
		lastErr = err

		logger.Warn("broker dial failed",
			slog.String("host", cfg.Host),
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", cfg.DialAttempts),
			slog.String("error", err.Error()),
		)

		if attempt < cfg.DialAttempts {
			if err := backoff.Sleep(ctx, strategy, attempt); err != nil {
				return nil, err
			}
		}
	}
	return nil, fmt.Errorf("%w: %d attempts failed, last error: %v",
		calcq.ErrBrokerUnreachable, cfg.DialAttempts, lastErr)
}

// declareQueue declares a durable queue with the transport's standard
// settings. Declaration is idempotent on matching settings.
func declareQueue(ch Channel, name string) (amqp.Queue, error) {
	q, err := ch.QueueDeclare(name, true, false, false, false, nil)
	if err != nil {
		return amqp.Queue{}, fmt.Errorf("broker: declare queue %s: %w", name, err)
	}
	return q, nil
}

// isNotFound reports whether err is the AMQP 404 raised by a passive
// declare on a missing queue.
func isNotFound(err error) bool {
	var amqpErr *amqp.Error
	if !errors.As(err, &amqpErr) {
		return false
	}
	return amqpErr.Code == amqp.NotFound
}
