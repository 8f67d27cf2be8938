package broker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/xraph/calcq/calc"
	"github.com/xraph/calcq/message"
)

// Consumer drains the request queue one message at a time, computes the
// aggregate and publishes the result to the results queue. Prefetch is
// pinned to one so a slow calculation never hoards messages.
//
// Acknowledgement policy: undecodable payloads are acked and dropped
// (redelivery cannot fix them), computation errors become error-carrying
// results and are acked, and only a failed result publish nacks the
// request without requeue.
type Consumer struct {
	opener   ChannelOpener
	registry *calc.Registry
	cfg      Config
	logger   *slog.Logger

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	mu       sync.Mutex
	running  bool
	ch       Channel
}

// NewConsumer creates a request consumer on an established connection.
func NewConsumer(opener ChannelOpener, registry *calc.Registry, cfg Config, logger *slog.Logger) *Consumer {
	return &Consumer{
		opener:   opener,
		registry: registry,
		cfg:      cfg,
		logger:   logger,
		stopCh:   make(chan struct{}),
	}
}

// Start opens the consuming channel, declares both queues and launches
// the delivery loop.
func (c *Consumer) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return nil
	}

	ch, err := c.opener.OpenChannel()
	if err != nil {
		return err
	}
	if _, err := declareQueue(ch, c.cfg.RequestsQueue); err != nil {
		ch.Close() //nolint:errcheck
		return err
	}
	if _, err := declareQueue(ch, c.cfg.ResultsQueue); err != nil {
		ch.Close() //nolint:errcheck
		return err
	}
	if err := ch.Qos(1, 0, false); err != nil {
		ch.Close() //nolint:errcheck
		return fmt.Errorf("broker: set prefetch: %w", err)
	}

	deliveries, err := ch.Consume(c.cfg.RequestsQueue, "", false, false, false, false, nil)
	if err != nil {
		ch.Close() //nolint:errcheck
		return fmt.Errorf("broker: consume %s: %w", c.cfg.RequestsQueue, err)
	}

	c.ch = ch
	c.running = true

	c.logger.Info("request consumer started",
		slog.String("queue", c.cfg.RequestsQueue),
	)

	c.wg.Add(1)
	go c.loop(ctx, deliveries)
	return nil
}

// Stop closes the channel, which ends the delivery stream, and waits
// for the loop to finish.
func (c *Consumer) Stop(_ context.Context) error {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return nil
	}
	c.running = false
	ch := c.ch
	c.mu.Unlock()

	c.stopOnce.Do(func() { close(c.stopCh) })
	if ch != nil {
		ch.Close() //nolint:errcheck
	}
	c.wg.Wait()

	c.logger.Info("request consumer stopped")
	return nil
}

func (c *Consumer) loop(ctx context.Context, deliveries <-chan amqp.Delivery) {
	defer c.wg.Done()

	for {
		select {
		case <-c.stopCh:
			return
		case d, ok := <-deliveries:
			if !ok {
				return
			}
			c.handle(ctx, d)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, d amqp.Delivery) {
	req, err := message.DecodeRequest(d.Body)
	if err != nil {
		c.logger.Warn("dropping undecodable request",
			slog.String("error", err.Error()),
		)
		c.ack(d)
		return
	}

	res := message.NewResult(req)
	avg, err := c.registry.Compute(ctx, req.AssetID, req.ColumnName)
	if err != nil {
		res.Average = 0
		res.Error = err.Error()
		c.logger.Warn("calculation failed",
			slog.String("request_id", req.RequestID.String()),
			slog.String("column", req.ColumnName),
			slog.String("error", err.Error()),
		)
	} else {
		res.Average = avg
	}

	if err := c.publishResult(ctx, res); err != nil {
		c.logger.Error("result publish failed, rejecting request",
			slog.String("request_id", req.RequestID.String()),
			slog.String("error", err.Error()),
		)
		if nackErr := d.Nack(false, false); nackErr != nil {
			c.logger.Warn("nack failed", slog.String("error", nackErr.Error()))
		}
		return
	}

	c.ack(d)
	c.logger.Debug("request processed",
		slog.String("request_id", req.RequestID.String()),
		slog.Float64("average", res.Average),
	)
}

func (c *Consumer) publishResult(ctx context.Context, res *message.CalculationResult) error {
	data, err := message.EncodeResult(res)
	if err != nil {
		return err
	}
	err = c.ch.PublishWithContext(ctx, "", c.cfg.ResultsQueue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    res.RequestID.String(),
		Timestamp:    res.CompletedAt,
		Body:         data,
	})
	if err != nil {
		return fmt.Errorf("broker: publish result %s: %w", res.RequestID, err)
	}
	return nil
}

func (c *Consumer) ack(d amqp.Delivery) {
	if err := d.Ack(false); err != nil {
		c.logger.Warn("ack failed", slog.String("error", err.Error()))
	}
}
