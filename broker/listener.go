package broker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/xraph/calcq/backoff"
	"github.com/xraph/calcq/message"
)

// ResultHandler records a computed result and forwards it to the
// addressed user. worker.Processor satisfies this.
type ResultHandler interface {
	HandleResult(ctx context.Context, res *message.CalculationResult) error
}

// DialFunc establishes one broker connection attempt. The listener owns
// the retry policy around it.
type DialFunc func(ctx context.Context) (ChannelOpener, error)

// AMQPDial returns a DialFunc performing a single AMQP dial with cfg.
func AMQPDial(cfg Config) DialFunc {
	return func(_ context.Context) (ChannelOpener, error) {
		conn, err := amqp.Dial(cfg.AMQPURL())
		if err != nil {
			return nil, err
		}
		return &Conn{raw: conn}, nil
	}
}

// Listener consumes the results queue, persisting and forwarding each
// result through its handler. Unlike the request consumer it never
// gives up on the broker: connection loss triggers reconnection with
// exponential backoff, capped at 30 seconds, forever.
type Listener struct {
	dial    DialFunc
	handler ResultHandler
	cfg     Config
	logger  *slog.Logger

	strategy backoff.Strategy

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	mu       sync.Mutex
	running  bool
}

// ListenerOption configures a Listener.
type ListenerOption func(*Listener)

// WithReconnectStrategy overrides the reconnect delay policy.
func WithReconnectStrategy(s backoff.Strategy) ListenerOption {
	return func(l *Listener) { l.strategy = s }
}

// NewListener creates a result listener. It does not connect until
// Start is called.
func NewListener(dial DialFunc, handler ResultHandler, cfg Config, logger *slog.Logger, opts ...ListenerOption) *Listener {
	l := &Listener{
		dial:     dial,
		handler:  handler,
		cfg:      cfg,
		logger:   logger,
		strategy: backoff.Exponential(5*time.Second, 30*time.Second),
		stopCh:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Start launches the listen/reconnect loop. It returns immediately;
// connection failures are retried in the background.
func (l *Listener) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.running {
		return nil
	}
	l.running = true

	l.logger.Info("result listener starting",
		slog.String("queue", l.cfg.ResultsQueue),
	)

	l.wg.Add(1)
	go l.run(ctx)
	return nil
}

// Stop signals the loop to exit and waits for it.
func (l *Listener) Stop(_ context.Context) error {
	l.mu.Lock()
	if !l.running {
		l.mu.Unlock()
		return nil
	}
	l.running = false
	l.mu.Unlock()

	l.stopOnce.Do(func() { close(l.stopCh) })
	l.wg.Wait()

	l.logger.Info("result listener stopped")
	return nil
}

// run cycles connect → consume → backoff until stopped. A successful
// consume session resets the backoff attempt counter.
func (l *Listener) run(ctx context.Context) {
	defer l.wg.Done()

	attempt := 0
	for {
		select {
		case <-l.stopCh:
			return
		default:
		}

		opener, err := l.dial(ctx)
		if err != nil {
			attempt++
			l.logger.Warn("result listener dial failed",
				slog.Int("attempt", attempt),
				slog.String("error", err.Error()),
			)
			if !l.pause(attempt) {
				return
			}
			continue
		}

		attempt = 0
		l.consume(ctx, opener)

		select {
		case <-l.stopCh:
			return
		default:
		}

		attempt++
		l.logger.Warn("result stream interrupted, reconnecting",
			slog.Int("attempt", attempt),
		)
		if !l.pause(attempt) {
			return
		}
	}
}

// consume runs one session: open a channel, declare the queue and drain
// deliveries until the stream or the listener closes.
func (l *Listener) consume(ctx context.Context, opener ChannelOpener) {
	ch, err := opener.OpenChannel()
	if err != nil {
		l.logger.Warn("result listener channel failed", slog.String("error", err.Error()))
		l.closeOpener(opener)
		return
	}
	defer func() {
		ch.Close() //nolint:errcheck
		l.closeOpener(opener)
	}()

	if _, err := declareQueue(ch, l.cfg.ResultsQueue); err != nil {
		l.logger.Warn("result queue declare failed", slog.String("error", err.Error()))
		return
	}
	if err := ch.Qos(1, 0, false); err != nil {
		l.logger.Warn("result listener prefetch failed", slog.String("error", err.Error()))
		return
	}

	deliveries, err := ch.Consume(l.cfg.ResultsQueue, "", false, false, false, false, nil)
	if err != nil {
		l.logger.Warn("result consume failed", slog.String("error", err.Error()))
		return
	}

	l.logger.Info("result listener connected", slog.String("queue", l.cfg.ResultsQueue))

	for {
		select {
		case <-l.stopCh:
			return
		case d, ok := <-deliveries:
			if !ok {
				return
			}
			l.handle(ctx, d)
		}
	}
}

func (l *Listener) handle(ctx context.Context, d amqp.Delivery) {
	res, err := message.DecodeResult(d.Body)
	if err != nil {
		l.logger.Warn("dropping undecodable result",
			slog.String("error", err.Error()),
		)
		l.ack(d)
		return
	}

	if err := l.handler.HandleResult(ctx, res); err != nil {
		l.logger.Error("result handling failed, rejecting",
			slog.String("request_id", res.RequestID.String()),
			slog.String("error", err.Error()),
		)
		if nackErr := d.Nack(false, false); nackErr != nil {
			l.logger.Warn("nack failed", slog.String("error", nackErr.Error()))
		}
		return
	}

	l.ack(d)
}

func (l *Listener) ack(d amqp.Delivery) {
	if err := d.Ack(false); err != nil {
		l.logger.Warn("ack failed", slog.String("error", err.Error()))
	}
}

// pause sleeps per the reconnect strategy; returns false if the
// listener was stopped while waiting.
func (l *Listener) pause(attempt int) bool {
	t := time.NewTimer(l.strategy(attempt))
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-l.stopCh:
		return false
	}
}

// closeOpener closes the connection behind an opener when it owns one.
func (l *Listener) closeOpener(opener ChannelOpener) {
	if c, ok := opener.(*Conn); ok {
		c.Close() //nolint:errcheck
	}
}
