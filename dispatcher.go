package calcq

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/time/rate"

	"github.com/xraph/calcq/calc"
	"github.com/xraph/calcq/hook"
	"github.com/xraph/calcq/id"
	"github.com/xraph/calcq/message"
	"github.com/xraph/calcq/middleware"
	"github.com/xraph/calcq/notify"
	"github.com/xraph/calcq/queue"
	"github.com/xraph/calcq/store"
	"github.com/xraph/calcq/worker"
)

// Dispatcher is the in-process front of the pipeline: it admits
// calculation requests into a bounded queue and runs the single
// consumer loop that turns them into recorded, delivered results.
type Dispatcher struct {
	cfg    Config
	logger *slog.Logger

	signals       store.SignalStore
	notifications store.NotificationStore
	notifier      notify.Notifier
	registry      *calc.Registry
	hooks         *hook.Registry
	pendingHooks  []hook.Hook
	mws           []middleware.Middleware

	queue *queue.BoundedQueue
	loop  *worker.Loop

	mu      sync.Mutex
	running bool
}

// SubmitInput describes one calculation request. AssetID and ColumnName
// are required; UserID addresses the result to a user, UserName is
// recorded as the notification author.
type SubmitInput struct {
	AssetID    string
	ColumnName string
	UserID     string
	UserName   string
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithConfig replaces the entire configuration.
func WithConfig(cfg Config) Option {
	return func(d *Dispatcher) { d.cfg = cfg }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) { d.logger = logger }
}

// WithSignalStore sets the store aggregates read from.
func WithSignalStore(s store.SignalStore) Option {
	return func(d *Dispatcher) { d.signals = s }
}

// WithNotificationStore sets the store results are recorded into.
func WithNotificationStore(s store.NotificationStore) Option {
	return func(d *Dispatcher) { d.notifications = s }
}

// WithNotifier sets the real-time delivery channel. Without one,
// results are only persisted.
func WithNotifier(n notify.Notifier) Option {
	return func(d *Dispatcher) { d.notifier = n }
}

// WithRegistry replaces the aggregate registry. The default registry
// maps the Strength column to its mean.
func WithRegistry(r *calc.Registry) Option {
	return func(d *Dispatcher) { d.registry = r }
}

// WithMiddleware appends middleware around request processing.
func WithMiddleware(mws ...middleware.Middleware) Option {
	return func(d *Dispatcher) { d.mws = append(d.mws, mws...) }
}

// WithHook registers a lifecycle hook.
func WithHook(h hook.Hook) Option {
	return func(d *Dispatcher) { d.pendingHooks = append(d.pendingHooks, h) }
}

// WithQueueCapacity overrides the admission capacity. Zero or negative
// means unbounded.
func WithQueueCapacity(n int) Option {
	return func(d *Dispatcher) { d.cfg.QueueCapacity = n }
}

// New assembles a Dispatcher. A signal store and a notification store
// are required unless a custom registry replaces the signal reads.
func New(opts ...Option) (*Dispatcher, error) {
	d := &Dispatcher{
		cfg:    DefaultConfig(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}

	if d.registry == nil {
		if d.signals == nil {
			return nil, ErrNoSignalStore
		}
		d.registry = calc.DefaultRegistry(d.signals)
	}
	if d.notifications == nil {
		return nil, ErrNoNotificationStore
	}

	if d.hooks == nil {
		d.hooks = hook.NewRegistry(d.logger)
	}
	for _, h := range d.pendingHooks {
		d.hooks.Register(h)
	}
	d.pendingHooks = nil

	d.queue = queue.New(d.cfg.QueueCapacity)

	proc := worker.NewProcessor(d.registry, d.notifications, d.notifier, d.hooks, d.logger)

	loopOpts := []worker.LoopOption{
		worker.WithMiddleware(d.mws...),
	}
	if d.cfg.ErrorBackoff > 0 {
		loopOpts = append(loopOpts, worker.WithErrorBackoff(d.cfg.ErrorBackoff))
	}
	if d.cfg.DrainRate > 0 {
		burst := d.cfg.DrainBurst
		if burst <= 0 {
			burst = 1
		}
		loopOpts = append(loopOpts, worker.WithRateLimit(rate.Limit(d.cfg.DrainRate), burst))
	}
	d.loop = worker.NewLoop(d.queue, proc, d.logger, loopOpts...)

	return d, nil
}

// Submit validates input and admits a request into the queue. When the
// queue is at capacity it waits up to Config.SubmitTimeout for a slot,
// then fails with ErrQueueFull. The returned RequestID correlates the
// eventual result and notification.
func (d *Dispatcher) Submit(ctx context.Context, in SubmitInput) (id.RequestID, error) {
	if in.AssetID == "" {
		return id.RequestID{}, fmt.Errorf("%w: asset id is required", ErrInvalidRequest)
	}
	if in.ColumnName == "" {
		return id.RequestID{}, fmt.Errorf("%w: column name is required", ErrInvalidRequest)
	}

	req := message.NewRequest(in.AssetID, in.ColumnName, in.UserID, in.UserName)

	enqCtx := ctx
	if d.cfg.SubmitTimeout > 0 {
		var cancel context.CancelFunc
		enqCtx, cancel = context.WithTimeoutCause(ctx, d.cfg.SubmitTimeout, ErrQueueFull)
		defer cancel()
	}

	if err := d.queue.Enqueue(enqCtx, req); err != nil {
		// A timed-out wait surfaces as ErrQueueFull via the timeout
		// cause; caller cancellation keeps its own cause.
		if cause := context.Cause(enqCtx); cause != nil {
			return id.RequestID{}, cause
		}
		return id.RequestID{}, err
	}

	d.hooks.EmitRequestEnqueued(ctx, req)
	d.logger.Debug("request admitted",
		slog.String("request_id", req.RequestID.String()),
		slog.String("asset_id", req.AssetID),
		slog.String("column", req.ColumnName),
	)
	return req.RequestID, nil
}

// Start launches the consumer loop.
func (d *Dispatcher) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.running {
		return nil
	}
	d.running = true

	d.logger.Info("dispatcher starting",
		slog.Int("queue_capacity", d.cfg.QueueCapacity),
	)
	return d.loop.Start(ctx)
}

// Stop drains gracefully and fires shutdown hooks. When ctx carries no
// deadline, Config.ShutdownTimeout bounds the wait.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return nil
	}
	d.running = false
	d.mu.Unlock()

	if _, ok := ctx.Deadline(); !ok && d.cfg.ShutdownTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.cfg.ShutdownTimeout)
		defer cancel()
	}

	err := d.loop.Stop(ctx)
	d.hooks.EmitShutdown(ctx)
	d.logger.Info("dispatcher stopped")
	return err
}

// Queue exposes the underlying bounded queue, mainly for introspection.
func (d *Dispatcher) Queue() *queue.BoundedQueue { return d.queue }

// Registry returns the aggregate registry for extension.
func (d *Dispatcher) Registry() *calc.Registry { return d.registry }

// Hooks returns the lifecycle hook registry.
func (d *Dispatcher) Hooks() *hook.Registry { return d.hooks }
