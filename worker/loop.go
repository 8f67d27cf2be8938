package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/xraph/calcq/id"
	"github.com/xraph/calcq/message"
	"github.com/xraph/calcq/middleware"
	"github.com/xraph/calcq/queue"
)

// DefaultErrorBackoff is the pause after a processing failure before the
// loop resumes draining.
const DefaultErrorBackoff = time.Second

// Loop is the single consumer of the in-process queue. It blocks until
// items are signaled, drains everything that is queued, and runs each
// request through the middleware chain into the Processor. Processing
// failures are logged and absorbed; the loop only exits on Stop.
type Loop struct {
	queue        *queue.BoundedQueue
	proc         *Processor
	chain        middleware.Middleware
	limiter      *rate.Limiter
	errorBackoff time.Duration
	workerID     id.WorkerID
	logger       *slog.Logger

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	mu       sync.Mutex
	running  bool

	// waitCancel unblocks a pending WaitForItem when the loop stops.
	waitCancel context.CancelFunc

	// activeCancel cancels the in-flight request on shutdown deadline.
	activeMu     sync.Mutex
	activeCancel context.CancelFunc
}

// LoopOption configures a Loop.
type LoopOption func(*Loop)

// WithMiddleware sets the middleware chain requests pass through.
func WithMiddleware(mws ...middleware.Middleware) LoopOption {
	return func(l *Loop) { l.chain = middleware.Chain(mws...) }
}

// WithRateLimit throttles the drain to r requests per second with the
// given burst. A zero rate disables throttling.
func WithRateLimit(r rate.Limit, burst int) LoopOption {
	return func(l *Loop) {
		if r > 0 {
			l.limiter = rate.NewLimiter(r, burst)
		}
	}
}

// WithErrorBackoff sets the pause after a processing failure.
func WithErrorBackoff(d time.Duration) LoopOption {
	return func(l *Loop) { l.errorBackoff = d }
}

// NewLoop creates the queue consumer loop.
func NewLoop(q *queue.BoundedQueue, proc *Processor, logger *slog.Logger, opts ...LoopOption) *Loop {
	l := &Loop{
		queue:        q,
		proc:         proc,
		chain:        middleware.Chain(),
		errorBackoff: DefaultErrorBackoff,
		workerID:     id.NewWorkerID(),
		logger:       logger,
		stopCh:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// WorkerID returns the loop's unique worker identifier.
func (l *Loop) WorkerID() id.WorkerID { return l.workerID }

// Start launches the consumer goroutine. It returns immediately.
func (l *Loop) Start(_ context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.running {
		return nil
	}
	l.running = true

	waitCtx, cancel := context.WithCancel(context.Background())
	l.waitCancel = cancel

	l.logger.Info("worker loop starting",
		slog.String("worker_id", l.workerID.String()),
	)

	l.wg.Add(1)
	go l.run(waitCtx)
	return nil
}

// Stop signals the loop to stop and waits for the in-flight request to
// finish. If the context has a deadline, the in-flight request is
// cancelled when time runs out.
func (l *Loop) Stop(ctx context.Context) error {
	l.mu.Lock()
	if !l.running {
		l.mu.Unlock()
		return nil
	}
	l.running = false
	l.mu.Unlock()

	l.logger.Info("worker loop stopping", slog.String("worker_id", l.workerID.String()))

	l.stopOnce.Do(func() { close(l.stopCh) })
	l.waitCancel()

	done := make(chan struct{})
	go func() {
		l.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		l.logger.Info("worker loop stopped gracefully")
	case <-ctx.Done():
		l.logger.Warn("worker loop shutdown timed out, cancelling active request")
		l.cancelActive()
		l.wg.Wait()
	}

	return nil
}

// run blocks on the item signal and drains the queue completely each
// time it wakes. Draining after every wake-up keeps surplus wake-up
// credits harmless: a wake-up with an already-empty queue is a no-op.
func (l *Loop) run(waitCtx context.Context) {
	defer l.wg.Done()

	for {
		select {
		case <-l.stopCh:
			return
		default:
		}

		if err := l.queue.WaitForItem(waitCtx); err != nil {
			return
		}
		l.drain()
	}
}

// drain processes every queued request sequentially until the queue is
// empty.
func (l *Loop) drain() {
	for {
		select {
		case <-l.stopCh:
			return
		default:
		}

		req, ok := l.queue.TryDequeue()
		if !ok {
			return
		}

		if l.limiter != nil {
			if err := l.limiter.Wait(context.Background()); err != nil {
				return
			}
		}

		l.processOne(req)
	}
}

func (l *Loop) processOne(req *message.CalculationRequest) {
	ctx, cancel := context.WithCancel(context.Background())
	l.activeMu.Lock()
	l.activeCancel = cancel
	l.activeMu.Unlock()

	err := l.chain(ctx, req, func(ctx context.Context) error {
		_, procErr := l.proc.Process(ctx, req)
		return procErr
	})

	l.activeMu.Lock()
	l.activeCancel = nil
	l.activeMu.Unlock()
	cancel()

	if err != nil {
		l.logger.Error("request processing failed",
			slog.String("request_id", req.RequestID.String()),
			slog.String("error", err.Error()),
		)
		l.sleep(l.errorBackoff)
	}
}

// sleep pauses for d unless the loop is stopped first.
func (l *Loop) sleep(d time.Duration) {
	select {
	case <-time.After(d):
	case <-l.stopCh:
	}
}

func (l *Loop) cancelActive() {
	l.activeMu.Lock()
	defer l.activeMu.Unlock()
	if l.activeCancel != nil {
		l.activeCancel()
	}
}
