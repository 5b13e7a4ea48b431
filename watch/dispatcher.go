package watch

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/fwojciec/stockwatch"
	"golang.org/x/time/rate"
)

const (
	// DefaultSendRate is the sustained number of messages sent per second.
	DefaultSendRate = 1
	// DefaultSendBurst is the number of messages sent back to back.
	DefaultSendBurst = 3
	// DefaultSendTimeout bounds a single delivery attempt.
	DefaultSendTimeout = 15 * time.Second
	// DefaultDrainTimeout bounds how long Close waits for queued messages.
	DefaultDrainTimeout = 30 * time.Second

	queueSize = 256
)

// Dispatcher delivers notifications in the order they were queued from a
// single goroutine, rate limited, retrying failed deliveries. A message that
// still fails is logged and dropped; the tracker state that produced it is
// not rolled back.
type Dispatcher struct {
	notifier     stockwatch.Notifier
	limiter      *rate.Limiter
	retryDelays  []time.Duration
	sendTimeout  time.Duration
	drainTimeout time.Duration
	logger       *slog.Logger

	queue  chan string
	done   chan struct{}
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.RWMutex
	closed bool
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithSendRate sets the sustained send rate and burst.
func WithSendRate(limit rate.Limit, burst int) DispatcherOption {
	return func(d *Dispatcher) {
		d.limiter = rate.NewLimiter(limit, burst)
	}
}

// WithSendRetryDelays sets the waits between delivery attempts.
func WithSendRetryDelays(delays []time.Duration) DispatcherOption {
	return func(d *Dispatcher) {
		d.retryDelays = delays
	}
}

// WithDrainTimeout sets how long Close waits for queued messages.
func WithDrainTimeout(timeout time.Duration) DispatcherOption {
	return func(d *Dispatcher) {
		d.drainTimeout = timeout
	}
}

// WithDispatcherLogger sets the logger for delivery failures.
func WithDispatcherLogger(logger *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

// NewDispatcher starts a Dispatcher delivering to notifier.
// Close must be called to flush queued messages and stop it.
func NewDispatcher(notifier stockwatch.Notifier, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		notifier:     notifier,
		limiter:      rate.NewLimiter(DefaultSendRate, DefaultSendBurst),
		retryDelays:  DefaultRetryDelays(),
		sendTimeout:  DefaultSendTimeout,
		drainTimeout: DefaultDrainTimeout,
		logger:       slog.Default(),
		queue:        make(chan string, queueSize),
		done:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.ctx, d.cancel = context.WithCancel(context.Background())

	go d.run()
	return d
}

// Dispatch queues the message for ev.
func (d *Dispatcher) Dispatch(ctx context.Context, ev *stockwatch.Event) error {
	return d.Send(ctx, FormatEvent(ev))
}

// Send queues text for delivery. It blocks only while the queue is full,
// and returns EUNAVAILABLE once the Dispatcher is closed.
func (d *Dispatcher) Send(ctx context.Context, text string) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return stockwatch.Errorf(stockwatch.EUNAVAILABLE, "notifications are shut down")
	}

	select {
	case d.queue <- text:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting messages and waits for queued ones to be delivered.
// Messages still queued after the drain timeout are dropped.
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		<-d.done
		return nil
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	timer := time.NewTimer(d.drainTimeout)
	defer timer.Stop()

	select {
	case <-d.done:
		d.cancel()
		return nil
	case <-timer.C:
		d.cancel()
		<-d.done
		return stockwatch.Errorf(stockwatch.EUNAVAILABLE, "notifications still pending after %s were dropped", d.drainTimeout)
	}
}

func (d *Dispatcher) run() {
	defer close(d.done)

	for text := range d.queue {
		if err := d.limiter.Wait(d.ctx); err != nil {
			d.logger.Warn("notification dropped", "err", err)
			continue
		}

		err := retryWithDelays(d.ctx, d.retryDelays, d.send(text), func(attempt int, err error) {
			d.logger.Debug("retrying notification", "attempt", attempt, "err", err)
		})
		if err != nil {
			d.logger.Error("notification failed", "err", err)
		}
	}
}

func (d *Dispatcher) send(text string) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, d.sendTimeout)
		defer cancel()
		err := d.notifier.Notify(ctx, text)
		if errors.Is(err, stockwatch.ErrUnconfirmed) {
			return permanent(err)
		}
		return err
	}
}
