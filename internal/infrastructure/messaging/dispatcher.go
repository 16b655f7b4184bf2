package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kopilka-hub/kopilka/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// DISPATCHER
// The dispatcher sits between the event bus and the projection
// handlers: it routes each event to the handlers registered for its
// type, retries transient failures with backoff and parks exhausted
// deliveries in a dead letter queue. Cache invalidation and tier
// recomputation ride on this path, so a flaky Redis must not lose the
// event silently.
// ══════════════════════════════════════════════════════════════════════════════

// RetryConfig controls redelivery of failed handler invocations.
type RetryConfig struct {
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int

	// InitialBackoff is the delay before the first retry.
	InitialBackoff time.Duration

	// MaxBackoff caps the delay between retries.
	MaxBackoff time.Duration

	// Multiplier grows the delay after each retry.
	Multiplier float64
}

// DefaultRetryConfig returns the engine defaults.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     3,
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     5 * time.Second,
		Multiplier:     2.0,
	}
}

// backoff returns the delay before retry n (1-based), capped at MaxBackoff.
func (c RetryConfig) backoff(retry int) time.Duration {
	d := float64(c.InitialBackoff) * math.Pow(c.Multiplier, float64(retry-1))
	if d > float64(c.MaxBackoff) {
		d = float64(c.MaxBackoff)
	}
	return time.Duration(d)
}

// HandlerRegistration describes one handler bound to an event type.
type HandlerRegistration struct {
	// Name identifies the handler in logs and the dead letter queue.
	Name string

	// Handler is the function to invoke.
	Handler shared.EventHandler

	// Async runs the handler on a pooled goroutine.
	Async bool

	// MaxRetries overrides the dispatcher retry count when >= 0.
	MaxRetries int

	// Timeout bounds a single invocation; zero means no bound.
	Timeout time.Duration
}

// DispatcherConfig configures the dispatcher.
type DispatcherConfig struct {
	// EventBus is the bus the dispatcher consumes from.
	EventBus shared.EventBus

	// Logger for delivery diagnostics.
	Logger *slog.Logger

	// WorkerPoolSize caps concurrent async handler invocations.
	WorkerPoolSize int

	// RetryConfig is the default retry policy for all handlers.
	RetryConfig RetryConfig

	// DeadLetterQueueSize bounds the dead letter queue.
	DeadLetterQueueSize int
}

// DefaultDispatcherConfig returns defaults wired to the given bus.
func DefaultDispatcherConfig(bus shared.EventBus) DispatcherConfig {
	return DispatcherConfig{
		EventBus:            bus,
		WorkerPoolSize:      10,
		RetryConfig:         DefaultRetryConfig(),
		DeadLetterQueueSize: 1000,
	}
}

// Dispatcher routes bus events to registered handlers.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[shared.EventType][]HandlerRegistration

	eventBus   shared.EventBus
	logger     *slog.Logger
	retry      RetryConfig
	deadLetter *DeadLetterQueue

	workers chan struct{}
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool

	metrics dispatcherMetrics
}

type dispatcherMetrics struct {
	dispatched   int64
	succeeded    int64
	failed       int64
	retried      int64
	deadLettered int64
}

// DispatcherMetrics is a point-in-time snapshot of dispatch counters.
type DispatcherMetrics struct {
	Dispatched   int64
	Succeeded    int64
	Failed       int64
	Retried      int64
	DeadLettered int64
}

// NewDispatcher creates a dispatcher from the configuration.
func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.WorkerPoolSize <= 0 {
		cfg.WorkerPoolSize = 1
	}
	if cfg.DeadLetterQueueSize <= 0 {
		cfg.DeadLetterQueueSize = 100
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Dispatcher{
		handlers:   make(map[shared.EventType][]HandlerRegistration),
		eventBus:   cfg.EventBus,
		logger:     cfg.Logger,
		retry:      cfg.RetryConfig,
		deadLetter: NewDeadLetterQueue(cfg.DeadLetterQueueSize),
		workers:    make(chan struct{}, cfg.WorkerPoolSize),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// RegisterHandler binds a registration to an event type.
func (d *Dispatcher) RegisterHandler(eventType shared.EventType, reg HandlerRegistration) error {
	if reg.Handler == nil {
		return ErrNilHandler
	}
	if reg.Name == "" {
		reg.Name = fmt.Sprintf("handler_%s", eventType)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[eventType] = append(d.handlers[eventType], reg)
	return nil
}

// Register binds an async handler with the default retry policy.
func (d *Dispatcher) Register(eventType shared.EventType, name string, handler shared.EventHandler) error {
	return d.RegisterHandler(eventType, HandlerRegistration{
		Name:       name,
		Handler:    handler,
		Async:      true,
		MaxRetries: -1,
	})
}

// RegisterSync binds a handler that runs on the dispatching goroutine.
func (d *Dispatcher) RegisterSync(eventType shared.EventType, name string, handler shared.EventHandler) error {
	return d.RegisterHandler(eventType, HandlerRegistration{
		Name:       name,
		Handler:    handler,
		MaxRetries: -1,
	})
}

// Start subscribes the dispatcher to the bus. Registrations made after
// Start still take effect: routing reads the handler table per event.
func (d *Dispatcher) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.started {
		return nil
	}
	if err := d.eventBus.SubscribeAll(d.dispatch); err != nil {
		return fmt.Errorf("dispatcher: failed to subscribe: %w", err)
	}
	d.started = true
	return nil
}

// Stop cancels in-flight work and waits for handlers to finish.
func (d *Dispatcher) Stop() error {
	d.cancel()
	d.wg.Wait()

	if n := d.deadLetter.Size(); n > 0 {
		d.logger.Warn("stopping with undelivered events", "dead_letter_size", n)
	}
	return nil
}

// DeadLetters exposes the dead letter queue for inspection.
func (d *Dispatcher) DeadLetters() *DeadLetterQueue {
	return d.deadLetter
}

// Metrics returns a snapshot of the dispatch counters.
func (d *Dispatcher) Metrics() DispatcherMetrics {
	return DispatcherMetrics{
		Dispatched:   atomic.LoadInt64(&d.metrics.dispatched),
		Succeeded:    atomic.LoadInt64(&d.metrics.succeeded),
		Failed:       atomic.LoadInt64(&d.metrics.failed),
		Retried:      atomic.LoadInt64(&d.metrics.retried),
		DeadLettered: atomic.LoadInt64(&d.metrics.deadLettered),
	}
}

// dispatch routes one event to the handlers registered for its type.
func (d *Dispatcher) dispatch(event shared.Event) error {
	d.mu.RLock()
	regs := d.handlers[event.EventType()]
	d.mu.RUnlock()

	if len(regs) == 0 {
		return nil
	}

	atomic.AddInt64(&d.metrics.dispatched, 1)

	var firstErr error
	for _, reg := range regs {
		if reg.Async {
			d.wg.Add(1)
			go func(reg HandlerRegistration) {
				defer d.wg.Done()

				select {
				case d.workers <- struct{}{}:
					defer func() { <-d.workers }()
				case <-d.ctx.Done():
					return
				}
				_ = d.execute(reg, event)
			}(reg)
			continue
		}

		if err := d.execute(reg, event); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// execute runs one registration with timeout, retries and dead
// lettering. The returned error is the last attempt's error.
func (d *Dispatcher) execute(reg HandlerRegistration, event shared.Event) error {
	maxRetries := d.retry.MaxRetries
	if reg.MaxRetries >= 0 {
		maxRetries = reg.MaxRetries
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			atomic.AddInt64(&d.metrics.retried, 1)
			select {
			case <-time.After(d.retry.backoff(attempt)):
			case <-d.ctx.Done():
				return d.ctx.Err()
			}
		}

		lastErr = d.invoke(reg, event)
		if lastErr == nil {
			atomic.AddInt64(&d.metrics.succeeded, 1)
			return nil
		}

		d.logger.Warn("event handler attempt failed",
			"handler", reg.Name,
			"event_type", string(event.EventType()),
			"attempt", attempt+1,
			"error", lastErr,
		)
	}

	atomic.AddInt64(&d.metrics.failed, 1)
	atomic.AddInt64(&d.metrics.deadLettered, 1)
	d.deadLetter.Add(DeadLetterEntry{
		Event:       event,
		HandlerName: reg.Name,
		Error:       lastErr.Error(),
		Attempts:    maxRetries + 1,
		FailedAt:    time.Now().UTC(),
	})
	d.logger.Error("event handler exhausted retries",
		"handler", reg.Name,
		"event_type", string(event.EventType()),
		"error", lastErr,
	)
	return lastErr
}

// invoke runs the handler once, bounded by the registration timeout
// and protected against panics.
func (d *Dispatcher) invoke(reg HandlerRegistration, event shared.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %s: %v", ErrHandlerPanic, reg.Name, r)
		}
	}()

	if reg.Timeout <= 0 {
		return reg.Handler(event)
	}

	done := make(chan error, 1)
	go func() {
		done <- reg.Handler(event)
	}()

	select {
	case err := <-done:
		return err
	case <-time.After(reg.Timeout):
		return fmt.Errorf("dispatcher: handler %s timed out after %s", reg.Name, reg.Timeout)
	case <-d.ctx.Done():
		return d.ctx.Err()
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// DEAD LETTER QUEUE
// ══════════════════════════════════════════════════════════════════════════════

// DeadLetterEntry records an event that exhausted its retries.
type DeadLetterEntry struct {
	Event       shared.Event
	HandlerName string
	Error       string
	Attempts    int
	FailedAt    time.Time
}

// DeadLetterQueue is a bounded FIFO of failed deliveries. When full,
// the oldest entry is dropped: recent failures matter more for
// diagnosis than ancient ones.
type DeadLetterQueue struct {
	mu      sync.Mutex
	entries []DeadLetterEntry
	maxSize int
}

// NewDeadLetterQueue creates a queue bounded to maxSize entries.
func NewDeadLetterQueue(maxSize int) *DeadLetterQueue {
	return &DeadLetterQueue{maxSize: maxSize}
}

// Add appends an entry, evicting the oldest when full.
func (q *DeadLetterQueue) Add(entry DeadLetterEntry) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.entries) >= q.maxSize {
		q.entries = q.entries[1:]
	}
	q.entries = append(q.entries, entry)
}

// Entries returns a copy of the queued entries.
func (q *DeadLetterQueue) Entries() []DeadLetterEntry {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]DeadLetterEntry, len(q.entries))
	copy(out, q.entries)
	return out
}

// Size returns the number of queued entries.
func (q *DeadLetterQueue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// Clear drops all queued entries.
func (q *DeadLetterQueue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.entries = nil
}
