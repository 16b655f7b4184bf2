// Package messaging delivers domain events inside the engine process.
// The in-memory bus fans events out to the handlers that keep tier
// caches and account projections in step with the write side; an
// optional relay mirrors the same stream to Redis pub/sub for
// observers outside the process.
package messaging

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/kopilka-hub/kopilka/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrEventBusClosed is returned when publishing to a closed bus.
	ErrEventBusClosed = errors.New("eventbus: bus is closed")

	// ErrHandlerPanic wraps a panic recovered from an event handler.
	ErrHandlerPanic = errors.New("eventbus: handler panicked")

	// ErrNilHandler is returned when subscribing a nil handler.
	ErrNilHandler = errors.New("eventbus: handler cannot be nil")
)

// ══════════════════════════════════════════════════════════════════════════════
// IN-MEMORY EVENT BUS
// ══════════════════════════════════════════════════════════════════════════════

// InMemoryEventBusConfig configures the in-memory bus.
type InMemoryEventBusConfig struct {
	// AsyncMode delivers events on goroutines instead of the caller.
	AsyncMode bool

	// WorkerPoolSize caps concurrent async deliveries.
	WorkerPoolSize int

	// Logger for delivery failures.
	Logger *slog.Logger
}

// DefaultInMemoryEventBusConfig returns the engine defaults: async
// delivery with a small worker pool, so command handlers never wait
// on projection refreshes.
func DefaultInMemoryEventBusConfig() InMemoryEventBusConfig {
	return InMemoryEventBusConfig{
		AsyncMode:      true,
		WorkerPoolSize: 10,
	}
}

// InMemoryEventBus implements shared.EventBus with in-process delivery.
//
// Publish never fails a command for a handler error: the durable state
// change already committed by the time the event is emitted, so
// delivery failures are logged and counted, not propagated.
type InMemoryEventBus struct {
	mu          sync.RWMutex
	handlers    map[shared.EventType][]shared.EventHandler
	allHandlers []shared.EventHandler

	asyncMode bool
	workers   chan struct{}
	logger    *slog.Logger

	closed bool
	wg     sync.WaitGroup

	metrics busMetrics
}

// busMetrics counts deliveries with atomics; snapshot via Metrics().
type busMetrics struct {
	published int64
	delivered int64
	failed    int64
	panicked  int64
}

// BusMetrics is a point-in-time snapshot of the bus counters.
type BusMetrics struct {
	Published int64
	Delivered int64
	Failed    int64
	Panicked  int64
}

// NewInMemoryEventBus creates a bus with the given configuration.
func NewInMemoryEventBus(cfg InMemoryEventBusConfig) *InMemoryEventBus {
	if cfg.WorkerPoolSize <= 0 {
		cfg.WorkerPoolSize = 1
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &InMemoryEventBus{
		handlers:  make(map[shared.EventType][]shared.EventHandler),
		asyncMode: cfg.AsyncMode,
		workers:   make(chan struct{}, cfg.WorkerPoolSize),
		logger:    cfg.Logger,
	}
}

// Subscribe registers a handler for one event type.
func (b *InMemoryEventBus) Subscribe(eventType shared.EventType, handler shared.EventHandler) error {
	if handler == nil {
		return ErrNilHandler
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrEventBusClosed
	}

	b.handlers[eventType] = append(b.handlers[eventType], handler)
	return nil
}

// SubscribeAll registers a handler that receives every event.
func (b *InMemoryEventBus) SubscribeAll(handler shared.EventHandler) error {
	if handler == nil {
		return ErrNilHandler
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrEventBusClosed
	}

	b.allHandlers = append(b.allHandlers, handler)
	return nil
}

// Publish delivers the event to typed subscribers and catch-all
// subscribers. In async mode delivery happens on pooled goroutines and
// Publish returns immediately; in sync mode the first handler error is
// returned after all handlers ran.
func (b *InMemoryEventBus) Publish(event shared.Event) error {
	if event == nil {
		return nil
	}

	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return ErrEventBusClosed
	}
	typed := b.handlers[event.EventType()]
	targets := make([]shared.EventHandler, 0, len(typed)+len(b.allHandlers))
	targets = append(targets, typed...)
	targets = append(targets, b.allHandlers...)
	b.mu.RUnlock()

	atomic.AddInt64(&b.metrics.published, 1)

	if len(targets) == 0 {
		return nil
	}

	if b.asyncMode {
		b.deliverAsync(event, targets)
		return nil
	}
	return b.deliverSync(event, targets)
}

func (b *InMemoryEventBus) deliverAsync(event shared.Event, targets []shared.EventHandler) {
	for _, handler := range targets {
		h := handler

		b.wg.Add(1)
		go func() {
			defer b.wg.Done()

			// An accepted publish always delivers: Close waits for
			// these goroutines rather than abandoning them.
			b.workers <- struct{}{}
			defer func() { <-b.workers }()

			if err := b.invoke(h, event); err != nil {
				b.logger.Error("event handler failed",
					"event_type", string(event.EventType()),
					"aggregate_id", event.AggregateID(),
					"error", err,
				)
			}
		}()
	}
}

func (b *InMemoryEventBus) deliverSync(event shared.Event, targets []shared.EventHandler) error {
	var firstErr error
	for _, handler := range targets {
		if err := b.invoke(handler, event); err != nil {
			b.logger.Error("event handler failed",
				"event_type", string(event.EventType()),
				"aggregate_id", event.AggregateID(),
				"error", err,
			)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// invoke runs one handler with panic containment. A panicking
// projection must not take down the writer that published the event.
func (b *InMemoryEventBus) invoke(handler shared.EventHandler, event shared.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			atomic.AddInt64(&b.metrics.panicked, 1)
			err = fmt.Errorf("%w: %v", ErrHandlerPanic, r)
		}
	}()

	if err := handler(event); err != nil {
		atomic.AddInt64(&b.metrics.failed, 1)
		return err
	}

	atomic.AddInt64(&b.metrics.delivered, 1)
	return nil
}

// Close rejects further publishes and waits for in-flight deliveries.
func (b *InMemoryEventBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	b.wg.Wait()
	return nil
}

// Metrics returns a snapshot of the delivery counters.
func (b *InMemoryEventBus) Metrics() BusMetrics {
	return BusMetrics{
		Published: atomic.LoadInt64(&b.metrics.published),
		Delivered: atomic.LoadInt64(&b.metrics.delivered),
		Failed:    atomic.LoadInt64(&b.metrics.failed),
		Panicked:  atomic.LoadInt64(&b.metrics.panicked),
	}
}
