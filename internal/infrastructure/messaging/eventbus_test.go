package messaging

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kopilka-hub/kopilka/internal/domain/shared"
)

// syncBusConfig returns a config with synchronous delivery so tests
// observe handler effects without sleeping.
func syncBusConfig() InMemoryEventBusConfig {
	cfg := DefaultInMemoryEventBusConfig()
	cfg.AsyncMode = false
	return cfg
}

func testEvent(userID string) shared.Event {
	return shared.NewSavingsDepositedEvent(shared.UserID(userID), 100, 100, 0, 0)
}

func TestInMemoryEventBus_PublishDeliversToTypedSubscriber(t *testing.T) {
	bus := NewInMemoryEventBus(syncBusConfig())

	var received []shared.Event
	err := bus.Subscribe(shared.EventSavingsDeposited, func(e shared.Event) error {
		received = append(received, e)
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, bus.Publish(testEvent("user-1")))

	require.Len(t, received, 1)
	assert.Equal(t, shared.EventSavingsDeposited, received[0].EventType())
	assert.Equal(t, "user-1", received[0].AggregateID())
}

func TestInMemoryEventBus_SubscribeAllSeesEveryType(t *testing.T) {
	bus := NewInMemoryEventBus(syncBusConfig())

	var types []shared.EventType
	require.NoError(t, bus.SubscribeAll(func(e shared.Event) error {
		types = append(types, e.EventType())
		return nil
	}))

	require.NoError(t, bus.Publish(testEvent("user-1")))
	require.NoError(t, bus.Publish(shared.NewInterestAccruedEvent("user-1", 5, 5, 0)))

	assert.Equal(t, []shared.EventType{
		shared.EventSavingsDeposited,
		shared.EventInterestAccrued,
	}, types)
}

func TestInMemoryEventBus_SyncModeReturnsFirstHandlerError(t *testing.T) {
	bus := NewInMemoryEventBus(syncBusConfig())

	boom := errors.New("projection down")
	require.NoError(t, bus.Subscribe(shared.EventSavingsDeposited, func(shared.Event) error {
		return boom
	}))

	calls := 0
	require.NoError(t, bus.Subscribe(shared.EventSavingsDeposited, func(shared.Event) error {
		calls++
		return nil
	}))

	err := bus.Publish(testEvent("user-1"))
	assert.ErrorIs(t, err, boom)
	// The failing handler does not stop later handlers.
	assert.Equal(t, 1, calls)
}

func TestInMemoryEventBus_HandlerPanicContained(t *testing.T) {
	bus := NewInMemoryEventBus(syncBusConfig())

	require.NoError(t, bus.Subscribe(shared.EventSavingsDeposited, func(shared.Event) error {
		panic("corrupt projection")
	}))

	err := bus.Publish(testEvent("user-1"))
	assert.ErrorIs(t, err, ErrHandlerPanic)
	assert.Equal(t, int64(1), bus.Metrics().Panicked)
}

func TestInMemoryEventBus_ClosedBusRejectsPublish(t *testing.T) {
	bus := NewInMemoryEventBus(syncBusConfig())
	require.NoError(t, bus.Close())

	assert.ErrorIs(t, bus.Publish(testEvent("user-1")), ErrEventBusClosed)
	assert.ErrorIs(t, bus.Subscribe(shared.EventSavingsDeposited, func(shared.Event) error {
		return nil
	}), ErrEventBusClosed)

	// Close is idempotent.
	assert.NoError(t, bus.Close())
}

func TestInMemoryEventBus_NilHandlerRejected(t *testing.T) {
	bus := NewInMemoryEventBus(syncBusConfig())

	assert.ErrorIs(t, bus.Subscribe(shared.EventSavingsDeposited, nil), ErrNilHandler)
	assert.ErrorIs(t, bus.SubscribeAll(nil), ErrNilHandler)
}

func TestInMemoryEventBus_AsyncDeliveryCompletesBeforeClose(t *testing.T) {
	cfg := DefaultInMemoryEventBusConfig()
	cfg.WorkerPoolSize = 2
	bus := NewInMemoryEventBus(cfg)

	var mu sync.Mutex
	delivered := 0
	require.NoError(t, bus.SubscribeAll(func(shared.Event) error {
		mu.Lock()
		delivered++
		mu.Unlock()
		return nil
	}))

	for i := 0; i < 20; i++ {
		require.NoError(t, bus.Publish(testEvent("user-1")))
	}

	// Close waits for in-flight deliveries.
	require.NoError(t, bus.Close())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 20, delivered)
}

func TestInMemoryEventBus_MetricsCountDeliveries(t *testing.T) {
	bus := NewInMemoryEventBus(syncBusConfig())

	require.NoError(t, bus.Subscribe(shared.EventSavingsDeposited, func(shared.Event) error {
		return nil
	}))
	require.NoError(t, bus.Publish(testEvent("user-1")))
	require.NoError(t, bus.Publish(shared.NewInterestAccruedEvent("user-1", 5, 5, 0)))

	m := bus.Metrics()
	assert.Equal(t, int64(2), m.Published)
	assert.Equal(t, int64(1), m.Delivered)
	assert.Equal(t, int64(0), m.Failed)
}
