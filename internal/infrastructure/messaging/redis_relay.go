package messaging

import (
	"context"
	"log/slog"
	"time"

	"github.com/kopilka-hub/kopilka/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// REDIS RELAY
// ══════════════════════════════════════════════════════════════════════════════

// ChannelPublisher publishes a message to a named channel. Satisfied
// by the Redis cache client.
type ChannelPublisher interface {
	Publish(ctx context.Context, channel string, message interface{}) error
}

// defaultRelayTimeout bounds one mirror publish; the in-process
// handlers must not hang behind a stuck Redis.
const defaultRelayTimeout = 2 * time.Second

// RedisRelay mirrors the in-process event stream to Redis pub/sub,
// one channel per event type. The mirror is strictly best-effort:
// Postgres holds the durable facts, and any consumer that needs
// exactness rebuilds from there. A publish failure is therefore
// logged, never surfaced to the emitting command.
type RedisRelay struct {
	publisher ChannelPublisher
	prefix    string
	timeout   time.Duration
	logger    *slog.Logger
}

// NewRedisRelay creates a relay that publishes to prefix + event type.
func NewRedisRelay(publisher ChannelPublisher, channelPrefix string, logger *slog.Logger) *RedisRelay {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisRelay{
		publisher: publisher,
		prefix:    channelPrefix,
		timeout:   defaultRelayTimeout,
		logger:    logger,
	}
}

// Handle mirrors one event. Registered on the bus via SubscribeAll.
func (r *RedisRelay) Handle(event shared.Event) error {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	channel := r.prefix + string(event.EventType())
	if err := r.publisher.Publish(ctx, channel, event); err != nil {
		r.logger.Warn("failed to mirror event to Redis",
			"event_type", string(event.EventType()),
			"aggregate_id", event.AggregateID(),
			"error", err,
		)
	}
	return nil
}
