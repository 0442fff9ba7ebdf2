package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	pkgevents "github.com/easelbid/easelbid/pkg/events"
)

const publishTimeout = 5 * time.Second

// RedisNotifier implements the realtime fan-out contract on Redis pub/sub.
// Events are queued on a buffered channel and published by a background
// loop, so callers on the bid path are never blocked by the transport.
// When the queue is full the event is dropped and logged; realtime push is
// best-effort by contract.
type RedisNotifier struct {
	client *redis.Client
	queue  chan outgoing
	logger *slog.Logger
}

type outgoing struct {
	channel string
	payload []byte
}

// NewRedisNotifier creates a notifier with the given queue capacity.
func NewRedisNotifier(client *redis.Client, queueSize int, logger *slog.Logger) *RedisNotifier {
	return &RedisNotifier{
		client: client,
		queue:  make(chan outgoing, queueSize),
		logger: logger,
	}
}

// Run drains the queue until the context is cancelled.
func (n *RedisNotifier) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg := <-n.queue:
			pubCtx, cancel := context.WithTimeout(context.Background(), publishTimeout)
			err := n.client.Publish(pubCtx, msg.channel, msg.payload).Err()
			cancel()
			if err != nil {
				// Swallowed by contract: a committed bid must still
				// succeed even if the push fails.
				n.logger.Error("realtime publish failed", "channel", msg.channel, "error", err)
			}
		}
	}
}

// Publish sends an event to every subscriber of a topic.
func (n *RedisNotifier) Publish(_ context.Context, topic string, event pkgevents.Envelope) {
	n.enqueue(topic, event)
}

// NotifyUser sends an event to a single user's channel.
func (n *RedisNotifier) NotifyUser(_ context.Context, userID uuid.UUID, event pkgevents.Envelope) {
	n.enqueue(pkgevents.UserTopic(userID), event)
}

func (n *RedisNotifier) enqueue(channel string, event pkgevents.Envelope) {
	payload, err := json.Marshal(event)
	if err != nil {
		n.logger.Error("failed to marshal realtime event", "channel", channel, "error", err)
		return
	}
	select {
	case n.queue <- outgoing{channel: channel, payload: payload}:
	default:
		n.logger.Warn("realtime queue full, dropping event", "channel", channel, "type", event.Type)
	}
}
