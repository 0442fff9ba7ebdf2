package realtime

import (
	"context"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// subscriptionPatterns covers every channel family the notifier publishes:
// lot topics, auction topics, and per-user notifications.
var subscriptionPatterns = []string{"lot:*", "auction:*", "user:*"}

// Subscriber bridges Redis pub/sub channels into the hub. It pattern
// subscribes so every channel published by the notifier reaches connected
// websocket clients.
type Subscriber struct {
	client *redis.Client
	hub    *Hub
	logger *slog.Logger
}

func NewSubscriber(client *redis.Client, hub *Hub, logger *slog.Logger) *Subscriber {
	return &Subscriber{
		client: client,
		hub:    hub,
		logger: logger,
	}
}

// Run listens for published events until the context is cancelled.
func (s *Subscriber) Run(ctx context.Context) error {
	pubsub := s.client.PSubscribe(ctx, subscriptionPatterns...)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			// The Redis channel name is the hub topic.
			s.hub.Broadcast(msg.Channel, []byte(msg.Payload))
		}
	}
}
