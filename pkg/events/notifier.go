package events

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Envelope is the wire shape of a realtime event.
type Envelope struct {
	Type       string `json:"type"`
	OccurredAt string `json:"occurred_at"`
	Data       any    `json:"data"`
}

// Notifier is the realtime fan-out contract. Both methods are
// fire-and-forget: delivery failure must never block or roll back the
// operation that produced the event, so neither returns an error.
type Notifier interface {
	// Publish sends an event to every subscriber of a topic.
	Publish(ctx context.Context, topic string, event Envelope)

	// NotifyUser sends an event to a single user's channel.
	NotifyUser(ctx context.Context, userID uuid.UUID, event Envelope)
}

// Topic naming, shared between publishers and the broadcast bridge.

func LotTopic(lotID uuid.UUID) string {
	return fmt.Sprintf("lot:%s", lotID)
}

func AuctionTopic(auctionID uuid.UUID) string {
	return fmt.Sprintf("auction:%s", auctionID)
}

func UserTopic(userID uuid.UUID) string {
	return fmt.Sprintf("user:%s", userID)
}

// NoopNotifier discards all events. Used where realtime push is not wired,
// e.g. unit tests.
type NoopNotifier struct{}

func (NoopNotifier) Publish(context.Context, string, Envelope)       {}
func (NoopNotifier) NotifyUser(context.Context, uuid.UUID, Envelope) {}
