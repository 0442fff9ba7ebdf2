package bidding

import (
	"time"

	"github.com/google/uuid"
)

// Event types carried on the outbox routing key and the realtime envelope.
const (
	EventTypeBidPlaced     = "bid.placed"
	EventTypeBidOutbid     = "bid.outbid"
	EventTypeBidWithdrawn  = "bid.withdrawn"
	EventTypeLeaderChanged = "lot.leader_changed"
)

// BidPlacedEvent announces a new leader on a lot. When auto-bid resolution
// ran, this reflects the final state only, not intermediate rounds.
type BidPlacedEvent struct {
	BidID      uuid.UUID `json:"bid_id"`
	LotID      uuid.UUID `json:"lot_id"`
	AuctionID  uuid.UUID `json:"auction_id"`
	BidderID   uuid.UUID `json:"bidder_id"`
	HighAmount int64     `json:"high_amount"`
	TotalBids  int64     `json:"total_bids"`
	PlacedAt   time.Time `json:"placed_at"`
}

// BidOutbidEvent is delivered to the demoted leader.
type BidOutbidEvent struct {
	BidID      uuid.UUID `json:"bid_id"`
	LotID      uuid.UUID `json:"lot_id"`
	YourAmount int64     `json:"your_amount"`
	HighAmount int64     `json:"high_amount"`
}

// BidWithdrawnEvent announces a withdrawal that did not change the leader.
type BidWithdrawnEvent struct {
	BidID uuid.UUID `json:"bid_id"`
	LotID uuid.UUID `json:"lot_id"`
}

// LeaderChangedEvent announces the implicit leader promoted after the
// leading bid was withdrawn. LeaderID is nil when no bids remain.
type LeaderChangedEvent struct {
	LotID      uuid.UUID  `json:"lot_id"`
	LeaderID   *uuid.UUID `json:"leader_id,omitempty"`
	HighAmount int64      `json:"high_amount"`
}
