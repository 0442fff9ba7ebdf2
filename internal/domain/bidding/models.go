package bidding

import (
	"time"

	"github.com/google/uuid"
)

// BidStatus is the closed set of bid states. Amounts are immutable after
// creation; only the status ever changes.
type BidStatus string

const (
	// BidStatusActive marks the current leader. At most one bid per lot
	// holds this status at any time.
	BidStatusActive    BidStatus = "active"
	BidStatusOutbid    BidStatus = "outbid"
	BidStatusWithdrawn BidStatus = "withdrawn"
	BidStatusAccepted  BidStatus = "accepted"
	BidStatusRejected  BidStatus = "rejected"
)

// Bid is an append-only fact: one bidder's offer on one lot at one instant.
type Bid struct {
	ID         uuid.UUID `db:"id"`
	LotID      uuid.UUID `db:"lot_id"`
	AuctionID  uuid.UUID `db:"auction_id"`
	BidderID   uuid.UUID `db:"bidder_id"`
	Amount     int64     `db:"amount"` // minor currency units
	Status     BidStatus `db:"status"`
	IsAutoBid  bool      `db:"is_auto_bid"`
	MaxAutoBid *int64    `db:"max_auto_bid"` // proxy ceiling, nil for manual bids
	PlacedAt   time.Time `db:"placed_at"`
}

// AutoBidCeiling returns the proxy ceiling, or 0 for manual bids.
func (b *Bid) AutoBidCeiling() int64 {
	if b.MaxAutoBid == nil {
		return 0
	}
	return *b.MaxAutoBid
}

// PlaceBidCommand is the input to the engine's sole writer path.
type PlaceBidCommand struct {
	LotID          uuid.UUID
	BidderID       uuid.UUID
	Amount         int64
	IsAutoBid      bool
	AutoBidCeiling int64
}

// PlaceBidResult reports the lot state after the bid (and any auto-bid
// resolution) committed.
type PlaceBidResult struct {
	Bid           *Bid
	NewHighAmount int64
	TotalBids     int64
}

// WithdrawBidCommand is the input to bid withdrawal.
type WithdrawBidCommand struct {
	BidID       uuid.UUID
	RequesterID uuid.UUID
}

// WithdrawBidResult reports the lot state after a withdrawal committed.
type WithdrawBidResult struct {
	Bid *Bid
	// NewLeader is the bid promoted back to Active when the withdrawn bid
	// was leading, nil otherwise.
	NewLeader *Bid
}

// BiddingState is a read-only projection computed from the underlying rows
// on every call. It is never cached independently of the ledger.
type BiddingState struct {
	LotID         uuid.UUID     `json:"lot_id"`
	HighAmount    int64         `json:"high_amount"`
	LeaderID      *uuid.UUID    `json:"leader_id,omitempty"`
	TotalBids     int64         `json:"total_bids"`
	TimeRemaining time.Duration `json:"time_remaining"`
	EndAt         time.Time     `json:"end_at"`
}
