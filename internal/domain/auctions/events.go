package auctions

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventTypeAuctionEnded       = "auction.ended"
	EventTypeAuctionExtended    = "auction.extended"
	EventTypeAuctionClosingSoon = "auction.closing_soon"
)

// LotOutcome summarizes one lot at close. Winner fields are zero when the
// lot went unsold (no bids, or reserve unmet).
type LotOutcome struct {
	LotID       uuid.UUID  `json:"lot_id"`
	Sold        bool       `json:"sold"`
	WinnerID    *uuid.UUID `json:"winner_id,omitempty"`
	BidID       *uuid.UUID `json:"bid_id,omitempty"`
	Amount      int64      `json:"amount,omitempty"`
	PlatformFee int64      `json:"platform_fee,omitempty"`
}

// AuctionEndedEvent carries the winner per lot.
type AuctionEndedEvent struct {
	AuctionID uuid.UUID    `json:"auction_id"`
	EndedAt   time.Time    `json:"ended_at"`
	Outcomes  []LotOutcome `json:"outcomes"`
}

// AuctionExtendedEvent lets watching clients recompute countdowns.
type AuctionExtendedEvent struct {
	AuctionID uuid.UUID `json:"auction_id"`
	NewEndAt  time.Time `json:"new_end_at"`
}

// AuctionClosingSoonEvent is published once when a live auction enters the
// closing window.
type AuctionClosingSoonEvent struct {
	AuctionID uuid.UUID `json:"auction_id"`
	EndAt     time.Time `json:"end_at"`
}
