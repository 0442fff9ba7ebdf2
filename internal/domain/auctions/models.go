package auctions

import (
	"time"

	"github.com/google/uuid"
)

// AuctionStatus is the closed set of auction lifecycle states.
type AuctionStatus string

const (
	AuctionStatusDraft           AuctionStatus = "draft"
	AuctionStatusPendingApproval AuctionStatus = "pending_approval"
	AuctionStatusApproved        AuctionStatus = "approved"
	AuctionStatusLive            AuctionStatus = "live"
	AuctionStatusEnded           AuctionStatus = "ended"
	AuctionStatusCancelled       AuctionStatus = "cancelled"
)

// IsTerminal reports whether no further transitions are allowed.
func (s AuctionStatus) IsTerminal() bool {
	return s == AuctionStatusEnded || s == AuctionStatusCancelled
}

// CanTransitionTo reports whether the state machine permits moving to next.
// Forward transitions are single-step; Cancelled is reachable from any
// non-terminal state.
func (s AuctionStatus) CanTransitionTo(next AuctionStatus) bool {
	if next == AuctionStatusCancelled {
		return !s.IsTerminal()
	}
	switch s {
	case AuctionStatusDraft:
		return next == AuctionStatusPendingApproval
	case AuctionStatusPendingApproval:
		return next == AuctionStatusApproved
	case AuctionStatusApproved:
		return next == AuctionStatusLive
	case AuctionStatusLive:
		return next == AuctionStatusEnded
	default:
		return false
	}
}

// Auction is a timed sale event for one school.
type Auction struct {
	ID         uuid.UUID     `db:"id"`
	SchoolID   uuid.UUID     `db:"school_id"`
	Title      string        `db:"title"`
	StartAt    time.Time     `db:"start_at"`
	EndAt      time.Time     `db:"end_at"`
	Status     AuctionStatus `db:"status"`
	FeePercent int32         `db:"fee_percent"` // basis points
	FeeMinimum int64         `db:"fee_minimum"` // minor currency units
	CreatedAt  time.Time     `db:"created_at"`
	UpdatedAt  time.Time     `db:"updated_at"`
}

// IsOpenAt reports whether bidding is admissible at the given instant:
// the auction is live and t lies within [start, end).
func (a *Auction) IsOpenAt(t time.Time) bool {
	return a.Status == AuctionStatusLive && !t.Before(a.StartAt) && t.Before(a.EndAt)
}

// LotStatus is the closed set of lot states.
type LotStatus string

const (
	LotStatusDraft     LotStatus = "draft"
	LotStatusSubmitted LotStatus = "submitted"
	LotStatusApproved  LotStatus = "approved"
	LotStatusRejected  LotStatus = "rejected"
	LotStatusSold      LotStatus = "sold"
)

// Lot is a single auctionable artwork within an auction.
type Lot struct {
	ID          uuid.UUID `db:"id"`
	AuctionID   uuid.UUID `db:"auction_id"`
	ArtistID    uuid.UUID `db:"artist_id"`
	Title       string    `db:"title"`
	StartingBid int64     `db:"starting_bid"` // minor currency units
	Reserve     *int64    `db:"reserve"`      // optional, >= starting bid
	Status      LotStatus `db:"status"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

// IsBiddable reports whether the lot itself accepts bids. The owning
// auction's window is checked separately.
func (l *Lot) IsBiddable() bool {
	return l.Status == LotStatusApproved
}

// ReserveMet reports whether amount satisfies the lot's reserve, if any.
func (l *Lot) ReserveMet(amount int64) bool {
	return l.Reserve == nil || amount >= *l.Reserve
}
