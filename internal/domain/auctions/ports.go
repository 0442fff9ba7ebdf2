package auctions

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	pkgevents "github.com/easelbid/easelbid/pkg/events"
)

// AuctionRepository defines the interface for auction persistence.
type AuctionRepository interface {
	// GetAuctionByID retrieves an auction (non-transactional read).
	GetAuctionByID(ctx context.Context, auctionID uuid.UUID) (*Auction, error)

	// GetAuctionByIDTx retrieves an auction inside the given transaction.
	GetAuctionByIDTx(ctx context.Context, tx pgx.Tx, auctionID uuid.UUID) (*Auction, error)

	// CompareAndSwapStatus applies a guarded transition: the update takes
	// effect only if the auction currently holds the expected status.
	// Returns false when the guard did not match.
	CompareAndSwapStatus(ctx context.Context, auctionID uuid.UUID, expected, next AuctionStatus) (bool, error)

	// CompareAndSwapStatusTx is CompareAndSwapStatus within a transaction.
	CompareAndSwapStatusTx(ctx context.Context, tx pgx.Tx, auctionID uuid.UUID, expected, next AuctionStatus) (bool, error)

	// ExtendEndAt pushes the end timestamp forward, guarded on the auction
	// being live. Returns the new end time and false when the guard did
	// not match.
	ExtendEndAt(ctx context.Context, tx pgx.Tx, auctionID uuid.UUID, by time.Duration) (time.Time, bool, error)

	// ListExpiredLive returns live auctions whose end time has passed.
	ListExpiredLive(ctx context.Context, now time.Time, limit int) ([]*Auction, error)

	// ListClosingSoon returns live auctions ending within the window.
	ListClosingSoon(ctx context.Context, now time.Time, window time.Duration, limit int) ([]*Auction, error)
}

// LotRepository defines the lot operations the lifecycle controller needs.
type LotRepository interface {
	// GetLotsByAuctionForUpdate retrieves all lots of an auction inside
	// the closing transaction and locks their rows, so settlement
	// serializes with in-flight bids on the same per-lot lock.
	GetLotsByAuctionForUpdate(ctx context.Context, tx pgx.Tx, auctionID uuid.UUID) ([]*Lot, error)

	// UpdateLotStatus changes a lot's status.
	UpdateLotStatus(ctx context.Context, tx pgx.Tx, lotID uuid.UUID, status LotStatus) error
}

// WinningBid is the controller's view of a lot's leading bid at close.
type WinningBid struct {
	BidID    uuid.UUID
	BidderID uuid.UUID
	Amount   int64
	PlacedAt time.Time
}

// BidSettler finalizes bids when an auction closes. Implemented by the bid
// repository; declared here so the controller does not depend on the
// bidding package.
type BidSettler interface {
	// GetLeadingBid returns the lot's active bid, or nil when there is none.
	GetLeadingBid(ctx context.Context, tx pgx.Tx, lotID uuid.UUID) (*WinningBid, error)

	// MarkAccepted settles the winning bid.
	MarkAccepted(ctx context.Context, tx pgx.Tx, bidID uuid.UUID) error

	// MarkRejected rejects a leading bid that did not meet reserve.
	MarkRejected(ctx context.Context, tx pgx.Tx, bidID uuid.UUID) error
}

// OutboxRepository persists events in the closing transaction.
type OutboxRepository interface {
	SaveEvent(ctx context.Context, tx pgx.Tx, event *pkgevents.OutboxEvent) error
}
