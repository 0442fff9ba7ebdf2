package bidding

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/easelbid/easelbid/internal/domain/auctions"
	pkgevents "github.com/easelbid/easelbid/pkg/events"
)

// BidRepository defines the interface for bid persistence.
type BidRepository interface {
	// SaveBid inserts a bid within a transaction.
	SaveBid(ctx context.Context, tx pgx.Tx, bid *Bid) error

	// GetBidByID retrieves a bid by its ID.
	GetBidByID(ctx context.Context, bidID uuid.UUID) (*Bid, error)

	// GetBidByIDTx retrieves a bid inside the given transaction, after the
	// lot row has been locked.
	GetBidByIDTx(ctx context.Context, tx pgx.Tx, bidID uuid.UUID) (*Bid, error)

	// GetActiveBid returns the lot's current leader, or nil when the lot
	// has no active bid. Must be called with the lot row locked.
	GetActiveBid(ctx context.Context, tx pgx.Tx, lotID uuid.UUID) (*Bid, error)

	// DemoteActiveBids moves every active bid on the lot except keepID to
	// outbid, in the same atomic scope as the new leader's insertion.
	DemoteActiveBids(ctx context.Context, tx pgx.Tx, lotID, keepID uuid.UUID) error

	// UpdateBidStatus changes a single bid's status.
	UpdateBidStatus(ctx context.Context, tx pgx.Tx, bidID uuid.UUID, status BidStatus) error

	// GetBestAutoBid returns the outbid auto-bid with the highest ceiling
	// strictly above amount, excluding the given bidder. Earliest placed_at
	// wins ceiling ties. Returns nil when no challenger remains.
	GetBestAutoBid(ctx context.Context, tx pgx.Tx, lotID uuid.UUID, amount int64, excludeBidder uuid.UUID) (*Bid, error)

	// GetHighestCompetingBid returns the highest non-withdrawn, non-active
	// bid on the lot, or nil. Used to promote an implicit leader after a
	// withdrawal. Amount descending, earliest placed_at breaks ties.
	GetHighestCompetingBid(ctx context.Context, tx pgx.Tx, lotID uuid.UUID) (*Bid, error)

	// CountBidsByLotID returns the number of non-withdrawn bids on the lot.
	CountBidsByLotID(ctx context.Context, tx pgx.Tx, lotID uuid.UUID) (int64, error)

	// GetCurrentLeader returns the lot's active bid without locking, or nil.
	// Read-only projections use this; the write path uses GetActiveBid.
	GetCurrentLeader(ctx context.Context, lotID uuid.UUID) (*Bid, error)

	// CountBids returns the number of non-withdrawn bids without locking.
	CountBids(ctx context.Context, lotID uuid.UUID) (int64, error)

	// GetBidsByLotID retrieves the lot's bid history, newest first.
	GetBidsByLotID(ctx context.Context, lotID uuid.UUID) ([]*Bid, error)
}

// LotRepository defines the lot reads the engine needs.
type LotRepository interface {
	// GetLotByID retrieves a lot (non-transactional read).
	GetLotByID(ctx context.Context, lotID uuid.UUID) (*auctions.Lot, error)

	// GetLotByIDForUpdate retrieves a lot and locks its row, serializing
	// concurrent bidders on the same lot. Must be called within a
	// transaction.
	GetLotByIDForUpdate(ctx context.Context, tx pgx.Tx, lotID uuid.UUID) (*auctions.Lot, error)
}

// AuctionRepository defines the auction reads the engine needs.
type AuctionRepository interface {
	// GetAuctionByID retrieves an auction using the given querier, which
	// may be a pool or an open transaction.
	GetAuctionByID(ctx context.Context, auctionID uuid.UUID) (*auctions.Auction, error)

	// GetAuctionByIDTx retrieves an auction inside the given transaction.
	GetAuctionByIDTx(ctx context.Context, tx pgx.Tx, auctionID uuid.UUID) (*auctions.Auction, error)
}

// OutboxRepository persists events in the same transaction as the state
// change they describe.
type OutboxRepository interface {
	SaveEvent(ctx context.Context, tx pgx.Tx, event *pkgevents.OutboxEvent) error
}
