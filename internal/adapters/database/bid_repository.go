package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/easelbid/easelbid/internal/domain/auctions"
	"github.com/easelbid/easelbid/internal/domain/bidding"
	pkgdb "github.com/easelbid/easelbid/pkg/database"
)

const bidColumns = "id, lot_id, auction_id, bidder_id, amount, status, is_auto_bid, max_auto_bid, placed_at"

// PostgresBidRepository implements bidding.BidRepository and
// auctions.BidSettler using pgx.
type PostgresBidRepository struct {
	pool *pgxpool.Pool // kept for read-only operations
}

// NewPostgresBidRepository creates a new PostgreSQL bid repository
func NewPostgresBidRepository(pool *pgxpool.Pool) *PostgresBidRepository {
	return &PostgresBidRepository{pool: pool}
}

// SaveBid inserts a bid within a transaction
func (r *PostgresBidRepository) SaveBid(ctx context.Context, tx pgx.Tx, bid *bidding.Bid) error {
	query := `
		INSERT INTO bids (id, lot_id, auction_id, bidder_id, amount, status, is_auto_bid, max_auto_bid, placed_at)
		VALUES ($1, $2, $3, $4, $5, $6::bid_status, $7, $8, $9)
	`
	_, err := tx.Exec(ctx, query,
		bid.ID,
		bid.LotID,
		bid.AuctionID,
		bid.BidderID,
		bid.Amount,
		bid.Status,
		bid.IsAutoBid,
		bid.MaxAutoBid,
		bid.PlacedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert bid: %w", err)
	}
	return nil
}

// GetBidByID retrieves a bid by its ID
func (r *PostgresBidRepository) GetBidByID(ctx context.Context, bidID uuid.UUID) (*bidding.Bid, error) {
	return r.getBidByID(ctx, r.pool, bidID)
}

// GetBidByIDTx retrieves a bid inside the given transaction
func (r *PostgresBidRepository) GetBidByIDTx(ctx context.Context, tx pgx.Tx, bidID uuid.UUID) (*bidding.Bid, error) {
	return r.getBidByID(ctx, tx, bidID)
}

func (r *PostgresBidRepository) getBidByID(ctx context.Context, db pkgdb.DBTX, bidID uuid.UUID) (*bidding.Bid, error) {
	query := fmt.Sprintf("SELECT %s FROM bids WHERE id = $1", bidColumns)
	bid, err := scanBid(db.QueryRow(ctx, query, bidID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, bidding.ErrBidNotFound
		}
		return nil, fmt.Errorf("failed to get bid: %w", err)
	}
	return bid, nil
}

// GetActiveBid returns the lot's current leader within a transaction, or
// nil when the lot has no active bid
func (r *PostgresBidRepository) GetActiveBid(ctx context.Context, tx pgx.Tx, lotID uuid.UUID) (*bidding.Bid, error) {
	return r.activeBid(ctx, tx, lotID)
}

// GetCurrentLeader returns the lot's active bid without locking, or nil
func (r *PostgresBidRepository) GetCurrentLeader(ctx context.Context, lotID uuid.UUID) (*bidding.Bid, error) {
	return r.activeBid(ctx, r.pool, lotID)
}

func (r *PostgresBidRepository) activeBid(ctx context.Context, db pkgdb.DBTX, lotID uuid.UUID) (*bidding.Bid, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM bids
		WHERE lot_id = $1 AND status = 'active'::bid_status
	`, bidColumns)
	bid, err := scanBid(db.QueryRow(ctx, query, lotID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get active bid: %w", err)
	}
	return bid, nil
}

// DemoteActiveBids moves every active bid on the lot except keepID to outbid
func (r *PostgresBidRepository) DemoteActiveBids(ctx context.Context, tx pgx.Tx, lotID, keepID uuid.UUID) error {
	query := `
		UPDATE bids
		SET status = 'outbid'::bid_status
		WHERE lot_id = $1 AND status = 'active'::bid_status AND id <> $2
	`
	if _, err := tx.Exec(ctx, query, lotID, keepID); err != nil {
		return fmt.Errorf("failed to demote active bids: %w", err)
	}
	return nil
}

// UpdateBidStatus changes a single bid's status
func (r *PostgresBidRepository) UpdateBidStatus(ctx context.Context, tx pgx.Tx, bidID uuid.UUID, status bidding.BidStatus) error {
	result, err := tx.Exec(ctx, `UPDATE bids SET status = $1::bid_status WHERE id = $2`, status, bidID)
	if err != nil {
		return fmt.Errorf("failed to update bid status: %w", err)
	}
	if result.RowsAffected() == 0 {
		return bidding.ErrBidNotFound
	}
	return nil
}

// GetBestAutoBid returns the outbid auto-bid with the highest ceiling
// strictly above amount, excluding the given bidder
func (r *PostgresBidRepository) GetBestAutoBid(ctx context.Context, tx pgx.Tx, lotID uuid.UUID, amount int64, excludeBidder uuid.UUID) (*bidding.Bid, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM bids
		WHERE lot_id = $1
		  AND status = 'outbid'::bid_status
		  AND is_auto_bid
		  AND max_auto_bid > $2
		  AND bidder_id <> $3
		ORDER BY max_auto_bid DESC, placed_at ASC
		LIMIT 1
	`, bidColumns)
	bid, err := scanBid(tx.QueryRow(ctx, query, lotID, amount, excludeBidder))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get best auto-bid: %w", err)
	}
	return bid, nil
}

// GetHighestCompetingBid returns the highest outbid bid on the lot, or nil
func (r *PostgresBidRepository) GetHighestCompetingBid(ctx context.Context, tx pgx.Tx, lotID uuid.UUID) (*bidding.Bid, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM bids
		WHERE lot_id = $1 AND status = 'outbid'::bid_status
		ORDER BY amount DESC, placed_at ASC
		LIMIT 1
	`, bidColumns)
	bid, err := scanBid(tx.QueryRow(ctx, query, lotID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get highest competing bid: %w", err)
	}
	return bid, nil
}

// CountBidsByLotID returns the number of non-withdrawn bids within a transaction
func (r *PostgresBidRepository) CountBidsByLotID(ctx context.Context, tx pgx.Tx, lotID uuid.UUID) (int64, error) {
	return r.countBids(ctx, tx, lotID)
}

// CountBids returns the number of non-withdrawn bids without locking
func (r *PostgresBidRepository) CountBids(ctx context.Context, lotID uuid.UUID) (int64, error) {
	return r.countBids(ctx, r.pool, lotID)
}

func (r *PostgresBidRepository) countBids(ctx context.Context, db pkgdb.DBTX, lotID uuid.UUID) (int64, error) {
	var count int64
	query := `
		SELECT COUNT(*) FROM bids
		WHERE lot_id = $1 AND status <> 'withdrawn'::bid_status
	`
	if err := db.QueryRow(ctx, query, lotID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count bids: %w", err)
	}
	return count, nil
}

// GetBidsByLotID retrieves the lot's bid history, newest first
func (r *PostgresBidRepository) GetBidsByLotID(ctx context.Context, lotID uuid.UUID) ([]*bidding.Bid, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM bids
		WHERE lot_id = $1
		ORDER BY placed_at DESC, amount DESC
	`, bidColumns)
	rows, err := r.pool.Query(ctx, query, lotID)
	if err != nil {
		return nil, fmt.Errorf("failed to query bids: %w", err)
	}
	defer rows.Close()

	var result []*bidding.Bid
	for rows.Next() {
		bid, err := scanBid(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan bid: %w", err)
		}
		result = append(result, bid)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating bids: %w", err)
	}

	return result, nil
}

// GetLeadingBid implements auctions.BidSettler for the closing path
func (r *PostgresBidRepository) GetLeadingBid(ctx context.Context, tx pgx.Tx, lotID uuid.UUID) (*auctions.WinningBid, error) {
	bid, err := r.activeBid(ctx, tx, lotID)
	if err != nil || bid == nil {
		return nil, err
	}
	return &auctions.WinningBid{
		BidID:    bid.ID,
		BidderID: bid.BidderID,
		Amount:   bid.Amount,
		PlacedAt: bid.PlacedAt,
	}, nil
}

// MarkAccepted settles the winning bid
func (r *PostgresBidRepository) MarkAccepted(ctx context.Context, tx pgx.Tx, bidID uuid.UUID) error {
	return r.UpdateBidStatus(ctx, tx, bidID, bidding.BidStatusAccepted)
}

// MarkRejected rejects a leading bid that did not meet reserve
func (r *PostgresBidRepository) MarkRejected(ctx context.Context, tx pgx.Tx, bidID uuid.UUID) error {
	return r.UpdateBidStatus(ctx, tx, bidID, bidding.BidStatusRejected)
}

func scanBid(row pgx.Row) (*bidding.Bid, error) {
	var bid bidding.Bid
	err := row.Scan(
		&bid.ID,
		&bid.LotID,
		&bid.AuctionID,
		&bid.BidderID,
		&bid.Amount,
		&bid.Status,
		&bid.IsAutoBid,
		&bid.MaxAutoBid,
		&bid.PlacedAt,
	)
	if err != nil {
		return nil, err
	}
	return &bid, nil
}
