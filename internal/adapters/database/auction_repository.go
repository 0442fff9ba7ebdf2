package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/easelbid/easelbid/internal/domain/auctions"
	pkgdb "github.com/easelbid/easelbid/pkg/database"
)

const auctionColumns = "id, school_id, title, start_at, end_at, status, fee_percent, fee_minimum, created_at, updated_at"

// PostgresAuctionRepository implements auctions.AuctionRepository and
// bidding.AuctionRepository using pgx.
type PostgresAuctionRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresAuctionRepository creates a new PostgreSQL auction repository
func NewPostgresAuctionRepository(pool *pgxpool.Pool) *PostgresAuctionRepository {
	return &PostgresAuctionRepository{pool: pool}
}

// GetAuctionByID retrieves an auction by its ID (non-transactional read)
func (r *PostgresAuctionRepository) GetAuctionByID(ctx context.Context, auctionID uuid.UUID) (*auctions.Auction, error) {
	return r.getAuctionByID(ctx, r.pool, auctionID)
}

// GetAuctionByIDTx retrieves an auction inside the given transaction
func (r *PostgresAuctionRepository) GetAuctionByIDTx(ctx context.Context, tx pgx.Tx, auctionID uuid.UUID) (*auctions.Auction, error) {
	return r.getAuctionByID(ctx, tx, auctionID)
}

func (r *PostgresAuctionRepository) getAuctionByID(ctx context.Context, db pkgdb.DBTX, auctionID uuid.UUID) (*auctions.Auction, error) {
	query := fmt.Sprintf("SELECT %s FROM auctions WHERE id = $1", auctionColumns)
	auction, err := scanAuction(db.QueryRow(ctx, query, auctionID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, auctions.ErrAuctionNotFound
		}
		return nil, fmt.Errorf("failed to get auction: %w", err)
	}
	return auction, nil
}

// CompareAndSwapStatus applies a guarded status transition
func (r *PostgresAuctionRepository) CompareAndSwapStatus(ctx context.Context, auctionID uuid.UUID, expected, next auctions.AuctionStatus) (bool, error) {
	return r.compareAndSwapStatus(ctx, r.pool, auctionID, expected, next)
}

// CompareAndSwapStatusTx applies a guarded status transition within a transaction
func (r *PostgresAuctionRepository) CompareAndSwapStatusTx(ctx context.Context, tx pgx.Tx, auctionID uuid.UUID, expected, next auctions.AuctionStatus) (bool, error) {
	return r.compareAndSwapStatus(ctx, tx, auctionID, expected, next)
}

func (r *PostgresAuctionRepository) compareAndSwapStatus(ctx context.Context, db pkgdb.DBTX, auctionID uuid.UUID, expected, next auctions.AuctionStatus) (bool, error) {
	// The WHERE guard is the transition's optimistic concurrency control:
	// zero rows affected means the expected state did not hold.
	query := `
		UPDATE auctions
		SET status = $1::auction_status, updated_at = NOW()
		WHERE id = $2 AND status = $3::auction_status
	`
	result, err := db.Exec(ctx, query, next, auctionID, expected)
	if err != nil {
		return false, fmt.Errorf("failed to swap auction status: %w", err)
	}
	return result.RowsAffected() > 0, nil
}

// ExtendEndAt pushes the end timestamp forward, guarded on the auction being live
func (r *PostgresAuctionRepository) ExtendEndAt(ctx context.Context, tx pgx.Tx, auctionID uuid.UUID, by time.Duration) (time.Time, bool, error) {
	query := `
		UPDATE auctions
		SET end_at = end_at + $1, updated_at = NOW()
		WHERE id = $2 AND status = 'live'::auction_status
		RETURNING end_at
	`
	var newEnd time.Time
	err := tx.QueryRow(ctx, query, by, auctionID).Scan(&newEnd)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, fmt.Errorf("failed to extend auction: %w", err)
	}
	return newEnd, true, nil
}

// ListExpiredLive returns live auctions whose end time has passed
func (r *PostgresAuctionRepository) ListExpiredLive(ctx context.Context, now time.Time, limit int) ([]*auctions.Auction, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM auctions
		WHERE status = 'live'::auction_status AND end_at <= $1
		ORDER BY end_at ASC
		LIMIT $2
	`, auctionColumns)
	return r.listAuctions(ctx, query, now, limit)
}

// ListClosingSoon returns live auctions ending within the window
func (r *PostgresAuctionRepository) ListClosingSoon(ctx context.Context, now time.Time, window time.Duration, limit int) ([]*auctions.Auction, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM auctions
		WHERE status = 'live'::auction_status AND end_at > $1 AND end_at <= $2
		ORDER BY end_at ASC
		LIMIT $3
	`, auctionColumns)
	return r.listAuctions(ctx, query, now, now.Add(window), limit)
}

func (r *PostgresAuctionRepository) listAuctions(ctx context.Context, query string, args ...any) ([]*auctions.Auction, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query auctions: %w", err)
	}
	defer rows.Close()

	var result []*auctions.Auction
	for rows.Next() {
		auction, err := scanAuction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan auction: %w", err)
		}
		result = append(result, auction)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating auctions: %w", err)
	}

	return result, nil
}

func scanAuction(row pgx.Row) (*auctions.Auction, error) {
	var auction auctions.Auction
	err := row.Scan(
		&auction.ID,
		&auction.SchoolID,
		&auction.Title,
		&auction.StartAt,
		&auction.EndAt,
		&auction.Status,
		&auction.FeePercent,
		&auction.FeeMinimum,
		&auction.CreatedAt,
		&auction.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &auction, nil
}
