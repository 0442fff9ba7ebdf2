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

const lotColumns = "id, auction_id, artist_id, title, starting_bid, reserve, status, created_at, updated_at"

// PostgresLotRepository implements bidding.LotRepository and
// auctions.LotRepository using pgx.
type PostgresLotRepository struct {
	pool *pgxpool.Pool // kept for non-transactional reads
}

// NewPostgresLotRepository creates a new PostgreSQL lot repository
func NewPostgresLotRepository(pool *pgxpool.Pool) *PostgresLotRepository {
	return &PostgresLotRepository{pool: pool}
}

// GetLotByID retrieves a lot by its ID (non-transactional read)
func (r *PostgresLotRepository) GetLotByID(ctx context.Context, lotID uuid.UUID) (*auctions.Lot, error) {
	return r.getLotByID(ctx, r.pool, lotID, false)
}

// GetLotByIDForUpdate retrieves a lot by its ID and locks its row.
// This serializes concurrent bidders on the same lot; lots on different
// rows proceed fully in parallel.
func (r *PostgresLotRepository) GetLotByIDForUpdate(ctx context.Context, tx pgx.Tx, lotID uuid.UUID) (*auctions.Lot, error) {
	return r.getLotByID(ctx, tx, lotID, true)
}

func (r *PostgresLotRepository) getLotByID(ctx context.Context, db pkgdb.DBTX, lotID uuid.UUID, forUpdate bool) (*auctions.Lot, error) {
	query := fmt.Sprintf("SELECT %s FROM lots WHERE id = $1", lotColumns)
	if forUpdate {
		query += " FOR UPDATE"
	}

	lot, err := scanLot(db.QueryRow(ctx, query, lotID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, bidding.ErrLotNotFound
		}
		return nil, fmt.Errorf("failed to get lot: %w", err)
	}
	return lot, nil
}

// GetLotsByAuctionForUpdate retrieves all lots of an auction within a
// transaction and locks their rows. Bid placement locks one lot at a time
// and takes no other lot locks, so acquiring the whole set here can wait
// but never deadlock.
func (r *PostgresLotRepository) GetLotsByAuctionForUpdate(ctx context.Context, tx pgx.Tx, auctionID uuid.UUID) ([]*auctions.Lot, error) {
	query := fmt.Sprintf("SELECT %s FROM lots WHERE auction_id = $1 ORDER BY created_at ASC FOR UPDATE", lotColumns)
	rows, err := tx.Query(ctx, query, auctionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query lots: %w", err)
	}
	defer rows.Close()

	var result []*auctions.Lot
	for rows.Next() {
		lot, err := scanLot(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan lot: %w", err)
		}
		result = append(result, lot)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating lots: %w", err)
	}

	return result, nil
}

// UpdateLotStatus changes a lot's status
func (r *PostgresLotRepository) UpdateLotStatus(ctx context.Context, tx pgx.Tx, lotID uuid.UUID, status auctions.LotStatus) error {
	query := `
		UPDATE lots
		SET status = $1::lot_status, updated_at = NOW()
		WHERE id = $2
	`
	result, err := tx.Exec(ctx, query, status, lotID)
	if err != nil {
		return fmt.Errorf("failed to update lot status: %w", err)
	}
	if result.RowsAffected() == 0 {
		return bidding.ErrLotNotFound
	}
	return nil
}

func scanLot(row pgx.Row) (*auctions.Lot, error) {
	var lot auctions.Lot
	err := row.Scan(
		&lot.ID,
		&lot.AuctionID,
		&lot.ArtistID,
		&lot.Title,
		&lot.StartingBid,
		&lot.Reserve,
		&lot.Status,
		&lot.CreatedAt,
		&lot.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &lot, nil
}
