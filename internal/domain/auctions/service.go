package auctions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/easelbid/easelbid/pkg/database"
	pkgevents "github.com/easelbid/easelbid/pkg/events"
)

var (
	ErrAuctionNotFound = errors.New("auction not found")

	// ErrInvalidStateTransition means the auction was not in the expected
	// state when the guarded update ran.
	ErrInvalidStateTransition = errors.New("auction is not in a state that permits this transition")

	// ErrConcurrentConflict means closing lost a lock race with in-flight
	// bids; the caller may retry.
	ErrConcurrentConflict = errors.New("auction close conflicted with a concurrent operation")
)

// EndResult reports the outcome of closing an auction. AlreadyEnded is set
// when the auction had been closed before; the call is then a no-op
// success and emits no events.
type EndResult struct {
	AuctionID    uuid.UUID
	AlreadyEnded bool
	Outcomes     []LotOutcome
}

// Service drives the auction state machine. Transitions are guarded
// compare-and-swap updates: rare enough that optimistic concurrency
// suffices, with idempotency enforced by the guard itself.
type Service struct {
	txManager   database.TransactionManager
	auctionRepo AuctionRepository
	lotRepo     LotRepository
	settler     BidSettler
	outboxRepo  OutboxRepository
	notifier    pkgevents.Notifier
	logger      *slog.Logger
}

// NewService creates the lifecycle controller.
func NewService(
	txManager database.TransactionManager,
	auctionRepo AuctionRepository,
	lotRepo LotRepository,
	settler BidSettler,
	outboxRepo OutboxRepository,
	notifier pkgevents.Notifier,
	logger *slog.Logger,
) *Service {
	return &Service{
		txManager:   txManager,
		auctionRepo: auctionRepo,
		lotRepo:     lotRepo,
		settler:     settler,
		outboxRepo:  outboxRepo,
		notifier:    notifier,
		logger:      logger,
	}
}

// SubmitForApproval moves a draft auction into review.
func (s *Service) SubmitForApproval(ctx context.Context, auctionID uuid.UUID) error {
	return s.transition(ctx, auctionID, AuctionStatusDraft, AuctionStatusPendingApproval)
}

// Approve accepts a reviewed auction.
func (s *Service) Approve(ctx context.Context, auctionID uuid.UUID) error {
	return s.transition(ctx, auctionID, AuctionStatusPendingApproval, AuctionStatusApproved)
}

// GoLive opens an approved auction for bidding.
func (s *Service) GoLive(ctx context.Context, auctionID uuid.UUID) error {
	return s.transition(ctx, auctionID, AuctionStatusApproved, AuctionStatusLive)
}

// Cancel moves any non-terminal auction to cancelled.
func (s *Service) Cancel(ctx context.Context, auctionID uuid.UUID) error {
	auction, err := s.auctionRepo.GetAuctionByID(ctx, auctionID)
	if err != nil {
		return err
	}
	if auction.Status.IsTerminal() {
		return ErrInvalidStateTransition
	}
	return s.transition(ctx, auctionID, auction.Status, AuctionStatusCancelled)
}

// transition applies a single guarded status update.
func (s *Service) transition(ctx context.Context, auctionID uuid.UUID, expected, next AuctionStatus) error {
	if !expected.CanTransitionTo(next) {
		return ErrInvalidStateTransition
	}

	swapped, err := s.auctionRepo.CompareAndSwapStatus(ctx, auctionID, expected, next)
	if err != nil {
		return fmt.Errorf("failed to transition auction: %w", err)
	}
	if !swapped {
		// Distinguish a missing row from a guard mismatch.
		if _, getErr := s.auctionRepo.GetAuctionByID(ctx, auctionID); getErr != nil {
			return getErr
		}
		return ErrInvalidStateTransition
	}

	s.logger.Info("auction transitioned", "auction_id", auctionID, "from", expected, "to", next)
	return nil
}

// End closes a live auction: each lot's leading bid is accepted when the
// reserve is met (the lot sells) or rejected otherwise, and an
// auction.ended event with per-lot outcomes is written. Calling End on an
// already-ended auction is a no-op success, since the sweep is not exactly
// synchronized with the end instant.
func (s *Service) End(ctx context.Context, auctionID uuid.UUID) (*EndResult, error) {
	tx, err := s.txManager.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	swapped, err := s.auctionRepo.CompareAndSwapStatusTx(ctx, tx, auctionID, AuctionStatusLive, AuctionStatusEnded)
	if err != nil {
		return nil, fmt.Errorf("failed to end auction: %w", err)
	}
	if !swapped {
		auction, getErr := s.auctionRepo.GetAuctionByIDTx(ctx, tx, auctionID)
		if getErr != nil {
			return nil, getErr
		}
		if auction.Status == AuctionStatusEnded {
			return &EndResult{AuctionID: auctionID, AlreadyEnded: true}, nil
		}
		return nil, ErrInvalidStateTransition
	}

	auction, err := s.auctionRepo.GetAuctionByIDTx(ctx, tx, auctionID)
	if err != nil {
		return nil, err
	}

	// Lock every lot row before reading leaders. PlaceBid holds the same
	// lock, so a bid committed while the close is in flight is either seen
	// here or rejected against the ended auction.
	lots, err := s.lotRepo.GetLotsByAuctionForUpdate(ctx, tx, auctionID)
	if err != nil {
		if database.IsLockTimeout(err) {
			return nil, ErrConcurrentConflict
		}
		return nil, fmt.Errorf("failed to load lots: %w", err)
	}

	outcomes := make([]LotOutcome, 0, len(lots))
	for _, lot := range lots {
		if lot.Status != LotStatusApproved {
			continue
		}

		outcome := LotOutcome{LotID: lot.ID}
		leading, err := s.settler.GetLeadingBid(ctx, tx, lot.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to load leading bid for lot %s: %w", lot.ID, err)
		}

		switch {
		case leading == nil:
			// No bids; the lot goes unsold.
		case lot.ReserveMet(leading.Amount):
			if err := s.settler.MarkAccepted(ctx, tx, leading.BidID); err != nil {
				return nil, fmt.Errorf("failed to accept winning bid: %w", err)
			}
			if err := s.lotRepo.UpdateLotStatus(ctx, tx, lot.ID, LotStatusSold); err != nil {
				return nil, fmt.Errorf("failed to mark lot sold: %w", err)
			}
			outcome.Sold = true
			outcome.WinnerID = &leading.BidderID
			outcome.BidID = &leading.BidID
			outcome.Amount = leading.Amount
			outcome.PlatformFee = platformFee(auction, leading.Amount)
		default:
			// Reserve unmet: the leading bid is rejected and no winner
			// is emitted for this lot.
			if err := s.settler.MarkRejected(ctx, tx, leading.BidID); err != nil {
				return nil, fmt.Errorf("failed to reject under-reserve bid: %w", err)
			}
		}

		outcomes = append(outcomes, outcome)
	}

	ended := AuctionEndedEvent{
		AuctionID: auctionID,
		EndedAt:   time.Now(),
		Outcomes:  outcomes,
	}
	if err := s.saveOutboxEvent(ctx, tx, EventTypeAuctionEnded, ended); err != nil {
		return nil, err
	}

	if commitErr := tx.Commit(ctx); commitErr != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", commitErr)
	}

	s.notifier.Publish(ctx, pkgevents.AuctionTopic(auctionID), pkgevents.Envelope{
		Type:       EventTypeAuctionEnded,
		OccurredAt: ended.EndedAt.UTC().Format(time.RFC3339Nano),
		Data:       ended,
	})
	for _, outcome := range outcomes {
		if outcome.Sold {
			s.notifier.NotifyUser(ctx, *outcome.WinnerID, pkgevents.Envelope{
				Type:       EventTypeAuctionEnded,
				OccurredAt: ended.EndedAt.UTC().Format(time.RFC3339Nano),
				Data:       outcome,
			})
		}
	}

	return &EndResult{AuctionID: auctionID, Outcomes: outcomes}, nil
}

// Extend pushes a live auction's end time forward and republishes the new
// end so watching clients can recompute countdowns.
func (s *Service) Extend(ctx context.Context, auctionID uuid.UUID, by time.Duration) (time.Time, error) {
	if by <= 0 {
		return time.Time{}, fmt.Errorf("extension duration must be positive")
	}

	tx, err := s.txManager.BeginTx(ctx)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	newEnd, extended, err := s.auctionRepo.ExtendEndAt(ctx, tx, auctionID, by)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to extend auction: %w", err)
	}
	if !extended {
		if _, getErr := s.auctionRepo.GetAuctionByIDTx(ctx, tx, auctionID); getErr != nil {
			return time.Time{}, getErr
		}
		return time.Time{}, ErrInvalidStateTransition
	}

	event := AuctionExtendedEvent{AuctionID: auctionID, NewEndAt: newEnd}
	if err := s.saveOutboxEvent(ctx, tx, EventTypeAuctionExtended, event); err != nil {
		return time.Time{}, err
	}

	if commitErr := tx.Commit(ctx); commitErr != nil {
		return time.Time{}, fmt.Errorf("failed to commit transaction: %w", commitErr)
	}

	s.notifier.Publish(ctx, pkgevents.AuctionTopic(auctionID), pkgevents.Envelope{
		Type:       EventTypeAuctionExtended,
		OccurredAt: time.Now().UTC().Format(time.RFC3339Nano),
		Data:       event,
	})

	return newEnd, nil
}

// Get retrieves an auction by ID.
func (s *Service) Get(ctx context.Context, auctionID uuid.UUID) (*Auction, error) {
	return s.auctionRepo.GetAuctionByID(ctx, auctionID)
}

// platformFee applies the school's fee schedule to a winning amount,
// with fee_percent expressed in basis points.
func platformFee(a *Auction, amount int64) int64 {
	fee := amount * int64(a.FeePercent) / 10000
	if fee < a.FeeMinimum {
		fee = a.FeeMinimum
	}
	return fee
}

func (s *Service) saveOutboxEvent(ctx context.Context, tx pgx.Tx, eventType string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	event := &pkgevents.OutboxEvent{
		ID:        uuid.New(),
		EventType: eventType,
		Payload:   body,
		Status:    pkgevents.OutboxStatusPending,
		CreatedAt: time.Now(),
	}
	if err := s.outboxRepo.SaveEvent(ctx, tx, event); err != nil {
		return fmt.Errorf("failed to save outbox event: %w", err)
	}
	return nil
}
