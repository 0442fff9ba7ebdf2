package bidding

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/easelbid/easelbid/pkg/database"
	pkgevents "github.com/easelbid/easelbid/pkg/events"
)

// maxAutoBidRounds bounds proxy-bid resolution so two auto-bidders can
// never ping-pong a transaction indefinitely.
const maxAutoBidRounds = 10

// Engine is the sole writer path for bids. Every acceptance decision
// re-reads ledger state inside the same transaction that writes it, with
// the lot row locked, so bids on one lot are totally ordered while bids on
// different lots proceed in parallel.
type Engine struct {
	txManager        database.TransactionManager
	bidRepo          BidRepository
	lotRepo          LotRepository
	auctionRepo      AuctionRepository
	outboxRepo       OutboxRepository
	notifier         pkgevents.Notifier
	withdrawalWindow time.Duration
	logger           *slog.Logger
}

// NewEngine creates a bidding engine. withdrawalWindow is the minimum time
// remaining required to withdraw a leading bid.
func NewEngine(
	txManager database.TransactionManager,
	bidRepo BidRepository,
	lotRepo LotRepository,
	auctionRepo AuctionRepository,
	outboxRepo OutboxRepository,
	notifier pkgevents.Notifier,
	withdrawalWindow time.Duration,
	logger *slog.Logger,
) *Engine {
	return &Engine{
		txManager:        txManager,
		bidRepo:          bidRepo,
		lotRepo:          lotRepo,
		auctionRepo:      auctionRepo,
		outboxRepo:       outboxRepo,
		notifier:         notifier,
		withdrawalWindow: withdrawalWindow,
		logger:           logger,
	}
}

// PlaceBid validates and persists a bid atomically, demotes the prior
// leader, resolves any standing auto-bids, and fans out the final state
// after commit.
func (e *Engine) PlaceBid(ctx context.Context, cmd PlaceBidCommand) (*PlaceBidResult, error) {
	tx, err := e.txManager.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx) // Rollback if commit is not called
	}()

	// Lock the lot row. This serializes concurrent bidders on the same lot;
	// a bounded lock_timeout turns indefinite waits into a retryable error.
	lot, err := e.lotRepo.GetLotByIDForUpdate(ctx, tx, cmd.LotID)
	if err != nil {
		if database.IsLockTimeout(err) {
			return nil, ErrConcurrentConflict
		}
		return nil, err
	}

	auction, err := e.auctionRepo.GetAuctionByIDTx(ctx, tx, lot.AuctionID)
	if err != nil {
		return nil, err
	}

	prevLeader, err := e.bidRepo.GetActiveBid(ctx, tx, cmd.LotID)
	if err != nil {
		return nil, fmt.Errorf("failed to load current leader: %w", err)
	}

	if valErr := ValidateBid(cmd, lot, auction, prevLeader, time.Now()); valErr != nil {
		return nil, valErr
	}

	newBid := &Bid{
		ID:        uuid.New(),
		LotID:     cmd.LotID,
		AuctionID: lot.AuctionID,
		BidderID:  cmd.BidderID,
		Amount:    cmd.Amount,
		Status:    BidStatusActive,
		IsAutoBid: cmd.IsAutoBid,
		PlacedAt:  time.Now(),
	}
	if cmd.IsAutoBid {
		ceiling := cmd.AutoBidCeiling
		newBid.MaxAutoBid = &ceiling
	}

	if err := e.takeLead(ctx, tx, newBid); err != nil {
		return nil, err
	}

	// Standing auto-bids may immediately re-raise on behalf of outbid
	// bidders. Resolution stays inside the same lot lock.
	leader, err := e.resolveAutoBids(ctx, tx, newBid)
	if err != nil {
		return nil, err
	}

	total, err := e.bidRepo.CountBidsByLotID(ctx, tx, cmd.LotID)
	if err != nil {
		return nil, fmt.Errorf("failed to count bids: %w", err)
	}

	placed := BidPlacedEvent{
		BidID:      leader.ID,
		LotID:      leader.LotID,
		AuctionID:  leader.AuctionID,
		BidderID:   leader.BidderID,
		HighAmount: leader.Amount,
		TotalBids:  total,
		PlacedAt:   leader.PlacedAt,
	}
	if err := e.saveOutboxEvent(ctx, tx, EventTypeBidPlaced, placed); err != nil {
		return nil, err
	}

	if commitErr := tx.Commit(ctx); commitErr != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", commitErr)
	}

	// Fan-out happens after commit and never blocks or fails the response.
	e.notifier.Publish(ctx, pkgevents.LotTopic(leader.LotID), envelope(EventTypeBidPlaced, placed))
	if prevLeader != nil && prevLeader.BidderID != leader.BidderID {
		e.notifier.NotifyUser(ctx, prevLeader.BidderID, envelope(EventTypeBidOutbid, BidOutbidEvent{
			BidID:      prevLeader.ID,
			LotID:      prevLeader.LotID,
			YourAmount: prevLeader.Amount,
			HighAmount: leader.Amount,
		}))
	}
	// Auto-bid resolution may have countered the incoming bid within the
	// same call; its bidder is then the one who ended up outbid.
	if newBid.BidderID != leader.BidderID && (prevLeader == nil || prevLeader.BidderID != newBid.BidderID) {
		e.notifier.NotifyUser(ctx, newBid.BidderID, envelope(EventTypeBidOutbid, BidOutbidEvent{
			BidID:      newBid.ID,
			LotID:      newBid.LotID,
			YourAmount: newBid.Amount,
			HighAmount: leader.Amount,
		}))
	}

	return &PlaceBidResult{
		Bid:           newBid,
		NewHighAmount: leader.Amount,
		TotalBids:     total,
	}, nil
}

// takeLead demotes every active bid on the lot and inserts bid as the new
// leader. Demotion runs first so the at-most-one-active invariant holds at
// every statement boundary.
func (e *Engine) takeLead(ctx context.Context, tx pgx.Tx, bid *Bid) error {
	if err := e.bidRepo.DemoteActiveBids(ctx, tx, bid.LotID, bid.ID); err != nil {
		return fmt.Errorf("failed to demote prior leaders: %w", err)
	}
	if err := e.bidRepo.SaveBid(ctx, tx, bid); err != nil {
		return fmt.Errorf("failed to save bid: %w", err)
	}
	return nil
}

// resolveAutoBids runs bounded proxy-bid resolution and returns the final
// leader. Each round inserts one real bid row:
//
//   - a challenger whose ceiling beats the leader's cap takes the lead one
//     unit above that cap (or above the current amount for manual leaders),
//     capped at the challenger's own ceiling;
//   - otherwise the leader auto-defends one unit above the challenger's
//     ceiling, capped at its own. Equal ceilings end the loop with the
//     incumbent leading, since an equal counter-bid is not strictly greater.
func (e *Engine) resolveAutoBids(ctx context.Context, tx pgx.Tx, leader *Bid) (*Bid, error) {
	for round := 0; round < maxAutoBidRounds; round++ {
		challenger, err := e.bidRepo.GetBestAutoBid(ctx, tx, leader.LotID, leader.Amount, leader.BidderID)
		if err != nil {
			return nil, fmt.Errorf("failed to look up auto-bids: %w", err)
		}
		if challenger == nil {
			return leader, nil
		}

		defenseCap := leader.AutoBidCeiling()
		var next *Bid
		if challenger.AutoBidCeiling() > defenseCap {
			amount := max(leader.Amount, defenseCap) + 1
			if amount > challenger.AutoBidCeiling() {
				amount = challenger.AutoBidCeiling()
			}
			next = proxyBid(challenger, leader, amount)
		} else {
			amount := challenger.AutoBidCeiling() + 1
			if amount > defenseCap {
				// Equal ceilings: the incumbent cannot counter with a
				// strictly greater amount and keeps the lead as-is.
				return leader, nil
			}
			next = proxyBid(leader, leader, amount)
		}

		if err := e.takeLead(ctx, tx, next); err != nil {
			return nil, err
		}
		leader = next
	}

	e.logger.Warn("auto-bid resolution hit round limit", "lot_id", leader.LotID)
	return leader, nil
}

// proxyBid builds the engine-generated follow-up bid placed on behalf of
// the owner of src, on the same lot as cur.
func proxyBid(src, cur *Bid, amount int64) *Bid {
	ceiling := src.AutoBidCeiling()
	return &Bid{
		ID:         uuid.New(),
		LotID:      cur.LotID,
		AuctionID:  cur.AuctionID,
		BidderID:   src.BidderID,
		Amount:     amount,
		Status:     BidStatusActive,
		IsAutoBid:  true,
		MaxAutoBid: &ceiling,
		PlacedAt:   time.Now(),
	}
}

// WithdrawBid withdraws a bid owned by the requester. Withdrawing the
// current leader is refused inside the configured window before the
// auction ends; otherwise the highest remaining bid is promoted back to
// leader without creating a new row.
func (e *Engine) WithdrawBid(ctx context.Context, cmd WithdrawBidCommand) (*WithdrawBidResult, error) {
	// Resolve the lot first so the lock is taken in the same order as
	// PlaceBid.
	peek, err := e.bidRepo.GetBidByID(ctx, cmd.BidID)
	if err != nil {
		return nil, err
	}

	tx, err := e.txManager.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if _, err := e.lotRepo.GetLotByIDForUpdate(ctx, tx, peek.LotID); err != nil {
		if database.IsLockTimeout(err) {
			return nil, ErrConcurrentConflict
		}
		return nil, err
	}

	// Re-read under the lock; the bid may have been demoted meanwhile.
	bid, err := e.bidRepo.GetBidByIDTx(ctx, tx, cmd.BidID)
	if err != nil {
		return nil, err
	}

	if bid.BidderID != cmd.RequesterID {
		return nil, ErrNotBidOwner
	}
	if bid.Status != BidStatusActive && bid.Status != BidStatusOutbid {
		return nil, ErrBidNotWithdrawable
	}

	auction, err := e.auctionRepo.GetAuctionByIDTx(ctx, tx, bid.AuctionID)
	if err != nil {
		return nil, err
	}

	wasLeader := bid.Status == BidStatusActive
	if wasLeader && time.Until(auction.EndAt) <= e.withdrawalWindow {
		return nil, ErrWithdrawalWindowClosed
	}

	if err := e.bidRepo.UpdateBidStatus(ctx, tx, bid.ID, BidStatusWithdrawn); err != nil {
		return nil, fmt.Errorf("failed to withdraw bid: %w", err)
	}
	bid.Status = BidStatusWithdrawn

	var promoted *Bid
	if wasLeader {
		promoted, err = e.bidRepo.GetHighestCompetingBid(ctx, tx, bid.LotID)
		if err != nil {
			return nil, fmt.Errorf("failed to find next leader: %w", err)
		}
		if promoted != nil {
			if err := e.bidRepo.UpdateBidStatus(ctx, tx, promoted.ID, BidStatusActive); err != nil {
				return nil, fmt.Errorf("failed to promote next leader: %w", err)
			}
			promoted.Status = BidStatusActive
		}
	}

	var eventType string
	var payload any
	if wasLeader {
		changed := LeaderChangedEvent{LotID: bid.LotID}
		if promoted != nil {
			changed.LeaderID = &promoted.BidderID
			changed.HighAmount = promoted.Amount
		}
		eventType, payload = EventTypeLeaderChanged, changed
	} else {
		eventType, payload = EventTypeBidWithdrawn, BidWithdrawnEvent{BidID: bid.ID, LotID: bid.LotID}
	}
	if err := e.saveOutboxEvent(ctx, tx, eventType, payload); err != nil {
		return nil, err
	}

	if commitErr := tx.Commit(ctx); commitErr != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", commitErr)
	}

	e.notifier.Publish(ctx, pkgevents.LotTopic(bid.LotID), envelope(eventType, payload))

	return &WithdrawBidResult{Bid: bid, NewLeader: promoted}, nil
}

// GetBiddingState computes the lot's read-only projection from the
// underlying rows on every call; nothing here is cached.
func (e *Engine) GetBiddingState(ctx context.Context, lotID uuid.UUID) (*BiddingState, error) {
	lot, err := e.lotRepo.GetLotByID(ctx, lotID)
	if err != nil {
		return nil, err
	}

	auction, err := e.auctionRepo.GetAuctionByID(ctx, lot.AuctionID)
	if err != nil {
		return nil, err
	}

	leader, err := e.bidRepo.GetCurrentLeader(ctx, lotID)
	if err != nil {
		return nil, fmt.Errorf("failed to load current leader: %w", err)
	}

	total, err := e.bidRepo.CountBids(ctx, lotID)
	if err != nil {
		return nil, fmt.Errorf("failed to count bids: %w", err)
	}

	state := &BiddingState{
		LotID:     lotID,
		TotalBids: total,
		EndAt:     auction.EndAt,
	}
	if leader != nil {
		state.HighAmount = leader.Amount
		state.LeaderID = &leader.BidderID
	}
	if remaining := time.Until(auction.EndAt); remaining > 0 {
		state.TimeRemaining = remaining
	}

	return state, nil
}

// GetBidHistory returns the lot's bids, newest first.
func (e *Engine) GetBidHistory(ctx context.Context, lotID uuid.UUID) ([]*Bid, error) {
	if _, err := e.lotRepo.GetLotByID(ctx, lotID); err != nil {
		return nil, err
	}
	return e.bidRepo.GetBidsByLotID(ctx, lotID)
}

func (e *Engine) saveOutboxEvent(ctx context.Context, tx pgx.Tx, eventType string, payload any) error {
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
	if err := e.outboxRepo.SaveEvent(ctx, tx, event); err != nil {
		return fmt.Errorf("failed to save outbox event: %w", err)
	}
	return nil
}

func envelope(eventType string, data any) pkgevents.Envelope {
	return pkgevents.Envelope{
		Type:       eventType,
		OccurredAt: time.Now().UTC().Format(time.RFC3339Nano),
		Data:       data,
	}
}
