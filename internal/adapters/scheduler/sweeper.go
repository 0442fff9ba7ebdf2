package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/easelbid/easelbid/internal/domain/auctions"
	pkgevents "github.com/easelbid/easelbid/pkg/events"
)

const sweepBatchSize = 50

// Sweeper periodically scans for live auctions whose end time has passed
// and closes them through the lifecycle controller. It also announces
// auctions entering the closing window, deduplicated through Redis so
// restarts and multiple workers never double-announce.
type Sweeper struct {
	lifecycle     *auctions.Service
	auctionRepo   auctions.AuctionRepository
	notifier      pkgevents.Notifier
	dedupe        *redis.Client
	interval      time.Duration
	closingWindow time.Duration
	logger        *slog.Logger
}

// NewSweeper creates a sweeper.
func NewSweeper(
	lifecycle *auctions.Service,
	auctionRepo auctions.AuctionRepository,
	notifier pkgevents.Notifier,
	dedupe *redis.Client,
	interval time.Duration,
	closingWindow time.Duration,
	logger *slog.Logger,
) *Sweeper {
	return &Sweeper{
		lifecycle:     lifecycle,
		auctionRepo:   auctionRepo,
		notifier:      notifier,
		dedupe:        dedupe,
		interval:      interval,
		closingWindow: closingWindow,
		logger:        logger,
	}
}

// Run starts the sweep loop.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	if err := s.sweep(ctx); err != nil {
		s.logger.Error("Error sweeping auctions", "error", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := s.sweep(ctx); err != nil {
				s.logger.Error("Error sweeping auctions", "error", err)
			}
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) error {
	now := time.Now()

	expired, err := s.auctionRepo.ListExpiredLive(ctx, now, sweepBatchSize)
	if err != nil {
		return fmt.Errorf("failed to list expired auctions: %w", err)
	}

	for _, auction := range expired {
		result, err := s.lifecycle.End(ctx, auction.ID)
		if err != nil {
			// One failed close must not stall the rest of the batch.
			s.logger.Error("failed to end auction", "auction_id", auction.ID, "error", err)
			continue
		}
		if !result.AlreadyEnded {
			s.logger.Info("auction ended by sweep", "auction_id", auction.ID, "lots", len(result.Outcomes))
		}
	}

	return s.announceClosingSoon(ctx, now)
}

func (s *Sweeper) announceClosingSoon(ctx context.Context, now time.Time) error {
	closing, err := s.auctionRepo.ListClosingSoon(ctx, now, s.closingWindow, sweepBatchSize)
	if err != nil {
		return fmt.Errorf("failed to list closing auctions: %w", err)
	}

	for _, auction := range closing {
		// SetNX with a TTL past the auction end keeps the announcement
		// once-only without any in-process state.
		key := fmt.Sprintf("sweep:closing:%s", auction.ID)
		ttl := time.Until(auction.EndAt) + s.closingWindow
		first, err := s.dedupe.SetNX(ctx, key, 1, ttl).Result()
		if err != nil {
			s.logger.Error("closing-soon dedupe failed", "auction_id", auction.ID, "error", err)
			continue
		}
		if !first {
			continue
		}

		s.notifier.Publish(ctx, pkgevents.AuctionTopic(auction.ID), pkgevents.Envelope{
			Type:       auctions.EventTypeAuctionClosingSoon,
			OccurredAt: now.UTC().Format(time.RFC3339Nano),
			Data: auctions.AuctionClosingSoonEvent{
				AuctionID: auction.ID,
				EndAt:     auction.EndAt,
			},
		})
	}

	return nil
}
