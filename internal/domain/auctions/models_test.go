package auctions

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAuctionStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from AuctionStatus
		to   AuctionStatus
		want bool
	}{
		{AuctionStatusDraft, AuctionStatusPendingApproval, true},
		{AuctionStatusPendingApproval, AuctionStatusApproved, true},
		{AuctionStatusApproved, AuctionStatusLive, true},
		{AuctionStatusLive, AuctionStatusEnded, true},

		// No skipping forward.
		{AuctionStatusDraft, AuctionStatusApproved, false},
		{AuctionStatusDraft, AuctionStatusLive, false},
		{AuctionStatusPendingApproval, AuctionStatusLive, false},
		{AuctionStatusApproved, AuctionStatusEnded, false},

		// No moving backwards.
		{AuctionStatusApproved, AuctionStatusPendingApproval, false},
		{AuctionStatusLive, AuctionStatusApproved, false},
		{AuctionStatusEnded, AuctionStatusLive, false},

		// Cancellation is allowed from any non-terminal state.
		{AuctionStatusDraft, AuctionStatusCancelled, true},
		{AuctionStatusPendingApproval, AuctionStatusCancelled, true},
		{AuctionStatusApproved, AuctionStatusCancelled, true},
		{AuctionStatusLive, AuctionStatusCancelled, true},
		{AuctionStatusEnded, AuctionStatusCancelled, false},
		{AuctionStatusCancelled, AuctionStatusCancelled, false},

		// Terminal states permit nothing.
		{AuctionStatusEnded, AuctionStatusDraft, false},
		{AuctionStatusCancelled, AuctionStatusLive, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"_to_"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestAuctionStatus_IsTerminal(t *testing.T) {
	assert.True(t, AuctionStatusEnded.IsTerminal())
	assert.True(t, AuctionStatusCancelled.IsTerminal())
	assert.False(t, AuctionStatusDraft.IsTerminal())
	assert.False(t, AuctionStatusPendingApproval.IsTerminal())
	assert.False(t, AuctionStatusApproved.IsTerminal())
	assert.False(t, AuctionStatusLive.IsTerminal())
}

func TestAuction_IsOpenAt(t *testing.T) {
	now := time.Now()
	auction := &Auction{
		Status:  AuctionStatusLive,
		StartAt: now,
		EndAt:   now.Add(time.Hour),
	}

	assert.True(t, auction.IsOpenAt(now), "open at the start instant")
	assert.True(t, auction.IsOpenAt(now.Add(30*time.Minute)))
	assert.False(t, auction.IsOpenAt(now.Add(time.Hour)), "closed at the end instant")
	assert.False(t, auction.IsOpenAt(now.Add(-time.Second)), "closed before start")

	auction.Status = AuctionStatusApproved
	assert.False(t, auction.IsOpenAt(now.Add(30*time.Minute)), "closed unless live")
}

func TestLot_ReserveMet(t *testing.T) {
	reserve := int64(5000)
	lot := &Lot{StartingBid: 1000, Reserve: &reserve}

	assert.False(t, lot.ReserveMet(4999))
	assert.True(t, lot.ReserveMet(5000))
	assert.True(t, lot.ReserveMet(9000))

	noReserve := &Lot{StartingBid: 1000}
	assert.True(t, noReserve.ReserveMet(1000), "no reserve means always met")
}

func TestLot_IsBiddable(t *testing.T) {
	for _, status := range []LotStatus{LotStatusDraft, LotStatusSubmitted, LotStatusRejected, LotStatusSold} {
		lot := &Lot{Status: status}
		assert.False(t, lot.IsBiddable(), "status %s should not be biddable", status)
	}
	assert.True(t, (&Lot{Status: LotStatusApproved}).IsBiddable())
}
