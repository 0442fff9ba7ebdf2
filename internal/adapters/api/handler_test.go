package api

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/easelbid/easelbid/internal/domain/auctions"
	"github.com/easelbid/easelbid/internal/domain/bidding"
)

func TestErrorKind(t *testing.T) {
	tests := []struct {
		err        error
		wantKind   string
		wantStatus int
	}{
		{bidding.ErrInvalidAmount, "invalid_amount", http.StatusBadRequest},
		{bidding.ErrAuctionNotOpen, "auction_not_open", http.StatusConflict},
		{bidding.ErrLotNotBiddable, "lot_not_biddable", http.StatusConflict},
		{bidding.ErrSelfBidForbidden, "self_bid_forbidden", http.StatusForbidden},
		{bidding.ErrBelowStartingBid, "below_starting_bid", http.StatusConflict},
		{bidding.ErrNotHighEnough, "not_high_enough", http.StatusConflict},
		{bidding.ErrInvalidAutoBidCeiling, "invalid_auto_bid_ceiling", http.StatusBadRequest},
		{bidding.ErrWithdrawalWindowClosed, "withdrawal_window_closed", http.StatusConflict},
		{bidding.ErrNotBidOwner, "not_bid_owner", http.StatusForbidden},
		{bidding.ErrBidNotWithdrawable, "bid_not_withdrawable", http.StatusConflict},
		{bidding.ErrLotNotFound, "lot_not_found", http.StatusNotFound},
		{bidding.ErrBidNotFound, "bid_not_found", http.StatusNotFound},
		{bidding.ErrAuctionNotFound, "auction_not_found", http.StatusNotFound},
		{auctions.ErrAuctionNotFound, "auction_not_found", http.StatusNotFound},
		{auctions.ErrInvalidStateTransition, "invalid_state_transition", http.StatusConflict},
		{bidding.ErrConcurrentConflict, "concurrent_conflict", http.StatusServiceUnavailable},
		{auctions.ErrConcurrentConflict, "concurrent_conflict", http.StatusServiceUnavailable},
		{errors.New("boom"), "internal", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.wantKind+"_"+tt.err.Error(), func(t *testing.T) {
			kind, status := errorKind(tt.err)
			assert.Equal(t, tt.wantKind, kind)
			assert.Equal(t, tt.wantStatus, status)
		})
	}
}

func TestErrorKindUnwrapsWrappedErrors(t *testing.T) {
	wrapped := fmt.Errorf("placing bid: %w", bidding.ErrNotHighEnough)
	kind, status := errorKind(wrapped)
	assert.Equal(t, "not_high_enough", kind)
	assert.Equal(t, http.StatusConflict, status)
}
