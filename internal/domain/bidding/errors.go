package bidding

import "errors"

// Business-rule violations are returned as typed errors, never panics.
// The API adapter maps each to a machine-readable kind and status code.
var (
	ErrInvalidAmount          = errors.New("bid amount must be a positive integer")
	ErrAuctionNotOpen         = errors.New("auction is not open for bidding")
	ErrLotNotBiddable         = errors.New("lot is not approved for bidding")
	ErrSelfBidForbidden       = errors.New("artists cannot bid on their own lot")
	ErrBelowStartingBid       = errors.New("bid amount is below the lot's starting bid")
	ErrNotHighEnough          = errors.New("bid amount must be higher than the current highest bid")
	ErrInvalidAutoBidCeiling  = errors.New("auto-bid ceiling must be at least the bid amount")
	ErrWithdrawalWindowClosed = errors.New("leading bids cannot be withdrawn this close to the auction end")
	ErrNotBidOwner            = errors.New("only the bidder can withdraw their bid")
	ErrBidNotWithdrawable     = errors.New("bid is not in a withdrawable state")

	ErrLotNotFound     = errors.New("lot not found")
	ErrAuctionNotFound = errors.New("auction not found")
	ErrBidNotFound     = errors.New("bid not found")

	// ErrConcurrentConflict means the per-lot lock could not be acquired
	// within the configured timeout. Callers should retry with backoff.
	ErrConcurrentConflict = errors.New("lot is locked by a concurrent bid, retry")
)
