package bidding

import (
	"time"

	"github.com/easelbid/easelbid/internal/domain/auctions"
)

// ValidateBid is the pure admission check for a proposed bid. It has no
// side effects; persistence is the engine's job. Checks run in a fixed
// order and the first failure wins.
//
// currentHigh is the lot's current leading bid, nil when the lot has no
// bids yet.
func ValidateBid(
	cmd PlaceBidCommand,
	lot *auctions.Lot,
	auction *auctions.Auction,
	currentHigh *Bid,
	now time.Time,
) error {
	// 1. Amount must be a positive integer.
	if cmd.Amount <= 0 {
		return ErrInvalidAmount
	}

	// 2. The owning auction must be live and now within [start, end).
	if !auction.IsOpenAt(now) {
		return ErrAuctionNotOpen
	}

	// 3. The lot itself must be approved.
	if !lot.IsBiddable() {
		return ErrLotNotBiddable
	}

	// 4. Conflict-of-interest control: the submitting artist cannot bid.
	if cmd.BidderID == lot.ArtistID {
		return ErrSelfBidForbidden
	}

	// 5. Amount must reach the starting bid.
	if cmd.Amount < lot.StartingBid {
		return ErrBelowStartingBid
	}

	// 6. Amount must be strictly greater than the current leader. No
	// minimum increment beyond strictly-greater is enforced.
	if currentHigh != nil && cmd.Amount <= currentHigh.Amount {
		return ErrNotHighEnough
	}

	// 7. A requested auto-bid ceiling must cover the bid itself.
	if cmd.IsAutoBid && cmd.AutoBidCeiling < cmd.Amount {
		return ErrInvalidAutoBidCeiling
	}

	return nil
}
