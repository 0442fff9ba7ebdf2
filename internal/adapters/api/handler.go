package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/easelbid/easelbid/internal/domain/auctions"
	"github.com/easelbid/easelbid/internal/domain/bidding"
	"github.com/easelbid/easelbid/pkg/auth"
)

// Handler exposes the bidding engine and lifecycle controller over JSON.
// HTTP status codes are this layer's concern; the domain only returns
// typed errors.
type Handler struct {
	engine    *bidding.Engine
	lifecycle *auctions.Service
	logger    *slog.Logger
}

// NewHandler creates the API handler.
func NewHandler(engine *bidding.Engine, lifecycle *auctions.Service, logger *slog.Logger) *Handler {
	return &Handler{
		engine:    engine,
		lifecycle: lifecycle,
		logger:    logger,
	}
}

// Routes mounts all endpoints behind the auth middleware.
func (h *Handler) Routes(verifier *auth.Verifier) http.Handler {
	r := chi.NewRouter()
	r.Use(auth.Middleware(verifier))

	r.Route("/v1", func(r chi.Router) {
		r.Post("/lots/{lotID}/bids", h.placeBid)
		r.Get("/lots/{lotID}/bidding-state", h.getBiddingState)
		r.Get("/lots/{lotID}/bids", h.getBidHistory)
		r.Post("/bids/{bidID}/withdraw", h.withdrawBid)

		r.Get("/auctions/{auctionID}", h.getAuction)
		r.Post("/auctions/{auctionID}/submit", h.submitForApproval)
		r.Post("/auctions/{auctionID}/approve", h.adminOnly(h.approve))
		r.Post("/auctions/{auctionID}/go-live", h.adminOnly(h.goLive))
		r.Post("/auctions/{auctionID}/cancel", h.adminOnly(h.cancel))
		r.Post("/auctions/{auctionID}/end", h.adminOnly(h.endAuction))
		r.Post("/auctions/{auctionID}/extend", h.adminOnly(h.extendAuction))
	})

	return r
}

type placeBidRequest struct {
	Amount         int64 `json:"amount"`
	IsAutoBid      bool  `json:"is_auto_bid,omitempty"`
	AutoBidCeiling int64 `json:"auto_bid_ceiling,omitempty"`
}

type placeBidResponse struct {
	BidID         uuid.UUID `json:"bid_id"`
	NewHighAmount int64     `json:"new_high_amount"`
	TotalBids     int64     `json:"total_bids"`
}

func (h *Handler) placeBid(w http.ResponseWriter, r *http.Request) {
	lotID, ok := h.pathUUID(w, r, "lotID")
	if !ok {
		return
	}

	var req placeBidRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "bad_request", "invalid request body")
		return
	}

	principal := auth.MustGetPrincipal(r.Context())
	result, err := h.engine.PlaceBid(r.Context(), bidding.PlaceBidCommand{
		LotID:          lotID,
		BidderID:       principal.UserID,
		Amount:         req.Amount,
		IsAutoBid:      req.IsAutoBid,
		AutoBidCeiling: req.AutoBidCeiling,
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, placeBidResponse{
		BidID:         result.Bid.ID,
		NewHighAmount: result.NewHighAmount,
		TotalBids:     result.TotalBids,
	})
}

func (h *Handler) withdrawBid(w http.ResponseWriter, r *http.Request) {
	bidID, ok := h.pathUUID(w, r, "bidID")
	if !ok {
		return
	}

	principal := auth.MustGetPrincipal(r.Context())
	result, err := h.engine.WithdrawBid(r.Context(), bidding.WithdrawBidCommand{
		BidID:       bidID,
		RequesterID: principal.UserID,
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	resp := map[string]any{"bid_id": result.Bid.ID, "status": result.Bid.Status}
	if result.NewLeader != nil {
		resp["new_leader_bid_id"] = result.NewLeader.ID
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) getBiddingState(w http.ResponseWriter, r *http.Request) {
	lotID, ok := h.pathUUID(w, r, "lotID")
	if !ok {
		return
	}

	state, err := h.engine.GetBiddingState(r.Context(), lotID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"lot_id":            state.LotID,
		"high_amount":       state.HighAmount,
		"leader_id":         state.LeaderID,
		"total_bids":        state.TotalBids,
		"time_remaining_ms": state.TimeRemaining.Milliseconds(),
		"end_at":            state.EndAt.Format(time.RFC3339),
	})
}

type bidView struct {
	ID       uuid.UUID         `json:"id"`
	BidderID uuid.UUID         `json:"bidder_id"`
	Amount   int64             `json:"amount"`
	Status   bidding.BidStatus `json:"status"`
	PlacedAt string            `json:"placed_at"`
}

func (h *Handler) getBidHistory(w http.ResponseWriter, r *http.Request) {
	lotID, ok := h.pathUUID(w, r, "lotID")
	if !ok {
		return
	}

	bids, err := h.engine.GetBidHistory(r.Context(), lotID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	views := make([]bidView, len(bids))
	for i, bid := range bids {
		views[i] = bidView{
			ID:       bid.ID,
			BidderID: bid.BidderID,
			Amount:   bid.Amount,
			Status:   bid.Status,
			PlacedAt: bid.PlacedAt.Format(time.RFC3339),
		}
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"bids": views})
}

func (h *Handler) getAuction(w http.ResponseWriter, r *http.Request) {
	auctionID, ok := h.pathUUID(w, r, "auctionID")
	if !ok {
		return
	}

	auction, err := h.lifecycle.Get(r.Context(), auctionID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"id":          auction.ID,
		"school_id":   auction.SchoolID,
		"title":       auction.Title,
		"status":      auction.Status,
		"start_at":    auction.StartAt.Format(time.RFC3339),
		"end_at":      auction.EndAt.Format(time.RFC3339),
		"fee_percent": auction.FeePercent,
		"fee_minimum": auction.FeeMinimum,
	})
}

func (h *Handler) submitForApproval(w http.ResponseWriter, r *http.Request) {
	h.runTransition(w, r, h.lifecycle.SubmitForApproval)
}

func (h *Handler) approve(w http.ResponseWriter, r *http.Request) {
	h.runTransition(w, r, h.lifecycle.Approve)
}

func (h *Handler) goLive(w http.ResponseWriter, r *http.Request) {
	h.runTransition(w, r, h.lifecycle.GoLive)
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	h.runTransition(w, r, h.lifecycle.Cancel)
}

func (h *Handler) endAuction(w http.ResponseWriter, r *http.Request) {
	auctionID, ok := h.pathUUID(w, r, "auctionID")
	if !ok {
		return
	}

	result, err := h.lifecycle.End(r.Context(), auctionID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"auction_id":    result.AuctionID,
		"already_ended": result.AlreadyEnded,
		"outcomes":      result.Outcomes,
	})
}

type extendRequest struct {
	ExtendByMs int64 `json:"extend_by_ms"`
}

func (h *Handler) extendAuction(w http.ResponseWriter, r *http.Request) {
	auctionID, ok := h.pathUUID(w, r, "auctionID")
	if !ok {
		return
	}

	var req extendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ExtendByMs <= 0 {
		h.writeError(w, http.StatusBadRequest, "bad_request", "extend_by_ms must be a positive integer")
		return
	}

	newEnd, err := h.lifecycle.Extend(r.Context(), auctionID, time.Duration(req.ExtendByMs)*time.Millisecond)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"auction_id": auctionID,
		"new_end_at": newEnd.Format(time.RFC3339),
	})
}

func (h *Handler) runTransition(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, id uuid.UUID) error) {
	auctionID, ok := h.pathUUID(w, r, "auctionID")
	if !ok {
		return
	}

	if err := op(r.Context(), auctionID); err != nil {
		h.writeDomainError(w, err)
		return
	}

	auction, err := h.lifecycle.Get(r.Context(), auctionID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"auction_id": auction.ID,
		"status":     auction.Status,
	})
}

func (h *Handler) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal := auth.MustGetPrincipal(r.Context())
		if principal.Role != auth.RoleAdmin {
			h.writeError(w, http.StatusForbidden, "forbidden", "admin role required")
			return
		}
		next(w, r)
	}
}

func (h *Handler) pathUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "bad_request", "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

// errorKind maps a domain error to its machine-readable kind and status.
func errorKind(err error) (string, int) {
	switch {
	case errors.Is(err, bidding.ErrInvalidAmount):
		return "invalid_amount", http.StatusBadRequest
	case errors.Is(err, bidding.ErrAuctionNotOpen):
		return "auction_not_open", http.StatusConflict
	case errors.Is(err, bidding.ErrLotNotBiddable):
		return "lot_not_biddable", http.StatusConflict
	case errors.Is(err, bidding.ErrSelfBidForbidden):
		return "self_bid_forbidden", http.StatusForbidden
	case errors.Is(err, bidding.ErrBelowStartingBid):
		return "below_starting_bid", http.StatusConflict
	case errors.Is(err, bidding.ErrNotHighEnough):
		return "not_high_enough", http.StatusConflict
	case errors.Is(err, bidding.ErrInvalidAutoBidCeiling):
		return "invalid_auto_bid_ceiling", http.StatusBadRequest
	case errors.Is(err, bidding.ErrWithdrawalWindowClosed):
		return "withdrawal_window_closed", http.StatusConflict
	case errors.Is(err, bidding.ErrNotBidOwner):
		return "not_bid_owner", http.StatusForbidden
	case errors.Is(err, bidding.ErrBidNotWithdrawable):
		return "bid_not_withdrawable", http.StatusConflict
	case errors.Is(err, bidding.ErrLotNotFound):
		return "lot_not_found", http.StatusNotFound
	case errors.Is(err, bidding.ErrBidNotFound):
		return "bid_not_found", http.StatusNotFound
	case errors.Is(err, bidding.ErrAuctionNotFound), errors.Is(err, auctions.ErrAuctionNotFound):
		return "auction_not_found", http.StatusNotFound
	case errors.Is(err, auctions.ErrInvalidStateTransition):
		return "invalid_state_transition", http.StatusConflict
	case errors.Is(err, bidding.ErrConcurrentConflict), errors.Is(err, auctions.ErrConcurrentConflict):
		// Retryable: the caller should back off and resubmit.
		return "concurrent_conflict", http.StatusServiceUnavailable
	default:
		return "internal", http.StatusInternalServerError
	}
}

func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	kind, status := errorKind(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed", "error", err)
		h.writeError(w, status, kind, "internal error")
		return
	}
	h.writeError(w, status, kind, err.Error())
}

func (h *Handler) writeError(w http.ResponseWriter, status int, kind, message string) {
	h.writeJSON(w, status, map[string]any{
		"error": map[string]string{"kind": kind, "message": message},
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}
