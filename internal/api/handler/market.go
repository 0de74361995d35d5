package handler

import (
	"net/http"

	"github.com/ayo6706/parimutuel-markets/internal/domain"
	"github.com/ayo6706/parimutuel-markets/internal/service"
	"go.uber.org/zap"
)

type MarketHandler struct {
	markets    *service.MarketService
	settlement *service.SettlementService
}

func NewMarketHandler(markets *service.MarketService, settlement *service.SettlementService) *MarketHandler {
	return &MarketHandler{markets: markets, settlement: settlement}
}

type createMarketRequest struct {
	Title         string `json:"title" validate:"required,max=200"`
	Description   string `json:"description" validate:"max=2000"`
	OutcomeALabel string `json:"outcome_a_label" validate:"max=64"`
	OutcomeBLabel string `json:"outcome_b_label" validate:"max=64"`
	BonusPool     string `json:"bonus_pool"`
}

func (h *MarketHandler) CreateMarket(w http.ResponseWriter, r *http.Request) {
	actorID, ok := mustActor(w, r)
	if !ok {
		return
	}
	var req createMarketRequest
	if !decodeBody(w, r, &req) {
		return
	}
	var bonus int64
	if req.BonusPool != "" {
		v, err := domain.ParseAmount(req.BonusPool)
		if err != nil || v < 0 {
			RespondError(w, r, http.StatusBadRequest, "request/invalid-amount", "bonus_pool must be a non-negative amount")
			return
		}
		bonus = v
	}

	market, err := h.markets.CreateMarket(r.Context(), service.CreateMarketInput{
		Title:         req.Title,
		Description:   req.Description,
		OutcomeALabel: req.OutcomeALabel,
		OutcomeBLabel: req.OutcomeBLabel,
		BonusPool:     bonus,
	}, &actorID)
	if err != nil {
		respondServiceError(w, r, "create market", err)
		return
	}
	RespondJSON(w, http.StatusCreated, market)
}

func (h *MarketHandler) ListMarkets(w http.ResponseWriter, r *http.Request) {
	markets, err := h.markets.ListMarkets(r.Context(), r.URL.Query().Get("status"), queryInt(r, "limit"), queryInt(r, "offset"))
	if err != nil {
		respondServiceError(w, r, "list markets", err)
		return
	}
	RespondJSON(w, http.StatusOK, markets)
}

func (h *MarketHandler) GetMarket(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "id")
	if !ok {
		return
	}
	market, err := h.markets.GetMarket(r.Context(), id)
	if err != nil {
		respondServiceError(w, r, "get market", err)
		return
	}
	RespondJSON(w, http.StatusOK, market)
}

func (h *MarketHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	actorID, ok := mustActor(w, r)
	if !ok {
		return
	}
	id, ok := urlUUID(w, r, "id")
	if !ok {
		return
	}
	var req struct {
		Status string `json:"status" validate:"required"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	market, err := h.markets.TransitionStatus(r.Context(), id, req.Status, &actorID)
	if err != nil {
		respondServiceError(w, r, "transition market", err)
		return
	}
	RespondJSON(w, http.StatusOK, market)
}

func (h *MarketHandler) ListBets(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "id")
	if !ok {
		return
	}
	bets, err := h.markets.ListBets(r.Context(), id)
	if err != nil {
		respondServiceError(w, r, "list market bets", err)
		return
	}
	RespondJSON(w, http.StatusOK, bets)
}

// Settle resolves a market and pays its winners.
func (h *MarketHandler) Settle(w http.ResponseWriter, r *http.Request) {
	actorID, ok := mustActor(w, r)
	if !ok {
		return
	}
	id, ok := urlUUID(w, r, "id")
	if !ok {
		return
	}
	var req struct {
		WinningOutcome string `json:"winning_outcome" validate:"required"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	result, err := h.settlement.SettleMarket(r.Context(), id, req.WinningOutcome, &actorID)
	if err != nil {
		respondServiceError(w, r, "settle market", err)
		return
	}
	zap.L().Info("market settled via api",
		zap.String("market_id", id.String()),
		zap.String("actor_id", actorID.String()),
		zap.Int("payouts", result.PayoutsProcessed),
	)
	RespondJSON(w, http.StatusOK, result)
}

func (h *MarketHandler) History(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "id")
	if !ok {
		return
	}
	entries, err := h.markets.History(r.Context(), id)
	if err != nil {
		respondServiceError(w, r, "market history", err)
		return
	}
	RespondJSON(w, http.StatusOK, entries)
}
