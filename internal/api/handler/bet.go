package handler

import (
	"net/http"

	"github.com/ayo6706/parimutuel-markets/internal/service"
)

type BetHandler struct {
	betting *service.BettingService
}

func NewBetHandler(betting *service.BettingService) *BetHandler {
	return &BetHandler{betting: betting}
}

type placeBetRequest struct {
	Outcome string `json:"outcome" validate:"required"`
	Amount  string `json:"amount" validate:"required"`
}

func (h *BetHandler) PlaceBet(w http.ResponseWriter, r *http.Request) {
	userID, ok := mustActor(w, r)
	if !ok {
		return
	}
	marketID, ok := urlUUID(w, r, "id")
	if !ok {
		return
	}
	var req placeBetRequest
	if !decodeBody(w, r, &req) {
		return
	}
	amount, ok := parseAmount(w, r, req.Amount)
	if !ok {
		return
	}

	result, err := h.betting.PlaceBet(r.Context(), userID, marketID, req.Outcome, amount)
	if err != nil {
		respondServiceError(w, r, "place bet", err)
		return
	}
	RespondJSON(w, http.StatusCreated, result)
}

func (h *BetHandler) MyBets(w http.ResponseWriter, r *http.Request) {
	userID, ok := mustActor(w, r)
	if !ok {
		return
	}
	bets, err := h.betting.ListUserBets(r.Context(), userID, queryInt(r, "limit"), queryInt(r, "offset"))
	if err != nil {
		respondServiceError(w, r, "list user bets", err)
		return
	}
	RespondJSON(w, http.StatusOK, bets)
}
