package handler

import (
	"net/http"

	"github.com/ayo6706/parimutuel-markets/internal/service"
)

type WalletHandler struct {
	wallets *service.WalletService
}

func NewWalletHandler(wallets *service.WalletService) *WalletHandler {
	return &WalletHandler{wallets: wallets}
}

func (h *WalletHandler) MyWallet(w http.ResponseWriter, r *http.Request) {
	userID, ok := mustActor(w, r)
	if !ok {
		return
	}
	wallet, err := h.wallets.GetWallet(r.Context(), userID)
	if err != nil {
		respondServiceError(w, r, "get wallet", err)
		return
	}
	RespondJSON(w, http.StatusOK, wallet)
}

// MyTransactions pages through the caller's ledger, newest first.
func (h *WalletHandler) MyTransactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := mustActor(w, r)
	if !ok {
		return
	}
	txs, err := h.wallets.Statement(r.Context(), userID, queryInt(r, "page"), queryInt(r, "page_size"))
	if err != nil {
		respondServiceError(w, r, "wallet statement", err)
		return
	}
	RespondJSON(w, http.StatusOK, txs)
}

type depositRequest struct {
	Amount      string `json:"amount" validate:"required"`
	ReferenceID string `json:"reference_id" validate:"max=128"`
}

func (h *WalletHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	actorID, ok := mustActor(w, r)
	if !ok {
		return
	}
	userID, ok := urlUUID(w, r, "userID")
	if !ok {
		return
	}
	var req depositRequest
	if !decodeBody(w, r, &req) {
		return
	}
	amount, ok := parseAmount(w, r, req.Amount)
	if !ok {
		return
	}

	tx, err := h.wallets.Deposit(r.Context(), userID, amount, req.ReferenceID, &actorID)
	if err != nil {
		respondServiceError(w, r, "deposit", err)
		return
	}
	RespondJSON(w, http.StatusCreated, tx)
}
