package handler

import (
	"net/http"

	"github.com/ayo6706/parimutuel-markets/internal/models"
	"github.com/ayo6706/parimutuel-markets/internal/service"
)

type UserHandler struct {
	users *service.UserService
}

func NewUserHandler(users *service.UserService) *UserHandler {
	return &UserHandler{users: users}
}

type createUserRequest struct {
	Username      string `json:"username" validate:"required,min=3,max=32"`
	Email         string `json:"email" validate:"omitempty,email"`
	WalletAddress string `json:"wallet_address" validate:"omitempty,max=64"`
	Role          string `json:"role" validate:"omitempty,oneof=user admin"`
}

type userResponse struct {
	*models.User
	Wallet *models.Wallet `json:"wallet"`
}

// CreateUser is the public sign-up. A requested role is ignored.
func (h *UserHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	h.create(w, r, false)
}

// CreateUserAsAdmin lets an operator create accounts with an explicit role.
func (h *UserHandler) CreateUserAsAdmin(w http.ResponseWriter, r *http.Request) {
	h.create(w, r, true)
}

func (h *UserHandler) create(w http.ResponseWriter, r *http.Request, honourRole bool) {
	var req createUserRequest
	if !decodeBody(w, r, &req) {
		return
	}
	in := service.RegisterInput{
		Username:      req.Username,
		Email:         req.Email,
		WalletAddress: req.WalletAddress,
	}
	if honourRole {
		in.Role = req.Role
	}

	user, wallet, err := h.users.Register(r.Context(), in)
	if err != nil {
		respondServiceError(w, r, "create user", err)
		return
	}
	RespondJSON(w, http.StatusCreated, userResponse{User: user, Wallet: wallet})
}

func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := mustActor(w, r)
	if !ok {
		return
	}
	user, err := h.users.GetUser(r.Context(), userID)
	if err != nil {
		respondServiceError(w, r, "get user", err)
		return
	}
	RespondJSON(w, http.StatusOK, user)
}

func (h *UserHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.Leaderboard(r.Context(), queryInt(r, "limit"))
	if err != nil {
		respondServiceError(w, r, "leaderboard", err)
		return
	}
	RespondJSON(w, http.StatusOK, users)
}
