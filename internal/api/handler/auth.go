package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/ayo6706/parimutuel-markets/internal/api/middleware"
	"github.com/ayo6706/parimutuel-markets/internal/service"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const tokenTTL = 24 * time.Hour

type AuthHandler struct {
	users *service.UserService
}

func NewAuthHandler(users *service.UserService) *AuthHandler {
	return &AuthHandler{users: users}
}

// Login is a mock login by user id. It issues a token for any existing user.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID string `json:"user_id" validate:"required"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	uid, err := uuid.Parse(req.UserID)
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-user-id", "Invalid user_id")
		return
	}

	user, err := h.users.GetUser(r.Context(), uid)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			RespondError(w, r, http.StatusNotFound, "user/not-found", "User not found")
			return
		}
		respondServiceError(w, r, "login", err)
		return
	}

	token, err := middleware.IssueToken(uid.String(), user.Role, tokenTTL)
	if err != nil {
		zap.L().Error("sign token failed", zap.Error(err))
		RespondError(w, r, http.StatusInternalServerError, "auth/token-failed", "Failed to sign token")
		return
	}

	RespondJSON(w, http.StatusOK, map[string]string{
		"token": token,
	})
}
