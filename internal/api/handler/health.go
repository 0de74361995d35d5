package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
)

// Pinger reports whether the primary store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler exposes Kubernetes-style liveness and readiness endpoints.
type HealthHandler struct {
	db    Pinger
	redis redis.Cmdable
}

func NewHealthHandler(db Pinger, redis redis.Cmdable) *HealthHandler {
	return &HealthHandler{db: db, redis: redis}
}

// Live always reports OK; if the process is up, it's live.
func (h *HealthHandler) Live(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Ready checks dependencies like DB and Redis.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 1*time.Second)
	defer cancel()

	if err := h.db.Ping(ctx); err != nil {
		RespondError(w, r, http.StatusServiceUnavailable, "health/database-unavailable", "database unavailable")
		return
	}

	if h.redis != nil {
		if err := h.redis.Ping(ctx).Err(); err != nil {
			RespondError(w, r, http.StatusServiceUnavailable, "health/redis-unavailable", "redis unavailable")
			return
		}
	}

	RespondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
