package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/ayo6706/parimutuel-markets/internal/api/problem"
	"github.com/go-chi/httprate"
)

// PublicRateLimiter limits requests per client IP for unauthenticated routes.
// The IP honours X-Forwarded-For and X-Real-IP set by the ingress.
func PublicRateLimiter(rps int) func(http.Handler) http.Handler {
	return httprate.Limit(rps, time.Second,
		httprate.WithKeyFuncs(httprate.KeyByRealIP),
		httprate.WithLimitHandler(limitExceeded(rps, "IP")),
	)
}

// AuthRateLimiter limits authenticated users using their user ID as the key.
func AuthRateLimiter(rps int) func(http.Handler) http.Handler {
	return httprate.Limit(rps, time.Second,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			if userID := UserIDFromContext(r.Context()); userID != "" {
				return userID, nil
			}
			return httprate.KeyByIP(r)
		}),
		httprate.WithLimitHandler(limitExceeded(rps, "user")),
	)
}

func limitExceeded(rps int, scope string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		problem.Write(
			w,
			r,
			http.StatusTooManyRequests,
			problem.Type("rate-limit-exceeded"),
			http.StatusText(http.StatusTooManyRequests),
			fmt.Sprintf("Rate limit of %d req/s exceeded for this %s", rps, scope),
		)
	}
}
