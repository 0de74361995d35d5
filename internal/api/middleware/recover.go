package middleware

import (
	"net/http"

	"github.com/ayo6706/parimutuel-markets/internal/api/problem"
	"go.uber.org/zap"
)

// RecoverMiddleware converts panics into RFC 7807 responses and logs stack
// context. http.ErrAbortHandler is re-raised so net/http can abort the
// connection quietly.
func RecoverMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					logger.Error("panic recovered",
						zap.Any("panic", rec),
						zap.String("path", r.URL.Path),
						zap.String("method", r.Method),
						zap.String("request_id", TraceIDFromContext(r.Context())),
						zap.Stack("stack"),
					)

					problem.Write(
						w,
						r,
						http.StatusInternalServerError,
						problem.Type("internal-server-error"),
						http.StatusText(http.StatusInternalServerError),
						"unexpected server error",
					)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
