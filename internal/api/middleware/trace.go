package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

const maxTraceIDLength = 128

// TraceMiddleware ensures each request has a trace identifier propagated via
// context and headers. An inbound X-Trace-ID or X-Request-ID is reused when it
// is short and printable.
func TraceMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID := r.Header.Get("X-Trace-ID")
		if traceID == "" {
			traceID = r.Header.Get("X-Request-ID")
		}
		if !validTraceID(traceID) {
			traceID = uuid.NewString()
		}
		ctx := contextWithTraceID(r.Context(), traceID)
		w.Header().Set("X-Trace-ID", traceID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func validTraceID(id string) bool {
	if id == "" || len(id) > maxTraceIDLength {
		return false
	}
	for i := 0; i < len(id); i++ {
		if id[i] < 0x21 || id[i] > 0x7e {
			return false
		}
	}
	return true
}

func contextWithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceContextKey, traceID)
}
