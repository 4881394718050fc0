package middleware

import (
	"log/slog"
	"net/http"

	"github.com/mertkaradayi/bookcart/pkg/logger"
)

// RequestLogger stores a request-scoped logger in the context, enriched with
// the correlation ID set by RequestLogging and the user ID from the
// X-User-ID header. Handlers retrieve it with logger.FromContext.
//
// Mount after RequestLogging so the correlation ID is already present.
func RequestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			if uid := r.Header.Get("X-User-ID"); uid != "" {
				ctx = logger.WithUserID(ctx, uid)
			}

			enriched := logger.WithContext(ctx, base)
			ctx = logger.NewContext(ctx, enriched)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
