package http

import (
	"context"
	"net/http"
)

type contextKey string

const userIDKey contextKey = "user_id"

// RequireUserID extracts the X-User-ID header injected by the gateway and
// rejects requests without it.
func RequireUserID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := r.Header.Get("X-User-ID")
		if userID == "" {
			writeJSON(w, http.StatusUnauthorized, envelope{
				Error: &errorBody{
					Code:    "UNAUTHORIZED",
					Message: "missing X-User-ID header",
				},
			})
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// UserIDFromContext returns the authenticated user ID, or "" when the
// request bypassed RequireUserID.
func UserIDFromContext(ctx context.Context) string {
	userID, _ := ctx.Value(userIDKey).(string)
	return userID
}
