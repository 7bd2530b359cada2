package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/akhramovs/tempora/internal/server/auth"
)

type ctxKey int

const userIDKey ctxKey = iota

// userID returns the authenticated user of the request, or "" when the
// auth middleware did not run.
func userID(r *http.Request) string {
	id, _ := r.Context().Value(userIDKey).(string)
	return id
}

// authMiddleware validates the Bearer token and stores the user id on the
// request context. Requests without a valid token are rejected with the
// error envelope.
func authMiddleware(secretKey []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				writeJSON(w, http.StatusUnauthorized, envelope{Message: "missing bearer token"})
				return
			}

			id, err := auth.GetUserIDFromToken(token, secretKey)
			if err != nil || id == "" {
				writeJSON(w, http.StatusUnauthorized, envelope{Message: "invalid token"})
				return
			}

			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userIDKey, id)))
		})
	}
}
