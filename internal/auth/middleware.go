package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/mansijimba/mediqueue-auth/internal/models"
)

// contextKey is a custom type for context keys
type contextKey string

// SessionContextKey is the key for storing session claims in context
const SessionContextKey contextKey = "session"

// SessionMiddleware validates bearer session tokens and injects the claims
// into the request context. Pending-challenge tokens are rejected here;
// they are only accepted by the resume endpoints that expect them.
func SessionMiddleware(tm *TokenManager) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, "missing authorization header", http.StatusUnauthorized)
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" {
				http.Error(w, "invalid authorization header format", http.StatusUnauthorized)
				return
			}

			claims, err := tm.ValidateSessionToken(parts[1])
			if err != nil {
				http.Error(w, "invalid or expired token", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), SessionContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetSessionFromContext returns the session claims set by SessionMiddleware,
// or nil if the request is unauthenticated.
func GetSessionFromContext(r *http.Request) *models.TokenClaims {
	claims, ok := r.Context().Value(SessionContextKey).(*models.TokenClaims)
	if !ok {
		return nil
	}
	return claims
}
