// Package middleware provides the net/http authentication middleware for
// services embedding the auth engine.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/dentara/authcore/jwt"
)

// TokenValidator validates a bearer access token and returns its claims.
// *authcore.TokenService satisfies it.
type TokenValidator interface {
	ValidateAccessToken(ctx context.Context, token string) (*jwt.AccessClaims, error)
}

type contextKey struct{}

var claimsKey contextKey

// ClaimsFromContext returns the claims Authenticate stored for this
// request, or nil outside an authenticated handler.
func ClaimsFromContext(ctx context.Context) *jwt.AccessClaims {
	claims, _ := ctx.Value(claimsKey).(*jwt.AccessClaims)
	return claims
}

// BearerToken extracts the token from an Authorization header, or "" if
// the header is absent or not a bearer scheme.
func BearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return header[len(prefix):]
}

// Authenticate rejects requests without a valid bearer token and stores
// the token's claims in the request context for downstream handlers. The
// 401 body is deliberately uniform; the failure reason stays server-side.
func Authenticate(validator TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := BearerToken(r)
			if token == "" {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			claims, err := validator.ValidateAccessToken(r.Context(), token)
			if err != nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), claimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole allows only authenticated requests whose role is in roles.
// It must run inside Authenticate.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := ClaimsFromContext(r.Context())
			if claims == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			if _, ok := allowed[claims.Role]; !ok {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
