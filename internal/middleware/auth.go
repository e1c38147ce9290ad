package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/divvyup/divvy/internal/auth"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	// AccountIDKey is the context key for storing the authenticated account ID.
	AccountIDKey contextKey = "account_id"
	// EmailKey is the context key for storing the authenticated account's email.
	EmailKey contextKey = "email"
)

// GetAccountID extracts the account ID from the context.
// Returns empty string if not found.
func GetAccountID(ctx context.Context) string {
	accountID, _ := ctx.Value(AccountIDKey).(string)
	return accountID
}

// GetEmail extracts the authenticated email from the context.
// Returns empty string if not found.
func GetEmail(ctx context.Context) string {
	email, _ := ctx.Value(EmailKey).(string)
	return email
}

// WithIdentity returns a copy of ctx carrying the verified account identity.
// Exposed for tests that bypass the HTTP layer.
func WithIdentity(ctx context.Context, accountID, email string) context.Context {
	noteIdentity(ctx, accountID)
	ctx = context.WithValue(ctx, AccountIDKey, accountID)
	return context.WithValue(ctx, EmailKey, email)
}

// RequireAuth returns middleware that validates Bearer tokens and rejects
// unauthenticated requests. On success the account ID and email are added to
// the request context; every handler re-derives the acting identity from
// there, never from the request body.
func RequireAuth(jwtManager *auth.JWTManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := claimsFromRequest(jwtManager, r)
			if err != nil {
				http.Error(w, `{"error":"unauthenticated"}`, http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(
				WithIdentity(r.Context(), claims.AccountID, claims.Email)))
		})
	}
}

// OptionalAuth returns middleware that validates Bearer tokens if present but
// allows anonymous requests through. Used for the invite preview endpoint,
// which is intentionally readable before sign-in.
func OptionalAuth(jwtManager *auth.JWTManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if claims, err := claimsFromRequest(jwtManager, r); err == nil {
				r = r.WithContext(WithIdentity(r.Context(), claims.AccountID, claims.Email))
			}
			next.ServeHTTP(w, r)
		})
	}
}

func claimsFromRequest(jwtManager *auth.JWTManager, r *http.Request) (*auth.Claims, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return nil, auth.ErrMissingToken
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return nil, auth.ErrInvalidToken
	}
	return jwtManager.Validate(parts[1])
}
