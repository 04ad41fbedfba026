package middleware

import (
	"context"
	"errors"
	"net/http"

	"campusnotify/internal/auth"
	"campusnotify/internal/httputil"
	"campusnotify/internal/model"
)

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

const (
	// IdentityKey is the context key for the authenticated caller
	IdentityKey contextKey = "identity"
)

// TokenValidator turns a raw access token into an identity.
type TokenValidator interface {
	Validate(token string) (*auth.Identity, error)
}

// AuthMiddleware rejects requests without a valid access token.
// Checks Authorization header first (for mobile), then falls back to cookie (for web)
func AuthMiddleware(tokens TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, err := tokens.Validate(auth.TokenFromRequest(r))
			if err != nil {
				switch {
				case errors.Is(err, auth.ErrTokenMissing):
					httputil.WriteUnauthorized(w, "Missing authentication token")
				case errors.Is(err, auth.ErrTokenExpired):
					httputil.WriteUnauthorizedWithCode(w, model.CodeTokenExpired, "Access token has expired")
				default:
					httputil.WriteUnauthorizedWithCode(w, model.CodeTokenInvalid, "Invalid authentication token")
				}
				return
			}

			ctx := WithIdentity(r.Context(), identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// WithIdentity stores the caller on ctx.
func WithIdentity(ctx context.Context, identity *auth.Identity) context.Context {
	return context.WithValue(ctx, IdentityKey, identity)
}

// IdentityFromContext extracts the caller from the request context
// Returns the identity and true if found, or nil and false if not found
func IdentityFromContext(ctx context.Context) (*auth.Identity, bool) {
	identity, ok := ctx.Value(IdentityKey).(*auth.Identity)
	return identity, ok && identity != nil
}
