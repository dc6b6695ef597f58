package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/citymate-api/internal/domain"
	jwtinfra "github.com/citymate-api/internal/infrastructure/jwt"
)

type contextKey string

const claimsKey contextKey = "claims"

type tokenVerifier interface {
	Verify(tokenStr string) (*jwtinfra.Claims, error)
}

type sessionLookup interface {
	Get(ctx context.Context, sessionID string) (*domain.Session, error)
}

// Auth returns middleware that validates the Bearer JWT, checks that its login
// session is still enabled, and injects claims into context.
func Auth(provider tokenVerifier, sessions sessionLookup) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenStr, ok := bearerToken(r)
			if !ok {
				writeJSONError(w, http.StatusUnauthorized, "missing or invalid authorization header")
				return
			}
			claims, ok := authenticate(w, r, provider, sessions, tokenStr)
			if !ok {
				return
			}
			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

// OptionalAuth injects claims when a valid Bearer JWT is present and passes
// anonymous requests through unchanged. An invalid token is still rejected.
func OptionalAuth(provider tokenVerifier, sessions sessionLookup) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenStr, ok := bearerToken(r)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}
			claims, ok := authenticate(w, r, provider, sessions, tokenStr)
			if !ok {
				return
			}
			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

// authenticate verifies tokenStr and its session, writing the error response
// itself when either check fails.
func authenticate(w http.ResponseWriter, r *http.Request, provider tokenVerifier, sessions sessionLookup, tokenStr string) (*jwtinfra.Claims, bool) {
	claims, err := provider.Verify(tokenStr)
	if err != nil {
		writeJSONError(w, http.StatusUnauthorized, "invalid or expired token")
		return nil, false
	}
	sess, err := sessions.Get(r.Context(), claims.SessionID)
	if errors.Is(err, domain.ErrNotFound) {
		writeJSONError(w, http.StatusUnauthorized, "session revoked")
		return nil, false
	}
	if err != nil {
		slog.Error("session lookup failed", "session_id", claims.SessionID, "err", err)
		writeJSONError(w, http.StatusInternalServerError, "internal server error")
		return nil, false
	}
	if !sess.Enable || sess.UserID != claims.UserID {
		writeJSONError(w, http.StatusUnauthorized, "session revoked")
		return nil, false
	}
	return claims, true
}

// WithClaims returns ctx carrying claims.
func WithClaims(ctx context.Context, claims *jwtinfra.Claims) context.Context {
	return context.WithValue(ctx, claimsKey, claims)
}

// ClaimsFromContext extracts JWT claims from the request context.
func ClaimsFromContext(ctx context.Context) (*jwtinfra.Claims, bool) {
	c, ok := ctx.Value(claimsKey).(*jwtinfra.Claims)
	return c, ok
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	if !strings.HasPrefix(h, "Bearer ") {
		return "", false
	}
	return strings.TrimPrefix(h, "Bearer "), true
}
