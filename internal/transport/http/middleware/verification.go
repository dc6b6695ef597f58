package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/citymate-api/internal/pkg/token"
)

const verificationKey contextKey = "verification_session"

// CookieOptions configures the verification session cookie.
type CookieOptions struct {
	Name   string
	Secure bool
	MaxAge time.Duration
}

// VerificationSession makes sure every request carries a verification session id.
// The id comes from the cookie when present, otherwise a new one is minted and set.
func VerificationSession(opts CookieOptions) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var sid string
			if c, err := r.Cookie(opts.Name); err == nil && validSessionID(c.Value) {
				sid = c.Value
			} else {
				sid, err = token.NewSessionToken()
				if err != nil {
					writeJSONError(w, http.StatusInternalServerError, "could not start verification session")
					return
				}
			}
			http.SetCookie(w, &http.Cookie{
				Name:     opts.Name,
				Value:    sid,
				Path:     "/",
				MaxAge:   int(opts.MaxAge.Seconds()),
				HttpOnly: true,
				Secure:   opts.Secure,
				SameSite: http.SameSiteLaxMode,
			})
			ctx := context.WithValue(r.Context(), verificationKey, sid)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// VerificationSessionID returns the id placed by VerificationSession, or "".
func VerificationSessionID(ctx context.Context) string {
	sid, _ := ctx.Value(verificationKey).(string)
	return sid
}

// validSessionID accepts only ids shaped like token.NewSessionToken output.
func validSessionID(s string) bool {
	if len(s) != 64 {
		return false
	}
	for _, c := range s {
		if !(c >= '0' && c <= '9' || c >= 'a' && c <= 'f') {
			return false
		}
	}
	return true
}
