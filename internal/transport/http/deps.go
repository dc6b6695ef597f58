package http

import (
	"context"
	"time"

	"github.com/citymate-api/internal/domain"
	jwtinfra "github.com/citymate-api/internal/infrastructure/jwt"
	"github.com/citymate-api/internal/infrastructure/smtp"
	"github.com/citymate-api/internal/infrastructure/sns"
)

// UserRepository is the minimal interface the router requires from a user store.
type UserRepository interface {
	Get(ctx context.Context, userID string) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByPhone(ctx context.Context, phone string) (*domain.User, error)
	Put(ctx context.Context, u *domain.User) error
	Update(ctx context.Context, userID string, updates map[string]interface{}) error
}

// SessionRepository is the minimal interface the router requires from a login-session store.
type SessionRepository interface {
	Put(ctx context.Context, s *domain.Session) error
	Get(ctx context.Context, sessionID string) (*domain.Session, error)
	Disable(ctx context.Context, sessionID string) error
	DisableByUser(ctx context.Context, userID string) error
}

// OTPRepository keeps at most one live code per (purpose, contact).
type OTPRepository interface {
	Replace(ctx context.Context, c *domain.OneTimeCode) error
	Get(ctx context.Context, codeID string) (*domain.OneTimeCode, error)
	Delete(ctx context.Context, c *domain.OneTimeCode) error
}

// VerificationStateStore holds pending verification state keyed by cookie session id.
type VerificationStateStore interface {
	Get(ctx context.Context, sessionID string) (*domain.VerificationState, error)
	Put(ctx context.Context, sessionID string, st *domain.VerificationState) error
	Delete(ctx context.Context, sessionID string) error
}

// PhotoStore stages, promotes and links profile photos.
type PhotoStore interface {
	Stage(ctx context.Context, userID, b64Data string) (string, error)
	Promote(ctx context.Context, stagedKey string) (string, error)
	PresignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
	Delete(ctx context.Context, key string) error
}

// TokenProvider signs and verifies bearer tokens.
type TokenProvider interface {
	Sign(userID, sessionID string) (string, error)
	Verify(tokenStr string) (*jwtinfra.Claims, error)
}

// Deps holds all infrastructure dependencies for the router. Photos, Mailer and
// SMS may be nil; the matching features then fail or report undelivered codes.
type Deps struct {
	Users         UserRepository
	Sessions      SessionRepository
	OTPs          OTPRepository
	Verifications VerificationStateStore
	Photos        PhotoStore
	Mailer        smtp.Mailer
	SMS           sns.SMSSender
	JWT           TokenProvider
}
