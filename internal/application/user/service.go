package user

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/citymate-api/internal/domain"
)

const (
	fieldEnable = "enable"

	photoURLTTL = 15 * time.Minute
)

// Profile is a user as shown to its owner, with a temporary photo link.
type Profile struct {
	*domain.User
	PhotoURL string `json:"profile_photo_url,omitempty"`
}

type Service interface {
	Get(ctx context.Context, userID string) (*Profile, error)
	Deactivate(ctx context.Context, userID string) error
}

type userStore interface {
	Get(ctx context.Context, userID string) (*domain.User, error)
	Update(ctx context.Context, userID string, updates map[string]interface{}) error
}

type sessionStore interface {
	DisableByUser(ctx context.Context, userID string) error
}

type photoLinker interface {
	PresignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}

type service struct {
	repo        userStore
	sessionRepo sessionStore
	photos      photoLinker
}

type ServiceDeps struct {
	UserRepo    userStore
	SessionRepo sessionStore
	Photos      photoLinker // optional
}

func NewService(deps ServiceDeps) Service {
	return &service{
		repo:        deps.UserRepo,
		sessionRepo: deps.SessionRepo,
		photos:      deps.Photos,
	}
}

func (s *service) Get(ctx context.Context, userID string) (*Profile, error) {
	u, err := s.repo.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !u.Enable {
		return nil, fmt.Errorf("user disabled: %w", domain.ErrNotFound)
	}
	p := &Profile{User: u}
	if u.ProfilePhoto != nil && s.photos != nil {
		url, err := s.photos.PresignedURL(ctx, *u.ProfilePhoto, photoURLTTL)
		if err != nil {
			slog.Warn("failed to presign profile photo", "user_id", userID, "err", err)
		} else {
			p.PhotoURL = url
		}
	}
	return p, nil
}

// Deactivate disables the account and every login session it holds.
func (s *service) Deactivate(ctx context.Context, userID string) error {
	if err := s.repo.Update(ctx, userID, map[string]interface{}{fieldEnable: false}); err != nil {
		return err
	}
	return s.sessionRepo.DisableByUser(ctx, userID)
}
