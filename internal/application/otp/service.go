package otp

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/citymate-api/internal/domain"
	"github.com/citymate-api/internal/pkg/contact"
	"github.com/citymate-api/internal/pkg/id"
)

var codeSpace = big.NewInt(1000000)

type store interface {
	Replace(ctx context.Context, c *domain.OneTimeCode) error
	Get(ctx context.Context, codeID string) (*domain.OneTimeCode, error)
	Delete(ctx context.Context, c *domain.OneTimeCode) error
}

type dispatcher interface {
	Send(ctx context.Context, channel domain.Channel, addr, code string) error
}

type IssueRequest struct {
	Contact string
	Channel domain.Channel
	Purpose domain.Purpose
	UserID  *string // owning account, when one exists
}

// Issued reports a stored code and whether its delivery succeeded.
type Issued struct {
	OTP       *domain.OneTimeCode
	Delivered bool
}

type Service interface {
	Issue(ctx context.Context, req IssueRequest) (*Issued, error)
	Verify(ctx context.Context, codeID, code string, purpose domain.Purpose) (*domain.OneTimeCode, error)
	Lookup(ctx context.Context, codeID string) (*domain.OneTimeCode, error)
	Consume(ctx context.Context, c *domain.OneTimeCode) error
}

type Option func(*service)

// WithClock replaces the time source.
func WithClock(now func() time.Time) Option {
	return func(s *service) { s.now = now }
}

type service struct {
	store           store
	dispatcher      dispatcher
	ttl             time.Duration
	dispatchTimeout time.Duration
	now             func() time.Time
}

func NewService(store store, dispatcher dispatcher, ttl, dispatchTimeout time.Duration, opts ...Option) Service {
	s := &service{
		store:           store,
		dispatcher:      dispatcher,
		ttl:             ttl,
		dispatchTimeout: dispatchTimeout,
		now:             func() time.Time { return time.Now().UTC() },
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Issue stores a fresh code for (contact, purpose), replacing any earlier one, then delivers it.
// A failed delivery leaves the code valid and is reported through Issued.Delivered.
func (s *service) Issue(ctx context.Context, req IssueRequest) (*Issued, error) {
	if strings.TrimSpace(req.Contact) == "" {
		return nil, fmt.Errorf("contact is required: %w", domain.ErrValidation)
	}
	if !req.Channel.Valid() {
		return nil, fmt.Errorf("unknown channel %q: %w", req.Channel, domain.ErrValidation)
	}
	if !req.Purpose.Valid() {
		return nil, fmt.Errorf("unknown purpose %q: %w", req.Purpose, domain.ErrValidation)
	}
	code, err := generateCode()
	if err != nil {
		return nil, err
	}
	now := s.now()
	c := &domain.OneTimeCode{
		CodeID:    id.New(),
		UserID:    req.UserID,
		Contact:   req.Contact,
		Code:      code,
		Channel:   req.Channel,
		Purpose:   req.Purpose,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	if err := s.store.Replace(ctx, c); err != nil {
		return nil, fmt.Errorf("store code: %w", err)
	}
	return &Issued{OTP: c, Delivered: s.deliver(ctx, c)}, nil
}

// Verify checks code against the record codeID. Unknown ids, wrong codes and
// wrong purposes all yield ErrNotFound. The record is left in place.
func (s *service) Verify(ctx context.Context, codeID, code string, purpose domain.Purpose) (*domain.OneTimeCode, error) {
	c, err := s.Lookup(ctx, codeID)
	if err != nil {
		return nil, err
	}
	if subtle.ConstantTimeCompare([]byte(c.Code), []byte(strings.TrimSpace(code))) != 1 || c.Purpose != purpose {
		return nil, fmt.Errorf("code does not match: %w", domain.ErrNotFound)
	}
	if c.Expired(s.now()) {
		return nil, fmt.Errorf("code issued at %s: %w", c.CreatedAt.Format(time.RFC3339), domain.ErrExpiredCode)
	}
	return c, nil
}

// Lookup returns the record codeID without checking code or expiry.
func (s *service) Lookup(ctx context.Context, codeID string) (*domain.OneTimeCode, error) {
	if codeID == "" {
		return nil, fmt.Errorf("code id is empty: %w", domain.ErrNotFound)
	}
	c, err := s.store.Get(ctx, codeID)
	if err != nil {
		return nil, fmt.Errorf("lookup code: %w", err)
	}
	return c, nil
}

// Consume deletes c once the workflow it authorized has completed.
func (s *service) Consume(ctx context.Context, c *domain.OneTimeCode) error {
	if err := s.store.Delete(ctx, c); err != nil {
		return fmt.Errorf("consume code: %w", err)
	}
	return nil
}

func (s *service) deliver(ctx context.Context, c *domain.OneTimeCode) bool {
	if s.dispatcher == nil {
		slog.Warn("no dispatcher configured, code not delivered", "purpose", c.Purpose, "channel", c.Channel)
		return false
	}
	dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.dispatchTimeout)
	defer cancel()
	if err := s.dispatcher.Send(dctx, c.Channel, c.Contact, c.Code); err != nil {
		slog.Warn("code dispatch failed",
			"purpose", c.Purpose,
			"channel", c.Channel,
			"contact", contact.Mask(c.Contact),
			"err", err,
		)
		return false
	}
	return true
}

func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, codeSpace)
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

// IsRetryable reports whether err is a submission failure the user may retry.
func IsRetryable(err error) bool {
	return errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrExpiredCode)
}
