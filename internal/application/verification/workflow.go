// Package verification runs the per-session workflows that must confirm a
// contact address with a one-time code before changing an identity.
package verification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/citymate-api/internal/application/otp"
	"github.com/citymate-api/internal/domain"
	"github.com/citymate-api/internal/pkg/contact"
)

// DynamoDB attribute names used in partial update maps.
const (
	fieldUsername       = "username"
	fieldEmail          = "email"
	fieldPhone          = "phone"
	fieldAge            = "age"
	fieldPreferredCity  = "preferred_city"
	fieldPreferredArea  = "preferred_area"
	fieldPreferredPrice = "preferred_price"
	fieldTasteTags      = "taste_tags"
	fieldProfilePhoto   = "profile_photo"
	fieldVerified       = "is_verified"
	fieldEmailVerified  = "email_verified"
	fieldPhoneVerified  = "phone_verified"
	fieldPasswordHash   = "password_hash"
)

type stateStore interface {
	Get(ctx context.Context, sessionID string) (*domain.VerificationState, error)
	Put(ctx context.Context, sessionID string, st *domain.VerificationState) error
	Delete(ctx context.Context, sessionID string) error
}

type userStore interface {
	Get(ctx context.Context, userID string) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByPhone(ctx context.Context, phone string) (*domain.User, error)
	Put(ctx context.Context, u *domain.User) error
	Update(ctx context.Context, userID string, updates map[string]interface{}) error
}

type sessionRevoker interface {
	DisableByUser(ctx context.Context, userID string) error
}

type photoStore interface {
	Stage(ctx context.Context, userID, b64Data string) (string, error)
	Promote(ctx context.Context, stagedKey string) (string, error)
	Delete(ctx context.Context, key string) error
}

// Pending is the client-facing view of a session's verification state.
type Pending struct {
	Purpose      domain.Purpose `json:"purpose"`
	Step         domain.Step    `json:"step"`
	Contact      string         `json:"contact"`
	Channel      domain.Channel `json:"channel"`
	Delivered    bool           `json:"delivered"`
	AttemptsLeft *int           `json:"attempts_left,omitempty"`
}

// Result is returned by Complete. User is the created or updated account.
type Result struct {
	Purpose domain.Purpose
	User    *domain.User
}

type ServiceDeps struct {
	OTP         otp.Service
	States      stateStore
	Users       userStore
	Sessions    sessionRevoker // optional, revokes logins after a password reset
	Photos      photoStore     // optional, photo edits are rejected without it
	MaxAttempts int            // 0 disables the limit
	Now         func() time.Time
}

type Workflow struct {
	otp         otp.Service
	states      stateStore
	users       userStore
	sessions    sessionRevoker
	photos      photoStore
	maxAttempts int
	now         func() time.Time
}

func NewWorkflow(deps ServiceDeps) *Workflow {
	now := deps.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Workflow{
		otp:         deps.OTP,
		states:      deps.States,
		users:       deps.Users,
		sessions:    deps.Sessions,
		photos:      deps.Photos,
		maxAttempts: deps.MaxAttempts,
		now:         now,
	}
}

// SubmitCode checks code against the session's pending OTP. A wrong or expired
// code keeps the state waiting and counts the attempt.
func (w *Workflow) SubmitCode(ctx context.Context, sessionID, code string) (*Pending, error) {
	st, err := w.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if st.Step != domain.StepAwaitingOTP {
		return nil, fmt.Errorf("code already verified: %w", domain.ErrSessionExpired)
	}
	c, err := w.otp.Verify(ctx, st.OTPID, code, st.Purpose)
	if err != nil {
		if !otp.IsRetryable(err) {
			return nil, err
		}
		st.Attempts++
		if w.maxAttempts > 0 && st.Attempts >= w.maxAttempts {
			w.discard(ctx, sessionID, st)
			return nil, fmt.Errorf("%d failed attempts: %w", st.Attempts, domain.ErrTooManyAttempts)
		}
		if perr := w.states.Put(ctx, sessionID, st); perr != nil {
			return nil, perr
		}
		return nil, err
	}

	if st.Purpose == domain.PurposePasswordReset {
		if c.UserID == nil {
			return nil, fmt.Errorf("reset code has no owner: %w", domain.ErrSessionExpired)
		}
		st.PasswordReset.UserID = *c.UserID
	}
	st.Step = domain.StepVerified
	if err := w.states.Put(ctx, sessionID, st); err != nil {
		return nil, err
	}
	return w.view(st), nil
}

// Current returns the pending state of sessionID, or ErrNotFound when there is none.
func (w *Workflow) Current(ctx context.Context, sessionID string) (*Pending, error) {
	st, err := w.states.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return w.view(st), nil
}

// Abandon drops any pending state of sessionID.
func (w *Workflow) Abandon(ctx context.Context, sessionID string) error {
	st, err := w.states.Get(ctx, sessionID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	w.discard(ctx, sessionID, st)
	return nil
}

// load returns a usable pending state or ErrSessionExpired.
func (w *Workflow) load(ctx context.Context, sessionID string) (*domain.VerificationState, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("no verification session: %w", domain.ErrSessionExpired)
	}
	st, err := w.states.Get(ctx, sessionID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("no pending verification: %w", domain.ErrSessionExpired)
	}
	if err != nil {
		return nil, err
	}
	if st.OTPID == "" || !st.Consistent() {
		return nil, fmt.Errorf("pending verification is incomplete: %w", domain.ErrSessionExpired)
	}
	return st, nil
}

// begin issues a code for st and stores it as the session's only pending state.
func (w *Workflow) begin(ctx context.Context, sessionID string, st *domain.VerificationState, owner *string) (*Pending, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("verification session id is required: %w", domain.ErrBadRequest)
	}
	prev, err := w.states.Get(ctx, sessionID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		slog.Warn("failed to read previous verification state", "purpose", st.Purpose, "err", err)
		prev = nil
	}
	issued, err := w.otp.Issue(ctx, otp.IssueRequest{
		Contact: st.Contact,
		Channel: st.Channel,
		Purpose: st.Purpose,
		UserID:  owner,
	})
	if err != nil {
		return nil, err
	}
	st.Step = domain.StepAwaitingOTP
	st.OTPID = issued.OTP.CodeID
	st.Delivered = issued.Delivered
	st.Attempts = 0
	st.StartedAt = w.now()
	if err := w.states.Put(ctx, sessionID, st); err != nil {
		return nil, err
	}
	if prev != nil {
		w.releasePhoto(ctx, prev)
	}
	return w.view(st), nil
}

// discard deletes the state, its code and any staged photo. Failures are logged.
func (w *Workflow) discard(ctx context.Context, sessionID string, st *domain.VerificationState) {
	if err := w.states.Delete(ctx, sessionID); err != nil {
		slog.Warn("failed to delete verification state", "purpose", st.Purpose, "err", err)
	}
	if c, err := w.otp.Lookup(ctx, st.OTPID); err == nil {
		if err := w.otp.Consume(ctx, c); err != nil {
			slog.Warn("failed to delete code", "purpose", st.Purpose, "err", err)
		}
	}
	w.releasePhoto(ctx, st)
}

func (w *Workflow) releasePhoto(ctx context.Context, st *domain.VerificationState) {
	if st.ProfileUpdate == nil || st.ProfileUpdate.Edits.PhotoKey == nil || w.photos == nil {
		return
	}
	if err := w.photos.Delete(ctx, *st.ProfileUpdate.Edits.PhotoKey); err != nil {
		slog.Warn("failed to delete staged photo", "key", *st.ProfileUpdate.Edits.PhotoKey, "err", err)
	}
}

func (w *Workflow) view(st *domain.VerificationState) *Pending {
	p := &Pending{
		Purpose:   st.Purpose,
		Step:      st.Step,
		Contact:   contact.Mask(st.Contact),
		Channel:   st.Channel,
		Delivered: st.Delivered,
	}
	if w.maxAttempts > 0 {
		left := max(w.maxAttempts-st.Attempts, 0)
		p.AttemptsLeft = &left
	}
	return p
}
