package verification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/citymate-api/internal/domain"
	"github.com/citymate-api/internal/pkg/id"
	"github.com/citymate-api/internal/pkg/validate"
	"golang.org/x/crypto/bcrypt"
)

// CompleteRequest carries the final form. Password fields apply to signup and
// password reset; the profile fields are optional signup extras.
type CompleteRequest struct {
	Password        string  `json:"password"`
	ConfirmPassword string  `json:"confirm_password"`
	Age             *int    `json:"age" validate:"omitempty,min=13,max=120"`
	PreferredCity   *string `json:"preferred_city" validate:"omitempty,max=100"`
	PreferredArea   *string `json:"preferred_area" validate:"omitempty,oneof=rs_puram gandhipuram peelamedu hopes saibaba_colony singanallur other"`
	PreferredPrice  *string `json:"preferred_price" validate:"omitempty,oneof=economical average premium"`
	TasteTags       *string `json:"taste_tags" validate:"omitempty,max=500"`
}

type passwordPair struct {
	Password        string `validate:"min=8,max=72"`
	ConfirmPassword string `validate:"eqfield=Password"`
}

// Complete applies the verified change. callerID is the authenticated user, if any;
// profile updates require it to match the pending owner.
func (w *Workflow) Complete(ctx context.Context, sessionID, callerID string, req CompleteRequest) (*Result, error) {
	st, err := w.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if st.Step != domain.StepVerified {
		return nil, fmt.Errorf("code not verified yet: %w", domain.ErrSessionExpired)
	}
	c, err := w.otp.Lookup(ctx, st.OTPID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("code was superseded: %w", domain.ErrSessionExpired)
	}
	if err != nil {
		return nil, err
	}

	var u *domain.User
	switch st.Purpose {
	case domain.PurposeSignup:
		u, err = w.completeSignup(ctx, st, req)
	case domain.PurposePasswordReset:
		u, err = w.completePasswordReset(ctx, st, req)
	case domain.PurposeProfileUpdate:
		u, err = w.completeProfileUpdate(ctx, st, callerID)
	default:
		err = fmt.Errorf("unknown purpose %q: %w", st.Purpose, domain.ErrSessionExpired)
	}
	if err != nil {
		return nil, err
	}

	if err := w.otp.Consume(ctx, c); err != nil {
		slog.Warn("failed to consume code", "purpose", st.Purpose, "err", err)
	}
	if err := w.states.Delete(ctx, sessionID); err != nil {
		slog.Warn("failed to clear verification state", "purpose", st.Purpose, "err", err)
	}
	return &Result{Purpose: st.Purpose, User: u}, nil
}

func (w *Workflow) completeSignup(ctx context.Context, st *domain.VerificationState, req CompleteRequest) (*domain.User, error) {
	if err := validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrValidation, err)
	}
	hash, err := hashPassword(req.Password, req.ConfirmPassword)
	if err != nil {
		return nil, err
	}
	if err := w.ensureUsernameFree(ctx, st.Signup.Username, ""); err != nil {
		return nil, err
	}
	if err := w.ensureContactFree(ctx, st.Contact, st.Channel, ""); err != nil {
		return nil, err
	}

	now := w.now()
	addr := st.Contact
	u := &domain.User{
		UserID:         id.New(),
		Username:       st.Signup.Username,
		PasswordHash:   hash,
		Age:            req.Age,
		PreferredCity:  domain.DefaultPreferredCity,
		PreferredArea:  req.PreferredArea,
		PreferredPrice: req.PreferredPrice,
		Verified:       true,
		Enable:         true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if req.PreferredCity != nil && strings.TrimSpace(*req.PreferredCity) != "" {
		u.PreferredCity = strings.TrimSpace(*req.PreferredCity)
	}
	if req.TasteTags != nil {
		u.TasteTags = strings.TrimSpace(*req.TasteTags)
	}
	switch st.Channel {
	case domain.ChannelEmail:
		u.Email = &addr
		u.EmailVerified = true
	case domain.ChannelPhone:
		u.Phone = &addr
		u.PhoneVerified = true
	}
	if err := w.users.Put(ctx, u); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

func (w *Workflow) completePasswordReset(ctx context.Context, st *domain.VerificationState, req CompleteRequest) (*domain.User, error) {
	hash, err := hashPassword(req.Password, req.ConfirmPassword)
	if err != nil {
		return nil, err
	}
	userID := st.PasswordReset.UserID
	if userID == "" {
		return nil, fmt.Errorf("reset owner unknown: %w", domain.ErrSessionExpired)
	}
	owner, err := w.users.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !owner.Enable {
		return nil, fmt.Errorf("account disabled: %w", domain.ErrForbidden)
	}
	if err := w.users.Update(ctx, userID, map[string]interface{}{fieldPasswordHash: hash}); err != nil {
		return nil, fmt.Errorf("set password: %w", err)
	}
	if w.sessions != nil {
		if err := w.sessions.DisableByUser(ctx, userID); err != nil {
			slog.Warn("failed to revoke sessions after password reset", "user_id", userID, "err", err)
		}
	}
	return w.users.Get(ctx, userID)
}

func (w *Workflow) completeProfileUpdate(ctx context.Context, st *domain.VerificationState, callerID string) (*domain.User, error) {
	p := st.ProfileUpdate
	if callerID == "" {
		return nil, fmt.Errorf("login required: %w", domain.ErrUnauthorized)
	}
	if callerID != p.UserID {
		return nil, fmt.Errorf("pending update belongs to another account: %w", domain.ErrForbidden)
	}
	u, err := w.users.Get(ctx, p.UserID)
	if err != nil {
		return nil, err
	}
	if !u.Enable {
		return nil, fmt.Errorf("account disabled: %w", domain.ErrForbidden)
	}
	e := p.Edits
	if e.Username != nil {
		if err := w.ensureUsernameFree(ctx, *e.Username, u.UserID); err != nil {
			return nil, err
		}
	}
	if e.Email != nil {
		if err := w.ensureContactFree(ctx, *e.Email, domain.ChannelEmail, u.UserID); err != nil {
			return nil, err
		}
	}
	if e.Phone != nil {
		if err := w.ensureContactFree(ctx, *e.Phone, domain.ChannelPhone, u.UserID); err != nil {
			return nil, err
		}
	}

	updates := profileUpdates(e, st.Channel)
	oldPhoto := u.ProfilePhoto
	if e.PhotoKey != nil && w.photos != nil {
		key, err := w.photos.Promote(ctx, *e.PhotoKey)
		if err != nil {
			return nil, fmt.Errorf("promote photo: %w", err)
		}
		updates[fieldProfilePhoto] = key
	} else if e.ClearPhoto {
		updates[fieldProfilePhoto] = nil
	}

	if err := w.users.Update(ctx, u.UserID, updates); err != nil {
		return nil, fmt.Errorf("apply profile edits: %w", err)
	}
	if _, replaced := updates[fieldProfilePhoto]; replaced && oldPhoto != nil && w.photos != nil {
		if err := w.photos.Delete(ctx, *oldPhoto); err != nil {
			slog.Warn("failed to delete previous photo", "user_id", u.UserID, "key", *oldPhoto, "err", err)
		}
	}
	return w.users.Get(ctx, u.UserID)
}

// profileUpdates maps edits to stored attributes. The contact confirmed through
// verified becomes verified; a changed contact that was not confirmed does not.
func profileUpdates(e domain.ProfileEdits, verified domain.Channel) map[string]interface{} {
	updates := map[string]interface{}{fieldVerified: true}
	if e.Username != nil {
		updates[fieldUsername] = *e.Username
	}
	if e.Email != nil {
		updates[fieldEmail] = *e.Email
		updates[fieldEmailVerified] = verified == domain.ChannelEmail
	}
	if e.Phone != nil {
		updates[fieldPhone] = *e.Phone
		updates[fieldPhoneVerified] = verified == domain.ChannelPhone
	}
	switch verified {
	case domain.ChannelEmail:
		updates[fieldEmailVerified] = true
	case domain.ChannelPhone:
		updates[fieldPhoneVerified] = true
	}
	if e.Age != nil {
		updates[fieldAge] = *e.Age
	}
	if e.PreferredCity != nil {
		city := *e.PreferredCity
		if city == "" {
			city = domain.DefaultPreferredCity
		}
		updates[fieldPreferredCity] = city
	}
	if e.PreferredArea != nil {
		updates[fieldPreferredArea] = *e.PreferredArea
	}
	if e.PreferredPrice != nil {
		updates[fieldPreferredPrice] = *e.PreferredPrice
	}
	if e.TasteTags != nil {
		updates[fieldTasteTags] = *e.TasteTags
	}
	return updates
}

func hashPassword(password, confirm string) (string, error) {
	if err := validate.Struct(passwordPair{Password: password, ConfirmPassword: confirm}); err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrValidation, err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}
