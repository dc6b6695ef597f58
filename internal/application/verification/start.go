package verification

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/citymate-api/internal/domain"
	"github.com/citymate-api/internal/pkg/contact"
	"github.com/citymate-api/internal/pkg/validate"
)

type SignupRequest struct {
	Username string `json:"username" validate:"required,min=3,max=150"`
	Contact  string `json:"contact" validate:"required"`
}

type PasswordResetRequest struct {
	Contact string `json:"contact" validate:"required"`
}

// ProfileUpdateRequest lists the fields to change. Nil fields are left alone.
type ProfileUpdateRequest struct {
	Username       *string `json:"username" validate:"omitempty,min=3,max=150"`
	Email          *string `json:"email"`
	Phone          *string `json:"phone_number"`
	Age            *int    `json:"age" validate:"omitempty,min=13,max=120"`
	PreferredCity  *string `json:"preferred_city" validate:"omitempty,max=100"`
	PreferredArea  *string `json:"preferred_area" validate:"omitempty,oneof=rs_puram gandhipuram peelamedu hopes saibaba_colony singanallur other"`
	PreferredPrice *string `json:"preferred_price" validate:"omitempty,oneof=economical average premium"`
	TasteTags      *string `json:"taste_tags" validate:"omitempty,max=500"`
	Photo          *string `json:"profile_photo"` // base64 image
	ClearPhoto     bool    `json:"clear_photo"`
}

// StartSignup issues a signup code to the requested contact.
func (w *Workflow) StartSignup(ctx context.Context, sessionID string, req SignupRequest) (*Pending, error) {
	if err := validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrValidation, err)
	}
	addr, ch, err := contact.Parse(req.Contact)
	if err != nil {
		return nil, err
	}
	username := strings.TrimSpace(req.Username)
	if err := w.ensureUsernameFree(ctx, username, ""); err != nil {
		return nil, err
	}
	if err := w.ensureContactFree(ctx, addr, ch, ""); err != nil {
		return nil, err
	}
	return w.begin(ctx, sessionID, &domain.VerificationState{
		Purpose: domain.PurposeSignup,
		Contact: addr,
		Channel: ch,
		Signup:  &domain.SignupPending{Username: username},
	}, nil)
}

// StartPasswordReset issues a reset code to the account that owns contact.
func (w *Workflow) StartPasswordReset(ctx context.Context, sessionID string, req PasswordResetRequest) (*Pending, error) {
	if err := validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrValidation, err)
	}
	addr, ch, err := contact.Parse(req.Contact)
	if err != nil {
		return nil, err
	}
	u, err := w.userByContact(ctx, addr, ch)
	if errors.Is(err, domain.ErrNotFound) || (err == nil && !u.Enable) {
		return nil, fmt.Errorf("no active account uses this %s: %w", ch, domain.ErrValidation)
	}
	if err != nil {
		return nil, err
	}
	owner := u.UserID
	return w.begin(ctx, sessionID, &domain.VerificationState{
		Purpose:       domain.PurposePasswordReset,
		Contact:       u.ContactFor(ch),
		Channel:       ch,
		PasswordReset: &domain.PasswordResetPending{},
	}, &owner)
}

// StartProfileUpdate holds the edits of userID and sends a code to the contact
// that confirms them: a changed email, else a changed phone, else the current address.
func (w *Workflow) StartProfileUpdate(ctx context.Context, sessionID, userID string, req ProfileUpdateRequest) (*Pending, error) {
	if err := validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrValidation, err)
	}
	u, err := w.users.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !u.Enable {
		return nil, fmt.Errorf("account disabled: %w", domain.ErrForbidden)
	}
	edits, err := w.profileEdits(ctx, u, req)
	if err != nil {
		return nil, err
	}
	addr, ch, err := confirmationContact(u, edits)
	if err != nil {
		return nil, err
	}
	if req.Photo != nil && *req.Photo != "" {
		if w.photos == nil {
			return nil, fmt.Errorf("photo uploads are not enabled: %w", domain.ErrValidation)
		}
		key, err := w.photos.Stage(ctx, userID, *req.Photo)
		if err != nil {
			return nil, err
		}
		edits.PhotoKey = &key
	}
	st := &domain.VerificationState{
		Purpose:       domain.PurposeProfileUpdate,
		Contact:       addr,
		Channel:       ch,
		ProfileUpdate: &domain.ProfileUpdatePending{UserID: userID, Edits: edits},
	}
	p, err := w.begin(ctx, sessionID, st, &u.UserID)
	if err != nil {
		w.releasePhoto(ctx, st)
		return nil, err
	}
	return p, nil
}

// profileEdits normalises req against u, keeping only fields that change.
func (w *Workflow) profileEdits(ctx context.Context, u *domain.User, req ProfileUpdateRequest) (domain.ProfileEdits, error) {
	var e domain.ProfileEdits
	if req.Username != nil {
		name := strings.TrimSpace(*req.Username)
		if name != u.Username {
			if err := w.ensureUsernameFree(ctx, name, u.UserID); err != nil {
				return e, err
			}
			e.Username = &name
		}
	}
	if req.Email != nil {
		addr, err := w.changedContact(ctx, u, *req.Email, domain.ChannelEmail)
		if err != nil {
			return e, err
		}
		e.Email = addr
	}
	if req.Phone != nil {
		addr, err := w.changedContact(ctx, u, *req.Phone, domain.ChannelPhone)
		if err != nil {
			return e, err
		}
		e.Phone = addr
	}
	e.Age = req.Age
	e.PreferredCity = trimmed(req.PreferredCity)
	e.PreferredArea = req.PreferredArea
	e.PreferredPrice = req.PreferredPrice
	e.TasteTags = trimmed(req.TasteTags)
	e.ClearPhoto = req.ClearPhoto && (req.Photo == nil || *req.Photo == "")
	return e, nil
}

// changedContact returns the normalised address when raw differs from what u has on file.
func (w *Workflow) changedContact(ctx context.Context, u *domain.User, raw string, want domain.Channel) (*string, error) {
	addr, ch, err := contact.Parse(raw)
	if err != nil {
		return nil, err
	}
	if ch != want {
		return nil, fmt.Errorf("%q is not a valid %s: %w", raw, want, domain.ErrValidation)
	}
	if addr == u.ContactFor(ch) {
		return nil, nil
	}
	if err := w.ensureContactFree(ctx, addr, ch, u.UserID); err != nil {
		return nil, err
	}
	return &addr, nil
}

func confirmationContact(u *domain.User, e domain.ProfileEdits) (string, domain.Channel, error) {
	switch {
	case e.Email != nil:
		return *e.Email, domain.ChannelEmail, nil
	case e.Phone != nil:
		return *e.Phone, domain.ChannelPhone, nil
	case u.Email != nil:
		return *u.Email, domain.ChannelEmail, nil
	case u.Phone != nil:
		return *u.Phone, domain.ChannelPhone, nil
	}
	return "", "", fmt.Errorf("account has no contact to confirm with: %w", domain.ErrValidation)
}

// ensureUsernameFree fails unless username is unused or belongs to self.
func (w *Workflow) ensureUsernameFree(ctx context.Context, username, self string) error {
	u, err := w.users.GetByUsername(ctx, username)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if u.UserID != self {
		return fmt.Errorf("username already taken: %w", domain.ErrValidation)
	}
	return nil
}

// ensureContactFree fails unless addr is unused or belongs to self.
func (w *Workflow) ensureContactFree(ctx context.Context, addr string, ch domain.Channel, self string) error {
	u, err := w.userByContact(ctx, addr, ch)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if u.UserID != self {
		return fmt.Errorf("%s already registered: %w", ch, domain.ErrValidation)
	}
	return nil
}

func (w *Workflow) userByContact(ctx context.Context, addr string, ch domain.Channel) (*domain.User, error) {
	if ch == domain.ChannelEmail {
		return w.users.GetByEmail(ctx, addr)
	}
	return w.users.GetByPhone(ctx, addr)
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	return &t
}
