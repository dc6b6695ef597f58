package domain

import "time"

// Step is the position of a pending verification inside its workflow.
type Step string

const (
	StepAwaitingOTP Step = "awaiting_otp"
	StepVerified    Step = "verified"
)

// SignupPending carries the signup form until the contact is verified.
type SignupPending struct {
	Username string `json:"username"`
}

// PasswordResetPending resolves to the account owning the verified code.
type PasswordResetPending struct {
	UserID string `json:"user_id,omitempty"`
}

// ProfileUpdatePending holds edits for UserID until the new contact is confirmed.
type ProfileUpdatePending struct {
	UserID string       `json:"user_id"`
	Edits  ProfileEdits `json:"edits"`
}

// VerificationState is the pending workflow state of one client session.
// Exactly one of Signup, PasswordReset, ProfileUpdate is set and it matches Purpose.
type VerificationState struct {
	Purpose   Purpose   `json:"purpose"`
	Step      Step      `json:"step"`
	OTPID     string    `json:"otp_id"`
	Contact   string    `json:"contact"`
	Channel   Channel   `json:"channel"`
	Delivered bool      `json:"delivered"`
	Attempts  int       `json:"attempts"`
	StartedAt time.Time `json:"started_at"`

	Signup        *SignupPending        `json:"signup,omitempty"`
	PasswordReset *PasswordResetPending `json:"password_reset,omitempty"`
	ProfileUpdate *ProfileUpdatePending `json:"profile_update,omitempty"`
}

// Consistent reports whether the payload variant matches the purpose tag.
func (s *VerificationState) Consistent() bool {
	switch s.Purpose {
	case PurposeSignup:
		return s.Signup != nil && s.PasswordReset == nil && s.ProfileUpdate == nil
	case PurposePasswordReset:
		return s.PasswordReset != nil && s.Signup == nil && s.ProfileUpdate == nil
	case PurposeProfileUpdate:
		return s.ProfileUpdate != nil && s.Signup == nil && s.PasswordReset == nil
	}
	return false
}
