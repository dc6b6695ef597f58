package domain

import "time"

// Channel is the delivery medium of a one-time code.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelPhone Channel = "phone"
)

// Valid reports whether c is a known channel.
func (c Channel) Valid() bool {
	return c == ChannelEmail || c == ChannelPhone
}

// Purpose names the workflow a code or pending state belongs to.
type Purpose string

const (
	PurposeSignup        Purpose = "signup"
	PurposePasswordReset Purpose = "password_reset"
	PurposeProfileUpdate Purpose = "profile_update"
)

// Valid reports whether p is a known purpose.
func (p Purpose) Valid() bool {
	switch p {
	case PurposeSignup, PurposePasswordReset, PurposeProfileUpdate:
		return true
	}
	return false
}

// OneTimeCode is an issued verification code. At most one live code exists per (Contact, Purpose).
type OneTimeCode struct {
	CodeID    string    `json:"id" dynamodbav:"code_id"`
	UserID    *string   `json:"user_id,omitempty" dynamodbav:"user_id,omitempty"`
	Contact   string    `json:"contact" dynamodbav:"contact"`
	Code      string    `json:"-" dynamodbav:"code"`
	Channel   Channel   `json:"channel" dynamodbav:"channel"`
	Purpose   Purpose   `json:"purpose" dynamodbav:"purpose"`
	CreatedAt time.Time `json:"created" dynamodbav:"created_at"`
	ExpiresAt time.Time `json:"expires_at" dynamodbav:"expires_at"`
}

// Expired reports whether the code is no longer usable at now. A code is valid only while now < ExpiresAt.
func (c *OneTimeCode) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}
