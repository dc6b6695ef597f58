package domain

import "errors"

// Sentinel errors for domain-level error discrimination.
// Services wrap these so handlers can map to HTTP status codes without leaking infrastructure details.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrBadRequest   = errors.New("bad request")
	ErrValidation   = errors.New("validation failed")

	// Verification workflow.
	ErrExpiredCode     = errors.New("code expired")
	ErrDispatch        = errors.New("notification dispatch failed")
	ErrSessionExpired  = errors.New("verification session expired")
	ErrTooManyAttempts = errors.New("too many verification attempts")
)
