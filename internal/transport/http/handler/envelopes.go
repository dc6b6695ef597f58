package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/citymate-api/internal/application/user"
	"github.com/citymate-api/internal/application/verification"
	"github.com/citymate-api/internal/domain"
)

// maxBodyBytes bounds request bodies. Profile photos arrive base64 encoded.
const maxBodyBytes = 8 << 20

// MessageEnvelope is the generic response wrapper.
type MessageEnvelope struct {
	Message   string `json:"message,omitempty"`
	Error     string `json:"error,omitempty"`
	ErrorCode int    `json:"error_code,omitempty"`
}

// AuthEnvelope wraps login and signup responses.
type AuthEnvelope struct {
	Bearer  string          `json:"Bearer,omitempty"`
	Session *domain.Session `json:"session,omitempty"`
	User    *domain.User    `json:"user,omitempty"`
	Message string          `json:"message,omitempty"`
}

// SessionEnvelope wraps current-session responses.
type SessionEnvelope struct {
	Session *domain.Session `json:"session,omitempty"`
	User    *domain.User    `json:"user,omitempty"`
}

// VerificationEnvelope wraps the state of a pending verification.
type VerificationEnvelope struct {
	Verification *verification.Pending `json:"verification,omitempty"`
	Message      string                `json:"message,omitempty"`
}

// ProfileEnvelope wraps the caller's own profile.
type ProfileEnvelope struct {
	User    *user.Profile `json:"user,omitempty"`
	Message string        `json:"message,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, MessageEnvelope{Error: msg, ErrorCode: status})
}

// decodeJSON reads a size-limited JSON body into v. An empty body leaves v untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
