package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/citymate-api/internal/application/otp"
	"github.com/citymate-api/internal/application/session"
	"github.com/citymate-api/internal/application/user"
	"github.com/citymate-api/internal/application/verification"
	"github.com/citymate-api/internal/domain"
	"github.com/citymate-api/internal/transport/http/middleware"
)

type verificationFlow interface {
	StartSignup(ctx context.Context, sessionID string, req verification.SignupRequest) (*verification.Pending, error)
	StartPasswordReset(ctx context.Context, sessionID string, req verification.PasswordResetRequest) (*verification.Pending, error)
	StartProfileUpdate(ctx context.Context, sessionID, userID string, req verification.ProfileUpdateRequest) (*verification.Pending, error)
	SubmitCode(ctx context.Context, sessionID, code string) (*verification.Pending, error)
	Current(ctx context.Context, sessionID string) (*verification.Pending, error)
	Complete(ctx context.Context, sessionID, callerID string, req verification.CompleteRequest) (*verification.Result, error)
	Abandon(ctx context.Context, sessionID string) error
}

type sessionStarter interface {
	StartFor(ctx context.Context, u *domain.User) (*session.LoginResult, error)
}

// VerificationHandler drives the signup, password reset and profile update
// workflows for the caller's verification session.
type VerificationHandler struct {
	flow     verificationFlow
	sessions sessionStarter
}

func NewVerificationHandler(flow verificationFlow, sessions sessionStarter) *VerificationHandler {
	return &VerificationHandler{flow: flow, sessions: sessions}
}

func (h *VerificationHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req verification.SignupRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	p, err := h.flow.StartSignup(r.Context(), middleware.VerificationSessionID(r.Context()), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, VerificationEnvelope{Verification: p, Message: sentMessage(p)})
}

func (h *VerificationHandler) PasswordReset(w http.ResponseWriter, r *http.Request) {
	var req verification.PasswordResetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	p, err := h.flow.StartPasswordReset(r.Context(), middleware.VerificationSessionID(r.Context()), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, VerificationEnvelope{Verification: p, Message: sentMessage(p)})
}

func (h *VerificationHandler) Current(w http.ResponseWriter, r *http.Request) {
	p, err := h.flow.Current(r.Context(), middleware.VerificationSessionID(r.Context()))
	if errors.Is(err, domain.ErrNotFound) {
		writeError(w, http.StatusNotFound, "no verification in progress")
		return
	}
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, VerificationEnvelope{Verification: p})
}

func (h *VerificationHandler) SubmitCode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code string `json:"code"`
	}
	if err := decodeJSON(w, r, &req); err != nil || req.Code == "" {
		writeError(w, http.StatusBadRequest, "code required")
		return
	}
	sid := middleware.VerificationSessionID(r.Context())
	p, err := h.flow.SubmitCode(r.Context(), sid, req.Code)
	if otp.IsRetryable(err) {
		env := VerificationEnvelope{Message: "invalid or expired code"}
		if cur, cerr := h.flow.Current(r.Context(), sid); cerr == nil {
			env.Verification = cur
		}
		writeJSON(w, http.StatusBadRequest, env)
		return
	}
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, VerificationEnvelope{Verification: p, Message: "code verified"})
}

func (h *VerificationHandler) Complete(w http.ResponseWriter, r *http.Request) {
	var req verification.CompleteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	var callerID string
	if claims, ok := middleware.ClaimsFromContext(r.Context()); ok {
		callerID = claims.UserID
	}
	res, err := h.flow.Complete(r.Context(), middleware.VerificationSessionID(r.Context()), callerID, req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	switch res.Purpose {
	case domain.PurposeSignup:
		login, err := h.sessions.StartFor(r.Context(), res.User)
		if err != nil {
			// The account exists; the client can still log in normally.
			slog.Warn("login after signup failed", "user_id", res.User.UserID, "err", err)
			writeJSON(w, http.StatusCreated, AuthEnvelope{User: res.User, Message: "account created, please log in"})
			return
		}
		writeJSON(w, http.StatusCreated, AuthEnvelope{
			Bearer:  login.Bearer,
			Session: login.Session,
			User:    res.User,
			Message: "account created",
		})
	case domain.PurposePasswordReset:
		writeJSON(w, http.StatusOK, MessageEnvelope{Message: "password updated, please log in"})
	default:
		writeJSON(w, http.StatusOK, ProfileEnvelope{User: &user.Profile{User: res.User}, Message: "profile updated"})
	}
}

func (h *VerificationHandler) Abandon(w http.ResponseWriter, r *http.Request) {
	if err := h.flow.Abandon(r.Context(), middleware.VerificationSessionID(r.Context())); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "verification cancelled"})
}

func sentMessage(p *verification.Pending) string {
	if p.Delivered {
		return "verification code sent to " + p.Contact
	}
	return "could not deliver the code to " + p.Contact + ", please request a new one"
}
