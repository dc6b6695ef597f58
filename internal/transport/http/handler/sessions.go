package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/citymate-api/internal/application/session"
	"github.com/citymate-api/internal/pkg/validate"
	"github.com/citymate-api/internal/transport/http/middleware"
)

type abandoner interface {
	Abandon(ctx context.Context, sessionID string) error
}

// SessionHandler handles session endpoints.
type SessionHandler struct {
	svc  session.Service
	flow abandoner
}

// NewSessionHandler creates a SessionHandler. flow may be nil; when set, logout
// also drops the caller's pending verification.
func NewSessionHandler(svc session.Service, flow abandoner) *SessionHandler {
	return &SessionHandler{svc: svc, flow: flow}
}

func (h *SessionHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req session.LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	result, err := h.svc.Login(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, AuthEnvelope{
		Bearer:  result.Bearer,
		Session: result.Session,
		User:    result.Session.User,
	})
}

func (h *SessionHandler) GetCurrent(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	sess, err := h.svc.GetCurrent(r.Context(), claims.SessionID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, SessionEnvelope{Session: sess, User: sess.User})
}

func (h *SessionHandler) Logout(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if err := h.svc.Logout(r.Context(), claims.SessionID); err != nil {
		writeServiceError(w, r, err)
		return
	}
	if sid := middleware.VerificationSessionID(r.Context()); sid != "" && h.flow != nil {
		if err := h.flow.Abandon(r.Context(), sid); err != nil {
			slog.Warn("failed to drop verification on logout", "err", err)
		}
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "logged out"})
}
