package handler

import (
	"context"
	"net/http"

	"github.com/citymate-api/internal/application/user"
	"github.com/citymate-api/internal/application/verification"
	"github.com/citymate-api/internal/transport/http/middleware"
)

type profileUpdater interface {
	StartProfileUpdate(ctx context.Context, sessionID, userID string, req verification.ProfileUpdateRequest) (*verification.Pending, error)
}

// UserHandler handles the caller's own profile.
type UserHandler struct {
	svc  user.Service
	flow profileUpdater
}

func NewUserHandler(svc user.Service, flow profileUpdater) *UserHandler {
	return &UserHandler{svc: svc, flow: flow}
}

func (h *UserHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	p, err := h.svc.Get(r.Context(), claims.UserID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ProfileEnvelope{User: p})
}

// UpdateMe stages the edits and sends a code to confirm them. Nothing is
// written to the account until the code is verified and the change completed.
func (h *UserHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req verification.ProfileUpdateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	p, err := h.flow.StartProfileUpdate(r.Context(), middleware.VerificationSessionID(r.Context()), claims.UserID, req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, VerificationEnvelope{Verification: p, Message: sentMessage(p)})
}

func (h *UserHandler) DeleteMe(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if err := h.svc.Deactivate(r.Context(), claims.UserID); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "account deactivated"})
}
