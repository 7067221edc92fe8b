package handler

import (
	"log/slog"
	"net/http"

	"github.com/aryan0dhankhar/secretsanta/internal/security/middleware"
	"github.com/aryan0dhankhar/secretsanta/internal/service"
)

// ResetHandler serves the admin side of password reset requests
type ResetHandler struct {
	resets *service.ResetService
	logger *slog.Logger
}

// NewResetHandler creates a new reset handler
func NewResetHandler(resets *service.ResetService, logger *slog.Logger) *ResetHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ResetHandler{resets: resets, logger: logger}
}

// List handles GET /api/admin/reset-requests
func (h *ResetHandler) List(w http.ResponseWriter, r *http.Request) {
	pending, err := h.resets.ListPending(r.Context(), middleware.ActorFromContext(r.Context()))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, pending)
}

// Approve handles POST /api/admin/reset-requests/{username}/approve. The
// body may carry the new password; otherwise one is generated.
func (h *ResetHandler) Approve(w http.ResponseWriter, r *http.Request) {
	var req passwordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	generated, err := h.resets.Approve(r.Context(), middleware.ActorFromContext(r.Context()), r.PathValue("username"), req.Password)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"generated_password": generated})
}

// Reject handles POST /api/admin/reset-requests/{username}/reject
func (h *ResetHandler) Reject(w http.ResponseWriter, r *http.Request) {
	if err := h.resets.Reject(r.Context(), middleware.ActorFromContext(r.Context()), r.PathValue("username")); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
