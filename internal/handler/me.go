package handler

import (
	"log/slog"
	"net/http"

	"github.com/aryan0dhankhar/secretsanta/internal/security/middleware"
	"github.com/aryan0dhankhar/secretsanta/internal/service"
)

// MeHandler serves the participant's own view
type MeHandler struct {
	draws  *service.DrawService
	users  *service.UserService
	logger *slog.Logger
}

// NewMeHandler creates a new participant handler
func NewMeHandler(draws *service.DrawService, users *service.UserService, logger *slog.Logger) *MeHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &MeHandler{draws: draws, users: users, logger: logger}
}

type interestsRequest struct {
	Interests string `json:"interests"`
}

type purchaseRequest struct {
	Purchased *bool `json:"purchased"`
}

// Show handles GET /api/me
func (h *MeHandler) Show(w http.ResponseWriter, r *http.Request) {
	view, err := h.draws.ParticipantView(r.Context(), middleware.ActorFromContext(r.Context()))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// Interests handles PUT /api/me/interests
func (h *MeHandler) Interests(w http.ResponseWriter, r *http.Request) {
	var req interestsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	clean, err := h.users.UpdateInterests(r.Context(), middleware.ActorFromContext(r.Context()), req.Interests)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"interests": clean})
}

// Purchase handles PUT /api/me/purchase against the active draw
func (h *MeHandler) Purchase(w http.ResponseWriter, r *http.Request) {
	purchased, ok := h.decodePurchase(w, r)
	if !ok {
		return
	}
	if err := h.draws.RecordActivePurchase(r.Context(), middleware.ActorFromContext(r.Context()), purchased); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"purchased": purchased})
}

// DrawPurchase handles PUT /api/me/draws/{name}/purchase
func (h *MeHandler) DrawPurchase(w http.ResponseWriter, r *http.Request) {
	purchased, ok := h.decodePurchase(w, r)
	if !ok {
		return
	}
	actor := middleware.ActorFromContext(r.Context())
	if err := h.draws.RecordPurchase(r.Context(), actor, r.PathValue("name"), actor.Username, purchased); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"purchased": purchased})
}

func (h *MeHandler) decodePurchase(w http.ResponseWriter, r *http.Request) (bool, bool) {
	var req purchaseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return false, false
	}
	if req.Purchased == nil {
		writeCode(w, r, http.StatusBadRequest, "INVALID_INPUT")
		return false, false
	}
	return *req.Purchased, true
}

// Assignment handles GET /api/me/draws/{name}/assignment
func (h *MeHandler) Assignment(w http.ResponseWriter, r *http.Request) {
	actor := middleware.ActorFromContext(r.Context())
	name := r.PathValue("name")
	recipient, ok, err := h.draws.GetAssignment(r.Context(), actor, name, actor.Username)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if !ok {
		writeCode(w, r, http.StatusNotFound, "NOT_PARTICIPANT")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"draw": name, "recipient": recipient})
}

// PastDraws handles GET /api/me/draws
func (h *MeHandler) PastDraws(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.draws.PastDraws(r.Context(), middleware.ActorFromContext(r.Context())))
}
