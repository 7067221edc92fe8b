package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/aryan0dhankhar/secretsanta/internal/domain"
	"github.com/aryan0dhankhar/secretsanta/internal/security/middleware"
	"github.com/aryan0dhankhar/secretsanta/internal/service"
)

// DrawHandler serves the admin draw endpoints
type DrawHandler struct {
	draws  *service.DrawService
	logger *slog.Logger
}

// NewDrawHandler creates a new draw handler
func NewDrawHandler(draws *service.DrawService, logger *slog.Logger) *DrawHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &DrawHandler{draws: draws, logger: logger}
}

// CreateDrawRequest is the body of POST /api/admin/draws. Deadline is a
// YYYY-MM-DD date.
type CreateDrawRequest struct {
	Name         string   `json:"name"`
	Participants []string `json:"participants"`
	Budget       *float64 `json:"budget"`
	Deadline     string   `json:"deadline"`
}

// List handles GET /api/admin/draws
func (h *DrawHandler) List(w http.ResponseWriter, r *http.Request) {
	draws, err := h.draws.ListDraws(r.Context(), middleware.ActorFromContext(r.Context()))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, draws)
}

// Create handles POST /api/admin/draws. The response omits the pairs.
func (h *DrawHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateDrawRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	deadline, err := domain.ParseDeadline(req.Deadline)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	draw, err := h.draws.CreateDraw(r.Context(), middleware.ActorFromContext(r.Context()), service.CreateDrawInput{
		Name:         req.Name,
		Participants: req.Participants,
		Budget:       req.Budget,
		Deadline:     deadline,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"name":         draw.Name,
		"active":       draw.Active,
		"participants": draw.Participants,
		"created":      draw.Created,
		"budget":       draw.Budget,
		"deadline":     draw.Deadline,
	})
}

// Activate handles POST /api/admin/draws/{name}/activate
func (h *DrawHandler) Activate(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.draws.SetActiveDraw)
}

// Archive handles POST /api/admin/draws/{name}/archive
func (h *DrawHandler) Archive(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.draws.ArchiveDraw)
}

// Delete handles DELETE /api/admin/draws/{name}
func (h *DrawHandler) Delete(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.draws.DeleteDraw)
}

func (h *DrawHandler) mutate(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, actor domain.Actor, name string) error) {
	if err := op(r.Context(), middleware.ActorFromContext(r.Context()), r.PathValue("name")); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Status handles GET /api/admin/status
func (h *DrawHandler) Status(w http.ResponseWriter, r *http.Request) {
	status, err := h.draws.Status(r.Context(), middleware.ActorFromContext(r.Context()))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}
