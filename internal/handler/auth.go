package handler

import (
	"log/slog"
	"net/http"

	"github.com/aryan0dhankhar/secretsanta/internal/i18n"
	"github.com/aryan0dhankhar/secretsanta/internal/security/middleware"
	"github.com/aryan0dhankhar/secretsanta/internal/service"
)

// AuthHandler serves the public setup, login, registration and reset endpoints
type AuthHandler struct {
	auth   *service.AuthService
	resets *service.ResetService
	logger *slog.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(auth *service.AuthService, resets *service.ResetService, logger *slog.Logger) *AuthHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthHandler{auth: auth, resets: resets, logger: logger}
}

// SetupRequest carries the first admin password
type SetupRequest struct {
	Password        string `json:"password"`
	PasswordConfirm string `json:"password_confirm"`
}

// LoginRequest represents login credentials
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// RegisterRequest is a self-service registration
type RegisterRequest struct {
	Username        string `json:"username"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"password_confirm"`
}

// ResetRequestBody names the account that forgot its password
type ResetRequestBody struct {
	Username string `json:"username"`
}

// SetupStatus handles GET /api/setup
func (h *AuthHandler) SetupStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"setup_required": h.auth.SetupRequired(r.Context())})
}

// Setup handles POST /api/setup
func (h *AuthHandler) Setup(w http.ResponseWriter, r *http.Request) {
	var req SetupRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if err := h.auth.SetupAdmin(r.Context(), middleware.ActorFromContext(r.Context()), req.Password, req.PasswordConfirm); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"username": "admin"})
}

// Login handles POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	res, err := h.auth.Login(r.Context(), middleware.ActorFromContext(r.Context()), req.Username, req.Password)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Register handles POST /api/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	actor := middleware.ActorFromContext(r.Context())
	user, err := h.auth.Register(r.Context(), actor, req.Username, req.Password, req.PasswordConfirm)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"user":    user,
		"message": i18n.Message(actor.Locale, "REGISTERED"),
	})
}

// ResetRequest handles POST /api/auth/reset-request. The answer is the same
// whether or not the account exists.
func (h *AuthHandler) ResetRequest(w http.ResponseWriter, r *http.Request) {
	var req ResetRequestBody
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	actor := middleware.ActorFromContext(r.Context())
	if err := h.resets.RequestReset(r.Context(), actor, req.Username); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"message": i18n.Message(actor.Locale, "RESET_REQUESTED")})
}
