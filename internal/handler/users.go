package handler

import (
	"log/slog"
	"net/http"

	"github.com/aryan0dhankhar/secretsanta/internal/security/middleware"
	"github.com/aryan0dhankhar/secretsanta/internal/service"
)

// UserHandler serves the admin user management endpoints
type UserHandler struct {
	users  *service.UserService
	logger *slog.Logger
}

// NewUserHandler creates a new user handler
func NewUserHandler(users *service.UserService, logger *slog.Logger) *UserHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &UserHandler{users: users, logger: logger}
}

type createUserRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type upsertUserRequest struct {
	Password  string  `json:"password"`
	Interests *string `json:"interests"`
	Active    *bool   `json:"active"`
}

type activeRequest struct {
	Active *bool `json:"active"`
}

type passwordRequest struct {
	Password string `json:"password"`
}

// List handles GET /api/admin/users
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.ListUsers(r.Context(), middleware.ActorFromContext(r.Context()))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

// Create handles POST /api/admin/users
func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	res, err := h.users.AddUser(r.Context(), middleware.ActorFromContext(r.Context()), req.Username, req.Password)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// Upsert handles PUT /api/admin/users/{username}
func (h *UserHandler) Upsert(w http.ResponseWriter, r *http.Request) {
	var req upsertUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	res, err := h.users.UpsertUser(r.Context(), middleware.ActorFromContext(r.Context()), service.UpsertUserInput{
		Username:  r.PathValue("username"),
		Password:  req.Password,
		Interests: req.Interests,
		Active:    req.Active,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	writeJSON(w, status, res)
}

// Delete handles DELETE /api/admin/users/{username}
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.users.DeleteUser(r.Context(), middleware.ActorFromContext(r.Context()), r.PathValue("username")); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetActive handles PUT /api/admin/users/{username}/active
func (h *UserHandler) SetActive(w http.ResponseWriter, r *http.Request) {
	var req activeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if req.Active == nil {
		writeCode(w, r, http.StatusBadRequest, "INVALID_INPUT")
		return
	}
	username := r.PathValue("username")
	if err := h.users.SetUserActive(r.Context(), middleware.ActorFromContext(r.Context()), username, *req.Active); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"username": username, "active": *req.Active})
}

// SetPassword handles POST /api/admin/users/{username}/password. A blank
// password is replaced by a generated one that is returned once.
func (h *UserHandler) SetPassword(w http.ResponseWriter, r *http.Request) {
	var req passwordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	generated, err := h.users.ResetPassword(r.Context(), middleware.ActorFromContext(r.Context()), r.PathValue("username"), req.Password)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"generated_password": generated})
}
