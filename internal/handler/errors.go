package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/aryan0dhankhar/secretsanta/internal/domain"
	"github.com/aryan0dhankhar/secretsanta/internal/i18n"
	"github.com/aryan0dhankhar/secretsanta/internal/security/middleware"
)

const maxBodyBytes = 64 << 10

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var drawKindCodes = map[domain.DrawErrorKind]struct {
	status int
	code   string
}{
	domain.DrawDuplicateName:      {http.StatusConflict, "DUPLICATE_NAME"},
	domain.DrawTooFewParticipants: {http.StatusBadRequest, "TOO_FEW_PARTICIPANTS"},
	domain.DrawUnknownParticipant: {http.StatusBadRequest, "UNKNOWN_PARTICIPANT"},
	domain.DrawValidationFailed:   {http.StatusInternalServerError, "DRAW_FAILED"},
	domain.DrawInvalidName:        {http.StatusBadRequest, "INVALID_NAME"},
	domain.DrawInvalidBudget:      {http.StatusBadRequest, "INVALID_BUDGET"},
	domain.DrawInvalidDeadline:    {http.StatusBadRequest, "INVALID_DEADLINE"},
}

var sentinelCodes = []struct {
	err    error
	status int
	code   string
}{
	{domain.ErrNotFound, http.StatusNotFound, "NOT_FOUND"},
	{domain.ErrUserExists, http.StatusConflict, "USER_EXISTS"},
	{domain.ErrInvalidUsername, http.StatusBadRequest, "INVALID_USERNAME"},
	{domain.ErrInvalidPassword, http.StatusBadRequest, "INVALID_PASSWORD"},
	{domain.ErrPasswordMismatch, http.StatusBadRequest, "PASSWORD_MISMATCH"},
	{domain.ErrProtectedAccount, http.StatusForbidden, "PROTECTED_ACCOUNT"},
	{domain.ErrInvalidCredentials, http.StatusUnauthorized, "INVALID_CREDENTIALS"},
	{domain.ErrAccountInactive, http.StatusForbidden, "ACCOUNT_INACTIVE"},
	{domain.ErrLockedOut, http.StatusTooManyRequests, "LOCKED_OUT"},
	{domain.ErrForbidden, http.StatusForbidden, "FORBIDDEN"},
	{domain.ErrNotParticipant, http.StatusForbidden, "NOT_PARTICIPANT"},
	{domain.ErrNoActiveDraw, http.StatusNotFound, "NO_ACTIVE_DRAW"},
	{domain.ErrSetupDone, http.StatusConflict, "SETUP_DONE"},
	{domain.ErrResetPending, http.StatusConflict, "RESET_PENDING"},
	{domain.ErrStorageWrite, http.StatusServiceUnavailable, "STORAGE_WRITE_FAILED"},
	{domain.ErrDrawFailed, http.StatusInternalServerError, "DRAW_FAILED"},
	{domain.ErrInvalidInput, http.StatusBadRequest, "INVALID_INPUT"},
}

// MapErrorToHTTP converts a service error into a status code and a stable
// error code. Unknown errors become a generic 500.
func MapErrorToHTTP(err error) (int, string) {
	var de *domain.DrawError
	if errors.As(err, &de) {
		if m, ok := drawKindCodes[de.Kind]; ok {
			return m.status, m.code
		}
	}
	for _, s := range sentinelCodes {
		if errors.Is(err, s.err) {
			return s.status, s.code
		}
	}
	return http.StatusInternalServerError, "INTERNAL_ERROR"
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Default().Error("failed to encode response", slog.String("error", err.Error()))
	}
}

func writeCode(w http.ResponseWriter, r *http.Request, status int, code string) {
	locale := middleware.ActorFromContext(r.Context()).Locale
	writeJSON(w, status, ErrorResponse{Error: i18n.Message(locale, code), Code: code})
}

// writeError logs unexpected failures in full and sends only the short
// localized message.
func writeError(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	status, code := MapErrorToHTTP(err)
	if status >= http.StatusInternalServerError {
		log.Error("request failed",
			slog.String("path", r.URL.Path),
			slog.String("code", code),
			slog.String("error", err.Error()),
		)
	}
	writeCode(w, r, status, code)
}

// decodeJSON reads a JSON body into v. An empty body leaves v untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return domain.ErrInvalidInput
}
