package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrUserExists         = errors.New("user already exists")
	ErrInvalidUsername    = errors.New("invalid username")
	ErrInvalidPassword    = errors.New("password too short")
	ErrPasswordMismatch   = errors.New("passwords do not match")
	ErrProtectedAccount   = errors.New("admin account cannot be modified this way")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountInactive    = errors.New("account is not active")
	ErrLockedOut          = errors.New("too many failed login attempts")
	ErrForbidden          = errors.New("forbidden")
	ErrNotParticipant     = errors.New("user is not a participant in this draw")
	ErrNoActiveDraw       = errors.New("no active draw")
	ErrSetupDone          = errors.New("setup already completed")
	ErrResetPending       = errors.New("a reset request is already pending")
	ErrStorageWrite       = errors.New("storage write failed")
	ErrDrawFailed         = errors.New("draw failed, please retry")
	ErrInvalidInput       = errors.New("invalid input")
)

// DrawErrorKind classifies why a draw could not be created
type DrawErrorKind string

const (
	DrawDuplicateName      DrawErrorKind = "DUPLICATE_NAME"
	DrawTooFewParticipants DrawErrorKind = "TOO_FEW_PARTICIPANTS"
	DrawUnknownParticipant DrawErrorKind = "UNKNOWN_PARTICIPANT"
	DrawValidationFailed   DrawErrorKind = "VALIDATION_FAILED"
	DrawInvalidName        DrawErrorKind = "INVALID_NAME"
	DrawInvalidBudget      DrawErrorKind = "INVALID_BUDGET"
	DrawInvalidDeadline    DrawErrorKind = "INVALID_DEADLINE"
)

// DrawError is returned by draw creation. Detail is for logs only.
type DrawError struct {
	Kind   DrawErrorKind
	Detail string
}

func (e *DrawError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("draw: %s", e.Kind)
	}
	return fmt.Sprintf("draw: %s: %s", e.Kind, e.Detail)
}

// Is matches any *DrawError of the same kind, so errors.Is(err, &DrawError{Kind: k}) works.
func (e *DrawError) Is(target error) bool {
	t, ok := target.(*DrawError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Unwrap maps invariant violations onto ErrDrawFailed.
func (e *DrawError) Unwrap() error {
	if e.Kind == DrawValidationFailed {
		return ErrDrawFailed
	}
	return nil
}

// NewDrawError builds a DrawError with optional detail.
func NewDrawError(kind DrawErrorKind, detail string) *DrawError {
	return &DrawError{Kind: kind, Detail: detail}
}
