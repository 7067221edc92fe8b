package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/aryan0dhankhar/secretsanta/internal/domain"
	"github.com/aryan0dhankhar/secretsanta/internal/security/audit"
)

// ResetService handles self-service password reset requests
type ResetService struct {
	requests domain.ResetRequestRepository
	users    domain.UserRepository
	activity domain.ActivityRecorder
	logger   *slog.Logger
	now      func() time.Time
}

// NewResetService creates a new reset service
func NewResetService(
	requests domain.ResetRequestRepository,
	users domain.UserRepository,
	activity domain.ActivityRecorder,
	logger *slog.Logger,
) *ResetService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ResetService{requests: requests, users: users, activity: activity, logger: logger, now: time.Now}
}

// RequestReset files a reset request. Unknown usernames are accepted
// silently so the response does not reveal which accounts exist.
func (s *ResetService) RequestReset(ctx context.Context, actor domain.Actor, username string) error {
	username = domain.NormalizeUsername(username)
	if username == "" {
		return domain.ErrInvalidUsername
	}
	if _, err := s.users.Get(ctx, username); err != nil {
		s.logger.Info("reset requested for unknown user", slog.String("username", username))
		return nil
	}

	req := domain.ResetRequest{
		ID:          uuid.NewString(),
		Username:    username,
		RequestedAt: s.now().UTC().Truncate(time.Second),
		Status:      domain.ResetPending,
	}
	err := s.requests.Update(ctx, func(c *domain.ResetRequestCollection) error {
		if c.HasPending(username) {
			return domain.ErrResetPending
		}
		*c = append(*c, req)
		return nil
	})
	if err != nil {
		return err
	}

	actor.Username = username
	s.activity.Record(ctx, actor, audit.PasswordResetRequested, "Username: "+username)
	return nil
}

// ListPending returns pending requests in the order they were filed.
func (s *ResetService) ListPending(ctx context.Context, actor domain.Actor) ([]domain.ResetRequest, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	return s.requests.List(ctx).Pending(), nil
}

// Approve sets a new password, generated when blank, and removes the
// request. The generated password is returned.
func (s *ResetService) Approve(ctx context.Context, actor domain.Actor, username, password string) (string, error) {
	if err := requireAdmin(actor); err != nil {
		return "", err
	}
	username = domain.NormalizeUsername(username)
	if !s.requests.List(ctx).HasPending(username) {
		return "", domain.ErrNotFound
	}

	generated, err := setPassword(ctx, s.users, username, password)
	if err != nil {
		return "", err
	}
	if err := s.resolve(ctx, username); err != nil {
		return "", err
	}
	s.activity.Record(ctx, actor, audit.PasswordResetApproved, "Username: "+username)
	return generated, nil
}

// Reject removes the pending request without touching the password.
func (s *ResetService) Reject(ctx context.Context, actor domain.Actor, username string) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	username = domain.NormalizeUsername(username)
	if err := s.resolve(ctx, username); err != nil {
		return err
	}
	s.activity.Record(ctx, actor, audit.PasswordResetRejected, "Username: "+username)
	return nil
}

func (s *ResetService) resolve(ctx context.Context, username string) error {
	return s.requests.Update(ctx, func(c *domain.ResetRequestCollection) error {
		if !c.HasPending(username) {
			return domain.ErrNotFound
		}
		*c = c.WithoutPending(username)
		return nil
	})
}
