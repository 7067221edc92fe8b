package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/aryan0dhankhar/secretsanta/internal/domain"
	"github.com/aryan0dhankhar/secretsanta/internal/featureflags"
	"github.com/aryan0dhankhar/secretsanta/internal/observability/metrics"
	"github.com/aryan0dhankhar/secretsanta/internal/observability/tracing"
	"github.com/aryan0dhankhar/secretsanta/internal/security/audit"
	"github.com/aryan0dhankhar/secretsanta/internal/security/auth"
	"github.com/aryan0dhankhar/secretsanta/internal/security/ratelimit"
)

// AuthService handles setup, login and self-registration
type AuthService struct {
	users    domain.UserRepository
	tokens   *auth.TokenManager
	lockout  ratelimit.Lockout
	activity domain.ActivityRecorder
	logger   *slog.Logger
	now      func() time.Time
}

// NewAuthService creates a new authentication service
func NewAuthService(
	users domain.UserRepository,
	tokens *auth.TokenManager,
	lockout ratelimit.Lockout,
	activity domain.ActivityRecorder,
	logger *slog.Logger,
) *AuthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthService{
		users:    users,
		tokens:   tokens,
		lockout:  lockout,
		activity: activity,
		logger:   logger,
		now:      time.Now,
	}
}

// LoginResult represents login response
type LoginResult struct {
	Username  string      `json:"username"`
	Role      domain.Role `json:"role"`
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
	TokenType string      `json:"token_type"`
}

// SetupRequired reports whether the admin account still has to be created.
func (s *AuthService) SetupRequired(ctx context.Context) bool {
	return s.users.List(ctx).Find(domain.AdminUsername) < 0
}

// SetupAdmin creates the admin account. It only succeeds once.
func (s *AuthService) SetupAdmin(ctx context.Context, actor domain.Actor, password, confirm string) error {
	if password != confirm {
		return domain.ErrPasswordMismatch
	}
	if len(password) < domain.MinPasswordLength {
		return domain.ErrInvalidPassword
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}

	created := s.now().UTC().Truncate(time.Second)
	err = s.users.Update(ctx, func(users *domain.UserCollection) error {
		if users.Find(domain.AdminUsername) >= 0 {
			return domain.ErrSetupDone
		}
		*users = append(*users, domain.User{
			Username:     domain.AdminUsername,
			PasswordHash: hash,
			Active:       true,
			CreatedAt:    &created,
		})
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("admin account created")
	actor.Username = domain.AdminUsername
	s.activity.Record(ctx, actor, audit.AdminCreated, "Username: "+domain.AdminUsername)
	return nil
}

// Login verifies credentials and issues a session token. Repeated failures
// lock the username out for a while.
func (s *AuthService) Login(ctx context.Context, actor domain.Actor, username, password string) (res *LoginResult, err error) {
	ctx, span := tracing.Start(ctx, "AuthService.Login")
	defer func() {
		tracing.End(span, err)
		metrics.ObserveLogin(loginResult(err))
	}()

	username = domain.NormalizeUsername(username)
	actor.Username = username
	if username == "" || password == "" {
		return nil, domain.ErrInvalidCredentials
	}

	remaining, lerr := s.lockout.Locked(ctx, username)
	if lerr != nil {
		s.logger.Warn("lockout check failed", slog.String("username", username), slog.String("error", lerr.Error()))
	}
	if remaining > 0 {
		s.activity.Record(ctx, actor, audit.LoginLocked, "Username: "+username)
		return nil, domain.ErrLockedOut
	}

	user, gerr := s.users.Get(ctx, username)
	if gerr != nil || !auth.CheckPassword(user.PasswordHash, password) {
		s.fail(ctx, actor)
		return nil, domain.ErrInvalidCredentials
	}
	if !user.Active {
		s.activity.Record(ctx, actor, audit.LoginFailed, "Username: "+username+", Reason: inactive")
		return nil, domain.ErrAccountInactive
	}

	if rerr := s.lockout.Reset(ctx, username); rerr != nil {
		s.logger.Warn("lockout reset failed", slog.String("username", username), slog.String("error", rerr.Error()))
	}

	role := domain.RoleParticipant
	if user.IsAdmin() {
		role = domain.RoleAdmin
	}
	token, expires, err := s.tokens.GenerateToken(user.Username, role)
	if err != nil {
		s.logger.Error("failed to sign token", slog.String("error", err.Error()))
		return nil, err
	}

	s.logger.Info("user logged in", slog.String("username", user.Username))
	s.activity.Record(ctx, actor, audit.LoginSucceeded, "Username: "+username)
	return &LoginResult{
		Username:  user.Username,
		Role:      role,
		Token:     token,
		ExpiresAt: expires,
		TokenType: "Bearer",
	}, nil
}

func (s *AuthService) fail(ctx context.Context, actor domain.Actor) {
	s.logger.Info("login failed", slog.String("username", actor.Username))
	s.activity.Record(ctx, actor, audit.LoginFailed, "Username: "+actor.Username)

	locked, err := s.lockout.Fail(ctx, actor.Username)
	if err != nil {
		s.logger.Warn("lockout update failed", slog.String("username", actor.Username), slog.String("error", err.Error()))
		return
	}
	if locked {
		s.activity.Record(ctx, actor, audit.LoginLocked, "Username: "+actor.Username)
	}
}

// Register creates an inactive account that an admin must activate before
// it can log in.
func (s *AuthService) Register(ctx context.Context, actor domain.Actor, username, password, confirm string) (*UserView, error) {
	if featureflags.Enabled(featureflags.DisableRegistration) {
		return nil, domain.ErrForbidden
	}
	username, err := normalizeValidUsername(username)
	if err != nil {
		return nil, err
	}
	if username == domain.AdminUsername {
		return nil, domain.ErrUserExists
	}
	if password != confirm {
		return nil, domain.ErrPasswordMismatch
	}
	if len(password) < domain.MinPasswordLength {
		return nil, domain.ErrInvalidPassword
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}

	created := s.now().UTC().Truncate(time.Second)
	u := domain.User{Username: username, PasswordHash: hash, Active: false, CreatedAt: &created}
	err = s.users.Update(ctx, func(users *domain.UserCollection) error {
		if users.Find(username) >= 0 {
			return domain.ErrUserExists
		}
		*users = append(*users, u)
		return nil
	})
	if err != nil {
		return nil, err
	}

	actor.Username = username
	s.activity.Record(ctx, actor, audit.UserRegistered, "Username: "+username)
	v := viewOf(u)
	return &v, nil
}

func loginResult(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, domain.ErrLockedOut):
		return "locked"
	case errors.Is(err, domain.ErrAccountInactive):
		return "inactive"
	default:
		return "failure"
	}
}
