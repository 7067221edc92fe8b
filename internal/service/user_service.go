package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/aryan0dhankhar/secretsanta/internal/domain"
	"github.com/aryan0dhankhar/secretsanta/internal/observability/tracing"
	"github.com/aryan0dhankhar/secretsanta/internal/security/audit"
	"github.com/aryan0dhankhar/secretsanta/internal/security/auth"
)

// UserService manages the users collection
type UserService struct {
	users    domain.UserRepository
	activity domain.ActivityRecorder
	logger   *slog.Logger
	now      func() time.Time
}

// NewUserService creates a new user service
func NewUserService(users domain.UserRepository, activity domain.ActivityRecorder, logger *slog.Logger) *UserService {
	if logger == nil {
		logger = slog.Default()
	}
	return &UserService{users: users, activity: activity, logger: logger, now: time.Now}
}

// UserView is a user without its password hash
type UserView struct {
	Username  string     `json:"username"`
	Interests string     `json:"interests"`
	Active    bool       `json:"active"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
}

func viewOf(u domain.User) UserView {
	return UserView{Username: u.Username, Interests: u.Interests, Active: u.Active, CreatedAt: u.CreatedAt}
}

// UpsertUserInput describes a create-or-update request. Nil fields are left
// untouched on update.
type UpsertUserInput struct {
	Username  string
	Password  string
	Interests *string
	Active    *bool
}

// UserResult is returned by operations that may hand out a generated password
type UserResult struct {
	User              UserView `json:"user"`
	Created           bool     `json:"created"`
	GeneratedPassword string   `json:"generated_password,omitempty"`
}

// UpsertUser creates the user, or updates the given fields when it exists. A
// new user without a password gets a generated one.
func (s *UserService) UpsertUser(ctx context.Context, actor domain.Actor, in UpsertUserInput) (res *UserResult, err error) {
	ctx, span := tracing.Start(ctx, "UserService.UpsertUser", attribute.String("user.name", in.Username))
	defer func() { tracing.End(span, err) }()

	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	username, err := normalizeValidUsername(in.Username)
	if err != nil {
		return nil, err
	}
	if username == domain.AdminUsername && in.Active != nil && !*in.Active {
		return nil, domain.ErrProtectedAccount
	}
	if in.Password != "" && len(in.Password) < domain.MinPasswordLength {
		return nil, domain.ErrInvalidPassword
	}

	res = &UserResult{}
	err = s.users.Update(ctx, func(users *domain.UserCollection) error {
		i := users.Find(username)
		if i < 0 {
			u, generated, err := s.newUser(username, in.Password, true)
			if err != nil {
				return err
			}
			res.Created = true
			res.GeneratedPassword = generated
			*users = append(*users, *u)
			i = len(*users) - 1
		} else if in.Password != "" {
			hash, err := auth.HashPassword(in.Password)
			if err != nil {
				return err
			}
			(*users)[i].PasswordHash = hash
		}

		u := &(*users)[i]
		if in.Interests != nil {
			u.Interests = sanitizeInterests(*in.Interests)
		}
		if in.Active != nil {
			u.Active = *in.Active
		}
		res.User = viewOf(*u)
		return nil
	})
	if err != nil {
		return nil, err
	}

	action := audit.UserUpdated
	if res.Created {
		action = audit.UserAdded
	}
	s.activity.Record(ctx, actor, action, "Username: "+username)
	return res, nil
}

// AddUser creates a new active user and fails if the username is taken.
func (s *UserService) AddUser(ctx context.Context, actor domain.Actor, username, password string) (res *UserResult, err error) {
	ctx, span := tracing.Start(ctx, "UserService.AddUser", attribute.String("user.name", username))
	defer func() { tracing.End(span, err) }()

	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	username, err = normalizeValidUsername(username)
	if err != nil {
		return nil, err
	}

	u, generated, err := s.newUser(username, password, true)
	if err != nil {
		return nil, err
	}
	err = s.users.Update(ctx, func(users *domain.UserCollection) error {
		if users.Find(username) >= 0 {
			return domain.ErrUserExists
		}
		*users = append(*users, *u)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("user added", slog.String("username", username))
	s.activity.Record(ctx, actor, audit.UserAdded, "Username: "+username)
	return &UserResult{User: viewOf(*u), Created: true, GeneratedPassword: generated}, nil
}

// newUser builds a user document. The returned string is the generated
// password, empty when the caller supplied one.
func (s *UserService) newUser(username, password string, active bool) (*domain.User, string, error) {
	plain, generated, err := passwordOrGenerated(password)
	if err != nil {
		return nil, "", err
	}
	hash, err := auth.HashPassword(plain)
	if err != nil {
		return nil, "", err
	}
	created := s.now().UTC().Truncate(time.Second)
	u := &domain.User{Username: username, PasswordHash: hash, Active: active, CreatedAt: &created}
	if generated {
		return u, plain, nil
	}
	return u, "", nil
}

// DeleteUser removes a user. Draws that reference the user are left as they are.
func (s *UserService) DeleteUser(ctx context.Context, actor domain.Actor, username string) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	username = domain.NormalizeUsername(username)
	if username == domain.AdminUsername {
		return domain.ErrProtectedAccount
	}

	err := s.users.Update(ctx, func(users *domain.UserCollection) error {
		i := users.Find(username)
		if i < 0 {
			return domain.ErrNotFound
		}
		*users = append((*users)[:i], (*users)[i+1:]...)
		return nil
	})
	if err != nil {
		return err
	}
	s.activity.Record(ctx, actor, audit.UserDeleted, "Username: "+username)
	return nil
}

// SetUserActive activates or deactivates a participant account.
func (s *UserService) SetUserActive(ctx context.Context, actor domain.Actor, username string, active bool) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	username = domain.NormalizeUsername(username)
	if username == domain.AdminUsername {
		return domain.ErrProtectedAccount
	}

	err := s.users.Update(ctx, func(users *domain.UserCollection) error {
		i := users.Find(username)
		if i < 0 {
			return domain.ErrNotFound
		}
		(*users)[i].Active = active
		return nil
	})
	if err != nil {
		return err
	}

	action := audit.UserDeactivated
	if active {
		action = audit.UserActivated
	}
	s.activity.Record(ctx, actor, action, "Username: "+username)
	return nil
}

// ResetPassword sets a new password for username, generating one when blank.
// The generated password is returned so the admin can hand it out.
func (s *UserService) ResetPassword(ctx context.Context, actor domain.Actor, username, password string) (string, error) {
	if err := requireAdmin(actor); err != nil {
		return "", err
	}
	username = domain.NormalizeUsername(username)
	generated, err := setPassword(ctx, s.users, username, password)
	if err != nil {
		return "", err
	}
	s.activity.Record(ctx, actor, audit.PasswordChanged, "Username: "+username)
	return generated, nil
}

func setPassword(ctx context.Context, users domain.UserRepository, username, password string) (string, error) {
	plain, generated, err := passwordOrGenerated(password)
	if err != nil {
		return "", err
	}
	hash, err := auth.HashPassword(plain)
	if err != nil {
		return "", err
	}
	err = users.Update(ctx, func(c *domain.UserCollection) error {
		i := c.Find(username)
		if i < 0 {
			return domain.ErrNotFound
		}
		(*c)[i].PasswordHash = hash
		return nil
	})
	if err != nil {
		return "", err
	}
	if generated {
		return plain, nil
	}
	return "", nil
}

// UpdateInterests replaces the caller's own interests text.
func (s *UserService) UpdateInterests(ctx context.Context, actor domain.Actor, interests string) (string, error) {
	username := domain.NormalizeUsername(actor.Username)
	if username == "" {
		return "", domain.ErrForbidden
	}
	clean := sanitizeInterests(interests)

	err := s.users.Update(ctx, func(users *domain.UserCollection) error {
		i := users.Find(username)
		if i < 0 {
			return domain.ErrNotFound
		}
		(*users)[i].Interests = clean
		return nil
	})
	if err != nil {
		return "", err
	}
	s.activity.Record(ctx, actor, audit.InterestsUpdated, fmt.Sprintf("Username: %s, Length: %d", username, len([]rune(clean))))
	return clean, nil
}

// ListUsers returns every user without password hashes.
func (s *UserService) ListUsers(ctx context.Context, actor domain.Actor) ([]UserView, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	users := s.users.List(ctx)
	out := make([]UserView, 0, len(users))
	for _, u := range users {
		out = append(out, viewOf(u))
	}
	return out, nil
}

// GetUser returns one user. Participants may only read themselves.
func (s *UserService) GetUser(ctx context.Context, actor domain.Actor, username string) (*UserView, error) {
	username = domain.NormalizeUsername(username)
	if !actor.IsAdmin() && actor.Username != username {
		return nil, domain.ErrForbidden
	}
	u, err := s.users.Get(ctx, username)
	if err != nil {
		return nil, err
	}
	v := viewOf(*u)
	return &v, nil
}
