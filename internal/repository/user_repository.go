package repository

import (
	"context"
	"log/slog"

	"github.com/aryan0dhankhar/secretsanta/internal/domain"
	"github.com/aryan0dhankhar/secretsanta/internal/storage"
)

// UserRepository persists the users collection
type UserRepository struct {
	users collection[domain.UserCollection]
}

// NewUserRepository creates a repository over the users file at path
func NewUserRepository(store *storage.Store, path string, logger *slog.Logger) *UserRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &UserRepository{users: collection[domain.UserCollection]{store: store, path: path, logger: logger}}
}

// List returns all users in file order
func (r *UserRepository) List(ctx context.Context) domain.UserCollection {
	users := r.users.load(ctx)
	if users == nil {
		return domain.UserCollection{}
	}
	return users
}

// Get retrieves a user by normalized username
func (r *UserRepository) Get(ctx context.Context, username string) (*domain.User, error) {
	users := r.List(ctx)
	i := users.Find(username)
	if i < 0 {
		return nil, domain.ErrNotFound
	}
	u := users[i]
	return &u, nil
}

// Update applies fn to the users collection and saves the result
func (r *UserRepository) Update(ctx context.Context, fn func(*domain.UserCollection) error) error {
	return r.users.update(ctx, fn)
}
