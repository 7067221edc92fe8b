package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/aryan0dhankhar/secretsanta/internal/domain"
	"github.com/aryan0dhankhar/secretsanta/internal/storage"
)

// EnsureDataDir creates the data directory readable only by the owner.
func EnsureDataDir(dir string) error {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	if err := os.Chmod(dir, 0o700); err != nil {
		return fmt.Errorf("chmod data dir: %w", err)
	}
	return nil
}

// collection binds one document type to its file. Every call loads a fresh
// snapshot; nothing is cached between calls.
type collection[T any] struct {
	store  *storage.Store
	path   string
	logger *slog.Logger
}

func (c *collection[T]) load(ctx context.Context) T {
	v, outcome := storage.Load[T](ctx, c.store, c.path)
	if outcome == storage.RecoveredEmpty {
		c.logger.Warn("collection reset to empty after failed recovery", slog.String("file", c.path))
	}
	return v
}

func (c *collection[T]) update(ctx context.Context, fn func(*T) error) error {
	err := storage.Update(ctx, c.store, c.path, fn)
	if err == nil {
		return nil
	}
	if errors.Is(err, storage.ErrWriteFailed) || errors.Is(err, storage.ErrEncode) {
		return fmt.Errorf("%w: %w", domain.ErrStorageWrite, err)
	}
	return err
}
