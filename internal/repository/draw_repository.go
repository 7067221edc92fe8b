package repository

import (
	"context"
	"log/slog"

	"github.com/aryan0dhankhar/secretsanta/internal/domain"
	"github.com/aryan0dhankhar/secretsanta/internal/storage"
)

// DrawRepository persists the draws document
type DrawRepository struct {
	draws collection[domain.DrawFile]
}

func NewDrawRepository(store *storage.Store, path string, logger *slog.Logger) *DrawRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &DrawRepository{draws: collection[domain.DrawFile]{store: store, path: path, logger: logger}}
}

// Load returns the current draws. Legacy files come back already normalized.
func (r *DrawRepository) Load(ctx context.Context) domain.DrawFile {
	return r.draws.load(ctx)
}

// Get returns the draw whose name matches case-insensitively
func (r *DrawRepository) Get(ctx context.Context, name string) (*domain.Draw, error) {
	f := r.Load(ctx)
	i := f.Index(name)
	if i < 0 {
		return nil, domain.ErrNotFound
	}
	d := f.Groups[i]
	return &d, nil
}

// Active returns the active draw or ErrNoActiveDraw
func (r *DrawRepository) Active(ctx context.Context) (*domain.Draw, error) {
	f := r.Load(ctx)
	d, ok := f.Active()
	if !ok {
		return nil, domain.ErrNoActiveDraw
	}
	return d, nil
}

func (r *DrawRepository) Update(ctx context.Context, fn func(*domain.DrawFile) error) error {
	return r.draws.update(ctx, fn)
}
