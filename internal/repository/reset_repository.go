package repository

import (
	"context"
	"log/slog"

	"github.com/aryan0dhankhar/secretsanta/internal/domain"
	"github.com/aryan0dhankhar/secretsanta/internal/storage"
)

// ResetRequestRepository persists password reset requests
type ResetRequestRepository struct {
	requests collection[domain.ResetRequestCollection]
}

func NewResetRequestRepository(store *storage.Store, path string, logger *slog.Logger) *ResetRequestRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &ResetRequestRepository{requests: collection[domain.ResetRequestCollection]{store: store, path: path, logger: logger}}
}

func (r *ResetRequestRepository) List(ctx context.Context) domain.ResetRequestCollection {
	reqs := r.requests.load(ctx)
	if reqs == nil {
		return domain.ResetRequestCollection{}
	}
	return reqs
}

func (r *ResetRequestRepository) Update(ctx context.Context, fn func(*domain.ResetRequestCollection) error) error {
	return r.requests.update(ctx, fn)
}
