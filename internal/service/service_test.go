package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aryan0dhankhar/secretsanta/internal/domain"
	"github.com/aryan0dhankhar/secretsanta/internal/repository"
	"github.com/aryan0dhankhar/secretsanta/internal/security/auth"
	"github.com/aryan0dhankhar/secretsanta/internal/storage"
)

var (
	admin = domain.Actor{Username: domain.AdminUsername, Role: domain.RoleAdmin, RemoteAddr: "127.0.0.1"}
	alice = domain.Actor{Username: "alice", Role: domain.RoleParticipant, RemoteAddr: "127.0.0.1"}
)

type entry struct {
	actor  string
	action string
	detail string
}

type activitySpy struct {
	mu      sync.Mutex
	entries []entry
}

func (a *activitySpy) Record(_ context.Context, actor domain.Actor, action, detail string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, entry{actor: actor.Username, action: action, detail: detail})
}

func (a *activitySpy) actions() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, 0, len(a.entries))
	for _, e := range a.entries {
		out = append(out, e.action)
	}
	return out
}

func (a *activitySpy) last() entry {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.entries) == 0 {
		return entry{}
	}
	return a.entries[len(a.entries)-1]
}

type harness struct {
	dir      string
	users    *repository.UserRepository
	draws    *repository.DrawRepository
	resets   *repository.ResetRequestRepository
	activity *activitySpy
	logger   *slog.Logger
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	dir := t.TempDir()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := storage.New(storage.Options{Logger: logger, RetryDelay: time.Millisecond})
	return &harness{
		dir:      dir,
		users:    repository.NewUserRepository(store, filepath.Join(dir, "users.json"), logger),
		draws:    repository.NewDrawRepository(store, filepath.Join(dir, "pairs.json"), logger),
		resets:   repository.NewResetRequestRepository(store, filepath.Join(dir, "reset_requests.json"), logger),
		activity: &activitySpy{},
		logger:   logger,
	}
}

// seedUsers writes active users whose password equals their name.
func (h *harness) seedUsers(t *testing.T, names ...string) {
	t.Helper()
	require.NoError(t, h.users.Update(context.Background(), func(c *domain.UserCollection) error {
		for _, n := range names {
			hash, err := auth.HashPassword(n + "-pw")
			if err != nil {
				return err
			}
			*c = append(*c, domain.User{Username: n, PasswordHash: hash, Active: true})
		}
		return nil
	}))
}

func (h *harness) drawService() *DrawService {
	return NewDrawService(h.draws, h.users, h.activity, h.logger)
}

func (h *harness) userService() *UserService {
	return NewUserService(h.users, h.activity, h.logger)
}

type failingSource struct{}

func (failingSource) IntN(int) (int, error) { return 0, errors.New("entropy exhausted") }
