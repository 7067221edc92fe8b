package ratelimit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/aryan0dhankhar/secretsanta/internal/reliability/circuitbreaker"
)

// Lockout tracks failed logins per username and locks the account out for a
// while once too many have accumulated.
type Lockout interface {
	// Locked returns the remaining lock time, zero when login may proceed.
	Locked(ctx context.Context, key string) (time.Duration, error)
	// Fail records a failed attempt and reports whether it triggered a lock.
	Fail(ctx context.Context, key string) (bool, error)
	// Reset clears the counter after a successful login.
	Reset(ctx context.Context, key string) error
}

// MemoryLockout keeps counters in process memory.
type MemoryLockout struct {
	mu          sync.Mutex
	maxAttempts int
	lockFor     time.Duration
	now         func() time.Time
	entries     map[string]*attempts
}

type attempts struct {
	count       int
	lockedUntil time.Time
}

func NewMemoryLockout(maxAttempts int, lockFor time.Duration) *MemoryLockout {
	return &MemoryLockout{
		maxAttempts: maxAttempts,
		lockFor:     lockFor,
		now:         time.Now,
		entries:     make(map[string]*attempts),
	}
}

func (m *MemoryLockout) Locked(_ context.Context, key string) (time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.entries[key]
	if !ok || a.lockedUntil.IsZero() {
		return 0, nil
	}
	now := m.now()
	if a.lockedUntil.After(now) {
		return a.lockedUntil.Sub(now), nil
	}
	delete(m.entries, key)
	return 0, nil
}

func (m *MemoryLockout) Fail(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.entries[key]
	if !ok {
		a = &attempts{}
		m.entries[key] = a
	}
	a.count++
	if a.count >= m.maxAttempts {
		a.lockedUntil = m.now().Add(m.lockFor)
		return true, nil
	}
	return false, nil
}

func (m *MemoryLockout) Reset(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

// CounterStore is the subset of the Redis client used by RedisLockout.
type CounterStore interface {
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	TTL(ctx context.Context, key string) (time.Duration, error)
	Delete(ctx context.Context, keys ...string) error
}

// RedisLockout shares counters between server instances.
type RedisLockout struct {
	store       CounterStore
	maxAttempts int
	lockFor     time.Duration
}

func NewRedisLockout(store CounterStore, maxAttempts int, lockFor time.Duration) *RedisLockout {
	return &RedisLockout{store: store, maxAttempts: maxAttempts, lockFor: lockFor}
}

func failKey(key string) string { return "login:fail:" + key }
func lockKey(key string) string { return "login:lock:" + key }

func (r *RedisLockout) Locked(ctx context.Context, key string) (time.Duration, error) {
	return r.store.TTL(ctx, lockKey(key))
}

func (r *RedisLockout) Fail(ctx context.Context, key string) (bool, error) {
	n, err := r.store.Incr(ctx, failKey(key), r.lockFor)
	if err != nil {
		return false, err
	}
	if int(n) < r.maxAttempts {
		return false, nil
	}
	if err := r.store.Set(ctx, lockKey(key), n, r.lockFor); err != nil {
		return false, err
	}
	return true, r.store.Delete(ctx, failKey(key))
}

func (r *RedisLockout) Reset(ctx context.Context, key string) error {
	return r.store.Delete(ctx, failKey(key), lockKey(key))
}

// GuardedLockout prefers primary and falls back to fallback while the
// circuit breaker reports primary as unhealthy.
type GuardedLockout struct {
	primary  Lockout
	fallback Lockout
	breaker  *circuitbreaker.CircuitBreaker
	log      *slog.Logger
}

func NewGuardedLockout(primary, fallback Lockout, breaker *circuitbreaker.CircuitBreaker, log *slog.Logger) *GuardedLockout {
	if log == nil {
		log = slog.Default()
	}
	return &GuardedLockout{primary: primary, fallback: fallback, breaker: breaker, log: log}
}

func (g *GuardedLockout) Locked(ctx context.Context, key string) (time.Duration, error) {
	var d time.Duration
	err := g.run("locked", func(l Lockout) error {
		var err error
		d, err = l.Locked(ctx, key)
		return err
	})
	return d, err
}

func (g *GuardedLockout) Fail(ctx context.Context, key string) (bool, error) {
	var locked bool
	err := g.run("fail", func(l Lockout) error {
		var err error
		locked, err = l.Fail(ctx, key)
		return err
	})
	return locked, err
}

func (g *GuardedLockout) Reset(ctx context.Context, key string) error {
	return g.run("reset", func(l Lockout) error { return l.Reset(ctx, key) })
}

func (g *GuardedLockout) run(op string, fn func(Lockout) error) error {
	err := g.breaker.Execute(func() error { return fn(g.primary) })
	if err == nil {
		return nil
	}
	g.log.Warn("lockout backend unavailable, using fallback",
		slog.String("operation", op),
		slog.String("error", err.Error()),
	)
	return fn(g.fallback)
}
