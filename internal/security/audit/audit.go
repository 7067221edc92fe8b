package audit

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/aryan0dhankhar/secretsanta/internal/domain"
	"github.com/aryan0dhankhar/secretsanta/internal/storage"
)

// Action kinds written to the activity log.
const (
	UserAdded              = "USER_ADDED"
	UserUpdated            = "USER_UPDATED"
	UserDeleted            = "USER_DELETED"
	UserActivated          = "USER_ACTIVATED"
	UserDeactivated        = "USER_DEACTIVATED"
	UserRegistered         = "USER_REGISTERED"
	PasswordChanged        = "PASSWORD_CHANGED"
	PasswordResetRequested = "PASSWORD_RESET_REQUESTED"
	PasswordResetApproved  = "PASSWORD_RESET_APPROVED"
	PasswordResetRejected  = "PASSWORD_RESET_REJECTED"
	InterestsUpdated       = "INTERESTS_UPDATED"
	PurchaseStatusUpdated  = "PURCHASE_STATUS_UPDATED"
	DrawCreated            = "DRAW_CREATED"
	DrawActivated          = "DRAW_ACTIVATED"
	DrawArchived           = "DRAW_ARCHIVED"
	DrawDeleted            = "DRAW_DELETED"
	DrawValidationFailed   = "DRAW_VALIDATION_FAILED"
	AdminCreated           = "ADMIN_CREATED"
	LoginSucceeded         = "LOGIN_SUCCEEDED"
	LoginFailed            = "LOGIN_FAILED"
	LoginLocked            = "LOGIN_LOCKED"
	AccessDenied           = "ACCESS_DENIED"
)

const timeLayout = "2006-01-02 15:04:05"

type requestIDKey struct{}

// WithRequestID stores the request id used to correlate activity entries.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID returns the request id from ctx, if any.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// Entry is one activity log line
type Entry struct {
	Time       time.Time
	RemoteAddr string
	Actor      string
	Action     string
	Detail     string
}

// Line renders the entry as `[ts] [addr] [actor] ACTION - detail`.
func (e Entry) Line() string {
	addr := e.RemoteAddr
	if addr == "" {
		addr = "unknown"
	}
	actor := e.Actor
	if actor == "" {
		actor = "system"
	}
	line := fmt.Sprintf("[%s] [%s] [%s] %s", e.Time.Format(timeLayout), addr, actor, e.Action)
	if e.Detail != "" {
		line += " - " + e.Detail
	}
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(line)
}

// Logger appends activity entries to a file and mirrors them to slog.
type Logger struct {
	logger *slog.Logger
	path   string
	mode   os.FileMode
	now    func() time.Time

	mu   sync.Mutex
	subs map[chan string]struct{}
}

// NewLogger creates an activity logger writing to path. An empty path only mirrors to slog.
func NewLogger(logger *slog.Logger, path string) *Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Logger{
		logger: logger,
		path:   path,
		mode:   0o600,
		now:    time.Now,
		subs:   make(map[chan string]struct{}),
	}
}

// Append writes e to the log, stamping it with the current time when unset.
func (al *Logger) Append(ctx context.Context, e Entry) error {
	if e.Time.IsZero() {
		e.Time = al.now()
	}
	line := e.Line()

	al.logger.Info("activity",
		slog.String("action", e.Action),
		slog.String("actor", e.Actor),
		slog.String("remote_addr", e.RemoteAddr),
		slog.String("details", e.Detail),
		slog.String("request_id", RequestID(ctx)),
	)

	if al.path != "" {
		if err := storage.AppendLocked(al.path, []byte(line+"\n"), al.mode); err != nil {
			al.logger.Error("activity log append failed", slog.String("error", err.Error()))
			return fmt.Errorf("append activity log: %w", err)
		}
	}
	al.publish(line)
	return nil
}

// Record appends an entry for actor. Write failures are logged, not returned.
func (al *Logger) Record(ctx context.Context, actor domain.Actor, action, detail string) {
	_ = al.Append(ctx, Entry{
		RemoteAddr: actor.RemoteAddr,
		Actor:      actor.Name(),
		Action:     action,
		Detail:     detail,
	})
}

// StorageEvent records store diagnostics under the system actor.
func (al *Logger) StorageEvent(ctx context.Context, action, detail string) {
	al.Record(ctx, domain.System, action, detail)
}

// LogDenied records an authorization refusal.
func (al *Logger) LogDenied(ctx context.Context, actor domain.Actor, reason string) {
	al.Record(ctx, actor, AccessDenied, reason)
}

// LastN returns up to n most recent lines, oldest first.
func (al *Logger) LastN(n int) ([]string, error) {
	if n <= 0 || al.path == "" {
		return []string{}, nil
	}
	f, err := os.Open(al.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []string{}, nil
		}
		return nil, err
	}
	defer f.Close()

	ring := make([]string, 0, n)
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if len(ring) == n {
			copy(ring, ring[1:])
			ring = ring[:n-1]
		}
		ring = append(ring, line)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return ring, nil
}

// Subscribe returns a channel receiving every new line and a cancel func.
// Slow subscribers miss lines rather than blocking writers.
func (al *Logger) Subscribe(buffer int) (<-chan string, func()) {
	ch := make(chan string, buffer)
	al.mu.Lock()
	al.subs[ch] = struct{}{}
	al.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			al.mu.Lock()
			delete(al.subs, ch)
			al.mu.Unlock()
			close(ch)
		})
	}
}

func (al *Logger) publish(line string) {
	al.mu.Lock()
	defer al.mu.Unlock()
	for ch := range al.subs {
		select {
		case ch <- line:
		default:
		}
	}
}
