package audit

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aryan0dhankhar/secretsanta/internal/domain"
)

func newTestLogger(t *testing.T) (*Logger, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "activity.log")
	l := NewLogger(slog.New(slog.NewTextHandler(io.Discard, nil)), path)
	l.now = func() time.Time { return time.Date(2025, 12, 1, 9, 30, 0, 0, time.UTC) }
	return l, path
}

func TestEntryLineFormat(t *testing.T) {
	e := Entry{
		Time:       time.Date(2025, 12, 1, 9, 30, 5, 0, time.UTC),
		RemoteAddr: "10.0.0.1",
		Actor:      "admin",
		Action:     DrawCreated,
		Detail:     "Group: 2025\nParticipants: 3",
	}
	assert.Equal(t, "[2025-12-01 09:30:05] [10.0.0.1] [admin] DRAW_CREATED - Group: 2025 Participants: 3", e.Line())

	bare := Entry{Time: e.Time, Action: LoginFailed}
	assert.Equal(t, "[2025-12-01 09:30:05] [unknown] [system] LOGIN_FAILED", bare.Line())
}

func TestAppendAndLastN(t *testing.T) {
	l, path := newTestLogger(t)
	ctx := context.Background()
	actor := domain.Actor{Username: "alice", RemoteAddr: "127.0.0.1"}

	for i := 0; i < 5; i++ {
		l.Record(ctx, actor, InterestsUpdated, fmt.Sprintf("n=%d", i))
	}

	lines, err := l.LastN(2)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"[2025-12-01 09:30:00] [127.0.0.1] [alice] INTERESTS_UPDATED - n=3",
		"[2025-12-01 09:30:00] [127.0.0.1] [alice] INTERESTS_UPDATED - n=4",
	}, lines)

	all, err := l.LastN(100)
	require.NoError(t, err)
	assert.Len(t, all, 5)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestLastNWithoutFile(t *testing.T) {
	l, _ := newTestLogger(t)
	lines, err := l.LastN(10)
	require.NoError(t, err)
	assert.Empty(t, lines)
}

func TestStorageEventUsesSystemActor(t *testing.T) {
	l, _ := newTestLogger(t)
	l.StorageEvent(context.Background(), "JSON_RECOVERY_FAILED", "File: users.json")

	lines, err := l.LastN(1)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "[system] JSON_RECOVERY_FAILED - File: users.json")
}

func TestSubscribeReceivesNewLines(t *testing.T) {
	l, _ := newTestLogger(t)
	ch, cancel := l.Subscribe(4)
	defer cancel()

	l.Record(context.Background(), domain.Actor{Username: "admin"}, DrawArchived, "Group: 2024")

	select {
	case line := <-ch:
		assert.Contains(t, line, "DRAW_ARCHIVED - Group: 2024")
	case <-time.After(time.Second):
		t.Fatal("no line published")
	}

	cancel()
	_, open := <-ch
	assert.False(t, open)
}

func TestRequestIDRoundTrip(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-1")
	assert.Equal(t, "req-1", RequestID(ctx))
	assert.Empty(t, RequestID(context.Background()))
}
