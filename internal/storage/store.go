// Package storage persists whole collections as JSON documents on the local
// filesystem. Every write keeps the previous version next to the primary file
// as <path>.backup and is verified by reading it back; every read recovers
// from that backup when the primary no longer decodes.
package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/aryan0dhankhar/secretsanta/internal/reliability/retry"
)

// Activity log action kinds emitted by the store.
const (
	EventCorruptionDetected  = "JSON_CORRUPTION_DETECTED"
	EventRecoveredFromBackup = "JSON_RECOVERED_FROM_BACKUP"
	EventRecoveryFailed      = "JSON_RECOVERY_FAILED"
	EventEncodeFailed        = "JSON_ENCODE_FAILED"
	EventWriteFailed         = "FILE_WRITE_FAILED"
)

// BackupSuffix is appended to a collection path to name its backup copy.
const BackupSuffix = ".backup"

var (
	// ErrWriteFailed means no attempt produced a verified write. The
	// mutation must be treated as not having happened.
	ErrWriteFailed = errors.New("storage: write failed")
	// ErrEncode means the collection could not be serialized.
	ErrEncode = errors.New("storage: encode failed")

	errVerify = errors.New("read-back does not match payload")
)

// Outcome describes where a loaded collection came from.
type Outcome int

const (
	// Missing means the primary file does not exist yet.
	Missing Outcome = iota
	// Loaded means the primary file decoded cleanly.
	Loaded
	// RecoveredFromBackup means the primary was unusable and the backup was used.
	RecoveredFromBackup
	// RecoveredEmpty means neither file decoded and the zero value was returned.
	RecoveredEmpty
)

// String returns the metric label for o.
func (o Outcome) String() string {
	switch o {
	case Missing:
		return "missing"
	case Loaded:
		return "loaded"
	case RecoveredFromBackup:
		return "recovered_from_backup"
	case RecoveredEmpty:
		return "recovered_empty"
	default:
		return "unknown"
	}
}

// EventSink receives diagnostics meant for the activity log.
type EventSink interface {
	StorageEvent(ctx context.Context, action, detail string)
}

// Observer receives timing for every load and save.
type Observer interface {
	ObserveStoreOperation(operation, result string, d time.Duration)
}

// Options configures a Store. Zero values pick the defaults.
type Options struct {
	Logger        *slog.Logger
	Events        EventSink
	Observer      Observer
	ReadAttempts  int
	WriteAttempts int
	RetryDelay    time.Duration
	FileMode      os.FileMode
	DirMode       os.FileMode
}

// Store reads and writes collection documents.
type Store struct {
	log      *slog.Logger
	events   EventSink
	observer Observer
	readCfg  *retry.Config
	writeCfg *retry.Config
	fileMode os.FileMode
	dirMode  os.FileMode

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New creates a Store.
func New(opts Options) *Store {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.ReadAttempts <= 0 {
		opts.ReadAttempts = 3
	}
	if opts.WriteAttempts <= 0 {
		opts.WriteAttempts = 5
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 100 * time.Millisecond
	}
	if opts.FileMode == 0 {
		opts.FileMode = 0o600
	}
	if opts.DirMode == 0 {
		opts.DirMode = 0o700
	}
	return &Store{
		log:      opts.Logger,
		events:   opts.Events,
		observer: opts.Observer,
		readCfg: &retry.Config{
			MaxAttempts:    opts.ReadAttempts,
			InitialBackoff: opts.RetryDelay,
			Strategy:       retry.Constant,
		},
		writeCfg: &retry.Config{
			MaxAttempts:    opts.WriteAttempts,
			InitialBackoff: opts.RetryDelay,
			Strategy:       retry.Linear,
		},
		fileMode: opts.FileMode,
		dirMode:  opts.DirMode,
		locks:    make(map[string]*sync.Mutex),
	}
}

// Load decodes the collection at path. It never fails: a missing file yields
// the zero value, a corrupt file is replaced by its backup, and when both are
// unusable the zero value is returned and the loss is recorded. Cancelling ctx
// does not interrupt the read; only its values are used.
func Load[T any](ctx context.Context, s *Store, path string) (T, Outcome) {
	ctx = context.WithoutCancel(ctx)
	start := time.Now()
	v, outcome := load[T](ctx, s, path)
	s.observe("load", outcome.String(), start)
	return v, outcome
}

func load[T any](ctx context.Context, s *Store, path string) (T, Outcome) {
	var zero T

	data, err := s.read(ctx, path)
	if errors.Is(err, fs.ErrNotExist) {
		return zero, Missing
	}
	if err == nil {
		var v T
		if err = json.Unmarshal(data, &v); err == nil {
			return v, Loaded
		}
	}

	name := filepath.Base(path)
	s.log.Error("collection unreadable, trying backup",
		slog.String("file", path),
		slog.String("error", err.Error()),
	)
	s.emit(ctx, EventCorruptionDetected, fmt.Sprintf("File: %s, Error: %v", name, err))

	backup, berr := s.read(ctx, path+BackupSuffix)
	if berr == nil {
		var v T
		if berr = json.Unmarshal(backup, &v); berr == nil {
			s.log.Warn("collection recovered from backup", slog.String("file", path))
			s.emit(ctx, EventRecoveredFromBackup, "File: "+name)
			return v, RecoveredFromBackup
		}
	}

	s.log.Error("collection recovery failed, using empty collection",
		slog.String("file", path),
		slog.String("error", berr.Error()),
	)
	s.emit(ctx, EventRecoveryFailed, "File: "+name)
	return zero, RecoveredEmpty
}

// read returns the file contents under a shared lock, retrying transient failures.
func (s *Store) read(ctx context.Context, path string) ([]byte, error) {
	return retry.Do(ctx, s.readCfg, s.log, "read "+filepath.Base(path), func(_ context.Context, _ int) ([]byte, error) {
		f, err := os.Open(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, retry.Permanent(err)
			}
			return nil, err
		}
		defer f.Close()

		if err := lockShared(f); err != nil {
			return nil, fmt.Errorf("lock: %w", err)
		}
		defer unlock(f)

		return io.ReadAll(f)
	})
}

// Save writes v to path. The previous file is copied to the backup first; the
// write is retried with linear backoff until a read-back matches the payload.
// A started write runs to completion even if ctx is cancelled.
func Save[T any](ctx context.Context, s *Store, path string, v T) error {
	ctx = context.WithoutCancel(ctx)
	start := time.Now()
	err := save(ctx, s, path, v)
	result := "ok"
	if err != nil {
		result = "error"
	}
	s.observe("save", result, start)
	return err
}

func save[T any](ctx context.Context, s *Store, path string, v T) error {
	name := filepath.Base(path)

	payload, err := encode(v)
	if err != nil {
		s.log.Error("collection encode failed", slog.String("file", path), slog.String("error", err.Error()))
		s.emit(ctx, EventEncodeFailed, fmt.Sprintf("File: %s, Error: %v", name, err))
		return fmt.Errorf("%w: %v", ErrEncode, err)
	}

	if err := os.MkdirAll(filepath.Dir(path), s.dirMode); err != nil {
		s.log.Warn("create data directory", slog.String("dir", filepath.Dir(path)), slog.String("error", err.Error()))
	}
	backupPrimary[T](s, path)

	_, err = retry.Do(ctx, s.writeCfg, s.log, "write "+name, func(_ context.Context, _ int) (struct{}, error) {
		return struct{}{}, s.writeVerified(path, payload)
	})
	if err != nil {
		s.log.Error("collection write failed",
			slog.String("file", path),
			slog.Int("attempts", s.writeCfg.MaxAttempts),
			slog.String("error", err.Error()),
		)
		s.emit(ctx, EventWriteFailed, fmt.Sprintf("File: %s after %d attempts", name, s.writeCfg.MaxAttempts))
		return ErrWriteFailed
	}

	if err := os.Chmod(path, s.fileMode); err != nil {
		s.log.Warn("chmod collection", slog.String("file", path), slog.String("error", err.Error()))
	}
	return nil
}

// Update runs a load, mutate, save cycle while holding both an in-process
// mutex and an exclusive lock on <path>.lock, so concurrent updates to the
// same collection are serialized across goroutines and processes. When fn
// returns an error nothing is written and that error is returned as is.
func Update[T any](ctx context.Context, s *Store, path string, fn func(*T) error) error {
	mu := s.pathMutex(path)
	mu.Lock()
	defer mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(path), s.dirMode); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}
	lf, err := os.OpenFile(path+".lock", os.O_RDWR|os.O_CREATE, s.fileMode)
	if err != nil {
		return fmt.Errorf("open lock file: %w", err)
	}
	defer lf.Close()
	if err := lockExclusive(lf); err != nil {
		return fmt.Errorf("lock collection: %w", err)
	}
	defer unlock(lf)

	v, _ := Load[T](ctx, s, path)
	if err := fn(&v); err != nil {
		return err
	}
	return Save(ctx, s, path, v)
}

func (s *Store) pathMutex(path string) *sync.Mutex {
	key := filepath.Clean(path)
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.locks[key]
	if !ok {
		m = &sync.Mutex{}
		s.locks[key] = m
	}
	return m
}

// writeVerified replaces the file contents under an exclusive lock and checks
// the bytes on disk against payload.
func (s *Store) writeVerified(path string, payload []byte) error {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, s.fileMode)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := lockExclusive(f); err != nil {
		return fmt.Errorf("lock: %w", err)
	}
	defer unlock(f)

	if err := f.Truncate(0); err != nil {
		return err
	}
	if _, err := f.WriteAt(payload, 0); err != nil {
		return err
	}
	if err := f.Sync(); err != nil {
		return err
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return err
	}
	got, err := io.ReadAll(f)
	if err != nil {
		return err
	}
	if !bytes.Equal(got, payload) {
		return errVerify
	}
	return nil
}

// backupPrimary copies the current primary file aside. Failures are logged
// only; a primary that does not decode into T is not copied so the last good
// backup survives.
func backupPrimary[T any](s *Store, path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.log.Warn("backup skipped", slog.String("file", path), slog.String("error", err.Error()))
		}
		return
	}
	var probe T
	if err := json.Unmarshal(data, &probe); err != nil {
		s.log.Warn("backup skipped, primary does not decode",
			slog.String("file", path),
			slog.String("error", err.Error()),
		)
		return
	}

	bpath := path + BackupSuffix
	if err := os.WriteFile(bpath, data, s.fileMode); err != nil {
		s.log.Warn("backup failed", slog.String("file", bpath), slog.String("error", err.Error()))
		return
	}
	if err := os.Chmod(bpath, s.fileMode); err != nil {
		s.log.Warn("chmod backup", slog.String("file", bpath), slog.String("error", err.Error()))
	}
}

// encode produces indented JSON with <, > and & escaped.
func encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(true)
	enc.SetIndent("", "    ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (s *Store) emit(ctx context.Context, action, detail string) {
	if s.events != nil {
		s.events.StorageEvent(ctx, action, detail)
	}
}

func (s *Store) observe(op, result string, start time.Time) {
	if s.observer != nil {
		s.observer.ObserveStoreOperation(op, result, time.Since(start))
	}
}

// AppendLocked appends data to the file at path under an exclusive lock and
// normalizes its permissions to mode.
func AppendLocked(path string, data []byte, mode os.FileMode) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, mode)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := lockExclusive(f); err != nil {
		return fmt.Errorf("lock: %w", err)
	}
	defer unlock(f)

	if _, err := f.Write(data); err != nil {
		return err
	}
	return os.Chmod(path, mode)
}
