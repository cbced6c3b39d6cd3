// Package dbsync mirrors the SQLite database file to an object store.
//
// The policy is whole-file last-writer-wins: every successful write uploads
// the complete file to a fixed key. Uploads from one process are serialized;
// nothing coordinates separate processes.
package dbsync

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/matthewjhunter/dossier/internal/blob"
	"github.com/matthewjhunter/dossier/internal/logging"
	"github.com/sirupsen/logrus"
)

// Checkpointer flushes pending WAL pages into the main database file.
type Checkpointer interface {
	Checkpoint(ctx context.Context) error
}

// Status values reported by AfterWrite.
const (
	StatusUploaded = "uploaded"
	StatusFailed   = "failed"
	StatusDisabled = "disabled"
)

// Result is the outcome of a post-write sync.
type Result struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// Header renders the result for the X-Dossier-Sync response header.
func (r Result) Header() string {
	if r.Error != "" {
		return r.Status + "; " + r.Error
	}
	return r.Status
}

// State describes the most recent upload attempt.
type State struct {
	Enabled     bool       `json:"enabled"`
	Backend     string     `json:"backend,omitempty"`
	Key         string     `json:"key,omitempty"`
	LastSuccess *time.Time `json:"last_success,omitempty"`
	LastError   string     `json:"last_error,omitempty"`
}

// Syncer uploads and restores the database file.
type Syncer struct {
	store   blob.Store
	path    string
	key     string
	enabled bool
	keep    int
	log     logrus.FieldLogger
	now     func() time.Time

	db Checkpointer

	mu          sync.Mutex
	lastSuccess *time.Time
	lastError   string
}

// Options configures a Syncer.
type Options struct {
	// Key is the remote object key for the database file.
	Key string
	// Enabled turns on AfterWrite uploads. A nil store disables sync
	// regardless.
	Enabled bool
	// KeepBackups bounds the number of backups/ objects retained. Zero
	// keeps five.
	KeepBackups int
	Logger      logrus.FieldLogger
}

// New returns a Syncer for the database file at path.
func New(store blob.Store, path string, opts Options) *Syncer {
	if opts.Key == "" {
		opts.Key = "database/dossier.db"
	}
	if opts.KeepBackups <= 0 {
		opts.KeepBackups = 5
	}
	log := opts.Logger
	if log == nil {
		log = logging.Discard()
	}
	return &Syncer{
		store:   store,
		path:    path,
		key:     opts.Key,
		enabled: opts.Enabled && store != nil,
		keep:    opts.KeepBackups,
		log:     log.WithField("component", "dbsync"),
		now:     time.Now,
	}
}

// Attach sets the database to checkpoint before each upload.
func (s *Syncer) Attach(db Checkpointer) {
	s.mu.Lock()
	s.db = db
	s.mu.Unlock()
}

// Enabled reports whether post-write uploads run.
func (s *Syncer) Enabled() bool { return s.enabled }

// State returns the current sync state.
func (s *Syncer) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := State{Enabled: s.enabled, Key: s.key, LastError: s.lastError}
	if s.store != nil {
		st.Backend = s.store.Name()
	}
	if s.lastSuccess != nil {
		t := *s.lastSuccess
		st.LastSuccess = &t
	}
	return st
}

// Push checkpoints the database and uploads the whole file.
func (s *Syncer) Push(ctx context.Context) error {
	if s.store == nil {
		return errors.New("no object store configured")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.push(ctx)
	if err != nil {
		s.lastError = err.Error()
		return err
	}
	now := s.now()
	s.lastSuccess = &now
	s.lastError = ""
	return nil
}

func (s *Syncer) push(ctx context.Context) error {
	if s.db != nil {
		if err := s.db.Checkpoint(ctx); err != nil {
			return err
		}
	}
	f, err := os.Open(s.path)
	if err != nil {
		return fmt.Errorf("failed to open database file: %w", err)
	}
	defer f.Close()
	if err := s.store.Put(ctx, s.key, "application/x-sqlite3", f); err != nil {
		return err
	}
	return nil
}

// AfterWrite runs the post-write upload when sync is enabled. Failures are
// logged and reported in the result, never returned.
func (s *Syncer) AfterWrite(ctx context.Context) Result {
	if !s.enabled {
		return Result{Status: StatusDisabled}
	}
	if err := s.Push(ctx); err != nil {
		s.log.WithError(err).Warn("database upload failed")
		return Result{Status: StatusFailed, Error: err.Error()}
	}
	s.log.WithField("key", s.key).Debug("database uploaded")
	return Result{Status: StatusUploaded}
}

// Download replaces the local database file with the remote copy. The
// database must not be open. Stale WAL and shared-memory files are removed
// so SQLite does not replay them over the restored file.
func (s *Syncer) Download(ctx context.Context) error {
	if s.store == nil {
		return errors.New("no object store configured")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	rc, err := s.store.Get(ctx, s.key)
	if err != nil {
		return err
	}
	defer rc.Close()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create database directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".download-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, rc); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to download database: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to flush database: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write database: %w", err)
	}
	for _, suffix := range []string{"-wal", "-shm"} {
		if err := os.Remove(s.path + suffix); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to remove stale %s: %w", suffix, err)
		}
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("failed to replace database: %w", err)
	}
	return nil
}

// RestoreIfMissing downloads the remote copy when sync is enabled and no
// local file exists. A missing remote object is not an error.
func (s *Syncer) RestoreIfMissing(ctx context.Context) (bool, error) {
	if !s.enabled {
		return false, nil
	}
	if _, err := os.Stat(s.path); err == nil {
		return false, nil
	}
	err := s.Download(ctx)
	if errors.Is(err, blob.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// StoreBackup uploads the backup file at path as backups/<timestamp>.db and
// prunes older backups beyond the retention count.
func (s *Syncer) StoreBackup(ctx context.Context, path string) (string, error) {
	if s.store == nil {
		return "", errors.New("no object store configured")
	}
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open backup: %w", err)
	}
	defer f.Close()

	key := "backups/" + s.now().UTC().Format("20060102T150405Z") + ".db"
	if err := s.store.Put(ctx, key, "application/x-sqlite3", f); err != nil {
		return "", err
	}

	objs, err := s.store.List(ctx, "backups/")
	if err != nil {
		s.log.WithError(err).Warn("failed to list backups")
		return key, nil
	}
	sort.Slice(objs, func(i, j int) bool { return objs[i].Key > objs[j].Key })
	for _, o := range objs[min(len(objs), s.keep):] {
		if err := s.store.Delete(ctx, o.Key); err != nil {
			s.log.WithError(err).WithField("key", o.Key).Warn("failed to prune backup")
		}
	}
	return key, nil
}
