package dossier

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/matthewjhunter/dossier/internal/apperr"
	"github.com/matthewjhunter/dossier/internal/blob"
	"github.com/matthewjhunter/dossier/internal/config"
	"github.com/matthewjhunter/dossier/internal/dbsync"
	"github.com/matthewjhunter/dossier/internal/logging"
)

// Stats returns table counts, file sizes, search index health and the sync
// state.
func (e *Engine) Stats(ctx context.Context) (*DatabaseStats, error) {
	st, err := e.store.Stats(ctx)
	if err != nil {
		return nil, err
	}
	return &DatabaseStats{DatabaseStats: *st, Path: e.store.Path(), Sync: e.sync.State()}, nil
}

// Backup writes a consistent copy of the database into dir (the database
// directory when empty). With upload set the copy is also stored in the
// bucket under backups/.
func (e *Engine) Backup(ctx context.Context, dir string, upload bool) (*BackupResult, error) {
	const op = "backup"
	if dir == "" {
		dir = filepath.Join(filepath.Dir(e.store.Path()), "backups")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create backup directory: %w", err)
	}
	if upload && e.remote == nil {
		return nil, apperr.E(apperr.Unavailable, op, "cloud storage is not configured")
	}

	path := filepath.Join(dir, "dossier-"+e.now().UTC().Format("20060102T150405Z")+".db")
	if err := e.store.BackupTo(ctx, path); err != nil {
		return nil, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	res := &BackupResult{Path: path, Size: info.Size()}
	if upload {
		key, err := e.sync.StoreBackup(ctx, path)
		if err != nil {
			return res, apperr.Wrap(apperr.Unavailable, op, "backup written locally but upload failed", err)
		}
		res.RemoteKey = key
	}
	e.log.WithField("path", path).Info("database backed up")
	return res, nil
}

// Optimize refreshes planner statistics and compacts the database.
func (e *Engine) Optimize(ctx context.Context) error {
	return e.store.Optimize(ctx)
}

// SyncNow uploads the database file immediately, whether or not post-write
// sync is enabled.
func (e *Engine) SyncNow(ctx context.Context) (dbsync.Result, error) {
	if e.remote == nil {
		return dbsync.Result{Status: dbsync.StatusDisabled}, apperr.E(apperr.Unavailable, "sync", "cloud storage is not configured")
	}
	if err := e.sync.Push(ctx); err != nil {
		return dbsync.Result{Status: dbsync.StatusFailed, Error: err.Error()}, apperr.Wrap(apperr.Unavailable, "sync", "upload failed", err)
	}
	return dbsync.Result{Status: dbsync.StatusUploaded}, nil
}

// FixSearchIndex recreates the search table if it is missing and indexes
// any documents without a row.
func (e *Engine) FixSearchIndex(ctx context.Context) (*ReindexResult, error) {
	return e.Reindex(ctx, false)
}

// DownloadDatabase replaces the local database file with the copy in the
// object store. It opens no database, so it must run while no engine holds
// the file.
func DownloadDatabase(ctx context.Context, cfg EngineConfig) error {
	c := cfg.Config
	if c == nil {
		c = config.DefaultConfig()
	}
	log := cfg.Logger
	if log == nil {
		log = logging.Discard()
	}
	remote := cfg.Remote
	if remote == nil {
		if c.Storage.Bucket == "" {
			return apperr.E(apperr.Unavailable, "download", "cloud storage is not configured")
		}
		gcs, err := blob.NewGCS(ctx, c.Storage.Bucket, c.Storage.CredentialsFile)
		if err != nil {
			return fmt.Errorf("open bucket %s: %w", c.Storage.Bucket, err)
		}
		defer gcs.Close()
		remote = gcs
	}
	syncer := dbsync.New(remote, c.Database.Path, dbsync.Options{Key: c.Sync.ObjectKey, Logger: log})
	if err := syncer.Download(ctx); err != nil {
		if errors.Is(err, blob.ErrNotExist) {
			return apperr.E(apperr.NotFound, "download", "no database in the object store")
		}
		return err
	}
	log.WithFields(logrus.Fields{"key": c.Sync.ObjectKey, "path": c.Database.Path}).Info("database downloaded")
	return nil
}
