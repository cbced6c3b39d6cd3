package dbsync

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/matthewjhunter/dossier/internal/blob"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingCheckpointer struct {
	calls int
	err   error
}

func (c *countingCheckpointer) Checkpoint(ctx context.Context) error {
	c.calls++
	return c.err
}

func newLocal(t *testing.T) *blob.Local {
	t.Helper()
	l, err := blob.NewLocal(t.TempDir(), []byte("k"), "")
	require.NoError(t, err)
	return l
}

func readObject(t *testing.T, store blob.Store, key string) string {
	t.Helper()
	rc, err := store.Get(context.Background(), key)
	require.NoError(t, err)
	defer rc.Close()
	b, err := io.ReadAll(rc)
	require.NoError(t, err)
	return string(b)
}

func TestAfterWriteDisabled(t *testing.T) {
	s := New(nil, filepath.Join(t.TempDir(), "db"), Options{Enabled: true})
	assert.False(t, s.Enabled())
	assert.Equal(t, Result{Status: StatusDisabled}, s.AfterWrite(context.Background()))
}

func TestAfterWriteUploads(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "dossier.db")
	require.NoError(t, os.WriteFile(dbPath, []byte("sqlite bytes v1"), 0o644))

	store := newLocal(t)
	cp := &countingCheckpointer{}
	s := New(store, dbPath, Options{Enabled: true})
	s.Attach(cp)

	res := s.AfterWrite(context.Background())
	assert.Equal(t, StatusUploaded, res.Status)
	assert.Equal(t, "uploaded", res.Header())
	assert.Equal(t, 1, cp.calls)
	assert.Equal(t, "sqlite bytes v1", readObject(t, store, "database/dossier.db"))

	st := s.State()
	assert.True(t, st.Enabled)
	assert.Equal(t, "local", st.Backend)
	assert.NotNil(t, st.LastSuccess)
}

func TestAfterWriteReportsFailure(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "dossier.db")
	require.NoError(t, os.WriteFile(dbPath, []byte("x"), 0o644))

	log, hook := test.NewNullLogger()
	s := New(newLocal(t), dbPath, Options{Enabled: true, Logger: log})
	s.Attach(&countingCheckpointer{err: errors.New("database is locked")})

	res := s.AfterWrite(context.Background())
	assert.Equal(t, StatusFailed, res.Status)
	assert.Contains(t, res.Header(), "database is locked")
	assert.Equal(t, "database is locked", s.State().LastError)

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.WarnLevel, entry.Level)
	assert.Equal(t, "database upload failed", entry.Message)
	assert.Equal(t, "dbsync", entry.Data["component"])
}

func TestDownloadReplacesFileAndDropsWAL(t *testing.T) {
	ctx := context.Background()
	store := newLocal(t)
	require.NoError(t, store.Put(ctx, "database/dossier.db", "", stringsReader("remote copy")))

	dbPath := filepath.Join(t.TempDir(), "dossier.db")
	require.NoError(t, os.WriteFile(dbPath, []byte("local copy"), 0o644))
	require.NoError(t, os.WriteFile(dbPath+"-wal", []byte("stale"), 0o644))

	s := New(store, dbPath, Options{Enabled: true})
	require.NoError(t, s.Download(ctx))

	b, err := os.ReadFile(dbPath)
	require.NoError(t, err)
	assert.Equal(t, "remote copy", string(b))
	_, err = os.Stat(dbPath + "-wal")
	assert.True(t, os.IsNotExist(err))
}

func TestRestoreIfMissing(t *testing.T) {
	ctx := context.Background()
	store := newLocal(t)
	dbPath := filepath.Join(t.TempDir(), "sub", "dossier.db")
	s := New(store, dbPath, Options{Enabled: true})

	restored, err := s.RestoreIfMissing(ctx)
	require.NoError(t, err)
	assert.False(t, restored, "no remote copy yet")

	require.NoError(t, store.Put(ctx, "database/dossier.db", "", stringsReader("remote")))
	restored, err = s.RestoreIfMissing(ctx)
	require.NoError(t, err)
	assert.True(t, restored)

	restored, err = s.RestoreIfMissing(ctx)
	require.NoError(t, err)
	assert.False(t, restored, "local file now exists")
}

func TestStoreBackupPrunes(t *testing.T) {
	ctx := context.Background()
	store := newLocal(t)
	backup := filepath.Join(t.TempDir(), "backup.db")
	require.NoError(t, os.WriteFile(backup, []byte("b"), 0o644))

	s := New(store, "", Options{KeepBackups: 2})
	at := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return at }

	var keys []string
	for i := 0; i < 3; i++ {
		key, err := s.StoreBackup(ctx, backup)
		require.NoError(t, err)
		keys = append(keys, key)
		at = at.Add(time.Hour)
	}
	assert.Equal(t, "backups/20240301T100000Z.db", keys[0])

	objs, err := store.List(ctx, "backups/")
	require.NoError(t, err)
	require.Len(t, objs, 2)
	assert.Equal(t, keys[1], objs[0].Key)
	assert.Equal(t, keys[2], objs[1].Key)
}

func stringsReader(s string) io.Reader { return strings.NewReader(s) }
