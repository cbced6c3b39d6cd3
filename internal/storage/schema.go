package storage

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"sync"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// goose keeps its base FS and dialect in package globals.
var gooseMu sync.Mutex

func migrate(db *sql.DB) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(migrationsFS)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set migration dialect: %w", err)
	}
	if err := goose.UpContext(context.Background(), db, "migrations"); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

const searchIndexDDL = `
CREATE VIRTUAL TABLE IF NOT EXISTS documents_fts USING fts5(
    document_id UNINDEXED,
    application_id UNINDEXED,
    filename,
    content,
    tokenize = 'unicode61 remove_diacritics 2'
);
`

// searchIndexPresent reports whether the documents_fts table exists.
func searchIndexPresent(ctx context.Context, q interface {
	QueryRowContext(context.Context, string, ...any) *sql.Row
}) (bool, error) {
	var n int
	if err := q.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sqlite_master WHERE name = 'documents_fts'").Scan(&n); err != nil {
		return false, fmt.Errorf("failed to inspect schema: %w", err)
	}
	return n > 0, nil
}

// EnsureSearchIndex recreates the full-text table when it is missing.
// Reports whether it had to be created.
func (s *Store) EnsureSearchIndex(ctx context.Context) (bool, error) {
	present, err := searchIndexPresent(ctx, s.db)
	if err != nil {
		return false, err
	}
	if present {
		return false, nil
	}
	if _, err := s.db.ExecContext(ctx, searchIndexDDL); err != nil {
		return false, fmt.Errorf("failed to create search index: %w", err)
	}
	return true, nil
}

// DropSearchIndex removes the full-text table. Used to exercise the
// unindexed-document path.
func (s *Store) DropSearchIndex(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "DROP TABLE IF EXISTS documents_fts")
	return err
}
