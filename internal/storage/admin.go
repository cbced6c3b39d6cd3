package storage

import (
	"context"
	"fmt"
	"os"
)

// DatabaseStats describes the database file and its contents.
type DatabaseStats struct {
	Tables             map[string]int64 `json:"tables"`
	PageCount          int64            `json:"page_count"`
	PageSize           int64            `json:"page_size"`
	FileSize           int64            `json:"file_size"`
	WALSize            int64            `json:"wal_size"`
	SearchIndexPresent bool             `json:"search_index_present"`
	IndexedDocuments   int64            `json:"indexed_documents"`
}

var statsTables = []string{
	"applications",
	"contact_persons",
	"application_documents",
	"cover_letter_versions",
	"cover_letter_suggestions",
	"reminders",
	"prompts",
	"prompt_versions",
	"settings",
	"cover_letter_samples",
}

// Checkpoint flushes the write-ahead log into the main database file and
// truncates it, so the file on disk is self-contained.
func (s *Store) Checkpoint(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return fmt.Errorf("failed to checkpoint: %w", err)
	}
	return nil
}

// Stats collects row counts and file sizes.
func (s *Store) Stats(ctx context.Context) (*DatabaseStats, error) {
	st := &DatabaseStats{Tables: make(map[string]int64, len(statsTables))}
	for _, table := range statsTables {
		var n int64
		if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
			return nil, fmt.Errorf("failed to count %s: %w", table, err)
		}
		st.Tables[table] = n
	}

	if err := s.db.QueryRowContext(ctx, "PRAGMA page_count").Scan(&st.PageCount); err != nil {
		return nil, fmt.Errorf("failed to read page count: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, "PRAGMA page_size").Scan(&st.PageSize); err != nil {
		return nil, fmt.Errorf("failed to read page size: %w", err)
	}

	present, err := searchIndexPresent(ctx, s.db)
	if err != nil {
		return nil, err
	}
	st.SearchIndexPresent = present
	if st.SearchIndexPresent {
		if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM documents_fts").Scan(&st.IndexedDocuments); err != nil {
			return nil, fmt.Errorf("failed to count index rows: %w", err)
		}
	}

	if fi, err := os.Stat(s.path); err == nil {
		st.FileSize = fi.Size()
	}
	if fi, err := os.Stat(s.path + "-wal"); err == nil {
		st.WALSize = fi.Size()
	}
	return st, nil
}

// BackupTo writes a compacted, consistent copy of the database to dest,
// which must not already exist.
func (s *Store) BackupTo(ctx context.Context, dest string) error {
	if _, err := s.db.ExecContext(ctx, "VACUUM INTO ?", dest); err != nil {
		return fmt.Errorf("failed to back up database: %w", err)
	}
	return nil
}

// Optimize refreshes planner statistics, merges full-text segments and
// rebuilds the file.
func (s *Store) Optimize(ctx context.Context) error {
	present, err := searchIndexPresent(ctx, s.db)
	if err != nil {
		return err
	}
	steps := []string{"PRAGMA optimize"}
	if present {
		steps = append(steps, "INSERT INTO documents_fts(documents_fts) VALUES('optimize')")
	}
	steps = append(steps, "VACUUM")
	for _, step := range steps {
		if _, err := s.db.ExecContext(ctx, step); err != nil {
			return fmt.Errorf("optimize step %q: %w", step, err)
		}
	}
	return nil
}
