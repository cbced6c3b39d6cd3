package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Document kinds.
const (
	DocumentKindAttachment = "attachment"
	DocumentKindJobPosting = "job_posting"
)

type Document struct {
	ID            int64     `json:"id"`
	ApplicationID int64     `json:"application_id"`
	Filename      string    `json:"filename"`
	StoragePath   string    `json:"storage_path"`
	MimeType      string    `json:"mime_type"`
	Size          int64     `json:"size"`
	Kind          string    `json:"kind"`
	CreatedAt     time.Time `json:"created_at"`
}

// SearchHit is one ranked full-text match.
type SearchHit struct {
	DocumentID    int64   `json:"document_id"`
	ApplicationID int64   `json:"application_id"`
	Filename      string  `json:"filename"`
	Snippet       string  `json:"snippet"`
	Rank          float64 `json:"rank"`
	Company       string  `json:"company"`
	Position      string  `json:"position"`
}

const documentColumns = "id, application_id, filename, storage_path, mime_type, size, kind, created_at"

func scanDocument(row interface{ Scan(...any) error }) (*Document, error) {
	var d Document
	if err := row.Scan(&d.ID, &d.ApplicationID, &d.Filename, &d.StoragePath, &d.MimeType, &d.Size, &d.Kind, &d.CreatedAt); err != nil {
		return nil, err
	}
	return &d, nil
}

// CreateDocument inserts document metadata.
func (s *Store) CreateDocument(ctx context.Context, d *Document) (*Document, error) {
	if d.Kind == "" {
		d.Kind = DocumentKindAttachment
	}
	d.CreatedAt = s.timestamp()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO application_documents (application_id, filename, storage_path, mime_type, size, kind, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		d.ApplicationID, d.Filename, d.StoragePath, d.MimeType, d.Size, d.Kind, d.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create document: %w", err)
	}
	d.ID, err = res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get document id: %w", err)
	}
	return d, nil
}

// GetDocument returns a document scoped to its application.
func (s *Store) GetDocument(ctx context.Context, applicationID, documentID int64) (*Document, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+documentColumns+" FROM application_documents WHERE id = ? AND application_id = ?",
		documentID, applicationID)
	d, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	return d, nil
}

// ListDocuments returns an application's documents, newest first.
func (s *Store) ListDocuments(ctx context.Context, applicationID int64) ([]Document, error) {
	return s.queryDocuments(ctx,
		"SELECT "+documentColumns+" FROM application_documents WHERE application_id = ? ORDER BY id DESC",
		applicationID)
}

// UnindexedDocuments returns documents that have no full-text row.
func (s *Store) UnindexedDocuments(ctx context.Context) ([]Document, error) {
	return s.queryDocuments(ctx,
		"SELECT "+documentColumns+` FROM application_documents
		 WHERE id NOT IN (SELECT document_id FROM documents_fts)
		 ORDER BY id`)
}

func (s *Store) queryDocuments(ctx context.Context, query string, args ...any) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer rows.Close()

	docs := []Document{}
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, *d)
	}
	return docs, rows.Err()
}

// DeleteDocument removes document metadata. The full-text row is left to
// RemoveDocumentIndex.
func (s *Store) DeleteDocument(ctx context.Context, applicationID, documentID int64) error {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM application_documents WHERE id = ? AND application_id = ?", documentID, applicationID)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	return affectedOrNotFound(res)
}

// IndexDocument writes (or replaces) the full-text row for a document.
func (s *Store) IndexDocument(ctx context.Context, documentID, applicationID int64, filename, content string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM documents_fts WHERE document_id = ?", documentID); err != nil {
			return fmt.Errorf("failed to clear index row: %w", err)
		}
		_, err := tx.ExecContext(ctx,
			"INSERT INTO documents_fts (document_id, application_id, filename, content) VALUES (?, ?, ?, ?)",
			documentID, applicationID, filename, content)
		if err != nil {
			return fmt.Errorf("failed to index document: %w", err)
		}
		return nil
	})
}

// RemoveDocumentIndex deletes the full-text row for a document and reports
// whether one existed. A missing index table is not an error.
func (s *Store) RemoveDocumentIndex(ctx context.Context, documentID int64) (bool, error) {
	present, err := searchIndexPresent(ctx, s.db)
	if err != nil || !present {
		return false, err
	}
	res, err := s.db.ExecContext(ctx, "DELETE FROM documents_fts WHERE document_id = ?", documentID)
	if err != nil {
		return false, fmt.Errorf("failed to remove index row: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// SearchDocuments runs a full-text query and returns hits ranked by bm25.
// Each whitespace-separated term is quoted and prefix-matched, so user
// input never reaches the FTS5 query grammar unescaped.
func (s *Store) SearchDocuments(ctx context.Context, query string, limit int) ([]SearchHit, error) {
	match := ftsQuery(query)
	if match == "" {
		return []SearchHit{}, nil
	}
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT d.id, d.application_id, d.filename,
		        snippet(documents_fts, -1, '<mark>', '</mark>', '…', 16),
		        bm25(documents_fts), a.company, a.position
		 FROM documents_fts
		 JOIN application_documents d ON d.id = documents_fts.document_id
		 JOIN applications a ON a.id = d.application_id
		 WHERE documents_fts MATCH ?
		 ORDER BY bm25(documents_fts)
		 LIMIT ?`,
		match, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search documents: %w", err)
	}
	defer rows.Close()

	hits := []SearchHit{}
	for rows.Next() {
		var h SearchHit
		if err := rows.Scan(&h.DocumentID, &h.ApplicationID, &h.Filename, &h.Snippet, &h.Rank, &h.Company, &h.Position); err != nil {
			return nil, fmt.Errorf("failed to scan search hit: %w", err)
		}
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

func ftsQuery(q string) string {
	var terms []string
	for _, f := range strings.Fields(q) {
		f = strings.ReplaceAll(f, `"`, "")
		if f == "" {
			continue
		}
		terms = append(terms, `"`+f+`"*`)
	}
	return strings.Join(terms, " ")
}
