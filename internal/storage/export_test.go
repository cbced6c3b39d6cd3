package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// indexedContent returns the text stored in the index for a document.
func (s *Store) indexedContent(ctx context.Context, documentID int64) (string, error) {
	var content string
	err := s.db.QueryRowContext(ctx,
		"SELECT content FROM documents_fts WHERE document_id = ?", documentID).Scan(&content)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to read index row: %w", err)
	}
	return content, nil
}
