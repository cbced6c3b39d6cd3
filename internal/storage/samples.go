package storage

import (
	"context"
	"fmt"
	"time"
)

// CoverLetterSample is a previously written cover letter kept as a style
// reference for generation.
type CoverLetterSample struct {
	ID             int64     `json:"id"`
	Title          string    `json:"title"`
	Content        string    `json:"content"`
	Embedding      []byte    `json:"-"`
	EmbeddingModel string    `json:"embedding_model,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// AddSample stores a cover letter sample with its optional embedding.
func (s *Store) AddSample(ctx context.Context, sm *CoverLetterSample) (*CoverLetterSample, error) {
	sm.CreatedAt = s.timestamp()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO cover_letter_samples (title, content, embedding, embedding_model, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		sm.Title, sm.Content, sm.Embedding, sm.EmbeddingModel, sm.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to add sample: %w", err)
	}
	sm.ID, err = res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get sample id: %w", err)
	}
	return sm, nil
}

// ListSamples returns all samples including embeddings, oldest first.
func (s *Store) ListSamples(ctx context.Context) ([]CoverLetterSample, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, title, content, embedding, embedding_model, created_at FROM cover_letter_samples ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to list samples: %w", err)
	}
	defer rows.Close()

	out := []CoverLetterSample{}
	for rows.Next() {
		var sm CoverLetterSample
		if err := rows.Scan(&sm.ID, &sm.Title, &sm.Content, &sm.Embedding, &sm.EmbeddingModel, &sm.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan sample: %w", err)
		}
		out = append(out, sm)
	}
	return out, rows.Err()
}

// DeleteSample removes a sample.
func (s *Store) DeleteSample(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM cover_letter_samples WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete sample: %w", err)
	}
	return affectedOrNotFound(res)
}
