package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

type Prompt struct {
	Name      string    `json:"name"`
	Content   string    `json:"content"`
	UpdatedAt time.Time `json:"updated_at"`
}

type PromptVersion struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	VersionNumber int       `json:"version_number"`
	Content       string    `json:"content"`
	CreatedBy     string    `json:"created_by"`
	CreatedAt     time.Time `json:"created_at"`
}

// GetPrompt returns the stored prompt, or nil if the slot has never been
// written.
func (s *Store) GetPrompt(ctx context.Context, name string) (*Prompt, error) {
	var p Prompt
	err := s.db.QueryRowContext(ctx,
		"SELECT name, content, updated_at FROM prompts WHERE name = ?", name,
	).Scan(&p.Name, &p.Content, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get prompt: %w", err)
	}
	return &p, nil
}

// ReplacePrompt archives prior as the next version for name, then upserts
// content as the current value. Returns the archived version number.
func (s *Store) ReplacePrompt(ctx context.Context, name, prior, content, author string) (int, error) {
	if author == "" {
		author = "user"
	}
	now := s.timestamp()
	var version int
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := tx.QueryRowContext(ctx,
			"SELECT COALESCE(MAX(version_number), 0) + 1 FROM prompt_versions WHERE name = ?", name,
		).Scan(&version); err != nil {
			return fmt.Errorf("failed to compute prompt version: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO prompt_versions (name, version_number, content, created_by, created_at)
			 VALUES (?, ?, ?, ?, ?)`,
			name, version, prior, author, now); err != nil {
			return fmt.Errorf("failed to archive prompt: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO prompts (name, content, updated_at) VALUES (?, ?, ?)
			 ON CONFLICT(name) DO UPDATE SET
			   content = excluded.content,
			   updated_at = excluded.updated_at`,
			name, content, now); err != nil {
			return fmt.Errorf("failed to save prompt: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return version, nil
}

// ListPromptVersions returns the history for a prompt, newest first.
func (s *Store) ListPromptVersions(ctx context.Context, name string) ([]PromptVersion, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, version_number, content, created_by, created_at
		 FROM prompt_versions WHERE name = ? ORDER BY version_number DESC`, name)
	if err != nil {
		return nil, fmt.Errorf("failed to list prompt versions: %w", err)
	}
	defer rows.Close()

	out := []PromptVersion{}
	for rows.Next() {
		var v PromptVersion
		if err := rows.Scan(&v.ID, &v.Name, &v.VersionNumber, &v.Content, &v.CreatedBy, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan prompt version: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
