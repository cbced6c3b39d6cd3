package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Version sources.
const (
	SourceManual     = "manual"
	SourceGenerated  = "generated"
	SourceRestored   = "restored"
	SourceSuggestion = "suggestion"
	SourceChat       = "chat"
)

type CoverLetterVersion struct {
	ID            int64     `json:"id"`
	ApplicationID int64     `json:"application_id"`
	VersionNumber int       `json:"version_number"`
	Content       string    `json:"content"`
	Source        string    `json:"source"`
	RestoredFrom  *int64    `json:"restored_from,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// SuggestionStatus is the review state of a suggestion.
type SuggestionStatus string

const (
	SuggestionPending  SuggestionStatus = "pending"
	SuggestionAccepted SuggestionStatus = "accepted"
	SuggestionRejected SuggestionStatus = "rejected"
)

func (s SuggestionStatus) Valid() bool {
	return s == SuggestionPending || s == SuggestionAccepted || s == SuggestionRejected
}

type CoverLetterSuggestion struct {
	ID            int64            `json:"id"`
	ApplicationID int64            `json:"application_id"`
	VersionID     int64            `json:"version_id"`
	OriginalText  string           `json:"original_text"`
	SuggestedText string           `json:"suggested_text"`
	Reason        string           `json:"reason"`
	Status        SuggestionStatus `json:"status"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

// AddVersion appends a cover letter version numbered one past the current
// maximum for the application and mirrors the content onto
// applications.cover_letter, all in one transaction.
func (s *Store) AddVersion(ctx context.Context, applicationID int64, content, source string, restoredFrom *int64) (*CoverLetterVersion, error) {
	if source == "" {
		source = SourceManual
	}
	v := &CoverLetterVersion{
		ApplicationID: applicationID,
		Content:       content,
		Source:        source,
		RestoredFrom:  restoredFrom,
		CreatedAt:     s.timestamp(),
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			"UPDATE applications SET cover_letter = ?, updated_at = ? WHERE id = ?",
			content, v.CreatedAt, applicationID)
		if err != nil {
			return fmt.Errorf("failed to update cover letter: %w", err)
		}
		if err := affectedOrNotFound(res); err != nil {
			return err
		}

		if err := tx.QueryRowContext(ctx,
			"SELECT COALESCE(MAX(version_number), 0) + 1 FROM cover_letter_versions WHERE application_id = ?",
			applicationID,
		).Scan(&v.VersionNumber); err != nil {
			return fmt.Errorf("failed to compute version number: %w", err)
		}

		res, err = tx.ExecContext(ctx,
			`INSERT INTO cover_letter_versions (application_id, version_number, content, source, restored_from, created_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			applicationID, v.VersionNumber, content, source, restoredFrom, v.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert version: %w", err)
		}
		v.ID, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return nil, err
	}
	return v, nil
}

// ListVersions returns an application's versions newest first.
func (s *Store) ListVersions(ctx context.Context, applicationID int64) ([]CoverLetterVersion, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, application_id, version_number, content, source, restored_from, created_at
		 FROM cover_letter_versions WHERE application_id = ?
		 ORDER BY version_number DESC`,
		applicationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list versions: %w", err)
	}
	defer rows.Close()

	versions := []CoverLetterVersion{}
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan version: %w", err)
		}
		versions = append(versions, *v)
	}
	return versions, rows.Err()
}

// GetVersion returns a version scoped to its application.
func (s *Store) GetVersion(ctx context.Context, applicationID, versionID int64) (*CoverLetterVersion, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, application_id, version_number, content, source, restored_from, created_at
		 FROM cover_letter_versions WHERE id = ? AND application_id = ?`,
		versionID, applicationID)
	v, err := scanVersion(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get version: %w", err)
	}
	return v, nil
}

// LatestVersion returns the highest-numbered version, or ErrNotFound.
func (s *Store) LatestVersion(ctx context.Context, applicationID int64) (*CoverLetterVersion, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, application_id, version_number, content, source, restored_from, created_at
		 FROM cover_letter_versions WHERE application_id = ?
		 ORDER BY version_number DESC LIMIT 1`,
		applicationID)
	v, err := scanVersion(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest version: %w", err)
	}
	return v, nil
}

func scanVersion(row interface{ Scan(...any) error }) (*CoverLetterVersion, error) {
	var v CoverLetterVersion
	var restored sql.NullInt64
	if err := row.Scan(&v.ID, &v.ApplicationID, &v.VersionNumber, &v.Content, &v.Source, &restored, &v.CreatedAt); err != nil {
		return nil, err
	}
	v.RestoredFrom = scanInt64(restored)
	return &v, nil
}

// AddSuggestion stores a pending paragraph replacement.
func (s *Store) AddSuggestion(ctx context.Context, sg *CoverLetterSuggestion) (*CoverLetterSuggestion, error) {
	sg.Status = SuggestionPending
	sg.CreatedAt = s.timestamp()
	sg.UpdatedAt = sg.CreatedAt
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO cover_letter_suggestions
		   (application_id, version_id, original_text, suggested_text, reason, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		sg.ApplicationID, sg.VersionID, sg.OriginalText, sg.SuggestedText, sg.Reason, sg.Status, sg.CreatedAt, sg.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to add suggestion: %w", err)
	}
	sg.ID, err = res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get suggestion id: %w", err)
	}
	return sg, nil
}

// ListSuggestions returns suggestions for an application, optionally
// filtered by status.
func (s *Store) ListSuggestions(ctx context.Context, applicationID int64, status SuggestionStatus) ([]CoverLetterSuggestion, error) {
	query := `SELECT id, application_id, version_id, original_text, suggested_text, reason, status, created_at, updated_at
		FROM cover_letter_suggestions WHERE application_id = ?`
	args := []any{applicationID}
	if status != "" {
		query += " AND status = ?"
		args = append(args, status)
	}
	query += " ORDER BY id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list suggestions: %w", err)
	}
	defer rows.Close()

	out := []CoverLetterSuggestion{}
	for rows.Next() {
		sg, err := scanSuggestion(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan suggestion: %w", err)
		}
		out = append(out, *sg)
	}
	return out, rows.Err()
}

// GetSuggestion returns a suggestion scoped to its application.
func (s *Store) GetSuggestion(ctx context.Context, applicationID, suggestionID int64) (*CoverLetterSuggestion, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, application_id, version_id, original_text, suggested_text, reason, status, created_at, updated_at
		 FROM cover_letter_suggestions WHERE id = ? AND application_id = ?`,
		suggestionID, applicationID)
	sg, err := scanSuggestion(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get suggestion: %w", err)
	}
	return sg, nil
}

// SetSuggestionStatus records a review decision.
func (s *Store) SetSuggestionStatus(ctx context.Context, applicationID, suggestionID int64, status SuggestionStatus) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE cover_letter_suggestions SET status = ?, updated_at = ? WHERE id = ? AND application_id = ?",
		status, s.timestamp(), suggestionID, applicationID)
	if err != nil {
		return fmt.Errorf("failed to update suggestion: %w", err)
	}
	return affectedOrNotFound(res)
}

func scanSuggestion(row interface{ Scan(...any) error }) (*CoverLetterSuggestion, error) {
	var sg CoverLetterSuggestion
	err := row.Scan(&sg.ID, &sg.ApplicationID, &sg.VersionID, &sg.OriginalText, &sg.SuggestedText,
		&sg.Reason, &sg.Status, &sg.CreatedAt, &sg.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &sg, nil
}
