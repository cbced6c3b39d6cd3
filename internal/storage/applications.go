package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Status is the position of an application in the workflow.
type Status string

const (
	StatusInProgress       Status = "in_progress"
	StatusAwaitingResponse Status = "awaiting_response"
	StatusSent             Status = "sent"
	StatusAccepted         Status = "accepted"
	StatusRejected         Status = "rejected"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusInProgress, StatusAwaitingResponse, StatusSent, StatusAccepted, StatusRejected:
		return true
	}
	return false
}

type Application struct {
	ID                    int64      `json:"id"`
	Company               string     `json:"company"`
	Position              string     `json:"position"`
	Status                Status     `json:"status"`
	JobURL                string     `json:"job_url"`
	JobDescription        string     `json:"job_description"`
	JobDocumentID         *int64     `json:"job_document_id"`
	Deadline              *Date      `json:"deadline"`
	SentAt                *time.Time `json:"sent_at"`
	CoverLetter           string     `json:"cover_letter"`
	MatchResult           string     `json:"match_result"`
	ExtractionJSON        string     `json:"extraction_json"`
	MotivationAnswers     string     `json:"motivation_answers"`
	CompanyWebsite        string     `json:"company_website"`
	CompanyWebsiteContent string     `json:"company_website_content"`
	Notes                 string     `json:"notes"`
	CreatedAt             time.Time  `json:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at"`
}

// ApplicationSummary is the list view of an application, without the large
// free-text columns.
type ApplicationSummary struct {
	ID        int64      `json:"id"`
	Company   string     `json:"company"`
	Position  string     `json:"position"`
	Status    Status     `json:"status"`
	Deadline  *Date      `json:"deadline"`
	SentAt    *time.Time `json:"sent_at"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// updatableApplicationColumns lists the columns a partial update may touch.
var updatableApplicationColumns = map[string]bool{
	"company":                 true,
	"position":                true,
	"status":                  true,
	"job_url":                 true,
	"job_description":         true,
	"job_document_id":         true,
	"deadline":                true,
	"sent_at":                 true,
	"cover_letter":            true,
	"match_result":            true,
	"extraction_json":         true,
	"motivation_answers":      true,
	"company_website":         true,
	"company_website_content": true,
	"notes":                   true,
}

// IsApplicationField reports whether name is a column UpdateApplication accepts.
func IsApplicationField(name string) bool {
	return updatableApplicationColumns[name]
}

const applicationColumns = `id, company, position, status, job_url, job_description,
	job_document_id, deadline, sent_at, cover_letter, match_result, extraction_json,
	motivation_answers, company_website, company_website_content, notes, created_at, updated_at`

func scanApplication(row interface{ Scan(...any) error }) (*Application, error) {
	var a Application
	var jobDoc sql.NullInt64
	var deadline sql.NullString
	var sentAt sql.NullTime
	err := row.Scan(&a.ID, &a.Company, &a.Position, &a.Status, &a.JobURL, &a.JobDescription,
		&jobDoc, &deadline, &sentAt, &a.CoverLetter, &a.MatchResult, &a.ExtractionJSON,
		&a.MotivationAnswers, &a.CompanyWebsite, &a.CompanyWebsiteContent, &a.Notes,
		&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	a.JobDocumentID = scanInt64(jobDoc)
	a.Deadline = scanDate(deadline)
	a.SentAt = scanTime(sentAt)
	return &a, nil
}

// CreateApplication inserts a new application and returns it with its ID
// and timestamps populated.
func (s *Store) CreateApplication(ctx context.Context, a *Application) (*Application, error) {
	if a.Status == "" {
		a.Status = StatusInProgress
	}
	now := s.timestamp()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO applications (company, position, status, job_url, job_description,
		   job_document_id, deadline, sent_at, cover_letter, notes, company_website, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.Company, a.Position, a.Status, a.JobURL, a.JobDescription,
		a.JobDocumentID, nullDate(a.Deadline), a.SentAt, a.CoverLetter, a.Notes, a.CompanyWebsite, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create application: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get application id: %w", err)
	}
	return s.GetApplication(ctx, id)
}

// GetApplication returns the application with the given ID.
func (s *Store) GetApplication(ctx context.Context, id int64) (*Application, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+applicationColumns+" FROM applications WHERE id = ?", id)
	a, err := scanApplication(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get application: %w", err)
	}
	return a, nil
}

// ListApplications returns applications newest first, optionally filtered
// by status.
func (s *Store) ListApplications(ctx context.Context, status Status) ([]ApplicationSummary, error) {
	query := `SELECT id, company, position, status, deadline, sent_at, created_at, updated_at
		FROM applications`
	var args []any
	if status != "" {
		query += " WHERE status = ?"
		args = append(args, status)
	}
	query += " ORDER BY updated_at DESC, id DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list applications: %w", err)
	}
	defer rows.Close()

	apps := []ApplicationSummary{}
	for rows.Next() {
		var a ApplicationSummary
		var deadline sql.NullString
		var sentAt sql.NullTime
		if err := rows.Scan(&a.ID, &a.Company, &a.Position, &a.Status, &deadline, &sentAt,
			&a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan application: %w", err)
		}
		a.Deadline = scanDate(deadline)
		a.SentAt = scanTime(sentAt)
		apps = append(apps, a)
	}
	return apps, rows.Err()
}

// UpdateApplication applies a partial update. fields maps column names to
// new values; a nil value clears a nullable column. updated_at always
// advances.
func (s *Store) UpdateApplication(ctx context.Context, id int64, fields map[string]any) (*Application, error) {
	normalized := make(map[string]any, len(fields))
	for k, v := range fields {
		switch val := v.(type) {
		case *Date:
			normalized[k] = nullDate(val)
		case Date:
			normalized[k] = val.String()
		default:
			normalized[k] = v
		}
	}

	set, args, err := buildUpdate(normalized, updatableApplicationColumns)
	if err != nil {
		return nil, err
	}

	query := "UPDATE applications SET "
	if set != "" {
		query += set + ", "
	}
	query += "updated_at = ? WHERE id = ?"
	args = append(args, s.timestamp(), id)

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to update application: %w", err)
	}
	if err := affectedOrNotFound(res); err != nil {
		return nil, err
	}
	return s.GetApplication(ctx, id)
}

// DeleteApplication removes an application. Contacts, documents, versions
// and suggestions go with it through foreign-key cascades; full-text rows
// for its documents are removed in the same transaction.
func (s *Store) DeleteApplication(ctx context.Context, id int64) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		hasIndex, err := searchIndexPresent(ctx, tx)
		if err != nil {
			return err
		}
		if hasIndex {
			if _, err := tx.ExecContext(ctx, "DELETE FROM documents_fts WHERE application_id = ?", id); err != nil {
				return fmt.Errorf("failed to remove index rows: %w", err)
			}
		}
		res, err := tx.ExecContext(ctx, "DELETE FROM applications WHERE id = ?", id)
		if err != nil {
			return fmt.Errorf("failed to delete application: %w", err)
		}
		return affectedOrNotFound(res)
	})
}
