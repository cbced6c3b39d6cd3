package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ReminderTypeDeadline is reserved for the one reminder per application that
// mirrors its deadline.
const ReminderTypeDeadline = "deadline"

type ReminderStatus string

const (
	ReminderPending   ReminderStatus = "pending"
	ReminderCompleted ReminderStatus = "completed"
)

// Recurrence describes how a reminder repeats.
type Recurrence struct {
	Pattern  string `json:"pattern"`
	Interval int    `json:"interval"`
	EndDate  *Date  `json:"end_date,omitempty"`
}

type Reminder struct {
	ID             int64          `json:"id"`
	ApplicationID  *int64         `json:"application_id"`
	Title          string         `json:"title"`
	Description    string         `json:"description"`
	DueDate        Date           `json:"due_date"`
	Type           string         `json:"type"`
	Status         ReminderStatus `json:"status"`
	Recurrence     *Recurrence    `json:"recurrence,omitempty"`
	NextOccurrence *Date          `json:"next_occurrence,omitempty"`
	CompletedAt    *time.Time     `json:"completed_at,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// ReminderFilter narrows ListReminders. Zero values mean "any".
type ReminderFilter struct {
	Status        ReminderStatus
	ApplicationID *int64
	Type          string
	DueOnOrBefore *Date
}

var updatableReminderColumns = map[string]bool{
	"application_id":      true,
	"title":               true,
	"description":         true,
	"due_date":            true,
	"type":                true,
	"status":              true,
	"recurrence_pattern":  true,
	"recurrence_interval": true,
	"recurrence_end_date": true,
}

// IsReminderField reports whether name is a column UpdateReminder accepts.
func IsReminderField(name string) bool {
	return updatableReminderColumns[name]
}

const reminderColumns = `id, application_id, title, description, due_date, type, status,
	recurrence_pattern, recurrence_interval, recurrence_end_date, next_occurrence,
	completed_at, created_at, updated_at`

func scanReminder(row interface{ Scan(...any) error }) (*Reminder, error) {
	var r Reminder
	var appID sql.NullInt64
	var due string
	var pattern, endDate, next sql.NullString
	var interval int
	var completed sql.NullTime
	err := row.Scan(&r.ID, &appID, &r.Title, &r.Description, &due, &r.Type, &r.Status,
		&pattern, &interval, &endDate, &next, &completed, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	r.ApplicationID = scanInt64(appID)
	if d, err := ParseDate(due); err == nil {
		r.DueDate = d
	}
	if pattern.Valid && pattern.String != "" {
		r.Recurrence = &Recurrence{Pattern: pattern.String, Interval: interval, EndDate: scanDate(endDate)}
	}
	r.NextOccurrence = scanDate(next)
	r.CompletedAt = scanTime(completed)
	return &r, nil
}

func recurrenceArgs(rec *Recurrence) (pattern any, interval int, end any) {
	if rec == nil || rec.Pattern == "" {
		return nil, 1, nil
	}
	interval = rec.Interval
	if interval < 1 {
		interval = 1
	}
	return rec.Pattern, interval, nullDate(rec.EndDate)
}

// CreateReminder inserts a pending reminder.
func (s *Store) CreateReminder(ctx context.Context, r *Reminder) (*Reminder, error) {
	return insertReminder(ctx, s.db, r, s.timestamp())
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertReminder(ctx context.Context, db execer, r *Reminder, now time.Time) (*Reminder, error) {
	if r.Type == "" {
		r.Type = "custom"
	}
	if r.Status == "" {
		r.Status = ReminderPending
	}
	r.CreatedAt, r.UpdatedAt = now, now
	pattern, interval, end := recurrenceArgs(r.Recurrence)
	if r.Recurrence != nil && r.Recurrence.Pattern != "" {
		r.Recurrence.Interval = interval
	}
	res, err := db.ExecContext(ctx,
		`INSERT INTO reminders (application_id, title, description, due_date, type, status,
		   recurrence_pattern, recurrence_interval, recurrence_end_date, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ApplicationID, r.Title, r.Description, r.DueDate.String(), r.Type, r.Status,
		pattern, interval, end, now, now)
	if err != nil {
		return nil, fmt.Errorf("failed to create reminder: %w", err)
	}
	r.ID, err = res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get reminder id: %w", err)
	}
	return r, nil
}

// GetReminder returns a reminder by ID.
func (s *Store) GetReminder(ctx context.Context, id int64) (*Reminder, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+reminderColumns+" FROM reminders WHERE id = ?", id)
	r, err := scanReminder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get reminder: %w", err)
	}
	return r, nil
}

// ListReminders returns reminders ordered by due date.
func (s *Store) ListReminders(ctx context.Context, f ReminderFilter) ([]Reminder, error) {
	var where []string
	var args []any
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, f.Status)
	}
	if f.ApplicationID != nil {
		where = append(where, "application_id = ?")
		args = append(args, *f.ApplicationID)
	}
	if f.Type != "" {
		where = append(where, "type = ?")
		args = append(args, f.Type)
	}
	if f.DueOnOrBefore != nil {
		where = append(where, "due_date <= ?")
		args = append(args, f.DueOnOrBefore.String())
	}

	query := "SELECT " + reminderColumns + " FROM reminders"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY due_date, id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list reminders: %w", err)
	}
	defer rows.Close()

	out := []Reminder{}
	for rows.Next() {
		r, err := scanReminder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reminder: %w", err)
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

// UpdateReminder applies a partial update.
func (s *Store) UpdateReminder(ctx context.Context, id int64, fields map[string]any) (*Reminder, error) {
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
	set, args, err := buildUpdate(normalized, updatableReminderColumns)
	if err != nil {
		return nil, err
	}
	query := "UPDATE reminders SET "
	if set != "" {
		query += set + ", "
	}
	query += "updated_at = ? WHERE id = ?"
	args = append(args, s.timestamp(), id)

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to update reminder: %w", err)
	}
	if err := affectedOrNotFound(res); err != nil {
		return nil, err
	}
	return s.GetReminder(ctx, id)
}

// DeleteReminder removes a reminder.
func (s *Store) DeleteReminder(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM reminders WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete reminder: %w", err)
	}
	return affectedOrNotFound(res)
}

// DeleteRemindersForApplication removes every reminder linked to an
// application and returns how many were removed.
func (s *Store) DeleteRemindersForApplication(ctx context.Context, applicationID int64) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM reminders WHERE application_id = ?", applicationID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete reminders: %w", err)
	}
	return res.RowsAffected()
}

// DeadlineReminder returns the deadline reminder for an application, or nil.
func (s *Store) DeadlineReminder(ctx context.Context, applicationID int64) (*Reminder, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+reminderColumns+" FROM reminders WHERE application_id = ? AND type = ? ORDER BY id LIMIT 1",
		applicationID, ReminderTypeDeadline)
	r, err := scanReminder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get deadline reminder: %w", err)
	}
	return r, nil
}

// CompleteReminder marks a reminder completed. When next is non-nil it is
// recorded on the completed row; when spawn is also true a pending copy due
// on next is inserted in the same transaction and returned.
func (s *Store) CompleteReminder(ctx context.Context, id int64, next *Date, spawn bool) (*Reminder, *Reminder, error) {
	current, err := s.GetReminder(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	now := s.timestamp()
	var successor *Reminder
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`UPDATE reminders SET status = ?, completed_at = ?, next_occurrence = ?, updated_at = ?
			 WHERE id = ?`,
			ReminderCompleted, now, nullDate(next), now, id)
		if err != nil {
			return fmt.Errorf("failed to complete reminder: %w", err)
		}
		if !spawn || next == nil || current.Recurrence == nil {
			return nil
		}
		copyRec := *current.Recurrence
		successor, err = insertReminder(ctx, tx, &Reminder{
			ApplicationID: current.ApplicationID,
			Title:         current.Title,
			Description:   current.Description,
			DueDate:       *next,
			Type:          current.Type,
			Recurrence:    &copyRec,
		}, now)
		return err
	})
	if err != nil {
		return nil, nil, err
	}

	completed, err := s.GetReminder(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return completed, successor, nil
}
