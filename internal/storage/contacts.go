package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

type ContactPerson struct {
	ID            int64     `json:"id"`
	ApplicationID int64     `json:"application_id"`
	Name          string    `json:"name"`
	Email         string    `json:"email"`
	Phone         string    `json:"phone"`
	Position      string    `json:"position"`
	CreatedAt     time.Time `json:"created_at"`
}

var updatableContactColumns = map[string]bool{
	"name":     true,
	"email":    true,
	"phone":    true,
	"position": true,
}

// AddContact attaches a contact person to an application.
func (s *Store) AddContact(ctx context.Context, c *ContactPerson) (*ContactPerson, error) {
	c.CreatedAt = s.timestamp()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO contact_persons (application_id, name, email, phone, position, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		c.ApplicationID, c.Name, c.Email, c.Phone, c.Position, c.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to add contact: %w", err)
	}
	c.ID, err = res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get contact id: %w", err)
	}
	return c, nil
}

// ListContacts returns the contacts for an application in insertion order.
func (s *Store) ListContacts(ctx context.Context, applicationID int64) ([]ContactPerson, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, application_id, name, email, phone, position, created_at
		 FROM contact_persons WHERE application_id = ? ORDER BY id`,
		applicationID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list contacts: %w", err)
	}
	defer rows.Close()

	contacts := []ContactPerson{}
	for rows.Next() {
		var c ContactPerson
		if err := rows.Scan(&c.ID, &c.ApplicationID, &c.Name, &c.Email, &c.Phone, &c.Position, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan contact: %w", err)
		}
		contacts = append(contacts, c)
	}
	return contacts, rows.Err()
}

// GetContact returns a contact scoped to its application.
func (s *Store) GetContact(ctx context.Context, applicationID, contactID int64) (*ContactPerson, error) {
	var c ContactPerson
	err := s.db.QueryRowContext(ctx,
		`SELECT id, application_id, name, email, phone, position, created_at
		 FROM contact_persons WHERE id = ? AND application_id = ?`,
		contactID, applicationID,
	).Scan(&c.ID, &c.ApplicationID, &c.Name, &c.Email, &c.Phone, &c.Position, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get contact: %w", err)
	}
	return &c, nil
}

// UpdateContact applies a partial update to a contact.
func (s *Store) UpdateContact(ctx context.Context, applicationID, contactID int64, fields map[string]any) (*ContactPerson, error) {
	if len(fields) == 0 {
		return s.GetContact(ctx, applicationID, contactID)
	}
	set, args, err := buildUpdate(fields, updatableContactColumns)
	if err != nil {
		return nil, err
	}
	args = append(args, contactID, applicationID)
	res, err := s.db.ExecContext(ctx,
		"UPDATE contact_persons SET "+set+" WHERE id = ? AND application_id = ?", args...)
	if err != nil {
		return nil, fmt.Errorf("failed to update contact: %w", err)
	}
	if err := affectedOrNotFound(res); err != nil {
		return nil, err
	}
	return s.GetContact(ctx, applicationID, contactID)
}

// DeleteContact removes a contact from an application.
func (s *Store) DeleteContact(ctx context.Context, applicationID, contactID int64) error {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM contact_persons WHERE id = ? AND application_id = ?", contactID, applicationID)
	if err != nil {
		return fmt.Errorf("failed to delete contact: %w", err)
	}
	return affectedOrNotFound(res)
}
