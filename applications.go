package dossier

import (
	"context"
	"fmt"
	"strings"

	"github.com/matthewjhunter/dossier/internal/apperr"
	"github.com/matthewjhunter/dossier/internal/storage"
)

// readOnlyApplicationFields are echoed back by clients and ignored on PATCH.
var readOnlyApplicationFields = map[string]bool{
	"id":         true,
	"created_at": true,
	"updated_at": true,
	"contacts":   true,
	"documents":  true,
}

// ListApplications returns applications newest first, optionally filtered by
// status.
func (e *Engine) ListApplications(ctx context.Context, status string) ([]storage.ApplicationSummary, error) {
	st := storage.Status(status)
	if status != "" && !st.Valid() {
		return nil, apperr.E(apperr.Invalid, "list applications", fmt.Sprintf("unknown status %q", status))
	}
	return e.store.ListApplications(ctx, st)
}

// GetApplication returns an application with its contacts and documents.
func (e *Engine) GetApplication(ctx context.Context, id int64) (*ApplicationDetail, error) {
	app, err := e.application(ctx, "get application", id)
	if err != nil {
		return nil, err
	}
	contacts, err := e.store.ListContacts(ctx, id)
	if err != nil {
		return nil, err
	}
	docs, err := e.store.ListDocuments(ctx, id)
	if err != nil {
		return nil, err
	}
	return &ApplicationDetail{Application: app, Contacts: contacts, Documents: docs}, nil
}

func (e *Engine) application(ctx context.Context, op string, id int64) (*storage.Application, error) {
	app, err := e.store.GetApplication(ctx, id)
	if err != nil {
		return nil, notFound(op, "application", err)
	}
	return app, nil
}

// CreateApplication stores a new application and its deadline reminder.
func (e *Engine) CreateApplication(ctx context.Context, in NewApplication) (*storage.Application, error) {
	const op = "create application"
	in.Company = strings.TrimSpace(in.Company)
	in.Position = strings.TrimSpace(in.Position)
	if in.Company == "" || in.Position == "" {
		return nil, apperr.E(apperr.Invalid, op, "company and position are required")
	}
	if in.Status == "" {
		in.Status = storage.StatusInProgress
	}
	if !in.Status.Valid() {
		return nil, apperr.E(apperr.Invalid, op, fmt.Sprintf("unknown status %q", in.Status))
	}

	app := &storage.Application{
		Company:        in.Company,
		Position:       in.Position,
		Status:         in.Status,
		JobURL:         strings.TrimSpace(in.JobURL),
		JobDescription: in.JobDescription,
		Deadline:       in.Deadline,
		CompanyWebsite: strings.TrimSpace(in.CompanyWebsite),
		Notes:          in.Notes,
	}
	if in.Status == storage.StatusSent {
		now := e.now().UTC()
		app.SentAt = &now
	}
	created, err := e.store.CreateApplication(ctx, app)
	if err != nil {
		return nil, err
	}
	if created.Deadline != nil {
		if _, err := e.SyncDeadlineReminder(ctx, created.ID, created.Deadline, created.Company, created.Position); err != nil {
			e.log.WithError(err).WithField("application_id", created.ID).Warn("failed to create deadline reminder")
		}
	}
	return created, nil
}

// UpdateApplication applies a partial update. Only supplied fields change;
// null clears a nullable field. Moving to "sent" without a sent_at stamps
// the current time if none is recorded yet.
func (e *Engine) UpdateApplication(ctx context.Context, id int64, patch Patch) (*storage.Application, error) {
	const op = "update application"
	current, err := e.application(ctx, op, id)
	if err != nil {
		return nil, err
	}

	fields := make(map[string]any, len(patch))
	invalid := func(err error) error { return apperr.Wrap(apperr.Invalid, op, err.Error(), err) }
	for key, raw := range patch {
		if readOnlyApplicationFields[key] {
			continue
		}
		if !storage.IsApplicationField(key) {
			return nil, apperr.E(apperr.Invalid, op, fmt.Sprintf("unknown field %q", key))
		}
		switch key {
		case "company", "position":
			s, err := patchRequired(key, raw)
			if err != nil {
				return nil, invalid(err)
			}
			fields[key] = s
		case "status":
			s, err := patchRequired(key, raw)
			if err != nil {
				return nil, invalid(err)
			}
			if !storage.Status(s).Valid() {
				return nil, apperr.E(apperr.Invalid, op, fmt.Sprintf("unknown status %q", s))
			}
			fields[key] = s
		case "deadline":
			d, err := patchDate(key, raw)
			if err != nil {
				return nil, invalid(err)
			}
			fields[key] = d
		case "sent_at":
			t, err := patchTime(key, raw)
			if err != nil {
				return nil, invalid(err)
			}
			if t == nil {
				fields[key] = nil
			} else {
				fields[key] = *t
			}
		case "job_document_id":
			docID, err := patchID(key, raw)
			if err != nil {
				return nil, invalid(err)
			}
			if docID != nil {
				if _, err := e.store.GetDocument(ctx, id, *docID); err != nil {
					return nil, notFound(op, "document", err)
				}
				fields[key] = *docID
			} else {
				fields[key] = nil
			}
		default:
			s, err := patchString(key, raw)
			if err != nil {
				return nil, invalid(err)
			}
			fields[key] = s
		}
	}

	if fields["status"] == string(storage.StatusSent) && current.SentAt == nil {
		if _, supplied := patch["sent_at"]; !supplied {
			fields["sent_at"] = e.now().UTC()
		}
	}

	updated, err := e.store.UpdateApplication(ctx, id, fields)
	if err != nil {
		return nil, notFound(op, "application", err)
	}

	_, deadline := fields["deadline"]
	_, company := fields["company"]
	_, position := fields["position"]
	if deadline || ((company || position) && updated.Deadline != nil) {
		if _, err := e.SyncDeadlineReminder(ctx, id, updated.Deadline, updated.Company, updated.Position); err != nil {
			e.log.WithError(err).WithField("application_id", id).Warn("failed to sync deadline reminder")
		}
	}
	return updated, nil
}

// DeleteApplication removes an application. Contacts, documents, versions
// and suggestions go with it in the database; stored files and linked
// reminders are removed afterwards, best-effort.
func (e *Engine) DeleteApplication(ctx context.Context, id int64) (*ApplicationDeleteResult, error) {
	const op = "delete application"
	docs, err := e.store.ListDocuments(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := e.store.DeleteApplication(ctx, id); err != nil {
		return nil, notFound(op, "application", err)
	}

	res := &ApplicationDeleteResult{}
	for _, d := range docs {
		if removed, err := e.deleteBytes(ctx, d.StoragePath); err != nil {
			res.FilesFailed++
			e.log.WithError(err).WithField("path", d.StoragePath).Warn("failed to remove document file")
		} else if removed {
			res.FilesRemoved++
		}
	}
	n, err := e.store.DeleteRemindersForApplication(ctx, id)
	if err != nil {
		e.log.WithError(err).WithField("application_id", id).Warn("failed to remove reminders")
	}
	res.RemindersRemoved = int(n)
	return res, nil
}

// SyncDeadlineReminder keeps exactly one deadline reminder per application
// with a deadline, and none without. It returns the reminder, or nil when
// the deadline was cleared.
func (e *Engine) SyncDeadlineReminder(ctx context.Context, applicationID int64, deadline *storage.Date, company, position string) (*storage.Reminder, error) {
	existing, err := e.store.DeadlineReminder(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	if deadline == nil {
		if existing != nil {
			if err := e.store.DeleteReminder(ctx, existing.ID); err != nil {
				return nil, err
			}
		}
		return nil, nil
	}

	title := fmt.Sprintf("Deadline: %s at %s", position, company)
	if existing == nil {
		return e.store.CreateReminder(ctx, &storage.Reminder{
			ApplicationID: &applicationID,
			Title:         title,
			Description:   "Application deadline",
			DueDate:       *deadline,
			Type:          storage.ReminderTypeDeadline,
		})
	}

	fields := map[string]any{"title": title}
	if !existing.DueDate.Equal(deadline.Time) {
		fields["due_date"] = *deadline
		fields["status"] = string(storage.ReminderPending)
	}
	return e.store.UpdateReminder(ctx, existing.ID, fields)
}

// Contacts

func (e *Engine) ListContacts(ctx context.Context, applicationID int64) ([]storage.ContactPerson, error) {
	if _, err := e.application(ctx, "list contacts", applicationID); err != nil {
		return nil, err
	}
	return e.store.ListContacts(ctx, applicationID)
}

func (e *Engine) AddContact(ctx context.Context, applicationID int64, c storage.ContactPerson) (*storage.ContactPerson, error) {
	const op = "add contact"
	if _, err := e.application(ctx, op, applicationID); err != nil {
		return nil, err
	}
	c.Name = strings.TrimSpace(c.Name)
	if c.Name == "" {
		return nil, apperr.E(apperr.Invalid, op, "name is required")
	}
	c.ID = 0
	c.ApplicationID = applicationID
	return e.store.AddContact(ctx, &c)
}

func (e *Engine) UpdateContact(ctx context.Context, applicationID, contactID int64, patch Patch) (*storage.ContactPerson, error) {
	const op = "update contact"
	fields := make(map[string]any, len(patch))
	for key, raw := range patch {
		var (
			s   string
			err error
		)
		switch key {
		case "id", "application_id", "created_at":
			continue
		case "name":
			s, err = patchRequired(key, raw)
		case "email", "phone", "position":
			s, err = patchString(key, raw)
		default:
			return nil, apperr.E(apperr.Invalid, op, fmt.Sprintf("unknown field %q", key))
		}
		if err != nil {
			return nil, apperr.Wrap(apperr.Invalid, op, err.Error(), err)
		}
		fields[key] = strings.TrimSpace(s)
	}
	c, err := e.store.UpdateContact(ctx, applicationID, contactID, fields)
	if err != nil {
		return nil, notFound(op, "contact", err)
	}
	return c, nil
}

func (e *Engine) DeleteContact(ctx context.Context, applicationID, contactID int64) error {
	if err := e.store.DeleteContact(ctx, applicationID, contactID); err != nil {
		return notFound("delete contact", "contact", err)
	}
	return nil
}

// Résumé and profile

// GetResume returns the résumé, or an empty one if none has been saved.
func (e *Engine) GetResume(ctx context.Context) (*storage.Resume, error) {
	r, err := e.store.GetResume(ctx)
	if err != nil || r != nil {
		return r, err
	}
	return &storage.Resume{}, nil
}

func (e *Engine) SaveResume(ctx context.Context, content string) (*storage.Resume, error) {
	return e.store.SaveResume(ctx, content)
}

// GetUserProfile returns the profile, or an empty one if none has been saved.
func (e *Engine) GetUserProfile(ctx context.Context) (*storage.UserProfile, error) {
	p, err := e.store.GetUserProfile(ctx)
	if err != nil || p != nil {
		return p, err
	}
	return &storage.UserProfile{}, nil
}

func (e *Engine) SaveUserProfile(ctx context.Context, p storage.UserProfile) (*storage.UserProfile, error) {
	return e.store.SaveUserProfile(ctx, p)
}
