package dossier

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/matthewjhunter/dossier/internal/apperr"
	"github.com/matthewjhunter/dossier/internal/recurrence"
	"github.com/matthewjhunter/dossier/internal/storage"
)

// ReminderQuery filters ListReminders. DueWithinDays, when set, limits the
// result to reminders due on or before today plus that many days.
type ReminderQuery struct {
	Status        string
	ApplicationID *int64
	Type          string
	DueWithinDays *int
}

func (e *Engine) ListReminders(ctx context.Context, q ReminderQuery) ([]storage.Reminder, error) {
	const op = "list reminders"
	f := storage.ReminderFilter{
		Status:        storage.ReminderStatus(q.Status),
		ApplicationID: q.ApplicationID,
		Type:          q.Type,
	}
	if f.Status != "" && f.Status != storage.ReminderPending && f.Status != storage.ReminderCompleted {
		return nil, apperr.E(apperr.Invalid, op, fmt.Sprintf("unknown status %q", q.Status))
	}
	if q.DueWithinDays != nil {
		if *q.DueWithinDays < 0 {
			return nil, apperr.E(apperr.Invalid, op, "days must not be negative")
		}
		until := storage.DateOf(e.today().AddDate(0, 0, *q.DueWithinDays))
		f.DueOnOrBefore = &until
	}
	return e.store.ListReminders(ctx, f)
}

// DueReminders returns pending reminders due within days from today,
// including overdue ones.
func (e *Engine) DueReminders(ctx context.Context, days int) ([]storage.Reminder, error) {
	return e.ListReminders(ctx, ReminderQuery{Status: string(storage.ReminderPending), DueWithinDays: &days})
}

func validRecurrence(op string, rec *storage.Recurrence) error {
	if rec == nil || rec.Pattern == "" {
		return nil
	}
	if _, err := recurrence.ParsePattern(rec.Pattern); err != nil {
		return apperr.Wrap(apperr.Invalid, op, err.Error(), err)
	}
	if rec.Interval < 0 {
		return apperr.E(apperr.Invalid, op, "recurrence interval must be positive")
	}
	return nil
}

// CreateReminder stores a pending reminder. The deadline type is reserved
// for reminders that mirror an application's deadline.
func (e *Engine) CreateReminder(ctx context.Context, in NewReminder) (*storage.Reminder, error) {
	const op = "create reminder"
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return nil, apperr.E(apperr.Invalid, op, "title is required")
	}
	if in.DueDate == nil {
		return nil, apperr.E(apperr.Invalid, op, "due_date is required")
	}
	if in.Type == storage.ReminderTypeDeadline {
		return nil, apperr.E(apperr.Invalid, op, "deadline reminders follow the application deadline")
	}
	if err := validRecurrence(op, in.Recurrence); err != nil {
		return nil, err
	}
	if in.ApplicationID != nil {
		if _, err := e.application(ctx, op, *in.ApplicationID); err != nil {
			return nil, err
		}
	}
	rec := in.Recurrence
	if rec != nil && rec.Pattern == "" {
		rec = nil
	}
	return e.store.CreateReminder(ctx, &storage.Reminder{
		ApplicationID: in.ApplicationID,
		Title:         in.Title,
		Description:   in.Description,
		DueDate:       *in.DueDate,
		Type:          strings.TrimSpace(in.Type),
		Recurrence:    rec,
	})
}

// UpdateReminder applies a partial update. A "recurrence" object replaces
// the whole rule; null removes it.
func (e *Engine) UpdateReminder(ctx context.Context, id int64, patch Patch) (*storage.Reminder, error) {
	const op = "update reminder"
	current, err := e.store.GetReminder(ctx, id)
	if err != nil {
		return nil, notFound(op, "reminder", err)
	}
	invalid := func(err error) error { return apperr.Wrap(apperr.Invalid, op, err.Error(), err) }

	fields := map[string]any{}
	for key, raw := range patch {
		switch key {
		case "id", "created_at", "updated_at", "completed_at", "next_occurrence":
		case "title":
			s, err := patchRequired(key, raw)
			if err != nil {
				return nil, invalid(err)
			}
			fields[key] = s
		case "description":
			s, err := patchString(key, raw)
			if err != nil {
				return nil, invalid(err)
			}
			fields[key] = s
		case "type":
			s, err := patchString(key, raw)
			if err != nil {
				return nil, invalid(err)
			}
			s = strings.TrimSpace(s)
			if (s == storage.ReminderTypeDeadline) != (current.Type == storage.ReminderTypeDeadline) {
				return nil, apperr.E(apperr.Invalid, op, "the deadline type cannot be set or removed")
			}
			if s == "" {
				s = "custom"
			}
			fields[key] = s
		case "due_date":
			d, err := patchDate(key, raw)
			if err != nil {
				return nil, invalid(err)
			}
			if d == nil {
				return nil, apperr.E(apperr.Invalid, op, "due_date may not be cleared")
			}
			fields[key] = *d
		case "status":
			s, err := patchRequired(key, raw)
			if err != nil {
				return nil, invalid(err)
			}
			switch storage.ReminderStatus(s) {
			case storage.ReminderPending:
				fields[key] = s
			case storage.ReminderCompleted:
				return nil, apperr.E(apperr.Invalid, op, "complete reminders with POST /reminders/{id}/complete")
			default:
				return nil, apperr.E(apperr.Invalid, op, fmt.Sprintf("unknown status %q", s))
			}
		case "application_id":
			appID, err := patchID(key, raw)
			if err != nil {
				return nil, invalid(err)
			}
			if appID != nil {
				if _, err := e.application(ctx, op, *appID); err != nil {
					return nil, err
				}
				fields[key] = *appID
			} else {
				fields[key] = nil
			}
		case "recurrence":
			if isNull(raw) {
				fields["recurrence_pattern"] = nil
				fields["recurrence_interval"] = 1
				fields["recurrence_end_date"] = nil
				continue
			}
			var rec storage.Recurrence
			if err := json.Unmarshal(raw, &rec); err != nil {
				return nil, invalid(fmt.Errorf("recurrence: %w", err))
			}
			if rec.Pattern == "" {
				return nil, apperr.E(apperr.Invalid, op, "recurrence.pattern is required")
			}
			if err := validRecurrence(op, &rec); err != nil {
				return nil, err
			}
			fields["recurrence_pattern"] = rec.Pattern
			fields["recurrence_interval"] = max(rec.Interval, 1)
			fields["recurrence_end_date"] = rec.EndDate
		default:
			return nil, apperr.E(apperr.Invalid, op, fmt.Sprintf("unknown field %q", key))
		}
	}

	r, err := e.store.UpdateReminder(ctx, id, fields)
	if err != nil {
		return nil, notFound(op, "reminder", err)
	}
	return r, nil
}

func (e *Engine) DeleteReminder(ctx context.Context, id int64) error {
	if err := e.store.DeleteReminder(ctx, id); err != nil {
		return notFound("delete reminder", "reminder", err)
	}
	return nil
}

// CompleteReminder marks a reminder completed. For a recurring reminder the
// next occurrence is recorded on it, and a pending successor with the same
// rule is created unless that occurrence falls after the end date.
func (e *Engine) CompleteReminder(ctx context.Context, id int64) (*ReminderCompletion, error) {
	const op = "complete reminder"
	r, err := e.store.GetReminder(ctx, id)
	if err != nil {
		return nil, notFound(op, "reminder", err)
	}
	if r.Status == storage.ReminderCompleted {
		return nil, apperr.E(apperr.Conflict, op, "reminder is already completed")
	}

	var next *storage.Date
	spawn := false
	if r.Recurrence != nil {
		pattern, err := recurrence.ParsePattern(r.Recurrence.Pattern)
		if err != nil {
			return nil, apperr.Wrap(apperr.Internal, op, "stored recurrence is invalid", err)
		}
		t, err := recurrence.NextOccurrence(r.DueDate.Time, pattern, r.Recurrence.Interval)
		if err != nil {
			return nil, err
		}
		var end *time.Time
		if r.Recurrence.EndDate != nil {
			end = &r.Recurrence.EndDate.Time
		}
		d := storage.DateOf(t)
		next = &d
		spawn = recurrence.ShouldContinue(t, end)
	}

	completed, successor, err := e.store.CompleteReminder(ctx, id, next, spawn)
	if err != nil {
		return nil, notFound(op, "reminder", err)
	}
	return &ReminderCompletion{Completed: completed, Next: successor}, nil
}
