package dossier

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/matthewjhunter/dossier/internal/apperr"
	"github.com/matthewjhunter/dossier/internal/storage"
)

func (e *Engine) ListVersions(ctx context.Context, applicationID int64) ([]storage.CoverLetterVersion, error) {
	if _, err := e.application(ctx, "list versions", applicationID); err != nil {
		return nil, err
	}
	return e.store.ListVersions(ctx, applicationID)
}

func (e *Engine) GetVersion(ctx context.Context, applicationID, versionID int64) (*storage.CoverLetterVersion, error) {
	v, err := e.store.GetVersion(ctx, applicationID, versionID)
	if err != nil {
		return nil, notFound("get version", "version", err)
	}
	return v, nil
}

// CreateVersion saves letter content as the next version and makes it the
// application's current cover letter. Clients may record manual, chat or
// generated content; the other sources are set by the engine.
func (e *Engine) CreateVersion(ctx context.Context, applicationID int64, content, source string) (*storage.CoverLetterVersion, error) {
	const op = "create version"
	if strings.TrimSpace(content) == "" {
		return nil, apperr.E(apperr.Invalid, op, "content is required")
	}
	switch source {
	case "":
		source = storage.SourceManual
	case storage.SourceManual, storage.SourceChat, storage.SourceGenerated:
	default:
		return nil, apperr.E(apperr.Invalid, op, fmt.Sprintf("source %q cannot be set by clients", source))
	}
	v, err := e.store.AddVersion(ctx, applicationID, content, source, nil)
	if err != nil {
		return nil, notFound(op, "application", err)
	}
	return v, nil
}

// RestoreVersion copies an earlier version forward as a new version with
// source "restored". History is never rewritten.
func (e *Engine) RestoreVersion(ctx context.Context, applicationID, versionID int64) (*storage.CoverLetterVersion, error) {
	const op = "restore version"
	old, err := e.GetVersion(ctx, applicationID, versionID)
	if err != nil {
		return nil, err
	}
	v, err := e.store.AddVersion(ctx, applicationID, old.Content, storage.SourceRestored, &old.ID)
	if err != nil {
		return nil, notFound(op, "application", err)
	}
	return v, nil
}

// currentVersion returns the latest version, creating version 1 from the
// application's cover letter when it has text but no history yet.
func (e *Engine) currentVersion(ctx context.Context, op string, app *storage.Application) (*storage.CoverLetterVersion, error) {
	v, err := e.store.LatestVersion(ctx, app.ID)
	if err == nil {
		return v, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}
	if strings.TrimSpace(app.CoverLetter) == "" {
		return nil, apperr.E(apperr.Invalid, op, "the application has no cover letter yet")
	}
	return e.store.AddVersion(ctx, app.ID, app.CoverLetter, storage.SourceManual, nil)
}

func (e *Engine) ListSuggestions(ctx context.Context, applicationID int64, status string) ([]storage.CoverLetterSuggestion, error) {
	const op = "list suggestions"
	st := storage.SuggestionStatus(status)
	if status != "" && !st.Valid() {
		return nil, apperr.E(apperr.Invalid, op, fmt.Sprintf("unknown status %q", status))
	}
	if _, err := e.application(ctx, op, applicationID); err != nil {
		return nil, err
	}
	return e.store.ListSuggestions(ctx, applicationID, st)
}

// AddSuggestion stores a client-authored suggestion against the latest
// version.
func (e *Engine) AddSuggestion(ctx context.Context, applicationID int64, sg storage.CoverLetterSuggestion) (*storage.CoverLetterSuggestion, error) {
	const op = "add suggestion"
	app, err := e.application(ctx, op, applicationID)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(sg.OriginalText) == "" || strings.TrimSpace(sg.SuggestedText) == "" {
		return nil, apperr.E(apperr.Invalid, op, "original_text and suggested_text are required")
	}
	v, err := e.currentVersion(ctx, op, app)
	if err != nil {
		return nil, err
	}
	if !strings.Contains(v.Content, sg.OriginalText) {
		return nil, apperr.E(apperr.Invalid, op, "original_text does not appear in the current letter")
	}
	return e.store.AddSuggestion(ctx, &storage.CoverLetterSuggestion{
		ApplicationID: applicationID,
		VersionID:     v.ID,
		OriginalText:  sg.OriginalText,
		SuggestedText: sg.SuggestedText,
		Reason:        sg.Reason,
	})
}

// GenerateSuggestions asks the model for passage replacements to the latest
// version and stores them as pending.
func (e *Engine) GenerateSuggestions(ctx context.Context, applicationID int64) ([]storage.CoverLetterSuggestion, error) {
	const op = "generate suggestions"
	app, err := e.application(ctx, op, applicationID)
	if err != nil {
		return nil, err
	}
	v, err := e.currentVersion(ctx, op, app)
	if err != nil {
		return nil, err
	}
	suggestions, err := e.ai.SuggestEdits(ctx, v.Content, app.JobDescription)
	if err != nil {
		return nil, err
	}
	out := make([]storage.CoverLetterSuggestion, 0, len(suggestions))
	for _, s := range suggestions {
		stored, err := e.store.AddSuggestion(ctx, &storage.CoverLetterSuggestion{
			ApplicationID: applicationID,
			VersionID:     v.ID,
			OriginalText:  s.OriginalText,
			SuggestedText: s.SuggestedText,
			Reason:        s.Reason,
		})
		if err != nil {
			return nil, err
		}
		out = append(out, *stored)
	}
	return out, nil
}

// ReviewSuggestion accepts or rejects a pending suggestion. Accepting
// replaces the first occurrence of the original text in the latest version
// and saves the result as a new version with source "suggestion"; it fails
// with a conflict when the latest version no longer contains that text.
func (e *Engine) ReviewSuggestion(ctx context.Context, applicationID, suggestionID int64, status string) (*SuggestionReview, error) {
	const op = "review suggestion"
	st := storage.SuggestionStatus(status)
	if st != storage.SuggestionAccepted && st != storage.SuggestionRejected {
		return nil, apperr.E(apperr.Invalid, op, "status must be accepted or rejected")
	}
	sg, err := e.store.GetSuggestion(ctx, applicationID, suggestionID)
	if err != nil {
		return nil, notFound(op, "suggestion", err)
	}
	if sg.Status != storage.SuggestionPending {
		return nil, apperr.E(apperr.Conflict, op, fmt.Sprintf("suggestion is already %s", sg.Status))
	}

	review := &SuggestionReview{}
	if st == storage.SuggestionAccepted {
		latest, err := e.store.LatestVersion(ctx, applicationID)
		if err != nil {
			return nil, notFound(op, "version", err)
		}
		if !strings.Contains(latest.Content, sg.OriginalText) {
			return nil, apperr.E(apperr.Conflict, op, "the letter has changed and no longer contains the original text")
		}
		content := strings.Replace(latest.Content, sg.OriginalText, sg.SuggestedText, 1)
		review.Version, err = e.store.AddVersion(ctx, applicationID, content, storage.SourceSuggestion, nil)
		if err != nil {
			return nil, err
		}
	}

	if err := e.store.SetSuggestionStatus(ctx, applicationID, suggestionID, st); err != nil {
		return nil, notFound(op, "suggestion", err)
	}
	review.Suggestion, err = e.store.GetSuggestion(ctx, applicationID, suggestionID)
	if err != nil {
		return nil, err
	}
	return review, nil
}
