package dossier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/matthewjhunter/dossier/internal/ai"
	"github.com/matthewjhunter/dossier/internal/apperr"
	"github.com/matthewjhunter/dossier/internal/extract"
	"github.com/matthewjhunter/dossier/internal/jobfeed"
	"github.com/matthewjhunter/dossier/internal/storage"
	"github.com/matthewjhunter/dossier/internal/webpage"
)

// sampleCount is how many cover letter samples generation draws on.
const sampleCount = 3

// jobText returns the posting text for a request that names either an
// application or the text itself, plus the application when named.
func (e *Engine) jobText(ctx context.Context, op string, appID *int64, text string) (string, *storage.Application, error) {
	var app *storage.Application
	if appID != nil {
		a, err := e.application(ctx, op, *appID)
		if err != nil {
			return "", nil, err
		}
		app = a
		if strings.TrimSpace(text) == "" {
			text = a.JobDescription
		}
	}
	if strings.TrimSpace(text) == "" {
		return "", nil, apperr.E(apperr.Invalid, op, "job text is required")
	}
	return text, app, nil
}

// Extract pulls structured data out of a posting. When an application is
// named the extraction is stored on it and fills an empty company, position
// or deadline.
func (e *Engine) Extract(ctx context.Context, req ExtractRequest) (*ExtractResult, error) {
	const op = "extract"
	text, app, err := e.jobText(ctx, op, req.ApplicationID, req.JobText)
	if err != nil {
		return nil, err
	}
	ex, err := e.ai.Extract(ctx, text)
	if err != nil {
		return nil, err
	}
	res := &ExtractResult{Extraction: ex}
	if app == nil {
		return res, nil
	}

	encoded, err := json.Marshal(ex)
	if err != nil {
		return nil, err
	}
	fields := map[string]any{"extraction_json": string(encoded)}
	if strings.TrimSpace(app.JobDescription) == "" {
		fields["job_description"] = text
	}
	if isPlaceholder(app.Company) && ex.Company != "" {
		fields["company"] = ex.Company
	}
	if isPlaceholder(app.Position) && ex.Position != "" {
		fields["position"] = ex.Position
	}
	if app.Deadline == nil && ex.Deadline != "" {
		if d, err := storage.ParseDate(ex.Deadline); err == nil {
			fields["deadline"] = &d
		}
	}
	res.Application, err = e.store.UpdateApplication(ctx, app.ID, fields)
	if err != nil {
		return nil, err
	}
	// The reminder title names the company and position.
	_, newCompany := fields["company"]
	_, newPosition := fields["position"]
	_, newDeadline := fields["deadline"]
	if updated := res.Application; updated.Deadline != nil && (newCompany || newPosition || newDeadline) {
		if _, err := e.SyncDeadlineReminder(ctx, app.ID, updated.Deadline, updated.Company, updated.Position); err != nil {
			e.log.WithError(err).WithField("application_id", app.ID).Warn("failed to sync deadline reminder")
		}
	}
	return res, nil
}

// isPlaceholder reports whether a required field still holds a stand-in
// value from quick entry.
func isPlaceholder(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "unknown", "tbd", "?", "-":
		return true
	}
	return false
}

// Match scores the résumé and profile against a posting. With an
// application the result is stored on it.
func (e *Engine) Match(ctx context.Context, req MatchRequest) (*ai.MatchResult, error) {
	const op = "match"
	text, app, err := e.jobText(ctx, op, req.ApplicationID, req.JobText)
	if err != nil {
		return nil, err
	}
	resume, err := e.GetResume(ctx)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(resume.Content) == "" {
		return nil, apperr.E(apperr.Invalid, op, "save a résumé before matching")
	}
	profile, err := e.store.GetUserProfile(ctx)
	if err != nil {
		return nil, err
	}

	mr, err := e.ai.Match(ctx, ai.MatchInput{Resume: resume.Content, Profile: profile, JobText: text})
	if err != nil {
		return nil, err
	}
	if app != nil {
		encoded, err := json.Marshal(mr)
		if err != nil {
			return nil, err
		}
		if _, err := e.store.UpdateApplication(ctx, app.ID, map[string]any{"match_result": string(encoded)}); err != nil {
			return nil, err
		}
	}
	return mr, nil
}

// Generate streams a cover letter draft for an application to fn. When the
// stream completes the full text becomes a new version with source
// "generated".
func (e *Engine) Generate(ctx context.Context, applicationID int64, fn func(string) error) (*storage.CoverLetterVersion, error) {
	const op = "generate"
	app, err := e.application(ctx, op, applicationID)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(app.JobDescription) == "" {
		return nil, apperr.E(apperr.Invalid, op, "the application has no job description")
	}
	resume, err := e.GetResume(ctx)
	if err != nil {
		return nil, err
	}
	profile, err := e.store.GetUserProfile(ctx)
	if err != nil {
		return nil, err
	}
	contacts, err := e.store.ListContacts(ctx, applicationID)
	if err != nil {
		return nil, err
	}

	in := ai.LetterInput{
		Company:     app.Company,
		Position:    app.Position,
		JobText:     app.JobDescription,
		Resume:      resume.Content,
		Profile:     profile,
		CompanyInfo: app.CompanyWebsiteContent,
	}
	if len(contacts) > 0 {
		in.ContactName = contacts[0].Name
	}
	if app.MatchResult != "" {
		var mr ai.MatchResult
		if json.Unmarshal([]byte(app.MatchResult), &mr) == nil {
			in.MatchSummary = mr.Summary
		}
	}
	if answers, err := decodeAnswers(app.MotivationAnswers); err == nil {
		var b strings.Builder
		for _, a := range answers {
			if strings.TrimSpace(a.Answer) != "" {
				fmt.Fprintf(&b, "Q: %s\nA: %s\n", a.Question, a.Answer)
			}
		}
		in.MotivationAnswers = b.String()
	}
	if tone, ok, err := e.store.GetSetting(ctx, ai.SettingToneProfile); err == nil && ok {
		in.ToneProfile = tone
	}
	samples, err := e.store.ListSamples(ctx)
	if err != nil {
		return nil, err
	}
	ranked, err := ai.RankSamples(ctx, e.embedder, app.JobDescription, samples, sampleCount)
	if err != nil {
		e.log.WithError(err).Warn("failed to rank samples by similarity; using newest")
	}
	for _, s := range ranked {
		in.Samples = append(in.Samples, s.Content)
	}

	c, err := e.ai.Generate(ctx, in, fn)
	if err != nil {
		return nil, err
	}
	text := strings.TrimSpace(c.Text)
	if text == "" {
		return nil, apperr.E(apperr.Internal, op, "the model returned an empty letter")
	}
	return e.store.AddVersion(ctx, applicationID, text, storage.SourceGenerated, nil)
}

// Chat streams an assistant reply about a letter. The letter defaults to the
// application's current cover letter.
func (e *Engine) Chat(ctx context.Context, req ChatRequest, fn func(string) error) (*ai.Completion, error) {
	const op = "chat"
	app, err := e.application(ctx, op, req.ApplicationID)
	if err != nil {
		return nil, err
	}
	if len(req.Messages) == 0 {
		return nil, apperr.E(apperr.Invalid, op, "messages are required")
	}
	for _, m := range req.Messages {
		if m.Role != ai.RoleUser && m.Role != ai.RoleAssistant {
			return nil, apperr.E(apperr.Invalid, op, fmt.Sprintf("unknown message role %q", m.Role))
		}
	}
	letter := req.Letter
	if strings.TrimSpace(letter) == "" {
		letter = app.CoverLetter
	}
	return e.ai.Chat(ctx, ai.ChatInput{
		Company:  app.Company,
		Position: app.Position,
		Letter:   letter,
		JobText:  app.JobDescription,
		Messages: req.Messages,
	}, fn)
}

func decodeAnswers(s string) ([]MotivationAnswer, error) {
	if strings.TrimSpace(s) == "" {
		return []MotivationAnswer{}, nil
	}
	var answers []MotivationAnswer
	if err := json.Unmarshal([]byte(s), &answers); err != nil {
		return nil, err
	}
	return answers, nil
}

// MotivationAnswers returns the stored questions and answers.
func (e *Engine) MotivationAnswers(ctx context.Context, applicationID int64) ([]MotivationAnswer, error) {
	const op = "motivation answers"
	app, err := e.application(ctx, op, applicationID)
	if err != nil {
		return nil, err
	}
	answers, err := decodeAnswers(app.MotivationAnswers)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, op, "stored answers are unreadable", err)
	}
	return answers, nil
}

// GenerateMotivationQuestions asks the model for questions whose answers
// personalize the letter. Nothing is stored until answers are saved.
func (e *Engine) GenerateMotivationQuestions(ctx context.Context, applicationID int64) ([]MotivationAnswer, error) {
	const op = "motivation questions"
	app, err := e.application(ctx, op, applicationID)
	if err != nil {
		return nil, err
	}
	profile, err := e.store.GetUserProfile(ctx)
	if err != nil {
		return nil, err
	}
	questions, err := e.ai.MotivationQuestions(ctx, app.Company, app.Position, app.JobDescription, profile)
	if err != nil {
		return nil, err
	}
	out := make([]MotivationAnswer, 0, len(questions))
	for _, q := range questions {
		out = append(out, MotivationAnswer{Question: q})
	}
	return out, nil
}

// SaveMotivationAnswers replaces the stored answers.
func (e *Engine) SaveMotivationAnswers(ctx context.Context, applicationID int64, answers []MotivationAnswer) ([]MotivationAnswer, error) {
	const op = "save motivation answers"
	for _, a := range answers {
		if strings.TrimSpace(a.Question) == "" {
			return nil, apperr.E(apperr.Invalid, op, "every answer needs its question")
		}
	}
	if answers == nil {
		answers = []MotivationAnswer{}
	}
	encoded, err := json.Marshal(answers)
	if err != nil {
		return nil, err
	}
	if _, err := e.store.UpdateApplication(ctx, applicationID, map[string]any{"motivation_answers": string(encoded)}); err != nil {
		return nil, notFound(op, "application", err)
	}
	return answers, nil
}

// CaptureCompanyWebsite fetches a page, reduces it to text and stores both
// the URL and the text on the application.
func (e *Engine) CaptureCompanyWebsite(ctx context.Context, applicationID int64, rawURL string) (*webpage.Page, error) {
	const op = "company website"
	if _, err := e.application(ctx, op, applicationID); err != nil {
		return nil, err
	}
	page, err := e.pages.Fetch(ctx, rawURL)
	if err != nil {
		if errors.Is(err, webpage.ErrInvalidURL) {
			return nil, apperr.Wrap(apperr.Invalid, op, err.Error(), err)
		}
		return nil, apperr.Wrap(apperr.Unavailable, op, "failed to fetch the page", err)
	}
	_, err = e.store.UpdateApplication(ctx, applicationID, map[string]any{
		"company_website":         page.URL,
		"company_website_content": page.Content,
	})
	if err != nil {
		return nil, err
	}
	return page, nil
}

// PreviewJobFeed parses a job-board feed into postings that can prefill
// applications.
func (e *Engine) PreviewJobFeed(ctx context.Context, url string, limit int) (*jobfeed.Preview, error) {
	const op = "job feed preview"
	if strings.TrimSpace(url) == "" {
		return nil, apperr.E(apperr.Invalid, op, "url is required")
	}
	normalized, err := webpage.NormalizeURL(url)
	if err != nil {
		return nil, apperr.Wrap(apperr.Invalid, op, err.Error(), err)
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	preview, err := e.feeds.Fetch(ctx, normalized, limit)
	if err != nil {
		return nil, apperr.Wrap(apperr.Unavailable, op, "failed to read the feed", err)
	}
	return preview, nil
}

// Cover letter samples

func (e *Engine) ListSamples(ctx context.Context) ([]storage.CoverLetterSample, error) {
	return e.store.ListSamples(ctx)
}

// AddSample stores a historical cover letter, with an embedding when an
// embedder is available. Embedding failures are logged and the sample is
// stored without one.
func (e *Engine) AddSample(ctx context.Context, title, content string) (*storage.CoverLetterSample, error) {
	const op = "add sample"
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apperr.E(apperr.Invalid, op, "content is required")
	}
	title = strings.TrimSpace(title)
	if title == "" {
		title = firstLine(content, 80)
	}
	sample := &storage.CoverLetterSample{Title: title, Content: content}
	if e.embedder != nil {
		vec, err := ai.EmbedSample(ctx, e.embedder, content)
		if err != nil {
			e.log.WithError(err).Warn("failed to embed sample")
		} else {
			sample.Embedding = vec
			sample.EmbeddingModel = e.embedder.Model()
		}
	}
	return e.store.AddSample(ctx, sample)
}

// AddSampleFile extracts the text of an uploaded letter and stores it as a
// sample titled after the file.
func (e *Engine) AddSampleFile(ctx context.Context, up Upload) (*storage.CoverLetterSample, error) {
	const op = "add sample"
	if err := extract.Validate(up.Filename, up.ContentType, int64(len(up.Data)), e.MaxUploadBytes()); err != nil {
		return nil, apperr.Wrap(apperr.Invalid, op, err.Error(), err)
	}
	text, err := extract.Text(up.Filename, up.Data)
	if err != nil {
		return nil, apperr.Wrap(apperr.Invalid, op, "could not read text from the file", err)
	}
	title := strings.TrimSuffix(up.Filename, fileExt(up.Filename))
	return e.AddSample(ctx, title, text)
}

func (e *Engine) DeleteSample(ctx context.Context, id int64) error {
	if err := e.store.DeleteSample(ctx, id); err != nil {
		return notFound("delete sample", "sample", err)
	}
	return nil
}

// AnalyzeTone describes the style shared by the stored samples and saves it
// as the tone profile used by generation.
func (e *Engine) AnalyzeTone(ctx context.Context) (*ToneResult, error) {
	const op = "analyze tone"
	samples, err := e.store.ListSamples(ctx)
	if err != nil {
		return nil, err
	}
	if len(samples) == 0 {
		return nil, apperr.E(apperr.Invalid, op, "upload at least one cover letter sample first")
	}
	texts := make([]string, 0, len(samples))
	for _, s := range samples {
		texts = append(texts, s.Content)
	}
	c, err := e.ai.AnalyzeTone(ctx, texts)
	if err != nil {
		return nil, err
	}
	if err := e.store.SetSetting(ctx, ai.SettingToneProfile, c.Text, "style"); err != nil {
		return nil, err
	}
	return &ToneResult{Profile: c.Text, Samples: len(samples), Provider: c.Provider, Model: c.Model}, nil
}

func firstLine(s string, max int) string {
	line, _, _ := strings.Cut(strings.TrimSpace(s), "\n")
	r := []rune(strings.TrimSpace(line))
	if len(r) > max {
		return string(r[:max])
	}
	return string(r)
}

func fileExt(name string) string {
	if i := strings.LastIndexByte(name, '.'); i > 0 {
		return name[i:]
	}
	return ""
}
