package dossier

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/matthewjhunter/dossier/internal/ai"
	"github.com/matthewjhunter/dossier/internal/apperr"
	"github.com/matthewjhunter/dossier/internal/blob"
	"github.com/matthewjhunter/dossier/internal/config"
	"github.com/matthewjhunter/dossier/internal/storage"
)

// scriptedProvider returns a fixed completion and streams fixed chunks.
type scriptedProvider struct {
	completion string
	chunks     []string
	requests   []ai.Request
}

func (p *scriptedProvider) Name() string { return "scripted" }

func (p *scriptedProvider) Complete(_ context.Context, req ai.Request) (string, error) {
	p.requests = append(p.requests, req)
	return p.completion, nil
}

func (p *scriptedProvider) Stream(_ context.Context, req ai.Request, fn func(string) error) error {
	p.requests = append(p.requests, req)
	for _, c := range p.chunks {
		if err := fn(c); err != nil {
			return err
		}
	}
	return nil
}

var testNow = time.Date(2026, 10, 19, 9, 30, 0, 0, time.UTC)

func newTestEngine(t *testing.T, p *scriptedProvider) *Engine {
	t.Helper()
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Database.Path = filepath.Join(dir, "test.db")
	cfg.Storage.LocalDir = filepath.Join(dir, "files")
	cfg.Storage.SigningKey = "test-signing-key"
	cfg.Server.PublicURL = "http://localhost:8080"
	cfg.Prompts.Dir = filepath.Join(dir, "prompts")
	cfg.AI.Provider = "scripted"
	cfg.AI.Model = "primary"
	cfg.AI.FallbackModels = nil
	cfg.AI.EmbeddingModel = ""

	if p == nil {
		p = &scriptedProvider{}
	}
	engine, err := NewEngine(EngineConfig{
		Config:    cfg,
		Providers: map[string]ai.Provider{"scripted": p},
		Now:       func() time.Time { return testNow },
	})
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	t.Cleanup(func() { engine.Close() })
	return engine
}

func newTestApplication(t *testing.T, e *Engine, in NewApplication) *storage.Application {
	t.Helper()
	if in.Company == "" {
		in.Company = "Acme"
	}
	if in.Position == "" {
		in.Position = "Backend Engineer"
	}
	app, err := e.CreateApplication(context.Background(), in)
	if err != nil {
		t.Fatalf("CreateApplication: %v", err)
	}
	return app
}

func patchOf(t *testing.T, v map[string]any) Patch {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	var p Patch
	if err := json.Unmarshal(b, &p); err != nil {
		t.Fatal(err)
	}
	return p
}

func deadlineReminders(t *testing.T, e *Engine, appID int64) []storage.Reminder {
	t.Helper()
	rs, err := e.ListReminders(context.Background(), ReminderQuery{ApplicationID: &appID, Type: storage.ReminderTypeDeadline})
	if err != nil {
		t.Fatalf("ListReminders: %v", err)
	}
	return rs
}

func TestNewEngine(t *testing.T) {
	e := newTestEngine(t, nil)
	if e.store == nil || e.ai == nil || e.local == nil || e.sync == nil {
		t.Fatal("engine is missing a component")
	}
	if e.remote != nil {
		t.Error("no bucket configured, remote should be nil")
	}
	if err := e.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}

func TestCreateApplicationValidates(t *testing.T) {
	e := newTestEngine(t, nil)
	_, err := e.CreateApplication(context.Background(), NewApplication{Company: "Acme"})
	if apperr.CodeOf(err) != apperr.Invalid {
		t.Fatalf("missing position: got %v", err)
	}
	_, err = e.CreateApplication(context.Background(), NewApplication{Company: "Acme", Position: "Dev", Status: "hired"})
	if apperr.CodeOf(err) != apperr.Invalid {
		t.Fatalf("bad status: got %v", err)
	}
}

func TestDeadlineReminderFollowsApplication(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, nil)

	d := storage.NewDate(2026, 11, 1)
	app := newTestApplication(t, e, NewApplication{Deadline: &d})

	rs := deadlineReminders(t, e, app.ID)
	if len(rs) != 1 {
		t.Fatalf("expected 1 deadline reminder, got %d", len(rs))
	}
	if rs[0].DueDate.String() != "2026-11-01" {
		t.Errorf("due date: got %s", rs[0].DueDate)
	}
	if rs[0].Title != "Deadline: Backend Engineer at Acme" {
		t.Errorf("title: got %q", rs[0].Title)
	}

	if _, err := e.UpdateApplication(ctx, app.ID, patchOf(t, map[string]any{"deadline": "2026-11-15"})); err != nil {
		t.Fatalf("UpdateApplication: %v", err)
	}
	rs = deadlineReminders(t, e, app.ID)
	if len(rs) != 1 || rs[0].DueDate.String() != "2026-11-15" {
		t.Fatalf("after move: %+v", rs)
	}

	if _, err := e.UpdateApplication(ctx, app.ID, patchOf(t, map[string]any{"company": "Globex"})); err != nil {
		t.Fatalf("UpdateApplication: %v", err)
	}
	rs = deadlineReminders(t, e, app.ID)
	if len(rs) != 1 || !strings.HasSuffix(rs[0].Title, "at Globex") {
		t.Fatalf("after rename: %+v", rs)
	}

	if _, err := e.UpdateApplication(ctx, app.ID, patchOf(t, map[string]any{"deadline": nil})); err != nil {
		t.Fatalf("UpdateApplication: %v", err)
	}
	if rs := deadlineReminders(t, e, app.ID); len(rs) != 0 {
		t.Fatalf("expected no deadline reminder, got %d", len(rs))
	}
}

func TestUpdateApplicationStampsSentAt(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, nil)
	app := newTestApplication(t, e, NewApplication{})

	updated, err := e.UpdateApplication(ctx, app.ID, patchOf(t, map[string]any{"status": "sent", "id": 999}))
	if err != nil {
		t.Fatalf("UpdateApplication: %v", err)
	}
	if updated.SentAt == nil || !updated.SentAt.Equal(testNow) {
		t.Errorf("sent_at: got %v", updated.SentAt)
	}

	_, err = e.UpdateApplication(ctx, app.ID, patchOf(t, map[string]any{"salary": "lots"}))
	if apperr.CodeOf(err) != apperr.Invalid {
		t.Errorf("unknown field: got %v", err)
	}
	_, err = e.UpdateApplication(ctx, app.ID+100, patchOf(t, map[string]any{"notes": "x"}))
	if apperr.CodeOf(err) != apperr.NotFound {
		t.Errorf("missing application: got %v", err)
	}
}

func TestUnparsableUploadIsSearchable(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, nil)
	app := newTestApplication(t, e, NewApplication{})

	res, err := e.UploadDocument(ctx, app.ID, Upload{
		Filename:    "quarterly-report.pdf",
		ContentType: "application/pdf",
		Data:        []byte("this is not really a pdf"),
	})
	if err != nil {
		t.Fatalf("UploadDocument: %v", err)
	}
	if !res.Indexed || !res.IndexFallback {
		t.Errorf("expected filename-only indexing, got indexed=%v fallback=%v", res.Indexed, res.IndexFallback)
	}

	hits, err := e.SearchDocuments(ctx, "quarterly", 10)
	if err != nil {
		t.Fatalf("SearchDocuments: %v", err)
	}
	if len(hits) != 1 || hits[0].DocumentID != res.ID {
		t.Fatalf("expected the upload in results, got %+v", hits)
	}
}

func TestUploadRejectsUnsupportedType(t *testing.T) {
	e := newTestEngine(t, nil)
	app := newTestApplication(t, e, NewApplication{})
	_, err := e.UploadDocument(context.Background(), app.ID, Upload{Filename: "run.exe", Data: []byte("MZ")})
	if apperr.CodeOf(err) != apperr.Invalid {
		t.Fatalf("got %v", err)
	}
}

func TestJobPostingUploadFillsDescription(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, nil)
	app := newTestApplication(t, e, NewApplication{})

	res, err := e.UploadDocument(ctx, app.ID, Upload{
		Filename: "posting.txt",
		Kind:     storage.DocumentKindJobPosting,
		Data:     []byte("We need a Go engineer who enjoys SQLite."),
	})
	if err != nil {
		t.Fatalf("UploadDocument: %v", err)
	}
	got, err := e.GetApplication(ctx, app.ID)
	if err != nil {
		t.Fatalf("GetApplication: %v", err)
	}
	if got.JobDocumentID == nil || *got.JobDocumentID != res.ID {
		t.Errorf("job_document_id: got %v", got.JobDocumentID)
	}
	if got.JobDescription != "We need a Go engineer who enjoys SQLite." {
		t.Errorf("job_description: got %q", got.JobDescription)
	}

	del, err := e.DeleteDocument(ctx, app.ID, res.ID)
	if err != nil {
		t.Fatalf("DeleteDocument: %v", err)
	}
	if !del.FileRemoved || !del.IndexRemoved {
		t.Errorf("delete result: %+v", del)
	}
	got, _ = e.GetApplication(ctx, app.ID)
	if got.JobDocumentID != nil {
		t.Errorf("job_document_id should be cleared, got %d", *got.JobDocumentID)
	}
}

func TestDeleteApplicationRemovesFilesAndReminders(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, nil)
	d := storage.NewDate(2026, 12, 1)
	app := newTestApplication(t, e, NewApplication{Deadline: &d})
	if _, err := e.UploadDocument(ctx, app.ID, Upload{Filename: "cv.txt", Data: []byte("cv")}); err != nil {
		t.Fatalf("UploadDocument: %v", err)
	}

	res, err := e.DeleteApplication(ctx, app.ID)
	if err != nil {
		t.Fatalf("DeleteApplication: %v", err)
	}
	if res.FilesRemoved != 1 || res.RemindersRemoved != 1 {
		t.Errorf("result: %+v", res)
	}
	if _, err := e.GetApplication(ctx, app.ID); apperr.CodeOf(err) != apperr.NotFound {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestVersionCreateAndRestore(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, nil)
	app := newTestApplication(t, e, NewApplication{})

	v1, err := e.CreateVersion(ctx, app.ID, "First draft.", "")
	if err != nil {
		t.Fatalf("CreateVersion: %v", err)
	}
	if _, err := e.CreateVersion(ctx, app.ID, "Second draft.", storage.SourceChat); err != nil {
		t.Fatalf("CreateVersion: %v", err)
	}
	restored, err := e.RestoreVersion(ctx, app.ID, v1.ID)
	if err != nil {
		t.Fatalf("RestoreVersion: %v", err)
	}
	if restored.VersionNumber != 3 || restored.Source != storage.SourceRestored {
		t.Errorf("restored: %+v", restored)
	}
	if restored.RestoredFrom == nil || *restored.RestoredFrom != v1.ID {
		t.Errorf("restored_from: got %v", restored.RestoredFrom)
	}

	got, _ := e.GetApplication(ctx, app.ID)
	if got.CoverLetter != "First draft." {
		t.Errorf("cover_letter: got %q", got.CoverLetter)
	}
	versions, _ := e.ListVersions(ctx, app.ID)
	if len(versions) != 3 {
		t.Errorf("expected 3 versions, got %d", len(versions))
	}

	if _, err := e.CreateVersion(ctx, app.ID, "x", storage.SourceRestored); apperr.CodeOf(err) != apperr.Invalid {
		t.Errorf("client restored source: got %v", err)
	}
}

func TestReviewSuggestion(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, nil)
	app := newTestApplication(t, e, NewApplication{})
	if _, err := e.CreateVersion(ctx, app.ID, "I am very passionate about Go.", ""); err != nil {
		t.Fatal(err)
	}

	sg, err := e.AddSuggestion(ctx, app.ID, storage.CoverLetterSuggestion{
		OriginalText:  "very passionate about",
		SuggestedText: "experienced with",
	})
	if err != nil {
		t.Fatalf("AddSuggestion: %v", err)
	}
	review, err := e.ReviewSuggestion(ctx, app.ID, sg.ID, "accepted")
	if err != nil {
		t.Fatalf("ReviewSuggestion: %v", err)
	}
	if review.Version == nil || review.Version.Content != "I am experienced with Go." {
		t.Fatalf("accepted version: %+v", review.Version)
	}
	if review.Version.Source != storage.SourceSuggestion {
		t.Errorf("source: got %s", review.Version.Source)
	}

	_, err = e.ReviewSuggestion(ctx, app.ID, sg.ID, "rejected")
	if apperr.CodeOf(err) != apperr.Conflict {
		t.Errorf("second review: got %v", err)
	}
}

func TestCompleteRecurringReminder(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, nil)

	due := storage.NewDate(2026, 10, 1)
	r, err := e.CreateReminder(ctx, NewReminder{
		Title:      "Check job boards",
		DueDate:    &due,
		Recurrence: &storage.Recurrence{Pattern: "weekly", Interval: 1},
	})
	if err != nil {
		t.Fatalf("CreateReminder: %v", err)
	}

	res, err := e.CompleteReminder(ctx, r.ID)
	if err != nil {
		t.Fatalf("CompleteReminder: %v", err)
	}
	if res.Completed.Status != storage.ReminderCompleted {
		t.Errorf("status: got %s", res.Completed.Status)
	}
	if res.Completed.NextOccurrence == nil || res.Completed.NextOccurrence.String() != "2026-10-08" {
		t.Errorf("next_occurrence: got %v", res.Completed.NextOccurrence)
	}
	if res.Next == nil || res.Next.DueDate.String() != "2026-10-08" || res.Next.Status != storage.ReminderPending {
		t.Fatalf("successor: %+v", res.Next)
	}

	if _, err := e.CompleteReminder(ctx, r.ID); apperr.CodeOf(err) != apperr.Conflict {
		t.Errorf("second completion: got %v", err)
	}
}

func TestRecurringReminderStopsAtEndDate(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, nil)

	due := storage.NewDate(2026, 10, 1)
	end := storage.NewDate(2026, 10, 5)
	r, err := e.CreateReminder(ctx, NewReminder{
		Title:      "Follow up",
		DueDate:    &due,
		Recurrence: &storage.Recurrence{Pattern: "weekly", Interval: 1, EndDate: &end},
	})
	if err != nil {
		t.Fatalf("CreateReminder: %v", err)
	}
	res, err := e.CompleteReminder(ctx, r.ID)
	if err != nil {
		t.Fatalf("CompleteReminder: %v", err)
	}
	if res.Next != nil {
		t.Errorf("expected no successor past the end date, got %+v", res.Next)
	}
}

func TestCreateReminderRejectsDeadlineType(t *testing.T) {
	e := newTestEngine(t, nil)
	due := storage.NewDate(2026, 10, 1)
	_, err := e.CreateReminder(context.Background(), NewReminder{Title: "x", DueDate: &due, Type: storage.ReminderTypeDeadline})
	if apperr.CodeOf(err) != apperr.Invalid {
		t.Fatalf("got %v", err)
	}
}

func TestDueReminders(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, nil)
	for _, d := range []storage.Date{
		storage.NewDate(2026, 10, 10), // overdue
		storage.NewDate(2026, 10, 22),
		storage.NewDate(2026, 12, 1),
	} {
		if _, err := e.CreateReminder(ctx, NewReminder{Title: "r " + d.String(), DueDate: &d}); err != nil {
			t.Fatal(err)
		}
	}
	due, err := e.DueReminders(ctx, 7)
	if err != nil {
		t.Fatalf("DueReminders: %v", err)
	}
	if len(due) != 2 {
		t.Fatalf("expected 2 due, got %d", len(due))
	}
}

func TestPromptSyncIsIdempotent(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, nil)

	first, err := e.SyncPrompts(ctx)
	if err != nil {
		t.Fatalf("SyncPrompts: %v", err)
	}
	second, err := e.SyncPrompts(ctx)
	if err != nil {
		t.Fatalf("SyncPrompts: %v", err)
	}
	if len(first) != len(second) {
		t.Fatalf("slot counts differ: %d vs %d", len(first), len(second))
	}
	for _, r := range second {
		if r.Status != "unchanged" {
			t.Errorf("%s: second sync status %s", r.Name, r.Status)
		}
	}
}

func TestUpdatePromptUnknownSlot(t *testing.T) {
	e := newTestEngine(t, nil)
	_, err := e.UpdatePrompt(context.Background(), "nope", "text", "")
	if apperr.CodeOf(err) != apperr.NotFound {
		t.Fatalf("got %v", err)
	}
}

func TestSettingsMaskAndDelete(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, nil)

	settings, err := e.UpdateSettings(ctx, map[string]string{
		ai.SettingAPIKey: "sk-secret-1234",
		ai.SettingModel:  "gemini-2.5-flash",
	})
	if err != nil {
		t.Fatalf("UpdateSettings: %v", err)
	}
	byKey := map[string]storage.Setting{}
	for _, s := range settings {
		byKey[s.Key] = s
	}
	if byKey[ai.SettingAPIKey].Value != "****1234" {
		t.Errorf("api key not masked: %q", byKey[ai.SettingAPIKey].Value)
	}
	if byKey[ai.SettingModel].Category != "ai" {
		t.Errorf("category: got %q", byKey[ai.SettingModel].Category)
	}

	opts, err := e.AIOptions(ctx, "generate")
	if err != nil {
		t.Fatalf("AIOptions: %v", err)
	}
	if opts.Models[0] != "gemini-2.5-flash" {
		t.Errorf("setting should override config, got %v", opts.Models)
	}

	settings, err = e.UpdateSettings(ctx, map[string]string{ai.SettingModel: ""})
	if err != nil {
		t.Fatalf("UpdateSettings: %v", err)
	}
	if len(settings) != 1 {
		t.Errorf("expected model setting removed, got %+v", settings)
	}
}

func TestExtractFillsApplication(t *testing.T) {
	ctx := context.Background()
	p := &scriptedProvider{completion: `{"company":"Initech","position":"SRE","deadline":"2026-11-20","requirements":["Go"]}`}
	e := newTestEngine(t, p)
	app := newTestApplication(t, e, NewApplication{Company: "unknown", Position: "tbd", JobDescription: "Initech is hiring an SRE."})

	res, err := e.Extract(ctx, ExtractRequest{ApplicationID: &app.ID})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if res.Application == nil || res.Application.Company != "Initech" || res.Application.Position != "SRE" {
		t.Fatalf("application not filled: %+v", res.Application)
	}
	if res.Application.ExtractionJSON == "" {
		t.Error("extraction_json not stored")
	}
	if rs := deadlineReminders(t, e, app.ID); len(rs) != 1 {
		t.Errorf("expected a deadline reminder, got %d", len(rs))
	}
}

func TestExtractRenamesDeadlineReminder(t *testing.T) {
	ctx := context.Background()
	p := &scriptedProvider{completion: `{"company":"Initech","position":"SRE","deadline":"2026-12-01"}`}
	e := newTestEngine(t, p)
	d := storage.NewDate(2026, 11, 1)
	app := newTestApplication(t, e, NewApplication{Company: "TBD", Position: "SRE", Deadline: &d, JobDescription: "Initech is hiring."})
	if rs := deadlineReminders(t, e, app.ID); len(rs) != 1 || rs[0].Title != "Deadline: SRE at TBD" {
		t.Fatalf("before extract: %+v", rs)
	}

	res, err := e.Extract(ctx, ExtractRequest{ApplicationID: &app.ID})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if res.Application.Company != "Initech" {
		t.Fatalf("company: got %q", res.Application.Company)
	}
	rs := deadlineReminders(t, e, app.ID)
	if len(rs) != 1 {
		t.Fatalf("expected 1 deadline reminder, got %d", len(rs))
	}
	if rs[0].Title != "Deadline: SRE at Initech" {
		t.Errorf("title: got %q", rs[0].Title)
	}
	if rs[0].DueDate.String() != "2026-11-01" {
		t.Errorf("existing deadline should win, got %s", rs[0].DueDate)
	}
}

func TestExtractRequiresText(t *testing.T) {
	e := newTestEngine(t, nil)
	_, err := e.Extract(context.Background(), ExtractRequest{})
	if apperr.CodeOf(err) != apperr.Invalid {
		t.Fatalf("got %v", err)
	}
}

func TestMatchRequiresResume(t *testing.T) {
	e := newTestEngine(t, nil)
	_, err := e.Match(context.Background(), MatchRequest{JobText: "Go role"})
	if apperr.CodeOf(err) != apperr.Invalid {
		t.Fatalf("got %v", err)
	}
}

func TestGenerateStoresVersion(t *testing.T) {
	ctx := context.Background()
	p := &scriptedProvider{chunks: []string{"Dear hiring team,", "\n\nI build things."}}
	e := newTestEngine(t, p)
	app := newTestApplication(t, e, NewApplication{JobDescription: "Build things in Go."})
	if _, err := e.SaveResume(ctx, "Ten years of Go."); err != nil {
		t.Fatal(err)
	}

	var streamed strings.Builder
	v, err := e.Generate(ctx, app.ID, func(chunk string) error {
		streamed.WriteString(chunk)
		return nil
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if streamed.String() != "Dear hiring team,\n\nI build things." {
		t.Errorf("streamed: %q", streamed.String())
	}
	if v.Source != storage.SourceGenerated || v.Content != streamed.String() {
		t.Errorf("version: %+v", v)
	}
	if len(p.requests) != 1 || p.requests[0].Model != "primary" {
		t.Errorf("requests: %+v", p.requests)
	}
}

func TestMotivationAnswersRoundTrip(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, nil)
	app := newTestApplication(t, e, NewApplication{})

	got, err := e.MotivationAnswers(ctx, app.ID)
	if err != nil || len(got) != 0 {
		t.Fatalf("initial answers: %v %v", got, err)
	}
	in := []MotivationAnswer{{Question: "Why Acme?", Answer: "Their storage work."}}
	if _, err := e.SaveMotivationAnswers(ctx, app.ID, in); err != nil {
		t.Fatalf("SaveMotivationAnswers: %v", err)
	}
	got, err = e.MotivationAnswers(ctx, app.ID)
	if err != nil || len(got) != 1 || got[0].Answer != "Their storage work." {
		t.Fatalf("answers: %v %v", got, err)
	}
}

func TestAnalyzeToneStoresProfile(t *testing.T) {
	ctx := context.Background()
	p := &scriptedProvider{completion: "  Direct and warm.  "}
	e := newTestEngine(t, p)

	if _, err := e.AnalyzeTone(ctx); apperr.CodeOf(err) != apperr.Invalid {
		t.Fatalf("no samples: got %v", err)
	}
	if _, err := e.AddSample(ctx, "", "Dear team,\nI write plainly."); err != nil {
		t.Fatalf("AddSample: %v", err)
	}
	res, err := e.AnalyzeTone(ctx)
	if err != nil {
		t.Fatalf("AnalyzeTone: %v", err)
	}
	if res.Profile != "Direct and warm." || res.Samples != 1 {
		t.Errorf("result: %+v", res)
	}
	v, ok, err := e.store.GetSetting(ctx, ai.SettingToneProfile)
	if err != nil || !ok || v != "Direct and warm." {
		t.Errorf("tone setting: %q %v %v", v, ok, err)
	}
}

func TestStatsAndBackup(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, nil)
	newTestApplication(t, e, NewApplication{})

	st, err := e.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if st.Tables["applications"] != 1 {
		t.Errorf("applications count: %d", st.Tables["applications"])
	}
	if st.Sync.Enabled {
		t.Error("sync should be disabled without a bucket")
	}

	b, err := e.Backup(ctx, t.TempDir(), false)
	if err != nil {
		t.Fatalf("Backup: %v", err)
	}
	if b.Size == 0 {
		t.Error("empty backup")
	}
	if _, err := e.Backup(ctx, t.TempDir(), true); apperr.CodeOf(err) != apperr.Unavailable {
		t.Errorf("upload without bucket: got %v", err)
	}
	if _, err := e.SyncNow(ctx); apperr.CodeOf(err) != apperr.Unavailable {
		t.Errorf("sync without bucket: got %v", err)
	}
}

func TestReindexRestoresMissingTable(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, nil)
	app := newTestApplication(t, e, NewApplication{})
	if _, err := e.UploadDocument(ctx, app.ID, Upload{Filename: "notes.txt", Data: []byte("kubernetes operator experience")}); err != nil {
		t.Fatal(err)
	}

	res, err := e.Reindex(ctx, true)
	if err != nil {
		t.Fatalf("Reindex: %v", err)
	}
	if !res.IndexCreated || res.Indexed != 1 || res.Fallback != 0 {
		t.Errorf("result: %+v", res)
	}
	hits, err := e.SearchDocuments(ctx, "kubernetes", 10)
	if err != nil || len(hits) != 1 {
		t.Fatalf("search after rebuild: %v %v", hits, err)
	}

	res, err = e.FixSearchIndex(ctx)
	if err != nil {
		t.Fatalf("FixSearchIndex: %v", err)
	}
	if res.IndexCreated || res.Scanned != 0 {
		t.Errorf("nothing to fix, got %+v", res)
	}
}

func TestDeleteWithoutSearchIndex(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, nil)
	app := newTestApplication(t, e, NewApplication{})
	if err := e.store.DropSearchIndex(ctx); err != nil {
		t.Fatal(err)
	}

	up, err := e.UploadDocument(ctx, app.ID, Upload{Filename: "cv.txt", Data: []byte("cv")})
	if err != nil {
		t.Fatalf("UploadDocument: %v", err)
	}
	if up.Indexed {
		t.Error("upload should not be indexed without the table")
	}
	other, err := e.UploadDocument(ctx, app.ID, Upload{Filename: "letter.txt", Data: []byte("letter")})
	if err != nil {
		t.Fatalf("UploadDocument: %v", err)
	}

	del, err := e.DeleteDocument(ctx, app.ID, up.ID)
	if err != nil {
		t.Fatalf("DeleteDocument: %v", err)
	}
	if !del.FileRemoved || del.IndexRemoved {
		t.Errorf("delete result: %+v", del)
	}
	if _, err := e.GetDocument(ctx, app.ID, up.ID); apperr.CodeOf(err) != apperr.NotFound {
		t.Errorf("document still present: %v", err)
	}

	// Cascaded document deletes must not touch the missing table either.
	res, err := e.DeleteApplication(ctx, app.ID)
	if err != nil {
		t.Fatalf("DeleteApplication: %v", err)
	}
	if res.FilesRemoved != 1 {
		t.Errorf("files removed: %d", res.FilesRemoved)
	}
	if _, err := e.GetDocument(ctx, app.ID, other.ID); apperr.CodeOf(err) != apperr.NotFound {
		t.Errorf("document survived application delete: %v", err)
	}
}

func TestDocumentLinkLocal(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, nil)
	app := newTestApplication(t, e, NewApplication{})
	up, err := e.UploadDocument(ctx, app.ID, Upload{Filename: "cv.txt", Data: []byte("cv")})
	if err != nil {
		t.Fatal(err)
	}
	link, err := e.DocumentLink(ctx, app.ID, up.ID, false)
	if err != nil {
		t.Fatalf("DocumentLink: %v", err)
	}
	if link.Remote || !strings.HasPrefix(link.URL, "http://localhost:8080/files/") {
		t.Errorf("link: %+v", link)
	}
	if !link.ExpiresAt.Equal(testNow.Add(15 * time.Minute)) {
		t.Errorf("expires_at: %v", link.ExpiresAt)
	}
}

func TestSyncRestoresDatabase(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	remote, err := blob.NewLocal(filepath.Join(dir, "bucket"), nil, "")
	if err != nil {
		t.Fatal(err)
	}
	cfg := config.DefaultConfig()
	cfg.Database.Path = filepath.Join(dir, "data", "dossier.db")
	cfg.Storage.LocalDir = filepath.Join(dir, "files")
	cfg.Prompts.Dir = filepath.Join(dir, "prompts")
	cfg.AI.EmbeddingModel = ""
	cfg.Sync.Enabled = true
	ec := EngineConfig{Config: cfg, Remote: remote, Now: func() time.Time { return testNow }}

	e, err := NewEngine(ec)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	app := newTestApplication(t, e, NewApplication{Company: "Synced"})
	if res := e.AfterWrite(ctx); res.Status != "uploaded" {
		t.Fatalf("AfterWrite: %+v", res)
	}
	if err := e.Close(); err != nil {
		t.Fatal(err)
	}

	// Cold start with no local file pulls the remote copy.
	if err := os.Remove(cfg.Database.Path); err != nil {
		t.Fatal(err)
	}
	e, err = NewEngine(ec)
	if err != nil {
		t.Fatalf("NewEngine after removal: %v", err)
	}
	got, err := e.GetApplication(ctx, app.ID)
	if err != nil {
		t.Fatalf("GetApplication after restore: %v", err)
	}
	if got.Company != "Synced" {
		t.Errorf("company = %q", got.Company)
	}
	e.Close()

	if err := os.Remove(cfg.Database.Path); err != nil {
		t.Fatal(err)
	}
	if err := DownloadDatabase(ctx, ec); err != nil {
		t.Fatalf("DownloadDatabase: %v", err)
	}
	if _, err := os.Stat(cfg.Database.Path); err != nil {
		t.Errorf("database not restored: %v", err)
	}
}

func TestDownloadDatabaseWithoutRemote(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Database.Path = filepath.Join(t.TempDir(), "dossier.db")
	err := DownloadDatabase(context.Background(), EngineConfig{Config: cfg})
	if !apperr.Is(err, apperr.Unavailable) {
		t.Errorf("err = %v, want unavailable", err)
	}
}
