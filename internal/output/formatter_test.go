package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/matthewjhunter/dossier"
	"github.com/matthewjhunter/dossier/internal/ai"
	"github.com/matthewjhunter/dossier/internal/dbsync"
	"github.com/matthewjhunter/dossier/internal/storage"
)

func TestOutputReindex_JSON(t *testing.T) {
	var out, errBuf bytes.Buffer
	f := NewFormatterWithWriters(FormatJSON, &out, &errBuf)

	res := &dossier.ReindexResult{Scanned: 4, Indexed: 3, Fallback: 1, Failed: 1}
	if err := f.OutputReindex(res); err != nil {
		t.Fatalf("OutputReindex failed: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(out.Bytes(), &decoded); err != nil {
		t.Fatalf("failed to decode JSON: %v", err)
	}
	for key, want := range map[string]float64{"scanned": 4, "indexed": 3, "fallback": 1, "failed": 1} {
		if decoded[key] != want {
			t.Errorf("%s = %v, want %v", key, decoded[key], want)
		}
	}
}

func TestOutputReindex_Text(t *testing.T) {
	var out, errBuf bytes.Buffer
	f := NewFormatterWithWriters(FormatText, &out, &errBuf)

	if err := f.OutputReindex(&dossier.ReindexResult{IndexCreated: true, Scanned: 2, Indexed: 2}); err != nil {
		t.Fatalf("OutputReindex failed: %v", err)
	}
	got := out.String()
	for _, want := range []string{"index_created=true", "scanned=2", "indexed=2", "failed=0"} {
		if !strings.Contains(got, want) {
			t.Errorf("missing %s in output: %s", want, got)
		}
	}
}

func TestOutputReindex_HumanNothingToDo(t *testing.T) {
	var out, errBuf bytes.Buffer
	f := NewFormatterWithWriters(FormatHuman, &out, &errBuf)

	if err := f.OutputReindex(&dossier.ReindexResult{}); err != nil {
		t.Fatalf("OutputReindex failed: %v", err)
	}
	if !strings.Contains(out.String(), "Every document is indexed") {
		t.Errorf("unexpected output: %s", out.String())
	}
}

func TestOutputApplications_Human(t *testing.T) {
	var out, errBuf bytes.Buffer
	f := NewFormatterWithWriters(FormatHuman, &out, &errBuf)

	deadline := storage.NewDate(2025, time.March, 1)
	apps := []storage.ApplicationSummary{
		{ID: 7, Company: "Acme", Position: "Engineer", Status: storage.StatusSent, Deadline: &deadline},
	}
	if err := f.OutputApplications(apps); err != nil {
		t.Fatalf("OutputApplications failed: %v", err)
	}
	got := out.String()
	if !strings.Contains(got, "Engineer, Acme") {
		t.Errorf("missing position/company: %s", got)
	}
	if !strings.Contains(got, "deadline 2025-03-01") {
		t.Errorf("missing deadline: %s", got)
	}
}

func TestOutputApplications_Empty(t *testing.T) {
	var out, errBuf bytes.Buffer
	f := NewFormatterWithWriters(FormatHuman, &out, &errBuf)

	if err := f.OutputApplications(nil); err != nil {
		t.Fatalf("OutputApplications failed: %v", err)
	}
	if !strings.Contains(out.String(), "No applications") {
		t.Errorf("unexpected output: %s", out.String())
	}
}

func TestOutputStats_Text(t *testing.T) {
	var out, errBuf bytes.Buffer
	f := NewFormatterWithWriters(FormatText, &out, &errBuf)

	stats := &dossier.DatabaseStats{
		DatabaseStats: storage.DatabaseStats{
			Tables:   map[string]int64{"reminders": 2, "applications": 5},
			FileSize: 4096,
		},
		Path: "/tmp/dossier.db",
		Sync: dbsync.State{Enabled: true, Backend: "gcs"},
	}
	if err := f.OutputStats(stats); err != nil {
		t.Fatalf("OutputStats failed: %v", err)
	}
	got := out.String()
	apps := strings.Index(got, "table=applications\trows=5")
	rem := strings.Index(got, "table=reminders\trows=2")
	if apps < 0 || rem < 0 {
		t.Fatalf("missing table rows: %s", got)
	}
	if apps > rem {
		t.Errorf("tables not sorted: %s", got)
	}
	if !strings.Contains(got, "sync_backend=gcs") {
		t.Errorf("missing sync backend: %s", got)
	}
}

func TestOutputStats_HumanMissingIndex(t *testing.T) {
	var out, errBuf bytes.Buffer
	f := NewFormatterWithWriters(FormatHuman, &out, &errBuf)

	stats := &dossier.DatabaseStats{Path: "x.db"}
	if err := f.OutputStats(stats); err != nil {
		t.Fatalf("OutputStats failed: %v", err)
	}
	got := out.String()
	if !strings.Contains(got, "Search index: missing") {
		t.Errorf("missing index warning: %s", got)
	}
	if !strings.Contains(got, "Sync: disabled") {
		t.Errorf("missing sync line: %s", got)
	}
}

func TestOutputSyncResult_Human(t *testing.T) {
	var out, errBuf bytes.Buffer
	f := NewFormatterWithWriters(FormatHuman, &out, &errBuf)

	f.OutputSyncResult("upload", dbsync.Result{Status: dbsync.StatusFailed, Error: "bucket gone"})
	if !strings.Contains(out.String(), "upload failed: bucket gone") {
		t.Errorf("unexpected output: %s", out.String())
	}
}

func TestOutputReminders_Text(t *testing.T) {
	var out, errBuf bytes.Buffer
	f := NewFormatterWithWriters(FormatText, &out, &errBuf)

	appID := int64(3)
	reminders := []storage.Reminder{{
		ID:            1,
		ApplicationID: &appID,
		Title:         "Deadline: Engineer at Acme",
		DueDate:       storage.NewDate(2025, time.January, 31),
		Type:          storage.ReminderTypeDeadline,
		Status:        storage.ReminderPending,
	}}
	if err := f.OutputReminders(reminders, storage.NewDate(2025, time.January, 1)); err != nil {
		t.Fatalf("OutputReminders failed: %v", err)
	}
	got := out.String()
	for _, want := range []string{"id=1", "due=2025-01-31", "type=deadline", "application=3"} {
		if !strings.Contains(got, want) {
			t.Errorf("missing %s in output: %s", want, got)
		}
	}
}

func TestOutputReminders_HumanOverdue(t *testing.T) {
	var out, errBuf bytes.Buffer
	f := NewFormatterWithWriters(FormatHuman, &out, &errBuf)

	reminders := []storage.Reminder{{
		Title:      "Follow up",
		DueDate:    storage.NewDate(2025, time.January, 1),
		Recurrence: &storage.Recurrence{Pattern: "weekly", Interval: 2},
	}}
	if err := f.OutputReminders(reminders, storage.NewDate(2025, time.February, 1)); err != nil {
		t.Fatalf("OutputReminders failed: %v", err)
	}
	got := out.String()
	if !strings.Contains(got, "⚠️") {
		t.Errorf("overdue reminder not flagged: %s", got)
	}
	if !strings.Contains(got, "every 2 weekly") {
		t.Errorf("missing recurrence: %s", got)
	}
}

func TestOutputPromptSync_Human(t *testing.T) {
	var out, errBuf bytes.Buffer
	f := NewFormatterWithWriters(FormatHuman, &out, &errBuf)

	results := []ai.SyncResult{
		{Name: ai.PromptExtract, Status: "unchanged", Source: ai.SourceDefault},
		{Name: ai.PromptGenerate, Status: "updated", Source: ai.SourceFile, Archived: 3},
	}
	if err := f.OutputPromptSync(results); err != nil {
		t.Fatalf("OutputPromptSync failed: %v", err)
	}
	got := out.String()
	if !strings.Contains(got, "extract") || !strings.Contains(got, "unchanged") {
		t.Errorf("missing unchanged line: %s", got)
	}
	if !strings.Contains(got, "version 3") {
		t.Errorf("missing archived version: %s", got)
	}
}

func TestOutputPrompt_AddsTrailingNewline(t *testing.T) {
	var out, errBuf bytes.Buffer
	f := NewFormatterWithWriters(FormatHuman, &out, &errBuf)

	f.OutputPrompt(&ai.PromptInfo{Name: ai.PromptMatch, Content: "Score {{.JobText}}"})
	if out.String() != "Score {{.JobText}}\n" {
		t.Errorf("got %q", out.String())
	}
}

func TestOutputSearchHits_HumanStripsMarks(t *testing.T) {
	var out, errBuf bytes.Buffer
	f := NewFormatterWithWriters(FormatHuman, &out, &errBuf)

	hits := []storage.SearchHit{{
		DocumentID: 1, Filename: "letter.txt", Company: "Acme", Position: "Engineer",
		Snippet: "a <mark>kubernetes</mark> cluster",
	}}
	if err := f.OutputSearchHits(hits); err != nil {
		t.Fatalf("OutputSearchHits failed: %v", err)
	}
	got := out.String()
	if strings.Contains(got, "<mark>") {
		t.Errorf("markup left in output: %s", got)
	}
	if !strings.Contains(got, "a kubernetes cluster") {
		t.Errorf("missing snippet: %s", got)
	}
}

func TestParseFormat(t *testing.T) {
	if f, err := ParseFormat("JSON"); err != nil || f != FormatJSON {
		t.Errorf("ParseFormat(JSON) = %v, %v", f, err)
	}
	if f, err := ParseFormat(""); err != nil || f != FormatHuman {
		t.Errorf("ParseFormat(\"\") = %v, %v", f, err)
	}
	if _, err := ParseFormat("xml"); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestErrorAndWarning(t *testing.T) {
	var out, errBuf bytes.Buffer
	f := NewFormatterWithWriters(FormatHuman, &out, &errBuf)

	f.Error("failed: %s", "boom")
	f.Warning("slow %d", 5)

	if out.Len() != 0 {
		t.Errorf("stdout should be empty, got %q", out.String())
	}
	got := errBuf.String()
	if !strings.Contains(got, "failed: boom") || !strings.Contains(got, "Warning: slow 5") {
		t.Errorf("unexpected stderr: %q", got)
	}
}

func TestHumanBytes(t *testing.T) {
	cases := map[int64]string{
		512:     "512 B",
		2048:    "2.0 KiB",
		5 << 20: "5.0 MiB",
	}
	for n, want := range cases {
		if got := humanBytes(n); got != want {
			t.Errorf("humanBytes(%d) = %q, want %q", n, got, want)
		}
	}
}
