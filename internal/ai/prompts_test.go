package ai

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/matthewjhunter/dossier/internal/blob"
	"github.com/matthewjhunter/dossier/internal/storage"
)

func newTestStore(t *testing.T) *storage.Store {
	t.Helper()
	store, err := storage.NewStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

// promptWrites counts archived prompt versions, one per overwrite.
func promptWrites(t *testing.T, store *storage.Store) int64 {
	t.Helper()
	st, err := store.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	return st.Tables["prompt_versions"]
}

func TestDefaultPromptsExist(t *testing.T) {
	for _, name := range append([]string{promptChat, promptMotivation, promptSuggestions}, slotNames()...) {
		p, err := DefaultPrompt(name)
		if err != nil {
			t.Fatalf("DefaultPrompt(%s) failed: %v", name, err)
		}
		if strings.TrimSpace(p) == "" {
			t.Errorf("DefaultPrompt(%s) is empty", name)
		}
	}
}

func slotNames() []string {
	var out []string
	for _, n := range PromptNames {
		out = append(out, string(n))
	}
	return out
}

func TestGet_FallsBackToDefault(t *testing.T) {
	pl := NewPromptLoader(newTestStore(t), nil, "", nil)

	p, err := pl.Get(context.Background(), PromptMatch)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if p.Source != SourceDefault {
		t.Errorf("source = %q, want default", p.Source)
	}
	def, _ := DefaultPrompt("match")
	if p.Content != def {
		t.Error("expected embedded default content")
	}
}

func TestUpdate_ArchivesPriorContent(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	pl := NewPromptLoader(store, nil, "", nil)
	def, _ := DefaultPrompt("generate")

	res, err := pl.Update(ctx, PromptGenerate, "first custom {{.Company}}", "")
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if res.Archived != 1 {
		t.Errorf("archived version = %d, want 1", res.Archived)
	}
	if _, err := pl.Update(ctx, PromptGenerate, "second custom", "alice"); err != nil {
		t.Fatalf("second Update failed: %v", err)
	}

	p, err := pl.Get(ctx, PromptGenerate)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if p.Content != "second custom" || p.Source != SourceDatabase {
		t.Errorf("got %q from %s, want second custom from database", p.Content, p.Source)
	}

	versions, err := pl.Versions(ctx, PromptGenerate)
	if err != nil {
		t.Fatalf("Versions failed: %v", err)
	}
	if len(versions) != 2 {
		t.Fatalf("expected 2 versions, got %d", len(versions))
	}
	// Newest first: version 2 holds the first custom text, version 1 the default.
	if versions[0].VersionNumber != 2 || versions[0].Content != "first custom {{.Company}}" || versions[0].CreatedBy != "alice" {
		t.Errorf("unexpected version 2: %+v", versions[0])
	}
	if versions[1].VersionNumber != 1 || versions[1].Content != def || versions[1].CreatedBy != "user" {
		t.Errorf("unexpected version 1: %+v", versions[1])
	}
}

func TestUpdate_RejectsBadTemplate(t *testing.T) {
	pl := NewPromptLoader(newTestStore(t), nil, "", nil)
	if _, err := pl.Update(context.Background(), PromptExtract, "{{.Broken", ""); err == nil {
		t.Fatal("expected template parse error")
	}
	if _, err := pl.Update(context.Background(), PromptExtract, "   ", ""); err == nil {
		t.Fatal("expected empty content error")
	}
}

func TestUpdate_MirrorsToBlobAndDir(t *testing.T) {
	ctx := context.Background()
	mirror, err := blob.NewLocal(t.TempDir(), []byte("k"), "")
	if err != nil {
		t.Fatalf("NewLocal failed: %v", err)
	}
	dir := t.TempDir()
	pl := NewPromptLoader(newTestStore(t), mirror, dir, nil)

	res, err := pl.Update(ctx, PromptMatch, "mirrored", "")
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if len(res.Mirrored) != 2 {
		t.Errorf("expected 2 mirrors, got %v", res.Mirrored)
	}
	b, err := os.ReadFile(filepath.Join(dir, "match.txt"))
	if err != nil || string(b) != "mirrored" {
		t.Errorf("dir mirror = %q, %v", b, err)
	}
	if _, err := os.Stat(filepath.Join(mirror.Root(), "prompts", "match.txt")); err != nil {
		t.Errorf("blob mirror missing: %v", err)
	}
}

func TestSyncFromFiles_Idempotent(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "extract.txt"), []byte("from file {{.JobText}}"), 0o644); err != nil {
		t.Fatal(err)
	}
	pl := NewPromptLoader(store, nil, dir, nil)

	first, err := pl.SyncFromFiles(ctx)
	if err != nil {
		t.Fatalf("SyncFromFiles failed: %v", err)
	}
	updated := 0
	for _, r := range first {
		if r.Status == "updated" {
			updated++
			if r.Name != PromptExtract || r.Source != SourceFile {
				t.Errorf("unexpected update: %+v", r)
			}
		}
	}
	if updated != 1 {
		t.Errorf("expected 1 update on first sync, got %d", updated)
	}

	before := promptWrites(t, store)
	second, err := pl.SyncFromFiles(ctx)
	if err != nil {
		t.Fatalf("second SyncFromFiles failed: %v", err)
	}
	for _, r := range second {
		if r.Status != "unchanged" {
			t.Errorf("second sync changed %s", r.Name)
		}
	}
	after := promptWrites(t, store)
	if before != after {
		t.Errorf("second sync wrote versions: %d -> %d", before, after)
	}

	versions, _ := pl.Versions(ctx, PromptExtract)
	if len(versions) != 1 || versions[0].CreatedBy != "system" {
		t.Errorf("expected one system version, got %+v", versions)
	}
}

func TestExecutePrompt(t *testing.T) {
	out, err := ExecutePrompt("Hello {{.Name}}", map[string]string{"Name": "Ada"})
	if err != nil {
		t.Fatalf("ExecutePrompt failed: %v", err)
	}
	if out != "Hello Ada" {
		t.Errorf("got %q", out)
	}
	if _, err := ExecutePrompt("{{.Name", nil); err == nil {
		t.Error("expected parse error")
	}
}
