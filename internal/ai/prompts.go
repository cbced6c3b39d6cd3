package ai

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"text/template"
	"time"

	"github.com/matthewjhunter/dossier/internal/blob"
	"github.com/matthewjhunter/dossier/internal/logging"
	"github.com/matthewjhunter/dossier/internal/storage"
	"github.com/sirupsen/logrus"
)

//go:embed prompts/*.txt
var embeddedPrompts embed.FS

// PromptName identifies an editable prompt slot.
type PromptName string

const (
	PromptExtract      PromptName = "extract"
	PromptMatch        PromptName = "match"
	PromptGenerate     PromptName = "generate"
	PromptToneAnalysis PromptName = "tone-analysis"
)

// Built-in templates that are not user-editable.
const (
	promptChat        = "chat"
	promptMotivation  = "motivation"
	promptSuggestions = "suggestions"
)

// PromptNames lists the editable slots in display order.
var PromptNames = []PromptName{PromptExtract, PromptMatch, PromptGenerate, PromptToneAnalysis}

// ParsePromptName validates a slot name.
func ParsePromptName(s string) (PromptName, error) {
	for _, n := range PromptNames {
		if string(n) == s {
			return n, nil
		}
	}
	return "", fmt.Errorf("unknown prompt %q", s)
}

var defaultTemperatures = map[string]float64{
	string(PromptExtract):      0.2,
	string(PromptMatch):        0.3,
	string(PromptGenerate):     0.7,
	string(PromptToneAnalysis): 0.4,
	promptChat:                 0.6,
	promptMotivation:           0.7,
	promptSuggestions:          0.4,
}

// Prompt sources.
const (
	SourceDatabase = "database"
	SourceDefault  = "default"
	SourceFile     = "file"
)

// PromptStore is the persistence PromptLoader needs.
type PromptStore interface {
	GetPrompt(ctx context.Context, name string) (*storage.Prompt, error)
	ReplacePrompt(ctx context.Context, name, prior, content, author string) (int, error)
	ListPromptVersions(ctx context.Context, name string) ([]storage.PromptVersion, error)
}

// PromptInfo is a resolved prompt slot.
type PromptInfo struct {
	Name      PromptName `json:"name"`
	Content   string     `json:"content"`
	Source    string     `json:"source"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

// UpdateResult reports a prompt overwrite and where it was mirrored.
type UpdateResult struct {
	Name     PromptName `json:"name"`
	Archived int        `json:"archived_version"`
	Mirrored []string   `json:"mirrored"`
	Warnings []string   `json:"warnings,omitempty"`
}

// SyncResult reports one slot of a file sync.
type SyncResult struct {
	Name     PromptName `json:"name"`
	Status   string     `json:"status"`
	Source   string     `json:"source"`
	Archived int        `json:"archived_version,omitempty"`
}

// PromptLoader resolves prompt templates: database row first, then the
// compiled-in default. Writes are versioned.
type PromptLoader struct {
	store  PromptStore
	mirror blob.Store
	dir    string
	log    logrus.FieldLogger
}

// NewPromptLoader returns a loader. mirror and dir are optional copies
// written on update.
func NewPromptLoader(store PromptStore, mirror blob.Store, dir string, log logrus.FieldLogger) *PromptLoader {
	if log == nil {
		log = logging.Discard()
	}
	return &PromptLoader{store: store, mirror: mirror, dir: dir, log: log.WithField("component", "prompts")}
}

// DefaultPrompt returns the compiled-in template for name.
func DefaultPrompt(name string) (string, error) {
	b, err := embeddedPrompts.ReadFile("prompts/" + name + ".txt")
	if err != nil {
		return "", fmt.Errorf("no default prompt %q", name)
	}
	return string(b), nil
}

// Get returns the active template for a slot.
func (pl *PromptLoader) Get(ctx context.Context, name PromptName) (*PromptInfo, error) {
	if pl.store != nil {
		p, err := pl.store.GetPrompt(ctx, string(name))
		if err != nil {
			return nil, err
		}
		if p != nil && strings.TrimSpace(p.Content) != "" {
			updated := p.UpdatedAt
			return &PromptInfo{Name: name, Content: p.Content, Source: SourceDatabase, UpdatedAt: &updated}, nil
		}
	}
	def, err := DefaultPrompt(string(name))
	if err != nil {
		return nil, err
	}
	return &PromptInfo{Name: name, Content: def, Source: SourceDefault}, nil
}

// List resolves every slot.
func (pl *PromptLoader) List(ctx context.Context) ([]PromptInfo, error) {
	out := make([]PromptInfo, 0, len(PromptNames))
	for _, n := range PromptNames {
		p, err := pl.Get(ctx, n)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, nil
}

// Versions returns the archived history of a slot, newest first.
func (pl *PromptLoader) Versions(ctx context.Context, name PromptName) ([]storage.PromptVersion, error) {
	return pl.store.ListPromptVersions(ctx, string(name))
}

// Update archives the current template and stores content in its place,
// then mirrors the new content best-effort.
func (pl *PromptLoader) Update(ctx context.Context, name PromptName, content, author string) (*UpdateResult, error) {
	if strings.TrimSpace(content) == "" {
		return nil, errors.New("prompt content is empty")
	}
	if _, err := template.New(string(name)).Parse(content); err != nil {
		return nil, fmt.Errorf("invalid template: %w", err)
	}
	current, err := pl.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	version, err := pl.store.ReplacePrompt(ctx, string(name), current.Content, content, author)
	if err != nil {
		return nil, err
	}

	res := &UpdateResult{Name: name, Archived: version, Mirrored: []string{}}
	if pl.mirror != nil {
		key := blob.PromptKey(string(name))
		if err := pl.mirror.Put(ctx, key, "text/plain; charset=utf-8", strings.NewReader(content)); err != nil {
			pl.log.WithError(err).WithField("prompt", name).Warn("failed to mirror prompt to object store")
			res.Warnings = append(res.Warnings, "object store: "+err.Error())
		} else {
			res.Mirrored = append(res.Mirrored, pl.mirror.Name()+":"+key)
		}
	}
	if pl.dir != "" {
		path := filepath.Join(pl.dir, string(name)+".txt")
		if err := writeFileAtomic(path, content); err != nil {
			pl.log.WithError(err).WithField("prompt", name).Warn("failed to mirror prompt to disk")
			res.Warnings = append(res.Warnings, "file: "+err.Error())
		} else {
			res.Mirrored = append(res.Mirrored, path)
		}
	}
	return res, nil
}

// SyncFromFiles makes each slot match <dir>/<name>.txt, or the compiled-in
// default when no file exists. Slots that already match are left alone, so
// repeated runs write nothing.
func (pl *PromptLoader) SyncFromFiles(ctx context.Context) ([]SyncResult, error) {
	results := make([]SyncResult, 0, len(PromptNames))
	for _, name := range PromptNames {
		source, content, err := pl.fileOrDefault(name)
		if err != nil {
			return nil, err
		}
		current, err := pl.Get(ctx, name)
		if err != nil {
			return nil, err
		}
		if current.Content == content {
			results = append(results, SyncResult{Name: name, Status: "unchanged", Source: source})
			continue
		}
		prior := current.Content
		version, err := pl.store.ReplacePrompt(ctx, string(name), prior, content, "system")
		if err != nil {
			return nil, err
		}
		results = append(results, SyncResult{Name: name, Status: "updated", Source: source, Archived: version})
	}
	return results, nil
}

func (pl *PromptLoader) fileOrDefault(name PromptName) (string, string, error) {
	if pl.dir != "" {
		b, err := os.ReadFile(filepath.Join(pl.dir, string(name)+".txt"))
		if err == nil {
			return SourceFile, string(b), nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", "", fmt.Errorf("failed to read prompt file: %w", err)
		}
	}
	def, err := DefaultPrompt(string(name))
	return SourceDefault, def, err
}

// render resolves a slot (or built-in template) and executes it.
func (pl *PromptLoader) render(ctx context.Context, name string, data interface{}) (string, error) {
	var tmpl string
	if n, err := ParsePromptName(name); err == nil {
		p, err := pl.Get(ctx, n)
		if err != nil {
			return "", err
		}
		tmpl = p.Content
	} else {
		def, err := DefaultPrompt(name)
		if err != nil {
			return "", err
		}
		tmpl = def
	}
	return ExecutePrompt(tmpl, data)
}

// ExecutePrompt renders a prompt template with the given data
func ExecutePrompt(promptTemplate string, data interface{}) (string, error) {
	tmpl, err := template.New("prompt").Parse(promptTemplate)
	if err != nil {
		return "", fmt.Errorf("failed to parse prompt template: %w", err)
	}

	var buf strings.Builder
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute prompt template: %w", err)
	}

	return buf.String(), nil
}

func writeFileAtomic(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(content), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
