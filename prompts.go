package dossier

import (
	"context"
	"strings"

	"github.com/matthewjhunter/dossier/internal/ai"
	"github.com/matthewjhunter/dossier/internal/apperr"
	"github.com/matthewjhunter/dossier/internal/storage"
)

func promptName(op, s string) (ai.PromptName, error) {
	name, err := ai.ParsePromptName(s)
	if err != nil {
		return "", apperr.Wrap(apperr.NotFound, op, err.Error(), err)
	}
	return name, nil
}

func (e *Engine) ListPrompts(ctx context.Context) ([]ai.PromptInfo, error) {
	return e.ai.Prompts().List(ctx)
}

func (e *Engine) GetPrompt(ctx context.Context, name string) (*ai.PromptInfo, error) {
	n, err := promptName("get prompt", name)
	if err != nil {
		return nil, err
	}
	return e.ai.Prompts().Get(ctx, n)
}

// UpdatePrompt archives the active template and stores content in its
// place. Mirroring failures come back as warnings on the result.
func (e *Engine) UpdatePrompt(ctx context.Context, name, content, author string) (*ai.UpdateResult, error) {
	const op = "update prompt"
	n, err := promptName(op, name)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(content) == "" {
		return nil, apperr.E(apperr.Invalid, op, "content is required")
	}
	if author == "" {
		author = "user"
	}
	res, err := e.ai.Prompts().Update(ctx, n, content, author)
	if err != nil && strings.HasPrefix(err.Error(), "invalid template") {
		return nil, apperr.Wrap(apperr.Invalid, op, err.Error(), err)
	}
	return res, err
}

func (e *Engine) PromptVersions(ctx context.Context, name string) ([]storage.PromptVersion, error) {
	n, err := promptName("prompt versions", name)
	if err != nil {
		return nil, err
	}
	return e.ai.Prompts().Versions(ctx, n)
}

// SyncPrompts makes every slot match its file in the prompts directory, or
// the built-in default when there is none.
func (e *Engine) SyncPrompts(ctx context.Context) ([]ai.SyncResult, error) {
	return e.ai.Prompts().SyncFromFiles(ctx)
}

// maskedSettings are returned with their value hidden.
var maskedSettings = map[string]bool{ai.SettingAPIKey: true}

// ListSettings returns every stored setting. Secrets are masked.
func (e *Engine) ListSettings(ctx context.Context) ([]storage.Setting, error) {
	settings, err := e.store.ListSettings(ctx)
	if err != nil {
		return nil, err
	}
	for i := range settings {
		if maskedSettings[settings[i].Key] && settings[i].Value != "" {
			settings[i].Value = maskSecret(settings[i].Value)
		}
	}
	return settings, nil
}

// UpdateSettings writes each key. An empty value deletes the row so the
// configuration file applies again. The category is the key's prefix.
func (e *Engine) UpdateSettings(ctx context.Context, values map[string]string) ([]storage.Setting, error) {
	const op = "update settings"
	for key := range values {
		if strings.TrimSpace(key) == "" || strings.ContainsAny(key, " \t\n") {
			return nil, apperr.E(apperr.Invalid, op, "setting keys must be non-empty and contain no spaces")
		}
	}
	for key, value := range values {
		if value == "" {
			if err := e.store.DeleteSetting(ctx, key); err != nil {
				return nil, err
			}
			continue
		}
		category, _, found := strings.Cut(key, ".")
		if !found {
			category = "general"
		}
		if err := e.store.SetSetting(ctx, key, value, category); err != nil {
			return nil, err
		}
	}
	return e.ListSettings(ctx)
}

// AIOptions reports the provider, models and temperature an operation
// would use with the current settings.
func (e *Engine) AIOptions(ctx context.Context, op string) (ai.Options, error) {
	return e.ai.Resolve(ctx, op)
}

func maskSecret(s string) string {
	if len(s) <= 4 {
		return "****"
	}
	return "****" + s[len(s)-4:]
}
