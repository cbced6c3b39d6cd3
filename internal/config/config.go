// Package config loads dossier's configuration from defaults, an optional
// YAML or TOML file, a .env file and environment variables, in that order of
// increasing precedence.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Addr      string `yaml:"addr" toml:"addr"`
		PublicURL string `yaml:"public_url" toml:"public_url"`
	} `yaml:"server" toml:"server"`

	Database struct {
		Path string `yaml:"path" toml:"path"`
	} `yaml:"database" toml:"database"`

	Storage struct {
		LocalDir        string        `yaml:"local_dir" toml:"local_dir"`
		Bucket          string        `yaml:"bucket" toml:"bucket"`
		CredentialsFile string        `yaml:"credentials_file,omitempty" toml:"credentials_file"`
		SignedURLTTL    time.Duration `yaml:"signed_url_ttl" toml:"signed_url_ttl"`
		SigningKey      string        `yaml:"signing_key,omitempty" toml:"signing_key"`
		MaxUploadBytes  int64         `yaml:"max_upload_bytes" toml:"max_upload_bytes"`
	} `yaml:"storage" toml:"storage"`

	Sync struct {
		Enabled        bool   `yaml:"enabled" toml:"enabled"`
		ObjectKey      string `yaml:"object_key" toml:"object_key"`
		RestoreOnStart bool   `yaml:"restore_on_start" toml:"restore_on_start"`
	} `yaml:"sync" toml:"sync"`

	AI struct {
		Provider         string             `yaml:"provider" toml:"provider"`
		Model            string             `yaml:"model" toml:"model"`
		FallbackModels   []string           `yaml:"fallback_models" toml:"fallback_models"`
		OllamaURL        string             `yaml:"ollama_url" toml:"ollama_url"`
		GeminiAPIKey     string             `yaml:"gemini_api_key,omitempty" toml:"gemini_api_key"`
		OpenRouterAPIKey string             `yaml:"openrouter_api_key,omitempty" toml:"openrouter_api_key"`
		OpenRouterURL    string             `yaml:"openrouter_url" toml:"openrouter_url"`
		EmbeddingModel   string             `yaml:"embedding_model" toml:"embedding_model"`
		Temperatures     map[string]float64 `yaml:"temperatures,omitempty" toml:"temperatures"`
		Timeout          time.Duration      `yaml:"timeout" toml:"timeout"`
	} `yaml:"ai" toml:"ai"`

	Prompts struct {
		Dir string `yaml:"dir" toml:"dir"`
	} `yaml:"prompts" toml:"prompts"`

	Log struct {
		Level  string `yaml:"level" toml:"level"`
		Format string `yaml:"format" toml:"format"`
	} `yaml:"log" toml:"log"`
}

// DefaultConfig returns a config that runs entirely on the local machine
// against a local Ollama.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.Server.Addr = ":8080"
	cfg.Database.Path = "./data/dossier.db"
	cfg.Storage.LocalDir = "./data/files"
	cfg.Storage.SignedURLTTL = 15 * time.Minute
	cfg.Storage.MaxUploadBytes = 10 << 20
	cfg.Sync.ObjectKey = "database/dossier.db"
	cfg.Sync.RestoreOnStart = true
	cfg.AI.Provider = "ollama"
	cfg.AI.Model = "llama3.1"
	cfg.AI.FallbackModels = []string{"llama3", "mistral"}
	cfg.AI.OllamaURL = "http://localhost:11434"
	cfg.AI.OpenRouterURL = "https://openrouter.ai/api/v1"
	cfg.AI.EmbeddingModel = "nomic-embed-text"
	cfg.AI.Timeout = 2 * time.Minute
	cfg.Prompts.Dir = "./prompts"
	cfg.Log.Level = "info"
	cfg.Log.Format = "text"
	return cfg
}

// Load builds the effective configuration. A missing file at path is not an
// error; defaults and the environment still apply.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := DefaultConfig()
	if path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, err
		}
	}
	applyEnv(cfg)
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return fmt.Errorf("failed to parse config: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("failed to parse config: %w", err)
		}
	}
	return nil
}

func applyEnv(cfg *Config) {
	setString := func(dst *string, keys ...string) {
		for _, k := range keys {
			if v := os.Getenv(k); v != "" {
				*dst = v
				return
			}
		}
	}

	setString(&cfg.Server.Addr, "DOSSIER_ADDR")
	setString(&cfg.Server.PublicURL, "DOSSIER_PUBLIC_URL")
	setString(&cfg.Database.Path, "DOSSIER_DB_PATH")
	setString(&cfg.Storage.LocalDir, "DOSSIER_DATA_DIR")
	setString(&cfg.Storage.Bucket, "GCS_BUCKET", "DOSSIER_BUCKET")
	setString(&cfg.Storage.CredentialsFile, "GOOGLE_APPLICATION_CREDENTIALS")
	setString(&cfg.Storage.SigningKey, "DOSSIER_SIGNING_KEY")
	setString(&cfg.AI.Provider, "DOSSIER_AI_PROVIDER")
	setString(&cfg.AI.Model, "DOSSIER_AI_MODEL")
	setString(&cfg.AI.OllamaURL, "OLLAMA_HOST")
	setString(&cfg.AI.GeminiAPIKey, "GEMINI_API_KEY", "GOOGLE_API_KEY")
	setString(&cfg.AI.OpenRouterAPIKey, "OPENROUTER_API_KEY")
	setString(&cfg.Prompts.Dir, "DOSSIER_PROMPTS_DIR")
	setString(&cfg.Log.Level, "LOG_LEVEL")
	setString(&cfg.Log.Format, "LOG_FORMAT")

	if v := os.Getenv("DOSSIER_AI_FALLBACK_MODELS"); v != "" {
		cfg.AI.FallbackModels = SplitList(v)
	}
	if v := os.Getenv("DOSSIER_SYNC"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Sync.Enabled = b
		}
	}
	// A configured bucket with no explicit sync switch means "sync".
	if cfg.Storage.Bucket != "" && os.Getenv("DOSSIER_SYNC") == "" && !cfg.Sync.Enabled {
		cfg.Sync.Enabled = true
	}
}

// SplitList splits a comma-separated list, dropping blanks.
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// WriteDefault writes the default configuration as YAML to path. It refuses
// to overwrite an existing file.
func WriteDefault(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists: %s", path)
	}
	data, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}
