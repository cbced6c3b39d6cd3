package dossier

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	embedding "github.com/matthewjhunter/go-embedding"
	"github.com/sirupsen/logrus"

	"github.com/matthewjhunter/dossier/internal/ai"
	"github.com/matthewjhunter/dossier/internal/apperr"
	"github.com/matthewjhunter/dossier/internal/blob"
	"github.com/matthewjhunter/dossier/internal/config"
	"github.com/matthewjhunter/dossier/internal/dbsync"
	"github.com/matthewjhunter/dossier/internal/jobfeed"
	"github.com/matthewjhunter/dossier/internal/logging"
	"github.com/matthewjhunter/dossier/internal/storage"
	"github.com/matthewjhunter/dossier/internal/webpage"
)

// Engine is the public API for dossier. It wraps the store, the document
// stores, database sync and the LLM processor.
type Engine struct {
	cfg      *config.Config
	store    *storage.Store
	local    *blob.Local
	remote   blob.Store
	sync     *dbsync.Syncer
	ai       *ai.Processor
	embedder embedding.Embedder
	feeds    *jobfeed.Fetcher
	pages    *webpage.Fetcher
	log      logrus.FieldLogger
	now      func() time.Time
	closers  []io.Closer
}

// NewEngine opens the database (restoring it from the object store first
// when it is missing locally and sync is on) and wires the integrations.
// Nothing contacts an LLM until an AI operation is called.
func NewEngine(cfg EngineConfig) (*Engine, error) {
	if cfg.Config == nil {
		cfg.Config = config.DefaultConfig()
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Discard()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	c := cfg.Config
	log := cfg.Logger

	e := &Engine{cfg: c, log: log, now: cfg.Now}

	local, err := blob.NewLocal(c.Storage.LocalDir, []byte(c.Storage.SigningKey), c.Server.PublicURL)
	if err != nil {
		return nil, fmt.Errorf("open local storage: %w", err)
	}
	e.local = local

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	e.remote = cfg.Remote
	if e.remote == nil && c.Storage.Bucket != "" {
		gcs, err := blob.NewGCS(ctx, c.Storage.Bucket, c.Storage.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("open bucket %s: %w", c.Storage.Bucket, err)
		}
		e.remote = gcs
		e.closers = append(e.closers, gcs)
	}

	e.sync = dbsync.New(e.remote, c.Database.Path, dbsync.Options{
		Key:     c.Sync.ObjectKey,
		Enabled: c.Sync.Enabled,
		Logger:  log,
	})
	if c.Sync.RestoreOnStart && e.sync.Enabled() {
		restored, err := e.sync.RestoreIfMissing(ctx)
		if err != nil {
			// Starting empty would overwrite the remote copy on the next write.
			e.closeAll()
			return nil, fmt.Errorf("restore database: %w", err)
		}
		if restored {
			log.WithField("key", c.Sync.ObjectKey).Info("restored database from object store")
		}
	}

	store, err := storage.NewStore(c.Database.Path)
	if err != nil {
		e.closeAll()
		return nil, fmt.Errorf("open database: %w", err)
	}
	store.SetClock(cfg.Now)
	e.store = store
	e.sync.Attach(store)

	providers := cfg.Providers
	if providers == nil {
		providers, err = ai.NewProviders(ai.ProviderConfig{
			OllamaURL:     c.AI.OllamaURL,
			OpenRouterURL: c.AI.OpenRouterURL,
		})
		if err != nil {
			e.Close()
			return nil, fmt.Errorf("create AI providers: %w", err)
		}
	}

	prompts := ai.NewPromptLoader(store, e.remote, c.Prompts.Dir, log)
	e.ai = ai.NewProcessor(providers, prompts, store, ai.Config{
		Provider:       c.AI.Provider,
		Model:          c.AI.Model,
		FallbackModels: c.AI.FallbackModels,
		APIKeys: map[string]string{
			"gemini":     c.AI.GeminiAPIKey,
			"openrouter": c.AI.OpenRouterAPIKey,
		},
		BaseURLs: map[string]string{
			"openrouter": c.AI.OpenRouterURL,
		},
		Temperatures: c.AI.Temperatures,
		Timeout:      c.AI.Timeout,
	}, log)

	e.embedder = cfg.Embedder
	if e.embedder == nil && c.AI.EmbeddingModel != "" {
		if op, ok := providers["ollama"].(*ai.OllamaProvider); ok {
			e.embedder = ai.NewOllamaEmbedder(op, c.AI.EmbeddingModel)
		}
	}

	e.feeds = jobfeed.NewFetcher(cfg.HTTPClient)
	e.pages = webpage.NewFetcher(30 * time.Second)
	return e, nil
}

// Config returns the effective configuration.
func (e *Engine) Config() *config.Config { return e.cfg }

// Files returns the local document store, which also verifies /files tokens.
func (e *Engine) Files() *blob.Local { return e.local }

// AfterWrite mirrors the database file after a successful write when sync
// is enabled. The result is meant for the X-Dossier-Sync header.
func (e *Engine) AfterWrite(ctx context.Context) dbsync.Result {
	return e.sync.AfterWrite(ctx)
}

// Ping checks the database connection.
func (e *Engine) Ping(ctx context.Context) error {
	_, err := e.store.Stats(ctx)
	return err
}

// Close releases all resources held by the engine.
func (e *Engine) Close() error {
	var errs []error
	if e.store != nil {
		errs = append(errs, e.store.Close())
	}
	errs = append(errs, e.closeAll())
	return errors.Join(errs...)
}

func (e *Engine) closeAll() error {
	var errs []error
	for _, c := range e.closers {
		errs = append(errs, c.Close())
	}
	e.closers = nil
	return errors.Join(errs...)
}

// notFound converts storage.ErrNotFound into an apperr for op.
func notFound(op, what string, err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return apperr.E(apperr.NotFound, op, what+" not found")
	}
	return err
}

// today is the current calendar day in local time.
func (e *Engine) today() storage.Date {
	return storage.DateOf(e.now().In(time.Local))
}
