package dossier

import (
	"net/http"
	"time"

	embedding "github.com/matthewjhunter/go-embedding"
	"github.com/sirupsen/logrus"

	"github.com/matthewjhunter/dossier/internal/ai"
	"github.com/matthewjhunter/dossier/internal/blob"
	"github.com/matthewjhunter/dossier/internal/config"
	"github.com/matthewjhunter/dossier/internal/dbsync"
	"github.com/matthewjhunter/dossier/internal/storage"
)

// EngineConfig configures the dossier engine.
type EngineConfig struct {
	Config *config.Config // nil means config.DefaultConfig()
	Logger logrus.FieldLogger

	// Providers replaces the built-in LLM providers.
	Providers map[string]ai.Provider
	// Embedder overrides the Ollama embedder used to rank cover letter samples.
	Embedder embedding.Embedder
	// Remote overrides the cloud object store built from Config.Storage.Bucket.
	Remote blob.Store
	// HTTPClient is used for job feed fetches.
	HTTPClient *http.Client
	Now        func() time.Time
}

// NewApplication is the payload for creating an application.
type NewApplication struct {
	Company        string         `json:"company"`
	Position       string         `json:"position"`
	Status         storage.Status `json:"status"`
	JobURL         string         `json:"job_url"`
	JobDescription string         `json:"job_description"`
	Deadline       *storage.Date  `json:"deadline"`
	CompanyWebsite string         `json:"company_website"`
	Notes          string         `json:"notes"`
}

// ApplicationDetail is an application with its contacts and documents.
type ApplicationDetail struct {
	*storage.Application
	Contacts  []storage.ContactPerson `json:"contacts"`
	Documents []storage.Document      `json:"documents"`
}

// ApplicationDeleteResult reports the best-effort cleanup that follows an
// application delete.
type ApplicationDeleteResult struct {
	FilesRemoved     int `json:"files_removed"`
	FilesFailed      int `json:"files_failed"`
	RemindersRemoved int `json:"reminders_removed"`
}

// Upload is a document received from a client.
type Upload struct {
	Filename    string
	ContentType string
	Kind        string
	Data        []byte
}

// UploadResult is a stored document plus what happened to it.
type UploadResult struct {
	storage.Document
	Indexed        bool `json:"indexed"`
	IndexFallback  bool `json:"index_fallback"`
	StoredRemotely bool `json:"stored_remotely"`
}

// DocumentDeleteResult reports each independent step of a document delete.
type DocumentDeleteResult struct {
	FileRemoved  bool `json:"file_removed"`
	IndexRemoved bool `json:"index_removed"`
}

// DocumentLink is a time-limited download URL.
type DocumentLink struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
	Remote    bool      `json:"remote"`
}

// ReindexResult summarizes a search index rebuild.
type ReindexResult struct {
	IndexCreated bool `json:"index_created"`
	Scanned      int  `json:"scanned"`
	Indexed      int  `json:"indexed"`
	Fallback     int  `json:"fallback"`
	Failed       int  `json:"failed"`
}

// DatabaseStats extends the store statistics with the file path and sync
// state.
type DatabaseStats struct {
	storage.DatabaseStats
	Path string       `json:"path"`
	Sync dbsync.State `json:"sync"`
}

// BackupResult describes a database snapshot.
type BackupResult struct {
	Path      string `json:"path"`
	Size      int64  `json:"size"`
	RemoteKey string `json:"remote_key,omitempty"`
}

// ExtractRequest names the posting text directly or through an application.
type ExtractRequest struct {
	ApplicationID *int64 `json:"application_id"`
	JobText       string `json:"job_text"`
}

// ExtractResult is the extraction and, when an application was named, the
// updated application.
type ExtractResult struct {
	*ai.Extraction
	Application *storage.Application `json:"application,omitempty"`
}

type MatchRequest struct {
	ApplicationID *int64 `json:"application_id"`
	JobText       string `json:"job_text"`
}

type ChatRequest struct {
	ApplicationID int64        `json:"application_id"`
	Letter        string       `json:"letter"`
	Messages      []ai.Message `json:"messages"`
}

// MotivationAnswer is one answered motivation question.
type MotivationAnswer struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// SuggestionReview is the outcome of accepting or rejecting a suggestion.
type SuggestionReview struct {
	Suggestion *storage.CoverLetterSuggestion `json:"suggestion"`
	Version    *storage.CoverLetterVersion    `json:"version,omitempty"`
}

// NewReminder is the payload for creating a reminder.
type NewReminder struct {
	ApplicationID *int64              `json:"application_id"`
	Title         string              `json:"title"`
	Description   string              `json:"description"`
	DueDate       *storage.Date       `json:"due_date"`
	Type          string              `json:"type"`
	Recurrence    *storage.Recurrence `json:"recurrence"`
}

// ReminderCompletion is a completed reminder and its successor, if any.
type ReminderCompletion struct {
	Completed *storage.Reminder `json:"completed"`
	Next      *storage.Reminder `json:"next,omitempty"`
}

// ToneResult is a stored tone profile.
type ToneResult struct {
	Profile  string `json:"profile"`
	Samples  int    `json:"samples"`
	Provider string `json:"provider"`
	Model    string `json:"model"`
}
