package web

import (
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/matthewjhunter/dossier"
)

// handlers holds dependencies for all HTTP handler methods.
type handlers struct {
	engine *dossier.Engine
	log    logrus.FieldLogger
}

// newRouter sets up all routes using Go 1.22+ enhanced routing. Mutating
// routes are wrapped so the database is mirrored after they succeed;
// streaming routes report the sync result in a trailer instead.
func newRouter(engine *dossier.Engine, log logrus.FieldLogger) http.Handler {
	mux := http.NewServeMux()
	h := &handlers{engine: engine, log: log}
	w := func(fn http.HandlerFunc) http.HandlerFunc { return afterWrite(engine, fn) }

	mux.HandleFunc("GET /healthz", h.handleHealth)

	// Singletons
	mux.HandleFunc("GET /resume", h.handleGetResume)
	mux.HandleFunc("POST /resume", w(h.handleSaveResume))
	mux.HandleFunc("GET /user-profile", h.handleGetProfile)
	mux.HandleFunc("POST /user-profile", w(h.handleSaveProfile))

	// Applications
	mux.HandleFunc("GET /applications", h.handleListApplications)
	mux.HandleFunc("POST /applications", w(h.handleCreateApplication))
	mux.HandleFunc("GET /applications/{id}", h.handleGetApplication)
	mux.HandleFunc("PATCH /applications/{id}", w(h.handleUpdateApplication))
	mux.HandleFunc("DELETE /applications/{id}", w(h.handleDeleteApplication))

	mux.HandleFunc("GET /applications/{id}/contacts", h.handleListContacts)
	mux.HandleFunc("POST /applications/{id}/contacts", w(h.handleAddContact))
	mux.HandleFunc("PATCH /applications/{id}/contacts/{contactId}", w(h.handleUpdateContact))
	mux.HandleFunc("DELETE /applications/{id}/contacts/{contactId}", w(h.handleDeleteContact))

	// Documents
	mux.HandleFunc("GET /applications/{id}/documents", h.handleListDocuments)
	mux.HandleFunc("POST /applications/{id}/documents", w(h.handleUploadDocument))
	mux.HandleFunc("GET /applications/{id}/documents/{docId}", h.handleDownloadDocument)
	mux.HandleFunc("DELETE /applications/{id}/documents/{docId}", w(h.handleDeleteDocument))
	mux.HandleFunc("GET /applications/{id}/documents/{docId}/link", h.handleDocumentLink)
	mux.HandleFunc("GET /documents/search", h.handleSearchDocuments)
	mux.HandleFunc("GET /files/{token}", h.handleFile)

	// Cover letters
	mux.HandleFunc("GET /applications/{id}/versions", h.handleListVersions)
	mux.HandleFunc("POST /applications/{id}/versions", w(h.handleCreateVersion))
	mux.HandleFunc("GET /applications/{id}/versions/{versionId}", h.handleGetVersion)
	mux.HandleFunc("POST /applications/{id}/versions/{versionId}/restore", w(h.handleRestoreVersion))
	mux.HandleFunc("GET /applications/{id}/suggestions", h.handleListSuggestions)
	mux.HandleFunc("POST /applications/{id}/suggestions", w(h.handleAddSuggestion))
	mux.HandleFunc("POST /applications/{id}/suggestions/generate", w(h.handleGenerateSuggestions))
	mux.HandleFunc("PATCH /applications/{id}/suggestions/{suggestionId}", w(h.handleReviewSuggestion))

	// Assistance
	mux.HandleFunc("GET /applications/{id}/motivation-questions", h.handleGetMotivation)
	mux.HandleFunc("POST /applications/{id}/motivation-questions", h.handleGenerateMotivation)
	mux.HandleFunc("PUT /applications/{id}/motivation-questions", w(h.handleSaveMotivation))
	mux.HandleFunc("POST /applications/{id}/company-website", w(h.handleCompanyWebsite))
	mux.HandleFunc("POST /extract", w(h.handleExtract))
	mux.HandleFunc("POST /match", w(h.handleMatch))
	mux.HandleFunc("POST /generate", h.handleGenerate)
	mux.HandleFunc("POST /chat", h.handleChat)
	mux.HandleFunc("POST /job-feeds/preview", h.handleJobFeedPreview)

	mux.HandleFunc("GET /cover-letter-samples", h.handleListSamples)
	mux.HandleFunc("POST /cover-letter-samples", w(h.handleAddSample))
	mux.HandleFunc("DELETE /cover-letter-samples/{id}", w(h.handleDeleteSample))
	mux.HandleFunc("POST /cover-letter-samples/analyze", w(h.handleAnalyzeTone))

	// Reminders
	mux.HandleFunc("GET /reminders", h.handleListReminders)
	mux.HandleFunc("POST /reminders", w(h.handleCreateReminder))
	mux.HandleFunc("PATCH /reminders/{id}", w(h.handleUpdateReminder))
	mux.HandleFunc("DELETE /reminders/{id}", w(h.handleDeleteReminder))
	mux.HandleFunc("POST /reminders/{id}/complete", w(h.handleCompleteReminder))

	// Admin
	mux.HandleFunc("GET /admin/prompts", h.handleListPrompts)
	mux.HandleFunc("GET /admin/prompts/{name}", h.handleGetPrompt)
	mux.HandleFunc("POST /admin/prompts/{name}", w(h.handleUpdatePrompt))
	mux.HandleFunc("GET /admin/prompts/{name}/versions", h.handlePromptVersions)
	mux.HandleFunc("POST /admin/prompts/sync", w(h.handleSyncPrompts))
	mux.HandleFunc("GET /admin/settings", h.handleListSettings)
	mux.HandleFunc("POST /admin/settings", w(h.handleUpdateSettings))
	mux.HandleFunc("GET /admin/database/stats", h.handleStats)
	mux.HandleFunc("GET /admin/database/backup", h.handleBackup)
	mux.HandleFunc("POST /admin/database/optimize", w(h.handleOptimize))
	mux.HandleFunc("POST /admin/database/sync", h.handleSync)
	mux.HandleFunc("POST /admin/database/fix-fts", w(h.handleFixSearchIndex))

	return mux
}
