package web

import (
	"net/http"
	"os"
	"path/filepath"
)

func (h *handlers) handleListPrompts(w http.ResponseWriter, r *http.Request) {
	prompts, err := h.engine.ListPrompts(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, prompts)
}

func (h *handlers) handleGetPrompt(w http.ResponseWriter, r *http.Request) {
	p, err := h.engine.GetPrompt(r.Context(), r.PathValue("name"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *handlers) handleUpdatePrompt(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Content string `json:"content"`
		Author  string `json:"author"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		h.writeError(w, r, err)
		return
	}
	res, err := h.engine.UpdatePrompt(r.Context(), r.PathValue("name"), body.Content, body.Author)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *handlers) handlePromptVersions(w http.ResponseWriter, r *http.Request) {
	versions, err := h.engine.PromptVersions(r.Context(), r.PathValue("name"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, versions)
}

func (h *handlers) handleSyncPrompts(w http.ResponseWriter, r *http.Request) {
	res, err := h.engine.SyncPrompts(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *handlers) handleListSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.engine.ListSettings(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

// handleUpdateSettings takes a flat {"key": "value"} object. An empty value
// removes the override.
func (h *handlers) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var body map[string]string
	if err := decodeJSON(w, r, &body); err != nil {
		h.writeError(w, r, err)
		return
	}
	settings, err := h.engine.UpdateSettings(r.Context(), body)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (h *handlers) handleStats(w http.ResponseWriter, r *http.Request) {
	st, err := h.engine.Stats(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// handleBackup snapshots the database into a temporary directory and
// streams it as an attachment. ?upload=true also stores it in the bucket.
func (h *handlers) handleBackup(w http.ResponseWriter, r *http.Request) {
	dir, err := os.MkdirTemp("", "dossier-backup-")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	defer os.RemoveAll(dir)

	res, err := h.engine.Backup(r.Context(), dir, queryBool(r, "upload"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	f, err := os.Open(res.Path)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	defer f.Close()
	if res.RemoteKey != "" {
		w.Header().Set("X-Dossier-Backup-Key", res.RemoteKey)
	}
	serveFile(w, f, filepath.Base(res.Path), "application/x-sqlite3", res.Size, false)
}

func (h *handlers) handleOptimize(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.Optimize(r.Context()); err != nil {
		h.writeError(w, r, err)
		return
	}
	st, err := h.engine.Stats(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// handleSync uploads the database now. It is not wrapped by afterWrite: the
// upload is the request itself.
func (h *handlers) handleSync(w http.ResponseWriter, r *http.Request) {
	res, err := h.engine.SyncNow(r.Context())
	w.Header().Set(syncHeader, res.Header())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *handlers) handleFixSearchIndex(w http.ResponseWriter, r *http.Request) {
	res, err := h.engine.FixSearchIndex(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
