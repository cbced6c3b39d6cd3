package web

import (
	"net/http"

	"github.com/matthewjhunter/dossier/internal/storage"
)

func (h *handlers) handleListVersions(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		h.writeError(w, r, badID("application id"))
		return
	}
	versions, err := h.engine.ListVersions(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, versions)
}

func (h *handlers) handleCreateVersion(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		h.writeError(w, r, badID("application id"))
		return
	}
	var body struct {
		Content string `json:"content"`
		Source  string `json:"source"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		h.writeError(w, r, err)
		return
	}
	v, err := h.engine.CreateVersion(r.Context(), id, body.Content, body.Source)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, v)
}

func (h *handlers) handleGetVersion(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	versionID, ok2 := pathID(r, "versionId")
	if !ok || !ok2 {
		h.writeError(w, r, badID("id"))
		return
	}
	v, err := h.engine.GetVersion(r.Context(), id, versionID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *handlers) handleRestoreVersion(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	versionID, ok2 := pathID(r, "versionId")
	if !ok || !ok2 {
		h.writeError(w, r, badID("id"))
		return
	}
	v, err := h.engine.RestoreVersion(r.Context(), id, versionID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, v)
}

func (h *handlers) handleListSuggestions(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		h.writeError(w, r, badID("application id"))
		return
	}
	sgs, err := h.engine.ListSuggestions(r.Context(), id, r.URL.Query().Get("status"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sgs)
}

func (h *handlers) handleAddSuggestion(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		h.writeError(w, r, badID("application id"))
		return
	}
	var body storage.CoverLetterSuggestion
	if err := decodeJSON(w, r, &body); err != nil {
		h.writeError(w, r, err)
		return
	}
	sg, err := h.engine.AddSuggestion(r.Context(), id, body)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sg)
}

func (h *handlers) handleGenerateSuggestions(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		h.writeError(w, r, badID("application id"))
		return
	}
	sgs, err := h.engine.GenerateSuggestions(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sgs)
}

func (h *handlers) handleReviewSuggestion(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	suggestionID, ok2 := pathID(r, "suggestionId")
	if !ok || !ok2 {
		h.writeError(w, r, badID("id"))
		return
	}
	var body struct {
		Status string `json:"status"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		h.writeError(w, r, err)
		return
	}
	review, err := h.engine.ReviewSuggestion(r.Context(), id, suggestionID, body.Status)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, review)
}
