package web

import (
	"net/http"

	"github.com/matthewjhunter/dossier"
	"github.com/matthewjhunter/dossier/internal/storage"
)

func (h *handlers) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.Ping(r.Context()); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handlers) handleGetResume(w http.ResponseWriter, r *http.Request) {
	resume, err := h.engine.GetResume(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resume)
}

func (h *handlers) handleSaveResume(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Content string `json:"content"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		h.writeError(w, r, err)
		return
	}
	resume, err := h.engine.SaveResume(r.Context(), body.Content)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resume)
}

func (h *handlers) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	p, err := h.engine.GetUserProfile(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *handlers) handleSaveProfile(w http.ResponseWriter, r *http.Request) {
	var body storage.UserProfile
	if err := decodeJSON(w, r, &body); err != nil {
		h.writeError(w, r, err)
		return
	}
	p, err := h.engine.SaveUserProfile(r.Context(), body)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *handlers) handleListApplications(w http.ResponseWriter, r *http.Request) {
	apps, err := h.engine.ListApplications(r.Context(), r.URL.Query().Get("status"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, apps)
}

func (h *handlers) handleCreateApplication(w http.ResponseWriter, r *http.Request) {
	var body dossier.NewApplication
	if err := decodeJSON(w, r, &body); err != nil {
		h.writeError(w, r, err)
		return
	}
	app, err := h.engine.CreateApplication(r.Context(), body)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, app)
}

func (h *handlers) handleGetApplication(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		h.writeError(w, r, badID("application id"))
		return
	}
	app, err := h.engine.GetApplication(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, app)
}

func (h *handlers) handleUpdateApplication(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		h.writeError(w, r, badID("application id"))
		return
	}
	var patch dossier.Patch
	if err := decodeJSON(w, r, &patch); err != nil {
		h.writeError(w, r, err)
		return
	}
	app, err := h.engine.UpdateApplication(r.Context(), id, patch)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, app)
}

func (h *handlers) handleDeleteApplication(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		h.writeError(w, r, badID("application id"))
		return
	}
	res, err := h.engine.DeleteApplication(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *handlers) handleListContacts(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		h.writeError(w, r, badID("application id"))
		return
	}
	contacts, err := h.engine.ListContacts(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, contacts)
}

func (h *handlers) handleAddContact(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		h.writeError(w, r, badID("application id"))
		return
	}
	var body storage.ContactPerson
	if err := decodeJSON(w, r, &body); err != nil {
		h.writeError(w, r, err)
		return
	}
	c, err := h.engine.AddContact(r.Context(), id, body)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (h *handlers) handleUpdateContact(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	contactID, ok2 := pathID(r, "contactId")
	if !ok || !ok2 {
		h.writeError(w, r, badID("id"))
		return
	}
	var patch dossier.Patch
	if err := decodeJSON(w, r, &patch); err != nil {
		h.writeError(w, r, err)
		return
	}
	c, err := h.engine.UpdateContact(r.Context(), id, contactID, patch)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *handlers) handleDeleteContact(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	contactID, ok2 := pathID(r, "contactId")
	if !ok || !ok2 {
		h.writeError(w, r, badID("id"))
		return
	}
	if err := h.engine.DeleteContact(r.Context(), id, contactID); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
