package web

import (
	"net/http"
	"strconv"

	"github.com/matthewjhunter/dossier"
)

// handleListReminders filters by ?status=, ?application_id=, ?type= and
// ?due_within_days=.
func (h *handlers) handleListReminders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := dossier.ReminderQuery{Status: q.Get("status"), Type: q.Get("type")}
	if v := q.Get("application_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id <= 0 {
			h.writeError(w, r, badID("application_id"))
			return
		}
		query.ApplicationID = &id
	}
	if q.Get("due_within_days") != "" {
		days, err := queryInt(r, "due_within_days", 0)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		query.DueWithinDays = &days
	}
	reminders, err := h.engine.ListReminders(r.Context(), query)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reminders)
}

func (h *handlers) handleCreateReminder(w http.ResponseWriter, r *http.Request) {
	var body dossier.NewReminder
	if err := decodeJSON(w, r, &body); err != nil {
		h.writeError(w, r, err)
		return
	}
	rem, err := h.engine.CreateReminder(r.Context(), body)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rem)
}

func (h *handlers) handleUpdateReminder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		h.writeError(w, r, badID("reminder id"))
		return
	}
	var patch dossier.Patch
	if err := decodeJSON(w, r, &patch); err != nil {
		h.writeError(w, r, err)
		return
	}
	rem, err := h.engine.UpdateReminder(r.Context(), id, patch)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rem)
}

func (h *handlers) handleDeleteReminder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		h.writeError(w, r, badID("reminder id"))
		return
	}
	if err := h.engine.DeleteReminder(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) handleCompleteReminder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		h.writeError(w, r, badID("reminder id"))
		return
	}
	res, err := h.engine.CompleteReminder(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
