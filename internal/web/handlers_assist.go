package web

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/matthewjhunter/dossier"
)

// chunkWriter streams plain text, flushing after every chunk. The status
// line is deferred until the first chunk so errors raised before any
// output still render as JSON.
type chunkWriter struct {
	w       http.ResponseWriter
	rc      *http.ResponseController
	started bool
}

func newChunkWriter(w http.ResponseWriter) *chunkWriter {
	return &chunkWriter{w: w, rc: http.NewResponseController(w)}
}

func (c *chunkWriter) write(chunk string) error {
	if !c.started {
		c.started = true
		c.w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		c.w.Header().Set("X-Content-Type-Options", "nosniff")
		c.w.WriteHeader(http.StatusOK)
	}
	if _, err := io.WriteString(c.w, chunk); err != nil {
		return err
	}
	if err := c.rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
		return err
	}
	return nil
}

// streamFailed reports an error. Once streaming has begun the status is already
// sent, so the message goes into a trailer.
func (h *handlers) streamFailed(w http.ResponseWriter, r *http.Request, c *chunkWriter, err error) {
	if !c.started {
		h.writeError(w, r, err)
		return
	}
	h.log.WithError(err).WithField("request_id", requestID(r.Context())).Warn("stream aborted")
	w.Header().Set(http.TrailerPrefix+"X-Dossier-Error", err.Error())
}

// handleGenerate streams a cover letter draft. The stored version id and the
// sync result arrive as trailers.
func (h *handlers) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ApplicationID int64 `json:"application_id"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		h.writeError(w, r, err)
		return
	}
	if body.ApplicationID <= 0 {
		h.writeError(w, r, badID("application_id"))
		return
	}
	c := newChunkWriter(w)
	v, err := h.engine.Generate(r.Context(), body.ApplicationID, c.write)
	if err != nil {
		h.streamFailed(w, r, c, err)
		return
	}
	if !c.started {
		_ = c.write("")
	}
	w.Header().Set(http.TrailerPrefix+"X-Dossier-Version-Id", strconv.FormatInt(v.ID, 10))
	w.Header().Set(http.TrailerPrefix+syncHeader, h.engine.AfterWrite(r.Context()).Header())
}

func (h *handlers) handleChat(w http.ResponseWriter, r *http.Request) {
	var body dossier.ChatRequest
	if err := decodeJSON(w, r, &body); err != nil {
		h.writeError(w, r, err)
		return
	}
	c := newChunkWriter(w)
	if _, err := h.engine.Chat(r.Context(), body, c.write); err != nil {
		h.streamFailed(w, r, c, err)
		return
	}
	if !c.started {
		_ = c.write("")
	}
}

func (h *handlers) handleExtract(w http.ResponseWriter, r *http.Request) {
	var body dossier.ExtractRequest
	if err := decodeJSON(w, r, &body); err != nil {
		h.writeError(w, r, err)
		return
	}
	res, err := h.engine.Extract(r.Context(), body)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *handlers) handleMatch(w http.ResponseWriter, r *http.Request) {
	var body dossier.MatchRequest
	if err := decodeJSON(w, r, &body); err != nil {
		h.writeError(w, r, err)
		return
	}
	res, err := h.engine.Match(r.Context(), body)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *handlers) handleGetMotivation(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		h.writeError(w, r, badID("application id"))
		return
	}
	answers, err := h.engine.MotivationAnswers(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, answers)
}

func (h *handlers) handleGenerateMotivation(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		h.writeError(w, r, badID("application id"))
		return
	}
	questions, err := h.engine.GenerateMotivationQuestions(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, questions)
}

func (h *handlers) handleSaveMotivation(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		h.writeError(w, r, badID("application id"))
		return
	}
	var body []dossier.MotivationAnswer
	if err := decodeJSON(w, r, &body); err != nil {
		h.writeError(w, r, err)
		return
	}
	answers, err := h.engine.SaveMotivationAnswers(r.Context(), id, body)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, answers)
}

func (h *handlers) handleCompanyWebsite(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		h.writeError(w, r, badID("application id"))
		return
	}
	var body struct {
		URL string `json:"url"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		h.writeError(w, r, err)
		return
	}
	page, err := h.engine.CaptureCompanyWebsite(r.Context(), id, body.URL)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *handlers) handleJobFeedPreview(w http.ResponseWriter, r *http.Request) {
	var body struct {
		URL   string `json:"url"`
		Limit int    `json:"limit"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		h.writeError(w, r, err)
		return
	}
	preview, err := h.engine.PreviewJobFeed(r.Context(), body.URL, body.Limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, preview)
}

func (h *handlers) handleListSamples(w http.ResponseWriter, r *http.Request) {
	samples, err := h.engine.ListSamples(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, samples)
}

// handleAddSample accepts either a JSON {title, content} body or a
// multipart upload with a "file" field.
func (h *handlers) handleAddSample(w http.ResponseWriter, r *http.Request) {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
		up, err := h.readUpload(w, r)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		sample, err := h.engine.AddSampleFile(r.Context(), up)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, sample)
		return
	}

	var body struct {
		Title   string `json:"title"`
		Content string `json:"content"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		h.writeError(w, r, err)
		return
	}
	sample, err := h.engine.AddSample(r.Context(), body.Title, body.Content)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sample)
}

func (h *handlers) handleDeleteSample(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		h.writeError(w, r, badID("sample id"))
		return
	}
	if err := h.engine.DeleteSample(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) handleAnalyzeTone(w http.ResponseWriter, r *http.Request) {
	res, err := h.engine.AnalyzeTone(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
