package web

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/matthewjhunter/dossier"
	"github.com/matthewjhunter/dossier/internal/apperr"
	"github.com/matthewjhunter/dossier/internal/blob"
)

// multipartOverhead is allowed on top of the upload limit for form framing.
const multipartOverhead = 64 << 10

// readUpload reads the "file" part of a multipart body, bounded by the
// engine's upload limit.
func (h *handlers) readUpload(w http.ResponseWriter, r *http.Request) (dossier.Upload, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.engine.MaxUploadBytes()+multipartOverhead)
	if err := r.ParseMultipartForm(h.engine.MaxUploadBytes()); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return dossier.Upload{}, err
		}
		return dossier.Upload{}, apperr.Wrap(apperr.Invalid, "", "expected a multipart form with a file field", err)
	}
	f, hdr, err := r.FormFile("file")
	if err != nil {
		return dossier.Upload{}, apperr.Wrap(apperr.Invalid, "", "missing file field", err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return dossier.Upload{}, err
	}
	return dossier.Upload{
		Filename:    hdr.Filename,
		ContentType: hdr.Header.Get("Content-Type"),
		Kind:        r.FormValue("kind"),
		Data:        data,
	}, nil
}

func (h *handlers) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		h.writeError(w, r, badID("application id"))
		return
	}
	docs, err := h.engine.ListDocuments(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, docs)
}

func (h *handlers) handleUploadDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		h.writeError(w, r, badID("application id"))
		return
	}
	up, err := h.readUpload(w, r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	res, err := h.engine.UploadDocument(r.Context(), id, up)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// handleDownloadDocument streams a local file, or redirects to a signed URL
// for files in the bucket. ?view=true serves inline.
func (h *handlers) handleDownloadDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	docID, ok2 := pathID(r, "docId")
	if !ok || !ok2 {
		h.writeError(w, r, badID("id"))
		return
	}
	inline := queryBool(r, "view")
	doc, body, remote, err := h.engine.OpenDocument(r.Context(), id, docID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if remote {
		link, err := h.engine.DocumentLink(r.Context(), id, docID, inline)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		http.Redirect(w, r, link.URL, http.StatusFound)
		return
	}
	defer body.Close()
	serveFile(w, body, doc.Filename, doc.MimeType, doc.Size, inline)
}

func serveFile(w http.ResponseWriter, body io.Reader, filename, contentType string, size int64, inline bool) {
	disposition := "attachment"
	if inline {
		disposition = "inline"
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType(disposition, map[string]string{"filename": filename}))
	w.Header().Set("X-Content-Type-Options", "nosniff")
	if size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
	}
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, body)
}

func (h *handlers) handleDocumentLink(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	docID, ok2 := pathID(r, "docId")
	if !ok || !ok2 {
		h.writeError(w, r, badID("id"))
		return
	}
	link, err := h.engine.DocumentLink(r.Context(), id, docID, queryBool(r, "view"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, link)
}

func (h *handlers) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	docID, ok2 := pathID(r, "docId")
	if !ok || !ok2 {
		h.writeError(w, r, badID("id"))
		return
	}
	res, err := h.engine.DeleteDocument(r.Context(), id, docID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *handlers) handleSearchDocuments(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 20)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	hits, err := h.engine.SearchDocuments(r.Context(), r.URL.Query().Get("q"), limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, hits)
}

// handleFile serves a locally stored file named by a signed token.
func (h *handlers) handleFile(w http.ResponseWriter, r *http.Request) {
	files := h.engine.Files()
	claims, err := files.VerifyToken(r.PathValue("token"))
	if err != nil {
		writeJSON(w, http.StatusForbidden, errorBody{Error: errorDetail{
			Kind:    "forbidden",
			Message: "link is invalid or has expired",
		}})
		return
	}
	body, err := files.Get(r.Context(), claims.Key)
	if errors.Is(err, blob.ErrNotExist) {
		h.writeError(w, r, apperr.E(apperr.NotFound, "", "file not found"))
		return
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	defer body.Close()
	serveFile(w, body, claims.Filename, claims.ContentType, 0, claims.Inline)
}
