package dossier

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/matthewjhunter/dossier/internal/apperr"
	"github.com/matthewjhunter/dossier/internal/blob"
	"github.com/matthewjhunter/dossier/internal/extract"
	"github.com/matthewjhunter/dossier/internal/storage"
)

// MaxUploadBytes is the configured upload ceiling.
func (e *Engine) MaxUploadBytes() int64 {
	if e.cfg.Storage.MaxUploadBytes > 0 {
		return e.cfg.Storage.MaxUploadBytes
	}
	return extract.MaxUploadBytes
}

func (e *Engine) ListDocuments(ctx context.Context, applicationID int64) ([]storage.Document, error) {
	if _, err := e.application(ctx, "list documents", applicationID); err != nil {
		return nil, err
	}
	return e.store.ListDocuments(ctx, applicationID)
}

func (e *Engine) GetDocument(ctx context.Context, applicationID, documentID int64) (*storage.Document, error) {
	d, err := e.store.GetDocument(ctx, applicationID, documentID)
	if err != nil {
		return nil, notFound("get document", "document", err)
	}
	return d, nil
}

// UploadDocument stores the bytes (in the bucket when one is configured,
// else on local disk), records the metadata and indexes the text. Indexing
// is best-effort: a failure leaves the document stored and reports
// Indexed=false. A job_posting upload becomes the application's posting and
// fills an empty job description.
func (e *Engine) UploadDocument(ctx context.Context, applicationID int64, up Upload) (*UploadResult, error) {
	const op = "upload document"
	app, err := e.application(ctx, op, applicationID)
	if err != nil {
		return nil, err
	}
	if up.Kind == "" {
		up.Kind = storage.DocumentKindAttachment
	}
	if up.Kind != storage.DocumentKindAttachment && up.Kind != storage.DocumentKindJobPosting {
		return nil, apperr.E(apperr.Invalid, op, fmt.Sprintf("unknown document kind %q", up.Kind))
	}
	if err := extract.Validate(up.Filename, up.ContentType, int64(len(up.Data)), e.MaxUploadBytes()); err != nil {
		return nil, apperr.Wrap(apperr.Invalid, op, err.Error(), err)
	}

	key := blob.DocumentKey(applicationID, e.now(), up.Filename)
	contentType := extract.ContentType(up.Filename)
	store, path := blob.Store(e.local), blob.TagLocal(key)
	if e.remote != nil {
		store, path = e.remote, key
	}
	if err := store.Put(ctx, key, contentType, bytes.NewReader(up.Data)); err != nil {
		return nil, apperr.Wrap(apperr.Internal, op, "failed to store file", err)
	}

	doc, err := e.store.CreateDocument(ctx, &storage.Document{
		ApplicationID: applicationID,
		Filename:      up.Filename,
		StoragePath:   path,
		MimeType:      contentType,
		Size:          int64(len(up.Data)),
		Kind:          up.Kind,
	})
	if err != nil {
		if derr := store.Delete(ctx, key); derr != nil {
			e.log.WithError(derr).WithField("key", key).Warn("failed to remove orphaned file")
		}
		return nil, err
	}

	res := &UploadResult{Document: *doc, StoredRemotely: e.remote != nil}
	text, fallback, xerr := extract.ForIndex(up.Filename, up.Data)
	if xerr != nil {
		e.log.WithError(xerr).WithField("filename", up.Filename).Debug("indexing filename only")
	}
	res.IndexFallback = fallback
	if err := e.store.IndexDocument(ctx, doc.ID, applicationID, up.Filename, text); err != nil {
		e.log.WithError(err).WithField("document_id", doc.ID).Warn("failed to index document")
	} else {
		res.Indexed = true
	}

	if up.Kind == storage.DocumentKindJobPosting {
		fields := map[string]any{"job_document_id": doc.ID}
		if strings.TrimSpace(app.JobDescription) == "" && !fallback {
			fields["job_description"] = strings.TrimPrefix(text, up.Filename+"\n")
		}
		if _, err := e.store.UpdateApplication(ctx, applicationID, fields); err != nil {
			e.log.WithError(err).WithField("application_id", applicationID).Warn("failed to link job posting")
		}
	}
	return res, nil
}

// OpenDocument returns a reader for a locally stored document. Documents in
// the bucket are served through signed links instead; for those the reader
// is nil and remote is true.
func (e *Engine) OpenDocument(ctx context.Context, applicationID, documentID int64) (doc *storage.Document, r io.ReadCloser, remote bool, err error) {
	const op = "open document"
	doc, err = e.GetDocument(ctx, applicationID, documentID)
	if err != nil {
		return nil, nil, false, err
	}
	key, local := blob.ParsePath(doc.StoragePath)
	if !local {
		return doc, nil, true, nil
	}
	r, err = e.local.Get(ctx, key)
	if errors.Is(err, blob.ErrNotExist) {
		return nil, nil, false, apperr.E(apperr.NotFound, op, "file is missing from storage")
	}
	if err != nil {
		return nil, nil, false, err
	}
	return doc, r, false, nil
}

// DocumentLink issues a time-limited download URL: a V4 signed URL for
// bucket objects, a signed /files/{token} URL for local files.
func (e *Engine) DocumentLink(ctx context.Context, applicationID, documentID int64, inline bool) (*DocumentLink, error) {
	const op = "link document"
	doc, err := e.GetDocument(ctx, applicationID, documentID)
	if err != nil {
		return nil, err
	}
	ttl := e.cfg.Storage.SignedURLTTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	opts := blob.SignOptions{TTL: ttl, Filename: doc.Filename, ContentType: doc.MimeType, Inline: inline}

	key, local := blob.ParsePath(doc.StoragePath)
	var signer blob.Signer = e.local
	if !local {
		s, ok := e.remote.(blob.Signer)
		if e.remote == nil || !ok {
			return nil, apperr.E(apperr.Unavailable, op, "cloud storage is not configured")
		}
		signer = s
	}
	url, err := signer.SignedURL(ctx, key, opts)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, op, "failed to sign URL", err)
	}
	return &DocumentLink{URL: url, ExpiresAt: e.now().Add(ttl).UTC(), Remote: !local}, nil
}

// DeleteDocument removes the metadata row, the file and the index row, in
// that order. A failure to delete the metadata fails the call; the other two
// are best-effort and reported in the result.
func (e *Engine) DeleteDocument(ctx context.Context, applicationID, documentID int64) (*DocumentDeleteResult, error) {
	const op = "delete document"
	doc, err := e.GetDocument(ctx, applicationID, documentID)
	if err != nil {
		return nil, err
	}
	if err := e.store.DeleteDocument(ctx, applicationID, documentID); err != nil {
		return nil, notFound(op, "document", err)
	}

	res := &DocumentDeleteResult{}
	if removed, err := e.deleteBytes(ctx, doc.StoragePath); err != nil {
		e.log.WithError(err).WithField("path", doc.StoragePath).Warn("failed to remove document file")
	} else {
		res.FileRemoved = removed
	}
	if removed, err := e.store.RemoveDocumentIndex(ctx, documentID); err != nil {
		e.log.WithError(err).WithField("document_id", documentID).Warn("failed to remove index row")
	} else {
		res.IndexRemoved = removed
	}

	app, err := e.store.GetApplication(ctx, applicationID)
	if err == nil && app.JobDocumentID != nil && *app.JobDocumentID == documentID {
		if _, err := e.store.UpdateApplication(ctx, applicationID, map[string]any{"job_document_id": nil}); err != nil {
			e.log.WithError(err).WithField("application_id", applicationID).Warn("failed to unlink job posting")
		}
	}
	return res, nil
}

// deleteBytes removes a stored file and reports whether it existed.
func (e *Engine) deleteBytes(ctx context.Context, path string) (bool, error) {
	key, local := blob.ParsePath(path)
	var store blob.Store = e.local
	if !local {
		if e.remote == nil {
			return false, apperr.E(apperr.Unavailable, "delete file", "cloud storage is not configured")
		}
		store = e.remote
	}
	err := store.Delete(ctx, key)
	if errors.Is(err, blob.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (e *Engine) readDocument(ctx context.Context, doc storage.Document) ([]byte, error) {
	key, local := blob.ParsePath(doc.StoragePath)
	var store blob.Store = e.local
	if !local {
		if e.remote == nil {
			return nil, apperr.E(apperr.Unavailable, "read file", "cloud storage is not configured")
		}
		store = e.remote
	}
	r, err := store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(io.LimitReader(r, e.MaxUploadBytes()+1))
}

// SearchDocuments runs a ranked full-text search across all documents.
func (e *Engine) SearchDocuments(ctx context.Context, query string, limit int) ([]storage.SearchHit, error) {
	if strings.TrimSpace(query) == "" {
		return nil, apperr.E(apperr.Invalid, "search documents", "q is required")
	}
	if limit > 100 {
		limit = 100
	}
	return e.store.SearchDocuments(ctx, query, limit)
}

// Reindex recreates the search table when it is missing, then indexes every
// document without a row. With full set, the table is dropped first so every
// document is re-extracted. Files that cannot be read or parsed are indexed
// by filename.
func (e *Engine) Reindex(ctx context.Context, full bool) (*ReindexResult, error) {
	if full {
		if err := e.store.DropSearchIndex(ctx); err != nil {
			return nil, fmt.Errorf("drop search index: %w", err)
		}
	}
	created, err := e.store.EnsureSearchIndex(ctx)
	if err != nil {
		return nil, err
	}
	docs, err := e.store.UnindexedDocuments(ctx)
	if err != nil {
		return nil, err
	}

	res := &ReindexResult{IndexCreated: created, Scanned: len(docs)}
	for _, d := range docs {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		log := e.log.WithField("document_id", d.ID)

		text, fallback := d.Filename, true
		data, err := e.readDocument(ctx, d)
		if err != nil {
			log.WithError(err).Warn("failed to read document; indexing filename only")
		} else {
			var xerr error
			text, fallback, xerr = extract.ForIndex(d.Filename, data)
			if xerr != nil {
				log.WithError(xerr).Debug("indexing filename only")
			}
		}

		if err := e.store.IndexDocument(ctx, d.ID, d.ApplicationID, d.Filename, text); err != nil {
			log.WithError(err).Warn("failed to index document")
			res.Failed++
			continue
		}
		res.Indexed++
		if fallback {
			res.Fallback++
		}
	}
	e.log.WithFields(logrus.Fields{
		"scanned":  res.Scanned,
		"indexed":  res.Indexed,
		"fallback": res.Fallback,
		"failed":   res.Failed,
	}).Info("search index rebuilt")
	return res, nil
}
