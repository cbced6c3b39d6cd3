package web

import (
	"context"
	"net/http"
	"runtime/debug"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/matthewjhunter/dossier"
)

type ctxKey int

const requestIDKey ctxKey = iota

// requestID returns the id assigned by the logging middleware.
func requestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// pathID parses a positive integer path parameter.
func pathID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// logging tags each request with an X-Request-Id and logs method, path,
// status and duration. 5xx responses log at error level, 4xx at warn.
func logging(log logrus.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			id := r.Header.Get("X-Request-Id")
			if id == "" {
				id = uuid.NewString()
			}
			w.Header().Set("X-Request-Id", id)
			r = r.WithContext(context.WithValue(r.Context(), requestIDKey, id))

			rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rw, r)

			entry := log.WithFields(logrus.Fields{
				"request_id": id,
				"method":     r.Method,
				"path":       r.URL.Path,
				"status":     rw.status,
				"duration":   time.Since(start).Round(time.Millisecond).String(),
			})
			switch {
			case rw.status >= 500:
				entry.Error("request")
			case rw.status >= 400:
				entry.Warn("request")
			default:
				entry.Info("request")
			}
		})
	}
}

// recovery catches panics and returns a 500.
func recovery(log logrus.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.WithFields(logrus.Fields{
						"request_id": requestID(r.Context()),
						"panic":      err,
						"stack":      string(debug.Stack()),
					}).Error("handler panicked")
					writeJSON(w, http.StatusInternalServerError, errorBody{Error: errorDetail{
						Kind:    "internal",
						Message: "internal error",
					}})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// afterWrite mirrors the database after a successful mutating request and
// reports the outcome in X-Dossier-Sync. The upload runs just before the
// status line is written, so the header travels with the response.
func afterWrite(engine *dossier.Engine, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sw := &syncWriter{ResponseWriter: w, ctx: r.Context(), engine: engine}
		next(sw, r)
	}
}

type syncWriter struct {
	http.ResponseWriter
	ctx     context.Context
	engine  *dossier.Engine
	written bool
}

func (sw *syncWriter) WriteHeader(code int) {
	if !sw.written {
		sw.written = true
		if code < 400 {
			sw.Header().Set(syncHeader, sw.engine.AfterWrite(sw.ctx).Header())
		}
	}
	sw.ResponseWriter.WriteHeader(code)
}

func (sw *syncWriter) Write(b []byte) (int, error) {
	if !sw.written {
		sw.WriteHeader(http.StatusOK)
	}
	return sw.ResponseWriter.Write(b)
}

func (sw *syncWriter) Unwrap() http.ResponseWriter { return sw.ResponseWriter }

const syncHeader = "X-Dossier-Sync"

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.status = code
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	rw.wroteHeader = true
	return rw.ResponseWriter.Write(b)
}

// Unwrap lets http.ResponseController reach the underlying Flusher.
func (rw *responseWriter) Unwrap() http.ResponseWriter { return rw.ResponseWriter }
