package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/matthewjhunter/dossier/internal/ai"
	"github.com/matthewjhunter/dossier/internal/apperr"
)

// maxJSONBytes bounds request bodies other than uploads.
const maxJSONBytes = 1 << 20

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
	HelpURL string `json:"help_url,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

// writeError renders err as {"error": {kind, message, help_url}}. Provider
// errors carry their own kind and status; unexpected errors are logged and
// hidden behind a generic message.
func (h *handlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var aiErr *ai.Error
	if errors.As(err, &aiErr) {
		h.log.WithError(err).WithField("request_id", requestID(r.Context())).Warn("AI provider error")
		writeJSON(w, aiErr.HTTPStatus(), errorBody{Error: errorDetail{
			Kind:    string(aiErr.Kind),
			Message: aiErr.Message,
			HelpURL: aiErr.HelpURL,
		}})
		return
	}
	var tooBig *http.MaxBytesError
	if errors.As(err, &tooBig) {
		err = apperr.Wrap(apperr.TooLarge, "", fmt.Sprintf("request body exceeds %d bytes", tooBig.Limit), err)
	}

	code := apperr.CodeOf(err)
	if code == apperr.Internal {
		h.log.WithError(err).WithField("request_id", requestID(r.Context())).Error("request failed")
	}
	writeJSON(w, apperr.HTTPStatus(err), errorBody{Error: errorDetail{
		Kind:    string(code),
		Message: apperr.Message(err),
	}})
}

// decodeJSON reads a bounded JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return err
		}
		return apperr.Wrap(apperr.Invalid, "", "invalid JSON body: "+err.Error(), err)
	}
	return nil
}

func badID(name string) error {
	return apperr.E(apperr.Invalid, "", "invalid "+name)
}

// queryInt parses an optional integer query parameter.
func queryInt(r *http.Request, name string, def int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, apperr.E(apperr.Invalid, "", name+" must be an integer")
	}
	return n, nil
}

func queryBool(r *http.Request, name string) bool {
	b, _ := strconv.ParseBool(r.URL.Query().Get(name))
	return b
}
