package dossier

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/matthewjhunter/dossier/internal/storage"
)

// Patch is a partial-update body. Values stay raw so an explicit null can be
// told apart from an absent field.
type Patch map[string]json.RawMessage

func isNull(raw json.RawMessage) bool {
	return len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// patchString decodes a text field. null clears it to "".
func patchString(field string, raw json.RawMessage) (string, error) {
	if isNull(raw) {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", fmt.Errorf("%s must be a string", field)
	}
	return s, nil
}

// patchRequired decodes a text field that may not be cleared.
func patchRequired(field string, raw json.RawMessage) (string, error) {
	s, err := patchString(field, raw)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("%s is required", field)
	}
	return strings.TrimSpace(s), nil
}

// patchDate decodes a nullable calendar date.
func patchDate(field string, raw json.RawMessage) (*storage.Date, error) {
	if isNull(raw) {
		return nil, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("%s must be a date string", field)
	}
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	d, err := storage.ParseDate(s)
	if err != nil {
		return nil, fmt.Errorf("%s: %v", field, err)
	}
	return &d, nil
}

// patchTime decodes a nullable timestamp. A bare date means midnight UTC.
func patchTime(field string, raw json.RawMessage) (*time.Time, error) {
	if isNull(raw) {
		return nil, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("%s must be a timestamp string", field)
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		t = t.UTC()
		return &t, nil
	}
	d, err := storage.ParseDate(s)
	if err != nil {
		return nil, fmt.Errorf("%s must be RFC 3339 or YYYY-MM-DD", field)
	}
	return &d.Time, nil
}

// patchID decodes a nullable integer id.
func patchID(field string, raw json.RawMessage) (*int64, error) {
	if isNull(raw) {
		return nil, nil
	}
	var id int64
	if err := json.Unmarshal(raw, &id); err != nil {
		return nil, fmt.Errorf("%s must be an integer", field)
	}
	return &id, nil
}

// patchInt decodes a non-null integer.
func patchInt(field string, raw json.RawMessage) (int, error) {
	var n int
	if isNull(raw) {
		return 0, fmt.Errorf("%s may not be null", field)
	}
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, fmt.Errorf("%s must be an integer", field)
	}
	return n, nil
}
