// Package blob stores document bytes and the database file, either on local
// disk or in a Google Cloud Storage bucket.
package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// ErrNotExist is returned when an object is missing.
var ErrNotExist = errors.New("blob: object does not exist")

// Store reads and writes objects by key.
type Store interface {
	Put(ctx context.Context, key, contentType string, r io.Reader) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	List(ctx context.Context, prefix string) ([]Object, error)
	Name() string
}

// Signer issues time-limited download URLs.
type Signer interface {
	SignedURL(ctx context.Context, key string, opts SignOptions) (string, error)
}

// SignOptions controls a signed URL.
type SignOptions struct {
	TTL         time.Duration
	Filename    string
	ContentType string
	Inline      bool
}

// Object describes a stored object.
type Object struct {
	Key     string    `json:"key"`
	Size    int64     `json:"size"`
	Updated time.Time `json:"updated"`
}

// LocalPrefix tags storage paths that live on local disk.
const LocalPrefix = "local:"

// DocumentKey returns the object key for an uploaded document.
func DocumentKey(applicationID int64, at time.Time, filename string) string {
	return fmt.Sprintf("application-documents/%d/%d_%s", applicationID, at.UnixMilli(), SanitizeFilename(filename))
}

// PromptKey returns the object key that mirrors a prompt template.
func PromptKey(name string) string {
	return "prompts/" + SanitizeFilename(name) + ".txt"
}

// TagLocal marks key as stored on local disk.
func TagLocal(key string) string {
	return LocalPrefix + key
}

// ParsePath splits a stored path into its key and whether it is local.
func ParsePath(path string) (key string, local bool) {
	if strings.HasPrefix(path, LocalPrefix) {
		return strings.TrimPrefix(path, LocalPrefix), true
	}
	return path, false
}

// stripMarks builds a new chain per call. Chains keep buffer state.
func stripMarks() transform.Transformer {
	return transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
}

// SanitizeFilename reduces name to ASCII letters, digits, dot, dash and
// underscore, folding accented letters to their base form.
func SanitizeFilename(name string) string {
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	folded, _, err := transform.String(stripMarks(), name)
	if err != nil {
		folded = name
	}

	var b strings.Builder
	lastUnderscore := false
	for _, r := range folded {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r) || r == '.' || r == '-'):
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}

	out := strings.Trim(b.String(), "._")
	if len(out) > 120 {
		out = out[len(out)-120:]
	}
	if out == "" {
		return "file"
	}
	return out
}
