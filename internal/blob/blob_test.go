package blob

import (
	"context"
	"io"
	"net/url"
	"path"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"résumé.pdf", "resume.pdf"},
		{"Cover Letter (final).docx", "Cover_Letter_final_.docx"},
		{"../../etc/passwd", "passwd"},
		{`C:\Users\me\cv.txt`, "cv.txt"},
		{"日本語.txt", "txt"},
		{"", "file"},
		{"...", "file"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SanitizeFilename(tt.in), tt.in)
	}
}

func TestSanitizeFilenameConcurrent(t *testing.T) {
	names := []string{
		"Lebenslauf Müller.pdf",
		"résumé-final-version-with-a-much-longer-name-than-usual.docx",
		"naïve café notes.txt",
		"plain.txt",
	}
	want := make([]string, len(names))
	for i, n := range names {
		want[i] = SanitizeFilename(n)
	}

	var wg sync.WaitGroup
	errs := make(chan string, 16)
	for g := 0; g < 16; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				k := (g + i) % len(names)
				if got := SanitizeFilename(names[k]); got != want[k] {
					errs <- got
					return
				}
			}
		}(g)
	}
	wg.Wait()
	close(errs)
	for got := range errs {
		t.Errorf("concurrent SanitizeFilename produced %q", got)
	}
}

func TestDocumentKey(t *testing.T) {
	at := time.UnixMilli(1700000000123)
	assert.Equal(t, "application-documents/42/1700000000123_Lebenslauf_Muller.pdf",
		DocumentKey(42, at, "Lebenslauf Müller.pdf"))
}

func TestParsePath(t *testing.T) {
	key, local := ParsePath(TagLocal("application-documents/1/x.txt"))
	assert.True(t, local)
	assert.Equal(t, "application-documents/1/x.txt", key)

	key, local = ParsePath("application-documents/1/x.txt")
	assert.False(t, local)
	assert.Equal(t, "application-documents/1/x.txt", key)
}

func TestLocalPutGetDeleteList(t *testing.T) {
	l, err := NewLocal(t.TempDir(), []byte("secret"), "http://localhost:8080")
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, l.Put(ctx, "a/b/c.txt", "text/plain", strings.NewReader("hello")))
	require.NoError(t, l.Put(ctx, "a/d.txt", "text/plain", strings.NewReader("x")))

	rc, err := l.Get(ctx, "a/b/c.txt")
	require.NoError(t, err)
	data, _ := io.ReadAll(rc)
	rc.Close()
	assert.Equal(t, "hello", string(data))

	objs, err := l.List(ctx, "a/b/")
	require.NoError(t, err)
	require.Len(t, objs, 1)
	assert.Equal(t, "a/b/c.txt", objs[0].Key)
	assert.Equal(t, int64(5), objs[0].Size)

	require.NoError(t, l.Delete(ctx, "a/b/c.txt"))
	assert.ErrorIs(t, l.Delete(ctx, "a/b/c.txt"), ErrNotExist)
	_, err = l.Get(ctx, "a/b/c.txt")
	assert.ErrorIs(t, err, ErrNotExist)

	assert.Error(t, l.Put(ctx, "../escape.txt", "text/plain", strings.NewReader("x")))
}

func TestLocalSignedURL(t *testing.T) {
	l, err := NewLocal(t.TempDir(), []byte("secret"), "http://localhost:8080/")
	require.NoError(t, err)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	signed, err := l.SignedURL(context.Background(), "application-documents/1/x.pdf", SignOptions{
		TTL: time.Minute, Filename: "x.pdf", Inline: true,
	})
	require.NoError(t, err)

	u, err := url.Parse(signed)
	require.NoError(t, err)
	assert.Equal(t, "/files", path.Dir(u.Path))
	token := path.Base(u.Path)

	claims, err := l.VerifyToken(token)
	require.NoError(t, err)
	assert.Equal(t, "application-documents/1/x.pdf", claims.Key)
	assert.True(t, claims.Inline)

	now = now.Add(2 * time.Minute)
	_, err = l.VerifyToken(token)
	assert.Error(t, err, "expired token is rejected")

	other, err := NewLocal(t.TempDir(), []byte("different"), "")
	require.NoError(t, err)
	other.now = l.now
	now = now.Add(-2 * time.Minute)
	_, err = other.VerifyToken(token)
	assert.Error(t, err, "token signed with another key is rejected")
}
