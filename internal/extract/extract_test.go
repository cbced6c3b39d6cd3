package extract

import (
	"archive/zip"
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		mime     string
		size     int64
		wantErr  error
	}{
		{"pdf", "cv.pdf", "application/pdf", 100, nil},
		{"upper-case ext", "CV.PDF", "application/pdf", 100, nil},
		{"octet stream", "letter.docx", "application/octet-stream", 100, nil},
		{"no declared type", "notes.txt", "", 100, nil},
		{"charset param", "notes.txt", "text/plain; charset=utf-8", 100, nil},
		{"bad ext", "photo.png", "image/png", 100, ErrUnsupportedType},
		{"mismatched mime", "cv.pdf", "text/html", 100, ErrUnsupportedType},
		{"empty", "cv.pdf", "application/pdf", 0, ErrEmpty},
		{"too large", "cv.pdf", "application/pdf", MaxUploadBytes + 1, ErrTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.filename, tt.mime, tt.size, MaxUploadBytes)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "application/pdf", ContentType("a.Pdf"))
	assert.Equal(t, "application/octet-stream", ContentType("a.bin"))
}

func TestTextPlain(t *testing.T) {
	got, err := Text("a.txt", []byte("\xef\xbb\xbf  Senior Go engineer wanted\n"))
	require.NoError(t, err)
	assert.Equal(t, "Senior Go engineer wanted", got)

	_, err = Text("blank.txt", []byte("   \n"))
	assert.ErrorIs(t, err, ErrNoText)
}

func buildDocx(t *testing.T, body string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?>` +
		`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` +
		body + `</w:body></w:document>`))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestTextDocx(t *testing.T) {
	data := buildDocx(t,
		`<w:p><w:r><w:t>Dear hiring</w:t></w:r><w:r><w:t xml:space="preserve"> team,</w:t></w:r></w:p>`+
			`<w:p><w:r><w:t>I build distributed systems.</w:t></w:r></w:p>`)
	got, err := Text("letter.docx", data)
	require.NoError(t, err)
	assert.Equal(t, "Dear hiring team,\nI build distributed systems.", got)
}

func TestForIndexFallsBackToFilename(t *testing.T) {
	text, fallback, err := ForIndex("old-letter.doc", []byte("binary"))
	assert.ErrorIs(t, err, ErrUnsupportedType)
	assert.True(t, fallback)
	assert.Equal(t, "old-letter.doc", text)

	text, fallback, err = ForIndex("broken.pdf", []byte("not a pdf"))
	assert.Error(t, err)
	assert.True(t, fallback)
	assert.Equal(t, "broken.pdf", text)

	text, fallback, err = ForIndex("posting.txt", []byte("kubernetes operator"))
	require.NoError(t, err)
	assert.False(t, fallback)
	assert.Equal(t, "posting.txt\nkubernetes operator", text)
}
