// Package extract validates uploaded documents and pulls plain text out of
// them for the search index.
package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/gen2brain/go-fitz"
)

// MaxUploadBytes is the default upload ceiling.
const MaxUploadBytes = 10 << 20

var (
	ErrUnsupportedType = errors.New("unsupported file type")
	ErrTooLarge        = errors.New("file too large")
	ErrEmpty           = errors.New("file is empty")
	ErrNoText          = errors.New("no text extracted")
)

// allowed maps each accepted extension to the MIME types a client may
// declare for it.
var allowed = map[string][]string{
	".pdf":  {"application/pdf"},
	".txt":  {"text/plain"},
	".docx": {"application/vnd.openxmlformats-officedocument.wordprocessingml.document"},
	".doc":  {"application/msword"},
}

// Validate checks the extension, declared MIME type and size of an upload.
// Generic application/octet-stream is accepted for any allowed extension.
func Validate(filename, declared string, size, max int64) error {
	ext := strings.ToLower(filepath.Ext(filename))
	types, ok := allowed[ext]
	if !ok {
		return fmt.Errorf("%w: %q (allowed: pdf, txt, docx, doc)", ErrUnsupportedType, ext)
	}
	if size == 0 {
		return ErrEmpty
	}
	if max > 0 && size > max {
		return fmt.Errorf("%w: %d bytes exceeds %d", ErrTooLarge, size, max)
	}

	mt := declared
	if parsed, _, err := mime.ParseMediaType(declared); err == nil {
		mt = parsed
	}
	if mt == "" || mt == "application/octet-stream" {
		return nil
	}
	for _, t := range types {
		if mt == t {
			return nil
		}
	}
	return fmt.Errorf("%w: %s declared as %s", ErrUnsupportedType, ext, mt)
}

// ContentType returns the canonical MIME type for filename.
func ContentType(filename string) string {
	if types, ok := allowed[strings.ToLower(filepath.Ext(filename))]; ok {
		return types[0]
	}
	return "application/octet-stream"
}

// Text extracts plain text from a document.
func Text(filename string, data []byte) (string, error) {
	var (
		text string
		err  error
	)
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".txt":
		text = plainText(data)
	case ".pdf":
		text, err = pdfText(data)
	case ".docx":
		text, err = docxText(data)
	default:
		return "", fmt.Errorf("%w: no text extractor for %s", ErrUnsupportedType, filename)
	}
	if err != nil {
		return "", err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrNoText
	}
	return text, nil
}

// ForIndex returns the text to index for a document. When extraction fails
// or yields nothing the filename is indexed instead, so the document stays
// findable by name; fallback reports that case.
func ForIndex(filename string, data []byte) (text string, fallback bool, err error) {
	text, err = Text(filename, data)
	if err != nil {
		return filename, true, err
	}
	return filename + "\n" + text, false, nil
}

func plainText(data []byte) string {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if utf8.Valid(data) {
		return string(data)
	}
	return strings.ToValidUTF8(string(data), "")
}

func pdfText(data []byte) (string, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return "", fmt.Errorf("failed to open PDF: %w", err)
	}
	defer doc.Close()

	var b strings.Builder
	for n := 0; n < doc.NumPage(); n++ {
		page, err := doc.Text(n)
		if err != nil {
			return "", fmt.Errorf("page %d: %w", n+1, err)
		}
		page = strings.TrimSpace(page)
		if page == "" {
			continue
		}
		b.WriteString(page)
		b.WriteString("\n\n")
	}
	return b.String(), nil
}

// docxText reads word/document.xml and joins the text runs, one line per
// paragraph.
func docxText(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to open DOCX: %w", err)
	}
	var doc *zip.File
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			doc = f
			break
		}
	}
	if doc == nil {
		return "", errors.New("DOCX has no word/document.xml")
	}
	rc, err := doc.Open()
	if err != nil {
		return "", fmt.Errorf("failed to read DOCX body: %w", err)
	}
	defer rc.Close()

	var b strings.Builder
	dec := xml.NewDecoder(rc)
	inText := false
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("failed to parse DOCX body: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				b.WriteByte('\t')
			case "br", "cr":
				b.WriteByte('\n')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				b.WriteByte('\n')
			}
		case xml.CharData:
			if inText {
				b.Write(t)
			}
		}
	}
	return b.String(), nil
}
