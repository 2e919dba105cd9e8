package extract_test

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/garnizeh/ats/internal/extract"
)

// buildDocx assembles the minimal package the docx reader needs.
func buildDocx(t *testing.T, body string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	files := map[string]string{
		"[Content_Types].xml":          `<?xml version="1.0" encoding="UTF-8"?><Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types"></Types>`,
		"word/_rels/document.xml.rels": `<?xml version="1.0" encoding="UTF-8"?><Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships"></Relationships>`,
		"word/document.xml":            `<?xml version="1.0" encoding="UTF-8"?><w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` + body + `</w:body></w:document>`,
	}
	for name, content := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("zip create %s: %v", name, err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatalf("zip write %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	return buf.Bytes()
}

func newExtractor(t *testing.T, maxBytes int64) *extract.Extractor {
	t.Helper()
	e, err := extract.New("", maxBytes, nil)
	if err != nil {
		t.Fatalf("extract.New: %v", err)
	}
	return e
}

func TestDetect(t *testing.T) {
	tests := []struct {
		data []byte
		want extract.Format
	}{
		{[]byte("%PDF-1.7\n..."), extract.FormatPDF},
		{[]byte("PK\x03\x04rest"), extract.FormatDOCX},
		{[]byte("plain text"), extract.FormatUnknown},
		{nil, extract.FormatUnknown},
	}
	for _, tt := range tests {
		if got := extract.Detect(tt.data); got != tt.want {
			t.Fatalf("Detect(%q) = %q, want %q", tt.data, got, tt.want)
		}
	}
}

func TestExtract_DOCX(t *testing.T) {
	data := buildDocx(t, `<w:p><w:r><w:t>Jane Doe</w:t></w:r></w:p><w:p><w:r><w:t>Go &amp; SQL</w:t></w:r></w:p>`)

	got, err := newExtractor(t, 0).Extract(context.Background(), data)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if got != "Jane Doe\nGo & SQL" {
		t.Fatalf("unexpected text %q", got)
	}
}

func TestExtract_Errors(t *testing.T) {
	e := newExtractor(t, 16)

	if _, err := e.Extract(context.Background(), []byte("just some text")); !errors.Is(err, extract.ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
	if _, err := e.Extract(context.Background(), bytes.Repeat([]byte("x"), 17)); !errors.Is(err, extract.ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge, got %v", err)
	}
	if _, err := newExtractor(t, 0).Extract(context.Background(), []byte("%PDF-1.4 truncated")); err == nil {
		t.Fatalf("expected error for corrupt pdf")
	}
	if _, err := newExtractor(t, 0).Extract(context.Background(), []byte("PK\x03\x04 not a zip")); err == nil {
		t.Fatalf("expected error for corrupt docx")
	}
}
