// Package extract turns resume documents into plain text.
package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/nguyenthenguyen/docx"
	"github.com/unidoc/unipdf/v3/common/license"
	"github.com/unidoc/unipdf/v3/extractor"
	"github.com/unidoc/unipdf/v3/model"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported document format")
	ErrTooLarge          = errors.New("document too large")
)

// Format is a detected document type.
type Format string

const (
	FormatUnknown Format = ""
	FormatPDF     Format = "pdf"
	FormatDOCX    Format = "docx"
)

// Detect sniffs the document type from its leading bytes.
func Detect(data []byte) Format {
	switch {
	case bytes.HasPrefix(data, []byte("%PDF-")):
		return FormatPDF
	case bytes.HasPrefix(data, []byte("PK\x03\x04")):
		return FormatDOCX
	}
	return FormatUnknown
}

// Extractor reads PDF and DOCX resumes. Encrypted PDFs yield empty text.
type Extractor struct {
	maxBytes int64
	logger   *slog.Logger
}

// New configures the PDF library license when licenseKey is set.
func New(licenseKey string, maxBytes int64, logger *slog.Logger) (*Extractor, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if licenseKey != "" {
		if err := license.SetMeteredKey(licenseKey); err != nil {
			return nil, fmt.Errorf("set unidoc license: %w", err)
		}
	}
	return &Extractor{maxBytes: maxBytes, logger: logger}, nil
}

// Extract returns the plain text of data.
func (e *Extractor) Extract(ctx context.Context, data []byte) (string, error) {
	if e.maxBytes > 0 && int64(len(data)) > e.maxBytes {
		return "", fmt.Errorf("%d bytes: %w", len(data), ErrTooLarge)
	}

	switch Detect(data) {
	case FormatPDF:
		return e.pdf(ctx, data)
	case FormatDOCX:
		return e.docx(data)
	}
	return "", ErrUnsupportedFormat
}

func (e *Extractor) pdf(ctx context.Context, data []byte) (string, error) {
	reader, err := model.NewPdfReader(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("read pdf: %w", err)
	}

	encrypted, err := reader.IsEncrypted()
	if err != nil {
		return "", fmt.Errorf("check encryption: %w", err)
	}
	if encrypted {
		ok, err := reader.Decrypt([]byte(""))
		if err != nil || !ok {
			e.logger.Warn("pdf is encrypted, cannot extract text")
			return "", nil
		}
	}

	numPages, err := reader.GetNumPages()
	if err != nil {
		return "", fmt.Errorf("get page count: %w", err)
	}

	var sb strings.Builder
	for i := 1; i <= numPages; i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		page, err := reader.GetPage(i)
		if err != nil {
			return "", fmt.Errorf("get page %d: %w", i, err)
		}
		ex, err := extractor.New(page)
		if err != nil {
			return "", fmt.Errorf("page %d extractor: %w", i, err)
		}
		text, err := ex.ExtractText()
		if err != nil {
			return "", fmt.Errorf("extract page %d: %w", i, err)
		}
		sb.WriteString(text)
		sb.WriteString("\n")
	}

	return strings.TrimSpace(sb.String()), nil
}

var (
	paragraphEnd = regexp.MustCompile(`</w:p>`)
	xmlTag       = regexp.MustCompile(`<[^>]+>`)
	blankLines   = regexp.MustCompile(`\n{3,}`)
)

func (e *Extractor) docx(data []byte) (string, error) {
	r, err := docx.ReadDocxFromMemory(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("read docx: %w", err)
	}
	defer r.Close()

	content := r.Editable().GetContent()
	content = paragraphEnd.ReplaceAllString(content, "\n")
	content = xmlTag.ReplaceAllString(content, "")
	content = blankLines.ReplaceAllString(content, "\n\n")

	return strings.TrimSpace(unescapeXML(content)), nil
}

var xmlEntities = strings.NewReplacer("&amp;", "&", "&lt;", "<", "&gt;", ">", "&quot;", `"`, "&apos;", "'")

func unescapeXML(s string) string { return xmlEntities.Replace(s) }
