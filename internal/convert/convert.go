// Package convert turns source documents into the markdown the extractors
// read: markdown and text pass through, HTML is sanitized and converted
// locally, and PDFs and images go through an OCR provider.
package convert

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/microcosm-cc/bluemonday"

	"github.com/jackzampolin/invex/internal/providers"
)

var (
	// ErrUnsupported is returned for file types no converter handles.
	ErrUnsupported = errors.New("unsupported document type")
	// ErrEmpty is returned when a conversion produced no text.
	ErrEmpty = errors.New("conversion produced no content")
)

// Converter produces markdown from a document on disk.
type Converter interface {
	Convert(ctx context.Context, path string) (string, error)
}

// Format is a source document family.
type Format string

const (
	FormatMarkdown Format = "markdown"
	FormatHTML     Format = "html"
	FormatPDF      Format = "pdf"
	FormatImage    Format = "image"
)

// Detect returns the format for path based on its extension.
func Detect(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown", ".txt", ".text":
		return FormatMarkdown, nil
	case ".html", ".htm":
		return FormatHTML, nil
	case ".pdf":
		return FormatPDF, nil
	case ".png", ".jpg", ".jpeg", ".tif", ".tiff", ".webp":
		return FormatImage, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupported, filepath.Ext(path))
}

// mimeType maps an OCR-bound file to the type sent to the provider.
func mimeType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return "application/pdf"
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".tif", ".tiff":
		return "image/tiff"
	case ".webp":
		return "image/webp"
	}
	return "application/octet-stream"
}

// Text passes markdown and plain text through unchanged.
type Text struct{}

// Convert implements Converter.
func (Text) Convert(ctx context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return nonEmpty(string(data))
}

// HTML sanitizes a page and converts it to markdown.
type HTML struct {
	policy *bluemonday.Policy
}

// NewHTML creates an HTML converter. Scripts, styles and event handlers are
// stripped before conversion.
func NewHTML() *HTML {
	return &HTML{policy: bluemonday.UGCPolicy()}
}

// Convert implements Converter.
func (h *HTML) Convert(ctx context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return h.ConvertString(string(data))
}

// ConvertString converts an HTML document held in memory.
func (h *HTML) ConvertString(html string) (string, error) {
	md, err := htmltomarkdown.ConvertString(h.policy.Sanitize(html))
	if err != nil {
		return "", fmt.Errorf("convert html: %w", err)
	}
	return nonEmpty(md)
}

// Router dispatches by file extension.
type Router struct {
	text   Converter
	html   Converter
	ocr    Converter // nil when no OCR provider is configured
	logger *slog.Logger
}

// RouterConfig configures a Router.
type RouterConfig struct {
	OCR    providers.OCRProvider // optional; PDFs and images fail without it
	Logger *slog.Logger
}

// NewRouter creates a Router.
func NewRouter(cfg RouterConfig) *Router {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	r := &Router{
		text:   Text{},
		html:   NewHTML(),
		logger: logger,
	}
	if cfg.OCR != nil {
		r.ocr = NewOCR(cfg.OCR, logger)
	}
	return r
}

// Convert implements Converter.
func (r *Router) Convert(ctx context.Context, path string) (string, error) {
	format, err := Detect(path)
	if err != nil {
		return "", err
	}
	r.logger.Debug("converting document", "file", filepath.Base(path), "format", format)

	switch format {
	case FormatMarkdown:
		return r.text.Convert(ctx, path)
	case FormatHTML:
		return r.html.Convert(ctx, path)
	default:
		if r.ocr == nil {
			return "", fmt.Errorf("%s: no OCR provider configured for %s documents", filepath.Base(path), format)
		}
		return r.ocr.Convert(ctx, path)
	}
}

func nonEmpty(md string) (string, error) {
	md = strings.TrimSpace(md)
	if md == "" {
		return "", ErrEmpty
	}
	return md + "\n", nil
}
