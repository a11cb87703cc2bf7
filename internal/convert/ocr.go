package convert

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/jackzampolin/invex/internal/providers"
)

// OCR converts PDFs and images through an OCR provider, honoring the
// provider's rate and retry settings.
type OCR struct {
	provider providers.OCRProvider
	limiter  *providers.RateLimiter
	logger   *slog.Logger
}

// NewOCR wraps provider.
func NewOCR(provider providers.OCRProvider, logger *slog.Logger) *OCR {
	if logger == nil {
		logger = slog.Default()
	}
	return &OCR{
		provider: provider,
		limiter:  providers.NewRateLimiterPerSecond(provider.RequestsPerSecond()),
		logger:   logger.With("provider", provider.Name()),
	}
}

// Convert implements Converter.
func (o *OCR) Convert(ctx context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	mime := mimeType(path)

	pageCount := 1
	if mime == "application/pdf" {
		pageCount, err = api.PageCount(bytes.NewReader(data), nil)
		if err != nil {
			return "", fmt.Errorf("%s: invalid PDF: %w", filepath.Base(path), err)
		}
		if pageCount == 0 {
			return "", fmt.Errorf("%s: %w", filepath.Base(path), ErrEmpty)
		}
	}

	start := time.Now()
	var result *providers.OCRResult
	err = retry.Do(
		func() error {
			if err := o.limiter.Wait(ctx); err != nil {
				return retry.Unrecoverable(err)
			}
			var err error
			result, err = o.provider.ProcessDocument(ctx, data, mime)
			if rl, ok := providers.IsRateLimitError(err); ok {
				o.limiter.Record429(rl.RetryAfter)
			}
			return err
		},
		retry.Context(ctx),
		retry.Attempts(uint(o.provider.MaxRetries()+1)),
		retry.Delay(o.provider.RetryDelayBase()),
		retry.DelayType(retry.BackOffDelay),
		retry.RetryIf(providers.IsTransport),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			o.logger.Warn("retrying OCR", "file", filepath.Base(path), "retry", n+1, "error", err)
		}),
	)
	if err != nil {
		return "", fmt.Errorf("%s: ocr: %w", filepath.Base(path), err)
	}

	if len(result.Pages) != pageCount {
		o.logger.Warn("OCR page count differs from document",
			"file", filepath.Base(path), "document_pages", pageCount, "ocr_pages", len(result.Pages))
	}
	o.logger.Info("OCR complete",
		"file", filepath.Base(path),
		"pages", len(result.Pages),
		"elapsed_ms", time.Since(start).Milliseconds())

	return nonEmpty(result.Text)
}
