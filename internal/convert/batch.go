package convert

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// BatchResult is the outcome for one source file.
type BatchResult struct {
	Source string `json:"source" yaml:"source"`
	Output string `json:"output,omitempty" yaml:"output,omitempty"`
	Error  string `json:"error,omitempty" yaml:"error,omitempty"`
}

// Batch converts every supported file in srcDir into dstDir/<stem>.md. A
// failing file is logged and recorded, and the batch continues. Unsupported
// files are skipped. The returned error is only for directory-level failures
// and cancellation.
func Batch(ctx context.Context, c Converter, srcDir, dstDir string, logger *slog.Logger) ([]BatchResult, error) {
	if logger == nil {
		logger = slog.Default()
	}
	entries, err := os.ReadDir(srcDir)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", srcDir, err)
	}
	if err := os.MkdirAll(dstDir, 0o755); err != nil {
		return nil, fmt.Errorf("create %s: %w", dstDir, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Type().IsRegular() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var results []BatchResult
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		src := filepath.Join(srcDir, name)
		if _, err := Detect(src); err != nil {
			logger.Debug("skipping unsupported file", "file", name)
			continue
		}

		res := BatchResult{Source: src}
		md, err := c.Convert(ctx, src)
		if err == nil {
			res.Output = filepath.Join(dstDir, strings.TrimSuffix(name, filepath.Ext(name))+".md")
			err = os.WriteFile(res.Output, []byte(md), 0o644)
		}
		if err != nil {
			logger.Error("conversion failed", "file", name, "error", err)
			res.Output = ""
			res.Error = err.Error()
		} else {
			logger.Info("converted", "file", name, "output", res.Output)
		}
		results = append(results, res)
	}
	return results, nil
}
