package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/invex/internal/convert"
	"github.com/jackzampolin/invex/internal/output"
	"github.com/jackzampolin/invex/internal/providers"
)

var convertOutDir string

var convertCmd = &cobra.Command{
	Use:   "convert [file...]",
	Short: "Convert documents to markdown",
	Long: `Convert documents to the markdown the extractors read.

Markdown and text pass through, HTML is sanitized and converted locally, and
PDFs and images are sent to the configured OCR provider (ocr.api_key must be
set). With no arguments every supported file in docs/ is converted. Output
goes to outputs/<name>.md unless --out is given. A failing file is reported
and the rest are still converted.

Examples:
  invex convert                      # docs/* -> outputs/*.md
  invex convert ~/scans/invoice.pdf  # one file
  invex convert page.html --out .`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		e, err := loadEnv()
		if err != nil {
			return err
		}
		dst := convertOutDir
		if dst == "" {
			dst = e.home.OutputsDir()
		}
		router := newRouter(e)

		var results []convert.BatchResult
		if len(args) == 0 {
			if results, err = convert.Batch(ctx, router, e.home.DocsDir(), dst, e.logger); err != nil {
				return err
			}
		} else {
			if err := os.MkdirAll(dst, 0o755); err != nil {
				return err
			}
			for _, src := range args {
				if err := ctx.Err(); err != nil {
					return err
				}
				results = append(results, convertOne(cmd, router, src, dst))
			}
		}

		if structured() {
			if err := output.Write(cmd.OutOrStdout(), format, results); err != nil {
				return err
			}
		} else {
			records := make([][]string, len(results))
			for i, r := range results {
				status := "ok"
				if r.Error != "" {
					status = r.Error
				}
				records[i] = []string{r.Source, r.Output, status}
			}
			output.WriteRecords(cmd.OutOrStdout(), []string{"Source", "Output", "Status"}, records)
		}

		failed := 0
		for _, r := range results {
			if r.Error != "" {
				failed++
			}
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d documents failed to convert", failed, len(results))
		}
		return nil
	},
}

func init() {
	convertCmd.Flags().StringVar(&convertOutDir, "out", "", "output directory (default: <home>/outputs)")
	rootCmd.AddCommand(convertCmd)
}

func convertOne(cmd *cobra.Command, c convert.Converter, src, dst string) convert.BatchResult {
	res := convert.BatchResult{Source: src}
	md, err := c.Convert(cmd.Context(), src)
	if err == nil {
		name := filepath.Base(src)
		res.Output = filepath.Join(dst, strings.TrimSuffix(name, filepath.Ext(name))+".md")
		err = os.WriteFile(res.Output, []byte(md), 0o644)
	}
	if err != nil {
		res.Output = ""
		res.Error = err.Error()
	}
	return res
}

// newRouter builds the converter. OCR is only available when the provider
// is configured with an API key.
func newRouter(e *env) *convert.Router {
	cfg := convert.RouterConfig{Logger: e.logger}
	ocr, err := providers.NewOCRProvider(e.cfg.OCRProviderConfig())
	if err != nil {
		e.logger.Debug("OCR disabled", "error", err)
	} else {
		cfg.OCR = ocr
	}
	return convert.NewRouter(cfg)
}
