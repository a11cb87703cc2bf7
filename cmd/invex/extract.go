package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/invex/internal/consistency"
	"github.com/jackzampolin/invex/internal/extract"
	"github.com/jackzampolin/invex/internal/interactive"
	"github.com/jackzampolin/invex/internal/llmcall"
	"github.com/jackzampolin/invex/internal/output"
	"github.com/jackzampolin/invex/internal/prompts/extraction"
	"github.com/jackzampolin/invex/internal/providers"
	"github.com/jackzampolin/invex/internal/runner"
)

var extractOpts extractFlags

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Run an extraction N times and report field agreement",
	Long: `Run an extraction N times and report, per field, the most common value
and how often the runs agreed on it.

Selections missing from the command line are asked for when stdin is a
terminal, with the configured defaults pre-selected; otherwise the defaults
are used. --model and --extractor may be repeated to compare every
combination in one invocation.

The command exits non-zero when every run of any combination failed. Low
agreement is reported but is not a failure. An interrupted batch reports the
runs that completed, marked as interrupted, and exits non-zero.

Examples:
  invex extract                                   # interactive
  invex extract --doc invoice --schema invoice -n 10 --yes
  invex extract --doc invoice -m gpt4o -m gpt4o-mini -x json_mode -x function_call
  invex extract --doc invoice -o json > report.json
  invex extract --doc invoice -m gpt4o -m gpt4o-mini --xlsx compare.xlsx`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		e, err := loadEnv()
		if err != nil {
			return err
		}

		r := &resolver{env: e, flags: extractOpts}
		if !extractOpts.noInput && interactive.IsTerminal(os.Stdin) {
			r.p = interactive.New(cmd.InOrStdin(), cmd.ErrOrStderr())
		}
		s, err := r.resolve(ctx)
		if errors.Is(err, errAborted) {
			fmt.Fprintln(cmd.ErrOrStderr(), "Extraction cancelled.")
			return nil
		}
		if err != nil {
			return err
		}
		return runExtraction(cmd, e, s)
	},
}

func init() {
	f := extractCmd.Flags()
	f.StringVarP(&extractOpts.doc, "doc", "d", "", "markdown document (name in outputs/ or a path; other formats are converted first)")
	f.StringVarP(&extractOpts.schema, "schema", "s", "", "extraction schema (name in schemas/ or a path)")
	f.StringVar(&extractOpts.outputSchema, "output-schema", "", "output schema (name in output_schemas/ or a path)")
	f.StringSliceVarP(&extractOpts.models, "model", "m", nil, "model key from the config (repeatable)")
	f.StringSliceVarP(&extractOpts.extractors, "extractor", "x", nil, "extractor key or strategy name (repeatable)")
	f.IntVarP(&extractOpts.runs, "runs", "n", 0, "number of runs per combination (default from config)")
	f.IntVar(&extractOpts.concurrency, "concurrency", 0, "maximum runs in flight (default from config)")
	f.DurationVar(&extractOpts.timeout, "timeout", 0, "timeout per run, including retries (default from config)")
	f.BoolVarP(&extractOpts.yes, "yes", "y", false, "skip the confirmation panel")
	f.BoolVar(&extractOpts.noInput, "no-input", false, "never prompt; use flags and config defaults")
	f.BoolVar(&extractOpts.save, "save", false, "also write each report as JSON under reports/")
	f.StringVar(&extractOpts.xlsx, "xlsx", "", "also write every report to this Excel workbook")
	f.BoolVar(&extractOpts.noCallLog, "no-call-log", false, "do not append model calls to api_calls.jsonl")

	rootCmd.AddCommand(extractCmd)
}

func runExtraction(cmd *cobra.Command, e *env, s *session) error {
	client, err := providers.NewLLMClient(e.cfg.LLMClientConfig())
	if err != nil {
		return err
	}
	return extractAll(cmd.Context(), cmd.OutOrStdout(), e, s, client)
}

// extractAll runs every model and extractor combination of s through one
// runner, so the rate limit holds across combinations. A cancelled batch
// still reports the runs that completed before it stops.
func extractAll(ctx context.Context, w io.Writer, e *env, s *session, client providers.LLMClient) error {
	logger := e.logger.With("session", s.ID)

	prompts := extraction.NewResolver(logger)
	if err := e.cfg.ApplyPrompts(prompts, e.configDir()); err != nil {
		return err
	}

	var recorder *llmcall.Recorder
	if s.RecordCalls {
		var err error
		if recorder, err = llmcall.OpenRecorder(e.home.CallLogPath(), logger); err != nil {
			return err
		}
		defer recorder.Close()
	}

	base := runner.New(s.Runner, logger)
	var (
		reports   []output.Rendered
		interrupt error
	)
	failed, total := 0, len(s.Models)*len(s.Extractors)
combos:
	for _, m := range s.Models {
		for _, x := range s.Extractors {
			ex, err := extract.New(x.Kind, client, extract.WithLogger(logger), extract.WithPrompts(prompts))
			if err != nil {
				return err
			}
			r := base
			if recorder != nil {
				r = base.WithObserver(recorder.Observer(llmcall.RecordOptions{
					Session:     s.ID,
					Document:    filepath.Base(s.DocPath),
					Schema:      filepath.Base(s.SchemaPath),
					Temperature: m.Temperature,
				}))
			}

			results, err := r.Run(ctx, ex, s.Doc, s.Schema, m, s.Runs)
			if err != nil && ctx.Err() == nil {
				return err
			}
			if err != nil {
				interrupt = fmt.Errorf("interrupted after %d of %d runs (%s / %s): %w", len(results), s.Runs, m.Key, x.Kind, err)
				if len(results) == 0 {
					break combos
				}
			}

			report, aerr := consistency.Aggregate(results, s.Schema)
			if aerr != nil {
				return aerr
			}
			rendered := output.Format(report, s.Output)
			rendered.Model = m.Key
			rendered.Extractor = string(x.Kind)
			rendered.Interrupted = interrupt != nil

			if err := emitReport(w, rendered, total > 1); err != nil {
				return err
			}
			reports = append(reports, rendered)
			if s.SaveReports {
				if err := saveReport(e, s, rendered); err != nil {
					return err
				}
			}
			if interrupt != nil {
				break combos
			}
			if report.Failed() {
				failed++
				logger.Error("every run failed",
					"model", m.Key,
					"extractor", x.Kind,
					"errors_by_kind", report.ErrorsByKind)
			}
		}
	}

	if s.Workbook != "" && len(reports) > 0 {
		if err := saveWorkbook(e, s.Workbook, reports); err != nil {
			return err
		}
	}
	if structured() && len(reports) > 0 {
		var data any = reports
		if len(reports) == 1 {
			data = reports[0]
		}
		if err := output.Write(w, format, data); err != nil {
			return err
		}
	}
	if interrupt != nil {
		return interrupt
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d combinations failed every run", failed, total)
	}
	return nil
}

// emitReport prints a table as soon as a combination finishes. Structured
// output is written once at the end so it stays a single document.
func emitReport(w io.Writer, r output.Rendered, separate bool) error {
	if structured() {
		return nil
	}
	if separate {
		fmt.Fprintln(w)
	}
	return output.WriteTable(w, r)
}

func saveReport(e *env, s *session, r output.Rendered) error {
	dir := e.home.ReportsDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	name := fmt.Sprintf("%s_%s_%s.json", time.Now().UTC().Format("20060102T150405Z"), r.Model, r.Extractor)
	name = strings.NewReplacer("/", "_", string(os.PathSeparator), "_").Replace(name)
	f, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		return err
	}
	defer f.Close()
	e.logger.Info("saving report", "path", f.Name(), "session", s.ID)
	return output.Write(f, output.FormatJSON, r)
}

func saveWorkbook(e *env, path string, reports []output.Rendered) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := output.WriteXLSX(f, reports); err != nil {
		f.Close()
		return err
	}
	e.logger.Info("saved workbook", "path", path, "sheets", len(reports))
	return f.Close()
}
