package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/invex/internal/config"
	"github.com/jackzampolin/invex/internal/home"
	"github.com/jackzampolin/invex/internal/output"
	"github.com/jackzampolin/invex/version"
)

var (
	cfgFile      string
	homeDir      string
	outputFormat string
	logLevel     string

	// format is the parsed --output value, set before any command runs.
	format output.OutputFormat
)

var rootCmd = &cobra.Command{
	Use:   "invex",
	Short: "Extract structured fields from documents with LLMs and measure run-to-run consistency",
	Long: `invex extracts structured fields from invoices and other free-form documents.

A document is converted to markdown, sent to a model through one of three
extraction strategies, validated against a JSON schema, and the extraction is
repeated N times. The report shows, per field, the most common value and how
often the runs agreed on it.

Strategies:
  - json_mode          JSON mode with the schema embedded in the prompt
  - structured_output  strict JSON-schema response format
  - function_call      forced tool call with typed arguments

Workspace layout (default ~/.invex, override with --home or INVEX_HOME):
  docs/            source documents (pdf, images, html, markdown)
  outputs/         converted markdown, the extraction inputs
  schemas/         extraction schemas
  output_schemas/  output schemas shaping the report
  reports/         saved reports`,
	Version:      version.GitRelease,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		f, err := output.ParseFormat(outputFormat)
		if err != nil {
			return err
		}
		format = f

		var level slog.Level
		if err := level.UnmarshalText([]byte(logLevel)); err != nil {
			return fmt.Errorf("invalid --log-level %q: %w", logLevel, err)
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or <home>/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVar(
		&homeDir, "home", "", "invex workspace directory (default: $INVEX_HOME or ~/.invex)",
	)
	rootCmd.PersistentFlags().StringVarP(
		&outputFormat, "output", "o", "table", "output format: table, yaml or json",
	)
	rootCmd.PersistentFlags().StringVar(
		&logLevel, "log-level", "warn", "log level: debug, info, warn or error",
	)

	rootCmd.AddCommand(versionCmd)
}

// env is the resolved workspace and configuration shared by commands.
type env struct {
	home   *home.Dir
	mgr    *config.Manager
	cfg    *config.Config
	logger *slog.Logger
}

func loadEnv() (*env, error) {
	dir := homeDir
	if dir == "" {
		dir = os.Getenv("INVEX_HOME")
	}
	h, err := home.New(dir)
	if err != nil {
		return nil, err
	}
	mgr, err := config.NewManager(cfgFile, h.Path())
	if err != nil {
		return nil, err
	}
	logger := slog.Default()
	if p := mgr.Path(); p != "" {
		logger.Debug("loaded config", "path", p)
	}
	return &env{home: h, mgr: mgr, cfg: mgr.Get(), logger: logger}, nil
}

// configPath is the file config commands read and write.
func (e *env) configPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	if e.mgr != nil && e.mgr.Path() != "" {
		return e.mgr.Path()
	}
	return e.home.ConfigPath()
}

// configDir is the base for relative paths in the config file.
func (e *env) configDir() string {
	return filepath.Dir(e.configPath())
}

// structured reports whether output goes through output.Write rather than
// a table.
func structured() bool {
	return format != output.FormatTable
}
