package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/jackzampolin/invex/internal/config"
	"github.com/jackzampolin/invex/internal/convert"
	"github.com/jackzampolin/invex/internal/extract"
	"github.com/jackzampolin/invex/internal/home"
	"github.com/jackzampolin/invex/internal/interactive"
	"github.com/jackzampolin/invex/internal/runner"
	"github.com/jackzampolin/invex/internal/schema"
)

// errAborted is returned when the user declines the confirmation panel.
var errAborted = errors.New("aborted")

// extractFlags holds the selections given on the command line. Anything left
// empty is asked for interactively or taken from the config defaults.
type extractFlags struct {
	doc          string
	schema       string
	outputSchema string
	models       []string
	extractors   []string
	runs         int
	concurrency  int
	timeout      time.Duration
	yes          bool
	noInput      bool
	save         bool
	xlsx         string
	noCallLog    bool
}

// session is everything an extraction needs, resolved up front. It is not
// modified once built.
type session struct {
	ID          string
	DocPath     string
	Doc         string
	SchemaPath  string
	Schema      *schema.Extraction
	OutputPath  string
	Output      *schema.Output
	Models      []extract.ModelConfig
	Extractors  []extract.ExtractorConfig
	Runs        int
	Runner      runner.Config
	RecordCalls bool
	SaveReports bool
	Workbook    string
}

// resolver fills in a session from flags, prompting when p is non-nil.
type resolver struct {
	env   *env
	flags extractFlags
	p     *interactive.Prompter
}

func (r *resolver) resolve(ctx context.Context) (*session, error) {
	cfg := r.env.cfg
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	s := &session{
		ID:          uuid.NewString(),
		RecordCalls: !r.flags.noCallLog,
		SaveReports: r.flags.save,
		Workbook:    r.flags.xlsx,
	}

	// Schemas first: a bad schema fails before any conversion or model call.
	var err error
	if s.SchemaPath, err = r.pick("Extraction schema", r.flags.schema, cfg.Defaults.Schema, r.env.home.SchemasDir(), ".json", r.env.home.Schemas); err != nil {
		return nil, err
	}
	if s.Schema, err = schema.LoadFile(s.SchemaPath); err != nil {
		return nil, err
	}
	if s.Output, s.OutputPath, err = r.outputSchema(s.Schema); err != nil {
		return nil, err
	}

	if s.Models, err = r.models(); err != nil {
		return nil, err
	}
	if s.Extractors, err = r.extractors(); err != nil {
		return nil, err
	}
	if s.Runs, err = r.runs(); err != nil {
		return nil, err
	}
	s.Runner = cfg.RunnerConfig()
	if r.flags.concurrency > 0 {
		s.Runner.Concurrency = r.flags.concurrency
	}
	if r.flags.timeout > 0 {
		s.Runner.AttemptTimeout = r.flags.timeout
	}

	if s.DocPath, err = r.pick("Document", r.flags.doc, cfg.Defaults.Doc, r.env.home.OutputsDir(), ".md", r.env.home.Documents); err != nil {
		return nil, err
	}
	if s.Doc, err = r.readDocument(ctx, s.DocPath); err != nil {
		return nil, err
	}

	if r.p != nil && !r.flags.yes {
		r.p.Panel("Current Configuration", s.fields())
		ok, err := r.p.Confirm("Proceed with this configuration?", true)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, errAborted
		}
	}
	return s, nil
}

// pick resolves a file flag, prompting from list when it is empty.
func (r *resolver) pick(title, flag, def, dir, ext string, list func() ([]string, error)) (string, error) {
	name := flag
	if name == "" && r.p != nil {
		names, err := list()
		if err != nil {
			return "", err
		}
		choices := lo.Map(names, func(n string, _ int) interactive.Choice { return interactive.Choice{Key: n} })
		name, err = r.p.Select(title, choices, withExt(def, names))
		if err != nil {
			return "", err
		}
	}
	if name == "" {
		name = def
	}
	if name == "" {
		return "", fmt.Errorf("%s: none given and no default configured", strings.ToLower(title))
	}
	return home.Resolve(dir, name, ext)
}

// withExt matches a configured default such as "invoice" to a listed file
// name such as "invoice.json".
func withExt(def string, names []string) string {
	if match, ok := lo.Find(names, func(n string) bool {
		return n == def || strings.TrimSuffix(n, fileExt(n)) == def
	}); ok {
		return match
	}
	return def
}

func fileExt(name string) string {
	if i := strings.LastIndex(name, "."); i > 0 {
		return name[i:]
	}
	return ""
}

func (r *resolver) outputSchema(s *schema.Extraction) (*schema.Output, string, error) {
	h, cfg := r.env.home, r.env.cfg
	if r.flags.outputSchema == "" && r.p == nil {
		path, err := home.Resolve(h.OutputSchemasDir(), cfg.Defaults.OutputSchema, ".json")
		if err != nil {
			// No output schema installed: report the extraction fields as they are.
			r.env.logger.Debug("no output schema, mirroring extraction fields", "default", cfg.Defaults.OutputSchema)
			return schema.OutputFor(s), "", nil
		}
		out, err := schema.LoadOutputFile(path)
		return out, path, err
	}
	path, err := r.pick("Output schema", r.flags.outputSchema, cfg.Defaults.OutputSchema, h.OutputSchemasDir(), ".json", h.OutputSchemas)
	if err != nil {
		if r.flags.outputSchema == "" {
			return schema.OutputFor(s), "", nil
		}
		return nil, "", err
	}
	out, err := schema.LoadOutputFile(path)
	return out, path, err
}

func (r *resolver) models() ([]extract.ModelConfig, error) {
	cfg := r.env.cfg
	keys := r.flags.models
	if len(keys) == 0 {
		key := cfg.Defaults.Model
		if r.p != nil {
			choices := lo.Map(cfg.ModelKeys(), func(k string, _ int) interactive.Choice {
				return interactive.Choice{Key: k, Description: cfg.Models[k].Description}
			})
			var err error
			if key, err = r.p.Select("Model", choices, key); err != nil {
				return nil, err
			}
		}
		keys = []string{key}
	}
	out := make([]extract.ModelConfig, 0, len(keys))
	for _, k := range lo.Uniq(keys) {
		m, err := cfg.ModelConfig(k)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

func (r *resolver) extractors() ([]extract.ExtractorConfig, error) {
	cfg := r.env.cfg
	keys := r.flags.extractors
	if len(keys) == 0 {
		key := cfg.Defaults.Extractor
		if r.p != nil {
			choices := lo.Map(cfg.ExtractorKeys(), func(k string, _ int) interactive.Choice {
				return interactive.Choice{Key: k, Description: cfg.Extractors[k].Description}
			})
			var err error
			if key, err = r.p.Select("Extractor", choices, key); err != nil {
				return nil, err
			}
		}
		keys = []string{key}
	}
	out := make([]extract.ExtractorConfig, 0, len(keys))
	for _, k := range lo.Uniq(keys) {
		x, err := extractorConfig(cfg, k)
		if err != nil {
			return nil, err
		}
		out = append(out, x)
	}
	return out, nil
}

// extractorConfig looks k up in the config, falling back to a bare strategy
// name so --extractor function_call works without a config entry.
func extractorConfig(cfg *config.Config, k string) (extract.ExtractorConfig, error) {
	if _, ok := cfg.Extractors[k]; ok {
		return cfg.ExtractorConfig(k)
	}
	kind, err := extract.ParseKind(k)
	if err != nil {
		return extract.ExtractorConfig{}, err
	}
	return extract.ExtractorConfig{Kind: kind}, nil
}

func (r *resolver) runs() (int, error) {
	if r.flags.runs > 0 {
		return r.flags.runs, nil
	}
	if r.p != nil {
		return r.p.Int("Number of runs", r.env.cfg.Runs.Count, 1)
	}
	return r.env.cfg.Runs.Count, nil
}

// readDocument returns the markdown for path, converting other formats.
func (r *resolver) readDocument(ctx context.Context, path string) (string, error) {
	f, err := convert.Detect(path)
	if err != nil {
		return "", err
	}
	if f == convert.FormatMarkdown {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", err
		}
		if strings.TrimSpace(string(data)) == "" {
			return "", fmt.Errorf("%s: %w", path, convert.ErrEmpty)
		}
		return string(data), nil
	}
	r.env.logger.Info("converting document before extraction", "file", path, "format", f)
	return newRouter(r.env).Convert(ctx, path)
}

// fields is the confirmation panel content.
func (s *session) fields() []interactive.Field {
	models := lo.Map(s.Models, func(m extract.ModelConfig, _ int) string {
		temp := "not set"
		if m.Temperature != nil {
			temp = strconv.FormatFloat(*m.Temperature, 'f', -1, 64)
		}
		return fmt.Sprintf("%s (%s, temperature %s)", m.Key, m.Deployment, temp)
	})
	extractors := lo.Map(s.Extractors, func(x extract.ExtractorConfig, _ int) string { return string(x.Kind) })
	outputSchema := s.OutputPath
	if outputSchema == "" {
		outputSchema = "(extraction fields)"
	}
	return []interactive.Field{
		{Name: "Document", Value: s.DocPath},
		{Name: "Schema", Value: s.SchemaPath},
		{Name: "Output schema", Value: outputSchema},
		{Name: "Models", Value: strings.Join(models, "\n")},
		{Name: "Extractors", Value: strings.Join(extractors, ", ")},
		{Name: "Runs", Value: strconv.Itoa(s.Runs)},
		{Name: "Concurrency", Value: strconv.Itoa(max(s.Runner.Concurrency, 1))},
	}
}
