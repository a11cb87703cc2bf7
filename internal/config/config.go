package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v2"

	"github.com/jackzampolin/invex/internal/extract"
	"github.com/jackzampolin/invex/internal/prompts"
	"github.com/jackzampolin/invex/internal/providers"
	"github.com/jackzampolin/invex/internal/runner"
)

// EnvPrefix prefixes environment overrides, e.g. INVEX_RUNS_COUNT=10.
const EnvPrefix = "INVEX"

// Manager loads configuration from a file, defaults and the environment.
type Manager struct {
	v      *viper.Viper
	path   string
	config *Config
}

// NewManager loads configuration. With an empty cfgFile it looks for
// config.yaml in the current directory and then in dir. A missing file is
// not an error; defaults apply.
func NewManager(cfgFile, dir string) (*Manager, error) {
	v := viper.New()
	for _, e := range DefaultEntries() {
		v.SetDefault(e.Key, e.Value)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if dir != "" {
			v.AddConfigPath(dir)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	m := &Manager{v: v, path: v.ConfigFileUsed()}
	cfg, err := m.load()
	if err != nil {
		return nil, err
	}
	m.config = cfg
	return m, nil
}

// load parses the current viper state into a Config struct.
func (m *Manager) load() (*Config, error) {
	var cfg Config
	if err := m.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	def := DefaultConfig()
	if len(cfg.Models) == 0 {
		cfg.Models = def.Models
	}
	if len(cfg.Extractors) == 0 {
		cfg.Extractors = def.Extractors
	}
	return &cfg, nil
}

// Get returns the loaded configuration.
func (m *Manager) Get() *Config {
	return m.config
}

// Path returns the config file that was read, or "" when defaults are in use.
func (m *Manager) Path() string {
	return m.path
}

// ResolveEnvVars expands ${ENV_VAR} references in a string.
func ResolveEnvVars(value string) string {
	if value == "" {
		return value
	}
	pattern := regexp.MustCompile(`\$\{([^}]+)\}`)
	return pattern.ReplaceAllStringFunc(value, func(match string) string {
		varName := match[2 : len(match)-1]
		return os.Getenv(varName)
	})
}

// ModelKeys returns the configured model keys in sorted order.
func (c *Config) ModelKeys() []string {
	return sortedKeys(c.Models)
}

// ExtractorKeys returns the configured extractor keys in sorted order.
func (c *Config) ExtractorKeys() []string {
	return sortedKeys(c.Extractors)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ModelConfig returns the extraction settings for a model key.
func (c *Config) ModelConfig(key string) (extract.ModelConfig, error) {
	m, ok := c.Models[key]
	if !ok {
		return extract.ModelConfig{}, fmt.Errorf("unknown model %q (configured: %s)", key, strings.Join(c.ModelKeys(), ", "))
	}
	deployment := m.Deployment
	if deployment == "" {
		deployment = key
	}
	return extract.ModelConfig{
		Key:         key,
		Deployment:  deployment,
		Temperature: m.Temperature,
		MaxTokens:   m.MaxTokens,
		Description: m.Description,
	}, nil
}

// ExtractorConfig returns the strategy for an extractor key.
func (c *Config) ExtractorConfig(key string) (extract.ExtractorConfig, error) {
	e, ok := c.Extractors[key]
	if !ok {
		return extract.ExtractorConfig{}, fmt.Errorf("unknown extractor %q (configured: %s)", key, strings.Join(c.ExtractorKeys(), ", "))
	}
	typ := e.Type
	if typ == "" {
		typ = key
	}
	kind, err := extract.ParseKind(typ)
	if err != nil {
		return extract.ExtractorConfig{}, fmt.Errorf("extractor %q: %w", key, err)
	}
	return extract.ExtractorConfig{Kind: kind, Description: e.Description}, nil
}

// LLMClientConfig converts the openai section for providers.NewLLMClient,
// resolving ${ENV_VAR} references.
func (c *Config) LLMClientConfig() providers.LLMClientConfig {
	return providers.LLMClientConfig{
		Type:       c.OpenAI.Provider,
		APIKey:     ResolveEnvVars(c.OpenAI.APIKey),
		BaseURL:    ResolveEnvVars(c.OpenAI.BaseURL),
		Endpoint:   ResolveEnvVars(c.OpenAI.Endpoint),
		APIVersion: c.OpenAI.APIVersion,
		Timeout:    seconds(c.OpenAI.TimeoutSeconds),
	}
}

// OCRProviderConfig converts the ocr section for providers.NewOCRProvider,
// resolving ${ENV_VAR} references.
func (c *Config) OCRProviderConfig() providers.OCRProviderConfig {
	return providers.OCRProviderConfig{
		Type:      c.OCR.Type,
		APIKey:    ResolveEnvVars(c.OCR.APIKey),
		Model:     c.OCR.Model,
		RateLimit: c.OCR.RateLimit,
		Timeout:   seconds(c.OCR.TimeoutSeconds),
	}
}

// RunnerConfig converts the runs section.
func (c *Config) RunnerConfig() runner.Config {
	return runner.Config{
		Concurrency:       c.Runs.Concurrency,
		AttemptTimeout:    seconds(c.Runs.AttemptTimeoutSeconds),
		MaxRetries:        c.Runs.MaxRetries,
		RequestsPerMinute: c.Runs.RequestsPerMinute,
	}
}

// ApplyPrompts installs the configured prompt overrides on r. Relative
// override files are read from baseDir.
func (c *Config) ApplyPrompts(r *prompts.Resolver, baseDir string) error {
	for _, o := range c.Prompts {
		text := o.Text
		if text == "" && o.File != "" {
			path := o.File
			if !filepath.IsAbs(path) {
				path = filepath.Join(baseDir, path)
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("prompt override %s: %w", o.Key, err)
			}
			text = string(data)
		}
		if text == "" {
			return fmt.Errorf("prompt override %s: text or file is required", o.Key)
		}
		if err := r.SetOverride(o.Key, text); err != nil {
			return err
		}
	}
	return nil
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

// Validate checks cross-references and ranges. Every problem is reported.
func (c *Config) Validate() error {
	var errs []error
	if len(c.Models) == 0 {
		errs = append(errs, errors.New("no models configured"))
	}
	if len(c.Extractors) == 0 {
		errs = append(errs, errors.New("no extractors configured"))
	}
	for _, key := range c.ExtractorKeys() {
		if _, err := c.ExtractorConfig(key); err != nil {
			errs = append(errs, err)
		}
	}
	if d := c.Defaults.Model; d != "" {
		if _, ok := c.Models[d]; !ok {
			errs = append(errs, fmt.Errorf("defaults.model %q is not a configured model", d))
		}
	}
	if d := c.Defaults.Extractor; d != "" {
		if _, ok := c.Extractors[d]; !ok {
			errs = append(errs, fmt.Errorf("defaults.extractor %q is not a configured extractor", d))
		}
	}
	if c.Runs.Count < 1 {
		errs = append(errs, fmt.Errorf("runs.count must be at least 1, got %d", c.Runs.Count))
	}
	if c.Runs.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("runs.concurrency must be at least 1, got %d", c.Runs.Concurrency))
	}
	if c.Runs.MaxRetries < 0 || c.Runs.AttemptTimeoutSeconds < 0 || c.Runs.RequestsPerMinute < 0 {
		errs = append(errs, errors.New("runs.max_retries, runs.attempt_timeout_seconds and runs.requests_per_minute must not be negative"))
	}
	for key, m := range c.Models {
		if m.Temperature != nil && (*m.Temperature < 0 || *m.Temperature > 2) {
			errs = append(errs, fmt.Errorf("models.%s.temperature must be between 0 and 2", key))
		}
	}
	return errors.Join(errs...)
}

// WriteDefault writes the default configuration to path. Existing files are
// left untouched unless force is set.
func WriteDefault(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists", path)
		}
	}
	data, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	header := []byte(`# invex configuration
# API keys use ${ENV_VAR} syntax to reference environment variables
# Set these in your shell: export OPENAI_API_KEY=xxx MISTRAL_API_KEY=xxx
# Any scalar setting can be overridden with INVEX_<SECTION>_<KEY>, e.g. INVEX_RUNS_COUNT=10

`)
	return os.WriteFile(path, append(header, data...), 0o644)
}
