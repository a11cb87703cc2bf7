package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jackzampolin/invex/internal/extract"
	"github.com/jackzampolin/invex/internal/prompts/extraction"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

func TestResolveEnvVars(t *testing.T) {
	t.Run("resolves environment variable", func(t *testing.T) {
		t.Setenv("TEST_API_KEY", "secret123")

		result := ResolveEnvVars("${TEST_API_KEY}")
		if result != "secret123" {
			t.Errorf("expected secret123, got %s", result)
		}
	})

	t.Run("returns empty for missing env var", func(t *testing.T) {
		result := ResolveEnvVars("${DEFINITELY_NOT_SET_12345}")
		if result != "" {
			t.Errorf("expected empty string, got %s", result)
		}
	})

	t.Run("leaves literal values unchanged", func(t *testing.T) {
		result := ResolveEnvVars("literal-value")
		if result != "literal-value" {
			t.Errorf("expected literal-value, got %s", result)
		}
	})
}

func TestNewManager(t *testing.T) {
	t.Run("defaults without a file", func(t *testing.T) {
		mgr, err := NewManager("", t.TempDir())
		if err != nil {
			t.Fatalf("NewManager() error = %v", err)
		}
		cfg := mgr.Get()
		if mgr.Path() != "" {
			t.Errorf("Path() = %q, want empty", mgr.Path())
		}
		if cfg.Runs.Count != 5 || cfg.Runs.Concurrency != 5 {
			t.Errorf("runs = %+v", cfg.Runs)
		}
		if _, ok := cfg.Models["gpt4o"]; !ok {
			t.Errorf("expected default models, got %v", cfg.ModelKeys())
		}
		if err := cfg.Validate(); err != nil {
			t.Errorf("default config should validate: %v", err)
		}
	})

	t.Run("loads from config file", func(t *testing.T) {
		path := writeConfig(t, `
models:
  fast:
    deployment: gpt-4o-mini
    description: cheap
    temperature: 0.2
extractors:
  tools:
    type: function_call
defaults:
  model: fast
  extractor: tools
runs:
  count: 3
`)
		mgr, err := NewManager(path, "")
		if err != nil {
			t.Fatalf("NewManager() error = %v", err)
		}
		cfg := mgr.Get()
		if got := cfg.ModelKeys(); len(got) != 1 || got[0] != "fast" {
			t.Errorf("ModelKeys() = %v, want [fast]", got)
		}
		if cfg.Runs.Count != 3 || cfg.Runs.Concurrency != 5 {
			t.Errorf("runs = %+v, want count from file and default concurrency", cfg.Runs)
		}
		if cfg.Defaults.Model != "fast" {
			t.Errorf("defaults.model = %q", cfg.Defaults.Model)
		}
		if err := cfg.Validate(); err != nil {
			t.Errorf("Validate() error = %v", err)
		}
	})

	t.Run("environment overrides file", func(t *testing.T) {
		t.Setenv("INVEX_RUNS_COUNT", "9")
		mgr, err := NewManager(writeConfig(t, "runs:\n  count: 3\n"), "")
		if err != nil {
			t.Fatalf("NewManager() error = %v", err)
		}
		if got := mgr.Get().Runs.Count; got != 9 {
			t.Errorf("runs.count = %d, want 9", got)
		}
	})

	t.Run("malformed file", func(t *testing.T) {
		if _, err := NewManager(writeConfig(t, "models: [unclosed"), ""); err == nil {
			t.Error("expected error for malformed YAML")
		}
	})
}

func TestConfig_ModelConfig(t *testing.T) {
	temp := 0.3
	cfg := &Config{Models: map[string]ModelCfg{
		"gpt4o": {Deployment: "prod-gpt4o", Temperature: &temp, MaxTokens: 2000},
		"plain": {},
	}}

	m, err := cfg.ModelConfig("gpt4o")
	if err != nil {
		t.Fatalf("ModelConfig() error = %v", err)
	}
	if m.Key != "gpt4o" || m.Deployment != "prod-gpt4o" || *m.Temperature != 0.3 || m.MaxTokens != 2000 {
		t.Errorf("ModelConfig() = %+v", m)
	}

	m, err = cfg.ModelConfig("plain")
	if err != nil {
		t.Fatalf("ModelConfig() error = %v", err)
	}
	if m.Deployment != "plain" || m.Temperature != nil {
		t.Errorf("deployment should fall back to key and temperature stay unset: %+v", m)
	}

	if _, err := cfg.ModelConfig("missing"); err == nil || !strings.Contains(err.Error(), "gpt4o, plain") {
		t.Errorf("ModelConfig(missing) error = %v", err)
	}
}

func TestConfig_ExtractorConfig(t *testing.T) {
	cfg := &Config{Extractors: map[string]ExtractorCfg{
		"json_mode":  {},
		"instructor": {Type: "function_call", Description: "tools"},
		"broken":     {Type: "xml"},
	}}

	tests := []struct {
		key     string
		want    extract.Kind
		wantErr bool
	}{
		{"json_mode", extract.KindJSONMode, false},
		{"instructor", extract.KindFunctionCall, false},
		{"broken", "", true},
		{"missing", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			got, err := cfg.ExtractorConfig(tt.key)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ExtractorConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got.Kind != tt.want {
				t.Errorf("Kind = %q, want %q", got.Kind, tt.want)
			}
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	tooHot := 3.0
	cfg := DefaultConfig()
	cfg.Defaults.Model = "nope"
	cfg.Runs.Count = 0
	cfg.Models["hot"] = ModelCfg{Temperature: &tooHot}
	cfg.Extractors["xml"] = ExtractorCfg{}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"defaults.model", "runs.count", "models.hot.temperature", `extractor "xml"`} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}

func TestConfig_ProviderConfigs(t *testing.T) {
	t.Setenv("TEST_OPENAI_KEY", "sk-test")
	cfg := DefaultConfig()
	cfg.OpenAI.APIKey = "${TEST_OPENAI_KEY}"
	cfg.Runs.AttemptTimeoutSeconds = 30

	llm := cfg.LLMClientConfig()
	if llm.APIKey != "sk-test" || llm.Type != "openai" || llm.Timeout.Seconds() != 120 {
		t.Errorf("LLMClientConfig() = %+v", llm)
	}
	if ocr := cfg.OCRProviderConfig(); ocr.Type != "mistral-ocr" || ocr.RateLimit != 6 {
		t.Errorf("OCRProviderConfig() = %+v", ocr)
	}
	if r := cfg.RunnerConfig(); r.AttemptTimeout.Seconds() != 30 || r.Concurrency != 5 || r.MaxRetries != 3 {
		t.Errorf("RunnerConfig() = %+v", r)
	}
}

func TestWriteDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	if err := WriteDefault(path, false); err != nil {
		t.Fatalf("WriteDefault() error = %v", err)
	}
	if err := WriteDefault(path, false); err == nil {
		t.Error("expected error when file exists")
	}
	if err := WriteDefault(path, true); err != nil {
		t.Errorf("WriteDefault(force) error = %v", err)
	}

	mgr, err := NewManager(path, "")
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	cfg := mgr.Get()
	if len(cfg.Models) != 2 || len(cfg.Extractors) != 3 {
		t.Errorf("round-tripped config = %+v", cfg)
	}
	if cfg.OpenAI.APIKey != "${OPENAI_API_KEY}" {
		t.Errorf("api key should stay a reference, got %q", cfg.OpenAI.APIKey)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestConfig_ApplyPrompts(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "user.tmpl"), []byte("Doc:\n{{.Document}}"), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Run("file and text overrides", func(t *testing.T) {
		r := extraction.NewResolver(nil)
		cfg := &Config{Prompts: []PromptOverride{
			{Key: extraction.UserPromptKey, File: "user.tmpl"},
			{Key: extraction.SystemPromptKey, Text: "Extract {{.Title}}."},
		}}
		if err := cfg.ApplyPrompts(r, dir); err != nil {
			t.Fatalf("ApplyPrompts() error = %v", err)
		}
		p, err := r.Resolve(extraction.UserPromptKey)
		if err != nil {
			t.Fatalf("Resolve() error = %v", err)
		}
		if !p.IsOverride || p.Text != "Doc:\n{{.Document}}" {
			t.Errorf("Resolve() = %+v", p)
		}
	})

	t.Run("unknown key", func(t *testing.T) {
		cfg := &Config{Prompts: []PromptOverride{{Key: "extract.nope", Text: "x"}}}
		if err := cfg.ApplyPrompts(extraction.NewResolver(nil), dir); err == nil {
			t.Error("expected error for unknown prompt key")
		}
	})

	t.Run("missing text", func(t *testing.T) {
		cfg := &Config{Prompts: []PromptOverride{{Key: extraction.UserPromptKey}}}
		if err := cfg.ApplyPrompts(extraction.NewResolver(nil), dir); err == nil {
			t.Error("expected error without text or file")
		}
	})
}
