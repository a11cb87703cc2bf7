package config

import (
	"errors"
	"fmt"
)

// ErrNoDefault is returned when no default value exists for a config key.
var ErrNoDefault = errors.New("no default exists")

// DefaultEntries returns the default scalar settings. They are registered as
// viper defaults, so they apply whether or not a config file exists.
func DefaultEntries() []Entry {
	return []Entry{
		// ===================
		// Chat completions
		// ===================
		{
			Key:         "openai.provider",
			Value:       "openai",
			Description: "Chat client: openai, azure or mock",
		},
		{
			Key:         "openai.api_key",
			Value:       "${OPENAI_API_KEY}",
			Description: "OpenAI or Azure OpenAI API key (uses environment variable)",
		},
		{
			Key:         "openai.endpoint",
			Value:       "${AZURE_OPENAI_ENDPOINT}",
			Description: "Azure OpenAI resource endpoint, ignored for openai",
		},
		{
			Key:         "openai.api_version",
			Value:       "2024-08-01-preview",
			Description: "Azure OpenAI API version",
		},
		{
			Key:         "openai.timeout_seconds",
			Value:       120,
			Description: "HTTP timeout in seconds for chat requests",
		},

		// ===================
		// OCR
		// ===================
		{
			Key:         "ocr.type",
			Value:       "mistral-ocr",
			Description: "OCR provider used to convert PDFs and images",
		},
		{
			Key:         "ocr.api_key",
			Value:       "${MISTRAL_API_KEY}",
			Description: "Mistral API key (uses environment variable)",
		},
		{
			Key:         "ocr.rate_limit",
			Value:       6.0,
			Description: "Rate limit in requests per second for OCR",
		},
		{
			Key:         "ocr.timeout_seconds",
			Value:       500,
			Description: "HTTP timeout in seconds for OCR requests",
		},

		// ===================
		// Runs
		// ===================
		{
			Key:         "runs.count",
			Value:       5,
			Description: "Extraction runs per model and extractor",
		},
		{
			Key:         "runs.concurrency",
			Value:       5,
			Description: "Maximum extraction attempts in flight",
		},
		{
			Key:         "runs.attempt_timeout_seconds",
			Value:       120,
			Description: "Timeout per attempt in seconds, including its retries (0 = none)",
		},
		{
			Key:         "runs.max_retries",
			Value:       3,
			Description: "Extra calls for an attempt that failed with a transport error",
		},
		{
			Key:         "runs.requests_per_minute",
			Value:       0,
			Description: "Pace model calls across workers (0 = unlimited)",
		},

		// ===================
		// Interactive defaults
		// ===================
		{
			Key:         "defaults.model",
			Value:       "gpt4o",
			Description: "Model pre-selected in prompts",
		},
		{
			Key:         "defaults.extractor",
			Value:       "json_mode",
			Description: "Extractor pre-selected in prompts",
		},
		{
			Key:         "defaults.doc",
			Value:       "",
			Description: "Document pre-selected in prompts",
		},
		{
			Key:         "defaults.schema",
			Value:       "invoice",
			Description: "Extraction schema pre-selected in prompts",
		},
		{
			Key:         "defaults.output_schema",
			Value:       "invoice",
			Description: "Output schema pre-selected in prompts",
		},
	}
}

// DefaultConfig returns the configuration written by `invex config init`.
func DefaultConfig() *Config {
	zero := 0.0
	cfg := &Config{
		Models: map[string]ModelCfg{
			"gpt4o": {
				Deployment:  "gpt-4o",
				Description: "GPT-4o, strongest structured output support",
				Temperature: &zero,
			},
			"gpt4o-mini": {
				Deployment:  "gpt-4o-mini",
				Description: "GPT-4o mini, cheaper and faster",
				Temperature: &zero,
			},
		},
		Extractors: map[string]ExtractorCfg{
			"json_mode":         {Description: "JSON mode with the schema in the prompt"},
			"structured_output": {Description: "Strict JSON schema response format"},
			"function_call":     {Description: "Forced tool call with typed arguments"},
		},
		Defaults: DefaultsCfg{
			Model:        GetDefault("defaults.model").Value.(string),
			Extractor:    GetDefault("defaults.extractor").Value.(string),
			Schema:       GetDefault("defaults.schema").Value.(string),
			OutputSchema: GetDefault("defaults.output_schema").Value.(string),
		},
		OpenAI: OpenAICfg{
			Provider:       GetDefault("openai.provider").Value.(string),
			APIKey:         GetDefault("openai.api_key").Value.(string),
			Endpoint:       GetDefault("openai.endpoint").Value.(string),
			APIVersion:     GetDefault("openai.api_version").Value.(string),
			TimeoutSeconds: GetDefault("openai.timeout_seconds").Value.(int),
		},
		OCR: OCRCfg{
			Type:           GetDefault("ocr.type").Value.(string),
			APIKey:         GetDefault("ocr.api_key").Value.(string),
			RateLimit:      GetDefault("ocr.rate_limit").Value.(float64),
			TimeoutSeconds: GetDefault("ocr.timeout_seconds").Value.(int),
		},
		Runs: RunsCfg{
			Count:                 GetDefault("runs.count").Value.(int),
			Concurrency:           GetDefault("runs.concurrency").Value.(int),
			AttemptTimeoutSeconds: GetDefault("runs.attempt_timeout_seconds").Value.(int),
			MaxRetries:            GetDefault("runs.max_retries").Value.(int),
			RequestsPerMinute:     GetDefault("runs.requests_per_minute").Value.(int),
		},
	}
	return cfg
}

// GetDefault returns the default value for a config key.
// Returns nil if no default exists for the key.
func GetDefault(key string) *Entry {
	for _, entry := range DefaultEntries() {
		if entry.Key == key {
			return &entry
		}
	}
	return nil
}

// ResetToDefault resets a config key to its default value.
// Returns ErrNoDefault if no default exists for the key.
func ResetToDefault(store Store, key string) error {
	def := GetDefault(key)
	if def == nil {
		return fmt.Errorf("%w for key %q", ErrNoDefault, key)
	}
	return store.Set(key, def.Value)
}
