package config

// Config holds invex configuration.
// Stored at: {workspace}/config.yaml
type Config struct {
	Models     map[string]ModelCfg     `mapstructure:"models" yaml:"models"`
	Extractors map[string]ExtractorCfg `mapstructure:"extractors" yaml:"extractors"`
	Defaults   DefaultsCfg             `mapstructure:"defaults" yaml:"defaults"`
	OpenAI     OpenAICfg               `mapstructure:"openai" yaml:"openai"`
	OCR        OCRCfg                  `mapstructure:"ocr" yaml:"ocr"`
	Runs       RunsCfg                 `mapstructure:"runs" yaml:"runs"`

	Prompts []PromptOverride `mapstructure:"prompts" yaml:"prompts,omitempty"`
}

// PromptOverride replaces an embedded prompt template, e.g. "extract.user".
// Text wins over File; a relative File is resolved against the config file.
type PromptOverride struct {
	Key  string `mapstructure:"key" yaml:"key"`
	Text string `mapstructure:"text" yaml:"text,omitempty"`
	File string `mapstructure:"file" yaml:"file,omitempty"`
}

// ModelCfg configures one selectable model.
type ModelCfg struct {
	Deployment  string   `mapstructure:"deployment" yaml:"deployment"` // model name, or Azure deployment name
	Description string   `mapstructure:"description" yaml:"description"`
	Temperature *float64 `mapstructure:"temperature" yaml:"temperature,omitempty"` // omitted from requests when unset
	MaxTokens   int      `mapstructure:"max_tokens" yaml:"max_tokens,omitempty"`
}

// ExtractorCfg configures one selectable extractor. Type defaults to the
// entry's key.
type ExtractorCfg struct {
	Type        string `mapstructure:"type" yaml:"type,omitempty"` // json_mode, structured_output, function_call
	Description string `mapstructure:"description" yaml:"description"`
}

// DefaultsCfg holds the pre-selected choices for interactive prompts.
type DefaultsCfg struct {
	Model        string `mapstructure:"model" yaml:"model"`
	Extractor    string `mapstructure:"extractor" yaml:"extractor"`
	Doc          string `mapstructure:"doc" yaml:"doc,omitempty"`
	Schema       string `mapstructure:"schema" yaml:"schema,omitempty"`
	OutputSchema string `mapstructure:"output_schema" yaml:"output_schema,omitempty"`
}

// OpenAICfg configures the chat completion endpoint.
type OpenAICfg struct {
	Provider       string `mapstructure:"provider" yaml:"provider"` // "openai", "azure" or "mock"
	APIKey         string `mapstructure:"api_key" yaml:"api_key"`   // supports ${ENV_VAR} syntax
	BaseURL        string `mapstructure:"base_url" yaml:"base_url,omitempty"`
	Endpoint       string `mapstructure:"endpoint" yaml:"endpoint,omitempty"` // Azure resource endpoint, supports ${ENV_VAR}
	APIVersion     string `mapstructure:"api_version" yaml:"api_version,omitempty"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
}

// OCRCfg configures the document-to-markdown OCR provider.
type OCRCfg struct {
	Type           string  `mapstructure:"type" yaml:"type"`       // "mistral-ocr"
	APIKey         string  `mapstructure:"api_key" yaml:"api_key"` // supports ${ENV_VAR} syntax
	Model          string  `mapstructure:"model" yaml:"model,omitempty"`
	RateLimit      float64 `mapstructure:"rate_limit" yaml:"rate_limit"` // requests per second
	TimeoutSeconds int     `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
}

// RunsCfg configures the extraction runner.
type RunsCfg struct {
	Count                 int `mapstructure:"count" yaml:"count"`
	Concurrency           int `mapstructure:"concurrency" yaml:"concurrency"`
	AttemptTimeoutSeconds int `mapstructure:"attempt_timeout_seconds" yaml:"attempt_timeout_seconds"`
	MaxRetries            int `mapstructure:"max_retries" yaml:"max_retries"`
	RequestsPerMinute     int `mapstructure:"requests_per_minute" yaml:"requests_per_minute"`
}
