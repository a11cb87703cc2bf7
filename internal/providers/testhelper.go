package providers

import (
	"os"
)

// TestConfig holds provider credentials loaded from environment variables,
// so integration tests use the same clients as production.
type TestConfig struct {
	OpenAIAPIKey  string
	AzureEndpoint string
	MistralAPIKey string
}

// LoadTestConfig loads provider API keys from environment variables.
func LoadTestConfig() TestConfig {
	return TestConfig{
		OpenAIAPIKey:  os.Getenv("OPENAI_API_KEY"),
		AzureEndpoint: os.Getenv("AZURE_OPENAI_ENDPOINT"),
		MistralAPIKey: os.Getenv("MISTRAL_API_KEY"),
	}
}

// HasOpenAI returns true if an OpenAI (or Azure OpenAI) key is configured.
func (c TestConfig) HasOpenAI() bool {
	return c.OpenAIAPIKey != ""
}

// HasMistral returns true if Mistral API key is configured.
func (c TestConfig) HasMistral() bool {
	return c.MistralAPIKey != ""
}

// NewOpenAIClient creates a chat client from test config.
// Returns nil if not configured.
func (c TestConfig) NewOpenAIClient() *OpenAIClient {
	if !c.HasOpenAI() {
		return nil
	}
	return NewOpenAIClient(OpenAIConfig{
		APIKey:   c.OpenAIAPIKey,
		Endpoint: c.AzureEndpoint,
	})
}

// NewMistralOCRClient creates a Mistral OCR client from test config.
// Returns nil if not configured.
func (c TestConfig) NewMistralOCRClient() *MistralOCRClient {
	if !c.HasMistral() {
		return nil
	}
	return NewMistralOCRClient(MistralOCRConfig{
		APIKey: c.MistralAPIKey,
	})
}
