package providers

import (
	"fmt"
	"time"
)

// LLMClientConfig selects and configures a chat client.
type LLMClientConfig struct {
	Type       string // "openai", "azure" or "mock"
	APIKey     string
	BaseURL    string
	Endpoint   string
	APIVersion string
	Timeout    time.Duration
}

// NewLLMClient builds an LLMClient from config.
func NewLLMClient(cfg LLMClientConfig) (LLMClient, error) {
	switch cfg.Type {
	case "", OpenAIName:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("openai: api key is required")
		}
		return NewOpenAIClient(OpenAIConfig{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
			Timeout: cfg.Timeout,
		}), nil
	case AzureName:
		if cfg.APIKey == "" || cfg.Endpoint == "" {
			return nil, fmt.Errorf("azure: api key and endpoint are required")
		}
		return NewOpenAIClient(OpenAIConfig{
			APIKey:     cfg.APIKey,
			Endpoint:   cfg.Endpoint,
			APIVersion: cfg.APIVersion,
			Timeout:    cfg.Timeout,
		}), nil
	case MockClientName:
		return NewMockClient(), nil
	default:
		return nil, fmt.Errorf("unknown LLM client type: %s", cfg.Type)
	}
}

// OCRProviderConfig selects and configures an OCR provider.
type OCRProviderConfig struct {
	Type      string // "mistral-ocr"
	APIKey    string
	BaseURL   string
	Model     string
	RateLimit float64
	Timeout   time.Duration
}

// NewOCRProvider builds an OCRProvider from config.
func NewOCRProvider(cfg OCRProviderConfig) (OCRProvider, error) {
	switch cfg.Type {
	case "", "mistral", MistralOCRName:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("mistral-ocr: api key is required")
		}
		return NewMistralOCRClient(MistralOCRConfig{
			APIKey:    cfg.APIKey,
			BaseURL:   cfg.BaseURL,
			Model:     cfg.Model,
			RateLimit: cfg.RateLimit,
			Timeout:   cfg.Timeout,
		}), nil
	default:
		return nil, fmt.Errorf("unknown OCR provider type: %s", cfg.Type)
	}
}
