package providers

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestNewLLMClient(t *testing.T) {
	tests := []struct {
		name     string
		cfg      LLMClientConfig
		wantName string
		wantErr  string
	}{
		{name: "openai", cfg: LLMClientConfig{Type: "openai", APIKey: "sk-test"}, wantName: OpenAIName},
		{name: "empty type defaults to openai", cfg: LLMClientConfig{APIKey: "sk-test"}, wantName: OpenAIName},
		{name: "azure", cfg: LLMClientConfig{Type: "azure", APIKey: "k", Endpoint: "https://example.openai.azure.com"}, wantName: AzureName},
		{name: "mock", cfg: LLMClientConfig{Type: "mock"}, wantName: MockClientName},
		{name: "openai without key", cfg: LLMClientConfig{Type: "openai"}, wantErr: "api key is required"},
		{name: "azure without endpoint", cfg: LLMClientConfig{Type: "azure", APIKey: "k"}, wantErr: "endpoint are required"},
		{name: "unknown", cfg: LLMClientConfig{Type: "anthropic"}, wantErr: "unknown LLM client type"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewLLMClient(tt.cfg)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("NewLLMClient() error = %v, want %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewLLMClient() error = %v", err)
			}
			if c.Name() != tt.wantName {
				t.Errorf("Name() = %q, want %q", c.Name(), tt.wantName)
			}
		})
	}
}

func TestNewOCRProvider(t *testing.T) {
	p, err := NewOCRProvider(OCRProviderConfig{Type: "mistral", APIKey: "k", RateLimit: 2})
	if err != nil {
		t.Fatalf("NewOCRProvider() error = %v", err)
	}
	if p.Name() != MistralOCRName || p.RequestsPerSecond() != 2 {
		t.Errorf("provider = %s at %v rps", p.Name(), p.RequestsPerSecond())
	}

	if _, err := NewOCRProvider(OCRProviderConfig{Type: MistralOCRName}); err == nil {
		t.Error("expected error without api key")
	}
	if _, err := NewOCRProvider(OCRProviderConfig{Type: "tesseract", APIKey: "k"}); err == nil {
		t.Error("expected error for unknown type")
	}
}

// TestOpenAIIntegration sends one real chat request.
// Requires OPENAI_API_KEY, and AZURE_OPENAI_ENDPOINT for Azure.
func TestOpenAIIntegration(t *testing.T) {
	cfg := LoadTestConfig()
	if !cfg.HasOpenAI() {
		t.Skip("OPENAI_API_KEY not set - skipping integration test")
	}
	client := cfg.NewOpenAIClient()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()
	result, err := client.Chat(ctx, &ChatRequest{
		Messages: []Message{{Role: "user", Content: "Reply with the single word: ok"}},
	})
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if !result.Success || result.Content == "" {
		t.Errorf("result = %+v", result)
	}
	t.Logf("%s: %q (%d prompt tokens)", result.Provider, result.Content, result.PromptTokens)
}
