package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/azure"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
)

const (
	OpenAIName = "openai"
	AzureName  = "azure"

	openAIDefaultModel       = "gpt-4o"
	azureDefaultAPIVersion   = "2024-10-21"
	openAIDefaultHTTPTimeout = 120 * time.Second
)

// OpenAIConfig holds configuration for the OpenAI chat client.
type OpenAIConfig struct {
	APIKey       string
	BaseURL      string // Optional (tests, proxies)
	DefaultModel string

	// Azure OpenAI: when Endpoint is set, requests are routed to
	// {Endpoint}/openai/deployments/{model} and Model is the deployment name.
	Endpoint   string
	APIVersion string

	Timeout    time.Duration
	HTTPClient *http.Client // Optional (tests)
}

// OpenAIClient implements LLMClient using the official OpenAI SDK. The SDK's
// own retries are disabled: one Chat call is exactly one HTTP request.
type OpenAIClient struct {
	name         string
	defaultModel string
	client       openai.Client
}

// NewOpenAIClient creates a new OpenAI (or Azure OpenAI) client.
func NewOpenAIClient(cfg OpenAIConfig) *OpenAIClient {
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = openAIDefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = openAIDefaultHTTPTimeout
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	name := OpenAIName
	opts := []option.RequestOption{
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(0),
	}
	if cfg.Endpoint != "" {
		name = AzureName
		if cfg.APIVersion == "" {
			cfg.APIVersion = azureDefaultAPIVersion
		}
		opts = append(opts,
			azure.WithEndpoint(cfg.Endpoint, cfg.APIVersion),
			azure.WithAPIKey(cfg.APIKey),
		)
	} else {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &OpenAIClient{
		name:         name,
		defaultModel: cfg.DefaultModel,
		client:       openai.NewClient(opts...),
	}
}

// Name returns the client identifier.
func (c *OpenAIClient) Name() string {
	return c.name
}

// Chat sends a chat completion request.
func (c *OpenAIClient) Chat(ctx context.Context, req *ChatRequest) (*ChatResult, error) {
	return c.doChat(ctx, req, nil)
}

// ChatWithTools sends a chat request with tool definitions. The model is
// required to call one of the tools.
func (c *OpenAIClient) ChatWithTools(ctx context.Context, req *ChatRequest, tools []Tool) (*ChatResult, error) {
	return c.doChat(ctx, req, tools)
}

func (c *OpenAIClient) doChat(ctx context.Context, req *ChatRequest, tools []Tool) (*ChatResult, error) {
	start := time.Now()

	requestID := req.RequestID
	if requestID == "" {
		requestID = uuid.New().String()
	}

	result := &ChatResult{
		RequestID: requestID,
		Provider:  c.name,
	}

	params, err := c.buildParams(req, tools)
	if err != nil {
		result.ErrorType = "request_build"
		result.ErrorMessage = err.Error()
		result.ExecutionTime = time.Since(start)
		return result, err
	}

	completion, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		err = c.mapError(err)
		result.ErrorType = "http_error"
		result.ErrorMessage = err.Error()
		result.ExecutionTime = time.Since(start)
		return result, err
	}

	result.ExecutionTime = time.Since(start)
	result.ModelUsed = completion.Model
	result.PromptTokens = int(completion.Usage.PromptTokens)
	result.CompletionTokens = int(completion.Usage.CompletionTokens)
	result.TotalTokens = int(completion.Usage.TotalTokens)

	if len(completion.Choices) == 0 {
		result.ErrorType = "empty_response"
		result.ErrorMessage = "no choices in response"
		return result, fmt.Errorf("no choices in response")
	}

	choice := completion.Choices[0]
	result.Success = true
	result.Content = choice.Message.Content
	result.FinishReason = string(choice.FinishReason)

	if len(choice.Message.ToolCalls) > 0 {
		result.ToolCalls = make([]ToolCall, len(choice.Message.ToolCalls))
		for i, tc := range choice.Message.ToolCalls {
			result.ToolCalls[i] = ToolCall{ID: tc.ID, Type: "function"}
			result.ToolCalls[i].Function.Name = tc.Function.Name
			result.ToolCalls[i].Function.Arguments = tc.Function.Arguments
		}
	}

	// Parse JSON if structured output was requested. A parse failure here is
	// recorded on the result, not returned: the caller owns recovery.
	if req.ResponseFormat != nil && result.Content != "" {
		if parsed, err := ParseStructuredJSON(result.Content); err == nil {
			result.ParsedJSON = parsed
		} else {
			result.ErrorType = "json_parse"
			result.ErrorMessage = err.Error()
		}
	}

	return result, nil
}

func (c *OpenAIClient) buildParams(req *ChatRequest, tools []Tool) (openai.ChatCompletionNewParams, error) {
	model := req.Model
	if model == "" {
		model = c.defaultModel
	}

	params := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(model),
		Messages: make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages)),
	}

	for _, m := range req.Messages {
		switch m.Role {
		case "system":
			params.Messages = append(params.Messages, openai.SystemMessage(m.Content))
		case "assistant":
			params.Messages = append(params.Messages, openai.AssistantMessage(m.Content))
		case "user":
			params.Messages = append(params.Messages, openai.UserMessage(m.Content))
		default:
			return params, fmt.Errorf("unsupported message role %q", m.Role)
		}
	}

	if req.Temperature != nil {
		params.Temperature = openai.Float(*req.Temperature)
	}
	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(req.MaxTokens))
	}

	if rf := req.ResponseFormat; rf != nil {
		switch rf.Type {
		case ResponseFormatJSONObject:
			params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
				OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
			}
		case ResponseFormatJSONSchema:
			js, err := decodeJSONSchemaWrapper(rf.JSONSchema)
			if err != nil {
				return params, err
			}
			params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
				OfJSONSchema: &shared.ResponseFormatJSONSchemaParam{JSONSchema: js},
			}
		default:
			return params, fmt.Errorf("unsupported response format %q", rf.Type)
		}
	}

	if len(tools) > 0 {
		params.Tools = make([]openai.ChatCompletionToolUnionParam, 0, len(tools))
		for _, t := range tools {
			var fnParams shared.FunctionParameters
			if len(t.Function.Parameters) > 0 {
				if err := json.Unmarshal(t.Function.Parameters, &fnParams); err != nil {
					return params, fmt.Errorf("invalid parameters for tool %s: %w", t.Function.Name, err)
				}
			}
			def := shared.FunctionDefinitionParam{
				Name:       t.Function.Name,
				Parameters: fnParams,
			}
			if t.Function.Description != "" {
				def.Description = openai.String(t.Function.Description)
			}
			params.Tools = append(params.Tools, openai.ChatCompletionFunctionTool(def))
		}
		params.ToolChoice = openai.ChatCompletionToolChoiceOptionUnionParam{
			OfAuto: openai.String("required"),
		}
	}

	return params, nil
}

// decodeJSONSchemaWrapper converts the {"name","description","strict","schema"}
// wrapper into SDK params.
func decodeJSONSchemaWrapper(raw json.RawMessage) (shared.ResponseFormatJSONSchemaJSONSchemaParam, error) {
	var w struct {
		Name        string          `json:"name"`
		Description string          `json:"description"`
		Strict      *bool           `json:"strict"`
		Schema      json.RawMessage `json:"schema"`
	}
	if err := json.Unmarshal(raw, &w); err != nil {
		return shared.ResponseFormatJSONSchemaJSONSchemaParam{}, fmt.Errorf("invalid json_schema response format: %w", err)
	}
	if w.Name == "" {
		return shared.ResponseFormatJSONSchemaJSONSchemaParam{}, fmt.Errorf("json_schema response format requires a name")
	}

	p := shared.ResponseFormatJSONSchemaJSONSchemaParam{Name: w.Name}
	if len(w.Schema) > 0 {
		p.Schema = w.Schema
	}
	if w.Description != "" {
		p.Description = openai.String(w.Description)
	}
	if w.Strict != nil {
		p.Strict = openai.Bool(*w.Strict)
	}
	return p, nil
}

// mapError converts SDK errors into TransportError / RateLimitError.
func (c *OpenAIClient) mapError(err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}

	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == http.StatusTooManyRequests {
			retryAfter := time.Duration(0)
			if apiErr.Response != nil {
				retryAfter = parseRetryAfter(apiErr.Response.Header.Get("Retry-After"))
			}
			return &RateLimitError{
				Message:    fmt.Sprintf("%s rate limited: %s", c.name, apiErr.Message),
				RetryAfter: retryAfter,
				StatusCode: apiErr.StatusCode,
			}
		}
		msg := strings.TrimSpace(apiErr.Message)
		if msg == "" {
			msg = http.StatusText(apiErr.StatusCode)
		}
		return &TransportError{
			Provider:   c.name,
			StatusCode: apiErr.StatusCode,
			Err:        errors.New(msg),
		}
	}

	return &TransportError{
		Provider: c.name,
		Timeout:  IsTimeout(err),
		Err:      err,
	}
}

// Verify interface
var _ LLMClient = (*OpenAIClient)(nil)
