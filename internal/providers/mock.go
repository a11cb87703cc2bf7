package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

const MockClientName = "mock"

// MockClient is an LLMClient for testing.
type MockClient struct {
	// Configurable behavior
	Latency      time.Duration
	ShouldFail   bool
	FailErr      error  // Returned when ShouldFail is set (default: a TransportError)
	ResponseText string // Content for Chat
	ToolArgs     string // Arguments of the single tool call returned by ChatWithTools

	// Handler, when set, overrides the canned responses. n is the 1-based
	// request number.
	Handler func(n int, req *ChatRequest, tools []Tool) (*ChatResult, error)

	// State
	requestCount atomic.Int64
	mu           sync.Mutex
	requests     []*ChatRequest
	toolSets     [][]Tool
}

// NewMockClient creates a new mock client with sensible defaults.
func NewMockClient() *MockClient {
	return &MockClient{
		ResponseText: "{}",
		ToolArgs:     "{}",
	}
}

// Name returns the client identifier.
func (c *MockClient) Name() string {
	return MockClientName
}

// Chat sends a mock chat request.
func (c *MockClient) Chat(ctx context.Context, req *ChatRequest) (*ChatResult, error) {
	return c.doRequest(ctx, req, nil)
}

// ChatWithTools sends a mock chat request with tools.
func (c *MockClient) ChatWithTools(ctx context.Context, req *ChatRequest, tools []Tool) (*ChatResult, error) {
	return c.doRequest(ctx, req, tools)
}

func (c *MockClient) doRequest(ctx context.Context, req *ChatRequest, tools []Tool) (*ChatResult, error) {
	start := time.Now()
	count := c.requestCount.Add(1)

	c.mu.Lock()
	c.requests = append(c.requests, req)
	c.toolSets = append(c.toolSets, tools)
	c.mu.Unlock()

	result := &ChatResult{
		RequestID: fmt.Sprintf("mock-%d", count),
		Provider:  MockClientName,
		ModelUsed: req.Model,
	}

	// Simulate latency
	if c.Latency > 0 {
		select {
		case <-time.After(c.Latency):
		case <-ctx.Done():
			result.ErrorType = "context_cancelled"
			result.ErrorMessage = ctx.Err().Error()
			result.ExecutionTime = time.Since(start)
			return result, ctx.Err()
		}
	}

	if c.Handler != nil {
		return c.Handler(int(count), req, tools)
	}

	if c.ShouldFail {
		err := c.FailErr
		if err == nil {
			err = &TransportError{Provider: MockClientName, Err: fmt.Errorf("mock client configured to fail")}
		}
		result.ErrorType = "mock_failure"
		result.ErrorMessage = err.Error()
		result.ExecutionTime = time.Since(start)
		return result, err
	}

	result.Success = true
	result.ExecutionTime = time.Since(start)

	if len(tools) > 0 {
		tc := ToolCall{ID: fmt.Sprintf("call_%d", count), Type: "function"}
		tc.Function.Name = tools[0].Function.Name
		tc.Function.Arguments = c.ToolArgs
		result.ToolCalls = []ToolCall{tc}
		return result, nil
	}

	result.Content = c.ResponseText
	if req.ResponseFormat != nil {
		if parsed, err := ParseStructuredJSON(c.ResponseText); err == nil {
			result.ParsedJSON = parsed
		}
	}

	// Simulate token counting
	for _, m := range req.Messages {
		result.PromptTokens += len(m.Content) / 4 // Rough estimate
	}
	result.CompletionTokens = len(result.Content) / 4
	result.TotalTokens = result.PromptTokens + result.CompletionTokens

	return result, nil
}

// RequestCount returns the number of requests made.
func (c *MockClient) RequestCount() int64 {
	return c.requestCount.Load()
}

// Requests returns a copy of the recorded requests in arrival order.
func (c *MockClient) Requests() []*ChatRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*ChatRequest, len(c.requests))
	copy(out, c.requests)
	return out
}

// Tools returns the tool definitions passed with request i (0-based).
func (c *MockClient) Tools(i int) []Tool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i < 0 || i >= len(c.toolSets) {
		return nil
	}
	return c.toolSets[i]
}

// Reset clears request history.
func (c *MockClient) Reset() {
	c.requestCount.Store(0)
	c.mu.Lock()
	c.requests = nil
	c.toolSets = nil
	c.mu.Unlock()
}

// MockToolCall builds a successful ChatResult carrying one tool call; handy
// inside MockClient.Handler.
func MockToolCall(name string, args any) (*ChatResult, error) {
	raw, err := json.Marshal(args)
	if err != nil {
		return nil, err
	}
	tc := ToolCall{ID: "call_mock", Type: "function"}
	tc.Function.Name = name
	tc.Function.Arguments = string(raw)
	return &ChatResult{Success: true, Provider: MockClientName, ToolCalls: []ToolCall{tc}}, nil
}

// Verify interface
var _ LLMClient = (*MockClient)(nil)
