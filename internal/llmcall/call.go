// Package llmcall records every extraction model call for traceability.
// Each call is one JSON line carrying the prompt hash, the raw response and
// the outcome, so a surprising run can be replayed by hand.
package llmcall

import (
	"time"

	"github.com/google/uuid"

	"github.com/jackzampolin/invex/internal/extract"
)

// Call represents a recorded model call.
type Call struct {
	// Unique identifier
	ID string `json:"id"`

	// Timing
	Timestamp time.Time `json:"timestamp"`
	LatencyMs int64     `json:"latency_ms"`

	// Context references
	Session   string `json:"session,omitempty"` // groups the calls of one CLI invocation
	Document  string `json:"document,omitempty"`
	Schema    string `json:"schema,omitempty"`
	Run       int    `json:"run"`
	Attempts  int    `json:"attempts"`
	RequestID string `json:"request_id,omitempty"`

	// Prompt traceability
	PromptHash string `json:"prompt_hash,omitempty"`

	// Model info
	Extractor   string   `json:"extractor"`
	Model       string   `json:"model"`
	Temperature *float64 `json:"temperature,omitempty"`

	// Token usage
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`

	// Response
	Response string         `json:"response,omitempty"`
	Values   map[string]any `json:"values,omitempty"`

	// Status
	Success   bool   `json:"success"`
	ErrorKind string `json:"error_kind,omitempty"`
	Error     string `json:"error,omitempty"`
}

// RecordOptions provides context for recording a call.
type RecordOptions struct {
	Session  string
	Document string
	Schema   string

	// Request parameters (pointer to distinguish "not set" from "set to 0")
	Temperature *float64
}

// FromResult creates a Call from an extraction result.
func FromResult(res extract.Result, opts RecordOptions) *Call {
	call := &Call{
		ID:           uuid.NewString(),
		Timestamp:    time.Now().UTC(),
		LatencyMs:    res.Duration.Milliseconds(),
		Session:      opts.Session,
		Document:     opts.Document,
		Schema:       opts.Schema,
		Run:          res.RunIndex,
		Attempts:     res.Attempts,
		RequestID:    res.RequestID,
		PromptHash:   res.PromptHash,
		Extractor:    string(res.Extractor),
		Model:        res.Model,
		Temperature:  opts.Temperature,
		InputTokens:  res.Usage.PromptTokens,
		OutputTokens: res.Usage.CompletionTokens,
		Response:     res.Raw,
		Values:       res.Values,
		Success:      !res.Failed(),
	}
	if res.Err != nil {
		call.ErrorKind = string(res.Err.Kind)
		call.Error = res.Err.Error()
	}
	return call
}
