// Package extract implements the extraction strategies. Every strategy turns
// a normalized schema into its own request shape, issues exactly one model
// call, and maps the response back into the same canonical values, so callers
// never need strategy-specific logic.
package extract

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackzampolin/invex/internal/schema"
)

// Kind identifies an extraction strategy.
type Kind string

const (
	KindJSONMode         Kind = "json_mode"
	KindStructuredOutput Kind = "structured_output"
	KindFunctionCall     Kind = "function_call"
)

// Kinds returns all strategies in their canonical order.
func Kinds() []Kind {
	return []Kind{KindJSONMode, KindStructuredOutput, KindFunctionCall}
}

// ParseKind parses a strategy name. "instructor" is accepted for
// function_call; case and dashes are ignored.
func ParseKind(s string) (Kind, error) {
	norm := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_")
	switch norm {
	case string(KindJSONMode), "json":
		return KindJSONMode, nil
	case string(KindStructuredOutput), "structured":
		return KindStructuredOutput, nil
	case string(KindFunctionCall), "instructor", "tools":
		return KindFunctionCall, nil
	}
	return "", fmt.Errorf("unknown extractor %q (want one of %v)", s, Kinds())
}

// ErrorKind classifies a failed attempt.
type ErrorKind string

const (
	// TransportError covers network, auth, HTTP status and timeout failures.
	TransportError ErrorKind = "transport"
	// ParseError covers responses that could not be mapped onto the schema.
	ParseError ErrorKind = "parse"
)

// Error is the failure recorded on a Result.
type Error struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s error: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Usage holds token counts reported by the provider.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

// Result is the outcome of one extraction attempt. Values holds every
// declared top-level field (nil when absent) and is best-effort when Err is
// set. A Result is not modified after it is returned.
type Result struct {
	RunIndex  int            `json:"run_index"`
	Values    map[string]any `json:"values"`
	Err       *Error         `json:"error,omitempty"`
	Extractor Kind           `json:"extractor"`
	Model     string         `json:"model"`
	Duration  time.Duration  `json:"duration"`
	Usage     Usage          `json:"usage"`

	// Attempts is the number of model calls made for this run, including
	// transport retries. Set by the runner.
	Attempts int `json:"attempts"`

	Raw        string `json:"raw,omitempty"`
	RequestID  string `json:"request_id,omitempty"`
	PromptHash string `json:"prompt_hash,omitempty"`
}

// Failed reports whether the attempt errored.
func (r Result) Failed() bool {
	return r.Err != nil
}

// ModelConfig selects and parameterizes the model for a run.
type ModelConfig struct {
	Key         string   // config key, e.g. "gpt4o"
	Deployment  string   // model or Azure deployment name sent on the wire
	Temperature *float64 // omitted from the request when nil
	MaxTokens   int
	Description string
}

// ExtractorConfig describes a configured strategy.
type ExtractorConfig struct {
	Kind        Kind
	Description string
}

// Extractor is one extraction strategy. Extract never returns a Go error:
// failures are recorded on the Result so a batch can continue.
type Extractor interface {
	Kind() Kind
	Extract(ctx context.Context, doc string, s *schema.Extraction, m ModelConfig) Result
}
