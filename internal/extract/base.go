package extract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jackzampolin/invex/internal/prompts"
	"github.com/jackzampolin/invex/internal/prompts/extraction"
	"github.com/jackzampolin/invex/internal/providers"
	"github.com/jackzampolin/invex/internal/schema"
)

// Option configures an extractor.
type Option func(*base)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(b *base) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithPrompts replaces the prompt resolver, e.g. one carrying overrides from
// config. The resolver must have the extraction prompts registered.
func WithPrompts(r *prompts.Resolver) Option {
	return func(b *base) {
		if r != nil {
			b.prompts = r
		}
	}
}

// New returns the extractor for kind.
func New(kind Kind, client providers.LLMClient, opts ...Option) (Extractor, error) {
	if client == nil {
		return nil, fmt.Errorf("extractor %s: client is required", kind)
	}
	switch kind {
	case KindJSONMode:
		return NewJSONMode(client, opts...), nil
	case KindStructuredOutput:
		return NewStructuredOutput(client, opts...), nil
	case KindFunctionCall:
		return NewFunctionCall(client, opts...), nil
	}
	return nil, fmt.Errorf("unknown extractor %q", kind)
}

// base carries what every strategy shares: the client, prompts and the
// per-schema artifacts compiled on first use.
type base struct {
	kind     Kind
	client   providers.LLMClient
	prompts  *prompts.Resolver
	logger   *slog.Logger
	compiled sync.Map // *schema.Extraction -> *compiledSchema
}

func (b *base) init(kind Kind, client providers.LLMClient, opts []Option) {
	b.kind, b.client = kind, client
	for _, opt := range opts {
		opt(b)
	}
	if b.logger == nil {
		b.logger = slog.Default()
	}
	if b.prompts == nil {
		b.prompts = extraction.NewResolver(b.logger)
	}
	b.logger = b.logger.With("extractor", string(kind))
}

// compiledSchema holds the renderings of one schema. Schemas are immutable
// after load, so these are computed once per pointer.
type compiledSchema struct {
	once      sync.Once
	validator *schema.Validator
	model     *schema.Model
	err       error
}

func (b *base) compile(s *schema.Extraction) (*compiledSchema, error) {
	v, _ := b.compiled.LoadOrStore(s, &compiledSchema{})
	c := v.(*compiledSchema)
	c.once.Do(func() {
		c.validator, c.err = s.Validator()
		c.model = s.Model()
	})
	return c, c.err
}

// Kind returns the strategy.
func (b *base) Kind() Kind {
	return b.kind
}

// attempt tracks one Extract call while it is built up.
type attempt struct {
	res   Result
	start time.Time
}

func (b *base) begin(m ModelConfig) *attempt {
	model := m.Key
	if model == "" {
		model = m.Deployment
	}
	return &attempt{
		res: Result{
			Extractor: b.kind,
			Model:     model,
			Attempts:  1,
			RequestID: uuid.NewString(),
		},
		start: time.Now(),
	}
}

// request renders the prompts and builds the chat request.
func (b *base) request(a *attempt, systemKey string, data extraction.Data, m ModelConfig) (*providers.ChatRequest, error) {
	system, sysResolved, err := b.prompts.Render(systemKey, data)
	if err != nil {
		return nil, fmt.Errorf("render system prompt: %w", err)
	}
	user, userResolved, err := b.prompts.Render(extraction.UserPromptKey, data)
	if err != nil {
		return nil, fmt.Errorf("render user prompt: %w", err)
	}
	a.res.PromptHash = prompts.ShortHash(sysResolved.Hash + userResolved.Hash)

	return &providers.ChatRequest{
		Messages: []providers.Message{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Model:       m.Deployment,
		Temperature: m.Temperature,
		MaxTokens:   m.MaxTokens,
		RequestID:   a.res.RequestID,
	}, nil
}

func promptData(s *schema.Extraction, doc string) extraction.Data {
	title := s.Title
	if title == "" {
		title = s.Name()
	}
	return extraction.Data{
		Title:       title,
		Description: s.Description,
		Document:    doc,
	}
}

// called records what the provider reported, then classifies err.
func (b *base) called(a *attempt, chat *providers.ChatResult, err error) bool {
	if chat != nil {
		a.res.Usage = Usage{PromptTokens: chat.PromptTokens, CompletionTokens: chat.CompletionTokens}
		if chat.RequestID != "" {
			a.res.RequestID = chat.RequestID
		}
	}
	if err == nil {
		return true
	}
	kind := ParseError
	if providers.IsTransport(err) || errors.Is(err, context.Canceled) {
		kind = TransportError
	}
	a.fail(kind, err.Error(), err)
	return false
}

func (a *attempt) fail(kind ErrorKind, msg string, cause error) {
	a.res.Err = &Error{Kind: kind, Message: msg, Cause: cause}
}

// finish canonicalizes decoded members onto the schema and validates them.
// Values are kept, best-effort, when either step fails.
func (b *base) finish(a *attempt, s *schema.Extraction, c *compiledSchema, raw map[string]any) {
	values, errs := Canonicalize(s, raw)
	a.res.Values = values
	if len(errs) > 0 {
		err := errors.Join(errs...)
		a.fail(ParseError, err.Error(), err)
		return
	}
	if err := c.validator.Validate(values); err != nil {
		a.fail(ParseError, "schema violation: "+err.Error(), err)
	}
}

// decodeObject parses model output text into a JSON object, tolerating code
// fences and surrounding prose.
func decodeObject(content string, parsed json.RawMessage) (map[string]any, error) {
	if len(parsed) == 0 {
		var err error
		if parsed, err = providers.ParseStructuredJSON(content); err != nil {
			return nil, fmt.Errorf("malformed JSON response: %w", err)
		}
	}
	var raw map[string]any
	if err := json.Unmarshal(parsed, &raw); err != nil {
		return nil, fmt.Errorf("response is not a JSON object: %w", err)
	}
	if raw == nil {
		return nil, fmt.Errorf("response is null")
	}
	return raw, nil
}

func (b *base) done(ctx context.Context, a *attempt) Result {
	a.res.Duration = time.Since(a.start)
	attrs := []any{
		"model", a.res.Model,
		"request_id", a.res.RequestID,
		"elapsed_ms", a.res.Duration.Milliseconds(),
	}
	if a.res.Err != nil {
		attrs = append(attrs, "error_kind", a.res.Err.Kind, "error", a.res.Err.Message)
		b.logger.DebugContext(ctx, "extraction failed", attrs...)
	} else {
		b.logger.DebugContext(ctx, "extraction complete", attrs...)
	}
	return a.res
}
