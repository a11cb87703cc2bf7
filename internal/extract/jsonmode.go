package extract

import (
	"context"

	"github.com/jackzampolin/invex/internal/prompts/extraction"
	"github.com/jackzampolin/invex/internal/providers"
	"github.com/jackzampolin/invex/internal/schema"
)

// JSONMode asks for a JSON object response and puts the schema in the system
// prompt. The model is not constrained to it, so validation does the work.
type JSONMode struct {
	base
}

// NewJSONMode creates a JSON-mode extractor.
func NewJSONMode(client providers.LLMClient, opts ...Option) *JSONMode {
	x := &JSONMode{}
	x.init(KindJSONMode, client, opts)
	return x
}

// Extract implements Extractor.
func (x *JSONMode) Extract(ctx context.Context, doc string, s *schema.Extraction, m ModelConfig) Result {
	a := x.begin(m)
	c, err := x.compile(s)
	if err != nil {
		a.fail(ParseError, err.Error(), err)
		return x.done(ctx, a)
	}

	data := promptData(s, doc)
	data.SchemaJSON = string(s.JSONSchema())
	req, err := x.request(a, extraction.JSONSystemPromptKey, data, m)
	if err != nil {
		a.fail(ParseError, err.Error(), err)
		return x.done(ctx, a)
	}
	req.ResponseFormat = &providers.ResponseFormat{Type: providers.ResponseFormatJSONObject}

	chat, err := x.client.Chat(ctx, req)
	if !x.called(a, chat, err) {
		return x.done(ctx, a)
	}
	a.res.Raw = chat.Content

	raw, err := decodeObject(chat.Content, chat.ParsedJSON)
	if err != nil {
		a.fail(ParseError, err.Error(), err)
		return x.done(ctx, a)
	}
	x.finish(a, s, c, raw)
	return x.done(ctx, a)
}

var _ Extractor = (*JSONMode)(nil)
