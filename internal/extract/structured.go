package extract

import (
	"context"

	"github.com/jackzampolin/invex/internal/prompts/extraction"
	"github.com/jackzampolin/invex/internal/providers"
	"github.com/jackzampolin/invex/internal/schema"
)

// StructuredOutput sends the strict schema as a json_schema response format,
// so the provider constrains decoding to it.
type StructuredOutput struct {
	base
}

// NewStructuredOutput creates a structured-output extractor.
func NewStructuredOutput(client providers.LLMClient, opts ...Option) *StructuredOutput {
	x := &StructuredOutput{}
	x.init(KindStructuredOutput, client, opts)
	return x
}

// Extract implements Extractor.
func (x *StructuredOutput) Extract(ctx context.Context, doc string, s *schema.Extraction, m ModelConfig) Result {
	a := x.begin(m)
	c, err := x.compile(s)
	if err != nil {
		a.fail(ParseError, err.Error(), err)
		return x.done(ctx, a)
	}

	req, err := x.request(a, extraction.SystemPromptKey, promptData(s, doc), m)
	if err != nil {
		a.fail(ParseError, err.Error(), err)
		return x.done(ctx, a)
	}
	req.ResponseFormat, err = providers.JSONSchemaFormat(s.Name(), s.Description, s.StrictJSONSchema(), true)
	if err != nil {
		a.fail(ParseError, err.Error(), err)
		return x.done(ctx, a)
	}

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

var _ Extractor = (*StructuredOutput)(nil)
