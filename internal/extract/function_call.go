package extract

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackzampolin/invex/internal/prompts/extraction"
	"github.com/jackzampolin/invex/internal/providers"
	"github.com/jackzampolin/invex/internal/schema"
)

// FunctionCall declares one tool whose parameters are the compiled model and
// reads the values from the arguments of the call the model makes.
type FunctionCall struct {
	base
}

// NewFunctionCall creates a function-calling extractor.
func NewFunctionCall(client providers.LLMClient, opts ...Option) *FunctionCall {
	x := &FunctionCall{}
	x.init(KindFunctionCall, client, opts)
	return x
}

// ToolName is the function declared for s.
func ToolName(s *schema.Extraction) string {
	return "extract_" + s.Name()
}

// Extract implements Extractor.
func (x *FunctionCall) Extract(ctx context.Context, doc string, s *schema.Extraction, m ModelConfig) Result {
	a := x.begin(m)
	c, err := x.compile(s)
	if err != nil {
		a.fail(ParseError, err.Error(), err)
		return x.done(ctx, a)
	}

	data := promptData(s, doc)
	req, err := x.request(a, extraction.SystemPromptKey, data, m)
	if err != nil {
		a.fail(ParseError, err.Error(), err)
		return x.done(ctx, a)
	}
	tool := providers.Tool{
		Type: "function",
		Function: providers.ToolFunction{
			Name:        ToolName(s),
			Description: fmt.Sprintf("Record the %s fields extracted from the document.", data.Title),
			Parameters:  c.model.Parameters(),
		},
	}

	chat, err := x.client.ChatWithTools(ctx, req, []providers.Tool{tool})
	if !x.called(a, chat, err) {
		return x.done(ctx, a)
	}
	if len(chat.ToolCalls) == 0 {
		a.res.Raw = chat.Content
		err := errors.New("response contains no tool call")
		a.fail(ParseError, err.Error(), err)
		return x.done(ctx, a)
	}

	call := chat.ToolCalls[0]
	a.res.Raw = call.Function.Arguments
	if call.Function.Name != tool.Function.Name {
		x.logger.WarnContext(ctx, "unexpected tool name", "want", tool.Function.Name, "got", call.Function.Name)
	}
	raw, err := c.model.Decode([]byte(call.Function.Arguments))
	if err != nil {
		a.fail(ParseError, err.Error(), err)
		return x.done(ctx, a)
	}
	x.finish(a, s, c, raw)
	return x.done(ctx, a)
}

var _ Extractor = (*FunctionCall)(nil)
