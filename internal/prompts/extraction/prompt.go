// Package extraction holds the embedded prompts used by the extractors.
package extraction

import (
	_ "embed"
	"log/slog"

	"github.com/jackzampolin/invex/internal/prompts"
)

//go:embed system.tmpl
var systemPrompt string

//go:embed json_system.tmpl
var jsonSystemPrompt string

//go:embed user.tmpl
var userPrompt string

// Prompt keys
const (
	SystemPromptKey     = "extract.system"
	JSONSystemPromptKey = "extract.json_system"
	UserPromptKey       = "extract.user"
)

// Data is the template input shared by all extraction prompts.
type Data struct {
	Title       string // schema title, human readable
	Description string // schema description
	SchemaJSON  string // JSON-Schema document, JSON mode only
	Document    string // markdown content
}

// Register adds the extraction prompts to r.
func Register(r *prompts.Resolver) {
	r.Register(prompts.EmbeddedPrompt{
		Key:         SystemPromptKey,
		Text:        systemPrompt,
		Description: "System prompt for structured output and function calling",
	})
	r.Register(prompts.EmbeddedPrompt{
		Key:         JSONSystemPromptKey,
		Text:        jsonSystemPrompt,
		Description: "System prompt for JSON mode; embeds the JSON Schema",
	})
	r.Register(prompts.EmbeddedPrompt{
		Key:         UserPromptKey,
		Text:        userPrompt,
		Description: "User prompt carrying the document",
	})
}

// NewResolver returns a resolver with the extraction prompts registered.
func NewResolver(logger *slog.Logger) *prompts.Resolver {
	r := prompts.NewResolver(logger)
	Register(r)
	return r
}
