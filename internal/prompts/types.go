// Package prompts manages prompt templates: embedded defaults registered by
// the packages that use them, optionally replaced by user overrides from the
// config file.
//
// Resolution order for a key:
//  1. Override (config file, if set)
//  2. Embedded default (.tmpl file compiled into the binary)
//
// Every resolved prompt carries a hash of its text so call logs can tie a
// model response to the exact prompt version that produced it.
package prompts

// EmbeddedPrompt is a default prompt compiled into the binary.
type EmbeddedPrompt struct {
	Key         string   // Hierarchical key: extract.system
	Text        string   // The prompt text (Go template)
	Description string   // Human-readable description
	Variables   []string // Extracted template variables
	Hash        string   // SHA256 hash of the text for change detection
}

// ResolvedPrompt is the prompt text chosen for a key.
type ResolvedPrompt struct {
	Key        string   `json:"key"`
	Text       string   `json:"text"`
	Variables  []string `json:"variables,omitempty"`
	IsOverride bool     `json:"is_override"`
	Hash       string   `json:"hash"`
}
