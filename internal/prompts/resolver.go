package prompts

import (
	"bytes"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"text/template"
)

// Resolver resolves prompts by key.
// Resolution order: override > embedded default.
type Resolver struct {
	mu        sync.RWMutex
	embedded  map[string]EmbeddedPrompt
	overrides map[string]string
	templates map[string]*template.Template
	logger    *slog.Logger
}

// NewResolver creates an empty resolver.
func NewResolver(logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		embedded:  make(map[string]EmbeddedPrompt),
		overrides: make(map[string]string),
		templates: make(map[string]*template.Template),
		logger:    logger,
	}
}

// Register registers an embedded prompt. It panics if the text is not a
// valid template, since embedded prompts are compiled into the binary.
func (r *Resolver) Register(prompt EmbeddedPrompt) {
	if prompt.Hash == "" {
		prompt.Hash = HashText(prompt.Text)
	}
	if prompt.Variables == nil {
		prompt.Variables = ExtractVariables(prompt.Text)
	}
	tmpl := template.Must(template.New(prompt.Key).Parse(prompt.Text))

	r.mu.Lock()
	defer r.mu.Unlock()
	r.embedded[prompt.Key] = prompt
	if _, overridden := r.overrides[prompt.Key]; !overridden {
		r.templates[prompt.Key] = tmpl
	}
	r.logger.Debug("registered embedded prompt", "key", prompt.Key, "vars", prompt.Variables)
}

// SetOverride replaces the text used for key. Unknown keys are rejected so a
// typo in the config file does not silently fall back to the default.
func (r *Resolver) SetOverride(key, text string) error {
	tmpl, err := template.New(key).Parse(text)
	if err != nil {
		return fmt.Errorf("invalid prompt override %s: %w", key, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.embedded[key]; !ok {
		return fmt.Errorf("unknown prompt key: %s", key)
	}
	r.overrides[key] = text
	r.templates[key] = tmpl
	r.logger.Info("prompt override set", "key", key, "hash", HashText(text))
	return nil
}

// Resolve returns the prompt text for key.
func (r *Resolver) Resolve(key string) (*ResolvedPrompt, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if text, ok := r.overrides[key]; ok {
		return &ResolvedPrompt{
			Key:        key,
			Text:       text,
			Variables:  ExtractVariables(text),
			IsOverride: true,
			Hash:       HashText(text),
		}, nil
	}

	embedded, ok := r.embedded[key]
	if !ok {
		return nil, fmt.Errorf("prompt not found: %s", key)
	}
	return &ResolvedPrompt{
		Key:       key,
		Text:      embedded.Text,
		Variables: embedded.Variables,
		Hash:      embedded.Hash,
	}, nil
}

// Render resolves key and executes it with data.
func (r *Resolver) Render(key string, data any) (string, *ResolvedPrompt, error) {
	resolved, err := r.Resolve(key)
	if err != nil {
		return "", nil, err
	}

	r.mu.RLock()
	tmpl := r.templates[key]
	r.mu.RUnlock()

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", resolved, fmt.Errorf("failed to render prompt %s: %w", key, err)
	}
	return buf.String(), resolved, nil
}

// Keys returns every registered key, sorted.
func (r *Resolver) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.embedded))
	for k := range r.embedded {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// GetEmbedded returns the embedded default for a key.
func (r *Resolver) GetEmbedded(key string) (EmbeddedPrompt, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.embedded[key]
	return p, ok
}
