package schema

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Validator checks extracted values against a compiled JSON-Schema document.
type Validator struct {
	schema *jsonschema.Schema
}

// Compile compiles a JSON-Schema document. Formats such as "date" are
// asserted, not just annotated.
func Compile(doc json.RawMessage) (*Validator, error) {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	c.AssertFormat = true
	if err := c.AddResource("schema.json", bytes.NewReader(doc)); err != nil {
		return nil, fmt.Errorf("failed to load schema: %w", err)
	}
	s, err := c.Compile("schema.json")
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}
	return &Validator{schema: s}, nil
}

// Validator compiles the extraction's plain JSON-Schema form.
func (e *Extraction) Validator() (*Validator, error) {
	return Compile(e.JSONSchema())
}

// Validate checks a value map. Null members are treated as absent, so a
// missing optional field passes and a missing required field fails.
func (v *Validator) Validate(values map[string]any) error {
	return v.schema.Validate(pruneNulls(values))
}

func pruneNulls(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			if item == nil {
				continue
			}
			out[k] = pruneNulls(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = pruneNulls(item)
		}
		return out
	default:
		return v
	}
}
