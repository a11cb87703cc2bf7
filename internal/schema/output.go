package schema

import (
	"encoding/json"
	"strings"
)

// OutputField is one column of the desired output shape.
type OutputField struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// Output is the desired output shape. It is independent of the extraction
// schema: the two may list different fields in a different order.
type Output struct {
	Fields []OutputField `json:"fields" yaml:"fields"`
}

// Names returns the output field names in order.
func (o *Output) Names() []string {
	names := make([]string, len(o.Fields))
	for i, f := range o.Fields {
		names[i] = f.Name
	}
	return names
}

// NormalizeOutput parses an output schema of the form
// {"fields": [{"name": "...", "description": "..."}]}.
func NormalizeOutput(raw []byte) (*Output, error) {
	var out Output
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, errorf("", "invalid output schema JSON: %v", err)
	}
	if len(out.Fields) == 0 {
		return nil, errorf("", "output schema declares no fields")
	}

	seen := make(map[string]bool, len(out.Fields))
	for i := range out.Fields {
		name := strings.TrimSpace(out.Fields[i].Name)
		if name == "" {
			return nil, errorf("", "output field %d has no name", i)
		}
		if seen[name] {
			return nil, errorf(name, "duplicate output field name")
		}
		seen[name] = true
		out.Fields[i].Name = name
	}
	return &out, nil
}

// OutputFor mirrors an extraction schema's top-level fields. Used when no
// output schema is selected.
func OutputFor(e *Extraction) *Output {
	out := &Output{Fields: make([]OutputField, len(e.Fields))}
	for i, f := range e.Fields {
		out.Fields[i] = OutputField{Name: f.Name, Description: f.Description}
	}
	return out
}
