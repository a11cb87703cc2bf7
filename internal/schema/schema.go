// Package schema loads extraction and output schemas and renders them into
// the request shapes each extraction strategy needs.
//
// An extraction schema is a JSON-Schema-like document:
//
//	{
//	  "title": "invoice",
//	  "properties": {
//	    "invoice_number": {"type": "string", "description": "..."},
//	    "invoice_date":   {"type": "string", "format": "date"},
//	    "total_amount":   {"type": "number"}
//	  },
//	  "required": ["invoice_number"]
//	}
//
// Normalize turns it into an Extraction: an ordered, immutable list of
// FieldSpec values. Declaration order is preserved because it drives prompt
// construction and output rendering.
package schema

import (
	"regexp"
	"strings"
)

// Type is a canonical field type.
type Type string

const (
	TypeString  Type = "string"
	TypeNumber  Type = "number"
	TypeBoolean Type = "boolean"
	TypeDate    Type = "date"
	TypeObject  Type = "object"
	TypeArray   Type = "array"
)

// Valid reports whether t is one of the canonical types.
func (t Type) Valid() bool {
	switch t {
	case TypeString, TypeNumber, TypeBoolean, TypeDate, TypeObject, TypeArray:
		return true
	}
	return false
}

// FieldSpec describes one field to extract.
type FieldSpec struct {
	Name        string `json:"name" yaml:"name"`
	Type        Type   `json:"type" yaml:"type"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Required    bool   `json:"required" yaml:"required"`

	// Format is the raw JSON-Schema format, if any ("date", "email", ...).
	Format string `json:"format,omitempty" yaml:"format,omitempty"`

	// Items is the element spec of an array field.
	Items *FieldSpec `json:"items,omitempty" yaml:"items,omitempty"`

	// Properties are the members of an object field, in declaration order.
	Properties []FieldSpec `json:"properties,omitempty" yaml:"properties,omitempty"`
}

// Extraction is a normalized extraction schema. It is never mutated after
// Normalize returns and may be shared across goroutines.
type Extraction struct {
	Title       string      `json:"title,omitempty" yaml:"title,omitempty"`
	Description string      `json:"description,omitempty" yaml:"description,omitempty"`
	Fields      []FieldSpec `json:"fields" yaml:"fields"`
}

// Field returns the top-level field with the given name.
func (e *Extraction) Field(name string) (FieldSpec, bool) {
	for _, f := range e.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldSpec{}, false
}

// Names returns the top-level field names in declaration order.
func (e *Extraction) Names() []string {
	names := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		names[i] = f.Name
	}
	return names
}

// Required returns the names of required top-level fields.
func (e *Extraction) Required() []string {
	var names []string
	for _, f := range e.Fields {
		if f.Required {
			names = append(names, f.Name)
		}
	}
	return names
}

var nonIdent = regexp.MustCompile(`[^a-z0-9]+`)

// Name returns an identifier-safe name for the schema, derived from Title.
// Used for tool and response-format names, which providers restrict to
// [a-zA-Z0-9_-].
func (e *Extraction) Name() string {
	name := strings.Trim(nonIdent.ReplaceAllString(strings.ToLower(e.Title), "_"), "_")
	if name == "" {
		return "document"
	}
	if len(name) > 48 {
		name = strings.TrimRight(name[:48], "_")
	}
	return name
}
