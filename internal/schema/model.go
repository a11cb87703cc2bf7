package schema

import (
	"encoding/json"
	"fmt"
	"go/format"
	"strings"
	"unicode"
)

// Model is a typed descriptor compiled from an Extraction: the record type a
// function-calling request declares, and the shape its arguments decode from.
// Wire keys are identifier-safe; Alias keeps the original field name.
type Model struct {
	Name   string
	Fields []ModelField
}

// ModelField is one member of a Model.
type ModelField struct {
	Ident       string // exported Go identifier, e.g. "InvoiceNumber"
	Key         string // wire key: lowercased, whitespace replaced by "_"
	Alias       string // original field name
	Type        Type
	Description string
	Nullable    bool

	Elem   *ModelField // element of an array field
	Nested *Model      // members of an object field
}

// Model compiles the extraction into a typed model descriptor. The result is
// a pure function of the schema.
func (e *Extraction) Model() *Model {
	return compileModel(goIdent(e.Name()), e.Fields)
}

func compileModel(name string, fields []FieldSpec) *Model {
	m := &Model{Name: name, Fields: make([]ModelField, 0, len(fields))}
	keys := make(map[string]int)
	idents := make(map[string]int)
	for _, f := range fields {
		ident := uniqueName(idents, goIdent(f.Name), "%d")
		mf := compileField(name+ident, f)
		mf.Ident = ident
		mf.Key = uniqueName(keys, wireKey(f.Name), "_%d")
		mf.Nullable = !f.Required
		m.Fields = append(m.Fields, mf)
	}
	return m
}

// compileField builds a field; typeName names its nested model, if any.
func compileField(typeName string, f FieldSpec) ModelField {
	mf := ModelField{
		Ident:       goIdent(f.Name),
		Key:         wireKey(f.Name),
		Alias:       f.Name,
		Type:        f.Type,
		Description: f.Description,
	}
	switch f.Type {
	case TypeObject:
		mf.Nested = compileModel(typeName, f.Properties)
	case TypeArray:
		if f.Items != nil {
			elem := compileField(typeName+"Item", *f.Items)
			mf.Elem = &elem
		}
	}
	return mf
}

func uniqueName(seen map[string]int, name, suffix string) string {
	seen[name]++
	if n := seen[name]; n > 1 {
		return name + fmt.Sprintf(suffix, n)
	}
	return name
}

// wireKey lowercases and replaces whitespace with underscores.
func wireKey(name string) string {
	key := strings.Join(strings.Fields(strings.ToLower(name)), "_")
	if key == "" {
		return "field"
	}
	return key
}

// goIdent converts a field name to an exported Go identifier.
func goIdent(name string) string {
	parts := strings.FieldsFunc(name, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	var b strings.Builder
	for _, p := range parts {
		runes := []rune(p)
		runes[0] = unicode.ToUpper(runes[0])
		b.WriteString(string(runes))
	}
	ident := b.String()
	if ident == "" {
		return "Field"
	}
	if unicode.IsDigit([]rune(ident)[0]) {
		return "F" + ident
	}
	return ident
}

// Parameters renders the model as a JSON-Schema object suitable for function
// parameters, keyed by wire key.
func (m *Model) Parameters() json.RawMessage {
	return marshal(m.parameters())
}

func (m *Model) parameters() *object {
	s := newObject()
	s.set("title", m.Name)
	s.set("type", "object")
	props := newObject()
	var required []string
	for _, f := range m.Fields {
		props.set(f.Key, f.parameters())
		if !f.Nullable {
			required = append(required, f.Key)
		}
	}
	s.set("properties", props)
	if len(required) > 0 {
		s.set("required", required)
	}
	return s
}

func (f ModelField) parameters() *object {
	var s *object
	if f.Nested != nil {
		s = f.Nested.parameters()
	} else {
		s = newObject()
	}
	if f.Alias != "" {
		s.set("title", f.Alias)
	}

	jsonType := string(f.Type)
	if f.Type == TypeDate {
		jsonType = "string"
	}
	if f.Nullable {
		s.set("type", []string{jsonType, "null"})
	} else {
		s.set("type", jsonType)
	}
	if f.Type == TypeDate {
		s.set("format", "date")
	}
	if f.Description != "" {
		s.set("description", f.Description)
	}
	if f.Elem != nil {
		s.set("items", f.Elem.parameters())
	}
	return s
}

// Decode parses function-call arguments into a map keyed by original field
// names. Members may be keyed by wire key, alias or Go identifier; unknown
// members are dropped.
func (m *Model) Decode(args []byte) (map[string]any, error) {
	var raw map[string]any
	if err := json.Unmarshal(args, &raw); err != nil {
		return nil, fmt.Errorf("decode %s arguments: %w", m.Name, err)
	}
	return m.decodeObject(raw), nil
}

func (m *Model) decodeObject(raw map[string]any) map[string]any {
	out := make(map[string]any, len(m.Fields))
	for _, f := range m.Fields {
		v, ok := raw[f.Key]
		if !ok {
			v, ok = raw[f.Alias]
		}
		if !ok {
			v, ok = raw[f.Ident]
		}
		if !ok {
			continue
		}
		out[f.Alias] = f.decodeValue(v)
	}
	return out
}

func (f ModelField) decodeValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		if f.Nested != nil {
			return f.Nested.decodeObject(val)
		}
	case []any:
		if f.Elem != nil {
			out := make([]any, len(val))
			for i, item := range val {
				out[i] = f.Elem.decodeValue(item)
			}
			return out
		}
	}
	return v
}

// GoSource renders the model as Go type declarations, nested models after
// their parent.
func (m *Model) GoSource() string {
	var b strings.Builder
	m.writeGo(&b)
	src := []byte(b.String())
	if formatted, err := format.Source(src); err == nil {
		return string(formatted)
	}
	return string(src)
}

func (m *Model) writeGo(b *strings.Builder) {
	fmt.Fprintf(b, "type %s struct {\n", m.Name)
	var nested []*Model
	for _, f := range m.Fields {
		tag := f.Alias
		if f.Nullable {
			tag += ",omitempty"
		}
		fmt.Fprintf(b, "\t%s %s `json:%q`", f.Ident, f.goType(), tag)
		if f.Description != "" {
			fmt.Fprintf(b, " // %s", strings.Join(strings.Fields(f.Description), " "))
		}
		b.WriteString("\n")
		if f.Nested != nil && len(f.Nested.Fields) > 0 {
			nested = append(nested, f.Nested)
		}
		if f.Elem != nil && f.Elem.Nested != nil && len(f.Elem.Nested.Fields) > 0 {
			nested = append(nested, f.Elem.Nested)
		}
	}
	b.WriteString("}\n")
	for _, n := range nested {
		b.WriteString("\n")
		n.writeGo(b)
	}
}

func (f ModelField) goType() string {
	var t string
	switch f.Type {
	case TypeString, TypeDate:
		t = "string"
	case TypeNumber:
		t = "float64"
	case TypeBoolean:
		t = "bool"
	case TypeObject:
		if f.Nested == nil || len(f.Nested.Fields) == 0 {
			return "map[string]any"
		}
		t = f.Nested.Name
	case TypeArray:
		if f.Elem == nil {
			return "[]any"
		}
		return "[]" + f.Elem.goType()
	default:
		return "any"
	}
	if f.Nullable {
		return "*" + t
	}
	return t
}
