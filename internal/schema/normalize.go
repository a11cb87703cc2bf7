package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// rawDef is one JSON-Schema node as written by the user.
type rawDef struct {
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Type        json.RawMessage `json:"type"`
	Format      string          `json:"format"`
	Properties  json.RawMessage `json:"properties"`
	Required    []string        `json:"required"`
	Items       json.RawMessage `json:"items"`
}

// Normalize parses a raw extraction schema. It fails with an *Error when a
// field has no type, a name is declared twice, a type is unsupported, or
// required lists an undeclared field. Normalize is pure: the same input
// always yields an identical Extraction.
func Normalize(raw []byte) (*Extraction, error) {
	var doc rawDef
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, errorf("", "invalid JSON: %v", err)
	}

	if len(doc.Type) > 0 {
		typ, err := parseType("", doc.Type)
		if err != nil {
			return nil, err
		}
		if typ != string(TypeObject) {
			return nil, errorf("", "top-level type must be object, got %q", typ)
		}
	}
	if isNull(doc.Properties) {
		return nil, errorf("", "no properties declared")
	}

	fields, err := normalizeProperties("", doc.Properties, doc.Required)
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, errorf("", "no properties declared")
	}

	return &Extraction{
		Title:       doc.Title,
		Description: doc.Description,
		Fields:      fields,
	}, nil
}

func normalizeProperties(path string, props json.RawMessage, required []string) ([]FieldSpec, error) {
	if isNull(props) {
		if len(required) > 0 {
			return nil, errorf(path, "required field %q is not declared", required[0])
		}
		return nil, nil
	}

	members, err := decodeMembers(props)
	if err != nil {
		return nil, errorf(path, "properties: %v", err)
	}

	req := make(map[string]bool, len(required))
	for _, name := range required {
		req[name] = true
	}

	seen := make(map[string]bool, len(members))
	fields := make([]FieldSpec, 0, len(members))
	for _, m := range members {
		fieldPath := joinPath(path, m.key)
		if m.key == "" {
			return nil, errorf(path, "empty field name")
		}
		if seen[m.key] {
			return nil, errorf(fieldPath, "duplicate field name")
		}
		seen[m.key] = true

		f, err := normalizeField(fieldPath, m.key, m.value)
		if err != nil {
			return nil, err
		}
		f.Required = req[m.key]
		fields = append(fields, f)
	}

	for _, name := range required {
		if !seen[name] {
			return nil, errorf(path, "required field %q is not declared", name)
		}
	}
	return fields, nil
}

func normalizeField(path, name string, raw json.RawMessage) (FieldSpec, error) {
	var def rawDef
	if err := json.Unmarshal(raw, &def); err != nil {
		return FieldSpec{}, errorf(path, "invalid definition: %v", err)
	}
	if isNull(def.Type) {
		return FieldSpec{}, errorf(path, "missing type")
	}
	typ, err := parseType(path, def.Type)
	if err != nil {
		return FieldSpec{}, err
	}

	f := FieldSpec{
		Name:        name,
		Description: def.Description,
		Format:      def.Format,
	}

	switch typ {
	case "string":
		f.Type = TypeString
		if def.Format == "date" {
			f.Type = TypeDate
		}
	case "date":
		f.Type = TypeDate
		f.Format = "date"
	case "number", "integer":
		f.Type = TypeNumber
	case "boolean":
		f.Type = TypeBoolean
	case "object":
		f.Type = TypeObject
		props, err := normalizeProperties(path, def.Properties, def.Required)
		if err != nil {
			return FieldSpec{}, err
		}
		f.Properties = props
	case "array":
		f.Type = TypeArray
		if isNull(def.Items) {
			return FieldSpec{}, errorf(path, "array field has no items definition")
		}
		item, err := normalizeField(path+"[]", "", def.Items)
		if err != nil {
			return FieldSpec{}, err
		}
		f.Items = &item
	default:
		return FieldSpec{}, errorf(path, "unsupported type %q", typ)
	}
	return f, nil
}

// parseType accepts "string" or a union with "null" such as ["string","null"].
func parseType(path string, raw json.RawMessage) (string, error) {
	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		return single, nil
	}
	var union []string
	if err := json.Unmarshal(raw, &union); err != nil {
		return "", errorf(path, "type must be a string or a list of strings")
	}
	var types []string
	for _, t := range union {
		if t != "null" {
			types = append(types, t)
		}
	}
	if len(types) != 1 {
		return "", errorf(path, "ambiguous type %v", union)
	}
	return types[0], nil
}

type member struct {
	key   string
	value json.RawMessage
}

// decodeMembers decodes a JSON object keeping its members in document order.
func decodeMembers(data json.RawMessage) ([]member, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("expected an object")
	}

	var members []member
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected token %v", tok)
		}
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil, err
		}
		members = append(members, member{key: key, value: value})
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return members, nil
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

func joinPath(parent, name string) string {
	if parent == "" {
		return name
	}
	return parent + "." + name
}
