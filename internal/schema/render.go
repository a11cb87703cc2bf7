package schema

import (
	"bytes"
	"encoding/json"
)

// JSONSchema renders the extraction as a plain JSON-Schema document, with
// properties in declaration order. Used in JSON-mode prompts and for local
// validation of responses.
func (e *Extraction) JSONSchema() json.RawMessage {
	doc := newObject()
	if e.Title != "" {
		doc.set("title", e.Title)
	}
	if e.Description != "" {
		doc.set("description", e.Description)
	}
	doc.set("type", "object")
	doc.set("properties", propertiesSchema(e.Fields, false))
	if req := e.Required(); len(req) > 0 {
		doc.set("required", req)
	}
	return marshal(doc)
}

// StrictJSONSchema renders the extraction in the form accepted by strict
// structured outputs: every object closes additionalProperties and lists all
// of its properties as required, and optional fields become nullable.
func (e *Extraction) StrictJSONSchema() json.RawMessage {
	doc := newObject()
	doc.set("type", "object")
	doc.set("properties", propertiesSchema(e.Fields, true))
	doc.set("required", e.Names())
	doc.set("additionalProperties", false)
	return marshal(doc)
}

func propertiesSchema(fields []FieldSpec, strict bool) *object {
	props := newObject()
	for _, f := range fields {
		props.set(f.Name, fieldSchema(f, strict, strict && !f.Required))
	}
	return props
}

func fieldSchema(f FieldSpec, strict, nullable bool) *object {
	s := newObject()

	jsonType := string(f.Type)
	description := f.Description
	switch f.Type {
	case TypeDate:
		jsonType = "string"
		if strict {
			description = appendSentence(description, "Format: YYYY-MM-DD.")
		}
	}

	if nullable {
		s.set("type", []string{jsonType, "null"})
	} else {
		s.set("type", jsonType)
	}
	if description != "" {
		s.set("description", description)
	}
	if f.Format != "" && !strict {
		s.set("format", f.Format)
	}

	switch f.Type {
	case TypeObject:
		s.set("properties", propertiesSchema(f.Properties, strict))
		if strict {
			names := make([]string, len(f.Properties))
			for i, p := range f.Properties {
				names[i] = p.Name
			}
			s.set("required", names)
			s.set("additionalProperties", false)
		} else if req := requiredNames(f.Properties); len(req) > 0 {
			s.set("required", req)
		}
	case TypeArray:
		if f.Items != nil {
			s.set("items", fieldSchema(*f.Items, strict, false))
		}
	}
	return s
}

func requiredNames(fields []FieldSpec) []string {
	var names []string
	for _, f := range fields {
		if f.Required {
			names = append(names, f.Name)
		}
	}
	return names
}

func appendSentence(s, sentence string) string {
	if s == "" {
		return sentence
	}
	if last := s[len(s)-1]; last != '.' && last != '!' && last != '?' {
		s += "."
	}
	return s + " " + sentence
}

// object is a JSON object that marshals its members in insertion order.
type object struct {
	keys []string
	vals map[string]any
}

func newObject() *object {
	return &object{vals: make(map[string]any)}
}

func (o *object) set(key string, value any) {
	if _, ok := o.vals[key]; !ok {
		o.keys = append(o.keys, key)
	}
	o.vals[key] = value
}

func (o *object) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range o.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := json.Marshal(o.vals[k])
		if err != nil {
			return nil, err
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// marshal encodes documents built only from strings, bools, string slices
// and nested objects, which cannot fail.
func marshal(v any) json.RawMessage {
	raw, err := json.Marshal(v)
	if err != nil {
		panic("schema: marshal rendered document: " + err.Error())
	}
	return raw
}
