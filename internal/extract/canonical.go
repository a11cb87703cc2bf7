package extract

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/jackzampolin/invex/internal/schema"
)

// DateLayout is the canonical date representation.
const DateLayout = "2006-01-02"

// Canonicalize maps a decoded model response onto the schema's top-level
// fields. Every declared field appears in the result; absent or null members
// are nil. A member that cannot be coerced to its field type is set to nil
// and reported in the returned errors, while the other fields are kept.
//
// Canonical types: string (trimmed, "" is nil), number (float64), boolean
// (bool), date ("YYYY-MM-DD" string), object (map[string]any over declared
// members), array ([]any).
func Canonicalize(s *schema.Extraction, raw map[string]any) (map[string]any, []error) {
	return canonicalMembers("", s.Fields, raw)
}

// CanonicalValue coerces one decoded JSON value to the field's canonical
// type. Objects and arrays keep their valid members when some fail.
func CanonicalValue(f schema.FieldSpec, v any) (any, error) {
	cv, errs := canonicalValue(f.Name, f, v)
	return cv, errors.Join(errs...)
}

func canonicalMembers(path string, fields []schema.FieldSpec, raw map[string]any) (map[string]any, []error) {
	out := make(map[string]any, len(fields))
	var errs []error
	for _, f := range fields {
		v, _ := lookup(raw, f.Name)
		cv, ferrs := canonicalValue(joinPath(path, f.Name), f, v)
		errs = append(errs, ferrs...)
		out[f.Name] = cv
	}
	return out, errs
}

func canonicalValue(path string, f schema.FieldSpec, v any) (any, []error) {
	if v == nil {
		return nil, nil
	}
	switch f.Type {
	case schema.TypeObject:
		m, ok := v.(map[string]any)
		if !ok {
			return nil, []error{fmt.Errorf("field %s: expected object, got %s", path, jsonKind(v))}
		}
		if len(f.Properties) == 0 {
			return m, nil
		}
		return canonicalMembers(path, f.Properties, m)
	case schema.TypeArray:
		items, ok := v.([]any)
		if !ok {
			return nil, []error{fmt.Errorf("field %s: expected array, got %s", path, jsonKind(v))}
		}
		if f.Items == nil {
			return items, nil
		}
		out := make([]any, len(items))
		var errs []error
		for i, item := range items {
			cv, ierrs := canonicalValue(fmt.Sprintf("%s[%d]", path, i), *f.Items, item)
			errs = append(errs, ierrs...)
			out[i] = cv
		}
		return out, errs
	}

	cv, err := canonicalScalar(f.Type, v)
	if err != nil {
		return nil, []error{fmt.Errorf("field %s: %w", path, err)}
	}
	return cv, nil
}

func canonicalScalar(t schema.Type, v any) (any, error) {
	switch t {
	case schema.TypeString:
		return canonicalString(v)
	case schema.TypeNumber:
		return canonicalNumber(v)
	case schema.TypeBoolean:
		return canonicalBool(v)
	case schema.TypeDate:
		return canonicalDate(v)
	}
	return nil, fmt.Errorf("unsupported type %q", t)
}

func canonicalString(v any) (any, error) {
	var s string
	switch val := v.(type) {
	case string:
		s = strings.TrimSpace(val)
	case float64:
		s = strconv.FormatFloat(val, 'f', -1, 64)
	case json.Number:
		s = val.String()
	case bool:
		s = strconv.FormatBool(val)
	default:
		return nil, fmt.Errorf("expected string, got %s", jsonKind(v))
	}
	if s == "" {
		return nil, nil
	}
	return s, nil
}

var thousandsGrouped = regexp.MustCompile(`^[+-]?\d{1,3}(,\d{3})+(\.\d+)?$`)

func canonicalNumber(v any) (any, error) {
	switch val := v.(type) {
	case float64:
		return val, nil
	case json.Number:
		return ParseNumber(val.String())
	case string:
		if strings.TrimSpace(val) == "" {
			return nil, nil
		}
		return ParseNumber(val)
	default:
		return nil, fmt.Errorf("expected number, got %s", jsonKind(v))
	}
}

// ParseNumber parses a numeric string. Spaces and underscores are ignored;
// commas are accepted only as thousands separators ("1,234.50"). Anything
// else, including decimal commas, is rejected rather than guessed.
func ParseNumber(s string) (float64, error) {
	clean := strings.Map(func(r rune) rune {
		if r == ' ' || r == '_' || r == ' ' {
			return -1
		}
		return r
	}, s)
	if strings.Contains(clean, ",") {
		if !thousandsGrouped.MatchString(clean) {
			return 0, fmt.Errorf("ambiguous number %q", s)
		}
		clean = strings.ReplaceAll(clean, ",", "")
	}
	f, err := strconv.ParseFloat(clean, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", s)
	}
	return f, nil
}

func canonicalBool(v any) (any, error) {
	switch val := v.(type) {
	case bool:
		return val, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "true", "yes":
			return true, nil
		case "false", "no":
			return false, nil
		case "":
			return nil, nil
		}
		return nil, fmt.Errorf("invalid boolean %q", val)
	default:
		return nil, fmt.Errorf("expected boolean, got %s", jsonKind(v))
	}
}

// dateLayouts are accepted inputs. Day-first and month-first numeric forms
// such as 03/01/2024 are ambiguous and rejected.
var dateLayouts = []string{
	DateLayout,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006/01/02",
	"2006.01.02",
	"January 2, 2006",
	"2 January 2006",
	"Jan 2, 2006",
	"2 Jan 2006",
}

func canonicalDate(v any) (any, error) {
	s, ok := v.(string)
	if !ok {
		return nil, fmt.Errorf("expected date string, got %s", jsonKind(v))
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	d, err := ParseDate(s)
	if err != nil {
		return nil, err
	}
	return d, nil
}

// ParseDate normalizes a date string to YYYY-MM-DD.
func ParseDate(s string) (string, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(DateLayout), nil
		}
	}
	return "", fmt.Errorf("invalid date %q", s)
}

// lookup finds a member by exact name, then by a loose match ignoring case
// and treating spaces, dashes and underscores alike.
func lookup(raw map[string]any, name string) (any, bool) {
	if v, ok := raw[name]; ok {
		return v, true
	}
	want := looseKey(name)
	match, found := "", false
	for k := range raw {
		if looseKey(k) == want && (!found || k < match) {
			match, found = k, true
		}
	}
	if !found {
		return nil, false
	}
	return raw[match], true
}

func looseKey(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '_':
			return -1
		}
		return r
	}, strings.ToLower(s))
}

func jsonKind(v any) string {
	switch v.(type) {
	case string:
		return "string"
	case float64, json.Number:
		return "number"
	case bool:
		return "boolean"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	}
	return fmt.Sprintf("%T", v)
}

func joinPath(parent, name string) string {
	if parent == "" {
		return name
	}
	return parent + "." + name
}
