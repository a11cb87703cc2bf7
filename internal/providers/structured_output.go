package providers

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// JSONSchemaFormat builds a json_schema response format. schema may be a map
// or a pre-rendered json.RawMessage, which keeps its property order.
func JSONSchemaFormat(name, description string, schema any, strict bool) (*ResponseFormat, error) {
	wrapper := map[string]any{
		"name":   name,
		"strict": strict,
		"schema": schema,
	}
	if description != "" {
		wrapper["description"] = description
	}
	raw, err := json.Marshal(wrapper)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize structured schema: %w", err)
	}
	return &ResponseFormat{Type: ResponseFormatJSONSchema, JSONSchema: raw}, nil
}

// ParseStructuredJSON returns the JSON object in model output. It accepts a
// bare object, one wrapped in a markdown code fence, or one embedded in prose,
// in which case the first complete object wins.
func ParseStructuredJSON(content string) (json.RawMessage, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, errors.New("empty structured output")
	}
	if json.Valid([]byte(content)) {
		return json.RawMessage(content), nil
	}
	if inner := stripCodeFence(content); inner != "" && json.Valid([]byte(inner)) {
		return json.RawMessage(inner), nil
	}
	if obj := firstObject(content); obj != nil {
		return obj, nil
	}
	return nil, fmt.Errorf("no JSON object in output (%d bytes)", len(content))
}

// stripCodeFence removes a leading ```lang line and a trailing ``` line.
func stripCodeFence(content string) string {
	if !strings.HasPrefix(content, "```") {
		return ""
	}
	_, body, ok := strings.Cut(content, "\n")
	if !ok {
		return ""
	}
	body = strings.TrimSpace(body)
	body = strings.TrimSuffix(body, "```")
	return strings.TrimSpace(body)
}

// firstObject decodes from each '{' in turn and returns the first one that
// starts a complete JSON value.
func firstObject(content string) json.RawMessage {
	for start := strings.IndexByte(content, '{'); start >= 0; {
		var raw json.RawMessage
		if err := json.NewDecoder(strings.NewReader(content[start:])).Decode(&raw); err == nil {
			return raw
		}
		next := strings.IndexByte(content[start+1:], '{')
		if next < 0 {
			break
		}
		start += next + 1
	}
	return nil
}
