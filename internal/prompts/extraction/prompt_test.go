package extraction

import (
	"strings"
	"testing"
)

func TestPromptsRender(t *testing.T) {
	r := NewResolver(nil)

	for _, key := range []string{SystemPromptKey, JSONSystemPromptKey, UserPromptKey} {
		if _, ok := r.GetEmbedded(key); !ok {
			t.Errorf("prompt %s not registered", key)
		}
	}

	data := Data{
		Title:       "invoice",
		Description: "supplier invoices",
		SchemaJSON:  `{"type":"object"}`,
		Document:    "# Invoice INV-1001",
	}

	user, resolved, err := r.Render(UserPromptKey, data)
	if err != nil {
		t.Fatalf("Render(user) error = %v", err)
	}
	if !strings.Contains(user, "# Invoice INV-1001") || !strings.Contains(user, "invoice data") {
		t.Errorf("user prompt = %q", user)
	}
	if resolved.IsOverride || resolved.Hash == "" {
		t.Errorf("resolved = %+v", resolved)
	}

	sys, _, err := r.Render(JSONSystemPromptKey, data)
	if err != nil {
		t.Fatalf("Render(json system) error = %v", err)
	}
	if !strings.Contains(sys, `{"type":"object"}`) {
		t.Errorf("json system prompt does not embed schema: %q", sys)
	}
	if !strings.Contains(sys, "supplier invoices") {
		t.Errorf("json system prompt does not include description: %q", sys)
	}

	plain, _, err := r.Render(SystemPromptKey, Data{})
	if err != nil {
		t.Fatalf("Render(system) error = %v", err)
	}
	if strings.Contains(plain, "The documents contain") {
		t.Errorf("empty description should be omitted: %q", plain)
	}
}
