package prompts

import (
	"reflect"
	"testing"
)

func TestResolver(t *testing.T) {
	r := NewResolver(nil)
	r.Register(EmbeddedPrompt{Key: "test.user", Text: "Hello {{.Name}}"})

	t.Run("embedded default", func(t *testing.T) {
		text, resolved, err := r.Render("test.user", map[string]string{"Name": "Ada"})
		if err != nil {
			t.Fatalf("Render() error = %v", err)
		}
		if text != "Hello Ada" {
			t.Errorf("text = %q", text)
		}
		if resolved.IsOverride {
			t.Error("IsOverride = true, want false")
		}
		if resolved.Hash != HashText("Hello {{.Name}}") {
			t.Errorf("Hash = %q", resolved.Hash)
		}
		if !reflect.DeepEqual(resolved.Variables, []string{"Name"}) {
			t.Errorf("Variables = %v", resolved.Variables)
		}
	})

	t.Run("override wins", func(t *testing.T) {
		if err := r.SetOverride("test.user", "Hi {{.Name}}!"); err != nil {
			t.Fatalf("SetOverride() error = %v", err)
		}
		text, resolved, err := r.Render("test.user", map[string]string{"Name": "Ada"})
		if err != nil {
			t.Fatalf("Render() error = %v", err)
		}
		if text != "Hi Ada!" || !resolved.IsOverride {
			t.Errorf("text = %q, resolved = %+v", text, resolved)
		}
	})

	t.Run("unknown override key", func(t *testing.T) {
		if err := r.SetOverride("test.nope", "x"); err == nil {
			t.Error("expected error for unknown key")
		}
	})

	t.Run("invalid override template", func(t *testing.T) {
		if err := r.SetOverride("test.user", "{{.Name"); err == nil {
			t.Error("expected parse error")
		}
	})

	t.Run("missing key", func(t *testing.T) {
		if _, err := r.Resolve("missing"); err == nil {
			t.Error("expected error")
		}
	})

	if got := r.Keys(); !reflect.DeepEqual(got, []string{"test.user"}) {
		t.Errorf("Keys() = %v", got)
	}
}

func TestExtractVariables(t *testing.T) {
	got := ExtractVariables("{{.Document}} {{ .Schema.Title }} {{.Document}}")
	want := []string{"Document", "Schema.Title"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ExtractVariables() = %v, want %v", got, want)
	}
}

func TestShortHash(t *testing.T) {
	if got := ShortHash("abc"); len(got) != 12 || got != HashText("abc")[:12] {
		t.Errorf("ShortHash() = %q", got)
	}
}
