package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jackzampolin/invex/internal/config"
	"github.com/jackzampolin/invex/internal/extract"
	"github.com/jackzampolin/invex/internal/home"
	"github.com/jackzampolin/invex/internal/interactive"
	"github.com/jackzampolin/invex/internal/schema"
)

func testEnv(t *testing.T) *env {
	t.Helper()
	h, err := home.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if err := h.EnsureExists(); err != nil {
		t.Fatal(err)
	}
	if _, err := h.SeedBuiltins(); err != nil {
		t.Fatal(err)
	}
	doc := "# Invoice INV-1001\n\nTotal: 100.00\n"
	if err := os.WriteFile(filepath.Join(h.OutputsDir(), "invoice.md"), []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	return &env{
		home:   h,
		cfg:    config.DefaultConfig(),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func TestResolve_Defaults(t *testing.T) {
	e := testEnv(t)
	r := &resolver{env: e, flags: extractFlags{doc: "invoice"}}

	s, err := r.resolve(context.Background())
	if err != nil {
		t.Fatalf("resolve() error = %v", err)
	}
	if s.ID == "" || !s.RecordCalls || s.SaveReports {
		t.Errorf("session flags = %+v", s)
	}
	if filepath.Base(s.SchemaPath) != "invoice.json" || filepath.Base(s.OutputPath) != "invoice.json" {
		t.Errorf("schema = %s, output = %s", s.SchemaPath, s.OutputPath)
	}
	if len(s.Models) != 1 || s.Models[0].Key != "gpt4o" || s.Models[0].Deployment != "gpt-4o" {
		t.Errorf("models = %+v", s.Models)
	}
	if len(s.Extractors) != 1 || s.Extractors[0].Kind != extract.KindJSONMode {
		t.Errorf("extractors = %+v", s.Extractors)
	}
	if s.Runs != 5 || s.Runner.Concurrency != 5 {
		t.Errorf("runs = %d, runner = %+v", s.Runs, s.Runner)
	}
	if !strings.Contains(s.Doc, "INV-1001") {
		t.Errorf("doc = %q", s.Doc)
	}
}

func TestResolve_Flags(t *testing.T) {
	e := testEnv(t)
	r := &resolver{env: e, flags: extractFlags{
		doc:         filepath.Join(e.home.OutputsDir(), "invoice.md"),
		models:      []string{"gpt4o", "gpt4o-mini", "gpt4o"},
		extractors:  []string{"json_mode", "instructor"},
		runs:        3,
		concurrency: 1,
		noCallLog:   true,
	}}

	s, err := r.resolve(context.Background())
	if err != nil {
		t.Fatalf("resolve() error = %v", err)
	}
	if len(s.Models) != 2 {
		t.Errorf("duplicate model flags should collapse, got %d models", len(s.Models))
	}
	if len(s.Extractors) != 2 || s.Extractors[1].Kind != extract.KindFunctionCall {
		t.Errorf("extractors = %+v", s.Extractors)
	}
	if s.Runs != 3 || s.Runner.Concurrency != 1 || s.RecordCalls {
		t.Errorf("session = %+v", s)
	}
}

func TestResolve_Errors(t *testing.T) {
	t.Run("malformed schema fails first", func(t *testing.T) {
		e := testEnv(t)
		bad := filepath.Join(e.home.SchemasDir(), "bad.json")
		if err := os.WriteFile(bad, []byte(`{"properties":{"total":{"description":"no type"}}}`), 0o644); err != nil {
			t.Fatal(err)
		}
		r := &resolver{env: e, flags: extractFlags{schema: "bad", doc: "missing"}}
		if _, err := r.resolve(context.Background()); !errors.Is(err, schema.ErrSchema) {
			t.Errorf("resolve() error = %v, want ErrSchema", err)
		}
	})

	t.Run("unknown model", func(t *testing.T) {
		r := &resolver{env: testEnv(t), flags: extractFlags{doc: "invoice", models: []string{"claude"}}}
		if _, err := r.resolve(context.Background()); err == nil || !strings.Contains(err.Error(), `unknown model "claude"`) {
			t.Errorf("resolve() error = %v", err)
		}
	})

	t.Run("no document", func(t *testing.T) {
		r := &resolver{env: testEnv(t)}
		if _, err := r.resolve(context.Background()); err == nil || !strings.Contains(err.Error(), "document") {
			t.Errorf("resolve() error = %v", err)
		}
	})

	t.Run("empty document", func(t *testing.T) {
		e := testEnv(t)
		if err := os.WriteFile(filepath.Join(e.home.OutputsDir(), "blank.md"), []byte("\n"), 0o644); err != nil {
			t.Fatal(err)
		}
		r := &resolver{env: e, flags: extractFlags{doc: "blank"}}
		if _, err := r.resolve(context.Background()); err == nil {
			t.Error("expected error for empty document")
		}
	})
}

func TestResolve_Interactive(t *testing.T) {
	// Schema, output schema and document have one candidate each and are
	// selected without asking. Answers: model 2, default extractor, 3 runs.
	t.Run("confirmed", func(t *testing.T) {
		r := &resolver{env: testEnv(t)}
		r.p = interactive.New(strings.NewReader("2\n\n3\ny\n"), io.Discard)

		s, err := r.resolve(context.Background())
		if err != nil {
			t.Fatalf("resolve() error = %v", err)
		}
		if s.Models[0].Key != "gpt4o-mini" || s.Extractors[0].Kind != extract.KindJSONMode || s.Runs != 3 {
			t.Errorf("session = %+v", s)
		}
		if filepath.Base(s.DocPath) != "invoice.md" {
			t.Errorf("doc = %s", s.DocPath)
		}
	})

	t.Run("declined", func(t *testing.T) {
		r := &resolver{env: testEnv(t)}
		r.p = interactive.New(strings.NewReader("2\n\n3\nn\n"), io.Discard)
		if _, err := r.resolve(context.Background()); !errors.Is(err, errAborted) {
			t.Errorf("resolve() error = %v, want errAborted", err)
		}
	})

	t.Run("yes skips confirmation", func(t *testing.T) {
		r := &resolver{env: testEnv(t), flags: extractFlags{yes: true, runs: 2}}
		r.p = interactive.New(strings.NewReader("1\n1\n"), io.Discard)
		s, err := r.resolve(context.Background())
		if err != nil {
			t.Fatalf("resolve() error = %v", err)
		}
		if s.Models[0].Key != "gpt4o" || s.Extractors[0].Kind != extract.KindFunctionCall {
			t.Errorf("session = %+v", s)
		}
	})
}

func TestWithExt(t *testing.T) {
	names := []string{"invoice.json", "receipt.json"}
	tests := map[string]string{
		"invoice":      "invoice.json",
		"receipt.json": "receipt.json",
		"missing":      "missing",
		"":             "",
	}
	for def, want := range tests {
		if got := withExt(def, names); got != want {
			t.Errorf("withExt(%q) = %q, want %q", def, got, want)
		}
	}
}
