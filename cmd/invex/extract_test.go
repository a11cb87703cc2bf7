package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jackzampolin/invex/internal/output"
	"github.com/jackzampolin/invex/internal/providers"
	"github.com/jackzampolin/invex/internal/schema"
)

const invoiceResponse = `{"invoice_number":"INV-1001","total_amount":100}`

func tableOutput(t *testing.T) {
	t.Helper()
	prev := format
	format = output.FormatTable
	t.Cleanup(func() { format = prev })
}

func TestExtractAll_BadSchemaMakesNoCalls(t *testing.T) {
	e := testEnv(t)
	dup := `{"properties": {"invoice_number": {"type": "string"}, "invoice_number": {"type": "number"}}}`
	if err := os.WriteFile(filepath.Join(e.home.SchemasDir(), "dup.json"), []byte(dup), 0o644); err != nil {
		t.Fatal(err)
	}
	client := providers.NewMockClient()

	r := &resolver{env: e, flags: extractFlags{doc: "invoice", schema: "dup", runs: 3}}
	s, err := r.resolve(context.Background())
	if err == nil {
		err = extractAll(context.Background(), &bytes.Buffer{}, e, s, client)
	}
	if !errors.Is(err, schema.ErrSchema) {
		t.Fatalf("error = %v, want schema error", err)
	}
	if client.RequestCount() != 0 {
		t.Errorf("RequestCount() = %d, want no model calls", client.RequestCount())
	}
}

func TestExtractAll_OneCombinationFails(t *testing.T) {
	tableOutput(t)
	e := testEnv(t)
	r := &resolver{env: e, flags: extractFlags{
		doc:        "invoice",
		models:     []string{"gpt4o", "gpt4o-mini"},
		extractors: []string{"json_mode"},
		runs:       2,
	}}
	s, err := r.resolve(context.Background())
	if err != nil {
		t.Fatalf("resolve() error = %v", err)
	}
	s.Runner.MaxRetries = 0

	client := providers.NewMockClient()
	client.Handler = func(n int, req *providers.ChatRequest, tools []providers.Tool) (*providers.ChatResult, error) {
		if req.Model == "gpt-4o-mini" {
			err := &providers.TransportError{Provider: providers.MockClientName, Err: errors.New("deployment unavailable")}
			return &providers.ChatResult{ErrorMessage: err.Error()}, err
		}
		return &providers.ChatResult{Success: true, Content: invoiceResponse}, nil
	}

	var buf bytes.Buffer
	err = extractAll(context.Background(), &buf, e, s, client)
	if err == nil || !strings.Contains(err.Error(), "1 of 2 combinations failed") {
		t.Fatalf("extractAll() error = %v, want 1 of 2 combinations failed", err)
	}
	got := buf.String()
	for _, want := range []string{"(gpt4o / json_mode)", "(gpt4o-mini / json_mode)", "INV-1001"} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
	if client.RequestCount() != 4 {
		t.Errorf("RequestCount() = %d, want 4", client.RequestCount())
	}
	if _, err := os.Stat(e.home.CallLogPath()); err != nil {
		t.Errorf("call log not written: %v", err)
	}
}

func TestExtractAll_InterruptedReportsCompletedRuns(t *testing.T) {
	tableOutput(t)
	e := testEnv(t)
	r := &resolver{env: e, flags: extractFlags{doc: "invoice", runs: 3, concurrency: 1, noCallLog: true}}
	s, err := r.resolve(context.Background())
	if err != nil {
		t.Fatalf("resolve() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	client := providers.NewMockClient()
	client.Handler = func(n int, req *providers.ChatRequest, tools []providers.Tool) (*providers.ChatResult, error) {
		if n == 2 {
			cancel()
		}
		return &providers.ChatResult{Success: true, Content: invoiceResponse}, nil
	}

	var buf bytes.Buffer
	err = extractAll(ctx, &buf, e, s, client)
	if !errors.Is(err, context.Canceled) || !strings.Contains(err.Error(), "interrupted after 1 of 3 runs") {
		t.Fatalf("extractAll() error = %v, want interruption after 1 run", err)
	}
	got := buf.String()
	for _, want := range []string{"INV-1001", "Total Runs: 1", "Interrupted: partial results"} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
}
