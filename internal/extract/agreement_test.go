package extract_test

import (
	"context"
	"testing"

	"github.com/jackzampolin/invex/internal/consistency"
	"github.com/jackzampolin/invex/internal/extract"
	"github.com/jackzampolin/invex/internal/providers"
	"github.com/jackzampolin/invex/internal/schema"
)

// The three strategies decode the same answer differently; once
// canonicalized, their results must agree field for field.
func TestStrategiesAgree(t *testing.T) {
	s, err := schema.Normalize([]byte(`{
		"title": "invoice",
		"properties": {
			"invoice_number": {"type": "string"},
			"invoice_date": {"type": "string", "format": "date"},
			"total_amount": {"type": "number"}
		},
		"required": ["invoice_number", "total_amount"]
	}`))
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	response := `{"invoice_number":" INV-1001 ","invoice_date":"2024-03-01","total_amount":"100.00"}`

	var results []extract.Result
	for i, kind := range extract.Kinds() {
		c := providers.NewMockClient()
		c.ResponseText, c.ToolArgs = response, response
		ex, err := extract.New(kind, c)
		if err != nil {
			t.Fatalf("New(%s) error = %v", kind, err)
		}
		res := ex.Extract(context.Background(), "# Invoice INV-1001", s, extract.ModelConfig{Key: "gpt4o", Deployment: "gpt-4o"})
		if res.Err != nil {
			t.Fatalf("%s: Extract() error = %v", kind, res.Err)
		}
		res.RunIndex = i
		results = append(results, res)
	}

	report, err := consistency.Aggregate(results, s)
	if err != nil {
		t.Fatalf("Aggregate() error = %v", err)
	}
	if report.Runs != 3 || report.ErrorCount != 0 {
		t.Fatalf("Runs = %d, ErrorCount = %d", report.Runs, report.ErrorCount)
	}
	want := map[string]any{
		"invoice_number": "INV-1001",
		"invoice_date":   "2024-03-01",
		"total_amount":   100.0,
	}
	for name, majority := range want {
		f, ok := report.Field(name)
		if !ok {
			t.Fatalf("no report for %s", name)
		}
		if f.AgreementRatio != 1.0 || f.MajorityValue != majority || len(f.DistinctValues) != 1 {
			t.Errorf("%s = %+v, want unanimous %v", name, f, majority)
		}
	}
}
