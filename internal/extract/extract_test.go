package extract

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/jackzampolin/invex/internal/providers"
	"github.com/jackzampolin/invex/internal/schema"
)

const invoiceSchema = `{
	"title": "invoice",
	"description": "supplier invoices",
	"properties": {
		"invoice_number": {"type": "string"},
		"invoice_date": {"type": "string", "format": "date"},
		"total_amount": {"type": "number"},
		"paid": {"type": "boolean"}
	},
	"required": ["invoice_number", "total_amount"]
}`

const invoiceResponse = `{"invoice_number":" INV-1001 ","invoice_date":"2024-03-01","total_amount":"100.00","paid":"yes"}`

func mustSchema(t *testing.T, raw string) *schema.Extraction {
	t.Helper()
	s, err := schema.Normalize([]byte(raw))
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	return s
}

func mockFor(kind Kind, response string) *providers.MockClient {
	c := providers.NewMockClient()
	if kind == KindFunctionCall {
		c.ToolArgs = response
	} else {
		c.ResponseText = response
	}
	return c
}

func newExtractor(t *testing.T, kind Kind, c providers.LLMClient) Extractor {
	t.Helper()
	ex, err := New(kind, c)
	if err != nil {
		t.Fatalf("New(%s) error = %v", kind, err)
	}
	return ex
}

func TestExtract_RoundTrip(t *testing.T) {
	s := mustSchema(t, invoiceSchema)
	want := map[string]any{
		"invoice_number": "INV-1001",
		"invoice_date":   "2024-03-01",
		"total_amount":   100.0,
		"paid":           true,
	}

	for _, kind := range Kinds() {
		t.Run(string(kind), func(t *testing.T) {
			c := mockFor(kind, invoiceResponse)
			ex := newExtractor(t, kind, c)

			res := ex.Extract(context.Background(), "# Invoice INV-1001", s, ModelConfig{Key: "gpt4o", Deployment: "gpt-4o"})
			if res.Err != nil {
				t.Fatalf("Extract() error = %v", res.Err)
			}
			if !reflect.DeepEqual(res.Values, want) {
				t.Errorf("Values = %#v, want %#v", res.Values, want)
			}
			if res.Extractor != kind || res.Model != "gpt4o" {
				t.Errorf("Extractor = %s, Model = %s", res.Extractor, res.Model)
			}
			if res.Raw == "" || res.PromptHash == "" || res.RequestID == "" {
				t.Errorf("Raw/PromptHash/RequestID not recorded: %+v", res)
			}
			if n := c.RequestCount(); n != 1 {
				t.Errorf("RequestCount() = %d, want exactly one call", n)
			}
			if got := c.Requests()[0].Model; got != "gpt-4o" {
				t.Errorf("request model = %q, want deployment name", got)
			}
		})
	}
}

func TestExtract_RequestShape(t *testing.T) {
	s := mustSchema(t, invoiceSchema)
	temp := 0.0
	m := ModelConfig{Deployment: "gpt-4o", Temperature: &temp}

	t.Run("json_mode", func(t *testing.T) {
		c := mockFor(KindJSONMode, invoiceResponse)
		NewJSONMode(c).Extract(context.Background(), "doc", s, m)
		req := c.Requests()[0]
		if req.ResponseFormat == nil || req.ResponseFormat.Type != providers.ResponseFormatJSONObject {
			t.Fatalf("ResponseFormat = %+v", req.ResponseFormat)
		}
		if !strings.Contains(req.Messages[0].Content, `"invoice_number"`) {
			t.Errorf("system prompt does not embed schema: %q", req.Messages[0].Content)
		}
		if req.Temperature == nil || *req.Temperature != 0 {
			t.Errorf("Temperature = %v", req.Temperature)
		}
	})

	t.Run("structured_output", func(t *testing.T) {
		c := mockFor(KindStructuredOutput, invoiceResponse)
		NewStructuredOutput(c).Extract(context.Background(), "doc", s, m)
		req := c.Requests()[0]
		if req.ResponseFormat == nil || req.ResponseFormat.Type != providers.ResponseFormatJSONSchema {
			t.Fatalf("ResponseFormat = %+v", req.ResponseFormat)
		}
		wrapper := string(req.ResponseFormat.JSONSchema)
		for _, want := range []string{`"strict":true`, `"name":"invoice"`, `"additionalProperties":false`} {
			if !strings.Contains(wrapper, want) {
				t.Errorf("json_schema %s missing %s", wrapper, want)
			}
		}
		if strings.Contains(req.Messages[0].Content, `"properties"`) {
			t.Error("structured output should not embed the schema in the prompt")
		}
	})

	t.Run("function_call", func(t *testing.T) {
		c := mockFor(KindFunctionCall, invoiceResponse)
		NewFunctionCall(c).Extract(context.Background(), "doc", s, m)
		tools := c.Tools(0)
		if len(tools) != 1 {
			t.Fatalf("tools = %d, want 1", len(tools))
		}
		if tools[0].Function.Name != "extract_invoice" {
			t.Errorf("tool name = %q", tools[0].Function.Name)
		}
		if !strings.Contains(string(tools[0].Function.Parameters), `"total_amount"`) {
			t.Errorf("parameters = %s", tools[0].Function.Parameters)
		}
		if c.Requests()[0].ResponseFormat != nil {
			t.Error("function call should not set a response format")
		}
	})
}

func TestExtract_FunctionCallAliases(t *testing.T) {
	s := mustSchema(t, `{
		"title": "form",
		"properties": {"Invoice Number": {"type": "string"}},
		"required": ["Invoice Number"]
	}`)
	c := mockFor(KindFunctionCall, `{"invoice_number":"INV-1001"}`)
	res := NewFunctionCall(c).Extract(context.Background(), "doc", s, ModelConfig{})
	if res.Err != nil {
		t.Fatalf("Extract() error = %v", res.Err)
	}
	if res.Values["Invoice Number"] != "INV-1001" {
		t.Errorf("Values = %v, want original field name", res.Values)
	}
}

func TestExtract_ParseErrors(t *testing.T) {
	s := mustSchema(t, invoiceSchema)

	tests := []struct {
		name       string
		kind       Kind
		response   string
		wantValues map[string]any
	}{
		{
			name:     "malformed json",
			kind:     KindJSONMode,
			response: "I could not find an invoice.",
		},
		{
			name:     "empty response",
			kind:     KindStructuredOutput,
			response: "",
		},
		{
			name:     "missing required field",
			kind:     KindStructuredOutput,
			response: `{"total_amount": 5}`,
			wantValues: map[string]any{
				"invoice_number": nil, "invoice_date": nil, "total_amount": 5.0, "paid": nil,
			},
		},
		{
			name:     "ambiguous number keeps other fields",
			kind:     KindJSONMode,
			response: `{"invoice_number":"INV-1001","total_amount":"1.234,50"}`,
			wantValues: map[string]any{
				"invoice_number": "INV-1001", "invoice_date": nil, "total_amount": nil, "paid": nil,
			},
		},
		{
			name:     "bad date",
			kind:     KindFunctionCall,
			response: `{"invoice_number":"INV-1001","total_amount":1,"invoice_date":"03/01/2024"}`,
			wantValues: map[string]any{
				"invoice_number": "INV-1001", "invoice_date": nil, "total_amount": 1.0, "paid": nil,
			},
		},
		{
			name:     "tool arguments not json",
			kind:     KindFunctionCall,
			response: `{"invoice_number":`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := mockFor(tt.kind, tt.response)
			res := newExtractor(t, tt.kind, c).Extract(context.Background(), "doc", s, ModelConfig{})
			if res.Err == nil || res.Err.Kind != ParseError {
				t.Fatalf("Err = %v, want parse error", res.Err)
			}
			if tt.wantValues != nil && !reflect.DeepEqual(res.Values, tt.wantValues) {
				t.Errorf("Values = %#v, want %#v", res.Values, tt.wantValues)
			}
			if c.RequestCount() != 1 {
				t.Errorf("RequestCount() = %d", c.RequestCount())
			}
		})
	}
}

func TestExtract_NoToolCall(t *testing.T) {
	s := mustSchema(t, invoiceSchema)
	c := providers.NewMockClient()
	c.Handler = func(n int, req *providers.ChatRequest, tools []providers.Tool) (*providers.ChatResult, error) {
		return &providers.ChatResult{Success: true, Content: "No invoice here."}, nil
	}
	res := NewFunctionCall(c).Extract(context.Background(), "doc", s, ModelConfig{})
	if res.Err == nil || res.Err.Kind != ParseError {
		t.Fatalf("Err = %v, want parse error", res.Err)
	}
	if res.Raw != "No invoice here." {
		t.Errorf("Raw = %q", res.Raw)
	}
}

func TestExtract_TransportErrors(t *testing.T) {
	s := mustSchema(t, invoiceSchema)

	t.Run("provider failure", func(t *testing.T) {
		for _, kind := range Kinds() {
			c := providers.NewMockClient()
			c.ShouldFail = true
			res := newExtractor(t, kind, c).Extract(context.Background(), "doc", s, ModelConfig{})
			if res.Err == nil || res.Err.Kind != TransportError {
				t.Fatalf("%s: Err = %v, want transport error", kind, res.Err)
			}
			if res.Values != nil {
				t.Errorf("%s: Values = %v, want nil", kind, res.Values)
			}
			if !errors.Is(res.Err, providers.ErrTransport) {
				t.Errorf("%s: cause %v does not wrap ErrTransport", kind, res.Err.Cause)
			}
		}
	})

	t.Run("timeout", func(t *testing.T) {
		c := providers.NewMockClient()
		c.Latency = time.Second
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()
		res := NewJSONMode(c).Extract(ctx, "doc", s, ModelConfig{})
		if res.Err == nil || res.Err.Kind != TransportError {
			t.Fatalf("Err = %v, want transport error", res.Err)
		}
		if !errors.Is(res.Err, context.DeadlineExceeded) {
			t.Errorf("Err = %v, want deadline exceeded cause", res.Err)
		}
	})

	t.Run("non-transport client error", func(t *testing.T) {
		c := providers.NewMockClient()
		c.ShouldFail = true
		c.FailErr = errors.New("refused by content filter")
		res := NewJSONMode(c).Extract(context.Background(), "doc", s, ModelConfig{})
		if res.Err == nil || res.Err.Kind != ParseError {
			t.Fatalf("Err = %v, want parse error", res.Err)
		}
	})
}

func TestNew(t *testing.T) {
	c := providers.NewMockClient()
	for _, kind := range Kinds() {
		ex, err := New(kind, c)
		if err != nil {
			t.Fatalf("New(%s) error = %v", kind, err)
		}
		if ex.Kind() != kind {
			t.Errorf("Kind() = %s, want %s", ex.Kind(), kind)
		}
	}
	if _, err := New("regex", c); err == nil {
		t.Error("expected error for unknown kind")
	}
	if _, err := New(KindJSONMode, nil); err == nil {
		t.Error("expected error for nil client")
	}
}

func TestParseKind(t *testing.T) {
	tests := map[string]Kind{
		"json_mode":         KindJSONMode,
		"JSON-Mode":         KindJSONMode,
		"structured_output": KindStructuredOutput,
		"structured":        KindStructuredOutput,
		"function_call":     KindFunctionCall,
		"instructor":        KindFunctionCall,
	}
	for in, want := range tests {
		got, err := ParseKind(in)
		if err != nil || got != want {
			t.Errorf("ParseKind(%q) = %s, %v; want %s", in, got, err, want)
		}
	}
	if _, err := ParseKind("xml"); err == nil {
		t.Error("expected error for unknown extractor")
	}
}
