package schema

import (
	"testing"
)

func TestValidator(t *testing.T) {
	e := mustNormalize(t, invoiceSchema)
	v, err := e.Validator()
	if err != nil {
		t.Fatalf("Validator() error = %v", err)
	}

	tests := []struct {
		name    string
		values  map[string]any
		wantErr bool
	}{
		{
			name: "valid",
			values: map[string]any{
				"invoice_number": "INV-1001",
				"invoice_date":   "2024-03-01",
				"total_amount":   100.0,
				"supplier":       map[string]any{"name": "Acme", "vat": nil},
				"tags":           []any{"urgent"},
			},
		},
		{
			name: "optional fields null",
			values: map[string]any{
				"invoice_number": "INV-1001",
				"total_amount":   100.0,
				"invoice_date":   nil,
				"paid":           nil,
			},
		},
		{
			name:    "missing required",
			values:  map[string]any{"invoice_number": "INV-1001"},
			wantErr: true,
		},
		{
			name:    "required present but null",
			values:  map[string]any{"invoice_number": "INV-1001", "total_amount": nil},
			wantErr: true,
		},
		{
			name:    "wrong type",
			values:  map[string]any{"invoice_number": "INV-1001", "total_amount": "a lot"},
			wantErr: true,
		},
		{
			name:    "bad date",
			values:  map[string]any{"invoice_number": "INV-1001", "total_amount": 1.0, "invoice_date": "03/01/2024"},
			wantErr: true,
		},
		{
			name:    "nested required missing",
			values:  map[string]any{"invoice_number": "INV-1001", "total_amount": 1.0, "supplier": map[string]any{}},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.values)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCompile_InvalidDocument(t *testing.T) {
	if _, err := Compile([]byte(`{"type": 12}`)); err == nil {
		t.Error("expected compile error")
	}
}
