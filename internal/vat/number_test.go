package vat

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/zzpfin/api/internal/country"
)

func newNumberService(t *testing.T) *Service {
	t.Helper()
	reg, err := country.Load("")
	if err != nil {
		t.Fatalf("loading country registry: %v", err)
	}
	cache := NewRateCache(decimal.NewFromFloat(0.21), decimal.NewFromFloat(0.09))
	return NewService(nil, reg, cache, nil)
}

func TestCheckNumber(t *testing.T) {
	svc := newNumberService(t)

	tests := []struct {
		name       string
		input      string
		valid      bool
		normalized string
		country    string
		euMember   bool
	}{
		{
			name:       "dutch number",
			input:      "NL123456789B01",
			valid:      true,
			normalized: "NL123456789B01",
			country:    "NL",
			euMember:   true,
		},
		{
			name:       "lowercase with dots and spaces",
			input:      "nl 1234.5678.9b01",
			valid:      true,
			normalized: "NL123456789B01",
			country:    "NL",
			euMember:   true,
		},
		{
			name:       "german number",
			input:      "DE123456789",
			valid:      true,
			normalized: "DE123456789",
			country:    "DE",
			euMember:   true,
		},
		{
			name:       "greek legacy EL prefix",
			input:      "EL123456789",
			valid:      true,
			normalized: "EL123456789",
			country:    "EL",
			euMember:   true,
		},
		{
			name:       "non-EU prefix still shape-valid",
			input:      "GB123456789",
			valid:      true,
			normalized: "GB123456789",
			country:    "GB",
			euMember:   false,
		},
		{
			name:  "too short",
			input: "DE1234",
			valid: false,
		},
		{
			name:  "digit prefix",
			input: "12345678901",
			valid: false,
		},
		{
			name:  "invalid character",
			input: "NL1234567!B01",
			valid: false,
		},
		{
			name:  "empty",
			input: "",
			valid: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			check := svc.CheckNumber(tt.input)

			if check.Valid != tt.valid {
				t.Fatalf("valid: got %v, want %v (message: %s)", check.Valid, tt.valid, check.Message)
			}
			if !tt.valid {
				if check.Message == "" {
					t.Error("expected a message explaining the rejection")
				}
				return
			}
			if check.Normalized != tt.normalized {
				t.Errorf("normalized: got %q, want %q", check.Normalized, tt.normalized)
			}
			if check.CountryCode != tt.country {
				t.Errorf("country: got %q, want %q", check.CountryCode, tt.country)
			}
			if check.EUMember != tt.euMember {
				t.Errorf("eu_member: got %v, want %v", check.EUMember, tt.euMember)
			}
		})
	}
}
