package vat

import (
	"fmt"
	"strings"
)

// NumberCheck is the outcome of a VAT number shape check. This is a
// syntactic check only; it does not consult VIES or any registry of
// issued numbers.
type NumberCheck struct {
	Input       string `json:"input"`
	Normalized  string `json:"normalized"`
	Valid       bool   `json:"valid"`
	CountryCode string `json:"country_code,omitempty"`
	EUMember    bool   `json:"eu_member"`
	Message     string `json:"message,omitempty"`
}

// CheckNumber normalizes a VAT number and verifies its basic shape:
// a two-letter country prefix followed by at least seven alphanumeric
// characters. The same minimum length is enforced by the ICP validator,
// so a number that passes here will not be flagged there.
func (s *Service) CheckNumber(raw string) NumberCheck {
	check := NumberCheck{Input: raw}

	cleaned := sanitizeVATNumber(raw)
	check.Normalized = cleaned

	if len(cleaned) < 9 {
		check.Message = fmt.Sprintf("VAT number must be at least 9 characters, got %d", len(cleaned))
		return check
	}

	prefix := cleaned[:2]
	if !isLetters(prefix) {
		check.Message = "VAT number must start with a two-letter country code"
		return check
	}
	check.CountryCode = prefix
	check.EUMember = s.registry.IsEUMember(prefix)

	for _, r := range cleaned[2:] {
		if !isAlphanumeric(r) {
			check.Message = fmt.Sprintf("VAT number contains invalid character %q", r)
			return check
		}
	}

	check.Valid = true
	if !check.EUMember {
		check.Message = fmt.Sprintf("%s is not an EU member state; reverse charge does not apply", prefix)
	}
	return check
}

// sanitizeVATNumber strips whitespace and dots and uppercases the rest,
// so "nl 1234.5678.9b01" becomes "NL123456789B01".
func sanitizeVATNumber(raw string) string {
	if raw == "" {
		return ""
	}
	cleaned := strings.Map(func(r rune) rune {
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '.' || r == '-' {
			return -1
		}
		return r
	}, raw)
	return strings.ToUpper(cleaned)
}

func isLetters(s string) bool {
	for _, r := range s {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}

func isAlphanumeric(r rune) bool {
	return (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}
