package vat

import (
	"time"

	"github.com/shopspring/decimal"
)

// Canonical VAT regimes. These four strings are the only values ever
// persisted in vat_type columns or returned to callers.
const (
	TypeStandard      = "standard"
	TypeReduced       = "reduced"
	TypeExempt        = "exempt"
	TypeReverseCharge = "reverse_charge"
)

// Rate type identifiers in the vat_rates table.
const (
	RateTypeStandard = "standard"
	RateTypeReduced  = "reduced"
)

// Rate represents a single rate row from the vat_rates table.
type Rate struct {
	ID            string
	CountryCode   string
	RateType      string
	Rate          decimal.Decimal
	Description   string
	EffectiveFrom time.Time
	EffectiveTo   *time.Time
}

// ClassificationInput holds the inputs for a VAT regime decision.
// CounterpartyCountry may be raw user input (code or localized name);
// the engine normalizes it.
type ClassificationInput struct {
	NetAmount           decimal.Decimal
	RequestedType       string // caller's category hint; "" means standard
	CounterpartyCountry string
	IsBusiness          bool
	HasVATNumber        bool
}

// AppliedRules records the resolved facts the decision was based on,
// for audit trails and UI display.
type AppliedRules struct {
	CounterpartyCountry string `json:"counterparty_country"`
	CountrySource       string `json:"country_source"`
	IsBusiness          bool   `json:"is_business"`
	HasVATNumber        bool   `json:"has_vat_number"`
	IsEUCountry         bool   `json:"is_eu_country"`
	IsDomestic          bool   `json:"is_domestic"`
}

// Classification is the outcome of a VAT regime decision. All monetary
// fields are rounded to 2 decimals; Rate is a fraction (0.21, not 21).
type Classification struct {
	Type        string          `json:"vat_type"`
	Rate        decimal.Decimal `json:"vat_rate"`
	VATAmount   decimal.Decimal `json:"vat_amount"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Explanation string          `json:"explanation"`
	Rules       AppliedRules    `json:"applied_rules"`

	// DataQuality lists non-fatal input anomalies (unknown VAT type,
	// unrecognized country) so they can be persisted with the
	// transaction and audited later. Empty for clean input.
	DataQuality []string `json:"data_quality_notes,omitempty"`
}
