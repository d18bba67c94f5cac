package vat

import (
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/zzpfin/api/internal/country"
)

// Engine decides which Dutch/EU VAT regime applies to a transaction and
// computes the rounded amounts. The decision order, first match wins:
//
//  1. Counterparty in the home country -> domestic VAT (standard, or the
//     reduced category rate when the caller asks for it)
//  2. Counterparty in another EU member state:
//     a. business with a VAT number -> reverse charge (BTW verlegd), 0%
//     b. otherwise -> domestic VAT still due (EU consumer or unverified business)
//  3. Counterparty outside the EU -> export, exempt, 0%
//
// The engine is pure: no database access, no shared mutable state beyond
// the read-only registry and the rate cache.
type Engine struct {
	registry *country.Registry
	cache    *RateCache
	logger   *slog.Logger
}

// NewEngine creates a VAT engine over the given country registry and rate cache.
func NewEngine(registry *country.Registry, cache *RateCache, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{registry: registry, cache: cache, logger: logger}
}

// Classify resolves the VAT regime and amounts for one transaction.
//
// Monetary policy: vat = round(net × rate, 2), total = round(net + vat, 2),
// rounded half away from zero (equal to round-half-up for non-negative
// amounts). Negative net amounts (credit notes) propagate their sign into
// the VAT and total. A zero net amount yields zero VAT and total.
//
// Classifying the same input twice yields identical output.
func (e *Engine) Classify(input ClassificationInput) Classification {
	var warnings []string

	code, source := e.registry.NormalizeWithSource(input.CounterpartyCountry)
	if source == country.SourceVerbatim {
		warnings = append(warnings, fmt.Sprintf("unrecognized country %q used verbatim", input.CounterpartyCountry))
		e.logger.Warn("unrecognized country input",
			"input", input.CounterpartyCountry,
			"resolved", code,
		)
	}

	requested, typeWarning := e.resolveRequestedType(input.RequestedType)
	if typeWarning != "" {
		warnings = append(warnings, typeWarning)
	}

	rules := AppliedRules{
		CounterpartyCountry: code,
		CountrySource:       string(source),
		IsBusiness:          input.IsBusiness,
		HasVATNumber:        input.HasVATNumber,
		IsEUCountry:         e.registry.IsEUMember(code),
		IsDomestic:          code == e.registry.HomeCountry(),
	}

	var vatType string
	switch {
	case rules.IsDomestic:
		// Rule 1: domestic. The requested type is a category override
		// (reduced-rate goods/services), never a geography override.
		vatType = TypeStandard
		if requested == TypeReduced {
			vatType = TypeReduced
		}

	case rules.IsEUCountry && input.IsBusiness && input.HasVATNumber:
		// Rule 2a: intra-EU B2B with VAT number -> reverse charge.
		vatType = TypeReverseCharge

	case rules.IsEUCountry:
		// Rule 2b: EU consumer or unverified business pays the standard
		// rate. The reduced category override is domestic-only.
		vatType = TypeStandard

	default:
		// Rule 3: non-EU export.
		vatType = TypeExempt
	}

	rate := e.rateFor(vatType)
	vatAmount := roundMoney(input.NetAmount.Mul(rate))
	totalAmount := roundMoney(input.NetAmount.Add(vatAmount))

	return Classification{
		Type:        vatType,
		Rate:        rate,
		VATAmount:   vatAmount,
		TotalAmount: totalAmount,
		Explanation: e.explain(vatType, rate, code),
		Rules:       rules,
		DataQuality: warnings,
	}
}

// resolveRequestedType maps the caller's category hint onto a canonical
// regime. Unknown values fall back to standard; this is a named default,
// surfaced as a data-quality warning rather than an error.
func (e *Engine) resolveRequestedType(requested string) (string, string) {
	switch requested {
	case "", TypeStandard, TypeReduced, TypeExempt, TypeReverseCharge:
		return requested, ""
	default:
		e.logger.Warn("unrecognized VAT type requested, falling back to standard",
			"requested", requested,
		)
		return TypeStandard, fmt.Sprintf("unrecognized VAT type %q, standard applied", requested)
	}
}

// rateFor returns the current fraction for a regime. Reverse charge and
// exempt are always 0; standard and reduced come from the rate cache.
func (e *Engine) rateFor(vatType string) decimal.Decimal {
	switch vatType {
	case TypeStandard:
		if rate, ok := e.cache.Get(RateTypeStandard); ok {
			return rate
		}
	case TypeReduced:
		if rate, ok := e.cache.Get(RateTypeReduced); ok {
			return rate
		}
	}
	return decimal.Zero
}

func (e *Engine) explain(vatType string, rate decimal.Decimal, counterpartyCountry string) string {
	percent := rate.Mul(decimal.NewFromInt(100)).Round(0)
	switch vatType {
	case TypeReverseCharge:
		return fmt.Sprintf("Reverse charge (BTW verlegd) - VAT self-assessed by business customer in %s", counterpartyCountry)
	case TypeExempt:
		return fmt.Sprintf("Export outside EU (%s) - VAT exempt", counterpartyCountry)
	case TypeReduced:
		return fmt.Sprintf("Reduced Dutch VAT rate (%s%%) applied", percent)
	default:
		return fmt.Sprintf("Standard Dutch VAT (%s%%) applied", percent)
	}
}

// roundMoney rounds to 2 decimals, half away from zero. This is the single
// rounding policy for every computed monetary boundary in the system.
func roundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}
