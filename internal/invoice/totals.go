package invoice

import (
	"github.com/shopspring/decimal"
)

// LineItem is one billable line: quantity may be fractional (hours),
// unit price is a 2-decimal money amount.
type LineItem struct {
	Description string
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
}

// Totals holds the financial summary of an invoice. All fields carry
// exactly 2-decimal precision.
type Totals struct {
	Subtotal    decimal.Decimal
	VATAmount   decimal.Decimal
	TotalAmount decimal.Decimal
}

// Aggregate sums line items into invoice totals. Rounding happens at
// exactly three points, in this order:
//
//	subtotal = round(Σ quantity×unit_price)   (one rounding of the full sum)
//	vat      = round(subtotal × rate)
//	total    = round(subtotal + vat)
//
// Per-line rounding before summation would accumulate drift, and computing
// VAT from the unrounded sum could disagree with the rounded subtotal by a
// cent, so neither is done. When an invoice combines multiple sources
// (time entries plus manual lines), callers must pass the full combined
// set in one call; aggregating parts separately and summing diverges from
// this single pass.
func Aggregate(items []LineItem, vatRate decimal.Decimal) Totals {
	sum := decimal.Zero
	for _, item := range items {
		sum = sum.Add(item.Quantity.Mul(item.UnitPrice))
	}

	subtotal := sum.Round(2)
	vatAmount := subtotal.Mul(vatRate).Round(2)
	totalAmount := subtotal.Add(vatAmount).Round(2)

	return Totals{
		Subtotal:    subtotal,
		VATAmount:   vatAmount,
		TotalAmount: totalAmount,
	}
}

// RoundedLineTotal is the display/persistence value for one line. It is
// not used when computing the invoice subtotal, which sums unrounded
// line products.
func RoundedLineTotal(item LineItem) decimal.Decimal {
	return item.Quantity.Mul(item.UnitPrice).Round(2)
}
