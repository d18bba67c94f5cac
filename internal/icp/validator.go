package icp

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Issue codes, stable across runs so callers can key on them.
const (
	IssueTotalsMismatch    = "totals_mismatch"
	IssueMissingReturn     = "missing_btw_return"
	IssueMissingICP        = "missing_icp_lines"
	IssueInvalidVATNumber  = "invalid_vat_number"
	IssueNonPositiveAmount = "non_positive_amount"
)

// amountTolerance absorbs rounding differences between independently
// rounded sums. Anything larger is a real discrepancy.
var amountTolerance = decimal.NewFromFloat(0.01)

// Issue is one reconciliation finding.
type Issue struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Report is the outcome of reconciling a quarter's ICP declaration
// against rubriek 3b of the BTW return. Validation is read-only and
// never mutates either side.
type Report struct {
	Year              int             `json:"year"`
	Quarter           int             `json:"quarter"`
	ICPTotal          decimal.Decimal `json:"icp_total"`
	Rubriek3BOmzet    decimal.Decimal `json:"rubriek_3b_omzet"`
	Difference        decimal.Decimal `json:"difference"`
	Consistent        bool            `json:"consistent"`
	DeclarationCount  int             `json:"declaration_count"`
	DistinctCountries int             `json:"distinct_countries"`
	Issues            []Issue         `json:"issues"`
	Recommendations   []string        `json:"recommendations"`
}

// recommendations maps issue codes onto fixed advice. The same set of
// issues always yields the same recommendation list.
var recommendations = map[string]string{
	IssueTotalsMismatch:    "Compare the quarter's reverse-charge invoices against the BTW return; one side is missing or double-counting an invoice.",
	IssueMissingReturn:     "File or store the BTW return for this quarter before submitting the ICP declaration.",
	IssueMissingICP:        "Rubriek 3b reports intra-EU supplies but no ICP lines exist; rebuild the ICP declaration for this quarter.",
	IssueInvalidVATNumber:  "Correct the customer VAT numbers on the flagged lines; the Belastingdienst rejects declarations with malformed numbers.",
	IssueNonPositiveAmount: "Remove or correct ICP lines with a zero or negative amount; credit notes must be netted against the same customer's supplies.",
}

// Validate reconciles the stored ICP declaration for a quarter with the
// stored BTW return. It reports, per line and in total, everything that
// would get the declaration rejected or flagged, plus a deterministic
// recommendation per distinct issue code.
func (s *Service) Validate(ctx context.Context, tenantID uuid.UUID, year, quarter int) (*Report, error) {
	declarations, err := s.List(ctx, tenantID, year, quarter)
	if err != nil {
		return nil, err
	}
	rubriek3b, returnExists, err := s.rubriek3B(ctx, tenantID, year, quarter)
	if err != nil {
		return nil, err
	}

	report := &Report{
		Year:             year,
		Quarter:          quarter,
		Rubriek3BOmzet:   rubriek3b,
		DeclarationCount: len(declarations),
	}

	countries := make(map[string]bool)
	total := decimal.Zero
	for _, d := range declarations {
		total = total.Add(d.NetAmount)
		countries[d.CustomerCountry] = true

		if len(d.CustomerVATNumber) < 9 {
			report.Issues = append(report.Issues, Issue{
				Code:    IssueInvalidVATNumber,
				Message: fmt.Sprintf("customer %s has VAT number %q, shorter than the minimum 9 characters", d.CustomerName, d.CustomerVATNumber),
			})
		}
		if !d.NetAmount.IsPositive() {
			report.Issues = append(report.Issues, Issue{
				Code:    IssueNonPositiveAmount,
				Message: fmt.Sprintf("customer %s has a non-positive declared amount %s", d.CustomerName, d.NetAmount),
			})
		}
	}
	report.ICPTotal = total
	report.DistinctCountries = len(countries)
	report.Difference = total.Sub(rubriek3b)

	switch {
	case !returnExists && len(declarations) > 0:
		report.Issues = append(report.Issues, Issue{
			Code:    IssueMissingReturn,
			Message: fmt.Sprintf("no BTW return stored for %d Q%d while %d ICP lines exist", year, quarter, len(declarations)),
		})
	case len(declarations) == 0 && rubriek3b.IsPositive():
		report.Issues = append(report.Issues, Issue{
			Code:    IssueMissingICP,
			Message: fmt.Sprintf("rubriek 3b reports %s of intra-EU supplies but the ICP declaration is empty", rubriek3b),
		})
	case report.Difference.Abs().GreaterThan(amountTolerance):
		report.Issues = append(report.Issues, Issue{
			Code:    IssueTotalsMismatch,
			Message: fmt.Sprintf("ICP total %s differs from rubriek 3b %s by %s", total, rubriek3b, report.Difference),
		})
	}

	report.Consistent = len(report.Issues) == 0
	report.Recommendations = recommend(report.Issues)
	return report, nil
}

// recommend returns one recommendation per distinct issue code, in a
// stable order.
func recommend(issues []Issue) []string {
	seen := make(map[string]bool)
	var codes []string
	for _, issue := range issues {
		if !seen[issue.Code] {
			seen[issue.Code] = true
			codes = append(codes, issue.Code)
		}
	}
	sort.Strings(codes)

	var out []string
	for _, code := range codes {
		if advice, ok := recommendations[code]; ok {
			out = append(out, advice)
		}
	}
	return out
}
