// Package icp builds and validates the quarterly ICP declaration
// (opgaaf intracommunautaire prestaties): the per-customer summary of
// intra-EU reverse-charge supplies that must match rubriek 3b of the
// BTW return for the same quarter.
package icp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

var ErrInvalidQuarter = errors.New("quarter must be between 1 and 4")

// Declaration is one ICP line: the summed net amount supplied to one
// EU business customer in one quarter.
type Declaration struct {
	ID                uuid.UUID       `json:"id"`
	TenantID          uuid.UUID       `json:"tenant_id"`
	Year              int             `json:"year"`
	Quarter           int             `json:"quarter"`
	CustomerVATNumber string          `json:"customer_vat_number"`
	CustomerName      string          `json:"customer_name"`
	CustomerCountry   string          `json:"customer_country"`
	NetAmount         decimal.Decimal `json:"net_amount"`
	TransactionCount  int             `json:"transaction_count"`
}

// Service builds ICP declarations from stored invoices.
type Service struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewService creates an ICP service.
func NewService(pool *pgxpool.Pool, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{pool: pool, logger: logger}
}

// quarterRange returns the [start, end) dates of a calendar quarter.
func quarterRange(year, quarter int) (time.Time, time.Time) {
	start := time.Date(year, time.Month((quarter-1)*3+1), 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 3, 0)
}

// Build aggregates the quarter's reverse-charge invoices per customer VAT
// number and replaces the stored declaration for that quarter. Draft and
// cancelled invoices are excluded: the declaration reports supplies that
// were actually made.
func (s *Service) Build(ctx context.Context, tenantID uuid.UUID, year, quarter int) ([]Declaration, error) {
	if quarter < 1 || quarter > 4 {
		return nil, ErrInvalidQuarter
	}
	start, end := quarterRange(year, quarter)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, `
		SELECT
			COALESCE(i.client_vat_number, ''),
			MAX(c.name),
			i.client_country,
			SUM(i.subtotal),
			COUNT(*)
		FROM invoices i
		JOIN clients c ON c.id = i.client_id
		WHERE i.tenant_id = $1
		  AND i.vat_type = 'reverse_charge'
		  AND i.status NOT IN ('draft', 'cancelled')
		  AND i.invoice_date >= $2 AND i.invoice_date < $3
		GROUP BY i.client_vat_number, i.client_country
		ORDER BY i.client_vat_number
	`, tenantID, start, end)
	if err != nil {
		return nil, fmt.Errorf("aggregating reverse-charge invoices: %w", err)
	}

	var declarations []Declaration
	for rows.Next() {
		d := Declaration{TenantID: tenantID, Year: year, Quarter: quarter}
		var count int64
		if err := rows.Scan(&d.CustomerVATNumber, &d.CustomerName, &d.CustomerCountry, &d.NetAmount, &count); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning declaration row: %w", err)
		}
		d.TransactionCount = int(count)
		declarations = append(declarations, d)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading declaration rows: %w", err)
	}

	// Rebuild is idempotent: the previous version of the quarter is
	// replaced wholesale.
	_, err = tx.Exec(ctx, `
		DELETE FROM icp_declarations WHERE tenant_id = $1 AND year = $2 AND quarter = $3
	`, tenantID, year, quarter)
	if err != nil {
		return nil, fmt.Errorf("clearing previous declaration: %w", err)
	}

	for i := range declarations {
		err = tx.QueryRow(ctx, `
			INSERT INTO icp_declarations (
				tenant_id, year, quarter, customer_vat_number, customer_name,
				customer_country, net_amount, transaction_count
			)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
			RETURNING id
		`, tenantID, year, quarter,
			declarations[i].CustomerVATNumber, declarations[i].CustomerName,
			declarations[i].CustomerCountry, declarations[i].NetAmount,
			declarations[i].TransactionCount,
		).Scan(&declarations[i].ID)
		if err != nil {
			return nil, fmt.Errorf("storing declaration line: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing declaration: %w", err)
	}

	s.logger.Info("ICP declaration built",
		"tenant_id", tenantID,
		"year", year,
		"quarter", quarter,
		"lines", len(declarations),
	)
	return declarations, nil
}

// List returns the stored declaration lines for a quarter, ordered by
// customer VAT number.
func (s *Service) List(ctx context.Context, tenantID uuid.UUID, year, quarter int) ([]Declaration, error) {
	if quarter < 1 || quarter > 4 {
		return nil, ErrInvalidQuarter
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, tenant_id, year, quarter, customer_vat_number, customer_name,
		       customer_country, net_amount, transaction_count
		FROM icp_declarations
		WHERE tenant_id = $1 AND year = $2 AND quarter = $3
		ORDER BY customer_vat_number
	`, tenantID, year, quarter)
	if err != nil {
		return nil, fmt.Errorf("listing declarations: %w", err)
	}
	defer rows.Close()

	var declarations []Declaration
	for rows.Next() {
		var d Declaration
		if err := rows.Scan(&d.ID, &d.TenantID, &d.Year, &d.Quarter, &d.CustomerVATNumber,
			&d.CustomerName, &d.CustomerCountry, &d.NetAmount, &d.TransactionCount); err != nil {
			return nil, fmt.Errorf("scanning declaration: %w", err)
		}
		declarations = append(declarations, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading declarations: %w", err)
	}
	return declarations, nil
}

// rubriek3B reads the intra-EU supplies turnover from the stored BTW
// return. An absent return reads as zero; the validator reports the
// absence as its own issue when ICP lines exist.
func (s *Service) rubriek3B(ctx context.Context, tenantID uuid.UUID, year, quarter int) (decimal.Decimal, bool, error) {
	var omzet decimal.Decimal
	err := s.pool.QueryRow(ctx, `
		SELECT rubriek_3b_omzet FROM vat_returns
		WHERE tenant_id = $1 AND year = $2 AND quarter = $3
	`, tenantID, year, quarter).Scan(&omzet)
	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, false, nil
	}
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("reading BTW return: %w", err)
	}
	return omzet, true, nil
}
