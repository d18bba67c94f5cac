// Package btw assembles the quarterly Dutch VAT return (btw-aangifte)
// from stored invoices and expenses. Only the rubrieken a one-person
// services business files are covered:
//
//	1a  domestic turnover and VAT at the standard rate
//	1b  domestic turnover and VAT at the reduced rate
//	3a  exports outside the EU
//	3b  intra-EU supplies (reverse charge), cross-checked by the ICP declaration
//	5b  deductible input VAT (voorbelasting)
package btw

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

var (
	ErrNotFound       = errors.New("VAT return not found")
	ErrInvalidQuarter = errors.New("quarter must be between 1 and 4")
)

// Return is one stored quarterly VAT return.
type Return struct {
	ID          uuid.UUID       `json:"id"`
	TenantID    uuid.UUID       `json:"tenant_id"`
	Year        int             `json:"year"`
	Quarter     int             `json:"quarter"`
	Rubriek1A   RubriekOmzetBTW `json:"rubriek_1a"`
	Rubriek1B   RubriekOmzetBTW `json:"rubriek_1b"`
	Rubriek3A   decimal.Decimal `json:"rubriek_3a_omzet"`
	Rubriek3B   decimal.Decimal `json:"rubriek_3b_omzet"`
	Rubriek5B   decimal.Decimal `json:"rubriek_5b_voorbelasting"`
	Payable     decimal.Decimal `json:"payable"`
	Status      string          `json:"status"`
	GeneratedAt time.Time       `json:"generated_at"`
}

// RubriekOmzetBTW pairs a turnover amount with the VAT charged on it.
type RubriekOmzetBTW struct {
	Omzet decimal.Decimal `json:"omzet"`
	BTW   decimal.Decimal `json:"btw"`
}

// Service builds and stores VAT returns.
type Service struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewService creates a BTW return service.
func NewService(pool *pgxpool.Pool, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{pool: pool, logger: logger}
}

func quarterRange(year, quarter int) (time.Time, time.Time) {
	start := time.Date(year, time.Month((quarter-1)*3+1), 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 3, 0)
}

// Build aggregates the quarter's invoices and expenses into a draft
// return and upserts it. Rebuilding replaces the previous draft; a
// filed return is never overwritten.
func (s *Service) Build(ctx context.Context, tenantID uuid.UUID, year, quarter int) (*Return, error) {
	if quarter < 1 || quarter > 4 {
		return nil, ErrInvalidQuarter
	}
	start, end := quarterRange(year, quarter)

	ret := &Return{TenantID: tenantID, Year: year, Quarter: quarter, Status: "draft"}

	rows, err := s.pool.Query(ctx, `
		SELECT vat_type, COALESCE(SUM(subtotal), 0), COALESCE(SUM(vat_amount), 0)
		FROM invoices
		WHERE tenant_id = $1
		  AND status NOT IN ('draft', 'cancelled')
		  AND invoice_date >= $2 AND invoice_date < $3
		GROUP BY vat_type
	`, tenantID, start, end)
	if err != nil {
		return nil, fmt.Errorf("aggregating invoices: %w", err)
	}
	for rows.Next() {
		var vatType string
		var omzet, btw decimal.Decimal
		if err := rows.Scan(&vatType, &omzet, &btw); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning invoice aggregate: %w", err)
		}
		switch vatType {
		case "standard":
			ret.Rubriek1A = RubriekOmzetBTW{Omzet: omzet, BTW: btw}
		case "reduced":
			ret.Rubriek1B = RubriekOmzetBTW{Omzet: omzet, BTW: btw}
		case "exempt":
			ret.Rubriek3A = omzet
		case "reverse_charge":
			ret.Rubriek3B = omzet
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading invoice aggregates: %w", err)
	}

	err = s.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(vat_amount), 0)
		FROM expenses
		WHERE tenant_id = $1 AND is_deductible
		  AND expense_date >= $2 AND expense_date < $3
	`, tenantID, start, end).Scan(&ret.Rubriek5B)
	if err != nil {
		return nil, fmt.Errorf("aggregating deductible expenses: %w", err)
	}

	var filed bool
	err = s.pool.QueryRow(ctx, `
		SELECT status = 'filed' FROM vat_returns
		WHERE tenant_id = $1 AND year = $2 AND quarter = $3
	`, tenantID, year, quarter).Scan(&filed)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("checking existing return: %w", err)
	}
	if filed {
		return nil, fmt.Errorf("VAT return for %d Q%d is already filed", year, quarter)
	}

	err = s.pool.QueryRow(ctx, `
		INSERT INTO vat_returns (
			tenant_id, year, quarter,
			rubriek_1a_omzet, rubriek_1a_btw,
			rubriek_1b_omzet, rubriek_1b_btw,
			rubriek_3a_omzet, rubriek_3b_omzet,
			rubriek_5b_voorbelasting, status
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,'draft')
		ON CONFLICT (tenant_id, year, quarter) DO UPDATE SET
			rubriek_1a_omzet = EXCLUDED.rubriek_1a_omzet,
			rubriek_1a_btw = EXCLUDED.rubriek_1a_btw,
			rubriek_1b_omzet = EXCLUDED.rubriek_1b_omzet,
			rubriek_1b_btw = EXCLUDED.rubriek_1b_btw,
			rubriek_3a_omzet = EXCLUDED.rubriek_3a_omzet,
			rubriek_3b_omzet = EXCLUDED.rubriek_3b_omzet,
			rubriek_5b_voorbelasting = EXCLUDED.rubriek_5b_voorbelasting,
			updated_at = now()
		RETURNING id, updated_at
	`, tenantID, year, quarter,
		ret.Rubriek1A.Omzet, ret.Rubriek1A.BTW,
		ret.Rubriek1B.Omzet, ret.Rubriek1B.BTW,
		ret.Rubriek3A, ret.Rubriek3B, ret.Rubriek5B,
	).Scan(&ret.ID, &ret.GeneratedAt)
	if err != nil {
		return nil, fmt.Errorf("storing VAT return: %w", err)
	}

	ret.Payable = ret.Rubriek1A.BTW.Add(ret.Rubriek1B.BTW).Sub(ret.Rubriek5B)

	s.logger.Info("VAT return built",
		"tenant_id", tenantID,
		"year", year,
		"quarter", quarter,
		"payable", ret.Payable,
	)
	return ret, nil
}

// Get returns the stored return for a quarter.
func (s *Service) Get(ctx context.Context, tenantID uuid.UUID, year, quarter int) (*Return, error) {
	if quarter < 1 || quarter > 4 {
		return nil, ErrInvalidQuarter
	}

	ret := &Return{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, tenant_id, year, quarter,
		       rubriek_1a_omzet, rubriek_1a_btw,
		       rubriek_1b_omzet, rubriek_1b_btw,
		       rubriek_3a_omzet, rubriek_3b_omzet,
		       rubriek_5b_voorbelasting, status, updated_at
		FROM vat_returns
		WHERE tenant_id = $1 AND year = $2 AND quarter = $3
	`, tenantID, year, quarter).Scan(
		&ret.ID, &ret.TenantID, &ret.Year, &ret.Quarter,
		&ret.Rubriek1A.Omzet, &ret.Rubriek1A.BTW,
		&ret.Rubriek1B.Omzet, &ret.Rubriek1B.BTW,
		&ret.Rubriek3A, &ret.Rubriek3B,
		&ret.Rubriek5B, &ret.Status, &ret.GeneratedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading VAT return: %w", err)
	}
	ret.Payable = ret.Rubriek1A.BTW.Add(ret.Rubriek1B.BTW).Sub(ret.Rubriek5B)
	return ret, nil
}

// MarkFiled freezes a return. Filed returns are no longer rebuilt.
func (s *Service) MarkFiled(ctx context.Context, tenantID uuid.UUID, year, quarter int) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE vat_returns SET status = 'filed', updated_at = now()
		WHERE tenant_id = $1 AND year = $2 AND quarter = $3
	`, tenantID, year, quarter)
	if err != nil {
		return fmt.Errorf("marking VAT return filed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
