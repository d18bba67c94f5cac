// Package expense records business purchases. The VAT treatment is
// decided at entry time with the same engine that prices invoices, so
// the quarterly voorbelasting (rubriek 5b) can be summed straight from
// the stored rows.
package expense

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

	"github.com/zzpfin/api/internal/vat"
)

var ErrNotFound = errors.New("expense not found")

// Expense is one stored purchase with its frozen VAT treatment.
type Expense struct {
	ID                  uuid.UUID       `json:"id"`
	TenantID            uuid.UUID       `json:"tenant_id"`
	SupplierName        string          `json:"supplier_name"`
	SupplierCountryCode string          `json:"supplier_country_code"`
	SupplierVATNumber   string          `json:"supplier_vat_number,omitempty"`
	ExpenseDate         time.Time       `json:"expense_date"`
	Category            string          `json:"category,omitempty"`
	Description         string          `json:"description,omitempty"`
	Amount              decimal.Decimal `json:"amount"`
	VATType             string          `json:"vat_type"`
	VATRate             decimal.Decimal `json:"vat_rate"`
	VATAmount           decimal.Decimal `json:"vat_amount"`
	IsReverseCharge     bool            `json:"is_reverse_charge"`
	IsDeductible        bool            `json:"is_deductible"`
	DataQualityNotes    []string        `json:"data_quality_notes,omitempty"`
	CreatedAt           time.Time       `json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`
}

// CreateParams contains the input fields for recording an expense.
// Amount is the net amount excluding VAT.
type CreateParams struct {
	SupplierName        string          `json:"supplier_name"`
	SupplierCountryCode string          `json:"supplier_country_code"`
	SupplierVATNumber   string          `json:"supplier_vat_number"`
	ExpenseDate         time.Time       `json:"expense_date"`
	Category            string          `json:"category"`
	Description         string          `json:"description"`
	Amount              decimal.Decimal `json:"amount"`
	VATType             string          `json:"vat_type"`
	NotDeductible       bool            `json:"not_deductible"`
}

// ListFilter narrows List. Zero values mean "no filter".
type ListFilter struct {
	From     time.Time
	To       time.Time
	Category string
	Limit    int
	Offset   int
}

// Service provides business logic for expense operations.
type Service struct {
	pool   *pgxpool.Pool
	vat    *vat.Service
	logger *slog.Logger
}

// NewService creates a new expense service.
func NewService(pool *pgxpool.Pool, vatSvc *vat.Service, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{pool: pool, vat: vatSvc, logger: logger}
}

// Create records an expense. The supplier's country drives the VAT
// treatment: a domestic purchase carries deductible Dutch VAT, an EU
// supplier with a VAT number means the buyer self-assesses at the
// domestic standard rate (reverse charge on acquisition), and a non-EU
// purchase carries no Dutch VAT at all.
func (s *Service) Create(ctx context.Context, tenantID uuid.UUID, params CreateParams) (Expense, error) {
	if params.SupplierName == "" {
		return Expense{}, fmt.Errorf("supplier name is required")
	}
	if params.ExpenseDate.IsZero() {
		params.ExpenseDate = time.Now()
	}

	cls := s.vat.Classify(vat.ClassificationInput{
		NetAmount:           params.Amount,
		RequestedType:       params.VATType,
		CounterpartyCountry: params.SupplierCountryCode,
		IsBusiness:          true,
		HasVATNumber:        params.SupplierVATNumber != "",
	})

	vatRate := cls.Rate
	vatAmount := cls.VATAmount
	isReverseCharge := cls.Type == vat.TypeReverseCharge
	if isReverseCharge {
		// Self-assessed at the domestic standard rate. Classifying the
		// same amount domestically reuses the engine's rate and rounding.
		domestic := s.vat.Classify(vat.ClassificationInput{NetAmount: params.Amount})
		vatRate = domestic.Rate
		vatAmount = domestic.VATAmount
	}

	var supplierVAT, category, description *string
	if params.SupplierVATNumber != "" {
		supplierVAT = &params.SupplierVATNumber
	}
	if params.Category != "" {
		category = &params.Category
	}
	if params.Description != "" {
		description = &params.Description
	}

	e := Expense{
		TenantID:            tenantID,
		SupplierName:        params.SupplierName,
		SupplierCountryCode: cls.Rules.CounterpartyCountry,
		SupplierVATNumber:   params.SupplierVATNumber,
		ExpenseDate:         params.ExpenseDate,
		Category:            params.Category,
		Description:         params.Description,
		Amount:              params.Amount.Round(2),
		VATType:             cls.Type,
		VATRate:             vatRate,
		VATAmount:           vatAmount,
		IsReverseCharge:     isReverseCharge,
		IsDeductible:        !params.NotDeductible,
		DataQualityNotes:    cls.DataQuality,
	}

	err := s.pool.QueryRow(ctx, `
		INSERT INTO expenses (
			tenant_id, supplier_name, supplier_country_code, supplier_vat_number,
			expense_date, category, description, amount, vat_type, vat_rate,
			vat_amount, is_reverse_charge, is_deductible, data_quality_notes
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
		RETURNING id, created_at, updated_at
	`, e.TenantID, e.SupplierName, e.SupplierCountryCode, supplierVAT,
		e.ExpenseDate, category, description, e.Amount, e.VATType, e.VATRate,
		e.VATAmount, e.IsReverseCharge, e.IsDeductible, e.DataQualityNotes,
	).Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return Expense{}, fmt.Errorf("creating expense: %w", err)
	}

	s.logger.Info("expense recorded",
		"tenant_id", tenantID,
		"expense_id", e.ID,
		"vat_type", e.VATType,
		"amount", e.Amount,
	)
	return e, nil
}

const expenseColumns = `
	id, tenant_id, supplier_name, supplier_country_code, COALESCE(supplier_vat_number, ''),
	expense_date, COALESCE(category, ''), COALESCE(description, ''), amount, vat_type,
	vat_rate, vat_amount, is_reverse_charge, is_deductible,
	COALESCE(data_quality_notes, '{}'), created_at, updated_at`

func scanExpense(row pgx.Row) (Expense, error) {
	var e Expense
	err := row.Scan(&e.ID, &e.TenantID, &e.SupplierName, &e.SupplierCountryCode, &e.SupplierVATNumber,
		&e.ExpenseDate, &e.Category, &e.Description, &e.Amount, &e.VATType,
		&e.VATRate, &e.VATAmount, &e.IsReverseCharge, &e.IsDeductible,
		&e.DataQualityNotes, &e.CreatedAt, &e.UpdatedAt)
	return e, err
}

// Get returns a single expense by ID.
func (s *Service) Get(ctx context.Context, tenantID, id uuid.UUID) (Expense, error) {
	e, err := scanExpense(s.pool.QueryRow(ctx,
		`SELECT `+expenseColumns+` FROM expenses WHERE id = $1 AND tenant_id = $2`, id, tenantID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Expense{}, ErrNotFound
	}
	if err != nil {
		return Expense{}, fmt.Errorf("getting expense %s: %w", id, err)
	}
	return e, nil
}

// List returns expenses for the tenant, newest first.
func (s *Service) List(ctx context.Context, tenantID uuid.UUID, filter ListFilter) ([]Expense, error) {
	query := `SELECT ` + expenseColumns + ` FROM expenses WHERE tenant_id = $1`
	args := []any{tenantID}

	if !filter.From.IsZero() {
		args = append(args, filter.From)
		query += fmt.Sprintf(" AND expense_date >= $%d", len(args))
	}
	if !filter.To.IsZero() {
		args = append(args, filter.To)
		query += fmt.Sprintf(" AND expense_date < $%d", len(args))
	}
	if filter.Category != "" {
		args = append(args, filter.Category)
		query += fmt.Sprintf(" AND category = $%d", len(args))
	}
	query += " ORDER BY expense_date DESC, created_at DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing expenses: %w", err)
	}
	defer rows.Close()

	var expenses []Expense
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning expense: %w", err)
		}
		expenses = append(expenses, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading expenses: %w", err)
	}
	return expenses, nil
}

// Delete removes an expense.
func (s *Service) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM expenses WHERE id = $1 AND tenant_id = $2`, id, tenantID)
	if err != nil {
		return fmt.Errorf("deleting expense %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
