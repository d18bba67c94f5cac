// Package timeentry tracks billable hours per client. Uninvoiced
// billable entries are the raw material for invoice generation.
package timeentry

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
	ErrNotFound = errors.New("time entry not found")
	ErrInvoiced = errors.New("time entry is already invoiced")
)

// Entry is one tracked block of work.
type Entry struct {
	ID          uuid.UUID       `json:"id"`
	TenantID    uuid.UUID       `json:"tenant_id"`
	ClientID    uuid.UUID       `json:"client_id"`
	EntryDate   time.Time       `json:"entry_date"`
	Hours       decimal.Decimal `json:"hours"`
	HourlyRate  decimal.Decimal `json:"hourly_rate"`
	Description string          `json:"description,omitempty"`
	Billable    bool            `json:"billable"`
	Invoiced    bool            `json:"invoiced"`
	InvoiceID   *uuid.UUID      `json:"invoice_id,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// CreateParams contains the input fields for a new entry. A zero
// HourlyRate falls back to the client's stored rate.
type CreateParams struct {
	ClientID    uuid.UUID       `json:"client_id"`
	EntryDate   time.Time       `json:"entry_date"`
	Hours       decimal.Decimal `json:"hours"`
	HourlyRate  decimal.Decimal `json:"hourly_rate"`
	Description string          `json:"description"`
	NonBillable bool            `json:"non_billable"`
}

// ListFilter narrows List. Zero values mean "no filter".
type ListFilter struct {
	ClientID       uuid.UUID
	From           time.Time
	To             time.Time
	UninvoicedOnly bool
	Limit          int
	Offset         int
}

// Service provides business logic for time tracking.
type Service struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewService creates a new time entry service.
func NewService(pool *pgxpool.Pool, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{pool: pool, logger: logger}
}

const entryColumns = `
	id, tenant_id, client_id, entry_date, hours, hourly_rate,
	COALESCE(description, ''), billable, invoiced, invoice_id, created_at, updated_at`

func scanEntry(row pgx.Row) (Entry, error) {
	var e Entry
	err := row.Scan(&e.ID, &e.TenantID, &e.ClientID, &e.EntryDate, &e.Hours, &e.HourlyRate,
		&e.Description, &e.Billable, &e.Invoiced, &e.InvoiceID, &e.CreatedAt, &e.UpdatedAt)
	return e, err
}

// Create stores a new time entry.
func (s *Service) Create(ctx context.Context, tenantID uuid.UUID, params CreateParams) (Entry, error) {
	if !params.Hours.IsPositive() {
		return Entry{}, fmt.Errorf("hours must be positive")
	}
	if params.EntryDate.IsZero() {
		params.EntryDate = time.Now()
	}

	rate := params.HourlyRate
	if rate.IsZero() {
		err := s.pool.QueryRow(ctx, `
			SELECT COALESCE(hourly_rate, 0) FROM clients WHERE id = $1 AND tenant_id = $2
		`, params.ClientID, tenantID).Scan(&rate)
		if errors.Is(err, pgx.ErrNoRows) {
			return Entry{}, fmt.Errorf("client %s not found", params.ClientID)
		}
		if err != nil {
			return Entry{}, fmt.Errorf("loading client rate: %w", err)
		}
		if rate.IsZero() {
			return Entry{}, fmt.Errorf("no hourly rate given and the client has none stored")
		}
	}

	var description *string
	if params.Description != "" {
		description = &params.Description
	}

	e, err := scanEntry(s.pool.QueryRow(ctx, `
		INSERT INTO time_entries (tenant_id, client_id, entry_date, hours, hourly_rate, description, billable)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+entryColumns,
		tenantID, params.ClientID, params.EntryDate, params.Hours, rate, description, !params.NonBillable))
	if err != nil {
		return Entry{}, fmt.Errorf("creating time entry: %w", err)
	}
	return e, nil
}

// Get returns a single entry by ID.
func (s *Service) Get(ctx context.Context, tenantID, id uuid.UUID) (Entry, error) {
	e, err := scanEntry(s.pool.QueryRow(ctx,
		`SELECT `+entryColumns+` FROM time_entries WHERE id = $1 AND tenant_id = $2`, id, tenantID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Entry{}, ErrNotFound
	}
	if err != nil {
		return Entry{}, fmt.Errorf("getting time entry %s: %w", id, err)
	}
	return e, nil
}

// List returns entries for the tenant, newest first.
func (s *Service) List(ctx context.Context, tenantID uuid.UUID, filter ListFilter) ([]Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM time_entries WHERE tenant_id = $1`
	args := []any{tenantID}

	if filter.ClientID != uuid.Nil {
		args = append(args, filter.ClientID)
		query += fmt.Sprintf(" AND client_id = $%d", len(args))
	}
	if !filter.From.IsZero() {
		args = append(args, filter.From)
		query += fmt.Sprintf(" AND entry_date >= $%d", len(args))
	}
	if !filter.To.IsZero() {
		args = append(args, filter.To)
		query += fmt.Sprintf(" AND entry_date < $%d", len(args))
	}
	if filter.UninvoicedOnly {
		query += " AND billable AND NOT invoiced"
	}
	query += " ORDER BY entry_date DESC, created_at DESC"
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
		return nil, fmt.Errorf("listing time entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning time entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading time entries: %w", err)
	}
	return entries, nil
}

// UnbilledSummary is the invoiceable backlog for one client.
type UnbilledSummary struct {
	ClientID   uuid.UUID       `json:"client_id"`
	ClientName string          `json:"client_name"`
	Hours      decimal.Decimal `json:"hours"`
	Amount     decimal.Decimal `json:"amount"`
	Entries    int             `json:"entries"`
}

// Unbilled sums billable uninvoiced hours per client, largest amount first.
func (s *Service) Unbilled(ctx context.Context, tenantID uuid.UUID) ([]UnbilledSummary, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT t.client_id, c.name, SUM(t.hours), SUM(t.hours * t.hourly_rate), COUNT(*)
		FROM time_entries t
		JOIN clients c ON c.id = t.client_id
		WHERE t.tenant_id = $1 AND t.billable AND NOT t.invoiced
		GROUP BY t.client_id, c.name
		ORDER BY SUM(t.hours * t.hourly_rate) DESC
	`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("summing unbilled time: %w", err)
	}
	defer rows.Close()

	var summaries []UnbilledSummary
	for rows.Next() {
		var u UnbilledSummary
		var entries int64
		if err := rows.Scan(&u.ClientID, &u.ClientName, &u.Hours, &u.Amount, &entries); err != nil {
			return nil, fmt.Errorf("scanning unbilled summary: %w", err)
		}
		u.Entries = int(entries)
		summaries = append(summaries, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading unbilled summaries: %w", err)
	}
	return summaries, nil
}

// Update changes an entry that has not been invoiced yet.
func (s *Service) Update(ctx context.Context, tenantID, id uuid.UUID, params CreateParams) (Entry, error) {
	current, err := s.Get(ctx, tenantID, id)
	if err != nil {
		return Entry{}, err
	}
	if current.Invoiced {
		return Entry{}, ErrInvoiced
	}
	if !params.Hours.IsPositive() {
		return Entry{}, fmt.Errorf("hours must be positive")
	}
	if params.EntryDate.IsZero() {
		params.EntryDate = current.EntryDate
	}
	rate := params.HourlyRate
	if rate.IsZero() {
		rate = current.HourlyRate
	}

	var description *string
	if params.Description != "" {
		description = &params.Description
	}

	e, err := scanEntry(s.pool.QueryRow(ctx, `
		UPDATE time_entries
		SET entry_date = $1, hours = $2, hourly_rate = $3, description = $4,
		    billable = $5, updated_at = now()
		WHERE id = $6 AND tenant_id = $7
		RETURNING `+entryColumns,
		params.EntryDate, params.Hours, rate, description, !params.NonBillable, id, tenantID))
	if err != nil {
		return Entry{}, fmt.Errorf("updating time entry %s: %w", id, err)
	}
	return e, nil
}

// Delete removes an entry that has not been invoiced yet.
func (s *Service) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	current, err := s.Get(ctx, tenantID, id)
	if err != nil {
		return err
	}
	if current.Invoiced {
		return ErrInvoiced
	}
	if _, err := s.pool.Exec(ctx, `DELETE FROM time_entries WHERE id = $1 AND tenant_id = $2`, id, tenantID); err != nil {
		return fmt.Errorf("deleting time entry %s: %w", id, err)
	}
	return nil
}
