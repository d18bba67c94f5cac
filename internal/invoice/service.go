package invoice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/zzpfin/api/internal/vat"
)

var (
	ErrNotFound             = errors.New("invoice not found")
	ErrClientNotFound       = errors.New("client not found")
	ErrNoLines              = errors.New("invoice needs at least one line item")
	ErrTimeEntryUnavailable = errors.New("time entry not billable or already invoiced")
	ErrInvalidStatus        = errors.New("invalid status transition")
	ErrNotDraft             = errors.New("only draft invoices can be deleted")
)

// errNumberAllocation marks a createOnce failure caused by the sequence
// upsert rather than by the invoice data itself.
var errNumberAllocation = errors.New("invoice number allocation failed")

// Invoice statuses. Draft invoices already carry an allocated number;
// deleting one leaves a gap in the sequence, which is why deletion is
// restricted to drafts and the gap is accepted.
const (
	StatusDraft     = "draft"
	StatusSent      = "sent"
	StatusPaid      = "paid"
	StatusOverdue   = "overdue"
	StatusCancelled = "cancelled"
)

// Invoice is a stored invoice with its frozen VAT decision. The vat_type,
// vat_rate and amounts are persisted at creation time and never
// recomputed when rates change later.
type Invoice struct {
	ID               uuid.UUID       `json:"id"`
	TenantID         uuid.UUID       `json:"tenant_id"`
	ClientID         uuid.UUID       `json:"client_id"`
	InvoiceNumber    string          `json:"invoice_number"`
	NonSequential    bool            `json:"non_sequential,omitempty"`
	Status           string          `json:"status"`
	InvoiceDate      time.Time       `json:"invoice_date"`
	DueDate          *time.Time      `json:"due_date,omitempty"`
	Subtotal         decimal.Decimal `json:"subtotal"`
	VATType          string          `json:"vat_type"`
	VATRate          decimal.Decimal `json:"vat_rate"`
	VATAmount        decimal.Decimal `json:"vat_amount"`
	TotalAmount      decimal.Decimal `json:"total_amount"`
	PaidAmount       decimal.Decimal `json:"paid_amount"`
	VATExplanation   string          `json:"vat_explanation,omitempty"`
	ClientCountry    string          `json:"client_country"`
	ClientVATNumber  string          `json:"client_vat_number,omitempty"`
	DataQualityNotes []string        `json:"data_quality_notes,omitempty"`
	Notes            string          `json:"notes,omitempty"`
	Items            []Item          `json:"items,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// Item is one stored invoice line.
type Item struct {
	ID          uuid.UUID       `json:"id"`
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	LineTotal   decimal.Decimal `json:"line_total"`
	Position    int             `json:"position"`
}

// LineInput is one caller-supplied invoice line.
type LineInput struct {
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

// CreateParams describes a new invoice. Lines and TimeEntryIDs may be
// combined; time entries are converted to lines (hours × hourly rate)
// and everything is aggregated in a single pass.
type CreateParams struct {
	ClientID     uuid.UUID   `json:"client_id"`
	InvoiceDate  time.Time   `json:"invoice_date"`
	DueDate      *time.Time  `json:"due_date"`
	VATType      string      `json:"vat_type"`
	Lines        []LineInput `json:"lines"`
	TimeEntryIDs []uuid.UUID `json:"time_entry_ids"`
	Notes        string      `json:"notes"`
}

// ListFilter narrows List. Zero values mean "no filter".
type ListFilter struct {
	Status string
	Year   int
	Limit  int
	Offset int
}

// Service creates and manages invoices. Every write runs in a single
// transaction covering VAT classification snapshot, number allocation,
// the invoice row, its items and any time entries being consumed.
type Service struct {
	pool      *pgxpool.Pool
	vat       *vat.Service
	sequencer *Sequencer
	logger    *slog.Logger
}

// NewService creates an invoice service.
func NewService(pool *pgxpool.Pool, vatSvc *vat.Service, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		pool:      pool,
		vat:       vatSvc,
		sequencer: NewSequencer(logger),
		logger:    logger,
	}
}

// Create builds, numbers and stores one invoice. On an invoice number
// collision (a unique violation on tenant_id + invoice_number, possible
// when fallback numbers or manually imported invoices are in play) the
// whole transaction is retried with a fresh number. If the sequence
// upsert itself fails, the aborted transaction is abandoned and the
// invoice is retried on a fresh one with a timestamp fallback number.
func (s *Service) Create(ctx context.Context, tenantID uuid.UUID, params CreateParams) (*Invoice, error) {
	if len(params.Lines) == 0 && len(params.TimeEntryIDs) == 0 {
		return nil, ErrNoLines
	}
	if params.InvoiceDate.IsZero() {
		params.InvoiceDate = time.Now()
	}
	year := params.InvoiceDate.Year()

	const maxAttempts = 3
	var (
		lastErr     error
		useFallback bool
	)
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		var fallback *Number
		if useFallback {
			n := s.sequencer.Fallback(tenantID, year)
			fallback = &n
		}
		inv, err := s.createOnce(ctx, tenantID, params, fallback)
		if err == nil {
			return inv, nil
		}
		switch {
		case errors.Is(err, errNumberAllocation) && !useFallback:
			useFallback = true
		case isUniqueViolation(err, "invoices_tenant_id_invoice_number_key"):
			s.logger.Warn("invoice number collision, retrying",
				"tenant_id", tenantID,
				"attempt", attempt,
			)
		default:
			return nil, err
		}
		lastErr = err
	}
	return nil, fmt.Errorf("allocating unique invoice number after %d attempts: %w", maxAttempts, lastErr)
}

func (s *Service) createOnce(ctx context.Context, tenantID uuid.UUID, params CreateParams, fallback *Number) (*Invoice, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var (
		clientCountry   string
		clientBusiness  bool
		clientVATNumber *string
	)
	err = tx.QueryRow(ctx, `
		SELECT country_code, is_business, vat_number
		FROM clients
		WHERE id = $1 AND tenant_id = $2
	`, params.ClientID, tenantID).Scan(&clientCountry, &clientBusiness, &clientVATNumber)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrClientNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading client: %w", err)
	}

	lines := make([]LineItem, 0, len(params.Lines)+len(params.TimeEntryIDs))
	for _, l := range params.Lines {
		lines = append(lines, LineItem{Description: l.Description, Quantity: l.Quantity, UnitPrice: l.UnitPrice})
	}

	entryIDs := params.TimeEntryIDs
	if len(entryIDs) > 0 {
		entryLines, err := s.lockTimeEntries(ctx, tx, tenantID, params.ClientID, entryIDs)
		if err != nil {
			return nil, err
		}
		lines = append(lines, entryLines...)
	}

	// Subtotal first, then the VAT decision on the rounded subtotal, then
	// the single-pass totals with the decided rate. Classification and
	// aggregation share the rounding policy, so their VAT amounts agree.
	subtotal := Aggregate(lines, decimal.Zero).Subtotal
	hasVAT := clientVATNumber != nil && *clientVATNumber != ""
	cls := s.vat.Classify(vat.ClassificationInput{
		NetAmount:           subtotal,
		RequestedType:       params.VATType,
		CounterpartyCountry: clientCountry,
		IsBusiness:          clientBusiness,
		HasVATNumber:        hasVAT,
	})
	totals := Aggregate(lines, cls.Rate)

	var number Number
	if fallback != nil {
		number = *fallback
	} else {
		year := params.InvoiceDate.Year()
		number, err = s.sequencer.Next(ctx, tx, tenantID, year)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", errNumberAllocation, err)
		}
	}

	inv := &Invoice{
		TenantID:         tenantID,
		ClientID:         params.ClientID,
		InvoiceNumber:    number.Value,
		NonSequential:    number.NonSequential,
		Status:           StatusDraft,
		InvoiceDate:      params.InvoiceDate,
		DueDate:          params.DueDate,
		Subtotal:         totals.Subtotal,
		VATType:          cls.Type,
		VATRate:          cls.Rate,
		VATAmount:        totals.VATAmount,
		TotalAmount:      totals.TotalAmount,
		PaidAmount:       decimal.Zero,
		VATExplanation:   cls.Explanation,
		ClientCountry:    cls.Rules.CounterpartyCountry,
		DataQualityNotes: cls.DataQuality,
		Notes:            params.Notes,
	}
	if hasVAT {
		inv.ClientVATNumber = *clientVATNumber
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO invoices (
			tenant_id, client_id, invoice_number, non_sequential, status,
			invoice_date, due_date, subtotal, vat_type, vat_rate, vat_amount,
			total_amount, vat_explanation, client_country, client_vat_number,
			data_quality_notes, notes
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
		RETURNING id, created_at, updated_at
	`,
		inv.TenantID, inv.ClientID, inv.InvoiceNumber, inv.NonSequential, inv.Status,
		inv.InvoiceDate, inv.DueDate, inv.Subtotal, inv.VATType, inv.VATRate, inv.VATAmount,
		inv.TotalAmount, inv.VATExplanation, inv.ClientCountry, clientVATNumber,
		inv.DataQualityNotes, inv.Notes,
	).Scan(&inv.ID, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("inserting invoice: %w", err)
	}

	inv.Items = make([]Item, 0, len(lines))
	for i, line := range lines {
		item := Item{
			Description: line.Description,
			Quantity:    line.Quantity,
			UnitPrice:   line.UnitPrice,
			LineTotal:   RoundedLineTotal(line),
			Position:    i,
		}
		err = tx.QueryRow(ctx, `
			INSERT INTO invoice_items (invoice_id, description, quantity, unit_price, line_total, position)
			VALUES ($1,$2,$3,$4,$5,$6)
			RETURNING id
		`, inv.ID, item.Description, item.Quantity, item.UnitPrice, item.LineTotal, item.Position).Scan(&item.ID)
		if err != nil {
			return nil, fmt.Errorf("inserting invoice item: %w", err)
		}
		inv.Items = append(inv.Items, item)
	}

	if len(entryIDs) > 0 {
		tag, err := tx.Exec(ctx, `
			UPDATE time_entries
			SET invoiced = true, invoice_id = $1, updated_at = now()
			WHERE id = ANY($2) AND tenant_id = $3
		`, inv.ID, entryIDs, tenantID)
		if err != nil {
			return nil, fmt.Errorf("marking time entries invoiced: %w", err)
		}
		if tag.RowsAffected() != int64(len(entryIDs)) {
			return nil, ErrTimeEntryUnavailable
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing invoice: %w", err)
	}

	s.logger.Info("invoice created",
		"tenant_id", tenantID,
		"invoice_id", inv.ID,
		"invoice_number", inv.InvoiceNumber,
		"vat_type", inv.VATType,
		"total", inv.TotalAmount,
	)
	return inv, nil
}

// lockTimeEntries loads and row-locks billable uninvoiced entries for the
// client, converting them to invoice lines. Any entry that is missing,
// belongs to another client, is non-billable or already invoiced fails
// the whole invoice.
func (s *Service) lockTimeEntries(ctx context.Context, tx pgx.Tx, tenantID, clientID uuid.UUID, ids []uuid.UUID) ([]LineItem, error) {
	rows, err := tx.Query(ctx, `
		SELECT entry_date, hours, hourly_rate, COALESCE(description, '')
		FROM time_entries
		WHERE id = ANY($1) AND tenant_id = $2 AND client_id = $3
		  AND billable AND NOT invoiced
		ORDER BY entry_date, created_at
		FOR UPDATE
	`, ids, tenantID, clientID)
	if err != nil {
		return nil, fmt.Errorf("locking time entries: %w", err)
	}
	defer rows.Close()

	var lines []LineItem
	for rows.Next() {
		var (
			entryDate   time.Time
			hours, rate decimal.Decimal
			description string
		)
		if err := rows.Scan(&entryDate, &hours, &rate, &description); err != nil {
			return nil, fmt.Errorf("scanning time entry: %w", err)
		}
		if description == "" {
			description = "Worked hours"
		}
		lines = append(lines, LineItem{
			Description: fmt.Sprintf("%s (%s)", description, entryDate.Format("2006-01-02")),
			Quantity:    hours,
			UnitPrice:   rate,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading time entries: %w", err)
	}
	if len(lines) != len(ids) {
		return nil, ErrTimeEntryUnavailable
	}
	return lines, nil
}

// BulkFailure records one failed invoice in a bulk run.
type BulkFailure struct {
	ClientID uuid.UUID `json:"client_id"`
	Error    string    `json:"error"`
}

// BulkResult is the partial-success outcome of CreateBulk.
type BulkResult struct {
	Created []Invoice     `json:"created"`
	Failed  []BulkFailure `json:"failed"`
}

// CreateBulk creates one invoice per params entry, each in its own
// transaction. Failures do not abort the run; callers get both lists.
func (s *Service) CreateBulk(ctx context.Context, tenantID uuid.UUID, batch []CreateParams) BulkResult {
	var result BulkResult
	for _, params := range batch {
		inv, err := s.Create(ctx, tenantID, params)
		if err != nil {
			result.Failed = append(result.Failed, BulkFailure{ClientID: params.ClientID, Error: err.Error()})
			continue
		}
		result.Created = append(result.Created, *inv)
	}
	return result
}

const invoiceColumns = `
	id, tenant_id, client_id, invoice_number, non_sequential, status,
	invoice_date, due_date, subtotal, vat_type, vat_rate, vat_amount,
	total_amount, paid_amount, COALESCE(vat_explanation, ''), client_country,
	COALESCE(client_vat_number, ''), COALESCE(data_quality_notes, '{}'),
	COALESCE(notes, ''), created_at, updated_at`

func scanInvoice(row pgx.Row) (*Invoice, error) {
	var inv Invoice
	err := row.Scan(
		&inv.ID, &inv.TenantID, &inv.ClientID, &inv.InvoiceNumber, &inv.NonSequential, &inv.Status,
		&inv.InvoiceDate, &inv.DueDate, &inv.Subtotal, &inv.VATType, &inv.VATRate, &inv.VATAmount,
		&inv.TotalAmount, &inv.PaidAmount, &inv.VATExplanation, &inv.ClientCountry,
		&inv.ClientVATNumber, &inv.DataQualityNotes,
		&inv.Notes, &inv.CreatedAt, &inv.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

// Get returns one invoice with its items.
func (s *Service) Get(ctx context.Context, tenantID, id uuid.UUID) (*Invoice, error) {
	inv, err := scanInvoice(s.pool.QueryRow(ctx,
		`SELECT `+invoiceColumns+` FROM invoices WHERE id = $1 AND tenant_id = $2`,
		id, tenantID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading invoice: %w", err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, description, quantity, unit_price, line_total, position
		FROM invoice_items
		WHERE invoice_id = $1
		ORDER BY position
	`, inv.ID)
	if err != nil {
		return nil, fmt.Errorf("loading invoice items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item Item
		if err := rows.Scan(&item.ID, &item.Description, &item.Quantity, &item.UnitPrice, &item.LineTotal, &item.Position); err != nil {
			return nil, fmt.Errorf("scanning invoice item: %w", err)
		}
		inv.Items = append(inv.Items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading invoice items: %w", err)
	}
	return inv, nil
}

// List returns invoices for the tenant, newest first.
func (s *Service) List(ctx context.Context, tenantID uuid.UUID, filter ListFilter) ([]Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE tenant_id = $1`
	args := []any{tenantID}

	if filter.Status != "" {
		args = append(args, filter.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if filter.Year != 0 {
		args = append(args, filter.Year)
		query += fmt.Sprintf(" AND EXTRACT(YEAR FROM invoice_date) = $%d", len(args))
	}
	query += " ORDER BY invoice_date DESC, invoice_number DESC"
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
		return nil, fmt.Errorf("listing invoices: %w", err)
	}
	defer rows.Close()

	var invoices []Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning invoice: %w", err)
		}
		invoices = append(invoices, *inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading invoices: %w", err)
	}
	return invoices, nil
}

var statusTransitions = map[string][]string{
	StatusDraft:   {StatusSent, StatusCancelled},
	StatusSent:    {StatusPaid, StatusOverdue, StatusCancelled},
	StatusOverdue: {StatusPaid, StatusCancelled},
}

// UpdateStatus moves an invoice along its lifecycle. Paid and cancelled
// are terminal.
func (s *Service) UpdateStatus(ctx context.Context, tenantID, id uuid.UUID, status string) (*Invoice, error) {
	inv, err := s.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	allowed := false
	for _, next := range statusTransitions[inv.Status] {
		if next == status {
			allowed = true
			break
		}
	}
	if !allowed {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidStatus, inv.Status, status)
	}

	_, err = s.pool.Exec(ctx, `
		UPDATE invoices SET status = $1, updated_at = now()
		WHERE id = $2 AND tenant_id = $3
	`, status, id, tenantID)
	if err != nil {
		return nil, fmt.Errorf("updating invoice status: %w", err)
	}
	inv.Status = status
	return inv, nil
}

// RegisterPayment adds a (partial) payment. The invoice flips to paid
// once the cumulative paid amount covers the total.
func (s *Service) RegisterPayment(ctx context.Context, tenantID, id uuid.UUID, amount decimal.Decimal) (*Invoice, error) {
	if !amount.IsPositive() {
		return nil, fmt.Errorf("payment amount must be positive")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	inv, err := scanInvoice(tx.QueryRow(ctx,
		`SELECT `+invoiceColumns+` FROM invoices WHERE id = $1 AND tenant_id = $2 FOR UPDATE`,
		id, tenantID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading invoice: %w", err)
	}

	inv.PaidAmount = inv.PaidAmount.Add(amount)
	if inv.PaidAmount.GreaterThanOrEqual(inv.TotalAmount) && inv.Status != StatusCancelled {
		inv.Status = StatusPaid
	}

	_, err = tx.Exec(ctx, `
		UPDATE invoices SET paid_amount = $1, status = $2, updated_at = now()
		WHERE id = $3 AND tenant_id = $4
	`, inv.PaidAmount, inv.Status, id, tenantID)
	if err != nil {
		return nil, fmt.Errorf("registering payment: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing payment: %w", err)
	}
	return inv, nil
}

// Delete removes a draft invoice and releases its time entries. The
// allocated number is not reused; the resulting gap is visible and
// acceptable for drafts.
func (s *Service) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var status string
	err = tx.QueryRow(ctx, `
		SELECT status FROM invoices WHERE id = $1 AND tenant_id = $2 FOR UPDATE
	`, id, tenantID).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("loading invoice: %w", err)
	}
	if status != StatusDraft {
		return ErrNotDraft
	}

	_, err = tx.Exec(ctx, `
		UPDATE time_entries SET invoiced = false, invoice_id = NULL, updated_at = now()
		WHERE invoice_id = $1 AND tenant_id = $2
	`, id, tenantID)
	if err != nil {
		return fmt.Errorf("releasing time entries: %w", err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM invoices WHERE id = $1 AND tenant_id = $2`, id, tenantID); err != nil {
		return fmt.Errorf("deleting invoice: %w", err)
	}
	return tx.Commit(ctx)
}

func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "23505" && pgErr.ConstraintName == constraint
}
