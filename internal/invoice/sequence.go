package invoice

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// querier is the subset of pgx used by the sequencer, satisfied by both
// *pgxpool.Pool and pgx.Tx so number allocation can join the invoice
// insert transaction.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Number is one allocated invoice number.
type Number struct {
	Value    string
	Sequence int64
	// NonSequential marks a timestamp-derived fallback number handed out
	// when the sequence row could not be updated. Such invoices are valid
	// but break the gapless ordering auditors expect, so the flag is
	// persisted with the invoice.
	NonSequential bool
}

// Sequencer allocates invoice numbers of the form "2025-0001", one
// counter per tenant per calendar year. The counter restarts at 1 each
// January; the year prefix keeps numbers unique across the restart.
type Sequencer struct {
	logger *slog.Logger
	now    func() time.Time
}

// NewSequencer creates an invoice number sequencer.
func NewSequencer(logger *slog.Logger) *Sequencer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sequencer{logger: logger, now: time.Now}
}

// Next allocates the next number for the tenant and year. The upsert
// increments the counter atomically: concurrent callers serialize on the
// row lock and each sees a distinct value, so no two invoices share a
// number. Run it on the same transaction as the invoice insert; a
// rollback then releases the number before it was ever handed out.
//
// A failed upsert aborts the surrounding transaction, so no fallback is
// attempted here. Callers that still need a number use Fallback on a
// fresh transaction.
func (s *Sequencer) Next(ctx context.Context, db querier, tenantID uuid.UUID, year int) (Number, error) {
	var last int64
	err := db.QueryRow(ctx, `
		INSERT INTO invoice_number_sequences (tenant_id, year, last_number)
		VALUES ($1, $2, 1)
		ON CONFLICT (tenant_id, year)
		DO UPDATE SET last_number = invoice_number_sequences.last_number + 1
		RETURNING last_number
	`, tenantID, year).Scan(&last)
	if err != nil {
		return Number{}, fmt.Errorf("incrementing invoice number sequence: %w", err)
	}

	return Number{
		Value:    FormatNumber(year, last),
		Sequence: last,
	}, nil
}

// Fallback derives a timestamp number for when the sequence row cannot
// be updated. The nanosecond resolution makes a collision with another
// fallback practically impossible; the uniqueness constraint on stored
// invoice numbers catches the remaining case.
func (s *Sequencer) Fallback(tenantID uuid.UUID, year int) Number {
	ts := s.now().UnixNano()
	s.logger.Error("invoice number allocation failed, issuing non-sequential fallback",
		"tenant_id", tenantID,
		"year", year,
	)
	return Number{
		Value:         fmt.Sprintf("%d-%d", year, ts),
		Sequence:      ts,
		NonSequential: true,
	}
}

// FormatNumber renders a sequence value as an invoice number. Sequences
// are zero-padded to 4 digits and widen naturally past 9999.
func FormatNumber(year int, sequence int64) string {
	return fmt.Sprintf("%d-%04d", year, sequence)
}
