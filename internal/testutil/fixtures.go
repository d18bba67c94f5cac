package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// FixtureTenant creates a tenant and returns its id.
func (tdb *TestDB) FixtureTenant(t *testing.T, name string) uuid.UUID {
	t.Helper()
	ctx := context.Background()

	var id uuid.UUID
	err := tdb.Pool.QueryRow(ctx, `
		INSERT INTO tenants (name, country_code, vat_number, kvk_number)
		VALUES ($1, 'NL', 'NL123456789B01', '12345678')
		RETURNING id
	`, name).Scan(&id)
	if err != nil {
		t.Fatalf("creating fixture tenant %q: %v", name, err)
	}
	return id
}

// ClientFixture describes the counterparty profile a test needs.
type ClientFixture struct {
	Name        string
	CountryCode string
	IsBusiness  bool
	VATNumber   string
	HourlyRate  string
}

// FixtureClient creates a client for the tenant and returns its id.
// Zero-value fields get sensible Dutch defaults.
func (tdb *TestDB) FixtureClient(t *testing.T, tenantID uuid.UUID, fix ClientFixture) uuid.UUID {
	t.Helper()
	ctx := context.Background()

	if fix.Name == "" {
		fix.Name = "Test Client BV"
	}
	if fix.CountryCode == "" {
		fix.CountryCode = "NL"
	}
	if fix.HourlyRate == "" {
		fix.HourlyRate = "95.00"
	}
	var vatNumber *string
	if fix.VATNumber != "" {
		vatNumber = &fix.VATNumber
	}

	var id uuid.UUID
	err := tdb.Pool.QueryRow(ctx, `
		INSERT INTO clients (tenant_id, name, country_code, is_business, vat_number, hourly_rate)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, tenantID, fix.Name, fix.CountryCode, fix.IsBusiness, vatNumber, fix.HourlyRate).Scan(&id)
	if err != nil {
		t.Fatalf("creating fixture client %q: %v", fix.Name, err)
	}
	return id
}

// FixtureTimeEntry creates a billable, uninvoiced time entry and returns its id.
func (tdb *TestDB) FixtureTimeEntry(t *testing.T, tenantID, clientID uuid.UUID, day time.Time, hours, rate string) uuid.UUID {
	t.Helper()
	ctx := context.Background()

	var id uuid.UUID
	err := tdb.Pool.QueryRow(ctx, `
		INSERT INTO time_entries (tenant_id, client_id, entry_date, hours, hourly_rate, description, billable)
		VALUES ($1, $2, $3, $4, $5, 'Development', true)
		RETURNING id
	`, tenantID, clientID, day, hours, rate).Scan(&id)
	if err != nil {
		t.Fatalf("creating fixture time entry: %v", err)
	}
	return id
}

// FixtureExpense inserts a deductible expense with VAT decided at entry.
func (tdb *TestDB) FixtureExpense(t *testing.T, tenantID uuid.UUID, day time.Time, amount, vatAmount string) uuid.UUID {
	t.Helper()
	ctx := context.Background()

	var id uuid.UUID
	err := tdb.Pool.QueryRow(ctx, `
		INSERT INTO expenses (tenant_id, supplier_name, supplier_country_code, expense_date,
		                      category, amount, vat_type, vat_rate, vat_amount, is_deductible)
		VALUES ($1, 'Leverancier BV', 'NL', $2, 'software', $3, 'standard', 0.21, $4, true)
		RETURNING id
	`, tenantID, day, amount, vatAmount).Scan(&id)
	if err != nil {
		t.Fatalf("creating fixture expense: %v", err)
	}
	return id
}

// FixtureInvoice inserts an invoice row directly, bypassing the service,
// for tests that only need stored data (reports, reconciliation).
func (tdb *TestDB) FixtureInvoice(t *testing.T, tenantID, clientID uuid.UUID, number string, date time.Time, vatType, country, vatNumber string, subtotal decimal.Decimal) uuid.UUID {
	t.Helper()
	ctx := context.Background()

	var rate, vatAmount decimal.Decimal
	switch vatType {
	case "standard":
		rate = decimal.NewFromFloat(0.21)
		vatAmount = subtotal.Mul(rate).Round(2)
	case "reduced":
		rate = decimal.NewFromFloat(0.09)
		vatAmount = subtotal.Mul(rate).Round(2)
	}
	var clientVAT *string
	if vatNumber != "" {
		clientVAT = &vatNumber
	}

	var id uuid.UUID
	err := tdb.Pool.QueryRow(ctx, `
		INSERT INTO invoices (
			tenant_id, client_id, invoice_number, status, invoice_date,
			subtotal, vat_type, vat_rate, vat_amount, total_amount,
			client_country, client_vat_number
		)
		VALUES ($1, $2, $3, 'sent', $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id
	`, tenantID, clientID, number, date, subtotal, vatType, rate, vatAmount,
		subtotal.Add(vatAmount), country, clientVAT).Scan(&id)
	if err != nil {
		t.Fatalf("creating fixture invoice %q: %v", number, err)
	}
	return id
}
