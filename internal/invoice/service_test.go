package invoice_test

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/zzpfin/api/internal/country"
	"github.com/zzpfin/api/internal/invoice"
	"github.com/zzpfin/api/internal/testutil"
	"github.com/zzpfin/api/internal/vat"
)

var testDB *testutil.TestDB

func TestMain(m *testing.M) {
	var code int
	defer func() { os.Exit(code) }()

	db, err := testutil.SetupTestDB()
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()
	testDB = db

	code = m.Run()
}

func newService(t *testing.T) *invoice.Service {
	t.Helper()

	registry, err := country.Load("")
	if err != nil {
		t.Fatalf("loading country registry: %v", err)
	}
	cache := vat.NewRateCache(decimal.NewFromFloat(0.21), decimal.NewFromFloat(0.09))
	vatSvc := vat.NewService(testDB.Pool, registry, cache, nil)
	if err := vatSvc.LoadRates(context.Background()); err != nil {
		t.Fatalf("loading VAT rates: %v", err)
	}
	return invoice.NewService(testDB.Pool, vatSvc, nil)
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestCreate_DomesticInvoice(t *testing.T) {
	testDB.Truncate(t)
	svc := newService(t)
	ctx := context.Background()

	tenantID := testDB.FixtureTenant(t, "Jansen Consultancy")
	clientID := testDB.FixtureClient(t, tenantID, testutil.ClientFixture{CountryCode: "NL", IsBusiness: true})

	inv, err := svc.Create(ctx, tenantID, invoice.CreateParams{
		ClientID:    clientID,
		InvoiceDate: date(2025, time.March, 15),
		Lines: []invoice.LineInput{
			{Description: "Consulting", Quantity: decimal.NewFromInt(10), UnitPrice: decimal.NewFromInt(100)},
		},
	})
	if err != nil {
		t.Fatalf("creating invoice: %v", err)
	}

	if inv.InvoiceNumber != "2025-0001" {
		t.Errorf("invoice number: want 2025-0001, got %s", inv.InvoiceNumber)
	}
	if inv.NonSequential {
		t.Error("invoice should not be flagged non-sequential")
	}
	if inv.VATType != vat.TypeStandard {
		t.Errorf("vat type: want standard, got %s", inv.VATType)
	}
	if !inv.Subtotal.Equal(decimal.NewFromInt(1000)) {
		t.Errorf("subtotal: want 1000, got %s", inv.Subtotal)
	}
	if !inv.VATAmount.Equal(decimal.NewFromInt(210)) {
		t.Errorf("VAT: want 210, got %s", inv.VATAmount)
	}
	if !inv.TotalAmount.Equal(decimal.NewFromInt(1210)) {
		t.Errorf("total: want 1210, got %s", inv.TotalAmount)
	}
	if inv.Status != invoice.StatusDraft {
		t.Errorf("status: want draft, got %s", inv.Status)
	}

	// Round-trip through Get.
	got, err := svc.Get(ctx, tenantID, inv.ID)
	if err != nil {
		t.Fatalf("getting invoice: %v", err)
	}
	if len(got.Items) != 1 || !got.Items[0].LineTotal.Equal(decimal.NewFromInt(1000)) {
		t.Errorf("items: want 1 item with line total 1000, got %+v", got.Items)
	}
}

func TestCreate_ReverseChargeSnapshotsClientVAT(t *testing.T) {
	testDB.Truncate(t)
	svc := newService(t)
	ctx := context.Background()

	tenantID := testDB.FixtureTenant(t, "Jansen Consultancy")
	clientID := testDB.FixtureClient(t, tenantID, testutil.ClientFixture{
		CountryCode: "DE",
		IsBusiness:  true,
		VATNumber:   "DE123456789",
	})

	inv, err := svc.Create(ctx, tenantID, invoice.CreateParams{
		ClientID:    clientID,
		InvoiceDate: date(2025, time.March, 15),
		Lines: []invoice.LineInput{
			{Description: "Development", Quantity: decimal.NewFromInt(5), UnitPrice: decimal.NewFromInt(100)},
		},
	})
	if err != nil {
		t.Fatalf("creating invoice: %v", err)
	}

	if inv.VATType != vat.TypeReverseCharge {
		t.Errorf("vat type: want reverse_charge, got %s", inv.VATType)
	}
	if !inv.VATAmount.IsZero() {
		t.Errorf("VAT: want 0, got %s", inv.VATAmount)
	}
	if inv.ClientVATNumber != "DE123456789" {
		t.Errorf("client VAT number not snapshotted: got %q", inv.ClientVATNumber)
	}
	if inv.ClientCountry != "DE" {
		t.Errorf("client country: want DE, got %q", inv.ClientCountry)
	}
	if inv.VATExplanation == "" {
		t.Error("expected a stored VAT explanation")
	}
}

func TestCreate_UnrecognizedClientCountrySnapshotted(t *testing.T) {
	testDB.Truncate(t)
	svc := newService(t)
	ctx := context.Background()

	tenantID := testDB.FixtureTenant(t, "Jansen Consultancy")
	clientID := testDB.FixtureClient(t, tenantID, testutil.ClientFixture{
		Name:        "Atlantis Trading",
		CountryCode: "ATLANTIS",
		IsBusiness:  true,
	})

	inv, err := svc.Create(ctx, tenantID, invoice.CreateParams{
		ClientID:    clientID,
		InvoiceDate: date(2025, time.March, 15),
		Lines: []invoice.LineInput{
			{Description: "Consulting", Quantity: decimal.NewFromInt(1), UnitPrice: decimal.NewFromInt(500)},
		},
	})
	if err != nil {
		t.Fatalf("creating invoice for unrecognized country: %v", err)
	}

	if inv.VATType != vat.TypeExempt {
		t.Errorf("vat type: want exempt, got %s", inv.VATType)
	}
	if inv.ClientCountry != "ATLANTIS" {
		t.Errorf("client country: want ATLANTIS verbatim, got %q", inv.ClientCountry)
	}
	if len(inv.DataQualityNotes) == 0 {
		t.Error("expected a data quality note for the unrecognized country")
	}

	got, err := svc.Get(ctx, tenantID, inv.ID)
	if err != nil {
		t.Fatalf("getting invoice: %v", err)
	}
	if got.ClientCountry != "ATLANTIS" {
		t.Errorf("stored client country: want ATLANTIS, got %q", got.ClientCountry)
	}
}

func TestCreate_NumbersAreSequentialPerYear(t *testing.T) {
	testDB.Truncate(t)
	svc := newService(t)
	ctx := context.Background()

	tenantID := testDB.FixtureTenant(t, "Jansen Consultancy")
	clientID := testDB.FixtureClient(t, tenantID, testutil.ClientFixture{})

	line := []invoice.LineInput{{Description: "Work", Quantity: decimal.NewFromInt(1), UnitPrice: decimal.NewFromInt(100)}}

	for i, want := range []string{"2025-0001", "2025-0002", "2025-0003"} {
		inv, err := svc.Create(ctx, tenantID, invoice.CreateParams{
			ClientID:    clientID,
			InvoiceDate: date(2025, time.June, i+1),
			Lines:       line,
		})
		if err != nil {
			t.Fatalf("creating invoice %d: %v", i, err)
		}
		if inv.InvoiceNumber != want {
			t.Errorf("invoice %d: want %s, got %s", i, want, inv.InvoiceNumber)
		}
	}

	// A new year restarts the counter without colliding.
	inv, err := svc.Create(ctx, tenantID, invoice.CreateParams{
		ClientID:    clientID,
		InvoiceDate: date(2026, time.January, 5),
		Lines:       line,
	})
	if err != nil {
		t.Fatalf("creating cross-year invoice: %v", err)
	}
	if inv.InvoiceNumber != "2026-0001" {
		t.Errorf("cross-year: want 2026-0001, got %s", inv.InvoiceNumber)
	}

	// Another tenant has its own counter.
	otherTenant := testDB.FixtureTenant(t, "De Vries Design")
	otherClient := testDB.FixtureClient(t, otherTenant, testutil.ClientFixture{})
	other, err := svc.Create(ctx, otherTenant, invoice.CreateParams{
		ClientID:    otherClient,
		InvoiceDate: date(2025, time.June, 1),
		Lines:       line,
	})
	if err != nil {
		t.Fatalf("creating other-tenant invoice: %v", err)
	}
	if other.InvoiceNumber != "2025-0001" {
		t.Errorf("other tenant: want 2025-0001, got %s", other.InvoiceNumber)
	}
}

func TestCreate_FallbackNumberWhenSequenceUnavailable(t *testing.T) {
	testDB.Truncate(t)
	svc := newService(t)
	ctx := context.Background()

	tenantID := testDB.FixtureTenant(t, "Jansen Consultancy")
	clientID := testDB.FixtureClient(t, tenantID, testutil.ClientFixture{})

	// Break the sequence upsert by hiding its table. The first attempt
	// aborts its transaction; the retry must commit a timestamp number
	// on a fresh one.
	if _, err := testDB.Pool.Exec(ctx, `ALTER TABLE invoice_number_sequences RENAME TO invoice_number_sequences_hidden`); err != nil {
		t.Fatalf("hiding sequence table: %v", err)
	}
	restored := false
	restore := func() {
		if restored {
			return
		}
		restored = true
		if _, err := testDB.Pool.Exec(ctx, `ALTER TABLE invoice_number_sequences_hidden RENAME TO invoice_number_sequences`); err != nil {
			t.Fatalf("restoring sequence table: %v", err)
		}
	}
	defer restore()

	inv, err := svc.Create(ctx, tenantID, invoice.CreateParams{
		ClientID:    clientID,
		InvoiceDate: date(2025, time.March, 15),
		Lines: []invoice.LineInput{
			{Description: "Work", Quantity: decimal.NewFromInt(1), UnitPrice: decimal.NewFromInt(100)},
		},
	})
	if err != nil {
		t.Fatalf("creating invoice with sequence unavailable: %v", err)
	}

	if !inv.NonSequential {
		t.Error("fallback invoice must be flagged non-sequential")
	}
	if !fallbackNumberRE.MatchString(inv.InvoiceNumber) {
		t.Errorf("fallback number shape: got %q", inv.InvoiceNumber)
	}

	// The fallback invoice is committed, not just returned.
	got, err := svc.Get(ctx, tenantID, inv.ID)
	if err != nil {
		t.Fatalf("getting fallback invoice: %v", err)
	}
	if got.InvoiceNumber != inv.InvoiceNumber || !got.NonSequential {
		t.Errorf("stored invoice: number %q non_sequential %v", got.InvoiceNumber, got.NonSequential)
	}

	// Once the sequence is reachable again, numbering resumes normally.
	restore()
	next, err := svc.Create(ctx, tenantID, invoice.CreateParams{
		ClientID:    clientID,
		InvoiceDate: date(2025, time.March, 16),
		Lines: []invoice.LineInput{
			{Description: "Work", Quantity: decimal.NewFromInt(1), UnitPrice: decimal.NewFromInt(100)},
		},
	})
	if err != nil {
		t.Fatalf("creating invoice after restore: %v", err)
	}
	if next.InvoiceNumber != "2025-0001" || next.NonSequential {
		t.Errorf("after restore: want 2025-0001 sequential, got %q (non_sequential=%v)", next.InvoiceNumber, next.NonSequential)
	}
}

// Timestamp fallbacks keep the year prefix but carry a nanosecond value
// far wider than the zero-padded sequence.
var fallbackNumberRE = regexp.MustCompile(`^2025-\d{15,}$`)

func TestCreate_ConcurrentAllocationsNeverCollide(t *testing.T) {
	testDB.Truncate(t)
	svc := newService(t)
	ctx := context.Background()

	tenantID := testDB.FixtureTenant(t, "Jansen Consultancy")
	clientID := testDB.FixtureClient(t, tenantID, testutil.ClientFixture{})

	const workers = 100
	var wg sync.WaitGroup
	numbers := make(chan string, workers)
	errs := make(chan error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			inv, err := svc.Create(ctx, tenantID, invoice.CreateParams{
				ClientID:    clientID,
				InvoiceDate: date(2025, time.July, 1),
				Lines: []invoice.LineInput{
					{Description: "Work", Quantity: decimal.NewFromInt(1), UnitPrice: decimal.NewFromInt(50)},
				},
			})
			if err != nil {
				errs <- err
				return
			}
			numbers <- inv.InvoiceNumber
		}()
	}
	wg.Wait()
	close(numbers)
	close(errs)

	for err := range errs {
		t.Fatalf("concurrent create failed: %v", err)
	}

	seen := make(map[string]bool, workers)
	for n := range numbers {
		if seen[n] {
			t.Fatalf("duplicate invoice number handed out: %s", n)
		}
		seen[n] = true
	}
	if len(seen) != workers {
		t.Fatalf("want %d distinct numbers, got %d", workers, len(seen))
	}
	// Gapless: exactly 0001..0100 must have been issued.
	for i := 1; i <= workers; i++ {
		want := fmt.Sprintf("2025-%04d", i)
		if !seen[want] {
			t.Errorf("missing number %s", want)
		}
	}
}

func TestCreate_FromTimeEntries(t *testing.T) {
	testDB.Truncate(t)
	svc := newService(t)
	ctx := context.Background()

	tenantID := testDB.FixtureTenant(t, "Jansen Consultancy")
	clientID := testDB.FixtureClient(t, tenantID, testutil.ClientFixture{})

	e1 := testDB.FixtureTimeEntry(t, tenantID, clientID, date(2025, time.May, 2), "4.5", "95.00")
	e2 := testDB.FixtureTimeEntry(t, tenantID, clientID, date(2025, time.May, 3), "3.25", "95.00")

	inv, err := svc.Create(ctx, tenantID, invoice.CreateParams{
		ClientID:     clientID,
		InvoiceDate:  date(2025, time.May, 31),
		TimeEntryIDs: []uuid.UUID{e1, e2},
		Lines: []invoice.LineInput{
			{Description: "Hosting", Quantity: decimal.NewFromInt(1), UnitPrice: decimal.NewFromInt(25)},
		},
	})
	if err != nil {
		t.Fatalf("creating invoice from time entries: %v", err)
	}

	// 4.5*95 + 3.25*95 + 25 = 427.50 + 308.75 + 25 = 761.25
	if !inv.Subtotal.Equal(decimal.RequireFromString("761.25")) {
		t.Errorf("subtotal: want 761.25, got %s", inv.Subtotal)
	}
	if len(inv.Items) != 3 {
		t.Errorf("items: want 3, got %d", len(inv.Items))
	}

	var invoiced bool
	var linkedInvoice *uuid.UUID
	err = testDB.Pool.QueryRow(ctx,
		`SELECT invoiced, invoice_id FROM time_entries WHERE id = $1`, e1,
	).Scan(&invoiced, &linkedInvoice)
	if err != nil {
		t.Fatalf("reading time entry: %v", err)
	}
	if !invoiced || linkedInvoice == nil || *linkedInvoice != inv.ID {
		t.Errorf("time entry not marked invoiced: invoiced=%v link=%v", invoiced, linkedInvoice)
	}

	// The same entries cannot be invoiced twice.
	_, err = svc.Create(ctx, tenantID, invoice.CreateParams{
		ClientID:     clientID,
		InvoiceDate:  date(2025, time.June, 1),
		TimeEntryIDs: []uuid.UUID{e1},
	})
	if !errors.Is(err, invoice.ErrTimeEntryUnavailable) {
		t.Errorf("want ErrTimeEntryUnavailable, got %v", err)
	}
}

func TestCreate_UnknownClient(t *testing.T) {
	testDB.Truncate(t)
	svc := newService(t)

	tenantID := testDB.FixtureTenant(t, "Jansen Consultancy")

	_, err := svc.Create(context.Background(), tenantID, invoice.CreateParams{
		ClientID: uuid.New(),
		Lines: []invoice.LineInput{
			{Description: "Work", Quantity: decimal.NewFromInt(1), UnitPrice: decimal.NewFromInt(1)},
		},
	})
	if !errors.Is(err, invoice.ErrClientNotFound) {
		t.Errorf("want ErrClientNotFound, got %v", err)
	}
}

func TestCreate_TenantIsolation(t *testing.T) {
	testDB.Truncate(t)
	svc := newService(t)
	ctx := context.Background()

	tenantA := testDB.FixtureTenant(t, "Tenant A")
	tenantB := testDB.FixtureTenant(t, "Tenant B")
	clientA := testDB.FixtureClient(t, tenantA, testutil.ClientFixture{})

	// Tenant B cannot invoice tenant A's client.
	_, err := svc.Create(ctx, tenantB, invoice.CreateParams{
		ClientID: clientA,
		Lines: []invoice.LineInput{
			{Description: "Work", Quantity: decimal.NewFromInt(1), UnitPrice: decimal.NewFromInt(1)},
		},
	})
	if !errors.Is(err, invoice.ErrClientNotFound) {
		t.Errorf("want ErrClientNotFound across tenants, got %v", err)
	}

	inv, err := svc.Create(ctx, tenantA, invoice.CreateParams{
		ClientID: clientA,
		Lines: []invoice.LineInput{
			{Description: "Work", Quantity: decimal.NewFromInt(1), UnitPrice: decimal.NewFromInt(1)},
		},
	})
	if err != nil {
		t.Fatalf("creating invoice: %v", err)
	}
	if _, err := svc.Get(ctx, tenantB, inv.ID); !errors.Is(err, invoice.ErrNotFound) {
		t.Errorf("want ErrNotFound reading across tenants, got %v", err)
	}
}

func TestRegisterPayment(t *testing.T) {
	testDB.Truncate(t)
	svc := newService(t)
	ctx := context.Background()

	tenantID := testDB.FixtureTenant(t, "Jansen Consultancy")
	clientID := testDB.FixtureClient(t, tenantID, testutil.ClientFixture{})

	inv, err := svc.Create(ctx, tenantID, invoice.CreateParams{
		ClientID:    clientID,
		InvoiceDate: date(2025, time.April, 1),
		Lines: []invoice.LineInput{
			{Description: "Work", Quantity: decimal.NewFromInt(10), UnitPrice: decimal.NewFromInt(100)},
		},
	})
	if err != nil {
		t.Fatalf("creating invoice: %v", err)
	}
	if _, err := svc.UpdateStatus(ctx, tenantID, inv.ID, invoice.StatusSent); err != nil {
		t.Fatalf("sending invoice: %v", err)
	}

	partial, err := svc.RegisterPayment(ctx, tenantID, inv.ID, decimal.NewFromInt(500))
	if err != nil {
		t.Fatalf("registering partial payment: %v", err)
	}
	if partial.Status != invoice.StatusSent {
		t.Errorf("partial payment should not mark paid, got %s", partial.Status)
	}

	full, err := svc.RegisterPayment(ctx, tenantID, inv.ID, decimal.NewFromInt(710))
	if err != nil {
		t.Fatalf("registering final payment: %v", err)
	}
	if full.Status != invoice.StatusPaid {
		t.Errorf("status after full payment: want paid, got %s", full.Status)
	}
	if !full.PaidAmount.Equal(decimal.NewFromInt(1210)) {
		t.Errorf("paid amount: want 1210, got %s", full.PaidAmount)
	}
}

func TestUpdateStatus_RejectsInvalidTransition(t *testing.T) {
	testDB.Truncate(t)
	svc := newService(t)
	ctx := context.Background()

	tenantID := testDB.FixtureTenant(t, "Jansen Consultancy")
	clientID := testDB.FixtureClient(t, tenantID, testutil.ClientFixture{})

	inv, err := svc.Create(ctx, tenantID, invoice.CreateParams{
		ClientID: clientID,
		Lines: []invoice.LineInput{
			{Description: "Work", Quantity: decimal.NewFromInt(1), UnitPrice: decimal.NewFromInt(1)},
		},
	})
	if err != nil {
		t.Fatalf("creating invoice: %v", err)
	}

	// Draft cannot jump straight to paid.
	if _, err := svc.UpdateStatus(ctx, tenantID, inv.ID, invoice.StatusPaid); !errors.Is(err, invoice.ErrInvalidStatus) {
		t.Errorf("want ErrInvalidStatus, got %v", err)
	}
}

func TestDelete_DraftOnlyAndGapRemains(t *testing.T) {
	testDB.Truncate(t)
	svc := newService(t)
	ctx := context.Background()

	tenantID := testDB.FixtureTenant(t, "Jansen Consultancy")
	clientID := testDB.FixtureClient(t, tenantID, testutil.ClientFixture{})
	entry := testDB.FixtureTimeEntry(t, tenantID, clientID, date(2025, time.May, 2), "2", "90.00")

	line := []invoice.LineInput{{Description: "Work", Quantity: decimal.NewFromInt(1), UnitPrice: decimal.NewFromInt(100)}}

	first, err := svc.Create(ctx, tenantID, invoice.CreateParams{
		ClientID:     clientID,
		InvoiceDate:  date(2025, time.May, 10),
		TimeEntryIDs: []uuid.UUID{entry},
	})
	if err != nil {
		t.Fatalf("creating first invoice: %v", err)
	}

	if err := svc.Delete(ctx, tenantID, first.ID); err != nil {
		t.Fatalf("deleting draft: %v", err)
	}

	// The consumed time entry is released.
	var invoiced bool
	if err := testDB.Pool.QueryRow(ctx, `SELECT invoiced FROM time_entries WHERE id = $1`, entry).Scan(&invoiced); err != nil {
		t.Fatalf("reading time entry: %v", err)
	}
	if invoiced {
		t.Error("deleting the invoice should release its time entries")
	}

	// The number is not reused: the sequence keeps counting.
	second, err := svc.Create(ctx, tenantID, invoice.CreateParams{
		ClientID:    clientID,
		InvoiceDate: date(2025, time.May, 11),
		Lines:       line,
	})
	if err != nil {
		t.Fatalf("creating second invoice: %v", err)
	}
	if second.InvoiceNumber != "2025-0002" {
		t.Errorf("deleted number must not be reissued: want 2025-0002, got %s", second.InvoiceNumber)
	}

	// Sent invoices cannot be deleted.
	if _, err := svc.UpdateStatus(ctx, tenantID, second.ID, invoice.StatusSent); err != nil {
		t.Fatalf("sending invoice: %v", err)
	}
	if err := svc.Delete(ctx, tenantID, second.ID); !errors.Is(err, invoice.ErrNotDraft) {
		t.Errorf("want ErrNotDraft, got %v", err)
	}
}

func TestCreateBulk_PartialSuccess(t *testing.T) {
	testDB.Truncate(t)
	svc := newService(t)
	ctx := context.Background()

	tenantID := testDB.FixtureTenant(t, "Jansen Consultancy")
	clientID := testDB.FixtureClient(t, tenantID, testutil.ClientFixture{})

	line := []invoice.LineInput{{Description: "Work", Quantity: decimal.NewFromInt(1), UnitPrice: decimal.NewFromInt(100)}}
	result := svc.CreateBulk(ctx, tenantID, []invoice.CreateParams{
		{ClientID: clientID, InvoiceDate: date(2025, time.May, 1), Lines: line},
		{ClientID: uuid.New(), InvoiceDate: date(2025, time.May, 1), Lines: line}, // unknown client
		{ClientID: clientID, InvoiceDate: date(2025, time.May, 2), Lines: line},
	})

	if len(result.Created) != 2 {
		t.Errorf("created: want 2, got %d", len(result.Created))
	}
	if len(result.Failed) != 1 {
		t.Errorf("failed: want 1, got %d", len(result.Failed))
	}
}

func TestList_Filters(t *testing.T) {
	testDB.Truncate(t)
	svc := newService(t)
	ctx := context.Background()

	tenantID := testDB.FixtureTenant(t, "Jansen Consultancy")
	clientID := testDB.FixtureClient(t, tenantID, testutil.ClientFixture{})

	line := []invoice.LineInput{{Description: "Work", Quantity: decimal.NewFromInt(1), UnitPrice: decimal.NewFromInt(100)}}
	for _, d := range []time.Time{date(2024, time.December, 1), date(2025, time.January, 10), date(2025, time.February, 20)} {
		if _, err := svc.Create(ctx, tenantID, invoice.CreateParams{ClientID: clientID, InvoiceDate: d, Lines: line}); err != nil {
			t.Fatalf("creating invoice: %v", err)
		}
	}

	all, err := svc.List(ctx, tenantID, invoice.ListFilter{})
	if err != nil {
		t.Fatalf("listing: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("all: want 3, got %d", len(all))
	}

	year2025, err := svc.List(ctx, tenantID, invoice.ListFilter{Year: 2025})
	if err != nil {
		t.Fatalf("listing 2025: %v", err)
	}
	if len(year2025) != 2 {
		t.Errorf("2025: want 2, got %d", len(year2025))
	}

	limited, err := svc.List(ctx, tenantID, invoice.ListFilter{Limit: 1, Offset: 1})
	if err != nil {
		t.Fatalf("listing paged: %v", err)
	}
	if len(limited) != 1 {
		t.Errorf("paged: want 1, got %d", len(limited))
	}
}
