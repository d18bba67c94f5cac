package client_test

import (
	"context"
	"errors"
	"log"
	"os"
	"testing"

	"github.com/zzpfin/api/internal/country"
	"github.com/zzpfin/api/internal/services/client"
	"github.com/zzpfin/api/internal/testutil"
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

func newService(t *testing.T) *client.Service {
	t.Helper()
	registry, err := country.Load("")
	if err != nil {
		t.Fatalf("loading country registry: %v", err)
	}
	return client.NewService(testDB.Pool, registry, nil)
}

func TestCreate_NormalizesCountry(t *testing.T) {
	testDB.Truncate(t)
	svc := newService(t)

	tenantID := testDB.FixtureTenant(t, "Jansen Consultancy")
	c, err := svc.Create(context.Background(), tenantID, client.CreateParams{
		Name:        "Müller GmbH",
		CountryCode: "duitsland",
		IsBusiness:  true,
		VATNumber:   "DE123456789",
	})
	if err != nil {
		t.Fatalf("creating client: %v", err)
	}

	if c.CountryCode != "DE" {
		t.Errorf("country: want DE, got %q", c.CountryCode)
	}
	if !c.Active {
		t.Error("new client should be active")
	}
}

func TestCreate_UnrecognizedCountryKeptVerbatim(t *testing.T) {
	testDB.Truncate(t)
	svc := newService(t)
	ctx := context.Background()

	tenantID := testDB.FixtureTenant(t, "Jansen Consultancy")
	c, err := svc.Create(ctx, tenantID, client.CreateParams{
		Name:        "Atlantis Trading",
		CountryCode: "Atlantis",
		IsBusiness:  true,
	})
	if err != nil {
		t.Fatalf("creating client with unrecognized country: %v", err)
	}
	if c.CountryCode != "ATLANTIS" {
		t.Errorf("country: want ATLANTIS, got %q", c.CountryCode)
	}

	// The stored value round-trips unchanged through updates too.
	name := "Atlantis Trading Ltd"
	updated, err := svc.Update(ctx, tenantID, c.ID, client.UpdateParams{Name: &name})
	if err != nil {
		t.Fatalf("updating client: %v", err)
	}
	if updated.CountryCode != "ATLANTIS" {
		t.Errorf("country after update: want ATLANTIS, got %q", updated.CountryCode)
	}
}

func TestCreate_RequiresName(t *testing.T) {
	testDB.Truncate(t)
	svc := newService(t)

	tenantID := testDB.FixtureTenant(t, "Jansen Consultancy")
	if _, err := svc.Create(context.Background(), tenantID, client.CreateParams{CountryCode: "NL"}); err == nil {
		t.Error("want error for missing name")
	}
}

func TestUpdate_PartialFields(t *testing.T) {
	testDB.Truncate(t)
	svc := newService(t)
	ctx := context.Background()

	tenantID := testDB.FixtureTenant(t, "Jansen Consultancy")
	c, err := svc.Create(ctx, tenantID, client.CreateParams{
		Name:        "Peeters BV",
		CountryCode: "BE",
		IsBusiness:  true,
	})
	if err != nil {
		t.Fatalf("creating client: %v", err)
	}

	vatNumber := "BE0123456789"
	updated, err := svc.Update(ctx, tenantID, c.ID, client.UpdateParams{VATNumber: &vatNumber})
	if err != nil {
		t.Fatalf("updating client: %v", err)
	}

	if updated.VATNumber != vatNumber {
		t.Errorf("VAT number: want %q, got %q", vatNumber, updated.VATNumber)
	}
	// Untouched fields survive.
	if updated.Name != "Peeters BV" || updated.CountryCode != "BE" || !updated.IsBusiness {
		t.Errorf("unrelated fields changed: %+v", updated)
	}
}

func TestList_PaginationAndActiveFilter(t *testing.T) {
	testDB.Truncate(t)
	svc := newService(t)
	ctx := context.Background()

	tenantID := testDB.FixtureTenant(t, "Jansen Consultancy")
	names := []string{"Alpha BV", "Beta BV", "Gamma BV"}
	for _, name := range names {
		if _, err := svc.Create(ctx, tenantID, client.CreateParams{Name: name, CountryCode: "NL"}); err != nil {
			t.Fatalf("creating client %q: %v", name, err)
		}
	}

	page, total, err := svc.List(ctx, tenantID, 1, 2, false)
	if err != nil {
		t.Fatalf("listing: %v", err)
	}
	if total != 3 || len(page) != 2 {
		t.Errorf("page 1: want total 3 and 2 rows, got %d and %d", total, len(page))
	}
	if page[0].Name != "Alpha BV" {
		t.Errorf("ordering: want Alpha BV first, got %q", page[0].Name)
	}

	if err := svc.Deactivate(ctx, tenantID, page[0].ID); err != nil {
		t.Fatalf("deactivating: %v", err)
	}
	_, activeTotal, err := svc.List(ctx, tenantID, 1, 10, true)
	if err != nil {
		t.Fatalf("listing active: %v", err)
	}
	if activeTotal != 2 {
		t.Errorf("active total: want 2, got %d", activeTotal)
	}
}

func TestGet_TenantScoped(t *testing.T) {
	testDB.Truncate(t)
	svc := newService(t)
	ctx := context.Background()

	tenantA := testDB.FixtureTenant(t, "Tenant A")
	tenantB := testDB.FixtureTenant(t, "Tenant B")

	c, err := svc.Create(ctx, tenantA, client.CreateParams{Name: "Alpha BV", CountryCode: "NL"})
	if err != nil {
		t.Fatalf("creating client: %v", err)
	}

	if _, err := svc.Get(ctx, tenantB, c.ID); !errors.Is(err, client.ErrNotFound) {
		t.Errorf("want ErrNotFound across tenants, got %v", err)
	}
}
