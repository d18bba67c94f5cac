package api_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/zzpfin/api/internal/icp"
	"github.com/zzpfin/api/internal/testutil"
)

func TestReports_ICPBuildAndValidate(t *testing.T) {
	testDB.Truncate(t)
	mux := newMux(t)
	tenant := testDB.FixtureTenant(t, "Reports BV")
	german := testDB.FixtureClient(t, tenant, testutil.ClientFixture{
		Name: "Müller GmbH", CountryCode: "DE", IsBusiness: true, VATNumber: "DE123456789",
	})
	dutch := testDB.FixtureClient(t, tenant, testutil.ClientFixture{})

	q1 := time.Date(2025, 2, 14, 0, 0, 0, 0, time.UTC)
	testDB.FixtureInvoice(t, tenant, german, "2025-0001", q1,
		"reverse_charge", "DE", "DE123456789", decimal.NewFromInt(3000))
	testDB.FixtureInvoice(t, tenant, dutch, "2025-0002", q1,
		"standard", "NL", "", decimal.NewFromInt(5000))

	// Build the BTW return first so rubriek 3b exists for the cross-check.
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, authedRequest(http.MethodPost, "/api/v1/reports/btw?year=2025&quarter=1", nil, tenant))
	if rr.Code != http.StatusCreated {
		t.Fatalf("building BTW return: got %d\nbody: %s", rr.Code, rr.Body.String())
	}

	rr = httptest.NewRecorder()
	mux.ServeHTTP(rr, authedRequest(http.MethodPost, "/api/v1/reports/icp?year=2025&quarter=1", nil, tenant))
	if rr.Code != http.StatusCreated {
		t.Fatalf("building ICP declaration: got %d\nbody: %s", rr.Code, rr.Body.String())
	}

	var built struct {
		Declarations []icp.Declaration `json:"declarations"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&built); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(built.Declarations) != 1 {
		t.Fatalf("declarations: got %d, want 1", len(built.Declarations))
	}
	if built.Declarations[0].CustomerVATNumber != "DE123456789" {
		t.Errorf("customer VAT number: got %q, want %q",
			built.Declarations[0].CustomerVATNumber, "DE123456789")
	}

	rr = httptest.NewRecorder()
	mux.ServeHTTP(rr, authedRequest(http.MethodGet, "/api/v1/reports/icp/validate?year=2025&quarter=1", nil, tenant))
	if rr.Code != http.StatusOK {
		t.Fatalf("validating: got %d\nbody: %s", rr.Code, rr.Body.String())
	}

	var report icp.Report
	if err := json.NewDecoder(rr.Body).Decode(&report); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !report.Consistent {
		t.Errorf("expected a consistent quarter, issues: %+v", report.Issues)
	}
	if report.ICPTotal.StringFixed(2) != "3000.00" {
		t.Errorf("ICP total: got %s, want 3000.00", report.ICPTotal)
	}
}

func TestReports_ValidateMissingReturn(t *testing.T) {
	testDB.Truncate(t)
	mux := newMux(t)
	tenant := testDB.FixtureTenant(t, "Reports BV")
	german := testDB.FixtureClient(t, tenant, testutil.ClientFixture{
		Name: "Müller GmbH", CountryCode: "DE", IsBusiness: true, VATNumber: "DE123456789",
	})

	q1 := time.Date(2025, 2, 14, 0, 0, 0, 0, time.UTC)
	testDB.FixtureInvoice(t, tenant, german, "2025-0001", q1,
		"reverse_charge", "DE", "DE123456789", decimal.NewFromInt(3000))

	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, authedRequest(http.MethodPost, "/api/v1/reports/icp?year=2025&quarter=1", nil, tenant))
	if rr.Code != http.StatusCreated {
		t.Fatalf("building ICP declaration: got %d\nbody: %s", rr.Code, rr.Body.String())
	}

	rr = httptest.NewRecorder()
	mux.ServeHTTP(rr, authedRequest(http.MethodGet, "/api/v1/reports/icp/validate?year=2025&quarter=1", nil, tenant))
	if rr.Code != http.StatusOK {
		t.Fatalf("validating: got %d\nbody: %s", rr.Code, rr.Body.String())
	}

	var report icp.Report
	if err := json.NewDecoder(rr.Body).Decode(&report); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if report.Consistent {
		t.Error("expected an inconsistent report without a stored BTW return")
	}
	if len(report.Recommendations) == 0 {
		t.Error("expected at least one recommendation")
	}
}

func TestReports_BadYearQuarter(t *testing.T) {
	testDB.Truncate(t)
	mux := newMux(t)
	tenant := testDB.FixtureTenant(t, "Reports BV")

	for _, target := range []string{
		"/api/v1/reports/icp?year=2025",
		"/api/v1/reports/icp?year=2025&quarter=5",
		"/api/v1/reports/btw?quarter=1",
	} {
		rr := httptest.NewRecorder()
		mux.ServeHTTP(rr, authedRequest(http.MethodGet, target, nil, tenant))
		if rr.Code != http.StatusBadRequest {
			t.Errorf("%s: got %d, want %d", target, rr.Code, http.StatusBadRequest)
		}
	}
}

func TestReports_BTWGetNotFound(t *testing.T) {
	testDB.Truncate(t)
	mux := newMux(t)
	tenant := testDB.FixtureTenant(t, "Reports BV")

	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, authedRequest(http.MethodGet, "/api/v1/reports/btw?year=2025&quarter=1", nil, tenant))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status: got %d, want %d\nbody: %s", rr.Code, http.StatusNotFound, rr.Body.String())
	}
}

func TestReports_FileBTWFreezesRebuild(t *testing.T) {
	testDB.Truncate(t)
	mux := newMux(t)
	tenant := testDB.FixtureTenant(t, "Reports BV")
	dutch := testDB.FixtureClient(t, tenant, testutil.ClientFixture{})

	q1 := time.Date(2025, 2, 14, 0, 0, 0, 0, time.UTC)
	testDB.FixtureInvoice(t, tenant, dutch, "2025-0001", q1,
		"standard", "NL", "", decimal.NewFromInt(5000))

	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, authedRequest(http.MethodPost, "/api/v1/reports/btw?year=2025&quarter=1", nil, tenant))
	if rr.Code != http.StatusCreated {
		t.Fatalf("building BTW return: got %d\nbody: %s", rr.Code, rr.Body.String())
	}

	rr = httptest.NewRecorder()
	mux.ServeHTTP(rr, authedRequest(http.MethodPost, "/api/v1/reports/btw/file?year=2025&quarter=1", nil, tenant))
	if rr.Code != http.StatusOK {
		t.Fatalf("filing: got %d\nbody: %s", rr.Code, rr.Body.String())
	}

	rr = httptest.NewRecorder()
	mux.ServeHTTP(rr, authedRequest(http.MethodPost, "/api/v1/reports/btw?year=2025&quarter=1", nil, tenant))
	if rr.Code != http.StatusConflict {
		t.Fatalf("rebuilding filed return: got %d, want %d\nbody: %s",
			rr.Code, http.StatusConflict, rr.Body.String())
	}
}
