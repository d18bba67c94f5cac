package api_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/zzpfin/api/internal/invoice"
	"github.com/zzpfin/api/internal/testutil"
)

func postJSON(t *testing.T, mux *http.ServeMux, tenant uuid.UUID, target string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	req := authedRequest(http.MethodPost, target, bytes.NewReader(body), tenant)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	return rr
}

func createInvoiceViaAPI(t *testing.T, mux *http.ServeMux, tenant, clientID uuid.UUID) invoice.Invoice {
	t.Helper()
	rr := postJSON(t, mux, tenant, "/api/v1/invoices", map[string]any{
		"client_id":    clientID,
		"invoice_date": time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
		"lines": []map[string]any{
			{"description": "Consulting", "quantity": "10", "unit_price": "100.00"},
		},
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("status: got %d, want %d\nbody: %s", rr.Code, http.StatusCreated, rr.Body.String())
	}
	var inv invoice.Invoice
	if err := json.NewDecoder(rr.Body).Decode(&inv); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return inv
}

func TestInvoiceCreate_Domestic(t *testing.T) {
	testDB.Truncate(t)
	mux := newMux(t)
	tenant := testDB.FixtureTenant(t, "Handler BV")
	clientID := testDB.FixtureClient(t, tenant, testutil.ClientFixture{})

	inv := createInvoiceViaAPI(t, mux, tenant, clientID)

	if inv.InvoiceNumber != "2025-0001" {
		t.Errorf("invoice_number: got %q, want %q", inv.InvoiceNumber, "2025-0001")
	}
	if inv.VATType != "standard" {
		t.Errorf("vat_type: got %q, want %q", inv.VATType, "standard")
	}
	if inv.Subtotal.StringFixed(2) != "1000.00" {
		t.Errorf("subtotal: got %s, want 1000.00", inv.Subtotal)
	}
	if inv.TotalAmount.StringFixed(2) != "1210.00" {
		t.Errorf("total_amount: got %s, want 1210.00", inv.TotalAmount)
	}
}

func TestInvoiceCreate_UnknownClient(t *testing.T) {
	testDB.Truncate(t)
	mux := newMux(t)
	tenant := testDB.FixtureTenant(t, "Handler BV")

	rr := postJSON(t, mux, tenant, "/api/v1/invoices", map[string]any{
		"client_id":    uuid.New(),
		"invoice_date": time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
		"lines": []map[string]any{
			{"description": "Consulting", "quantity": "1", "unit_price": "100.00"},
		},
	})
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status: got %d, want %d\nbody: %s", rr.Code, http.StatusNotFound, rr.Body.String())
	}

	var resp errorResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Error != "client not found" {
		t.Errorf("error message: got %q, want %q", resp.Error, "client not found")
	}
}

func TestInvoiceCreate_NoLines(t *testing.T) {
	testDB.Truncate(t)
	mux := newMux(t)
	tenant := testDB.FixtureTenant(t, "Handler BV")
	clientID := testDB.FixtureClient(t, tenant, testutil.ClientFixture{})

	rr := postJSON(t, mux, tenant, "/api/v1/invoices", map[string]any{
		"client_id":    clientID,
		"invoice_date": time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
	})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want %d\nbody: %s", rr.Code, http.StatusBadRequest, rr.Body.String())
	}
}

func TestInvoiceGet_NotFound(t *testing.T) {
	testDB.Truncate(t)
	mux := newMux(t)
	tenant := testDB.FixtureTenant(t, "Handler BV")

	req := authedRequest(http.MethodGet, "/api/v1/invoices/"+uuid.NewString(), nil, tenant)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("status: got %d, want %d\nbody: %s", rr.Code, http.StatusNotFound, rr.Body.String())
	}
}

func TestInvoiceGet_InvalidID(t *testing.T) {
	testDB.Truncate(t)
	mux := newMux(t)
	tenant := testDB.FixtureTenant(t, "Handler BV")

	req := authedRequest(http.MethodGet, "/api/v1/invoices/not-a-uuid", nil, tenant)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want %d\nbody: %s", rr.Code, http.StatusBadRequest, rr.Body.String())
	}
}

func TestInvoiceStatusTransition(t *testing.T) {
	testDB.Truncate(t)
	mux := newMux(t)
	tenant := testDB.FixtureTenant(t, "Handler BV")
	clientID := testDB.FixtureClient(t, tenant, testutil.ClientFixture{})

	inv := createInvoiceViaAPI(t, mux, tenant, clientID)

	rr := postJSON(t, mux, tenant, "/api/v1/invoices/"+inv.ID.String()+"/status",
		map[string]string{"status": "sent"})
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d\nbody: %s", rr.Code, http.StatusOK, rr.Body.String())
	}

	// draft -> paid is not a legal transition.
	inv2 := createInvoiceViaAPI(t, mux, tenant, clientID)
	rr = postJSON(t, mux, tenant, "/api/v1/invoices/"+inv2.ID.String()+"/status",
		map[string]string{"status": "paid"})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want %d\nbody: %s", rr.Code, http.StatusBadRequest, rr.Body.String())
	}
}

func TestInvoicePayment_FullMarksPaid(t *testing.T) {
	testDB.Truncate(t)
	mux := newMux(t)
	tenant := testDB.FixtureTenant(t, "Handler BV")
	clientID := testDB.FixtureClient(t, tenant, testutil.ClientFixture{})

	inv := createInvoiceViaAPI(t, mux, tenant, clientID)
	rr := postJSON(t, mux, tenant, "/api/v1/invoices/"+inv.ID.String()+"/status",
		map[string]string{"status": "sent"})
	if rr.Code != http.StatusOK {
		t.Fatalf("marking sent: got %d\nbody: %s", rr.Code, rr.Body.String())
	}

	rr = postJSON(t, mux, tenant, "/api/v1/invoices/"+inv.ID.String()+"/payments",
		map[string]string{"amount": "1210.00"})
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d\nbody: %s", rr.Code, http.StatusOK, rr.Body.String())
	}

	var paid invoice.Invoice
	if err := json.NewDecoder(rr.Body).Decode(&paid); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if paid.Status != "paid" {
		t.Errorf("status: got %q, want %q", paid.Status, "paid")
	}
}

func TestInvoiceDelete_DraftOnly(t *testing.T) {
	testDB.Truncate(t)
	mux := newMux(t)
	tenant := testDB.FixtureTenant(t, "Handler BV")
	clientID := testDB.FixtureClient(t, tenant, testutil.ClientFixture{})

	inv := createInvoiceViaAPI(t, mux, tenant, clientID)

	req := authedRequest(http.MethodDelete, "/api/v1/invoices/"+inv.ID.String(), nil, tenant)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("status: got %d, want %d\nbody: %s", rr.Code, http.StatusNoContent, rr.Body.String())
	}

	// A sent invoice refuses deletion.
	inv2 := createInvoiceViaAPI(t, mux, tenant, clientID)
	postJSON(t, mux, tenant, "/api/v1/invoices/"+inv2.ID.String()+"/status",
		map[string]string{"status": "sent"})

	req = authedRequest(http.MethodDelete, "/api/v1/invoices/"+inv2.ID.String(), nil, tenant)
	rr = httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusConflict {
		t.Fatalf("status: got %d, want %d\nbody: %s", rr.Code, http.StatusConflict, rr.Body.String())
	}
}

func TestInvoiceBulk_PartialSuccess(t *testing.T) {
	testDB.Truncate(t)
	mux := newMux(t)
	tenant := testDB.FixtureTenant(t, "Handler BV")
	clientID := testDB.FixtureClient(t, tenant, testutil.ClientFixture{})

	rr := postJSON(t, mux, tenant, "/api/v1/invoices/bulk", []map[string]any{
		{
			"client_id":    clientID,
			"invoice_date": time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
			"lines": []map[string]any{
				{"description": "Sprint 1", "quantity": "1", "unit_price": "2500.00"},
			},
		},
		{
			"client_id":    uuid.New(),
			"invoice_date": time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
			"lines": []map[string]any{
				{"description": "Sprint 2", "quantity": "1", "unit_price": "2500.00"},
			},
		},
	})
	if rr.Code != http.StatusMultiStatus {
		t.Fatalf("status: got %d, want %d\nbody: %s", rr.Code, http.StatusMultiStatus, rr.Body.String())
	}

	var result invoice.BulkResult
	if err := json.NewDecoder(rr.Body).Decode(&result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(result.Created) != 1 {
		t.Errorf("created: got %d, want 1", len(result.Created))
	}
	if len(result.Failed) != 1 {
		t.Errorf("failed: got %d, want 1", len(result.Failed))
	}
}

func TestInvoiceList_StatusFilter(t *testing.T) {
	testDB.Truncate(t)
	mux := newMux(t)
	tenant := testDB.FixtureTenant(t, "Handler BV")
	clientID := testDB.FixtureClient(t, tenant, testutil.ClientFixture{})

	inv := createInvoiceViaAPI(t, mux, tenant, clientID)
	createInvoiceViaAPI(t, mux, tenant, clientID)
	postJSON(t, mux, tenant, "/api/v1/invoices/"+inv.ID.String()+"/status",
		map[string]string{"status": "sent"})

	req := authedRequest(http.MethodGet, "/api/v1/invoices?status=sent", nil, tenant)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d\nbody: %s", rr.Code, http.StatusOK, rr.Body.String())
	}

	var resp struct {
		Invoices []invoice.Invoice `json:"invoices"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Invoices) != 1 {
		t.Fatalf("invoices: got %d, want 1", len(resp.Invoices))
	}
	if resp.Invoices[0].ID != inv.ID {
		t.Errorf("listed wrong invoice: got %s, want %s", resp.Invoices[0].ID, inv.ID)
	}
}
