package api_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

// classificationResponse mirrors the calculate endpoint's response.
type classificationResponse struct {
	VATType     string   `json:"vat_type"`
	VATRate     string   `json:"vat_rate"`
	VATAmount   string   `json:"vat_amount"`
	TotalAmount string   `json:"total_amount"`
	Explanation string   `json:"explanation"`
	DataQuality []string `json:"data_quality_notes"`
}

func TestVATCalculate_DomesticStandard(t *testing.T) {
	testDB.Truncate(t)
	mux := newMux(t)
	tenant := testDB.FixtureTenant(t, "Calc BV")

	body, _ := json.Marshal(map[string]any{
		"amount":  "1000.00",
		"country": "NL",
	})
	req := authedRequest(http.MethodPost, "/api/v1/vat/calculate", bytes.NewReader(body), tenant)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d\nbody: %s", rr.Code, http.StatusOK, rr.Body.String())
	}

	var resp classificationResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.VATType != "standard" {
		t.Errorf("vat_type: got %q, want %q", resp.VATType, "standard")
	}
	if resp.VATRate != "0.21" {
		t.Errorf("vat_rate: got %q, want %q", resp.VATRate, "0.21")
	}
	if resp.VATAmount != "210" {
		t.Errorf("vat_amount: got %q, want %q", resp.VATAmount, "210")
	}
	if resp.TotalAmount != "1210" {
		t.Errorf("total_amount: got %q, want %q", resp.TotalAmount, "1210")
	}
}

func TestVATCalculate_ReverseCharge(t *testing.T) {
	testDB.Truncate(t)
	mux := newMux(t)
	tenant := testDB.FixtureTenant(t, "Calc BV")

	body, _ := json.Marshal(map[string]any{
		"amount":         "500.00",
		"country":        "DE",
		"is_business":    true,
		"has_vat_number": true,
	})
	req := authedRequest(http.MethodPost, "/api/v1/vat/calculate", bytes.NewReader(body), tenant)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d\nbody: %s", rr.Code, http.StatusOK, rr.Body.String())
	}

	var resp classificationResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.VATType != "reverse_charge" {
		t.Errorf("vat_type: got %q, want %q", resp.VATType, "reverse_charge")
	}
	if resp.VATAmount != "0" {
		t.Errorf("vat_amount: got %q, want %q", resp.VATAmount, "0")
	}
	if resp.Explanation == "" {
		t.Error("expected a non-empty explanation")
	}
}

func TestVATCalculate_UnknownCountryFlagged(t *testing.T) {
	testDB.Truncate(t)
	mux := newMux(t)
	tenant := testDB.FixtureTenant(t, "Calc BV")

	body, _ := json.Marshal(map[string]any{
		"amount":  "100.00",
		"country": "Atlantis",
	})
	req := authedRequest(http.MethodPost, "/api/v1/vat/calculate", bytes.NewReader(body), tenant)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d\nbody: %s", rr.Code, http.StatusOK, rr.Body.String())
	}

	var resp classificationResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.DataQuality) == 0 {
		t.Error("expected a data quality note for an unrecognized country")
	}
}

func TestVATCalculate_InvalidBody(t *testing.T) {
	testDB.Truncate(t)
	mux := newMux(t)
	tenant := testDB.FixtureTenant(t, "Calc BV")

	req := authedRequest(http.MethodPost, "/api/v1/vat/calculate",
		bytes.NewReader([]byte("not json")), tenant)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want %d\nbody: %s", rr.Code, http.StatusBadRequest, rr.Body.String())
	}
}

func TestVATCalculate_RequiresTenant(t *testing.T) {
	testDB.Truncate(t)
	mux := newMux(t)

	body, _ := json.Marshal(map[string]any{"amount": "100.00", "country": "NL"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/vat/calculate", bytes.NewReader(body))
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status: got %d, want %d\nbody: %s", rr.Code, http.StatusUnauthorized, rr.Body.String())
	}
}

func TestVATRules(t *testing.T) {
	testDB.Truncate(t)
	mux := newMux(t)
	tenant := testDB.FixtureTenant(t, "Calc BV")

	req := authedRequest(http.MethodGet, "/api/v1/vat/rules", nil, tenant)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d\nbody: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type: got %q, want %q", ct, "application/json")
	}

	var rules map[string]any
	if err := json.NewDecoder(rr.Body).Decode(&rules); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(rules) == 0 {
		t.Error("expected a non-empty rule table")
	}
}
