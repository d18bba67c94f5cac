package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/zzpfin/api/internal/vat"
)

// VATHandler exposes the VAT calculation engine directly, so the UI can
// preview a decision before an invoice or expense is stored.
type VATHandler struct {
	vatSvc *vat.Service
	logger *slog.Logger
}

// NewVATHandler creates a new VAT handler.
func NewVATHandler(vatSvc *vat.Service, logger *slog.Logger) *VATHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &VATHandler{vatSvc: vatSvc, logger: logger}
}

// RegisterRoutes registers the VAT API routes on the given mux.
func (h *VATHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/vat/calculate", h.Calculate)
	mux.HandleFunc("POST /api/v1/vat/validate-number", h.ValidateNumber)
	mux.HandleFunc("GET /api/v1/vat/rules", h.Rules)
}

type calculateRequest struct {
	Amount       decimal.Decimal `json:"amount"`
	VATType      string          `json:"vat_type"`
	Country      string          `json:"country"`
	IsBusiness   bool            `json:"is_business"`
	HasVATNumber bool            `json:"has_vat_number"`
}

// Calculate handles POST /api/v1/vat/calculate.
// Runs one classification without persisting anything.
func (h *VATHandler) Calculate(w http.ResponseWriter, r *http.Request) {
	if _, ok := tenantID(w, r); !ok {
		return
	}

	var req calculateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorJSON{Error: "invalid request body"})
		return
	}

	result := h.vatSvc.Classify(vat.ClassificationInput{
		NetAmount:           req.Amount,
		RequestedType:       req.VATType,
		CounterpartyCountry: req.Country,
		IsBusiness:          req.IsBusiness,
		HasVATNumber:        req.HasVATNumber,
	})

	writeJSON(w, http.StatusOK, result)
}

type validateNumberRequest struct {
	VATNumber string `json:"vat_number"`
}

// ValidateNumber handles POST /api/v1/vat/validate-number.
// Syntactic shape check only; no VIES lookup.
func (h *VATHandler) ValidateNumber(w http.ResponseWriter, r *http.Request) {
	if _, ok := tenantID(w, r); !ok {
		return
	}

	var req validateNumberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorJSON{Error: "invalid request body"})
		return
	}

	writeJSON(w, http.StatusOK, h.vatSvc.CheckNumber(req.VATNumber))
}

// Rules handles GET /api/v1/vat/rules.
// Publishes the current rule table with the rates in effect.
func (h *VATHandler) Rules(w http.ResponseWriter, r *http.Request) {
	if _, ok := tenantID(w, r); !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.vatSvc.Rules())
}
