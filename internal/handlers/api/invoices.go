package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/zzpfin/api/internal/invoice"
)

// InvoiceHandler handles invoice routes.
type InvoiceHandler struct {
	invoiceSvc *invoice.Service
	logger     *slog.Logger
}

// NewInvoiceHandler creates a new invoice handler.
func NewInvoiceHandler(invoiceSvc *invoice.Service, logger *slog.Logger) *InvoiceHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &InvoiceHandler{invoiceSvc: invoiceSvc, logger: logger}
}

// RegisterRoutes registers all invoice API routes on the given mux.
func (h *InvoiceHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/invoices", h.Create)
	mux.HandleFunc("POST /api/v1/invoices/bulk", h.CreateBulk)
	mux.HandleFunc("GET /api/v1/invoices", h.List)
	mux.HandleFunc("GET /api/v1/invoices/{id}", h.Get)
	mux.HandleFunc("POST /api/v1/invoices/{id}/status", h.UpdateStatus)
	mux.HandleFunc("POST /api/v1/invoices/{id}/payments", h.RegisterPayment)
	mux.HandleFunc("DELETE /api/v1/invoices/{id}", h.Delete)
}

// Create handles POST /api/v1/invoices.
func (h *InvoiceHandler) Create(w http.ResponseWriter, r *http.Request) {
	tenant, ok := tenantID(w, r)
	if !ok {
		return
	}

	var params invoice.CreateParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		writeJSON(w, http.StatusBadRequest, errorJSON{Error: "invalid request body"})
		return
	}

	inv, err := h.invoiceSvc.Create(r.Context(), tenant, params)
	if err != nil {
		switch {
		case errors.Is(err, invoice.ErrClientNotFound):
			writeJSON(w, http.StatusNotFound, errorJSON{Error: "client not found"})
		case errors.Is(err, invoice.ErrNoLines):
			writeJSON(w, http.StatusBadRequest, errorJSON{Error: "invoice needs at least one line item"})
		case errors.Is(err, invoice.ErrTimeEntryUnavailable):
			writeJSON(w, http.StatusConflict, errorJSON{Error: "time entry not billable or already invoiced"})
		default:
			h.logger.Error("creating invoice failed", "error", err)
			writeJSON(w, http.StatusInternalServerError, errorJSON{Error: "internal server error"})
		}
		return
	}
	writeJSON(w, http.StatusCreated, inv)
}

// CreateBulk handles POST /api/v1/invoices/bulk.
// Partial success: the response lists created invoices and failures
// side by side with status 207.
func (h *InvoiceHandler) CreateBulk(w http.ResponseWriter, r *http.Request) {
	tenant, ok := tenantID(w, r)
	if !ok {
		return
	}

	var batch []invoice.CreateParams
	if err := json.NewDecoder(r.Body).Decode(&batch); err != nil {
		writeJSON(w, http.StatusBadRequest, errorJSON{Error: "invalid request body"})
		return
	}
	if len(batch) == 0 {
		writeJSON(w, http.StatusBadRequest, errorJSON{Error: "empty batch"})
		return
	}

	result := h.invoiceSvc.CreateBulk(r.Context(), tenant, batch)

	status := http.StatusCreated
	if len(result.Failed) > 0 {
		status = http.StatusMultiStatus
	}
	writeJSON(w, status, result)
}

// List handles GET /api/v1/invoices.
func (h *InvoiceHandler) List(w http.ResponseWriter, r *http.Request) {
	tenant, ok := tenantID(w, r)
	if !ok {
		return
	}

	filter := invoice.ListFilter{Status: r.URL.Query().Get("status")}
	if y, err := strconv.Atoi(r.URL.Query().Get("year")); err == nil {
		filter.Year = y
	}
	page, pageSize := parsePagination(r)
	filter.Limit = pageSize
	filter.Offset = (page - 1) * pageSize

	invoices, err := h.invoiceSvc.List(r.Context(), tenant, filter)
	if err != nil {
		h.logger.Error("listing invoices failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorJSON{Error: "internal server error"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"invoices": invoices, "page": page})
}

// Get handles GET /api/v1/invoices/{id}.
func (h *InvoiceHandler) Get(w http.ResponseWriter, r *http.Request) {
	tenant, ok := tenantID(w, r)
	if !ok {
		return
	}
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorJSON{Error: "invalid invoice ID"})
		return
	}

	inv, err := h.invoiceSvc.Get(r.Context(), tenant, id)
	if err != nil {
		if errors.Is(err, invoice.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorJSON{Error: "invoice not found"})
			return
		}
		h.logger.Error("getting invoice failed", "error", err, "invoice_id", id)
		writeJSON(w, http.StatusInternalServerError, errorJSON{Error: "internal server error"})
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

type statusRequest struct {
	Status string `json:"status"`
}

// UpdateStatus handles POST /api/v1/invoices/{id}/status.
func (h *InvoiceHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	tenant, ok := tenantID(w, r)
	if !ok {
		return
	}
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorJSON{Error: "invalid invoice ID"})
		return
	}

	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorJSON{Error: "invalid request body"})
		return
	}

	inv, err := h.invoiceSvc.UpdateStatus(r.Context(), tenant, id, req.Status)
	if err != nil {
		switch {
		case errors.Is(err, invoice.ErrNotFound):
			writeJSON(w, http.StatusNotFound, errorJSON{Error: "invoice not found"})
		case errors.Is(err, invoice.ErrInvalidStatus):
			writeJSON(w, http.StatusBadRequest, errorJSON{Error: err.Error()})
		default:
			h.logger.Error("updating invoice status failed", "error", err, "invoice_id", id)
			writeJSON(w, http.StatusInternalServerError, errorJSON{Error: "internal server error"})
		}
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

type paymentRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// RegisterPayment handles POST /api/v1/invoices/{id}/payments.
func (h *InvoiceHandler) RegisterPayment(w http.ResponseWriter, r *http.Request) {
	tenant, ok := tenantID(w, r)
	if !ok {
		return
	}
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorJSON{Error: "invalid invoice ID"})
		return
	}

	var req paymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorJSON{Error: "invalid request body"})
		return
	}

	inv, err := h.invoiceSvc.RegisterPayment(r.Context(), tenant, id, req.Amount)
	if err != nil {
		switch {
		case errors.Is(err, invoice.ErrNotFound):
			writeJSON(w, http.StatusNotFound, errorJSON{Error: "invoice not found"})
		default:
			writeJSON(w, http.StatusBadRequest, errorJSON{Error: err.Error()})
		}
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

// Delete handles DELETE /api/v1/invoices/{id}.
func (h *InvoiceHandler) Delete(w http.ResponseWriter, r *http.Request) {
	tenant, ok := tenantID(w, r)
	if !ok {
		return
	}
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorJSON{Error: "invalid invoice ID"})
		return
	}

	if err := h.invoiceSvc.Delete(r.Context(), tenant, id); err != nil {
		switch {
		case errors.Is(err, invoice.ErrNotFound):
			writeJSON(w, http.StatusNotFound, errorJSON{Error: "invoice not found"})
		case errors.Is(err, invoice.ErrNotDraft):
			writeJSON(w, http.StatusConflict, errorJSON{Error: "only draft invoices can be deleted"})
		default:
			h.logger.Error("deleting invoice failed", "error", err, "invoice_id", id)
			writeJSON(w, http.StatusInternalServerError, errorJSON{Error: "internal server error"})
		}
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
