package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/zzpfin/api/internal/services/expense"
)

// ExpenseHandler handles expense CRUD routes.
type ExpenseHandler struct {
	expenseSvc *expense.Service
	logger     *slog.Logger
}

// NewExpenseHandler creates a new expense handler.
func NewExpenseHandler(expenseSvc *expense.Service, logger *slog.Logger) *ExpenseHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExpenseHandler{expenseSvc: expenseSvc, logger: logger}
}

// RegisterRoutes registers all expense API routes on the given mux.
func (h *ExpenseHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/expenses", h.Create)
	mux.HandleFunc("GET /api/v1/expenses", h.List)
	mux.HandleFunc("GET /api/v1/expenses/{id}", h.Get)
	mux.HandleFunc("DELETE /api/v1/expenses/{id}", h.Delete)
}

// Create handles POST /api/v1/expenses.
func (h *ExpenseHandler) Create(w http.ResponseWriter, r *http.Request) {
	tenant, ok := tenantID(w, r)
	if !ok {
		return
	}

	var params expense.CreateParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		writeJSON(w, http.StatusBadRequest, errorJSON{Error: "invalid request body"})
		return
	}

	exp, err := h.expenseSvc.Create(r.Context(), tenant, params)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorJSON{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusCreated, exp)
}

// List handles GET /api/v1/expenses.
// Supports from/to date filters (YYYY-MM-DD) and a category filter.
func (h *ExpenseHandler) List(w http.ResponseWriter, r *http.Request) {
	tenant, ok := tenantID(w, r)
	if !ok {
		return
	}

	filter := expense.ListFilter{Category: r.URL.Query().Get("category")}
	if t, err := time.Parse("2006-01-02", r.URL.Query().Get("from")); err == nil {
		filter.From = t
	}
	if t, err := time.Parse("2006-01-02", r.URL.Query().Get("to")); err == nil {
		filter.To = t
	}
	page, pageSize := parsePagination(r)
	filter.Limit = pageSize
	filter.Offset = (page - 1) * pageSize

	expenses, err := h.expenseSvc.List(r.Context(), tenant, filter)
	if err != nil {
		h.logger.Error("listing expenses failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorJSON{Error: "internal server error"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"expenses": expenses, "page": page})
}

// Get handles GET /api/v1/expenses/{id}.
func (h *ExpenseHandler) Get(w http.ResponseWriter, r *http.Request) {
	tenant, ok := tenantID(w, r)
	if !ok {
		return
	}
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorJSON{Error: "invalid expense ID"})
		return
	}

	exp, err := h.expenseSvc.Get(r.Context(), tenant, id)
	if err != nil {
		if errors.Is(err, expense.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorJSON{Error: "expense not found"})
			return
		}
		h.logger.Error("getting expense failed", "error", err, "expense_id", id)
		writeJSON(w, http.StatusInternalServerError, errorJSON{Error: "internal server error"})
		return
	}
	writeJSON(w, http.StatusOK, exp)
}

// Delete handles DELETE /api/v1/expenses/{id}.
func (h *ExpenseHandler) Delete(w http.ResponseWriter, r *http.Request) {
	tenant, ok := tenantID(w, r)
	if !ok {
		return
	}
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorJSON{Error: "invalid expense ID"})
		return
	}

	if err := h.expenseSvc.Delete(r.Context(), tenant, id); err != nil {
		if errors.Is(err, expense.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorJSON{Error: "expense not found"})
			return
		}
		h.logger.Error("deleting expense failed", "error", err, "expense_id", id)
		writeJSON(w, http.StatusInternalServerError, errorJSON{Error: "internal server error"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
