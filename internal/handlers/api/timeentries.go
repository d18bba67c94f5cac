package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/zzpfin/api/internal/services/timeentry"
)

// TimeEntryHandler handles time tracking routes.
type TimeEntryHandler struct {
	entrySvc *timeentry.Service
	logger   *slog.Logger
}

// NewTimeEntryHandler creates a new time entry handler.
func NewTimeEntryHandler(entrySvc *timeentry.Service, logger *slog.Logger) *TimeEntryHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &TimeEntryHandler{entrySvc: entrySvc, logger: logger}
}

// RegisterRoutes registers all time entry API routes on the given mux.
func (h *TimeEntryHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/time-entries", h.Create)
	mux.HandleFunc("GET /api/v1/time-entries", h.List)
	mux.HandleFunc("GET /api/v1/time-entries/unbilled", h.Unbilled)
	mux.HandleFunc("GET /api/v1/time-entries/{id}", h.Get)
	mux.HandleFunc("PATCH /api/v1/time-entries/{id}", h.Update)
	mux.HandleFunc("DELETE /api/v1/time-entries/{id}", h.Delete)
}

// Create handles POST /api/v1/time-entries.
func (h *TimeEntryHandler) Create(w http.ResponseWriter, r *http.Request) {
	tenant, ok := tenantID(w, r)
	if !ok {
		return
	}

	var params timeentry.CreateParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		writeJSON(w, http.StatusBadRequest, errorJSON{Error: "invalid request body"})
		return
	}

	entry, err := h.entrySvc.Create(r.Context(), tenant, params)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorJSON{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

// List handles GET /api/v1/time-entries.
func (h *TimeEntryHandler) List(w http.ResponseWriter, r *http.Request) {
	tenant, ok := tenantID(w, r)
	if !ok {
		return
	}

	var filter timeentry.ListFilter
	if id, err := uuid.Parse(r.URL.Query().Get("client_id")); err == nil {
		filter.ClientID = id
	}
	if t, err := time.Parse("2006-01-02", r.URL.Query().Get("from")); err == nil {
		filter.From = t
	}
	if t, err := time.Parse("2006-01-02", r.URL.Query().Get("to")); err == nil {
		filter.To = t
	}
	filter.UninvoicedOnly = r.URL.Query().Get("uninvoiced") == "true"
	page, pageSize := parsePagination(r)
	filter.Limit = pageSize
	filter.Offset = (page - 1) * pageSize

	entries, err := h.entrySvc.List(r.Context(), tenant, filter)
	if err != nil {
		h.logger.Error("listing time entries failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorJSON{Error: "internal server error"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"time_entries": entries, "page": page})
}

// Unbilled handles GET /api/v1/time-entries/unbilled.
// Per-client summary of billable hours not yet on an invoice.
func (h *TimeEntryHandler) Unbilled(w http.ResponseWriter, r *http.Request) {
	tenant, ok := tenantID(w, r)
	if !ok {
		return
	}

	summary, err := h.entrySvc.Unbilled(r.Context(), tenant)
	if err != nil {
		h.logger.Error("summarizing unbilled work failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorJSON{Error: "internal server error"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"clients": summary})
}

// Get handles GET /api/v1/time-entries/{id}.
func (h *TimeEntryHandler) Get(w http.ResponseWriter, r *http.Request) {
	tenant, ok := tenantID(w, r)
	if !ok {
		return
	}
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorJSON{Error: "invalid time entry ID"})
		return
	}

	entry, err := h.entrySvc.Get(r.Context(), tenant, id)
	if err != nil {
		if errors.Is(err, timeentry.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorJSON{Error: "time entry not found"})
			return
		}
		h.logger.Error("getting time entry failed", "error", err, "entry_id", id)
		writeJSON(w, http.StatusInternalServerError, errorJSON{Error: "internal server error"})
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// Update handles PATCH /api/v1/time-entries/{id}.
func (h *TimeEntryHandler) Update(w http.ResponseWriter, r *http.Request) {
	tenant, ok := tenantID(w, r)
	if !ok {
		return
	}
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorJSON{Error: "invalid time entry ID"})
		return
	}

	var params timeentry.CreateParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		writeJSON(w, http.StatusBadRequest, errorJSON{Error: "invalid request body"})
		return
	}

	entry, err := h.entrySvc.Update(r.Context(), tenant, id, params)
	if err != nil {
		switch {
		case errors.Is(err, timeentry.ErrNotFound):
			writeJSON(w, http.StatusNotFound, errorJSON{Error: "time entry not found"})
		case errors.Is(err, timeentry.ErrInvoiced):
			writeJSON(w, http.StatusConflict, errorJSON{Error: "time entry is already invoiced"})
		default:
			writeJSON(w, http.StatusBadRequest, errorJSON{Error: err.Error()})
		}
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// Delete handles DELETE /api/v1/time-entries/{id}.
func (h *TimeEntryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	tenant, ok := tenantID(w, r)
	if !ok {
		return
	}
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorJSON{Error: "invalid time entry ID"})
		return
	}

	if err := h.entrySvc.Delete(r.Context(), tenant, id); err != nil {
		switch {
		case errors.Is(err, timeentry.ErrNotFound):
			writeJSON(w, http.StatusNotFound, errorJSON{Error: "time entry not found"})
		case errors.Is(err, timeentry.ErrInvoiced):
			writeJSON(w, http.StatusConflict, errorJSON{Error: "time entry is already invoiced"})
		default:
			h.logger.Error("deleting time entry failed", "error", err, "entry_id", id)
			writeJSON(w, http.StatusInternalServerError, errorJSON{Error: "internal server error"})
		}
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
