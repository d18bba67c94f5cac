package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/zzpfin/api/internal/services/client"
)

// ClientHandler handles client CRUD routes.
type ClientHandler struct {
	clientSvc *client.Service
	logger    *slog.Logger
}

// NewClientHandler creates a new client handler.
func NewClientHandler(clientSvc *client.Service, logger *slog.Logger) *ClientHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ClientHandler{clientSvc: clientSvc, logger: logger}
}

// RegisterRoutes registers all client API routes on the given mux.
func (h *ClientHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/clients", h.Create)
	mux.HandleFunc("GET /api/v1/clients", h.List)
	mux.HandleFunc("GET /api/v1/clients/{id}", h.Get)
	mux.HandleFunc("PATCH /api/v1/clients/{id}", h.Update)
	mux.HandleFunc("DELETE /api/v1/clients/{id}", h.Deactivate)
}

// Create handles POST /api/v1/clients.
func (h *ClientHandler) Create(w http.ResponseWriter, r *http.Request) {
	tenant, ok := tenantID(w, r)
	if !ok {
		return
	}

	var params client.CreateParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		writeJSON(w, http.StatusBadRequest, errorJSON{Error: "invalid request body"})
		return
	}

	c, err := h.clientSvc.Create(r.Context(), tenant, params)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorJSON{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// List handles GET /api/v1/clients.
func (h *ClientHandler) List(w http.ResponseWriter, r *http.Request) {
	tenant, ok := tenantID(w, r)
	if !ok {
		return
	}

	page, pageSize := parsePagination(r)
	activeOnly := r.URL.Query().Get("active") == "true"

	clients, total, err := h.clientSvc.List(r.Context(), tenant, page, pageSize, activeOnly)
	if err != nil {
		h.logger.Error("listing clients failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorJSON{Error: "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"clients": clients,
		"total":   total,
		"page":    page,
	})
}

// Get handles GET /api/v1/clients/{id}.
func (h *ClientHandler) Get(w http.ResponseWriter, r *http.Request) {
	tenant, ok := tenantID(w, r)
	if !ok {
		return
	}
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorJSON{Error: "invalid client ID"})
		return
	}

	c, err := h.clientSvc.Get(r.Context(), tenant, id)
	if err != nil {
		if errors.Is(err, client.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorJSON{Error: "client not found"})
			return
		}
		h.logger.Error("getting client failed", "error", err, "client_id", id)
		writeJSON(w, http.StatusInternalServerError, errorJSON{Error: "internal server error"})
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// Update handles PATCH /api/v1/clients/{id}.
func (h *ClientHandler) Update(w http.ResponseWriter, r *http.Request) {
	tenant, ok := tenantID(w, r)
	if !ok {
		return
	}
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorJSON{Error: "invalid client ID"})
		return
	}

	var params client.UpdateParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		writeJSON(w, http.StatusBadRequest, errorJSON{Error: "invalid request body"})
		return
	}

	c, err := h.clientSvc.Update(r.Context(), tenant, id, params)
	if err != nil {
		if errors.Is(err, client.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorJSON{Error: "client not found"})
			return
		}
		h.logger.Error("updating client failed", "error", err, "client_id", id)
		writeJSON(w, http.StatusInternalServerError, errorJSON{Error: "internal server error"})
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// Deactivate handles DELETE /api/v1/clients/{id}.
// Clients are never hard-deleted: invoices reference them.
func (h *ClientHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	tenant, ok := tenantID(w, r)
	if !ok {
		return
	}
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorJSON{Error: "invalid client ID"})
		return
	}

	if err := h.clientSvc.Deactivate(r.Context(), tenant, id); err != nil {
		if errors.Is(err, client.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorJSON{Error: "client not found"})
			return
		}
		h.logger.Error("deactivating client failed", "error", err, "client_id", id)
		writeJSON(w, http.StatusInternalServerError, errorJSON{Error: "internal server error"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
