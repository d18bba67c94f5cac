package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/zzpfin/api/internal/btw"
	"github.com/zzpfin/api/internal/icp"
)

// ReportHandler exposes the quarterly ICP declaration and BTW return
// endpoints, including the cross-check between the two.
type ReportHandler struct {
	icpSvc *icp.Service
	btwSvc *btw.Service
	logger *slog.Logger
}

// NewReportHandler creates a new report handler.
func NewReportHandler(icpSvc *icp.Service, btwSvc *btw.Service, logger *slog.Logger) *ReportHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReportHandler{icpSvc: icpSvc, btwSvc: btwSvc, logger: logger}
}

// RegisterRoutes registers all report API routes on the given mux.
func (h *ReportHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/reports/icp", h.BuildICP)
	mux.HandleFunc("GET /api/v1/reports/icp", h.ListICP)
	mux.HandleFunc("GET /api/v1/reports/icp/validate", h.ValidateICP)
	mux.HandleFunc("POST /api/v1/reports/btw", h.BuildBTW)
	mux.HandleFunc("GET /api/v1/reports/btw", h.GetBTW)
	mux.HandleFunc("POST /api/v1/reports/btw/file", h.FileBTW)
}

// BuildICP handles POST /api/v1/reports/icp.
// Rebuilds the ICP declaration lines for a quarter from the stored
// reverse-charge invoices. Safe to call repeatedly.
func (h *ReportHandler) BuildICP(w http.ResponseWriter, r *http.Request) {
	tenant, ok := tenantID(w, r)
	if !ok {
		return
	}
	year, quarter, ok := parseYearQuarter(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorJSON{Error: "year and quarter query parameters are required"})
		return
	}

	lines, err := h.icpSvc.Build(r.Context(), tenant, year, quarter)
	if err != nil {
		h.logger.Error("building ICP declaration failed", "error", err, "year", year, "quarter", quarter)
		writeJSON(w, http.StatusInternalServerError, errorJSON{Error: "internal server error"})
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"year":         year,
		"quarter":      quarter,
		"declarations": lines,
	})
}

// ListICP handles GET /api/v1/reports/icp.
func (h *ReportHandler) ListICP(w http.ResponseWriter, r *http.Request) {
	tenant, ok := tenantID(w, r)
	if !ok {
		return
	}
	year, quarter, ok := parseYearQuarter(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorJSON{Error: "year and quarter query parameters are required"})
		return
	}

	lines, err := h.icpSvc.List(r.Context(), tenant, year, quarter)
	if err != nil {
		h.logger.Error("listing ICP declaration failed", "error", err, "year", year, "quarter", quarter)
		writeJSON(w, http.StatusInternalServerError, errorJSON{Error: "internal server error"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"year":         year,
		"quarter":      quarter,
		"declarations": lines,
	})
}

// ValidateICP handles GET /api/v1/reports/icp/validate.
// Cross-checks the stored ICP lines against rubriek 3b of the stored
// BTW return and reports any discrepancies with fix suggestions.
func (h *ReportHandler) ValidateICP(w http.ResponseWriter, r *http.Request) {
	tenant, ok := tenantID(w, r)
	if !ok {
		return
	}
	year, quarter, ok := parseYearQuarter(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorJSON{Error: "year and quarter query parameters are required"})
		return
	}

	report, err := h.icpSvc.Validate(r.Context(), tenant, year, quarter)
	if err != nil {
		h.logger.Error("validating ICP declaration failed", "error", err, "year", year, "quarter", quarter)
		writeJSON(w, http.StatusInternalServerError, errorJSON{Error: "internal server error"})
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// BuildBTW handles POST /api/v1/reports/btw.
func (h *ReportHandler) BuildBTW(w http.ResponseWriter, r *http.Request) {
	tenant, ok := tenantID(w, r)
	if !ok {
		return
	}
	year, quarter, ok := parseYearQuarter(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorJSON{Error: "year and quarter query parameters are required"})
		return
	}

	ret, err := h.btwSvc.Build(r.Context(), tenant, year, quarter)
	if err != nil {
		h.logger.Error("building VAT return failed", "error", err, "year", year, "quarter", quarter)
		writeJSON(w, http.StatusConflict, errorJSON{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusCreated, ret)
}

// GetBTW handles GET /api/v1/reports/btw.
func (h *ReportHandler) GetBTW(w http.ResponseWriter, r *http.Request) {
	tenant, ok := tenantID(w, r)
	if !ok {
		return
	}
	year, quarter, ok := parseYearQuarter(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorJSON{Error: "year and quarter query parameters are required"})
		return
	}

	ret, err := h.btwSvc.Get(r.Context(), tenant, year, quarter)
	if err != nil {
		if errors.Is(err, btw.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorJSON{Error: "VAT return not found"})
			return
		}
		h.logger.Error("getting VAT return failed", "error", err, "year", year, "quarter", quarter)
		writeJSON(w, http.StatusInternalServerError, errorJSON{Error: "internal server error"})
		return
	}
	writeJSON(w, http.StatusOK, ret)
}

// FileBTW handles POST /api/v1/reports/btw/file.
// Marks the stored return as filed, which freezes it against rebuilds.
func (h *ReportHandler) FileBTW(w http.ResponseWriter, r *http.Request) {
	tenant, ok := tenantID(w, r)
	if !ok {
		return
	}
	year, quarter, ok := parseYearQuarter(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorJSON{Error: "year and quarter query parameters are required"})
		return
	}

	if err := h.btwSvc.MarkFiled(r.Context(), tenant, year, quarter); err != nil {
		if errors.Is(err, btw.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorJSON{Error: "VAT return not found"})
			return
		}
		h.logger.Error("marking VAT return filed failed", "error", err, "year", year, "quarter", quarter)
		writeJSON(w, http.StatusInternalServerError, errorJSON{Error: "internal server error"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "filed"})
}
