package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/zzpfin/api/internal/middleware"
)

// errorJSON is the uniform error response body.
type errorJSON struct {
	Error string `json:"error"`
}

// writeJSON encodes v as the response body with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// tenantID pulls the authenticated tenant out of the request context.
// The auth middleware guarantees it is present on protected routes; a
// miss means the route was wired without RequireAuth, which is a bug.
func tenantID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, ok := middleware.TenantFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorJSON{Error: "authentication required"})
		return uuid.Nil, false
	}
	return id, true
}

// parsePagination reads page/page_size query parameters with defaults.
func parsePagination(r *http.Request) (page, pageSize int) {
	page = 1
	pageSize = 20
	if v, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && v > 0 {
		page = v
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("page_size")); err == nil && v > 0 {
		pageSize = v
	}
	return page, pageSize
}

// parseYearQuarter reads year/quarter query parameters.
func parseYearQuarter(r *http.Request) (year, quarter int, ok bool) {
	year, err := strconv.Atoi(r.URL.Query().Get("year"))
	if err != nil || year < 2000 || year > 2200 {
		return 0, 0, false
	}
	quarter, err = strconv.Atoi(r.URL.Query().Get("quarter"))
	if err != nil || quarter < 1 || quarter > 4 {
		return 0, 0, false
	}
	return year, quarter, true
}
