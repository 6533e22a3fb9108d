package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/invoicepipe/invoicepipe/internal/logging"
	"github.com/invoicepipe/invoicepipe/internal/store"
)

// defaultTopN is the customer count returned when the query omits "top".
const defaultTopN = 5

// maxTopN caps how many customers a single request may ask for.
const maxTopN = 100

// handleHealth reports database reachability.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.reports.Ping(r.Context()); err != nil {
		s.respondError(w, r, err, http.StatusServiceUnavailable)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleTopCustomers serves GET /api/sales/customers?top=N.
func (s *Server) handleTopCustomers(w http.ResponseWriter, r *http.Request) {
	top := parseIntParam(r, "top", defaultTopN)
	if top > maxTopN {
		top = maxTopN
	}

	result, err := s.reports.TopCustomers(r.Context(), top)
	if err != nil {
		s.respondError(w, r, err, http.StatusInternalServerError)
		return
	}
	if result == nil {
		result = []store.CustomerSales{}
	}

	respondJSON(w, http.StatusOK, result)
}

// handleSalesByPeriod serves
// GET /api/sales/time?period=monthly|weekly&start=YYYY-MM-DD&end=YYYY-MM-DD.
func (s *Server) handleSalesByPeriod(w http.ResponseWriter, r *http.Request) {
	period := r.URL.Query().Get("period")
	if period == "" {
		period = "monthly"
	}
	if period != "monthly" && period != "weekly" {
		respondBadRequest(w, "period must be monthly or weekly")
		return
	}

	start, ok := parseDateParam(r, "start")
	if !ok {
		respondBadRequest(w, "start must be a YYYY-MM-DD date")
		return
	}
	end, ok := parseDateParam(r, "end")
	if !ok {
		respondBadRequest(w, "end must be a YYYY-MM-DD date")
		return
	}
	if end.Before(start) {
		respondBadRequest(w, "end must not be before start")
		return
	}

	result, err := s.reports.SalesByPeriod(r.Context(), period, start, end)
	if err != nil {
		s.respondError(w, r, err, http.StatusInternalServerError)
		return
	}
	if result == nil {
		result = []store.PeriodSales{}
	}

	respondJSON(w, http.StatusOK, result)
}

// parseIntParam parses an integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 1 {
		return defaultVal
	}
	return i
}

// parseDateParam parses a required YYYY-MM-DD query parameter.
func parseDateParam(r *http.Request, name string) (time.Time, bool) {
	val := r.URL.Query().Get(name)
	if val == "" {
		return time.Time{}, false
	}
	t, err := time.Parse("2006-01-02", val)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// errorResponse is the JSON structure for API error responses.
type errorResponse struct {
	Error string `json:"error"`
}

// respondJSON writes a JSON response with the given status.
func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// respondBadRequest rejects a malformed request with a client-facing message.
func respondBadRequest(w http.ResponseWriter, msg string) {
	respondJSON(w, http.StatusBadRequest, errorResponse{Error: msg})
}

// respondError logs the technical error server-side and returns a generic
// message; internals never leak to API consumers.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error, status int) {
	logging.FromContext(r.Context()).Error("request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
	)
	respondJSON(w, status, errorResponse{Error: http.StatusText(status)})
}
