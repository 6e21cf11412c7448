package handlers

import (
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/dvloznov/expense-tracker/internal/api/middleware"
)

// AnalysisHandler serves the spending analysis reports.
type AnalysisHandler struct {
	reporter Reporter
	log      zerolog.Logger
}

// NewAnalysisHandler creates a new analysis handler.
func NewAnalysisHandler(reporter Reporter, log zerolog.Logger) *AnalysisHandler {
	return &AnalysisHandler{reporter: reporter, log: log}
}

// SpendingByCategory handles GET /analysis/spending-by-category.
func (h *AnalysisHandler) SpendingByCategory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	report, err := h.reporter.SpendingByCategory(r.Context(), q.Get("start_date"), q.Get("end_date"))
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to compute spending by category")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to compute spending by category")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, report)
}

// MonthlyTrend handles GET /analysis/monthly-trend.
func (h *AnalysisHandler) MonthlyTrend(w http.ResponseWriter, r *http.Request) {
	report, err := h.reporter.MonthlyTrend(r.Context(), r.URL.Query().Get("year"))
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to compute monthly trend")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to compute monthly trend")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, report)
}

// TopMerchants handles GET /analysis/top-merchants.
func (h *AnalysisHandler) TopMerchants(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit := 0
	if s := q.Get("limit"); s != "" {
		parsed, err := strconv.Atoi(s)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = parsed
	}

	report, err := h.reporter.TopMerchants(r.Context(), q.Get("start_date"), q.Get("end_date"), limit)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to compute top merchants")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to compute top merchants")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, report)
}
