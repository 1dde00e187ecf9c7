package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/sakif/ml-finops/internal/apperror"
	"github.com/sakif/ml-finops/internal/model"
	"github.com/sakif/ml-finops/internal/service"
)

// CostHandler serves the cost series and the regression forecast.
type CostHandler struct {
	costs  *service.CostService
	logger *slog.Logger
}

// NewCostHandler creates a CostHandler.
func NewCostHandler(costs *service.CostService, logger *slog.Logger) *CostHandler {
	return &CostHandler{costs: costs, logger: logger}
}

// costsResponse bundles both stored series; the dashboard concatenates
// them into one chart.
type costsResponse struct {
	Actual    []model.CostSample `json:"actual"`
	Predicted []model.CostSample `json:"predicted"`
}

// HandleCosts returns the stored cost series.
//
// HTTP: GET /api/costs
func (h *CostHandler) HandleCosts(w http.ResponseWriter, r *http.Request) {
	actual, err := h.costs.History(r.Context())
	if err != nil {
		h.logger.Error("loading cost history failed", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}

	predicted, err := h.costs.Predicted(r.Context())
	if err != nil {
		h.logger.Error("loading predicted costs failed", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, costsResponse{Actual: actual, Predicted: predicted})
}

// HandleForecast returns a regression-based projection of total spend.
//
// HTTP: GET /api/costs/forecast?days=N   (days defaults to 5)
func (h *CostHandler) HandleForecast(w http.ResponseWriter, r *http.Request) {
	days := 0
	if raw := r.URL.Query().Get("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, apperror.ValidationFailed("days", "days must be an integer"))
			return
		}
		days = parsed
	}

	forecast, err := h.costs.Forecast(r.Context(), days)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, forecast)
}
