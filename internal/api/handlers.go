package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/stanhq/svcmarket/internal/jobs"
	"github.com/stanhq/svcmarket/internal/models"
)

// StockReader is the read surface the handlers expose
type StockReader interface {
	Ping() error
	GetAllStocks() ([]*models.Stock, error)
	GetStock(symbol string) (*models.Stock, error)
}

// JobRunner dispatches a forced job run
type JobRunner interface {
	RunJob(ctx context.Context, number int, force bool) (*jobs.Summary, error)
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	db     StockReader
	runner JobRunner
}

// NewHandler creates a new Handler
func NewHandler(db StockReader, runner JobRunner) *Handler {
	return &Handler{
		db:     db,
		runner: runner,
	}
}

// HealthCheck handles GET /health
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	if err := h.db.Ping(); err != nil {
		respondJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unhealthy",
			"error":  err.Error(),
		})
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// GetAllStocks handles GET /stocks
func (h *Handler) GetAllStocks(w http.ResponseWriter, r *http.Request) {
	stocks, err := h.db.GetAllStocks()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, stocks)
}

// GetStock handles GET /stocks/{symbol}
func (h *Handler) GetStock(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	symbol := vars["symbol"]

	stock, err := h.db.GetStock(symbol)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	respondJSON(w, http.StatusOK, stock)
}

// RunJob handles POST /jobs/{number}/run. The run is forced: time gates are
// bypassed, data preconditions are not.
func (h *Handler) RunJob(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	number, err := strconv.Atoi(vars["number"])
	if err != nil || number < jobs.JobReferenceRefresh || number > jobs.JobIntradayCapture {
		http.Error(w, "job number must be 1-4", http.StatusBadRequest)
		return
	}

	summary, err := h.runner.RunJob(r.Context(), number, true)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, summary)
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
