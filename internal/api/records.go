package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/dennisdiepolder/callcrm/backend/internal/metrics"
	"github.com/dennisdiepolder/callcrm/backend/internal/pool"
	"github.com/dennisdiepolder/callcrm/backend/internal/types"
	"github.com/rs/zerolog"
)

// RecordsHandler provides REST endpoints for the record pool
type RecordsHandler struct {
	pool   *pool.Pool
	logger zerolog.Logger
}

// NewRecordsHandler creates a new RecordsHandler
func NewRecordsHandler(p *pool.Pool, logger zerolog.Logger) *RecordsHandler {
	return &RecordsHandler{
		pool:   p,
		logger: logger.With().Str("component", "records_handler").Logger(),
	}
}

// ImportRequest is the bulk import payload
type ImportRequest struct {
	Category types.Category      `json:"category"`
	Records  []types.RecordInput `json:"records"`
}

// Import handles POST /api/records/import (manager only)
func (h *RecordsHandler) Import(w http.ResponseWriter, r *http.Request) {
	var req ImportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	ids, err := h.pool.Import(req.Category, req.Records)
	if err != nil {
		writeError(w, err)
		return
	}

	metrics.Get().RecordImported(len(ids))
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"imported": len(ids),
		"ids":      ids,
	})
}

// FetchAvailable handles GET /api/records/available?category=&limit=
func (h *RecordsHandler) FetchAvailable(w http.ResponseWriter, r *http.Request) {
	category := types.Category(r.URL.Query().Get("category"))

	limit := 10
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid limit"})
			return
		}
		limit = parsed
	}

	records, err := h.pool.FetchAvailable(category, limit)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, records)
}

// Counts handles GET /api/records/counts
func (h *RecordsHandler) Counts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.pool.CountAvailable())
}
