package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/dennisdiepolder/callcrm/backend/internal/performance"
	"github.com/dennisdiepolder/callcrm/backend/internal/storage"
	"github.com/dennisdiepolder/callcrm/backend/internal/types"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// PerformanceHandler provides REST endpoints for team roll-ups and reports
type PerformanceHandler struct {
	aggregator *performance.Aggregator
	store      storage.Store
	logger     zerolog.Logger
}

// NewPerformanceHandler creates a new PerformanceHandler
func NewPerformanceHandler(aggregator *performance.Aggregator, store storage.Store, logger zerolog.Logger) *PerformanceHandler {
	return &PerformanceHandler{
		aggregator: aggregator,
		store:      store,
		logger:     logger.With().Str("component", "performance_handler").Logger(),
	}
}

// TargetRequest sets an agent's daily call target
type TargetRequest struct {
	Target int `json:"target"`
}

// TeamSnapshot handles GET /api/performance/team
func (h *PerformanceHandler) TeamSnapshot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.aggregator.TeamSnapshot())
}

// SetTarget handles PUT /api/performance/targets/{agentId} (manager only)
func (h *PerformanceHandler) SetTarget(w http.ResponseWriter, r *http.Request) {
	agentID := chi.URLParam(r, "agentId")

	var req TargetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	if err := h.aggregator.SetAgentTarget(agentID, req.Target); err != nil {
		writeError(w, err)
		return
	}

	h.logger.Info().Str("agent_id", agentID).Int("target", req.Target).Msg("daily call target updated")
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"agentId": agentID,
		"target":  req.Target,
	})
}

// Report handles GET /api/reports (manager only). Accepts either a named
// range (?range=this-week) or explicit bounds (?start=&end= as YYYY-MM-DD).
func (h *PerformanceHandler) Report(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	var (
		start, end time.Time
		err        error
	)
	if name := query.Get("range"); name != "" {
		start, end, err = h.aggregator.ResolveRange(name)
	} else if query.Get("start") != "" || query.Get("end") != "" {
		start, end, err = h.aggregator.ResolveCustomRange(query.Get("start"), query.Get("end"))
	} else {
		start, end, err = h.aggregator.ResolveRange(performance.RangeToday)
	}
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, h.aggregator.ReportBetween(start, end))
}

// HistoryByDate handles GET /api/reports/history/{dateKey} (manager only).
// Reads persisted completions, which survive restarts where the in-memory
// assignment set does not.
func (h *PerformanceHandler) HistoryByDate(w http.ResponseWriter, r *http.Request) {
	dateKey := chi.URLParam(r, "dateKey")
	if _, err := time.Parse("2006-01-02", dateKey); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "date must be YYYY-MM-DD"})
		return
	}

	records, err := h.store.GetAssignmentsByDate(dateKey)
	if err != nil {
		h.logger.Error().Err(err).Str("date", dateKey).Msg("failed to get assignment history")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to retrieve history"})
		return
	}

	if records == nil {
		records = []types.AssignmentRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}
