package api

import (
	"net/http"

	"github.com/dennisdiepolder/callcrm/backend/internal/progress"
	"github.com/dennisdiepolder/callcrm/backend/internal/storage"
	"github.com/dennisdiepolder/callcrm/backend/internal/types"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// ProgressHandler provides REST endpoints for daily progress
type ProgressHandler struct {
	tracker *progress.Tracker
	store   storage.Store
	logger  zerolog.Logger
}

// NewProgressHandler creates a new ProgressHandler
func NewProgressHandler(tracker *progress.Tracker, store storage.Store, logger zerolog.Logger) *ProgressHandler {
	return &ProgressHandler{
		tracker: tracker,
		store:   store,
		logger:  logger.With().Str("component", "progress_handler").Logger(),
	}
}

// GetMine handles GET /api/progress, the caller's own entry for today.
// Reading progress doubles as a client-visible reset check.
func (h *ProgressHandler) GetMine(w http.ResponseWriter, r *http.Request) {
	claims, ok := identity(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.tracker.GetProgress(claims.AgentID))
}

// GetAll handles GET /api/progress/all (manager only)
func (h *ProgressHandler) GetAll(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.tracker.All())
}

// GetAgent handles GET /api/progress/{agentId} (manager only)
func (h *ProgressHandler) GetAgent(w http.ResponseWriter, r *http.Request) {
	agentID := chi.URLParam(r, "agentId")
	if agentID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "agentId is required"})
		return
	}
	writeJSON(w, http.StatusOK, h.tracker.GetProgress(agentID))
}

// GetHistory returns persisted per-day progress for the given agent
// GET /api/progress/{agentId}/history
func (h *ProgressHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	agentID := chi.URLParam(r, "agentId")
	if agentID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "agentId is required"})
		return
	}

	records, err := h.store.GetAgentDailyProgress(agentID)
	if err != nil {
		h.logger.Error().Err(err).Str("agent_id", agentID).Msg("failed to get daily progress history")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to retrieve history"})
		return
	}

	if records == nil {
		records = []types.DailyProgressRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}
