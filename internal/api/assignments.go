package api

import (
	"encoding/json"
	"net/http"

	"github.com/dennisdiepolder/callcrm/backend/internal/assignment"
	"github.com/dennisdiepolder/callcrm/backend/internal/types"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// AssignmentsHandler provides REST endpoints for assignment distribution and
// state transitions
type AssignmentsHandler struct {
	distributor *assignment.Distributor
	logger      zerolog.Logger
}

// NewAssignmentsHandler creates a new AssignmentsHandler
func NewAssignmentsHandler(d *assignment.Distributor, logger zerolog.Logger) *AssignmentsHandler {
	return &AssignmentsHandler{
		distributor: d,
		logger:      logger.With().Str("component", "assignments_handler").Logger(),
	}
}

// DistributeRequest asks for count records of a category to be assigned to an
// agent
type DistributeRequest struct {
	AgentID  string         `json:"agentId"`
	Category types.Category `json:"category"`
	Count    int            `json:"count"`
}

// OutcomeRequest carries the agent's call result
type OutcomeRequest struct {
	Outcome string `json:"outcome"`
	Notes   string `json:"notes,omitempty"`
}

// Distribute handles POST /api/assignments (manager only)
func (h *AssignmentsHandler) Distribute(w http.ResponseWriter, r *http.Request) {
	var req DistributeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	created, err := h.distributor.Distribute(req.AgentID, req.Category, req.Count)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// ListMine handles GET /api/assignments
func (h *AssignmentsHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	claims, ok := identity(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.distributor.ListByAgent(claims.AgentID))
}

// Get handles GET /api/assignments/{assignmentId}
func (h *AssignmentsHandler) Get(w http.ResponseWriter, r *http.Request) {
	a, err := h.distributor.Get(chi.URLParam(r, "assignmentId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// Claim handles POST /api/assignments/{assignmentId}/claim
func (h *AssignmentsHandler) Claim(w http.ResponseWriter, r *http.Request) {
	claims, ok := identity(w, r)
	if !ok {
		return
	}

	a, l, err := h.distributor.Claim(chi.URLParam(r, "assignmentId"), claims.AgentID, claims.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"assignment": a,
		"lease":      l,
	})
}

// MarkCalled handles POST /api/assignments/{assignmentId}/called
func (h *AssignmentsHandler) MarkCalled(w http.ResponseWriter, r *http.Request) {
	claims, ok := identity(w, r)
	if !ok {
		return
	}

	var req OutcomeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	a, err := h.distributor.MarkCalled(chi.URLParam(r, "assignmentId"), claims.AgentID, req.Outcome, req.Notes)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// Complete handles POST /api/assignments/{assignmentId}/complete
func (h *AssignmentsHandler) Complete(w http.ResponseWriter, r *http.Request) {
	claims, ok := identity(w, r)
	if !ok {
		return
	}

	var req OutcomeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	a, err := h.distributor.Complete(chi.URLParam(r, "assignmentId"), claims.AgentID, req.Outcome, req.Notes)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// ForceUnassign handles DELETE /api/assignments/{assignmentId} (manager only)
func (h *AssignmentsHandler) ForceUnassign(w http.ResponseWriter, r *http.Request) {
	assignmentID := chi.URLParam(r, "assignmentId")
	if err := h.distributor.ForceUnassign(assignmentID); err != nil {
		writeError(w, err)
		return
	}

	h.logger.Info().Str("assignment_id", assignmentID).Msg("assignment unassigned via API")
	writeJSON(w, http.StatusOK, map[string]string{"message": "assignment unassigned"})
}
