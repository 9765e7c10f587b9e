package api

import (
	"net/http"

	"github.com/dennisdiepolder/callcrm/backend/internal/lease"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// LeasesHandler provides REST endpoints for record claims
type LeasesHandler struct {
	leases *lease.Manager
	logger zerolog.Logger
}

// NewLeasesHandler creates a new LeasesHandler
func NewLeasesHandler(leases *lease.Manager, logger zerolog.Logger) *LeasesHandler {
	return &LeasesHandler{
		leases: leases,
		logger: logger.With().Str("component", "leases_handler").Logger(),
	}
}

// Acquire handles POST /api/records/{recordId}/lease
func (h *LeasesHandler) Acquire(w http.ResponseWriter, r *http.Request) {
	claims, ok := identity(w, r)
	if !ok {
		return
	}
	recordID := chi.URLParam(r, "recordId")

	l, err := h.leases.Acquire(recordID, claims.AgentID, claims.Name, 0)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, l)
}

// Renew handles PUT /api/records/{recordId}/lease
func (h *LeasesHandler) Renew(w http.ResponseWriter, r *http.Request) {
	claims, ok := identity(w, r)
	if !ok {
		return
	}
	recordID := chi.URLParam(r, "recordId")

	l, err := h.leases.Renew(recordID, claims.AgentID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

// Release handles DELETE /api/records/{recordId}/lease
func (h *LeasesHandler) Release(w http.ResponseWriter, r *http.Request) {
	claims, ok := identity(w, r)
	if !ok {
		return
	}
	recordID := chi.URLParam(r, "recordId")

	if err := h.leases.Release(recordID, claims.AgentID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "released"})
}

// ClaimInfo handles GET /api/records/{recordId}/lease. Drives the
// "in use by X" vs "you are calling this" rendering.
func (h *LeasesHandler) ClaimInfo(w http.ResponseWriter, r *http.Request) {
	claims, ok := identity(w, r)
	if !ok {
		return
	}
	recordID := chi.URLParam(r, "recordId")

	info := h.leases.ClaimInfo(recordID)
	response := map[string]interface{}{
		"claimed":     info != nil,
		"claimedByMe": info != nil && info.AgentID == claims.AgentID,
	}
	if info != nil {
		response["lease"] = info
	}
	writeJSON(w, http.StatusOK, response)
}

// Snapshot handles GET /api/leases (manager only)
func (h *LeasesHandler) Snapshot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.leases.Snapshot())
}
