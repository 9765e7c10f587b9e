package api

import (
	"fmt"
	"net/http"

	"github.com/dennisdiepolder/callcrm/backend/internal/auth"
	"github.com/dennisdiepolder/callcrm/backend/internal/storage"
	"github.com/rs/zerolog"
)

// AdminHandler handles destructive maintenance operations
type AdminHandler struct {
	store  storage.Store
	logger zerolog.Logger
}

// NewAdminHandler creates a new AdminHandler
func NewAdminHandler(store storage.Store, logger zerolog.Logger) *AdminHandler {
	return &AdminHandler{
		store:  store,
		logger: logger.With().Str("component", "admin_handler").Logger(),
	}
}

// RequireAdmin middleware, only the admin role is allowed through
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := auth.GetUserFromContext(r.Context())
		if !ok || !auth.HasRole(claims, "admin") {
			writeJSON(w, http.StatusForbidden, map[string]string{"error": "admin role required"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// WipeStorage truncates every persistence table. Dev and staging tool; the
// in-memory engine state is untouched.
func (h *AdminHandler) WipeStorage(w http.ResponseWriter, r *http.Request) {
	if err := h.store.TruncateAll(); err != nil {
		h.logger.Error().Err(err).Msg("failed to truncate storage tables")
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": fmt.Sprintf("failed to truncate: %s", err),
		})
		return
	}

	h.logger.Info().Msg("storage tables truncated")
	writeJSON(w, http.StatusOK, map[string]string{"message": "storage tables truncated"})
}
