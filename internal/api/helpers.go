package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dennisdiepolder/callcrm/backend/internal/auth"
	"github.com/dennisdiepolder/callcrm/backend/internal/types"
)

// writeJSON writes a JSON response with the given status
func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

// writeError maps engine errors onto HTTP status codes. Contention and
// idempotency guards come back as 409 so clients can treat them as state,
// not as failures.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, types.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, types.ErrAlreadyClaimed), errors.Is(err, types.ErrAlreadyCompleted):
		status = http.StatusConflict
	case errors.Is(err, types.ErrNotHolder), errors.Is(err, types.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, types.ErrValidation):
		status = http.StatusBadRequest
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// identity pulls the caller's agent identity from the request context.
// Writes 401 and returns false when the auth middleware put no claims there.
func identity(w http.ResponseWriter, r *http.Request) (*auth.Claims, bool) {
	claims, ok := auth.GetUserFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "missing identity"})
		return nil, false
	}
	return claims, true
}

// RequireManager middleware, only manager or admin role allowed
func RequireManager(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := auth.GetUserFromContext(r.Context())
		if !ok || !auth.IsManager(claims) {
			writeJSON(w, http.StatusForbidden, map[string]string{"error": "manager role required"})
			return
		}
		next.ServeHTTP(w, r)
	})
}
