package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Harshitk-cp/reflex/internal/service"
	"github.com/Harshitk-cp/reflex/internal/store"
	"github.com/Harshitk-cp/reflex/internal/term"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeServiceError maps domain errors to status codes. Unknown errors are
// reported as fallback so internal details do not leak.
func writeServiceError(w http.ResponseWriter, err error, fallback string) {
	// Validation comes first: a missing parent is a bad request even though
	// it wraps ErrNotFound.
	switch {
	case errors.Is(err, service.ErrInvalidThought),
		errors.Is(err, service.ErrInvalidRule),
		errors.Is(err, service.ErrInvalidAction),
		errors.Is(err, service.ErrMemoryContentEmpty),
		errors.Is(err, service.ErrQueryEmpty),
		errors.Is(err, term.ErrInvalidJSON):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, store.ErrAmbiguousPrefix):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrMemoryUnavailable):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, service.ErrEngineClosed):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, fallback)
	}
}
