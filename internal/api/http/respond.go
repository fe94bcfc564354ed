package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/listenlab/listening-backend/internal/listening"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

// writeError maps the domain error taxonomy onto HTTP statuses. Handlers
// that owe the client a specific message intercept before falling back
// here.
func writeError(w http.ResponseWriter, err error) {
	var verr *listening.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"detail": "Validation failed.",
			"fields": verr.Fields,
		})
	case errors.Is(err, listening.ErrNotFound):
		writeDetail(w, http.StatusNotFound, "Not found.")
	case errors.Is(err, listening.ErrInvalidState):
		writeDetail(w, http.StatusBadRequest, err.Error())
	default:
		writeDetail(w, http.StatusInternalServerError, "Internal error.")
	}
}

func fieldErrors(fields map[string]string) *listening.ValidationError {
	return &listening.ValidationError{Fields: fields}
}
