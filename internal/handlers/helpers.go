package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/hlog"

	"github.com/Partho99/devops-learner/internal/catalog"
	"github.com/Partho99/devops-learner/internal/progress"
	"github.com/Partho99/devops-learner/internal/termsession"
)

// maxBodySize caps JSON request bodies.
const maxBodySize = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

// errorStatus maps domain errors to HTTP status codes.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, catalog.ErrCourseNotFound),
		errors.Is(err, termsession.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, progress.ErrLessonOutOfRange),
		errors.Is(err, progress.ErrInvalidNoteKey):
		return http.StatusBadRequest
	case errors.Is(err, progress.ErrNotesLocked):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	status := errorStatus(err)
	if status == http.StatusInternalServerError {
		hlog.FromRequest(r).Error().Err(err).Msg("request failed")
		writeError(w, status, "Internal error")
		return
	}
	writeError(w, status, err.Error())
}
