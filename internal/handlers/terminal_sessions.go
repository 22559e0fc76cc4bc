package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/hlog"
)

// ListTerminalSessions returns all tracked terminal sessions.
// GET /api/terminal/sessions
func ListTerminalSessions(w http.ResponseWriter, r *http.Request) {
	if SessionMgr == nil {
		writeJSON(w, http.StatusOK, map[string]interface{}{"sessions": []interface{}{}})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"sessions": SessionMgr.List()})
}

// DeleteTerminalSession closes and forgets a terminal session.
// DELETE /api/terminal/sessions/{sessionId}
func DeleteTerminalSession(w http.ResponseWriter, r *http.Request) {
	if SessionMgr == nil {
		writeError(w, http.StatusServiceUnavailable, "Terminal sessions not available")
		return
	}
	id := chi.URLParam(r, "sessionId")
	if err := SessionMgr.CloseSession(id); err != nil {
		writeDomainError(w, r, err)
		return
	}
	SessionMgr.Remove(id)
	writeJSON(w, http.StatusOK, map[string]string{"status": "closed"})
}

// GetTerminalRecording streams a session's recording as an asciicast.
// GET /api/terminal/sessions/{sessionId}/recording
func GetTerminalRecording(w http.ResponseWriter, r *http.Request) {
	if SessionMgr == nil {
		writeError(w, http.StatusServiceUnavailable, "Terminal sessions not available")
		return
	}
	sess, err := SessionMgr.Get(chi.URLParam(r, "sessionId"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	rec := sess.Recording()
	if rec == nil {
		writeError(w, http.StatusNotFound, "Recording not enabled for this session")
		return
	}

	w.Header().Set("Content-Type", "application/x-asciicast")
	w.Header().Set("Content-Disposition", `attachment; filename="`+sess.ID+`.cast"`)
	if err := rec.WriteCast(w); err != nil {
		hlog.FromRequest(r).Warn().Err(err).Str("session", sess.ID).Msg("write recording")
	}
}
