package handlers

import (
	"errors"
	"net/http"

	"github.com/Partho99/devops-learner/internal/coderun"
)

// Runner is set from the serve command during init.
var Runner *coderun.Client

// ListLanguages returns the editor languages and their starter snippets.
// GET /api/languages
func ListLanguages(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"languages": coderun.Languages,
		"fallback":  coderun.FallbackSnippet,
	})
}

// RunCode forwards a snippet to the execution backend.
// POST /api/run
//
// The reply carries "output" or "error" like the backend itself. Backend
// failures are reported as {"error": "Error: <reason>"} with status 502.
func RunCode(w http.ResponseWriter, r *http.Request) {
	if Runner == nil {
		writeError(w, http.StatusServiceUnavailable, "Code execution not available")
		return
	}

	var req coderun.Request
	if !decodeJSON(w, r, &req) {
		return
	}
	if !coderun.Supported(req.Language) {
		writeError(w, http.StatusBadRequest, "Unsupported language: "+req.Language)
		return
	}

	resp, err := Runner.Run(r.Context(), req)
	if err != nil {
		var be *coderun.BackendError
		if errors.As(err, &be) {
			writeJSON(w, http.StatusBadGateway, map[string]string{"error": coderun.FailureText(err)})
			return
		}
		writeDomainError(w, r, err)
		return
	}

	switch {
	case resp.Output != nil:
		writeJSON(w, http.StatusOK, map[string]string{"output": *resp.Output})
	case resp.Error != nil:
		writeJSON(w, http.StatusOK, map[string]string{"error": *resp.Error})
	default:
		writeJSON(w, http.StatusOK, map[string]string{"output": coderun.NoOutput})
	}
}
