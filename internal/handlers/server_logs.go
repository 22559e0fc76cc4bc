package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/Partho99/devops-learner/internal/logging"
)

const (
	defaultLogLines = 200
	maxLogLines     = 5000
)

// logLine is the subset of a zerolog JSON record used for filtering.
type logLine struct {
	Level  string `json:"level"`
	Module string `json:"module"`
}

// GetServerLogs returns the newest server log records. Optional "module" and
// "level" parameters keep only records from that module and at or above that
// level; "lines" caps the result.
// GET /api/logs
func GetServerLogs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	lines := defaultLogLines
	if v := q.Get("lines"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			lines = min(n, maxLogLines)
		}
	}
	minLevel := zerolog.TraceLevel
	if v := q.Get("level"); v != "" {
		lvl, err := zerolog.ParseLevel(strings.ToLower(v))
		if err != nil || lvl == zerolog.NoLevel {
			writeError(w, http.StatusBadRequest, "unknown log level")
			return
		}
		minLevel = lvl
	}
	module := q.Get("module")
	filtered := module != "" || minLevel != zerolog.TraceLevel

	read := lines
	if filtered {
		read = maxLogLines
	}
	content, err := logging.ReadTail(read)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	var kept []string
	if content != "" {
		kept = strings.Split(content, "\n")
	}
	if filtered {
		kept = filterLogLines(kept, module, minLevel)
	}
	if len(kept) > lines {
		kept = kept[len(kept)-lines:]
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"logs":  strings.Join(kept, "\n"),
		"lines": len(kept),
	})
}

// filterLogLines drops records that are not JSON, belong to another module or
// sit below minLevel.
func filterLogLines(lines []string, module string, minLevel zerolog.Level) []string {
	out := lines[:0]
	for _, l := range lines {
		var rec logLine
		if err := json.Unmarshal([]byte(l), &rec); err != nil {
			continue
		}
		if module != "" && rec.Module != module {
			continue
		}
		lvl, err := zerolog.ParseLevel(rec.Level)
		if err != nil || lvl < minLevel || (lvl == zerolog.NoLevel && minLevel != zerolog.TraceLevel) {
			continue
		}
		out = append(out, l)
	}
	return out
}

// ClearServerLogs truncates the log file.
// DELETE /api/logs
func ClearServerLogs(w http.ResponseWriter, r *http.Request) {
	if err := logging.Clear(); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
