package handlers

import (
	"net/http"

	"github.com/Partho99/devops-learner/internal/database"
)

func HealthCheck(w http.ResponseWriter, r *http.Request) {
	dbStatus := "disconnected"
	if err := database.Ping(database.DB); err == nil {
		dbStatus = "connected"
	}

	sessions, active := 0, 0
	if SessionMgr != nil {
		sessions = SessionMgr.Count()
		active = SessionMgr.ActiveCount()
	}

	status := "healthy"
	if dbStatus != "connected" {
		status = "unhealthy"
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":          status,
		"database":        dbStatus,
		"sessions":        sessions,
		"active_sessions": active,
	})
}
