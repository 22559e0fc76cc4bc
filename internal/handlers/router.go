package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/hlog"

	"github.com/Partho99/devops-learner/internal/logging"
)

// Router builds the HTTP API. runPerMinute limits POST /api/run per client.
func Router(runPerMinute int) http.Handler {
	reqLog := logging.For("http")
	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(hlog.NewHandler(reqLog))
	r.Use(chimw.RequestLogger(&chimw.DefaultLogFormatter{Logger: &reqLog, NoColor: true}))
	r.Use(chimw.Recoverer)

	r.Get("/health", HealthCheck)

	r.Route("/api", func(r chi.Router) {
		r.Get("/terminal", TerminalWS)
		r.Get("/terminal/sessions", ListTerminalSessions)
		r.Delete("/terminal/sessions/{sessionId}", DeleteTerminalSession)
		r.Get("/terminal/sessions/{sessionId}/recording", GetTerminalRecording)

		r.Get("/languages", ListLanguages)
		r.With(RunRateLimit(runPerMinute)).Post("/run", RunCode)

		r.Get("/courses", ListCourses)
		r.Get("/courses/{id}", GetCourse)
		r.Get("/courses/{id}/progress", GetProgress)
		r.Put("/courses/{id}/progress", SetProgress)
		r.Post("/courses/{id}/progress/{lesson}", MarkLesson)
		r.Delete("/courses/{id}/progress/{lesson}", UnmarkLesson)
		r.Get("/courses/{id}/notes", GetNotes)
		r.Put("/courses/{id}/notes", SetNotes)
		r.Put("/courses/{id}/notes/{lesson}", SetLessonNote)

		r.Get("/logs", GetServerLogs)
		r.Delete("/logs", ClearServerLogs)
	})

	return r
}
