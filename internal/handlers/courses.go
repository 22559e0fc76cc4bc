package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/Partho99/devops-learner/internal/catalog"
	"github.com/Partho99/devops-learner/internal/progress"
)

var (
	// Catalog and Progress are set from the serve command during init.
	Catalog  *catalog.Catalog
	Progress *progress.Store
)

type courseSummary struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Duration    string `json:"duration,omitempty"`
	Students    string `json:"students,omitempty"`
	Level       string `json:"level,omitempty"`
	Image       string `json:"image,omitempty"`
	Lessons     int    `json:"lessons"`
}

type courseDetail struct {
	courseSummary
	Sections []catalog.Section `json:"sections"`
}

func summarizeCourse(c catalog.Course, total int) courseSummary {
	return courseSummary{
		ID:          c.ID,
		Title:       c.Title,
		Description: c.Description,
		Duration:    c.Duration,
		Students:    c.Students,
		Level:       c.Level,
		Image:       c.Image,
		Lessons:     total,
	}
}

// ListCourses returns courses with their lesson counts. With "per_page" set
// the list is cut into pages; "page" is 1-based and defaults to 1.
// GET /api/courses
func ListCourses(w http.ResponseWriter, r *http.Request) {
	courses := Catalog.List()
	total := len(courses)

	page, err := positiveQuery(r, "page", 1)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	perPage, err := positiveQuery(r, "per_page", total)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if perPage > 0 {
		start, end := total, total
		if page-1 <= total/perPage {
			start = min((page-1)*perPage, total)
		}
		if perPage < total-start {
			end = start + perPage
		}
		courses = courses[start:end]
	}

	result := make([]courseSummary, 0, len(courses))
	for _, c := range courses {
		result = append(result, summarizeCourse(c, c.Structure().Total()))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"courses":  result,
		"total":    total,
		"page":     page,
		"per_page": perPage,
	})
}

// positiveQuery reads an integer query parameter that must be at least 1.
func positiveQuery(r *http.Request, name string, def int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%s must be a positive integer", name)
	}
	return n, nil
}

// GetCourse returns a course with its normalised sections. The optional
// "q" query parameter filters lessons.
// GET /api/courses/{id}
func GetCourse(w http.ResponseWriter, r *http.Request) {
	course, err := Catalog.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	s := course.Structure()
	sections := s.Search(r.URL.Query().Get("q"))
	if sections == nil {
		sections = []catalog.Section{}
	}
	writeJSON(w, http.StatusOK, courseDetail{
		courseSummary: summarizeCourse(course, s.Total()),
		Sections:      sections,
	})
}

// GetProgress returns the completed lessons of a course.
// GET /api/courses/{id}/progress
func GetProgress(w http.ResponseWriter, r *http.Request) {
	sum, err := Progress.Progress(chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

// SetProgress replaces the completed lessons of a course.
// PUT /api/courses/{id}/progress  {"completed": [0, 2]}
func SetProgress(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Completed []int `json:"completed"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	sum, err := Progress.SetCompleted(chi.URLParam(r, "id"), body.Completed)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

// MarkLesson marks one lesson complete.
// POST /api/courses/{id}/progress/{lesson}
func MarkLesson(w http.ResponseWriter, r *http.Request) {
	lesson, ok := lessonParam(w, r)
	if !ok {
		return
	}
	sum, err := Progress.MarkComplete(chi.URLParam(r, "id"), lesson)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

// UnmarkLesson clears one lesson's completion.
// DELETE /api/courses/{id}/progress/{lesson}
func UnmarkLesson(w http.ResponseWriter, r *http.Request) {
	lesson, ok := lessonParam(w, r)
	if !ok {
		return
	}
	sum, err := Progress.Unmark(chi.URLParam(r, "id"), lesson)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

// GetNotes returns a course's lesson notes.
// GET /api/courses/{id}/notes
func GetNotes(w http.ResponseWriter, r *http.Request) {
	notes, err := Progress.Notes(chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"notes": notes})
}

// SetNotes replaces a course's lesson notes.
// PUT /api/courses/{id}/notes  {"notes": {"lesson_0": "..."}}
func SetNotes(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Notes map[string]string `json:"notes"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	id := chi.URLParam(r, "id")
	if err := Progress.SetNotes(id, body.Notes); err != nil {
		writeDomainError(w, r, err)
		return
	}
	GetNotes(w, r)
}

// SetLessonNote stores the note for a single lesson.
// PUT /api/courses/{id}/notes/{lesson}  {"text": "..."}
func SetLessonNote(w http.ResponseWriter, r *http.Request) {
	lesson, ok := lessonParam(w, r)
	if !ok {
		return
	}
	var body struct {
		Text string `json:"text"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	if err := Progress.SetNote(chi.URLParam(r, "id"), lesson, body.Text); err != nil {
		writeDomainError(w, r, err)
		return
	}
	GetNotes(w, r)
}

func lessonParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	lesson, err := strconv.Atoi(chi.URLParam(r, "lesson"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid lesson index")
		return 0, false
	}
	return lesson, true
}
