// Package progress tracks completed lessons and lesson notes per course.
// Changes are held in memory and written to the database after a quiet
// period, or on Flush.
package progress

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/Partho99/devops-learner/internal/catalog"
	"github.com/Partho99/devops-learner/internal/crypto"
	"github.com/Partho99/devops-learner/internal/database"
	"github.com/Partho99/devops-learner/internal/logging"
)

var (
	// ErrLessonOutOfRange is returned for a lesson index outside the course.
	ErrLessonOutOfRange = errors.New("lesson index out of range")
	// ErrInvalidNoteKey is returned for a notes key not of the form lesson_<n>.
	ErrInvalidNoteKey = errors.New("invalid note key")
	// ErrNotesLocked is returned when stored notes are encrypted and no key
	// is configured.
	ErrNotesLocked = errors.New("notes are encrypted and no key is configured")
)

const noteKeyPrefix = "lesson_"

// NoteKey is the notes map key for a lesson.
func NoteKey(lesson int) string {
	return noteKeyPrefix + strconv.Itoa(lesson)
}

// Summary describes a course's completion state.
type Summary struct {
	CourseID  string `json:"course_id"`
	Completed []int  `json:"completed"`
	Total     int    `json:"total"`
	Percent   int    `json:"percent"`
}

type dirtyKind int

const (
	dirtyProgress dirtyKind = iota
	dirtyNotes
)

type dirtyKey struct {
	course string
	kind   dirtyKind
}

// Store caches progress and notes and persists them with debounce.
type Store struct {
	db       *gorm.DB
	catalog  *catalog.Catalog
	box      *crypto.Box
	debounce time.Duration
	logger   zerolog.Logger

	mu        sync.Mutex
	completed map[string][]int
	notes     map[string]map[string]string
	dirty     map[dirtyKey]struct{}
	timer     *time.Timer
	closed    bool
}

// New creates a store. A nil box stores notes in plain text. A zero
// debounce writes through on every change.
func New(db *gorm.DB, cat *catalog.Catalog, box *crypto.Box, debounce time.Duration) *Store {
	return &Store{
		db:        db,
		catalog:   cat,
		box:       box,
		debounce:  debounce,
		logger:    logging.For("progress"),
		completed: make(map[string][]int),
		notes:     make(map[string]map[string]string),
		dirty:     make(map[dirtyKey]struct{}),
	}
}

func (s *Store) total(courseID string) (int, error) {
	course, err := s.catalog.Get(courseID)
	if err != nil {
		return 0, err
	}
	return course.Structure().Total(), nil
}

// loadCompleted returns the cached index set, loading it on first use.
// Called with s.mu held.
func (s *Store) loadCompleted(courseID string) ([]int, error) {
	if c, ok := s.completed[courseID]; ok {
		return c, nil
	}
	c, err := database.GetProgress(s.db, courseID)
	if err != nil {
		return nil, fmt.Errorf("load progress: %w", err)
	}
	if c == nil {
		c = []int{}
	}
	s.completed[courseID] = c
	return c, nil
}

func summarize(courseID string, completed []int, total int) Summary {
	denom := total
	if denom == 0 {
		denom = 1
	}
	return Summary{
		CourseID:  courseID,
		Completed: append([]int(nil), completed...),
		Total:     total,
		Percent:   int(math.Round(float64(len(completed)) / float64(denom) * 100)),
	}
}

// Progress returns the completion summary for a course.
func (s *Store) Progress(courseID string) (Summary, error) {
	total, err := s.total(courseID)
	if err != nil {
		return Summary{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, err := s.loadCompleted(courseID)
	if err != nil {
		return Summary{}, err
	}
	return summarize(courseID, c, total), nil
}

// MarkComplete adds lesson to the completed set. Marking twice is a no-op.
func (s *Store) MarkComplete(courseID string, lesson int) (Summary, error) {
	return s.update(courseID, func(c []int, total int) ([]int, error) {
		if lesson < 0 || lesson >= total {
			return nil, fmt.Errorf("%w: %d not in [0,%d)", ErrLessonOutOfRange, lesson, total)
		}
		i := sort.SearchInts(c, lesson)
		if i < len(c) && c[i] == lesson {
			return c, nil
		}
		out := make([]int, 0, len(c)+1)
		out = append(out, c[:i]...)
		out = append(out, lesson)
		return append(out, c[i:]...), nil
	})
}

// Unmark removes lesson from the completed set.
func (s *Store) Unmark(courseID string, lesson int) (Summary, error) {
	return s.update(courseID, func(c []int, total int) ([]int, error) {
		if lesson < 0 || lesson >= total {
			return nil, fmt.Errorf("%w: %d not in [0,%d)", ErrLessonOutOfRange, lesson, total)
		}
		i := sort.SearchInts(c, lesson)
		if i == len(c) || c[i] != lesson {
			return c, nil
		}
		out := make([]int, 0, len(c)-1)
		out = append(out, c[:i]...)
		return append(out, c[i+1:]...), nil
	})
}

// SetCompleted replaces the completed set. Duplicates are dropped and the
// result is sorted.
func (s *Store) SetCompleted(courseID string, lessons []int) (Summary, error) {
	return s.update(courseID, func(_ []int, total int) ([]int, error) {
		seen := make(map[int]bool, len(lessons))
		out := make([]int, 0, len(lessons))
		for _, l := range lessons {
			if l < 0 || l >= total {
				return nil, fmt.Errorf("%w: %d not in [0,%d)", ErrLessonOutOfRange, l, total)
			}
			if !seen[l] {
				seen[l] = true
				out = append(out, l)
			}
		}
		sort.Ints(out)
		return out, nil
	})
}

func (s *Store) update(courseID string, fn func(c []int, total int) ([]int, error)) (Summary, error) {
	total, err := s.total(courseID)
	if err != nil {
		return Summary{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, err := s.loadCompleted(courseID)
	if err != nil {
		return Summary{}, err
	}
	next, err := fn(c, total)
	if err != nil {
		return Summary{}, err
	}
	s.completed[courseID] = next
	if err := s.markDirty(dirtyKey{courseID, dirtyProgress}); err != nil {
		return Summary{}, err
	}
	return summarize(courseID, next, total), nil
}

// loadNotes returns the cached notes map, loading it on first use.
// Called with s.mu held.
func (s *Store) loadNotes(courseID string) (map[string]string, error) {
	if n, ok := s.notes[courseID]; ok {
		return n, nil
	}
	row, err := database.GetNotes(s.db, courseID)
	if err != nil {
		return nil, fmt.Errorf("load notes: %w", err)
	}
	data := row.Data
	if row.Encrypted {
		if s.box == nil {
			return nil, ErrNotesLocked
		}
		if data, err = s.box.Decrypt(data); err != nil {
			return nil, fmt.Errorf("load notes: %w", err)
		}
	}
	notes := make(map[string]string)
	if data != "" {
		if err := json.Unmarshal([]byte(data), &notes); err != nil {
			return nil, fmt.Errorf("load notes: %w", err)
		}
		if notes == nil {
			notes = make(map[string]string)
		}
	}
	s.notes[courseID] = notes
	return notes, nil
}

// Notes returns a copy of the course's notes keyed by NoteKey.
func (s *Store) Notes(courseID string) (map[string]string, error) {
	if _, err := s.catalog.Get(courseID); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	n, err := s.loadNotes(courseID)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(n))
	for k, v := range n {
		out[k] = v
	}
	return out, nil
}

// SetNote stores the note for one lesson. Empty text removes it.
func (s *Store) SetNote(courseID string, lesson int, text string) error {
	total, err := s.total(courseID)
	if err != nil {
		return err
	}
	if lesson < 0 || lesson >= total {
		return fmt.Errorf("%w: %d not in [0,%d)", ErrLessonOutOfRange, lesson, total)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	n, err := s.loadNotes(courseID)
	if err != nil {
		return err
	}
	if text == "" {
		delete(n, NoteKey(lesson))
	} else {
		n[NoteKey(lesson)] = text
	}
	return s.markDirty(dirtyKey{courseID, dirtyNotes})
}

// SetNotes replaces all notes for a course. Keys must name lessons of the
// course; empty values are dropped.
func (s *Store) SetNotes(courseID string, notes map[string]string) error {
	total, err := s.total(courseID)
	if err != nil {
		return err
	}
	next := make(map[string]string, len(notes))
	for k, v := range notes {
		idx, ok := parseNoteKey(k)
		if !ok {
			return fmt.Errorf("%w: %q", ErrInvalidNoteKey, k)
		}
		if idx >= total {
			return fmt.Errorf("%w: %d not in [0,%d)", ErrLessonOutOfRange, idx, total)
		}
		if v != "" {
			next[k] = v
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notes[courseID] = next
	return s.markDirty(dirtyKey{courseID, dirtyNotes})
}

func parseNoteKey(k string) (int, bool) {
	rest, ok := strings.CutPrefix(k, noteKeyPrefix)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n < 0 || strconv.Itoa(n) != rest {
		return 0, false
	}
	return n, true
}

// markDirty records a pending write and restarts the debounce timer.
// Called with s.mu held.
func (s *Store) markDirty(k dirtyKey) error {
	s.dirty[k] = struct{}{}
	if s.debounce <= 0 || s.closed {
		return s.flushLocked()
	}
	if s.timer == nil {
		s.timer = time.AfterFunc(s.debounce, s.flushTimer)
	} else {
		s.timer.Reset(s.debounce)
	}
	return nil
}

func (s *Store) flushTimer() {
	if err := s.Flush(); err != nil {
		s.logger.Error().Err(err).Msg("debounced flush failed")
	}
}

// Pending is the number of unwritten changes.
func (s *Store) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.dirty)
}

// Flush writes all pending changes. Entries that fail stay pending.
func (s *Store) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flushLocked()
}

func (s *Store) flushLocked() error {
	var errs []error
	written := 0
	for k := range s.dirty {
		var err error
		switch k.kind {
		case dirtyProgress:
			err = database.SaveProgress(s.db, k.course, s.completed[k.course])
		case dirtyNotes:
			err = s.saveNotes(k.course)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("save course %s: %w", k.course, err))
			continue
		}
		delete(s.dirty, k)
		written++
	}
	if written > 0 {
		s.logger.Debug().Int("written", written).Int("pending", len(s.dirty)).Msg("flushed")
	}
	return errors.Join(errs...)
}

func (s *Store) saveNotes(courseID string) error {
	data, err := json.Marshal(s.notes[courseID])
	if err != nil {
		return err
	}
	row := database.CourseNotes{CourseID: courseID, Data: string(data)}
	if s.box != nil {
		tok, err := s.box.Encrypt(row.Data)
		if err != nil {
			return err
		}
		row.Data, row.Encrypted = tok, true
	}
	return database.SaveNotes(s.db, row)
}

// Close stops the debounce timer and writes pending changes. Later changes
// are written through.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	if s.timer != nil {
		s.timer.Stop()
	}
	return s.flushLocked()
}

// Reencrypt rewrites every stored notes row under the primary key, so rows
// written with a retired key or before a key was configured stay readable
// once that key is dropped. Courses with unwritten changes are skipped; the
// next flush encrypts them. It returns the number of rows rewritten.
func (s *Store) Reencrypt() (int, error) {
	if s.box == nil {
		return 0, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := database.ListNotes(s.db)
	if err != nil {
		return 0, fmt.Errorf("list notes: %w", err)
	}
	var errs []error
	n := 0
	for _, row := range rows {
		if _, dirty := s.dirty[dirtyKey{row.CourseID, dirtyNotes}]; dirty {
			continue
		}
		data := row.Data
		if row.Encrypted {
			if data, err = s.box.Decrypt(data); err != nil {
				errs = append(errs, fmt.Errorf("course %s: %w", row.CourseID, err))
				continue
			}
		}
		tok, err := s.box.Encrypt(data)
		if err != nil {
			errs = append(errs, fmt.Errorf("course %s: %w", row.CourseID, err))
			continue
		}
		row.Data, row.Encrypted = tok, true
		if err := database.SaveNotes(s.db, row); err != nil {
			errs = append(errs, fmt.Errorf("course %s: %w", row.CourseID, err))
			continue
		}
		n++
	}
	if n > 0 {
		s.logger.Info().Int("rows", n).Msg("notes re-encrypted")
	}
	return n, errors.Join(errs...)
}
