// Package catalog loads the course catalog and normalises course curricula
// into sections and a flat, globally indexed lesson list.
package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

//go:embed courses.yaml
var defaultCoursesYAML []byte

// ErrCourseNotFound is returned by Get for an unknown course ID.
var ErrCourseNotFound = errors.New("course not found")

// Lesson is a single playable lesson.
type Lesson struct {
	Title    string `yaml:"title" json:"title"`
	Duration string `yaml:"duration" json:"duration,omitempty"`
	Src      string `yaml:"src" json:"src,omitempty"`
}

// Node is one curriculum entry: a section with Items, or a bare lesson.
type Node struct {
	Title    string   `yaml:"title" json:"title"`
	Duration string   `yaml:"duration,omitempty" json:"duration,omitempty"`
	Src      string   `yaml:"src,omitempty" json:"src,omitempty"`
	Items    []Lesson `yaml:"items,omitempty" json:"items,omitempty"`
}

// IsSection reports whether n groups lessons rather than being one.
func (n Node) IsSection() bool {
	return n.Items != nil || n.Src == ""
}

// Course is a catalog entry.
type Course struct {
	ID          string `yaml:"id" json:"id"`
	Title       string `yaml:"title" json:"title"`
	Description string `yaml:"description" json:"description,omitempty"`
	Duration    string `yaml:"duration" json:"duration,omitempty"`
	Students    string `yaml:"students" json:"students,omitempty"`
	Level       string `yaml:"level" json:"level,omitempty"`
	Image       string `yaml:"image" json:"image,omitempty"`
	Curriculum  []Node `yaml:"curriculum" json:"curriculum"`
}

// Structure normalises the course curriculum.
func (c Course) Structure() Structure {
	return Build(c.Curriculum)
}

// Catalog is an immutable set of courses.
type Catalog struct {
	courses []Course
	byID    map[string]int
}

// Parse decodes a YAML list of courses. IDs must be present and unique.
func Parse(data []byte) (*Catalog, error) {
	var courses []Course
	if err := yaml.Unmarshal(data, &courses); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	c := &Catalog{courses: courses, byID: make(map[string]int, len(courses))}
	for i, course := range courses {
		if course.ID == "" {
			return nil, fmt.Errorf("parse catalog: course %d has no id", i)
		}
		if _, dup := c.byID[course.ID]; dup {
			return nil, fmt.Errorf("parse catalog: duplicate course id %q", course.ID)
		}
		c.byID[course.ID] = i
	}
	return c, nil
}

// Load reads the catalog at path, or the embedded default when path is empty.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(data)
}

// Default returns the embedded catalog.
func Default() (*Catalog, error) {
	return Parse(defaultCoursesYAML)
}

// List returns all courses sorted by ID.
func (c *Catalog) List() []Course {
	out := make([]Course, len(c.courses))
	copy(out, c.courses)
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Get returns the course with the given ID.
func (c *Catalog) Get(id string) (Course, error) {
	i, ok := c.byID[id]
	if !ok {
		return Course{}, fmt.Errorf("%w: %s", ErrCourseNotFound, id)
	}
	return c.courses[i], nil
}
