package catalog

import (
	"strconv"
	"strings"
)

// PlacedLesson is a lesson with its position in the course.
type PlacedLesson struct {
	Lesson
	SectionTitle string `json:"section_title,omitempty"`
	SectionIndex int    `json:"section_index"`
	ItemIndex    int    `json:"item_index"`
	FlatIndex    int    `json:"flat_index"`
}

// Section is a normalised curriculum node. A bare lesson becomes a
// single-item section with Single set.
type Section struct {
	Index  int            `json:"index"`
	Title  string         `json:"title"`
	Single bool           `json:"single"`
	Items  []PlacedLesson `json:"items"`
}

// Structure is a curriculum flattened for navigation.
type Structure struct {
	Sections []Section     `json:"sections"`
	Flat     []PlacedLesson `json:"lessons"`
}

// Build normalises curriculum. Flat indices run across sections in order.
func Build(curriculum []Node) Structure {
	s := Structure{
		Sections: make([]Section, 0, len(curriculum)),
		Flat:     []PlacedLesson{},
	}
	for si, node := range curriculum {
		sec := Section{Index: si, Title: node.Title}
		if node.IsSection() {
			for ii, l := range node.Items {
				sec.Items = append(sec.Items, PlacedLesson{
					Lesson:       l,
					SectionTitle: node.Title,
					SectionIndex: si,
					ItemIndex:    ii,
					FlatIndex:    len(s.Flat) + ii,
				})
			}
		} else {
			sec.Single = true
			sec.Items = []PlacedLesson{{
				Lesson:       Lesson{Title: node.Title, Duration: node.Duration, Src: node.Src},
				SectionIndex: si,
				FlatIndex:    len(s.Flat),
			}}
		}
		if sec.Items == nil {
			sec.Items = []PlacedLesson{}
		}
		s.Sections = append(s.Sections, sec)
		s.Flat = append(s.Flat, sec.Items...)
	}
	return s
}

// Total is the number of lessons.
func (s Structure) Total() int { return len(s.Flat) }

// Clamp limits i to a valid lesson index, or 0 for an empty course.
func (s Structure) Clamp(i int) int {
	if i >= len(s.Flat) {
		i = len(s.Flat) - 1
	}
	if i < 0 {
		i = 0
	}
	return i
}

// Search keeps lessons whose title, section title or 1-based number contains
// query, case-insensitively. Sections left empty are dropped.
func (s Structure) Search(query string) []Section {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return s.Sections
	}
	var out []Section
	for _, sec := range s.Sections {
		secMatch := strings.Contains(strings.ToLower(sec.Title), q)
		var items []PlacedLesson
		for _, it := range sec.Items {
			if secMatch ||
				strings.Contains(strings.ToLower(it.Title), q) ||
				strings.Contains(strconv.Itoa(it.FlatIndex+1), q) {
				items = append(items, it)
			}
		}
		if len(items) > 0 {
			sec.Items = items
			out = append(out, sec)
		}
	}
	return out
}
