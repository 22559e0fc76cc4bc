// Package recall implements shell-style command recall: stepping backwards
// and forwards through previously submitted commands.
package recall

// bottom is the cursor value meaning "not browsing history".
const bottom = -1

// Stack holds submitted commands, oldest first, and a browsing cursor.
// The zero value is not usable; call New.
type Stack struct {
	entries []string
	cursor  int
}

// New returns an empty stack with the cursor at the bottom.
func New() *Stack {
	return &Stack{cursor: bottom}
}

// Record appends cmd and moves the cursor back to the bottom.
func (s *Stack) Record(cmd string) {
	s.entries = append(s.entries, cmd)
	s.cursor = bottom
}

// Previous steps one command back and returns it. Stepping past the oldest
// command keeps returning it. With no history, current is returned
// unchanged.
func (s *Stack) Previous(current string) string {
	if len(s.entries) == 0 {
		return current
	}
	if s.cursor == bottom {
		s.cursor = len(s.entries) - 1
	} else if s.cursor > 0 {
		s.cursor--
	}
	return s.entries[s.cursor]
}

// Next steps one command forward and returns it. Stepping past the newest
// command returns to the bottom with an empty line. At the bottom, current
// is returned unchanged.
func (s *Stack) Next(current string) string {
	if s.cursor == bottom {
		return current
	}
	s.cursor++
	if s.cursor >= len(s.entries) {
		s.cursor = bottom
		return ""
	}
	return s.entries[s.cursor]
}

// Entries returns a copy of the recorded commands, oldest first.
func (s *Stack) Entries() []string {
	out := make([]string, len(s.entries))
	copy(out, s.entries)
	return out
}

// Cursor returns the browsing position and whether the stack is browsing.
func (s *Stack) Cursor() (int, bool) {
	return s.cursor, s.cursor != bottom
}

// Len returns the number of recorded commands.
func (s *Stack) Len() int {
	return len(s.entries)
}

// Clear drops all commands.
func (s *Stack) Clear() {
	s.entries = nil
	s.cursor = bottom
}
