// Package scrollback holds the ordered, append-only history of a terminal
// session: command echoes, rendered output and status lines.
package scrollback

import (
	"fmt"
	"html"
	"sync"
	"time"
)

// Kind classifies a history entry.
type Kind int

const (
	Input Kind = iota
	Output
	StatusError
	StatusInfo
)

func (k Kind) String() string {
	switch k {
	case Input:
		return "input"
	case Output:
		return "output"
	case StatusError:
		return "status_error"
	case StatusInfo:
		return "status_info"
	default:
		return "unknown"
	}
}

// MarshalText encodes the kind by name in JSON payloads.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText decodes a kind name produced by MarshalText.
func (k *Kind) UnmarshalText(b []byte) error {
	for _, c := range []Kind{Input, Output, StatusError, StatusInfo} {
		if c.String() == string(b) {
			*k = c
			return nil
		}
	}
	return fmt.Errorf("unknown entry kind %q", b)
}

// Entry is one line of history. Content is safe to insert into HTML as-is:
// converter markup for Output entries, escaped text for every other kind.
// Text is the same line as plain text.
type Entry struct {
	Seq     uint64    `json:"seq"`
	Kind    Kind      `json:"kind"`
	Content string    `json:"content"`
	Text    string    `json:"text"`
	Time    time.Time `json:"time"`
}

// NewEntry builds a non-Output entry from plain text.
func NewEntry(kind Kind, text string) Entry {
	return Entry{Kind: kind, Content: html.EscapeString(text), Text: text}
}

// Buffer is a thread-safe append-only list of entries. With a positive
// limit it keeps only the most recent entries; sequence numbers keep
// increasing regardless.
type Buffer struct {
	mu      sync.Mutex
	entries []Entry
	limit   int
	nextSeq uint64
	notify  chan struct{} // signaled (non-blocking) when entries are appended
}

// New creates a buffer. A limit <= 0 means unbounded.
func New(limit int) *Buffer {
	if limit < 0 {
		limit = 0
	}
	return &Buffer{
		limit:   limit,
		nextSeq: 1,
		notify:  make(chan struct{}, 1),
	}
}

// Append stores e with the next sequence number and returns the stored entry.
// A zero Time is set to the current time.
func (b *Buffer) Append(e Entry) Entry {
	b.mu.Lock()
	e.Seq = b.nextSeq
	b.nextSeq++
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	b.entries = append(b.entries, e)
	if b.limit > 0 && len(b.entries) > b.limit {
		drop := len(b.entries) - b.limit
		if cap(b.entries) > 2*b.limit {
			// Compact so the backing array does not grow forever.
			kept := make([]Entry, b.limit, 2*b.limit)
			copy(kept, b.entries[drop:])
			b.entries = kept
		} else {
			b.entries = b.entries[drop:]
		}
	}
	b.mu.Unlock()

	select {
	case b.notify <- struct{}{}:
	default:
	}
	return e
}

// Snapshot returns a copy of the retained entries, oldest first.
func (b *Buffer) Snapshot() []Entry {
	b.mu.Lock()
	defer b.mu.Unlock()
	result := make([]Entry, len(b.entries))
	copy(result, b.entries)
	return result
}

// Since returns the retained entries whose sequence number is greater than seq.
func (b *Buffer) Since(seq uint64) []Entry {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.entries) == 0 {
		return nil
	}
	first := b.entries[0].Seq
	start := 0
	if seq >= first {
		start = int(seq-first) + 1
	}
	if start >= len(b.entries) {
		return nil
	}
	result := make([]Entry, len(b.entries)-start)
	copy(result, b.entries[start:])
	return result
}

// Len returns the number of retained entries.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}

// LastSeq returns the sequence number of the newest entry, or 0 if the
// buffer has never been written to.
func (b *Buffer) LastSeq() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.nextSeq - 1
}

// Notify returns the channel that is signaled when new entries are appended.
// Readers should select on it and then call Since.
func (b *Buffer) Notify() <-chan struct{} {
	return b.notify
}
