package termsession

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Recording dimensions written to the asciinema header. The portal renders
// a line log rather than a screen, so these are nominal.
const (
	recordingWidth  = 120
	recordingHeight = 40
)

// RecordingEntry is a single timestamped event of a recording.
type RecordingEntry struct {
	// Elapsed is the time since session start in seconds.
	Elapsed float64 `json:"elapsed"`
	// Type is "o" for output, "i" for input.
	Type string `json:"type"`
	Data string `json:"data"`
}

// Recording captures timestamped terminal I/O. It is safe for concurrent use.
type Recording struct {
	mu         sync.Mutex
	entries    []RecordingEntry
	startTime  time.Time
	maxEntries int
}

// NewRecording creates a recording. If maxEntries <= 0, there is no limit on
// the number of entries.
func NewRecording(maxEntries int) *Recording {
	return &Recording{
		startTime:  time.Now(),
		maxEntries: maxEntries,
	}
}

// RecordOutput adds a raw inbound chunk.
func (r *Recording) RecordOutput(data string) {
	r.add("o", data)
}

// RecordInput adds an outbound line.
func (r *Recording) RecordInput(data string) {
	r.add("i", data)
}

func (r *Recording) add(typ, data string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.maxEntries > 0 && len(r.entries) >= r.maxEntries {
		return // drop if at capacity
	}
	r.entries = append(r.entries, RecordingEntry{
		Elapsed: time.Since(r.startTime).Seconds(),
		Type:    typ,
		Data:    data,
	})
}

// Entries returns a copy of all recorded entries.
func (r *Recording) Entries() []RecordingEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := make([]RecordingEntry, len(r.entries))
	copy(result, r.entries)
	return result
}

// WriteCast writes the recording in asciinema v2 format: a JSON header line
// followed by one [elapsed, type, data] array per event.
func (r *Recording) WriteCast(w io.Writer) error {
	r.mu.Lock()
	start := r.startTime
	entries := make([]RecordingEntry, len(r.entries))
	copy(entries, r.entries)
	r.mu.Unlock()

	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	enc.SetEscapeHTML(false)

	header := map[string]any{
		"version":   2,
		"width":     recordingWidth,
		"height":    recordingHeight,
		"timestamp": start.Unix(),
	}
	if err := enc.Encode(header); err != nil {
		return fmt.Errorf("encode header: %w", err)
	}
	for _, e := range entries {
		if err := enc.Encode([]any{e.Elapsed, e.Type, e.Data}); err != nil {
			return fmt.Errorf("encode event: %w", err)
		}
	}
	return bw.Flush()
}

// Save writes the recording to dir/<id>.cast and returns the file path.
func (r *Recording) Save(dir, id string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create recording dir: %w", err)
	}
	path := filepath.Join(dir, id+".cast")
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create recording: %w", err)
	}
	if err := r.WriteCast(f); err != nil {
		f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close recording: %w", err)
	}
	return path, nil
}
