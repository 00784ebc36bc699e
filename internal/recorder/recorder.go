// Package recorder keeps the history of refresh events.
package recorder

import (
	"encoding/json"
	"io"
	"os"
	"sync"
)

// Recorder captures refresh events.
// Thread-safe for concurrent use.
type Recorder struct {
	mu     sync.Mutex
	events []Event
	limit  int
	writer io.Writer // optional: stream events as they arrive
}

// New creates a new Recorder. If w is non-nil, events are also
// written to w as newline-delimited JSON as they arrive.
func New(w io.Writer) *Recorder {
	return &Recorder{
		writer: w,
	}
}

// WithLimit keeps only the most recent n events in memory. Zero keeps all.
func (r *Recorder) WithLimit(n int) *Recorder {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.limit = n
	r.trimLocked()
	return r
}

// Record captures a single event.
func (r *Recorder) Record(e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = append(r.events, e)
	r.trimLocked()

	if r.writer != nil {
		if err := json.NewEncoder(r.writer).Encode(e); err != nil {
			return err
		}
	}
	return nil
}

// Events returns a copy of all recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Query returns the events matching f, oldest first.
func (r *Recorder) Query(f Filter) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Event
	for _, e := range r.events {
		if f.Match(e) {
			out = append(out, e)
		}
	}
	return out
}

// Last returns the most recent event for page.
func (r *Recorder) Last(page string) (Event, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := len(r.events) - 1; i >= 0; i-- {
		if r.events[i].Page == page {
			return r.events[i], true
		}
	}
	return Event{}, false
}

// Len returns the number of recorded items.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

// ExportJSON writes all events to the given writer as a JSON array.
func (r *Recorder) ExportJSON(w io.Writer) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r.events)
}

// ExportFile writes all events to a file as a JSON array.
func (r *Recorder) ExportFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return r.ExportJSON(f)
}

func (r *Recorder) trimLocked() {
	if r.limit > 0 && len(r.events) > r.limit {
		r.events = append(r.events[:0:0], r.events[len(r.events)-r.limit:]...)
	}
}

// LoadJSON reads events from a JSON array.
func LoadJSON(r io.Reader) ([]Event, error) {
	var events []Event
	if err := json.NewDecoder(r).Decode(&events); err != nil {
		return nil, err
	}
	return events, nil
}

// LoadFile reads events from a JSON array file.
func LoadFile(path string) ([]Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return LoadJSON(f)
}
