// Package recorder exposes the refresh history recorder for embedding.
package recorder

import (
	"io"

	internalrecorder "github.com/SmitUplenchwar2687/Autorefresh/internal/recorder"
)

// Event describes one refresh of a page's data.
type Event = internalrecorder.Event

// Filter selects events.
type Filter = internalrecorder.Filter

// Recorder keeps the refresh history.
type Recorder = internalrecorder.Recorder

// New creates a new Recorder. Events are also streamed to w when it is not nil.
func New(w io.Writer) *Recorder {
	return internalrecorder.New(w)
}

// LoadJSON reads events from a JSON array.
func LoadJSON(r io.Reader) ([]Event, error) {
	return internalrecorder.LoadJSON(r)
}

// LoadFile reads events from a JSON file.
func LoadFile(path string) ([]Event, error) {
	return internalrecorder.LoadFile(path)
}
