package recorder

import (
	"time"
)

// Event describes one refresh of a page's data.
type Event struct {
	Time      time.Time     `json:"time"`
	Page      string        `json:"page"`
	RequestID string        `json:"request_id,omitempty"`
	Status    int           `json:"status,omitempty"`
	Size      int           `json:"size"`
	Duration  time.Duration `json:"duration"`
	Error     string        `json:"error,omitempty"`
}

// OK reports whether the refresh succeeded.
func (e Event) OK() bool {
	return e.Error == ""
}

// Filter selects events.
type Filter struct {
	Pages      []string  // Only include these pages (empty = all)
	After      time.Time // Only include events after this time (zero = no limit)
	Before     time.Time // Only include events before this time (zero = no limit)
	FailedOnly bool
}

// Match returns true if the event passes the filter.
func (f *Filter) Match(e Event) bool {
	if len(f.Pages) > 0 && !contains(f.Pages, e.Page) {
		return false
	}
	if !f.After.IsZero() && !e.Time.After(f.After) {
		return false
	}
	if !f.Before.IsZero() && !e.Time.Before(f.Before) {
		return false
	}
	if f.FailedOnly && e.OK() {
		return false
	}
	return true
}

func contains(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}
