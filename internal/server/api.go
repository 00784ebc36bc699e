package server

import (
	"time"

	"github.com/SmitUplenchwar2687/Autorefresh/internal/page"
)

// UpdateRequest is the body of PUT /api/pages/{page}. Intervals are in
// milliseconds; null fields are left unchanged.
type UpdateRequest struct {
	UpdateActive   *bool    `json:"update_active"`
	UpdateInterval *float64 `json:"update_interval"`
}

// Params converts the request to controller params.
func (u UpdateRequest) Params() page.Params {
	p := page.Params{Active: u.UpdateActive}
	if u.UpdateInterval != nil {
		iv := millis(*u.UpdateInterval)
		p.Interval = &iv
	}
	return p
}

// FormRequest is the body of POST /api/pages/{page}/form.
type FormRequest struct {
	Active          bool    `json:"active"`
	IntervalSeconds float64 `json:"interval_seconds"`
}

// BlockRequest is the body of POST /api/pages/{page}/block.
type BlockRequest struct {
	Blocked bool `json:"blocked"`
}

// PageResponse describes a page.
type PageResponse struct {
	Page           string       `json:"page"`
	UpdateActive   bool         `json:"update_active"`
	UpdateInterval int64        `json:"update_interval"`
	ActiveEnabled  bool         `json:"active_enabled"`
	Reason         string       `json:"reason,omitempty"`
	Blocked        bool         `json:"blocked"`
	Refreshes      int64        `json:"refreshes"`
	Task           TaskResponse `json:"task"`
}

// TaskResponse describes the state of a page's task.
type TaskResponse struct {
	Running  bool       `json:"running"`
	Armed    bool       `json:"armed"`
	Interval int64      `json:"interval"`
	Repeat   bool       `json:"repeat"`
	Runs     uint64     `json:"runs"`
	LastRun  *time.Time `json:"last_run,omitempty"`
	NextRun  *time.Time `json:"next_run,omitempty"`
}

func newPageResponse(s page.Snapshot) PageResponse {
	return PageResponse{
		Page:           s.Page,
		UpdateActive:   s.Settings.Active,
		UpdateInterval: s.Settings.Interval.Milliseconds(),
		ActiveEnabled:  s.ActiveEnabled,
		Reason:         s.Reason,
		Blocked:        s.Blocked,
		Refreshes:      s.Refreshes,
		Task: TaskResponse{
			Running:  s.Task.Running,
			Armed:    s.Task.Armed,
			Interval: s.Task.Interval.Milliseconds(),
			Repeat:   s.Task.Repeat,
			Runs:     s.Task.Runs,
			LastRun:  timePtr(s.Task.LastRun),
			NextRun:  timePtr(s.Task.NextRun),
		},
	}
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func millis(ms float64) time.Duration {
	return time.Duration(ms * float64(time.Millisecond))
}
