// Package refresh exposes the repeating auto-refresh task for embedding.
package refresh

import (
	internalrefresh "github.com/SmitUplenchwar2687/Autorefresh/internal/refresh"
	"github.com/SmitUplenchwar2687/Autorefresh/pkg/clock"
)

// Task runs a callback on a clock, either once or repeatedly.
type Task = internalrefresh.Task

// Func is the unit of work run on every fire.
type Func = internalrefresh.Func

// Repeat selects whether the task re-arms itself after each run.
type Repeat = internalrefresh.Repeat

// State is a snapshot of a task's configuration and progress.
type State = internalrefresh.State

// Option configures a Task.
type Option = internalrefresh.Option

const (
	RepeatKeep    = internalrefresh.RepeatKeep
	RepeatOnce    = internalrefresh.RepeatOnce
	RepeatForever = internalrefresh.RepeatForever
)

// ErrNegativeInterval is returned when a negative interval is configured.
var ErrNegativeInterval = internalrefresh.ErrNegativeInterval

// WithLogger sets the logger used for lifecycle messages.
var WithLogger = internalrefresh.WithLogger

// WithCallback sets the initial callback.
var WithCallback = internalrefresh.WithCallback

// WithRepeat sets the initial repeat setting.
var WithRepeat = internalrefresh.WithRepeat

// New creates a stopped task on the given clock.
func New(name string, c clock.Clock, opts ...Option) *Task {
	return internalrefresh.New(name, c, opts...)
}
