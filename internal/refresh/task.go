// Package refresh implements the repeating task behind a page's
// auto-refresh: a callback that runs once or repeatedly at a fixed delay and
// can be reconfigured or halted at any time.
//
// A Task has two states. It is stopped until Start arms a timer on its
// clock, and it stays armed while it repeats. At most one timer is pending at
// any moment; arming always cancels the previous one.
package refresh

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/SmitUplenchwar2687/Autorefresh/internal/clock"
)

// ErrNegativeInterval is returned when a negative interval is configured.
var ErrNegativeInterval = errors.New("refresh: interval must not be negative")

// Func is the unit of work run on every fire.
type Func func()

// Repeat selects whether the task re-arms itself after each run.
type Repeat int

const (
	// RepeatKeep leaves the current repeat setting unchanged.
	RepeatKeep Repeat = iota
	// RepeatOnce runs the callback once and then stops.
	RepeatOnce
	// RepeatForever re-arms the task after every run.
	RepeatForever
)

func (r Repeat) String() string {
	switch r {
	case RepeatKeep:
		return "keep"
	case RepeatOnce:
		return "once"
	case RepeatForever:
		return "forever"
	default:
		return fmt.Sprintf("Repeat(%d)", int(r))
	}
}

// State is a snapshot of a task's configuration and progress.
type State struct {
	Name     string        `json:"name"`
	Running  bool          `json:"running"`
	Armed    bool          `json:"armed"`
	Interval time.Duration `json:"interval"`
	Repeat   bool          `json:"repeat"`
	Runs     uint64        `json:"runs"`
	LastRun  time.Time     `json:"last_run,omitempty"`
	NextRun  time.Time     `json:"next_run,omitempty"`
}

// Option configures a Task.
type Option func(*Task)

// WithLogger sets the logger used for lifecycle messages.
func WithLogger(l *log.Logger) Option {
	return func(t *Task) {
		if l != nil {
			t.logger = l
		}
	}
}

// WithCallback sets the initial callback.
func WithCallback(cb Func) Option {
	return func(t *Task) {
		t.callback = cb
	}
}

// WithRepeat sets the initial repeat setting. RepeatKeep leaves the
// default, which is to run once.
func WithRepeat(r Repeat) Option {
	return func(t *Task) {
		switch r {
		case RepeatOnce:
			t.repeat = false
		case RepeatForever:
			t.repeat = true
		}
	}
}

// Task runs a callback on a clock, either once or repeatedly.
//
// Callbacks never overlap. A run requested while a callback is in progress,
// whether by a timer fire, an immediate Start or RunNow, happens once that
// callback returns. Start, Stop, SetInterval and RunNow are safe to call from
// inside a callback.
//
// Thread-safe for concurrent use.
type Task struct {
	name   string
	clock  clock.Clock
	logger *log.Logger

	mu       sync.Mutex
	running  bool
	interval time.Duration
	repeat   bool
	callback Func
	timer    clock.Timer
	nextRun  time.Time
	// gen is bumped whenever the pending timer is replaced or cancelled;
	// a fire carrying an older generation is stale and is dropped.
	gen     uint64
	runs    uint64
	lastRun time.Time

	// executing is set while a callback body runs. A scheduled run
	// requested meanwhile is queued in rerun and rerunGen; RunNow calls are
	// counted in extra.
	executing bool
	rerun     bool
	rerunGen  uint64
	extra     int
}

// New creates a stopped task. The name tags log lines.
func New(name string, clk clock.Clock, opts ...Option) *Task {
	t := &Task{
		name:   name,
		clock:  clk,
		logger: log.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Name returns the task's tag.
func (t *Task) Name() string {
	return t.name
}

// Start (re)configures the task and arms it, replacing any pending timer.
//
// A nil cb keeps the current callback and a zero interval keeps the current
// interval without arming a timer. If immediate is set the callback runs
// synchronously first; while a callback is in progress it runs as soon as that
// callback returns instead. Without any callback the configuration is stored but
// the task stays stopped.
func (t *Task) Start(cb Func, interval time.Duration, immediate bool, repeat Repeat) error {
	if interval < 0 {
		return fmt.Errorf("%w: %s", ErrNegativeInterval, interval)
	}

	t.mu.Lock()
	t.cancelLocked()
	if cb != nil {
		t.callback = cb
	}
	if interval != 0 {
		t.interval = interval
	}
	switch repeat {
	case RepeatOnce:
		t.repeat = false
	case RepeatForever:
		t.repeat = true
	}

	if t.callback == nil {
		t.running = false
		t.mu.Unlock()
		t.logger.Printf("timer %s has no callback, not starting", t.name)
		return nil
	}

	t.running = true
	gen := t.gen
	if !immediate {
		if interval == 0 {
			t.running = false
		} else {
			t.armLocked()
		}
	}
	iv := t.interval
	t.mu.Unlock()

	t.logger.Printf("starting timer %s with interval %s, immediate %t", t.name, iv, immediate)
	if immediate {
		t.execute(gen)
	}
	return nil
}

// Stop disarms the task. The pending timer is cancelled and any fire
// already in flight is discarded. Stop is idempotent.
func (t *Task) Stop() {
	t.mu.Lock()
	wasRunning := t.running
	t.running = false
	t.cancelLocked()
	t.mu.Unlock()

	if wasRunning {
		t.logger.Printf("stopping timer %s because stop command received", t.name)
	}
}

// SetCallback replaces the callback without touching the schedule. A nil cb
// is ignored.
func (t *Task) SetCallback(cb Func) {
	if cb == nil {
		return
	}
	t.mu.Lock()
	t.callback = cb
	t.mu.Unlock()
}

// SetInterval changes the delay between runs. Zero stops the task; any
// other value re-arms it with the current callback and repeat setting.
func (t *Task) SetInterval(interval time.Duration, immediate bool) error {
	if interval < 0 {
		return fmt.Errorf("%w: %s", ErrNegativeInterval, interval)
	}
	if interval == 0 {
		t.logger.Printf("stopping timer %s because interval is set to 0", t.name)
		t.Stop()
		return nil
	}
	return t.Start(nil, interval, immediate, RepeatKeep)
}

// State returns a snapshot of the task.
func (t *Task) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := State{
		Name:     t.name,
		Running:  t.running,
		Armed:    t.timer != nil,
		Interval: t.interval,
		Repeat:   t.repeat,
		Runs:     t.runs,
		LastRun:  t.lastRun,
	}
	if t.timer != nil {
		s.NextRun = t.nextRun
	}
	return s
}

// RunNow runs the callback once without touching the schedule. It reports
// false when there is no callback.
func (t *Task) RunNow() bool {
	t.mu.Lock()
	if t.callback == nil {
		t.mu.Unlock()
		return false
	}
	if t.executing {
		t.extra++
		t.mu.Unlock()
		return true
	}
	t.executing = true
	cb := t.callback
	t.runs++
	t.lastRun = t.clock.Now()
	t.mu.Unlock()

	t.invoke(cb)

	t.mu.Lock()
	gen, ok := t.drainLocked(0, false)
	t.executing = false
	if ok {
		t.rescheduleLocked(gen)
	}
	t.mu.Unlock()
	return true
}

// execute is the fire path. It reports whether the callback ran or was
// queued; a fire for a stopped task or a superseded timer does nothing.
func (t *Task) execute(gen uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.running || gen != t.gen {
		return false
	}
	if t.executing {
		t.rerun = true
		t.rerunGen = gen
		return true
	}

	t.executing = true
	t.timer = nil
	cb := t.callback
	t.runs++
	t.lastRun = t.clock.Now()
	t.mu.Unlock()

	t.invoke(cb)

	t.mu.Lock()
	gen, ok := t.drainLocked(gen, true)
	t.executing = false
	if ok {
		t.rescheduleLocked(gen)
	}
	return true
}

// drainLocked runs the callbacks requested while one was executing. It
// returns the generation that decides the reschedule and whether a scheduled
// run took place. Must be called with t.mu held and executing set.
func (t *Task) drainLocked(gen uint64, scheduled bool) (uint64, bool) {
	for {
		switch {
		case t.rerun:
			t.rerun = false
			if !t.running || t.rerunGen != t.gen {
				continue
			}
			gen, scheduled = t.rerunGen, true
			t.timer = nil
		case t.extra > 0:
			t.extra--
		default:
			return gen, scheduled
		}

		cb := t.callback
		t.runs++
		t.lastRun = t.clock.Now()
		t.mu.Unlock()

		t.invoke(cb)

		t.mu.Lock()
	}
}

// rescheduleLocked applies the repeat setting after a scheduled run.
// Must be called with t.mu held.
func (t *Task) rescheduleLocked(gen uint64) {
	if !t.running || gen != t.gen {
		// Reconfigured or stopped by the callback or another caller.
		return
	}
	if t.repeat && t.interval > 0 {
		t.cancelLocked()
		t.armLocked()
	} else {
		t.running = false
		t.cancelLocked()
	}
}

func (t *Task) invoke(cb Func) {
	defer func() {
		if r := recover(); r != nil {
			t.logger.Printf("timer %s callback panicked: %v", t.name, r)
		}
	}()
	cb()
}

// armLocked schedules one fire for the current interval.
// Must be called with t.mu held and no timer pending.
func (t *Task) armLocked() {
	gen := t.gen
	t.nextRun = t.clock.Now().Add(t.interval)
	t.timer = t.clock.AfterFunc(t.interval, func() {
		t.execute(gen)
	})
}

// cancelLocked stops the pending timer and invalidates in-flight fires.
// Must be called with t.mu held.
func (t *Task) cancelLocked() {
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.gen++
}
