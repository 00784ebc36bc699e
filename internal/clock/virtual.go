package clock

import (
	"sync"
	"time"
)

// VirtualClock is a controllable clock for time-travel testing.
// Time only moves on Advance or Set, so refresh schedules can be
// exercised deterministically without waiting.
//
// Scheduled work fires in deadline order, FIFO for equal deadlines. While a
// callback runs the clock reads exactly that callback's deadline, so a timer
// re-armed from inside a callback is scheduled relative to its fire time.
// Callbacks run without the clock lock held and may schedule or stop timers.
//
// Thread-safe for concurrent use.
type VirtualClock struct {
	mu      sync.Mutex
	current time.Time
	seq     uint64
	timers  []*virtualTimer
}

type virtualTimer struct {
	clock    *VirtualClock
	deadline time.Time
	seq      uint64
	fire     func(now time.Time)
}

// NewVirtualClock creates a VirtualClock starting at the given time.
func NewVirtualClock(start time.Time) *VirtualClock {
	return &VirtualClock{
		current: start,
	}
}

// Now returns the current virtual time.
func (c *VirtualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Since returns the virtual duration elapsed since t.
func (c *VirtualClock) Since(t time.Time) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current.Sub(t)
}

// After returns a channel that receives the virtual time once the clock
// has advanced past the current time plus d. If d is zero or negative the
// channel fires immediately.
func (c *VirtualClock) After(d time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)

	c.mu.Lock()
	defer c.mu.Unlock()

	if d <= 0 {
		ch <- c.current
		return ch
	}

	c.scheduleLocked(d, func(now time.Time) {
		ch <- now
	})
	return ch
}

// AfterFunc schedules f to run once the clock has advanced by d.
// A non-positive d fires on the next Advance or Set, including Advance(0).
func (c *VirtualClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.scheduleLocked(d, func(time.Time) {
		f()
	})
}

// Pending returns the number of scheduled timers and waiters that have
// not fired or been stopped.
func (c *VirtualClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.timers)
}

// NextDeadline returns the earliest scheduled deadline, if any.
func (c *VirtualClock) NextDeadline() (time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.timers) == 0 {
		return time.Time{}, false
	}
	next := c.timers[0]
	for _, t := range c.timers[1:] {
		if t.before(next) {
			next = t
		}
	}
	return next.deadline, true
}

// Advance moves the virtual clock forward by the given duration.
// It fires any timers whose deadlines have been reached.
// Panics if d is negative.
func (c *VirtualClock) Advance(d time.Duration) {
	if d < 0 {
		panic("clock: cannot advance by negative duration")
	}

	c.mu.Lock()
	target := c.current.Add(d)
	c.mu.Unlock()

	c.advanceTo(target)
}

// Set sets the virtual clock to an exact time.
// It fires any timers whose deadlines have been reached.
// Panics if t is before the current time.
func (c *VirtualClock) Set(t time.Time) {
	c.mu.Lock()
	if t.Before(c.current) {
		c.mu.Unlock()
		panic("clock: cannot set time to the past")
	}
	c.mu.Unlock()

	c.advanceTo(t)
}

// advanceTo fires due timers one at a time, moving the clock to each
// deadline before its callback runs, and finally settles on target.
func (c *VirtualClock) advanceTo(target time.Time) {
	for {
		c.mu.Lock()
		t := c.popDueLocked(target)
		if t == nil {
			if target.After(c.current) {
				c.current = target
			}
			c.mu.Unlock()
			return
		}
		if t.deadline.After(c.current) {
			c.current = t.deadline
		}
		now := c.current
		c.mu.Unlock()

		t.fire(now)
	}
}

// scheduleLocked must be called with c.mu held.
func (c *VirtualClock) scheduleLocked(d time.Duration, fire func(time.Time)) *virtualTimer {
	if d < 0 {
		d = 0
	}
	c.seq++
	t := &virtualTimer{
		clock:    c,
		deadline: c.current.Add(d),
		seq:      c.seq,
		fire:     fire,
	}
	c.timers = append(c.timers, t)
	return t
}

// popDueLocked removes and returns the earliest timer due at or before
// target. Must be called with c.mu held.
func (c *VirtualClock) popDueLocked(target time.Time) *virtualTimer {
	idx := -1
	for i, t := range c.timers {
		if t.deadline.After(target) {
			continue
		}
		if idx < 0 || t.before(c.timers[idx]) {
			idx = i
		}
	}
	if idx < 0 {
		return nil
	}
	t := c.timers[idx]
	c.timers = append(c.timers[:idx], c.timers[idx+1:]...)
	return t
}

// removeLocked must be called with c.mu held.
func (c *VirtualClock) removeLocked(target *virtualTimer) bool {
	for i, t := range c.timers {
		if t == target {
			c.timers = append(c.timers[:i], c.timers[i+1:]...)
			return true
		}
	}
	return false
}

func (t *virtualTimer) before(o *virtualTimer) bool {
	if t.deadline.Equal(o.deadline) {
		return t.seq < o.seq
	}
	return t.deadline.Before(o.deadline)
}

// Stop cancels the timer if it has not fired yet.
func (t *virtualTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	return t.clock.removeLocked(t)
}
