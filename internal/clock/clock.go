package clock

import "time"

// Clock abstracts time so refresh tasks work with both real and virtual time.
// It is the host timer facility: AfterFunc schedules, Timer.Stop cancels.
type Clock interface {
	// Now returns the current time.
	Now() time.Time
	// Since returns the duration elapsed since t.
	Since(t time.Time) time.Duration
	// After returns a channel that receives the current time after duration d.
	After(d time.Duration) <-chan time.Time
	// AfterFunc calls f once after duration d and returns a handle that can
	// cancel the call.
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is a handle to a scheduled AfterFunc call.
type Timer interface {
	// Stop cancels the call. It reports false if the call already fired
	// or was already stopped.
	Stop() bool
}

// RealClock delegates to the standard time package.
type RealClock struct{}

func NewRealClock() *RealClock {
	return &RealClock{}
}

func (c *RealClock) Now() time.Time {
	return time.Now()
}

func (c *RealClock) Since(t time.Time) time.Duration {
	return time.Since(t)
}

func (c *RealClock) After(d time.Duration) <-chan time.Time {
	return time.After(d)
}

func (c *RealClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
