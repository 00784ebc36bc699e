// Package page ties a repeating task to the auto-refresh widget of one page.
//
// The Controller owns the widget's settings (active flag and interval),
// keeps them persisted through a settings.Store, and mirrors every change to
// the attached views. Views replace the checkbox and number field of the web
// interface; they only display state and never own it.
package page

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/SmitUplenchwar2687/Autorefresh/internal/refresh"
	"github.com/SmitUplenchwar2687/Autorefresh/internal/settings"
)

// Reasons reported to views when the active control is disabled.
const (
	ReasonNoInterval = "automatic refresh needs an interval greater than 0"
	ReasonBlocked    = "automatic refresh is blocked on this page"
)

// View displays a controller's widget.
type View interface {
	SyncActive(active bool)
	SyncInterval(interval time.Duration)
	SyncActiveEnabled(enabled bool, reason string)
}

// Settings are the widget values of a page.
type Settings struct {
	Active   bool
	Interval time.Duration
}

// Params is a partial settings update. Nil fields are left unchanged.
type Params struct {
	Active   *bool
	Interval *time.Duration
}

// Snapshot is the full state of a page for rendering.
type Snapshot struct {
	Page          string
	Settings      Settings
	ActiveEnabled bool
	Reason        string
	Blocked       bool
	Task          refresh.State
	Refreshes     int64
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithDefaults sets the values used when nothing is persisted.
func WithDefaults(s Settings) Option {
	return func(c *Controller) {
		c.settings = s
	}
}

// WithWork installs the refresh work on the task. Every run is counted.
func WithWork(work refresh.Func) Option {
	return func(c *Controller) {
		c.work = work
	}
}

// WithBlocked starts the controller blocked.
func WithBlocked(blocked bool) Option {
	return func(c *Controller) {
		c.blocked = blocked
	}
}

// Controller drives one page's auto-refresh.
type Controller struct {
	name   string
	task   *refresh.Task
	store  *settings.Store
	logger *log.Logger
	work   refresh.Func

	mu            sync.Mutex
	settings      Settings
	blocked       bool
	activeEnabled bool
	reason        string
	views         map[int]View
	nextView      int
}

// New creates a controller for page name driving task.
func New(name string, task *refresh.Task, store *settings.Store, opts ...Option) *Controller {
	c := &Controller{
		name:          name,
		task:          task,
		store:         store,
		logger:        log.Default(),
		activeEnabled: true,
		views:         make(map[int]View),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.work != nil {
		task.SetCallback(c.run)
	}
	return c
}

// Name returns the page name.
func (c *Controller) Name() string {
	return c.name
}

// Task returns the driven task.
func (c *Controller) Task() *refresh.Task {
	return c.task
}

// Attach adds a view and brings it up to date. The returned func detaches it.
func (c *Controller) Attach(v View) (detach func()) {
	c.mu.Lock()
	id := c.nextView
	c.nextView++
	c.views[id] = v
	s, enabled, reason := c.settings, c.activeEnabled, c.reason
	c.mu.Unlock()

	v.SyncActiveEnabled(enabled, reason)
	v.SyncActive(s.Active)
	v.SyncInterval(s.Interval)

	return func() { c.detach(id) }
}

func (c *Controller) detach(id int) {
	c.mu.Lock()
	delete(c.views, id)
	c.mu.Unlock()
}

// Settings returns the current widget values.
func (c *Controller) Settings() Settings {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.settings
}

// Update applies p, syncs the views and restarts or stops the task. An
// active page with an interval runs its work immediately and then repeats.
// Nothing is persisted.
func (c *Controller) Update(ctx context.Context, p Params) error {
	if p.Interval != nil && *p.Interval < 0 {
		return fmt.Errorf("updating page %s: %w", c.name, refresh.ErrNegativeInterval)
	}

	c.mu.Lock()
	if p.Active != nil {
		c.settings.Active = *p.Active
	}
	if p.Interval != nil {
		c.settings.Interval = *p.Interval
	}
	s := c.settings
	c.mu.Unlock()

	c.logger.Printf("updating timer %s: active %t, interval %s", c.name, s.Active, s.Interval)
	c.each(func(v View) {
		v.SyncActive(s.Active)
		v.SyncInterval(s.Interval)
	})

	if s.Active && s.Interval > 0 {
		return c.task.SetInterval(s.Interval, true)
	}
	c.task.Stop()
	c.each(func(v View) { v.SyncActive(false) })
	return nil
}

// Load restores the persisted values and applies them the way a freshly
// loaded page does. Values that are not persisted keep their defaults.
func (c *Controller) Load(ctx context.Context) error {
	active, activeOK, err := c.store.Active(ctx, c.name)
	if err != nil {
		return err
	}
	interval, intervalOK, err := c.store.Interval(ctx, c.name)
	if err != nil {
		return err
	}

	c.mu.Lock()
	if activeOK {
		c.settings.Active = active
	}
	if intervalOK {
		c.settings.Interval = interval
	}
	s := c.settings
	c.mu.Unlock()

	if s.Active {
		if err := c.task.SetInterval(s.Interval, false); err != nil {
			return err
		}
	}
	c.each(func(v View) {
		v.SyncActive(s.Active)
		v.SyncInterval(s.Interval)
	})

	c.RefreshActiveControl()
	s = c.Settings()
	return c.ApplyForm(ctx, s.Active, s.Interval)
}

// RefreshActiveControl enables the active control, or disables it and
// clears the active flag when there is no interval or the page is blocked.
// It reports whether the control is enabled.
func (c *Controller) RefreshActiveControl() bool {
	c.mu.Lock()
	switch {
	case c.blocked:
		c.activeEnabled, c.reason = false, ReasonBlocked
	case c.settings.Interval == 0:
		c.activeEnabled, c.reason = false, ReasonNoInterval
	default:
		c.activeEnabled, c.reason = true, ""
	}
	if !c.activeEnabled {
		c.settings.Active = false
	}
	enabled, reason := c.activeEnabled, c.reason
	c.mu.Unlock()

	c.each(func(v View) {
		v.SyncActiveEnabled(enabled, reason)
		if !enabled {
			v.SyncActive(false)
		}
	})
	return enabled
}

// ApplyForm stores the values entered in the widget. An active page is
// re-armed without running immediately and both values are persisted; an
// inactive page is stopped and only the flag is persisted.
func (c *Controller) ApplyForm(ctx context.Context, active bool, interval time.Duration) error {
	if interval < 0 {
		return fmt.Errorf("applying form for page %s: %w", c.name, refresh.ErrNegativeInterval)
	}

	c.mu.Lock()
	c.settings.Interval = interval
	c.settings.Active = active
	c.mu.Unlock()

	c.each(func(v View) { v.SyncInterval(interval) })
	if !c.RefreshActiveControl() {
		active = false
	}

	if active {
		if err := c.task.SetInterval(interval, false); err != nil {
			return err
		}
		if err := c.store.SetInterval(ctx, c.name, interval); err != nil {
			return err
		}
		if err := c.store.SetActive(ctx, c.name, true); err != nil {
			return err
		}
		c.logger.Printf("refresh interval for %s set to %s", c.name, interval)
		c.each(func(v View) { v.SyncActive(true) })
		return nil
	}

	if err := c.store.SetActive(ctx, c.name, false); err != nil {
		return err
	}
	c.task.Stop()
	c.each(func(v View) { v.SyncActive(false) })
	return nil
}

// ApplyFormSeconds is ApplyForm with the interval in seconds, as the widget's
// number field holds it.
func (c *Controller) ApplyFormSeconds(ctx context.Context, active bool, seconds float64) error {
	return c.ApplyForm(ctx, active, time.Duration(seconds*float64(time.Second)))
}

// Block blocks or unblocks automatic refresh. Blocking stops the task.
func (c *Controller) Block(blocked bool) {
	c.mu.Lock()
	c.blocked = blocked
	c.mu.Unlock()

	if !c.RefreshActiveControl() {
		c.task.Stop()
	}
}

// RefreshNow runs the work once. An active page restarts its cycle from now.
func (c *Controller) RefreshNow(ctx context.Context) error {
	s := c.Settings()
	if s.Active && s.Interval > 0 {
		return c.task.SetInterval(s.Interval, true)
	}
	if c.work == nil || !c.task.RunNow() {
		return fmt.Errorf("page %s has no refresh work", c.name)
	}
	return nil
}

// Snapshot returns the page state together with its refresh count.
func (c *Controller) Snapshot(ctx context.Context) (Snapshot, error) {
	n, err := c.store.Refreshes(ctx, c.name)
	if err != nil {
		return Snapshot{}, err
	}

	c.mu.Lock()
	snap := Snapshot{
		Page:          c.name,
		Settings:      c.settings,
		ActiveEnabled: c.activeEnabled,
		Reason:        c.reason,
		Blocked:       c.blocked,
	}
	c.mu.Unlock()

	snap.Task = c.task.State()
	snap.Refreshes = n
	return snap, nil
}

func (c *Controller) run() {
	c.work()
	if _, err := c.store.CountRefresh(context.Background(), c.name); err != nil {
		c.logger.Printf("page %s: %v", c.name, err)
	}
}

func (c *Controller) each(fn func(View)) {
	c.mu.Lock()
	views := make([]View, 0, len(c.views))
	for _, v := range c.views {
		views = append(views, v)
	}
	c.mu.Unlock()

	for _, v := range views {
		fn(v)
	}
}
