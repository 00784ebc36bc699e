// Package page exposes the auto-refresh widget controller for embedding.
package page

import (
	internalpage "github.com/SmitUplenchwar2687/Autorefresh/internal/page"
	"github.com/SmitUplenchwar2687/Autorefresh/internal/settings"
	"github.com/SmitUplenchwar2687/Autorefresh/pkg/refresh"
	"github.com/SmitUplenchwar2687/Autorefresh/pkg/storage"
)

// Controller binds a page's widget values to its refresh task.
type Controller = internalpage.Controller

// View displays a controller's widget.
type View = internalpage.View

// Settings are the widget values of a page.
type Settings = internalpage.Settings

// Params is a partial settings update. Nil fields are left unchanged.
type Params = internalpage.Params

// Snapshot is the full state of a page for rendering.
type Snapshot = internalpage.Snapshot

// Option configures a Controller.
type Option = internalpage.Option

const (
	ReasonNoInterval = internalpage.ReasonNoInterval
	ReasonBlocked    = internalpage.ReasonBlocked
)

var (
	WithLogger   = internalpage.WithLogger
	WithDefaults = internalpage.WithDefaults
	WithWork     = internalpage.WithWork
	WithBlocked  = internalpage.WithBlocked
)

// New creates a controller for page name driving task. The widget values
// are persisted on backend.
func New(name string, task *refresh.Task, backend storage.Storage, opts ...Option) *Controller {
	return internalpage.New(name, task, settings.New(backend), opts...)
}
