// Package server exposes the auto-refresh HTTP and WebSocket server for
// embedding.
package server

import (
	internalserver "github.com/SmitUplenchwar2687/Autorefresh/internal/server"
	"github.com/SmitUplenchwar2687/Autorefresh/pkg/clock"
)

// Server serves auto-refresh pages, the dashboard and the control API.
type Server = internalserver.Server

// Page is a controller served by the server, with the fetcher feeding it.
type Page = internalserver.Page

// Option configures a Server.
type Option = internalserver.Option

// Hub manages WebSocket clients and broadcasts widget changes.
type Hub = internalserver.Hub

// Message is a WebSocket message.
type Message = internalserver.Message

// DashboardHTML is the embedded single-page dashboard.
const DashboardHTML = internalserver.DashboardHTML

// WithLogger sets the logger.
var WithLogger = internalserver.WithLogger

// WithRecorder serves the refresh history of r.
var WithRecorder = internalserver.WithRecorder

// New creates a new server.
func New(addr string, clk clock.Clock, opts ...Option) *Server {
	return internalserver.New(addr, clk, opts...)
}
