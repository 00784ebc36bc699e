// Package server exposes the auto-refresh pages over HTTP and WebSocket.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/SmitUplenchwar2687/Autorefresh/internal/clock"
	"github.com/SmitUplenchwar2687/Autorefresh/internal/page"
	"github.com/SmitUplenchwar2687/Autorefresh/internal/poll"
	"github.com/SmitUplenchwar2687/Autorefresh/internal/recorder"
)

// Page is a controller served by the server, with the fetcher feeding it.
type Page struct {
	Controller *page.Controller
	Fetcher    *poll.Fetcher
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithRecorder serves the recorder's history on /api/events.
func WithRecorder(r *recorder.Recorder) Option {
	return func(s *Server) {
		s.recorder = r
	}
}

// Server is the autorefresh HTTP server.
type Server struct {
	httpServer *http.Server
	clock      clock.Clock
	router     chi.Router
	hub        *Hub
	recorder   *recorder.Recorder
	logger     *log.Logger

	mu    sync.RWMutex
	pages map[string]*Page
}

// New creates a new server.
func New(addr string, clk clock.Clock, opts ...Option) *Server {
	s := &Server{
		clock:  clk,
		logger: log.Default(),
		pages:  make(map[string]*Page),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.hub = NewHub(s.logger)
	s.hub.OnMessage = s.handleMessage
	s.routes()
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Hub returns the WebSocket hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// AddPage serves p and attaches a view broadcasting its changes. The returned
// func publishes fetched snapshots to WebSocket clients.
func (s *Server) AddPage(p *Page) func(*poll.Snapshot) {
	name := p.Controller.Name()
	s.mu.Lock()
	s.pages[name] = p
	s.mu.Unlock()

	p.Controller.Attach(NewHubView(s.hub, name))
	return func(snap *poll.Snapshot) {
		s.hub.Broadcast(Message{Type: MsgData, Page: name, Data: snap})
	}
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(LoggingMiddleware(s.logger, s.clock))

	r.Get("/", s.handleRoot)
	r.Get("/health", s.handleHealth)
	r.Get("/dashboard", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/dashboard/", http.StatusMovedPermanently)
	})
	r.Get("/dashboard/", s.handleDashboard)
	r.Get("/ws", s.hub.HandleWebSocket)

	r.Route("/api", func(r chi.Router) {
		r.Get("/events", s.handleEvents)
		r.Get("/pages", s.handleListPages)
		r.Route("/pages/{page}", func(r chi.Router) {
			r.Get("/", s.handleGetPage)
			r.Put("/", s.handleUpdatePage)
			r.Post("/form", s.handleForm)
			r.Post("/stop", s.handleStop)
			r.Post("/refresh", s.handleRefresh)
			r.Post("/block", s.handleBlock)
			r.Get("/data", s.handleData)
		})
	})
	s.router = r
}

// handleRoot serves a welcome message.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"service": "autorefresh",
		"status":  "running",
		"time":    s.clock.Now().Format(time.RFC3339),
	})
}

// handleHealth returns server health status.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(DashboardHTML))
}

func (s *Server) handleListPages(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	names := make([]string, 0, len(s.pages))
	for name := range s.pages {
		names = append(names, name)
	}
	s.mu.RUnlock()
	sort.Strings(names)

	out := make([]PageResponse, 0, len(names))
	for _, name := range names {
		p, ok := s.page(name)
		if !ok {
			continue
		}
		resp, err := s.pageResponse(r.Context(), p)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		out = append(out, resp)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetPage(w http.ResponseWriter, r *http.Request) {
	p, ok := s.lookup(w, r)
	if !ok {
		return
	}
	s.respondWithPage(w, r, p)
}

func (s *Server) handleUpdatePage(w http.ResponseWriter, r *http.Request) {
	p, ok := s.lookup(w, r)
	if !ok {
		return
	}
	var req UpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := p.Controller.Update(r.Context(), req.Params()); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.respondWithPage(w, r, p)
}

func (s *Server) handleForm(w http.ResponseWriter, r *http.Request) {
	p, ok := s.lookup(w, r)
	if !ok {
		return
	}
	var req FormRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := p.Controller.ApplyFormSeconds(r.Context(), req.Active, req.IntervalSeconds); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.respondWithPage(w, r, p)
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	p, ok := s.lookup(w, r)
	if !ok {
		return
	}
	off := false
	if err := p.Controller.Update(r.Context(), page.Params{Active: &off}); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondWithPage(w, r, p)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	p, ok := s.lookup(w, r)
	if !ok {
		return
	}
	if err := p.Controller.RefreshNow(r.Context()); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	s.respondWithPage(w, r, p)
}

func (s *Server) handleBlock(w http.ResponseWriter, r *http.Request) {
	p, ok := s.lookup(w, r)
	if !ok {
		return
	}
	var req BlockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	p.Controller.Block(req.Blocked)
	s.respondWithPage(w, r, p)
}

func (s *Server) handleData(w http.ResponseWriter, r *http.Request) {
	p, ok := s.lookup(w, r)
	if !ok {
		return
	}
	if p.Fetcher == nil {
		writeError(w, http.StatusNotFound, "page has no data source")
		return
	}
	snap := p.Fetcher.Last()
	if snap == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// handleEvents serves the refresh history.
// Query: page (repeatable), failed=true, limit=N (most recent N).
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.recorder == nil {
		writeJSON(w, http.StatusOK, []recorder.Event{})
		return
	}
	q := r.URL.Query()
	f := recorder.Filter{Pages: q["page"], FailedOnly: q.Get("failed") == "true"}
	events := s.recorder.Query(f)

	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		if n < len(events) {
			events = events[len(events)-n:]
		}
	}
	if events == nil {
		events = []recorder.Event{}
	}
	writeJSON(w, http.StatusOK, events)
}

// handleMessage applies an update sent by a WebSocket client.
func (s *Server) handleMessage(msg Message) {
	if msg.Type != MsgUpdate {
		return
	}
	p, ok := s.page(msg.Page)
	if !ok {
		s.logger.Printf("websocket update for unknown page %q", msg.Page)
		return
	}
	params := page.Params{Active: msg.Active}
	if msg.Interval != nil {
		iv := millis(*msg.Interval)
		params.Interval = &iv
	}
	if err := p.Controller.Update(context.Background(), params); err != nil {
		s.logger.Printf("websocket update for %s: %v", msg.Page, err)
	}
}

func (s *Server) page(name string) (*Page, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.pages[name]
	return p, ok
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*Page, bool) {
	name := chi.URLParam(r, "page")
	p, ok := s.page(name)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown page "+strconv.Quote(name))
	}
	return p, ok
}

func (s *Server) respondWithPage(w http.ResponseWriter, r *http.Request, p *Page) {
	resp, err := s.pageResponse(r.Context(), p)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) pageResponse(ctx context.Context, p *Page) (PageResponse, error) {
	snap, err := p.Controller.Snapshot(ctx)
	if err != nil {
		return PageResponse{}, err
	}
	return newPageResponse(snap), nil
}

// Start begins listening. It blocks until the server is shut down.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	return s.StartOnListener(ln)
}

// StartOnListener begins serving on the provided listener.
// Useful for tests that need to pick an ephemeral port.
func (s *Server) StartOnListener(ln net.Listener) error {
	s.logger.Printf("autorefresh server listening on %s", ln.Addr().String())
	err := s.httpServer.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown gracefully shuts down the server and disconnects WebSocket
// clients.
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.Close()
	return s.httpServer.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
