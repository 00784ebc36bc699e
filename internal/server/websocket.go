package server

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/SmitUplenchwar2687/Autorefresh/internal/poll"
)

// Message types exchanged over /ws.
const (
	MsgActive        = "active"
	MsgInterval      = "interval"
	MsgActiveEnabled = "active_enabled"
	MsgData          = "data"
	MsgUpdate        = "update"
)

const writeWait = 5 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local dev tool.
	},
}

// Message is a WebSocket frame. Intervals are in milliseconds.
type Message struct {
	Type     string         `json:"type"`
	Page     string         `json:"page"`
	Active   *bool          `json:"update_active,omitempty"`
	Interval *float64       `json:"update_interval,omitempty"`
	Enabled  *bool          `json:"active_enabled,omitempty"`
	Reason   string         `json:"reason,omitempty"`
	Data     *poll.Snapshot `json:"data,omitempty"`
}

// Hub manages WebSocket clients and broadcasts page changes.
type Hub struct {
	// OnMessage receives frames sent by clients. Set before serving.
	OnMessage func(Message)

	logger  *log.Logger
	mu      sync.Mutex
	clients map[*websocket.Conn]bool
}

// NewHub creates a new WebSocket hub.
func NewHub(logger *log.Logger) *Hub {
	if logger == nil {
		logger = log.Default()
	}
	return &Hub{
		logger:  logger,
		clients: make(map[*websocket.Conn]bool),
	}
}

// HandleWebSocket upgrades the HTTP connection and registers the client.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Printf("websocket upgrade error: %v", err)
		return
	}

	h.mu.Lock()
	h.clients[conn] = true
	h.mu.Unlock()

	go h.readLoop(conn)
}

func (h *Hub) readLoop(conn *websocket.Conn) {
	defer h.remove(conn)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			h.logger.Printf("websocket: ignoring malformed message: %v", err)
			continue
		}
		if h.OnMessage != nil {
			h.OnMessage(msg)
		}
	}
}

func (h *Hub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	delete(h.clients, conn)
	h.mu.Unlock()
	conn.Close()
}

// Broadcast sends msg to all connected WebSocket clients.
func (h *Hub) Broadcast(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Printf("websocket marshal error: %v", err)
		return
	}

	// Writes are serialized; a connection allows one writer at a time.
	h.mu.Lock()
	defer h.mu.Unlock()

	for conn := range h.clients {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			h.logger.Printf("websocket write error: %v", err)
			conn.Close()
			// Don't delete during iteration; the read loop cleans up.
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		conn.Close()
	}
}

// HubView displays a page by broadcasting its control changes.
type HubView struct {
	hub  *Hub
	page string
}

// NewHubView creates a view of page on hub.
func NewHubView(hub *Hub, page string) *HubView {
	return &HubView{hub: hub, page: page}
}

func (v *HubView) SyncActive(active bool) {
	v.hub.Broadcast(Message{Type: MsgActive, Page: v.page, Active: &active})
}

func (v *HubView) SyncInterval(interval time.Duration) {
	ms := float64(interval.Milliseconds())
	v.hub.Broadcast(Message{Type: MsgInterval, Page: v.page, Interval: &ms})
}

func (v *HubView) SyncActiveEnabled(enabled bool, reason string) {
	v.hub.Broadcast(Message{Type: MsgActiveEnabled, Page: v.page, Enabled: &enabled, Reason: reason})
}
