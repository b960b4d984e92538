package handlers

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	eventWriteWait = 10 * time.Second
	eventPingEvery = 30 * time.Second

	// Per-client send buffer. A watcher that falls this far behind is
	// dropped rather than allowed to stall ingestion.
	eventSendBuffer = 64
)

var eventUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The dashboard is same-origin in production but tests and local
	// tooling connect from anywhere; events are read-only.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// EventHub pushes device activity events to WebSocket watchers such as
// dashboards. Broadcast never blocks: slow consumers lose events and are
// eventually disconnected by their own stalled socket.
type EventHub struct {
	log Logger

	mu      sync.RWMutex
	clients map[*eventClient]struct{}
	closed  bool
}

type eventClient struct {
	conn *websocket.Conn
	send chan Event
}

// NewEventHub creates a hub ready to accept watchers.
func NewEventHub(log Logger) *EventHub {
	return &EventHub{
		log:     log,
		clients: make(map[*eventClient]struct{}),
	}
}

// RegisterRoutes registers the event stream route.
func (h *EventHub) RegisterRoutes(mux *http.ServeMux) {
	if mux == nil {
		mux = http.DefaultServeMux
	}
	mux.HandleFunc("/api/events", h.HandleEvents)
}

// Broadcast sends the event to every connected watcher without blocking.
func (h *EventHub) Broadcast(event Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients {
		select {
		case client.send <- event:
		default:
			// Buffer full; the writer goroutine will notice the backlog
			// when its next write times out.
		}
	}
}

// ClientCount returns the number of connected watchers.
func (h *EventHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects all watchers and rejects future connections.
func (h *EventHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for client := range h.clients {
		close(client.send)
		client.conn.Close()
		delete(h.clients, client)
	}
}

// HandleEvents handles GET /api/events - upgrades to a WebSocket and
// streams device events until the client disconnects.
func (h *EventHub) HandleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := eventUpgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		h.log.Debug("WebSocket upgrade failed", "ip", getRealIP(r), "error", err.Error())
		return
	}

	client := &eventClient{
		conn: conn,
		send: make(chan Event, eventSendBuffer),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.clients[client] = struct{}{}
	total := len(h.clients)
	h.mu.Unlock()

	h.log.Info("Event watcher connected", "ip", getRealIP(r), "watchers", total)

	go h.writeLoop(client)
	h.readLoop(client)
}

// readLoop drains incoming frames; watchers are not expected to send
// anything, but reading is what surfaces close frames and errors.
func (h *EventHub) readLoop(client *eventClient) {
	defer h.remove(client)
	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *EventHub) writeLoop(client *eventClient) {
	ping := time.NewTicker(eventPingEvery)
	defer ping.Stop()

	for {
		select {
		case event, ok := <-client.send:
			if !ok {
				return
			}
			client.conn.SetWriteDeadline(time.Now().Add(eventWriteWait))
			if err := client.conn.WriteJSON(event); err != nil {
				h.remove(client)
				return
			}
		case <-ping.C:
			client.conn.SetWriteDeadline(time.Now().Add(eventWriteWait))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.remove(client)
				return
			}
		}
	}
}

func (h *EventHub) remove(client *eventClient) {
	h.mu.Lock()
	_, present := h.clients[client]
	if present {
		delete(h.clients, client)
	}
	h.mu.Unlock()

	if present {
		client.conn.Close()
		h.log.Debug("Event watcher disconnected")
	}
}
