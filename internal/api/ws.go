package api

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/yangwenmai/sofort/internal/engine"
)

const wsWriteTimeout = 5 * time.Second

// WSHub forwards controller events to websocket clients. Each connection
// gets its own subscription so a slow client only drops its own events.
type WSHub struct {
	events   *engine.Broadcaster
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
}

// NewWSHub creates a hub over events. origin "*" accepts any Origin header.
func NewWSHub(events *engine.Broadcaster, origin string) *WSHub {
	return &WSHub{
		events: events,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				o := r.Header.Get("Origin")
				return origin == "*" || o == "" || o == origin
			},
		},
		clients: make(map[*websocket.Conn]struct{}),
	}
}

// HandleWebSocket upgrades the connection, sends hello and then streams
// events until the client disconnects.
func (h *WSHub) HandleWebSocket(w http.ResponseWriter, r *http.Request, hello engine.Event) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "error", err)
		return
	}

	events, unsub := h.events.Subscribe()
	h.mu.Lock()
	h.clients[conn] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	slog.Debug("websocket client connected", "clients", n)

	defer func() {
		unsub()
		h.mu.Lock()
		delete(h.clients, conn)
		h.mu.Unlock()
		conn.Close()
	}()

	// Reads only detect the close; clients send nothing.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if hello.Time == "" {
		hello.Time = time.Now().UTC().Format(time.RFC3339Nano)
	}
	if err := h.write(conn, hello); err != nil {
		return
	}
	for {
		select {
		case <-done:
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			if err := h.write(conn, e); err != nil {
				slog.Debug("websocket write failed", "error", err)
				return
			}
		}
	}
}

func (h *WSHub) write(conn *websocket.Conn, e engine.Event) error {
	conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return conn.WriteJSON(e)
}

// Close disconnects every client.
func (h *WSHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(time.Second))
		conn.Close()
	}
}
