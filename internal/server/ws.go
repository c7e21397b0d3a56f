package server

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/greenwave-ems/greenwave/internal/sim"
)

const wsWriteTimeout = 2 * time.Second

// wsMessage is the envelope pushed to websocket clients.
type wsMessage struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Hub pushes live telemetry and log events to connected websocket
// clients. It implements sim.Listener, so the controller drives it the
// same way it drives the recorder. Clients that fail a write are dropped.
type Hub struct {
	mu       sync.Mutex
	conns    map[*websocket.Conn]struct{}
	upgrader websocket.Upgrader
}

// NewHub creates an empty hub. Origin checking is left to the CORS layer
// of the HTTP router; the prototype accepts any websocket origin.
func NewHub() *Hub {
	return &Hub{
		conns: make(map[*websocket.Conn]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// HandleWS handles GET /ws/telemetry by upgrading the connection and
// registering it for broadcasts.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	h.mu.Lock()
	h.conns[conn] = struct{}{}
	n := len(h.conns)
	h.mu.Unlock()
	log.Printf("WebSocket client connected (%d total)", n)

	// Reads are discarded; the socket is push-only. The read loop exists
	// to notice the client going away.
	go func() {
		defer h.drop(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// drop removes and closes a connection. Connections already removed by
// a failed broadcast write are ignored, so the read goroutine noticing
// the same disconnect afterwards does not log it twice.
func (h *Hub) drop(conn *websocket.Conn) {
	h.mu.Lock()
	_, ok := h.conns[conn]
	if ok {
		delete(h.conns, conn)
		conn.Close()
	}
	n := len(h.conns)
	h.mu.Unlock()
	if ok {
		log.Printf("WebSocket client disconnected (%d total)", n)
	}
}

// broadcast sends a message to every client, dropping the ones that fail.
func (h *Hub) broadcast(msg wsMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("WebSocket marshal failed: %v", err)
		return
	}

	h.mu.Lock()
	var failed []*websocket.Conn
	for conn := range h.conns {
		conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			failed = append(failed, conn)
		}
	}
	for _, conn := range failed {
		delete(h.conns, conn)
		conn.Close()
	}
	h.mu.Unlock()
}

// PositionUpdated pushes the telemetry snapshot for every tick.
func (h *Hub) PositionUpdated(t sim.Telemetry) {
	h.broadcast(wsMessage{Type: "telemetry", Data: t})
}

// SignalModeChanged pushes signal mode flips so icon updates don't wait
// for the next snapshot.
func (h *Hub) SignalModeChanged(signalID string, mode sim.SignalMode) {
	h.broadcast(wsMessage{Type: "signal", Data: map[string]any{
		"signalId": signalID,
		"mode":     mode,
	}})
}

// EventAppended pushes drive log lines.
func (h *Hub) EventAppended(driveID string, e sim.Event) {
	h.broadcast(wsMessage{Type: "event", Data: e})
}

// DriveStarted announces a new drive session.
func (h *Hub) DriveStarted(driveID, routeID string) {
	h.broadcast(wsMessage{Type: "driveStarted", Data: map[string]string{
		"driveId": driveID,
		"routeId": routeID,
	}})
}

// DriveFinished announces drive completion.
func (h *Hub) DriveFinished(driveID string) {
	h.broadcast(wsMessage{Type: "driveFinished", Data: map[string]string{
		"driveId": driveID,
	}})
}
