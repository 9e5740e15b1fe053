// Package stream pushes neighbor-set updates to external observers
// over websockets. Robot controllers or dashboards subscribe to learn
// "who can I talk to" without polling the simulator.
package stream

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/signalsfoundry/swarm-comms-simulator/internal/logging"
)

const writeTimeout = 5 * time.Second

// NeighborUpdate is the JSON frame sent when a robot's published
// neighbor set changes.
type NeighborUpdate struct {
	Type      string    `json:"type"`
	Address   string    `json:"address"`
	Neighbors []string  `json:"neighbors"`
	SentAt    time.Time `json:"sent_at"`
}

// Hub upgrades HTTP connections to websockets and fans neighbor
// updates out to every connected client.
type Hub struct {
	log      logging.Logger
	upgrader websocket.Upgrader

	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}
}

// NewHub creates a hub with no connected clients.
func NewHub(log logging.Logger) *Hub {
	if log == nil {
		log = logging.Noop()
	}
	return &Hub{
		log: log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Observers are local tooling; no origin policy.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		conns: make(map[*websocket.Conn]struct{}),
	}
}

// ServeHTTP upgrades the request and keeps the connection registered
// until the peer goes away. Inbound frames are read and discarded;
// the stream is one-way.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn(r.Context(), "websocket upgrade failed",
			logging.String("error", err.Error()))
		return
	}

	h.mu.Lock()
	h.conns[conn] = struct{}{}
	n := len(h.conns)
	h.mu.Unlock()
	h.log.Info(r.Context(), "observer connected", logging.Int("observers", n))

	go h.readLoop(conn)
}

// PublishNeighbors sends one NeighborUpdate frame to every connected
// observer. Connections that fail to accept the write are dropped.
func (h *Hub) PublishNeighbors(address string, neighbors []string) {
	frame, err := json.Marshal(NeighborUpdate{
		Type:      "neighbors",
		Address:   address,
		Neighbors: neighbors,
		SentAt:    time.Now().UTC(),
	})
	if err != nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.conns {
		conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
			conn.Close()
			delete(h.conns, conn)
		}
	}
}

// Observers returns the number of connected clients.
func (h *Hub) Observers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

// Close disconnects every observer.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.conns {
		conn.Close()
		delete(h.conns, conn)
	}
}

func (h *Hub) readLoop(conn *websocket.Conn) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	h.mu.Lock()
	if _, ok := h.conns[conn]; ok {
		conn.Close()
		delete(h.conns, conn)
	}
	n := len(h.conns)
	h.mu.Unlock()
	h.log.Info(context.Background(), "observer disconnected", logging.Int("observers", n))
}
