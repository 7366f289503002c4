// internal/api/hub.go
package api

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/user/gardencalm/internal/types"
)

const clientSendBuffer = 16

// Event is one frame pushed to a websocket client.
type Event struct {
	Type       string  `json:"type"`
	Text       string  `json:"text,omitempty"`
	Emotion    string  `json:"emotion,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
	At         string  `json:"at"`
}

type client struct {
	conn *websocket.Conn
	send chan Event
}

// Hub tracks live websocket connections per user so asynchronous results,
// deep-analysis insights in particular, can reach whoever is connected.
type Hub struct {
	mu      sync.RWMutex
	clients map[types.UserID]map[*client]struct{}
	log     *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		clients: make(map[types.UserID]map[*client]struct{}),
		log:     logger.With("component", "ws"),
	}
}

func (h *Hub) register(userID types.UserID, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[userID] == nil {
		h.clients[userID] = make(map[*client]struct{})
	}
	h.clients[userID][c] = struct{}{}
}

func (h *Hub) unregister(userID types.UserID, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if conns, ok := h.clients[userID]; ok {
		if _, ok := conns[c]; ok {
			delete(conns, c)
			close(c.send)
		}
		if len(conns) == 0 {
			delete(h.clients, userID)
		}
	}
}

// Push delivers an event to every connection the user has open. Returns
// the number of connections reached. Slow clients are skipped rather than
// blocking the caller.
func (h *Hub) Push(userID types.UserID, ev Event) int {
	if ev.At == "" {
		ev.At = time.Now().UTC().Format(time.RFC3339)
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for c := range h.clients[userID] {
		select {
		case c.send <- ev:
			delivered++
		default:
			h.log.Warn("dropping event for slow client", "user", userID, "type", ev.Type)
		}
	}
	return delivered
}

// Connections reports how many connections a user currently holds.
func (h *Hub) Connections(userID types.UserID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for userID, conns := range h.clients {
		for c := range conns {
			close(c.send)
			c.conn.Close()
		}
		delete(h.clients, userID)
	}
}
