// Websocket decision stream. Observers connect to /api/v1/stream and
// receive one JSON frame per tick with the full decision batch. Slow
// clients are dropped rather than allowed to back up the tick loop.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/talgya/depot-fleet/internal/protocol"
)

const maxStreamClients = 8

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Observation stream is read-only and unauthenticated, same stance
	// as the public GET endpoints.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// StreamFrame is one per-tick message on the observer stream.
type StreamFrame struct {
	Tick      uint64                       `json:"tick"`
	Decisions map[string]protocol.Decision `json:"decisions"`
}

// Hub fans decision batches out to connected websocket observers.
type Hub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]bool
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[*websocket.Conn]bool)}
}

// ClientCount returns the number of connected observers.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Broadcast sends one tick's decisions to every observer. Called from the
// tick loop; write failures disconnect the client.
func (h *Hub) Broadcast(tick uint64, decisions map[string]protocol.Decision) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.clients) == 0 {
		return
	}

	payload, err := json.Marshal(StreamFrame{Tick: tick, Decisions: decisions})
	if err != nil {
		slog.Error("stream frame marshal failed", "error", err)
		return
	}

	for conn := range h.clients {
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			slog.Debug("dropping slow stream client", "error", err)
			conn.Close()
			delete(h.clients, conn)
		}
	}
}

func (h *Hub) handleStream(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	full := len(h.clients) >= maxStreamClients
	h.mu.Unlock()
	if full {
		http.Error(w, "too many observers", http.StatusServiceUnavailable)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "error", err)
		return
	}

	h.mu.Lock()
	h.clients[conn] = true
	count := len(h.clients)
	h.mu.Unlock()
	slog.Info("observer connected", "observers", count)

	// Reader goroutine: discard inbound frames, detect disconnect.
	go func() {
		defer func() {
			h.mu.Lock()
			delete(h.clients, conn)
			h.mu.Unlock()
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
