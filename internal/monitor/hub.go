// Package monitor exposes a small HTTP surface for watching and
// controlling a running self-play job: a liveness probe, a WebSocket feed
// of live stats, and a JWT-gated stop switch.
package monitor

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// StatsEvent is one broadcast snapshot of run progress.
type StatsEvent struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// wsConn wraps one subscriber connection with its outbound buffer.
type wsConn struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub fans a single run's stats feed out to every connected dashboard.
// Broadcasts are fire-and-forget: a slow or dead reader never blocks the
// self-play run, it just misses updates.
type Hub struct {
	mu    sync.RWMutex
	conns map[*wsConn]bool
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{conns: make(map[*wsConn]bool)}
}

func (h *Hub) register(c *wsConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[c] = true
}

func (h *Hub) unregister(c *wsConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.conns[c]; ok {
		delete(h.conns, c)
		close(c.send)
	}
}

// Broadcast sends event to every connected subscriber. A subscriber whose
// send buffer is full misses this message but stays registered.
func (h *Hub) Broadcast(event StatsEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Msg("monitor: failed to marshal stats event")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.conns {
		select {
		case c.send <- data:
		default:
			log.Warn().Msg("monitor: dropping stats event, subscriber buffer full")
		}
	}
}

// ConnectionCount reports the number of live subscribers.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}
