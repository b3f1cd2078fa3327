package monitor

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/kharnhold/tacticsrl/internal/auth"
	"github.com/kharnhold/tacticsrl/internal/middleware"
)

const (
	writeWait  = 10 * time.Second
	sendBuffer = 16
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// StatsSource reports the current run snapshot on demand, used both to
// answer /healthz and to seed a freshly connected /ws subscriber.
type StatsSource func() any

// Server is the monitor's HTTP surface: health, a live WebSocket stats
// feed, and a JWT-gated stop switch wired to a running self-play job.
type Server struct {
	hub    *Hub
	jwtMgr *auth.JWTManager
	stats  StatsSource
	onStop func()
	log    zerolog.Logger
}

// NewServer builds a monitor server. onStop is invoked each time
// POST /admin/stop succeeds.
func NewServer(jwtMgr *auth.JWTManager, stats StatsSource, onStop func(), log zerolog.Logger) *Server {
	return &Server{hub: NewHub(), jwtMgr: jwtMgr, stats: stats, onStop: onStop, log: log}
}

// Handler builds the full routed, middleware-wrapped HTTP handler.
func (s *Server) Handler(corsOrigin string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("GET /ws", s.handleWS)
	mux.Handle("POST /admin/stop", auth.RequireAdmin(s.jwtMgr)(http.HandlerFunc(s.handleStop)))

	return middleware.Chain(mux,
		middleware.Logger,
		middleware.CORS(corsOrigin),
	)
}

// Broadcast pushes a stats snapshot to every connected subscriber.
func (s *Server) Broadcast(data any) {
	s.hub.Broadcast(StatsEvent{Type: "stats", Data: data})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	resp := map[string]any{"status": "ok", "subscribers": s.hub.ConnectionCount()}
	if s.stats != nil {
		resp["stats"] = s.stats()
	}
	json.NewEncoder(w).Encode(resp)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("monitor: websocket upgrade failed")
		return
	}

	c := &wsConn{conn: conn, send: make(chan []byte, sendBuffer)}
	s.hub.register(c)

	if s.stats != nil {
		if data, err := json.Marshal(StatsEvent{Type: "stats", Data: s.stats()}); err == nil {
			select {
			case c.send <- data:
			default:
			}
		}
	}

	go s.writePump(c)
	go s.readPump(c)
}

// readPump drains and discards client frames purely to detect
// disconnects; the feed is one-directional (server to dashboard).
func (s *Server) readPump(c *wsConn) {
	defer func() {
		s.hub.unregister(c)
		c.conn.Close()
	}()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *Server) writePump(c *wsConn) {
	defer c.conn.Close()
	for data := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
	}
	c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	operatorID := auth.OperatorIDFromContext(r.Context())
	s.log.Info().Str("operator", operatorID).Msg("monitor: stop requested")
	if s.onStop != nil {
		s.onStop()
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "stopping"})
}
