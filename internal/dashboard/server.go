package dashboard

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/tw-eew/eewgateway/internal/logging"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Server is the dashboard's HTTP surface: a live WebSocket feed plus a JSON
// snapshot of currently-tracked alerts, adapted from the teacher's
// internal/api Server (REST + /ws over an in-memory earthquake set).
type Server struct {
	hub    *Hub
	stats  *Stats
	logger logging.Logger
	srv    *http.Server
}

// NewServer constructs a Server bound to addr. Call ListenAndServe to start
// it and Shutdown to stop it.
func NewServer(addr string, hub *Hub, stats *Stats, logger logging.Logger) *Server {
	s := &Server{hub: hub, stats: stats, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/api/earthquakes", s.handleEarthquakes)
	mux.HandleFunc("/api/stats", s.handleStats)
	mux.HandleFunc("/api/health", s.handleHealth)

	s.srv = &http.Server{Addr: addr, Handler: mux}
	return s
}

// ListenAndServe blocks serving the dashboard until Shutdown is called.
// http.ErrServerClosed is swallowed; it's the expected return from a clean
// Shutdown.
func (s *Server) ListenAndServe() error {
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the HTTP server within ctx's deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warnf("dashboard: websocket upgrade failed: %v", err)
		return
	}
	s.hub.Serve(conn)
}

func (s *Server) handleEarthquakes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.writeJSON(w, s.stats.All())
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	counts := s.stats.Counts()
	counts["websocket_clients"] = s.hub.ClientCount()
	s.writeJSON(w, counts)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, map[string]any{
		"status":            "ok",
		"tracked_alerts":    len(s.stats.All()),
		"websocket_clients": s.hub.ClientCount(),
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Errorf("dashboard: encode response: %v", err)
	}
}
