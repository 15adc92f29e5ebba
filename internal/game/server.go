package game

import (
	"log/slog"
	"net/http"
	"slices"

	"github.com/gorilla/websocket"
)

type Server struct {
	hub      *Hub
	log      *slog.Logger
	upgrader websocket.Upgrader
}

// NewServer exposes the hub over WebSocket. An empty origin list accepts
// any origin.
func NewServer(hub *Hub, allowedOrigins []string, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		hub: hub,
		log: log,
		upgrader: websocket.Upgrader{
			CheckOrigin: originChecker(allowedOrigins),
		},
	}
}

func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws", s.handleWS)
}

func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 || slices.Contains(allowed, "*") {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || slices.Contains(allowed, origin)
	}
}
