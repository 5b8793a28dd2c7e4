package server

import (
	"log/slog"
	"net/http"

	"github.com/coder/websocket"
)

// HandleWebSocket upgrades the request and runs the same session protocol
// over the socket. Each text message is part of the byte stream.
func (s *Server) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	opts := &websocket.AcceptOptions{
		OriginPatterns: s.cfg.AllowedOrigins,
	}

	ws, err := websocket.Accept(w, r, opts)
	if err != nil {
		s.logger.Warn("❌ error accepting websocket client", slog.String("error", err.Error()))
		return
	}

	limit := int64(s.cfg.MaxFrameBytes)
	if limit < 32768 {
		limit = 32768
	}
	ws.SetReadLimit(limit)

	if !s.trackSession() {
		_ = ws.Close(websocket.StatusGoingAway, "server shutting down")
		return
	}
	defer s.sessions.Done()

	nc := websocket.NetConn(s.ctx, ws, websocket.MessageText)
	s.ServeConn(nc, hostOf(r.RemoteAddr), TransportWebSocket)
}
