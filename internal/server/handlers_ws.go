package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/healthsync/healthsync/internal/domain"
)

// identify is the only inbound event handled at the connection layer; it
// binds a user identity to the connection for targeted delivery.
const inboundIdentify = "identify"

type inboundFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type identifyPayload struct {
	User string `json:"user"`
}

func (s *Server) upgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     s.checkOrigin,
	}
}

// checkOrigin allows empty origins (non-browser clients) and any origin in
// the configured allow list.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range s.config.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	slog.Warn("websocket origin rejected", "origin", origin, "remote_addr", r.RemoteAddr)
	return false
}

func (s *Server) handleWebSocket(c echo.Context) error {
	upgrader := s.upgrader()
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "error", err, "remote_addr", c.Request().RemoteAddr)
		return nil
	}

	if err := s.hub.Register(conn); err != nil {
		slog.Warn("websocket registration rejected", "error", err)
		_ = conn.Close()
		return nil
	}

	s.hub.Send(conn, domain.NewEvent(domain.EventConnected, map[string]string{
		"message": "Connected to server",
	}))
	s.sendInitialData(c.Request().Context(), conn)

	go s.readPump(conn)
	return nil
}

// sendInitialData delivers the full shared-state snapshot: every post
// shared to a known community plus each community's complete messages map.
func (s *Server) sendInitialData(ctx context.Context, conn *websocket.Conn) {
	communities, err := s.store.Communities().List(ctx)
	if err != nil {
		slog.Error("initial data snapshot failed", "error", err)
		return
	}

	posts := make([]domain.Post, 0)
	seen := make(map[string]struct{})
	messages := make(map[string]map[string][]string, len(communities))
	for _, community := range communities {
		id := community.Key().ID()
		shared, err := s.store.Posts().ListSharedTo(ctx, id)
		if err != nil {
			slog.Error("initial data snapshot failed", "community_id", id, "error", err)
			return
		}
		for _, post := range shared {
			if _, ok := seen[post.ID]; ok {
				continue
			}
			seen[post.ID] = struct{}{}
			posts = append(posts, post)
		}
		messages[id] = community.Messages
	}

	s.hub.Send(conn, domain.NewEvent(domain.EventInitialData, map[string]any{
		"posts":    posts,
		"messages": messages,
	}))
}

// readPump drains inbound frames until the connection drops, then
// unregisters it. Dispatch absorbs all handler failures, so only a read
// error ends the loop.
func (s *Server) readPump(conn *websocket.Conn) {
	defer s.hub.Unregister(conn)

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.Debug("websocket read ended", "error", err)
			}
			return
		}

		var frame inboundFrame
		if err := json.Unmarshal(payload, &frame); err != nil {
			s.hub.Send(conn, domain.ErrorEvent("malformed frame: "+err.Error()))
			continue
		}

		if frame.Event == inboundIdentify {
			var p identifyPayload
			if err := json.Unmarshal(frame.Data, &p); err != nil || p.User == "" {
				s.hub.Send(conn, domain.ErrorEvent("identify requires a user"))
				continue
			}
			s.hub.Identify(conn, p.User)
			continue
		}

		s.events.Dispatch(context.Background(), frame.Event, frame.Data)
	}
}
