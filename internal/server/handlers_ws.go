package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/mundotango/engagement/internal/metrics"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // token in the query string authenticates, not the origin
	},
}

const authCloseDeadline = 5 * time.Second

// handleWebSocket authenticates and registers a realtime connection, then
// runs its read loop until the client disconnects or is evicted.
//
// The token is verified after the upgrade so browser clients observe a
// proper close frame (policy violation) instead of an opaque handshake
// failure.
func (s *Server) handleWebSocket(c echo.Context) error {
	ip := c.RealIP()

	ok, reason := s.limits.Acquire(ip)
	if !ok {
		metrics.WebSocketConnectionsTotal.WithLabelValues("rejected").Inc()
		metrics.WebSocketConnectionsRejected.WithLabelValues(string(reason)).Inc()
		slog.Warn("websocket connection rejected", "ip", ip, "reason", reason)
		return c.JSON(http.StatusTooManyRequests, map[string]string{"error": "too many connections"})
	}
	defer s.limits.Release(ip)

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return fmt.Errorf("failed to upgrade WebSocket: %w", err)
	}

	claims, err := s.verifier.Verify(c.QueryParam("token"))
	if err != nil {
		metrics.WebSocketConnectionsTotal.WithLabelValues("auth_failed").Inc()
		slog.Warn("websocket auth failed", "ip", ip, "error", err)
		closeWithPolicyViolation(conn, "authentication failed")
		return nil
	}

	if err := s.hub.Register(claims.UserID, claims.Username, conn); err != nil {
		slog.Error("failed to register websocket connection", "user_id", claims.UserID, "error", err)
		_ = conn.Close()
		return nil
	}

	metrics.WebSocketConnectionsTotal.WithLabelValues("success").Inc()
	metrics.WebSocketConnectionsCurrent.Inc()
	defer metrics.WebSocketConnectionsCurrent.Dec()

	slog.Info("websocket connected", "user_id", claims.UserID, "username", claims.Username, "ip", ip)

	// Blocks until the connection ends. Unregistering happens inside.
	s.hub.ReadPump(conn)

	slog.Info("websocket disconnected", "user_id", claims.UserID)
	return nil
}

func closeWithPolicyViolation(conn *websocket.Conn, reason string) {
	msg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(authCloseDeadline))
	_ = conn.Close()
}
