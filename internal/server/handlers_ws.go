package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	ws "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/nosisky/leaderboard-system/internal/domain"
	apperrors "github.com/nosisky/leaderboard-system/internal/errors"
	"github.com/nosisky/leaderboard-system/internal/metrics"
	"github.com/nosisky/leaderboard-system/internal/websocket"
)

var upgrader = ws.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Browser clients connect from arbitrary origins.
		return true
	},
}

// wsBearer extracts the credential for a websocket upgrade. Browsers cannot
// set headers on websocket requests, so a token query parameter is accepted
// as an alternative to the Authorization header.
func wsBearer(c echo.Context) string {
	if token := c.QueryParam("token"); token != "" {
		return "Bearer " + token
	}
	return c.Request().Header.Get(echo.HeaderAuthorization)
}

func (s *Server) handleWebSocket(c echo.Context) error {
	claim, err := s.verifier.Verify(c.Request().Context(), wsBearer(c))
	if err != nil || !claim.IsAuthenticated {
		metrics.WebSocketConnectionsRejected.WithLabelValues("unauthorized").Inc()
		return apperrors.UnauthorizedError("Unauthorized", err)
	}

	ip := c.RealIP()
	if ok, reason := s.limits.Acquire(ip); !ok {
		metrics.WebSocketConnectionsRejected.WithLabelValues(string(reason)).Inc()
		return echo.NewHTTPError(http.StatusTooManyRequests, "Connection limit reached")
	}
	defer s.limits.Release(ip)

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		slog.Warn("WebSocket upgrade failed", "error", err)
		return nil
	}

	connectionID := websocket.NewConnectionID(s.clock)
	ctx := c.Request().Context()

	if _, err := s.hub.RegisterConn(ctx, connectionID, claim.UserID, conn); err != nil {
		slog.Error("Failed to register connection", "connection_id", connectionID, "error", err)
		conn.Close()
		return nil
	}

	ack, _ := json.Marshal(domain.ConnectedMessage{
		Type:         domain.MessageTypeConnected,
		ConnectionID: connectionID,
		Message:      "Connected to WebSocket server",
	})
	if err := s.hub.Deliver(ctx, connectionID, ack); err != nil {
		slog.Warn("Failed to send connect ack", "connection_id", connectionID, "error", err)
	}

	slog.Info("Client connected", "connection_id", connectionID, "user_id", claim.UserID)

	// Read pump: the client never sends application data, but reading is
	// what surfaces pongs and disconnects.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	if err := s.hub.Remove(ctx, connectionID); err != nil {
		slog.Warn("Failed to remove connection", "connection_id", connectionID, "error", err)
	}
	slog.Info("Client disconnected", "connection_id", connectionID)
	return nil
}

type gatewayConnectionRequest struct {
	ConnectionID string `json:"connectionId"`
}

// handleGatewayConnect registers a connection that lives on the managed
// socket gateway rather than in this process.
func (s *Server) handleGatewayConnect(c echo.Context) error {
	var req gatewayConnectionRequest
	if err := c.Bind(&req); err != nil || req.ConnectionID == "" {
		return apperrors.ValidationError("Missing connection ID")
	}

	claim, err := s.verifier.Verify(c.Request().Context(), wsBearer(c))
	if err != nil || !claim.IsAuthenticated {
		return apperrors.UnauthorizedError("Unauthorized", err)
	}

	if _, err := s.registry.Register(c.Request().Context(), req.ConnectionID, claim.UserID); err != nil {
		return apperrors.InternalError("Connection failed", err)
	}
	return c.JSON(200, map[string]string{"message": "Connected"})
}

func (s *Server) handleGatewayDisconnect(c echo.Context) error {
	var req gatewayConnectionRequest
	if err := c.Bind(&req); err != nil || req.ConnectionID == "" {
		return apperrors.ValidationError("Missing connection ID")
	}

	if err := s.registry.Remove(c.Request().Context(), req.ConnectionID); err != nil {
		return apperrors.InternalError("Disconnect failed", err)
	}
	return c.JSON(200, map[string]string{"message": "Disconnected"})
}
