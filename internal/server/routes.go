package server

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) registerRoutes() {
	// Observability endpoints (no auth required)
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/health/live", s.handleLiveness)
	s.echo.GET("/health/ready", s.handleReadiness)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// Identity routes (only when an identity provider is configured)
	if s.identity != nil {
		s.echo.POST("/signup", s.handleSignUp)
		s.echo.POST("/login", s.handleLogin)
		s.echo.POST("/confirm", s.handleConfirm)
	}

	// Score routes (bearer token checked inside)
	s.echo.POST("/submit", s.handleSubmit)
	s.echo.GET("/leaderboard", s.handleLeaderboard)

	// WebSocket endpoint for the single-process topology
	s.echo.GET("/ws", s.handleWebSocket)

	// Gateway callbacks for the distributed topology: the managed socket
	// layer reports connects and disconnects here.
	s.echo.POST("/gateway/connect", s.handleGatewayConnect)
	s.echo.POST("/gateway/disconnect", s.handleGatewayDisconnect)
}
