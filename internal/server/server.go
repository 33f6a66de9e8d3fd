package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/nosisky/leaderboard-system/internal/config"
	"github.com/nosisky/leaderboard-system/internal/domain"
	apperrors "github.com/nosisky/leaderboard-system/internal/errors"
	"github.com/nosisky/leaderboard-system/internal/identity"
	"github.com/nosisky/leaderboard-system/internal/websocket"
)

// ScoreService is the application layer surface the handlers use.
type ScoreService interface {
	Submit(ctx context.Context, bearer string, score int64) (domain.ScoreEntry, error)
	Leaderboard(ctx context.Context) ([]domain.ScoreEntry, int, error)
}

// IdentityService wraps the identity provider for signup/login/confirm.
// Nil when no identity provider is configured.
type IdentityService interface {
	SignUp(ctx context.Context, username, password, email, name string) error
	Login(ctx context.Context, username, password string) (*identity.TokenSet, error)
	Confirm(ctx context.Context, username, code string) error
}

// HealthCheck is a named readiness probe against a backing service.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

type Server struct {
	echo      *echo.Echo
	config    *config.Config
	scores    ScoreService
	identity  IdentityService
	verifier  domain.TokenVerifier
	hub       *websocket.Hub
	registry  domain.ConnectionRegistry
	limits    *ConnectionLimits
	clock     clockwork.Clock
	startTime time.Time
	readiness []HealthCheck
}

func NewServer(
	cfg *config.Config,
	scores ScoreService,
	identitySvc IdentityService,
	verifier domain.TokenVerifier,
	hub *websocket.Hub,
	registry domain.ConnectionRegistry,
	limits *ConnectionLimits,
	clock clockwork.Clock,
	readiness ...HealthCheck,
) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:  true,
		LogURI:     true,
		LogMethod:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			slog.Info("Request",
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency_ms", v.Latency.Milliseconds())
			return nil
		},
	}))
	e.Use(middleware.Recover())
	e.Use(apperrors.Middleware())

	srv := &Server{
		echo:      e,
		config:    cfg,
		scores:    scores,
		identity:  identitySvc,
		verifier:  verifier,
		hub:       hub,
		registry:  registry,
		limits:    limits,
		clock:     clock,
		startTime: clock.Now(),
		readiness: readiness,
	}

	srv.registerRoutes()
	return srv
}

func (s *Server) Start() error {
	slog.Info("Starting server", "port", s.config.Port)
	return s.echo.Start(fmt.Sprintf(":%s", s.config.Port))
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
