package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/nosisky/leaderboard-system/internal/app"
	"github.com/nosisky/leaderboard-system/internal/auth"
	"github.com/nosisky/leaderboard-system/internal/broadcast"
	"github.com/nosisky/leaderboard-system/internal/config"
	"github.com/nosisky/leaderboard-system/internal/database"
	"github.com/nosisky/leaderboard-system/internal/domain"
	"github.com/nosisky/leaderboard-system/internal/dynamo"
	"github.com/nosisky/leaderboard-system/internal/identity"
	"github.com/nosisky/leaderboard-system/internal/logging"
	"github.com/nosisky/leaderboard-system/internal/redis"
	"github.com/nosisky/leaderboard-system/internal/server"
	"github.com/nosisky/leaderboard-system/internal/websocket"
)

// Per-instance websocket connection limits.
const (
	maxConnections       = 10000
	maxConnectionsPerIP  = 32
	connectionsPerSecond = 10
	connectionBurst      = 20
)

type registryResult struct {
	registry  domain.ConnectionRegistry
	deliverer domain.Deliverer
	checks    []server.HealthCheck
	close     func()
}

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func setupRegistry(cfg *config.Config, hub *websocket.Hub, clock clockwork.Clock) registryResult {
	switch cfg.RegistryBackend {
	case config.RegistryMemory:
		// Single-process topology: the hub tracks connections and pushes
		// straight to the attached sockets.
		return registryResult{registry: hub, deliverer: hub, close: func() {}}

	case config.RegistryRedis:
		client, err := redis.NewClient(cfg.RedisURL)
		if err != nil {
			slog.Error("Failed to create Redis client", "error", err)
			os.Exit(1)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := client.Ping(ctx); err != nil {
			slog.Error("Failed to connect to Redis", "error", err)
			os.Exit(1)
		}

		return registryResult{
			registry:  redis.NewConnectionRegistry(client.Underlying(), clock, cfg.ConnectionTTL),
			deliverer: setupGatewayDeliverer(cfg),
			checks:    []server.HealthCheck{{Name: "redis", Check: client.Ping}},
			close:     func() { _ = client.Close() },
		}

	case config.RegistryDynamoDB:
		api, err := dynamo.NewAPI(context.Background(), cfg.AWSRegion)
		if err != nil {
			slog.Error("Failed to create DynamoDB client", "error", err)
			os.Exit(1)
		}

		return registryResult{
			registry:  dynamo.NewConnectionRegistry(api, cfg.ConnectionsTable, clock, cfg.ConnectionTTL),
			deliverer: setupGatewayDeliverer(cfg),
			close:     func() {},
		}

	default:
		slog.Error("Unknown registry backend", "backend", cfg.RegistryBackend)
		os.Exit(1)
		return registryResult{}
	}
}

func setupGatewayDeliverer(cfg *config.Config) *broadcast.GatewayDeliverer {
	deliverer, err := broadcast.NewGatewayDeliverer(context.Background(), cfg.PushGatewayURL)
	if err != nil {
		slog.Error("Failed to create push gateway client", "error", err)
		os.Exit(1)
	}
	return deliverer
}

func setupScoreStore(cfg *config.Config) (domain.ScoreStore, []server.HealthCheck, func()) {
	switch cfg.ScoreBackend {
	case config.ScoreStorePostgres:
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		pool, err := database.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			slog.Error("Failed to connect to database", "error", err)
			os.Exit(1)
		}
		if err := database.RunMigrationsWithLock(ctx, pool); err != nil {
			slog.Error("Failed to run migrations", "error", err)
			os.Exit(1)
		}

		checks := []server.HealthCheck{{Name: "postgres", Check: pool.Ping}}
		return database.NewScoreRepo(pool), checks, pool.Close

	case config.ScoreStoreDynamoDB:
		api, err := dynamo.NewAPI(context.Background(), cfg.AWSRegion)
		if err != nil {
			slog.Error("Failed to create DynamoDB client", "error", err)
			os.Exit(1)
		}
		return dynamo.NewScoreStore(api, cfg.ScoresTable), nil, func() {}

	default:
		slog.Error("Unknown score backend", "backend", cfg.ScoreBackend)
		os.Exit(1)
		return nil, nil, nil
	}
}

func setupIdentity(cfg *config.Config) server.IdentityService {
	if cfg.IdPClientID == "" {
		slog.Info("No identity provider configured, signup/login/confirm disabled")
		return nil
	}

	client, err := identity.NewClient(context.Background(), cfg.AWSRegion, cfg.IdPClientID, cfg.IdPClientSecret)
	if err != nil {
		slog.Error("Failed to create identity provider client", "error", err)
		os.Exit(1)
	}
	return client
}

func runGracefulShutdown(srv *server.Server, appSvc *app.Service, hub *websocket.Hub) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		// Wait for in-flight broadcast triggers before dropping connections.
		appSvc.Shutdown()
		hub.Stop()

		close(done)
	}()

	return done
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	// Initialize structured logging
	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port)

	keys := auth.NewKeyCache(cfg.JWKSURL, cfg.KeyCacheTTL, clock)
	verifier := auth.NewVerifier(keys, cfg.TokenIssuer, cfg.TokenAudience)

	hub := websocket.NewHub(clock)

	reg := setupRegistry(cfg, hub, clock)
	defer reg.close()

	scores, scoreChecks, closeScores := setupScoreStore(cfg)
	defer closeScores()

	engine := broadcast.NewEngine(reg.registry, reg.deliverer, clock, cfg.DeliveryTimeout)
	trigger := broadcast.NewTrigger(verifier, engine, clock, cfg.HighScoreThreshold)

	appSvc := app.NewService(verifier, scores, trigger, clock, cfg.LeaderboardSize)

	identitySvc := setupIdentity(cfg)

	limits := server.NewConnectionLimits(maxConnections, maxConnectionsPerIP, connectionsPerSecond, connectionBurst)

	checks := append(reg.checks, scoreChecks...)
	srv := server.NewServer(cfg, appSvc, identitySvc, verifier, hub, reg.registry, limits, clock, checks...)

	done := runGracefulShutdown(srv, appSvc, hub)

	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
}
