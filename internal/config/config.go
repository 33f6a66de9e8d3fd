package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Registry backend selectors.
const (
	RegistryMemory   = "memory"
	RegistryRedis    = "redis"
	RegistryDynamoDB = "dynamodb"
)

// Score store backend selectors.
const (
	ScoreStorePostgres = "postgres"
	ScoreStoreDynamoDB = "dynamodb"
)

type Config struct {
	AppEnv    string
	Port      string
	LogLevel  string
	LogFormat string

	// Token verification
	JWKSURL       string
	TokenIssuer   string
	TokenAudience string
	KeyCacheTTL   time.Duration

	// Identity provider (signup/login/confirm)
	IdPClientID     string
	IdPClientSecret string
	AWSRegion       string

	// Connection registry
	RegistryBackend  string
	RedisURL         string
	ConnectionsTable string
	ConnectionTTL    time.Duration

	// Score storage
	ScoreBackend string
	DatabaseURL  string
	ScoresTable  string

	// Broadcast
	PushGatewayURL     string
	HighScoreThreshold int64
	DeliveryTimeout    time.Duration

	// Leaderboard
	LeaderboardSize int
}

func Load() (*Config, error) {
	cfg := &Config{
		AppEnv:    getEnv("APP_ENV", "development"),
		Port:      getEnv("PORT", "8080"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),

		JWKSURL:       getEnv("JWKS_URL", ""),
		TokenIssuer:   getEnv("TOKEN_ISSUER", ""),
		TokenAudience: getEnv("TOKEN_AUDIENCE", ""),

		IdPClientID:     getEnv("IDP_CLIENT_ID", ""),
		IdPClientSecret: getEnv("IDP_CLIENT_SECRET", ""),
		AWSRegion:       getEnv("AWS_REGION", "eu-north-1"),

		RegistryBackend:  getEnv("REGISTRY_BACKEND", RegistryMemory),
		RedisURL:         getEnv("REDIS_URL", ""),
		ConnectionsTable: getEnv("CONNECTIONS_TABLE", "websocket-connections"),

		ScoreBackend: getEnv("SCORE_BACKEND", ScoreStoreDynamoDB),
		DatabaseURL:  getEnv("DATABASE_URL", ""),
		ScoresTable:  getEnv("SCORES_TABLE", "scores"),

		PushGatewayURL: getEnv("PUSH_GATEWAY_URL", ""),
	}

	var err error
	if cfg.KeyCacheTTL, err = getDuration("KEY_CACHE_TTL", 10*time.Minute); err != nil {
		return nil, err
	}
	if cfg.ConnectionTTL, err = getDuration("CONNECTION_TTL", 24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.DeliveryTimeout, err = getDuration("DELIVERY_TIMEOUT", 5*time.Second); err != nil {
		return nil, err
	}
	if cfg.HighScoreThreshold, err = getInt64("HIGH_SCORE_THRESHOLD", 1000); err != nil {
		return nil, err
	}
	size, err := getInt64("LEADERBOARD_SIZE", 10)
	if err != nil {
		return nil, err
	}
	cfg.LeaderboardSize = int(size)

	if cfg.JWKSURL == "" {
		return nil, fmt.Errorf("JWKS_URL is required")
	}
	if cfg.TokenIssuer == "" {
		return nil, fmt.Errorf("TOKEN_ISSUER is required")
	}
	if cfg.TokenAudience == "" {
		return nil, fmt.Errorf("TOKEN_AUDIENCE is required")
	}

	switch cfg.RegistryBackend {
	case RegistryMemory:
	case RegistryRedis:
		if cfg.RedisURL == "" {
			return nil, fmt.Errorf("REDIS_URL is required when REGISTRY_BACKEND is redis")
		}
	case RegistryDynamoDB:
		if cfg.ConnectionsTable == "" {
			return nil, fmt.Errorf("CONNECTIONS_TABLE is required when REGISTRY_BACKEND is dynamodb")
		}
	default:
		return nil, fmt.Errorf("REGISTRY_BACKEND must be one of memory, redis, dynamodb (got %q)", cfg.RegistryBackend)
	}

	// External registries have no live socket to push through, so they need
	// the gateway endpoint.
	if cfg.RegistryBackend != RegistryMemory && cfg.PushGatewayURL == "" {
		return nil, fmt.Errorf("PUSH_GATEWAY_URL is required when REGISTRY_BACKEND is %s", cfg.RegistryBackend)
	}

	switch cfg.ScoreBackend {
	case ScoreStorePostgres:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required when SCORE_BACKEND is postgres")
		}
	case ScoreStoreDynamoDB:
		if cfg.ScoresTable == "" {
			return nil, fmt.Errorf("SCORES_TABLE is required when SCORE_BACKEND is dynamodb")
		}
	default:
		return nil, fmt.Errorf("SCORE_BACKEND must be one of postgres, dynamodb (got %q)", cfg.ScoreBackend)
	}

	if cfg.HighScoreThreshold < 0 {
		return nil, fmt.Errorf("HIGH_SCORE_THRESHOLD must not be negative")
	}
	if cfg.LeaderboardSize < 1 {
		return nil, fmt.Errorf("LEADERBOARD_SIZE must be at least 1")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration like 5s or 10m: %w", key, err)
	}
	return d, nil
}

func getInt64(key string, defaultValue int64) (int64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return n, nil
}
