package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
	goredis "github.com/redis/go-redis/v9"

	"github.com/nosisky/leaderboard-system/internal/domain"
	"github.com/nosisky/leaderboard-system/internal/metrics"
)

const connectionKeyPrefix = "connection:"

func connectionKey(connectionID string) string {
	return connectionKeyPrefix + connectionID
}

// ConnectionRegistry is the Redis-backed connection registry for the
// distributed topology. Records carry a TTL so connections whose disconnect
// event was lost age out instead of accumulating forever.
type ConnectionRegistry struct {
	rdb   *goredis.Client
	clock clockwork.Clock
	ttl   time.Duration
}

func NewConnectionRegistry(rdb *goredis.Client, clock clockwork.Clock, ttl time.Duration) *ConnectionRegistry {
	return &ConnectionRegistry{rdb: rdb, clock: clock, ttl: ttl}
}

// Register stores a record for the connection. Registering an id that
// already exists returns the existing record unchanged.
func (r *ConnectionRegistry) Register(ctx context.Context, connectionID, userID string) (domain.ConnectionRecord, error) {
	now := r.clock.Now()
	record := domain.ConnectionRecord{
		ConnectionID: connectionID,
		ConnectedAt:  now,
		LastSeen:     now,
		UserID:       userID,
		ExpiresAt:    now.Add(r.ttl),
	}

	data, err := json.Marshal(record)
	if err != nil {
		return domain.ConnectionRecord{}, fmt.Errorf("failed to marshal connection record: %w", err)
	}

	created, err := r.rdb.SetNX(ctx, connectionKey(connectionID), data, r.ttl).Result()
	if err != nil {
		metrics.RegistryOpsTotal.WithLabelValues("register", "error").Inc()
		return domain.ConnectionRecord{}, fmt.Errorf("failed to register connection: %w", err)
	}
	if !created {
		return r.get(ctx, connectionID)
	}

	metrics.RegistryOpsTotal.WithLabelValues("register", "ok").Inc()
	return record, nil
}

// Touch refreshes LastSeen. Touching an unknown or expired id is a no-op.
func (r *ConnectionRegistry) Touch(ctx context.Context, connectionID string) error {
	record, err := r.get(ctx, connectionID)
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil
		}
		return err
	}

	record.LastSeen = r.clock.Now()
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal connection record: %w", err)
	}
	return r.rdb.Set(ctx, connectionKey(connectionID), data, goredis.KeepTTL).Err()
}

// Remove deletes the record. Removing an unknown id is a no-op.
func (r *ConnectionRegistry) Remove(ctx context.Context, connectionID string) error {
	if err := r.rdb.Del(ctx, connectionKey(connectionID)).Err(); err != nil {
		metrics.RegistryOpsTotal.WithLabelValues("remove", "error").Inc()
		return fmt.Errorf("failed to remove connection: %w", err)
	}
	metrics.RegistryOpsTotal.WithLabelValues("remove", "ok").Inc()
	return nil
}

// ListReachable scans all connection keys and returns their records.
// Expired keys have already been dropped by Redis.
func (r *ConnectionRegistry) ListReachable(ctx context.Context) ([]domain.ConnectionRecord, error) {
	var records []domain.ConnectionRecord

	iter := r.rdb.Scan(ctx, 0, connectionKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		data, err := r.rdb.Get(ctx, iter.Val()).Bytes()
		if err != nil {
			if errors.Is(err, goredis.Nil) {
				// Expired between scan and get.
				continue
			}
			return nil, fmt.Errorf("failed to read connection record: %w", err)
		}

		var record domain.ConnectionRecord
		if err := json.Unmarshal(data, &record); err != nil {
			slog.Warn("Skipping corrupt connection record", "key", iter.Val(), "error", err)
			continue
		}
		records = append(records, record)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan connections: %w", err)
	}

	return records, nil
}

func (r *ConnectionRegistry) get(ctx context.Context, connectionID string) (domain.ConnectionRecord, error) {
	data, err := r.rdb.Get(ctx, connectionKey(connectionID)).Bytes()
	if err != nil {
		return domain.ConnectionRecord{}, err
	}

	var record domain.ConnectionRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return domain.ConnectionRecord{}, fmt.Errorf("failed to unmarshal connection record: %w", err)
	}
	return record, nil
}
