package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/nosisky/leaderboard-system/internal/domain"
	"github.com/nosisky/leaderboard-system/internal/metrics"
)

// defaultDeliveryTimeout bounds a single delivery attempt so one slow
// client cannot stall the whole fan-out.
const defaultDeliveryTimeout = 5 * time.Second

// Engine fans a high score message out to every reachable connection.
// Deliveries run concurrently against a snapshot of the registry; any
// connection that fails delivery is pruned so it does not fail again on
// the next broadcast.
type Engine struct {
	registry        domain.ConnectionRegistry
	deliverer       domain.Deliverer
	clock           clockwork.Clock
	deliveryTimeout time.Duration
}

func NewEngine(registry domain.ConnectionRegistry, deliverer domain.Deliverer, clock clockwork.Clock, deliveryTimeout time.Duration) *Engine {
	if deliveryTimeout <= 0 {
		deliveryTimeout = defaultDeliveryTimeout
	}
	return &Engine{
		registry:        registry,
		deliverer:       deliverer,
		clock:           clock,
		deliveryTimeout: deliveryTimeout,
	}
}

// Broadcast implements domain.Broadcaster. It returns the number of
// connections the payload was actually delivered to, which may be lower
// than the registry snapshot when stale connections get pruned mid-flight.
func (e *Engine) Broadcast(ctx context.Context, msg domain.HighScoreMessage) (int, error) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return 0, fmt.Errorf("failed to encode broadcast payload: %w", err)
	}

	records, err := e.registry.ListReachable(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list reachable connections: %w", err)
	}

	metrics.BroadcastsTotal.Inc()
	started := e.clock.Now()

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		delivered int
		failed    []string
	)

	for _, record := range records {
		wg.Add(1)
		go func(connectionID string) {
			defer wg.Done()

			attemptCtx, cancel := context.WithTimeout(ctx, e.deliveryTimeout)
			defer cancel()

			if err := e.deliverer.Deliver(attemptCtx, connectionID, payload); err != nil {
				metrics.BroadcastDeliveriesTotal.WithLabelValues("failed").Inc()
				slog.Debug("Delivery failed", "connection_id", connectionID, "error", err)

				mu.Lock()
				failed = append(failed, connectionID)
				mu.Unlock()
				return
			}

			metrics.BroadcastDeliveriesTotal.WithLabelValues("delivered").Inc()
			mu.Lock()
			delivered++
			mu.Unlock()
		}(record.ConnectionID)
	}
	wg.Wait()

	// Prune connections that failed delivery. Best effort: a prune failure
	// only means the next broadcast retries the same cleanup.
	for _, connectionID := range failed {
		if err := e.registry.Remove(ctx, connectionID); err != nil {
			slog.Warn("Failed to prune stale connection", "connection_id", connectionID, "error", err)
			continue
		}
		metrics.BroadcastPrunedConnections.Inc()
	}

	metrics.BroadcastDuration.Observe(e.clock.Since(started).Seconds())
	slog.Info("Broadcast complete",
		"recipients", len(records),
		"delivered", delivered,
		"pruned", len(failed))

	return delivered, nil
}
