package auth

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sony/gobreaker"
	"golang.org/x/sync/singleflight"

	"github.com/nosisky/leaderboard-system/internal/domain"
	"github.com/nosisky/leaderboard-system/internal/metrics"
)

const fetchTimeout = 5 * time.Second

// KeyCache holds the identity provider's signing keys with short-lived
// freshness. The key set is replaced wholesale on every refresh; individual
// entries are never mutated. Concurrent refreshes collapse into a single
// fetch, and a circuit breaker keeps a dead key endpoint from stalling every
// verification.
type KeyCache struct {
	jwksURL string
	client  *http.Client
	clock   clockwork.Clock
	ttl     time.Duration
	breaker *gobreaker.CircuitBreaker
	group   singleflight.Group

	mu        sync.RWMutex
	keys      map[string]*rsa.PublicKey
	fetchedAt time.Time
}

// NewKeyCache creates a key cache for the given JWKS endpoint.
// ttl controls how long a fetched key set counts as fresh.
func NewKeyCache(jwksURL string, ttl time.Duration, clock clockwork.Clock) *KeyCache {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "jwks",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})

	return &KeyCache{
		jwksURL: jwksURL,
		client:  &http.Client{Timeout: fetchTimeout},
		clock:   clock,
		ttl:     ttl,
		breaker: breaker,
	}
}

// Resolve returns the public key for the given key id.
//
// A fresh cached key is returned without touching the network. Otherwise a
// single refresh is performed (stale set, or unknown kid forcing one retry),
// after which a still-missing kid fails with ErrUnknownKey. Fetch failures
// leave the previous set intact and surface ErrKeySourceUnavailable —
// verification fails closed.
func (c *KeyCache) Resolve(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	if key, ok := c.lookup(kid); ok {
		metrics.KeyCacheResolutionsTotal.WithLabelValues("hit").Inc()
		return key, nil
	}

	if err := c.Refresh(ctx); err != nil {
		return nil, err
	}

	c.mu.RLock()
	key, ok := c.keys[kid]
	c.mu.RUnlock()
	if !ok {
		metrics.KeyCacheResolutionsTotal.WithLabelValues("miss").Inc()
		return nil, domain.ErrUnknownKey
	}
	metrics.KeyCacheResolutionsTotal.WithLabelValues("refresh_hit").Inc()
	return key, nil
}

// lookup returns the key only when the cached set is still fresh.
func (c *KeyCache) lookup(kid string) (*rsa.PublicKey, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.keys == nil || c.clock.Since(c.fetchedAt) >= c.ttl {
		return nil, false
	}
	key, ok := c.keys[kid]
	return key, ok
}

// Refresh fetches the key set and replaces the cache wholesale. Concurrent
// callers share one in-flight fetch.
func (c *KeyCache) Refresh(ctx context.Context) error {
	_, err, _ := c.group.Do("refresh", func() (any, error) {
		keys, err := c.fetch(ctx)
		if err != nil {
			metrics.KeyCacheRefreshesTotal.WithLabelValues("error").Inc()
			return nil, err
		}

		c.mu.Lock()
		c.keys = keys
		c.fetchedAt = c.clock.Now()
		c.mu.Unlock()

		metrics.KeyCacheRefreshesTotal.WithLabelValues("ok").Inc()
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrKeySourceUnavailable, err)
	}
	return nil
}

func (c *KeyCache) fetch(ctx context.Context) (map[string]*rsa.PublicKey, error) {
	result, err := c.breaker.Execute(func() (any, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.jwksURL, nil)
		if err != nil {
			return nil, err
		}

		resp, err := c.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("key endpoint returned status %d", resp.StatusCode)
		}

		body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return nil, err
		}

		return parseKeySet(body)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("key endpoint circuit open: %w", err)
		}
		return nil, err
	}
	return result.(map[string]*rsa.PublicKey), nil
}
