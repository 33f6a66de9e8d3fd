package redis

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Integration tests require a running Redis. Set REDIS_TEST_URL to enable,
// e.g. REDIS_TEST_URL=redis://localhost:6379/1.
func testRegistry(t *testing.T) *ConnectionRegistry {
	t.Helper()

	url := os.Getenv("REDIS_TEST_URL")
	if url == "" {
		t.Skip("REDIS_TEST_URL not set")
	}

	client, err := NewClient(url)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	require.NoError(t, client.Ping(context.Background()))

	return NewConnectionRegistry(client.Underlying(), clockwork.NewRealClock(), 24*time.Hour)
}

func TestConnectionRegistry_RegisterListRemove(t *testing.T) {
	registry := testRegistry(t)
	ctx := context.Background()

	record, err := registry.Register(ctx, "it-conn-1", "user-1")
	require.NoError(t, err)
	t.Cleanup(func() { registry.Remove(ctx, "it-conn-1") })

	assert.Equal(t, "it-conn-1", record.ConnectionID)
	assert.Equal(t, "user-1", record.UserID)
	assert.True(t, record.ExpiresAt.After(record.ConnectedAt))

	records, err := registry.ListReachable(ctx)
	require.NoError(t, err)

	ids := make([]string, 0, len(records))
	for _, r := range records {
		ids = append(ids, r.ConnectionID)
	}
	assert.Contains(t, ids, "it-conn-1")

	require.NoError(t, registry.Remove(ctx, "it-conn-1"))
	require.NoError(t, registry.Remove(ctx, "it-conn-1"))
}

func TestConnectionRegistry_RegisterIsIdempotent(t *testing.T) {
	registry := testRegistry(t)
	ctx := context.Background()

	first, err := registry.Register(ctx, "it-conn-2", "user-1")
	require.NoError(t, err)
	t.Cleanup(func() { registry.Remove(ctx, "it-conn-2") })

	second, err := registry.Register(ctx, "it-conn-2", "someone-else")
	require.NoError(t, err)

	assert.Equal(t, first.UserID, second.UserID)
	assert.Equal(t, first.ConnectedAt.UnixMilli(), second.ConnectedAt.UnixMilli())
}

func TestConnectionRegistry_TouchUnknownIsNoop(t *testing.T) {
	registry := testRegistry(t)

	assert.NoError(t, registry.Touch(context.Background(), "never-registered"))
}
