package coordination

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// ErrLostLeadership is returned by Renew when another instance holds the
// lease.
var ErrLostLeadership = errors.New("leadership lost")

// renewScript extends the lease only while we still hold it, and
// releaseScript deletes it only while we still hold it. Both checks must
// be atomic or a crashed-and-recovered leader could clobber its successor.
const (
	renewScript = `
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("EXPIRE", KEYS[1], ARGV[2])
	else
		return 0
	end`

	releaseScript = `
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("DEL", KEYS[1])
	else
		return 0
	end`
)

// Elector implements single-leader election over a Redis key with a TTL.
// The instance that wins SETNX holds the lease until it releases it or
// stops renewing, at which point the key expires and another instance
// can take over.
type Elector struct {
	rdb        *goredis.Client
	instanceID string
	key        string
	ttl        time.Duration
}

func NewElector(rdb *goredis.Client, instanceID, key string, ttl time.Duration) *Elector {
	return &Elector{
		rdb:        rdb,
		instanceID: instanceID,
		key:        key,
		ttl:        ttl,
	}
}

// Acquire attempts to take the lease. Returns true when this instance is
// now the leader.
func (e *Elector) Acquire(ctx context.Context) (bool, error) {
	ok, err := e.rdb.SetNX(ctx, e.key, e.instanceID, e.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire leadership: %w", err)
	}
	return ok, nil
}

// Renew extends the lease. Call periodically, well inside the TTL.
func (e *Elector) Renew(ctx context.Context) error {
	result, err := e.rdb.Eval(ctx, renewScript, []string{e.key}, e.instanceID, int(e.ttl.Seconds())).Result()
	if err != nil {
		return fmt.Errorf("failed to renew leadership: %w", err)
	}
	if result == int64(0) {
		return ErrLostLeadership
	}
	return nil
}

// Release gives up the lease so a successor does not have to wait out
// the TTL. Releasing a lease held by someone else is a no-op.
func (e *Elector) Release(ctx context.Context) error {
	if err := e.rdb.Eval(ctx, releaseScript, []string{e.key}, e.instanceID).Err(); err != nil {
		return fmt.Errorf("failed to release leadership: %w", err)
	}
	return nil
}
