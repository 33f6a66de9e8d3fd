// Command connection-sweeper deletes expired rows from the DynamoDB
// connection registry. DynamoDB's own TTL reaper can lag up to 48 hours,
// and every broadcast scans the table, so running this on a schedule
// keeps scans bounded. With --lock-redis set, a Redis lease ensures only
// one instance sweeps at a time.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/url"
	"os"
	"time"

	"github.com/jonboulle/clockwork"
	goredis "github.com/redis/go-redis/v9"

	"github.com/nosisky/leaderboard-system/internal/coordination"
	"github.com/nosisky/leaderboard-system/internal/dynamo"
)

const (
	leaderKey = "leader:connection-sweeper"
	leaseTTL  = 5 * time.Minute
)

func main() {
	var (
		table   = flag.String("table", os.Getenv("CONNECTIONS_TABLE"), "DynamoDB connections table (or set CONNECTIONS_TABLE env)")
		region  = flag.String("region", os.Getenv("AWS_REGION"), "AWS region (or set AWS_REGION env)")
		lockURL = flag.String("lock-redis", os.Getenv("REDIS_URL"), "Redis URL for leader election (optional)")
		dryRun  = flag.Bool("dry-run", false, "Dry run mode (don't delete anything)")
		verbose = flag.Bool("verbose", false, "Verbose logging")
	)
	flag.Parse()

	if *table == "" {
		log.Fatal("Table required (--table or CONNECTIONS_TABLE env)")
	}
	if *region == "" {
		log.Fatal("Region required (--region or AWS_REGION env)")
	}

	logLevel := slog.LevelInfo
	if *verbose {
		logLevel = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	slog.SetDefault(slog.New(handler))

	ctx := context.Background()

	if *lockURL != "" {
		release, ok := acquireLease(ctx, *lockURL)
		if !ok {
			slog.Info("Another instance holds the sweep lease, nothing to do")
			return
		}
		defer release()
	}

	api, err := dynamo.NewAPI(ctx, *region)
	if err != nil {
		log.Fatalf("Failed to create DynamoDB client: %v", err)
	}
	registry := dynamo.NewConnectionRegistry(api, *table, clockwork.NewRealClock(), 24*time.Hour)

	start := time.Now()
	slog.Info("Starting sweep", "table", *table, "dry_run", *dryRun)

	deleted, err := registry.SweepExpired(ctx, *dryRun)
	if err != nil {
		log.Fatalf("Sweep failed after %d deletions: %v", deleted, err)
	}

	slog.Info("Sweep complete",
		"deleted", deleted,
		"dry_run", *dryRun,
		"duration", time.Since(start).Round(time.Millisecond).String())
}

func acquireLease(ctx context.Context, redisURL string) (release func(), ok bool) {
	opts, err := goredis.ParseURL(redisURL)
	if err != nil {
		log.Fatalf("Failed to parse Redis URL: %v", err)
	}
	rdb := goredis.NewClient(opts)

	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	slog.Debug("Connected to Redis", "url", sanitizeURL(redisURL))

	elector := coordination.NewElector(rdb, instanceID(), leaderKey, leaseTTL)
	won, err := elector.Acquire(ctx)
	if err != nil {
		log.Fatalf("Leader election failed: %v", err)
	}
	if !won {
		rdb.Close()
		return nil, false
	}

	return func() {
		if err := elector.Release(ctx); err != nil {
			slog.Warn("Failed to release sweep lease", "error", err)
		}
		rdb.Close()
	}, true
}

func instanceID() string {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	return fmt.Sprintf("%s-%d", hostname, os.Getpid())
}

func sanitizeURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "invalid"
	}
	return u.Redacted()
}
