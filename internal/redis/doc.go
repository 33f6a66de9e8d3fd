// Package redis implements the Redis-backed connection registry used in the
// distributed topology. Records are JSON values under connection:<id> keys
// with a TTL, so lost-disconnect records age out on their own.
package redis
