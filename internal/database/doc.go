// Package database implements the PostgreSQL-backed score store.
//
// Uses pgx for connection pooling. Schema setup runs at startup under an
// advisory lock so concurrently starting replicas do not race.
package database
