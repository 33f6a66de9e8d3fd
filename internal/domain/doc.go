// Package domain defines the core domain types and interfaces.
//
// This package contains shared types (identity claims, connection records, wire
// messages) and cross-cutting contracts (registry, deliverer, verifier, store).
// No implementation code - just contracts. Prevents circular imports by keeping
// interfaces on the consumer side.
package domain
