package domain

import (
	"context"
	"time"
)

// --- Model types ---

// IdentityClaim is the result of verifying a bearer token.
// Produced per request, never persisted.
type IdentityClaim struct {
	IsAuthenticated bool
	UserID          string
	Username        string
	Email           string
	Error           string
}

// ConnectionRecord describes a client the push subsystem believes is reachable.
// The registry is the sole writer; everyone else reads snapshots.
type ConnectionRecord struct {
	ConnectionID string    `json:"connection_id"`
	ConnectedAt  time.Time `json:"connected_at"`
	LastSeen     time.Time `json:"last_seen"`
	UserID       string    `json:"user_id,omitempty"`
	ExpiresAt    time.Time `json:"expires_at,omitempty"`
}

// ScoreEntry is a persisted score row.
type ScoreEntry struct {
	ID        string `json:"id"`
	UserID    string `json:"userId"`
	UserName  string `json:"userName"`
	Score     int64  `json:"score"`
	Timestamp int64  `json:"timestamp"`
}

// --- Wire messages ---
// Field names and type values are the client wire contract. Do not rename.

// ConnectedMessage is the acknowledgment sent right after a websocket upgrade.
type ConnectedMessage struct {
	Type         string `json:"type"`
	ConnectionID string `json:"connectionId"`
	Message      string `json:"message"`
}

// HighScoreMessage is the payload fanned out when a score exceeds the threshold.
// Immutable once constructed.
type HighScoreMessage struct {
	Type      string `json:"type"`
	UserName  string `json:"user_name"`
	UserID    string `json:"user_id"`
	Score     int64  `json:"score"`
	Timestamp int64  `json:"timestamp"`
	Message   string `json:"message"`
}

const (
	MessageTypeConnected = "CONNECTED"
	MessageTypeHighScore = "HIGH_SCORE"
)

// --- Interfaces ---

// ConnectionRegistry is the authoritative record of reachable clients.
// Implementations: in-process websocket hub, Redis, DynamoDB.
// ListReachable returns a snapshot; entries may vanish between listing and
// delivery and callers must tolerate that. Remove is idempotent.
type ConnectionRegistry interface {
	Register(ctx context.Context, connectionID, userID string) (ConnectionRecord, error)
	Touch(ctx context.Context, connectionID string) error
	Remove(ctx context.Context, connectionID string) error
	ListReachable(ctx context.Context) ([]ConnectionRecord, error)
}

// Deliverer pushes one payload to one connection. A gone connection is
// reported as ErrConnectionGone so the caller can prune it.
type Deliverer interface {
	Deliver(ctx context.Context, connectionID string, payload []byte) error
}

// TokenVerifier validates a bearer credential and extracts caller identity.
type TokenVerifier interface {
	Verify(ctx context.Context, bearer string) (IdentityClaim, error)
}

// ScoreStore persists score rows. Durable once Put returns nil.
type ScoreStore interface {
	Put(ctx context.Context, entry ScoreEntry) error
	Scan(ctx context.Context) ([]ScoreEntry, error)
}

// Broadcaster fans a message out to every reachable client, returning the
// number of successful deliveries.
type Broadcaster interface {
	Broadcast(ctx context.Context, msg HighScoreMessage) (int, error)
}
