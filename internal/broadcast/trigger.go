package broadcast

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jonboulle/clockwork"

	"github.com/nosisky/leaderboard-system/internal/domain"
	"github.com/nosisky/leaderboard-system/internal/metrics"
)

// Trigger decides whether an accepted score becomes a broadcast. The
// caller's identity is re-verified here rather than trusted from earlier
// in the request, so a token that expired mid-request cannot announce.
type Trigger struct {
	verifier    domain.TokenVerifier
	broadcaster domain.Broadcaster
	clock       clockwork.Clock
	threshold   int64
}

func NewTrigger(verifier domain.TokenVerifier, broadcaster domain.Broadcaster, clock clockwork.Clock, threshold int64) *Trigger {
	return &Trigger{
		verifier:    verifier,
		broadcaster: broadcaster,
		clock:       clock,
		threshold:   threshold,
	}
}

// Evaluate announces the entry to all connected clients when its score
// strictly exceeds the threshold. Failures are logged and swallowed: the
// score is already persisted and a broken announcement must not undo that.
func (t *Trigger) Evaluate(ctx context.Context, bearer string, entry domain.ScoreEntry) {
	if entry.Score <= t.threshold {
		metrics.BroadcastsSkippedTotal.WithLabelValues("below_threshold").Inc()
		return
	}

	claim, err := t.verifier.Verify(ctx, bearer)
	if err != nil || !claim.IsAuthenticated {
		metrics.BroadcastsSkippedTotal.WithLabelValues("auth_failure").Inc()
		slog.Warn("Skipping high score announcement, identity could not be re-verified",
			"user_id", entry.UserID, "error", err)
		return
	}

	msg := domain.HighScoreMessage{
		Type:      domain.MessageTypeHighScore,
		UserName:  claim.Username,
		UserID:    claim.UserID,
		Score:     entry.Score,
		Timestamp: t.clock.Now().UnixMilli(),
		Message:   fmt.Sprintf("%s just scored %d points!", claim.Username, entry.Score),
	}

	delivered, err := t.broadcaster.Broadcast(ctx, msg)
	if err != nil {
		slog.Error("High score broadcast failed", "user_id", entry.UserID, "error", err)
		return
	}

	slog.Info("High score announced",
		"user_id", entry.UserID,
		"score", entry.Score,
		"delivered", delivered)
}
