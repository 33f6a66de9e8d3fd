package broadcast

import (
	"context"
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nosisky/leaderboard-system/internal/domain"
)

type fakeVerifier struct {
	claim domain.IdentityClaim
	err   error
	calls int
}

func (f *fakeVerifier) Verify(context.Context, string) (domain.IdentityClaim, error) {
	f.calls++
	return f.claim, f.err
}

type fakeBroadcaster struct {
	last      *domain.HighScoreMessage
	delivered int
	err       error
}

func (f *fakeBroadcaster) Broadcast(_ context.Context, msg domain.HighScoreMessage) (int, error) {
	f.last = &msg
	return f.delivered, f.err
}

func authenticatedClaim() domain.IdentityClaim {
	return domain.IdentityClaim{
		IsAuthenticated: true,
		UserID:          "user-1",
		Username:        "alice",
		Email:           "alice@example.com",
	}
}

func TestTrigger_AnnouncesAboveThreshold(t *testing.T) {
	verifier := &fakeVerifier{claim: authenticatedClaim()}
	broadcaster := &fakeBroadcaster{delivered: 3}
	clock := clockwork.NewFakeClock()
	trigger := NewTrigger(verifier, broadcaster, clock, 1000)

	trigger.Evaluate(context.Background(), "Bearer token", domain.ScoreEntry{
		UserID: "user-1",
		Score:  1500,
	})

	require.NotNil(t, broadcaster.last)
	assert.Equal(t, domain.MessageTypeHighScore, broadcaster.last.Type)
	assert.Equal(t, "alice", broadcaster.last.UserName)
	assert.Equal(t, "user-1", broadcaster.last.UserID)
	assert.Equal(t, int64(1500), broadcaster.last.Score)
	assert.Equal(t, clock.Now().UnixMilli(), broadcaster.last.Timestamp)
	assert.Equal(t, "alice just scored 1500 points!", broadcaster.last.Message)
}

func TestTrigger_ThresholdIsStrict(t *testing.T) {
	verifier := &fakeVerifier{claim: authenticatedClaim()}
	broadcaster := &fakeBroadcaster{}
	trigger := NewTrigger(verifier, broadcaster, clockwork.NewFakeClock(), 1000)

	trigger.Evaluate(context.Background(), "Bearer token", domain.ScoreEntry{Score: 1000})

	assert.Nil(t, broadcaster.last)
	assert.Zero(t, verifier.calls)
}

func TestTrigger_SkipsWhenIdentityNotReverifiable(t *testing.T) {
	verifier := &fakeVerifier{claim: domain.IdentityClaim{IsAuthenticated: false, Error: "Token expired"}}
	broadcaster := &fakeBroadcaster{}
	trigger := NewTrigger(verifier, broadcaster, clockwork.NewFakeClock(), 1000)

	trigger.Evaluate(context.Background(), "Bearer expired", domain.ScoreEntry{Score: 2000})

	assert.Nil(t, broadcaster.last)
	assert.Equal(t, 1, verifier.calls)
}

func TestTrigger_SwallowsBroadcastFailure(t *testing.T) {
	verifier := &fakeVerifier{claim: authenticatedClaim()}
	broadcaster := &fakeBroadcaster{err: assert.AnError}
	trigger := NewTrigger(verifier, broadcaster, clockwork.NewFakeClock(), 1000)

	assert.NotPanics(t, func() {
		trigger.Evaluate(context.Background(), "Bearer token", domain.ScoreEntry{Score: 2000})
	})
}

func TestTrigger_UsesFreshIdentityForMessage(t *testing.T) {
	// The announcement carries the identity from re-verification, not
	// whatever was stored on the entry.
	verifier := &fakeVerifier{claim: authenticatedClaim()}
	broadcaster := &fakeBroadcaster{}
	trigger := NewTrigger(verifier, broadcaster, clockwork.NewFakeClock(), 1000)

	trigger.Evaluate(context.Background(), "Bearer token", domain.ScoreEntry{
		UserID:   "stale-user",
		UserName: "stale-name",
		Score:    1500,
	})

	require.NotNil(t, broadcaster.last)
	assert.Equal(t, "user-1", broadcaster.last.UserID)
	assert.Equal(t, "alice", broadcaster.last.UserName)
}
