package app

import (
	"context"
	"sync"
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nosisky/leaderboard-system/internal/domain"
)

type stubVerifier struct {
	claim domain.IdentityClaim
}

func (s *stubVerifier) Verify(context.Context, string) (domain.IdentityClaim, error) {
	return s.claim, nil
}

type memoryScores struct {
	mu      sync.Mutex
	entries []domain.ScoreEntry
	putErr  error
	scanErr error
}

func (m *memoryScores) Put(_ context.Context, entry domain.ScoreEntry) error {
	if m.putErr != nil {
		return m.putErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry)
	return nil
}

func (m *memoryScores) Scan(context.Context) ([]domain.ScoreEntry, error) {
	if m.scanErr != nil {
		return nil, m.scanErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.ScoreEntry(nil), m.entries...), nil
}

type recordingAnnouncer struct {
	mu      sync.Mutex
	entries []domain.ScoreEntry
}

func (r *recordingAnnouncer) Evaluate(_ context.Context, _ string, entry domain.ScoreEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
}

func (r *recordingAnnouncer) seen() []domain.ScoreEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.ScoreEntry(nil), r.entries...)
}

func aliceVerifier() *stubVerifier {
	return &stubVerifier{claim: domain.IdentityClaim{
		IsAuthenticated: true,
		UserID:          "user-1",
		Username:        "alice",
		Email:           "alice@example.com",
	}}
}

func TestService_SubmitPersistsAndAnnounces(t *testing.T) {
	scores := &memoryScores{}
	announcer := &recordingAnnouncer{}
	svc := NewService(aliceVerifier(), scores, announcer, clockwork.NewFakeClock(), 10)

	entry, err := svc.Submit(context.Background(), "Bearer token", 1500)
	require.NoError(t, err)
	svc.Shutdown()

	assert.NotEmpty(t, entry.ID)
	assert.Equal(t, "user-1", entry.UserID)
	assert.Equal(t, "alice", entry.UserName)
	assert.Equal(t, int64(1500), entry.Score)

	require.Len(t, scores.entries, 1)
	require.Len(t, announcer.seen(), 1)
	assert.Equal(t, entry, announcer.seen()[0])
}

func TestService_SubmitRejectsUnauthenticated(t *testing.T) {
	verifier := &stubVerifier{claim: domain.IdentityClaim{IsAuthenticated: false, Error: "Token expired"}}
	scores := &memoryScores{}
	svc := NewService(verifier, scores, &recordingAnnouncer{}, clockwork.NewFakeClock(), 10)

	_, err := svc.Submit(context.Background(), "Bearer expired", 1500)
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)
	assert.Empty(t, scores.entries)
}

func TestService_SubmitRejectsNegativeScore(t *testing.T) {
	scores := &memoryScores{}
	svc := NewService(aliceVerifier(), scores, &recordingAnnouncer{}, clockwork.NewFakeClock(), 10)

	_, err := svc.Submit(context.Background(), "Bearer token", -1)
	assert.ErrorIs(t, err, domain.ErrInvalidScore)
	assert.Empty(t, scores.entries)
}

func TestService_SubmitZeroScoreIsValid(t *testing.T) {
	scores := &memoryScores{}
	svc := NewService(aliceVerifier(), scores, &recordingAnnouncer{}, clockwork.NewFakeClock(), 10)

	_, err := svc.Submit(context.Background(), "Bearer token", 0)
	require.NoError(t, err)
	svc.Shutdown()
	assert.Len(t, scores.entries, 1)
}

func TestService_SubmitFailsWhenStoreFails(t *testing.T) {
	scores := &memoryScores{putErr: assert.AnError}
	announcer := &recordingAnnouncer{}
	svc := NewService(aliceVerifier(), scores, announcer, clockwork.NewFakeClock(), 10)

	_, err := svc.Submit(context.Background(), "Bearer token", 1500)
	require.Error(t, err)
	svc.Shutdown()
	assert.Empty(t, announcer.seen())
}

func TestService_LeaderboardRanksAndTruncates(t *testing.T) {
	scores := &memoryScores{entries: []domain.ScoreEntry{
		{ID: "a", Score: 100, Timestamp: 3},
		{ID: "b", Score: 900, Timestamp: 1},
		{ID: "c", Score: 500, Timestamp: 2},
		{ID: "d", Score: 900, Timestamp: 0},
	}}
	svc := NewService(aliceVerifier(), scores, &recordingAnnouncer{}, clockwork.NewFakeClock(), 3)

	entries, total, err := svc.Leaderboard(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 4, total)
	require.Len(t, entries, 3)
	// Ties broken by earlier submission.
	assert.Equal(t, "d", entries[0].ID)
	assert.Equal(t, "b", entries[1].ID)
	assert.Equal(t, "c", entries[2].ID)
}

func TestService_LeaderboardEmptyStore(t *testing.T) {
	svc := NewService(aliceVerifier(), &memoryScores{}, &recordingAnnouncer{}, clockwork.NewFakeClock(), 10)

	entries, total, err := svc.Leaderboard(context.Background())
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, entries)
}
