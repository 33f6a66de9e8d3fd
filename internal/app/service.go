package app

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/nosisky/leaderboard-system/internal/domain"
	"github.com/nosisky/leaderboard-system/internal/metrics"
)

// announceTimeout bounds the detached announcement goroutine spawned per
// submission.
const announceTimeout = 30 * time.Second

// Announcer evaluates an accepted score for broadcast. Implementations must
// swallow their own failures.
type Announcer interface {
	Evaluate(ctx context.Context, bearer string, entry domain.ScoreEntry)
}

// Service is the application layer. It orchestrates score submission and
// leaderboard reads over the domain interfaces.
type Service struct {
	verifier        domain.TokenVerifier
	scores          domain.ScoreStore
	announcer       Announcer
	clock           clockwork.Clock
	leaderboardSize int
	announceWg      sync.WaitGroup
}

func NewService(verifier domain.TokenVerifier, scores domain.ScoreStore, announcer Announcer, clock clockwork.Clock, leaderboardSize int) *Service {
	return &Service{
		verifier:        verifier,
		scores:          scores,
		announcer:       announcer,
		clock:           clock,
		leaderboardSize: leaderboardSize,
	}
}

// Submit verifies the caller, persists the score, and kicks off the high
// score announcement. The announcement runs detached: once the score is
// durable, Submit reports success no matter what fan-out does.
func (s *Service) Submit(ctx context.Context, bearer string, score int64) (domain.ScoreEntry, error) {
	claim, err := s.verifier.Verify(ctx, bearer)
	if err != nil || !claim.IsAuthenticated {
		metrics.ScoreSubmissionsTotal.WithLabelValues("unauthorized").Inc()
		return domain.ScoreEntry{}, fmt.Errorf("%w: %s", domain.ErrUnauthenticated, claim.Error)
	}

	if score < 0 {
		metrics.ScoreSubmissionsTotal.WithLabelValues("invalid").Inc()
		return domain.ScoreEntry{}, domain.ErrInvalidScore
	}

	entry := domain.ScoreEntry{
		ID:        uuid.NewString(),
		UserID:    claim.UserID,
		UserName:  claim.Username,
		Score:     score,
		Timestamp: s.clock.Now().UnixMilli(),
	}

	if err := s.scores.Put(ctx, entry); err != nil {
		metrics.ScoreSubmissionsTotal.WithLabelValues("store_error").Inc()
		return domain.ScoreEntry{}, fmt.Errorf("failed to store score: %w", err)
	}
	metrics.ScoreSubmissionsTotal.WithLabelValues("ok").Inc()

	s.announceWg.Add(1)
	go func() {
		defer s.announceWg.Done()

		// Detached from the request context: the HTTP response must not
		// wait for, or be failed by, the fan-out.
		announceCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), announceTimeout)
		defer cancel()
		s.announcer.Evaluate(announceCtx, bearer, entry)
	}()

	return entry, nil
}

// Leaderboard returns the top scores in rank order plus the total number of
// stored entries.
func (s *Service) Leaderboard(ctx context.Context) ([]domain.ScoreEntry, int, error) {
	entries, err := s.scores.Scan(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to load scores: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		return entries[i].Timestamp < entries[j].Timestamp
	})

	total := len(entries)
	if total > s.leaderboardSize {
		entries = entries[:s.leaderboardSize]
	}
	return entries, total, nil
}

// Shutdown waits for in-flight announcements to drain.
func (s *Service) Shutdown() {
	s.announceWg.Wait()
}
