package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nosisky/leaderboard-system/internal/domain"
)

// scoreColumns must match the scan order in collectScores.
const scoreColumns = `id, user_id, user_name, score, submitted_at`

// ScoreRepo implements domain.ScoreStore backed by PostgreSQL.
type ScoreRepo struct {
	pool *pgxpool.Pool
}

func NewScoreRepo(pool *pgxpool.Pool) *ScoreRepo {
	return &ScoreRepo{pool: pool}
}

func (r *ScoreRepo) Put(ctx context.Context, entry domain.ScoreEntry) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO scores (id, user_id, user_name, score, submitted_at)
		VALUES ($1, $2, $3, $4, $5)
	`, entry.ID, entry.UserID, entry.UserName, entry.Score, entry.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to insert score: %w", err)
	}
	return nil
}

func (r *ScoreRepo) Scan(ctx context.Context) ([]domain.ScoreEntry, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+scoreColumns+` FROM scores`)
	if err != nil {
		return nil, fmt.Errorf("failed to query scores: %w", err)
	}
	return collectScores(rows)
}

func collectScores(rows pgx.Rows) ([]domain.ScoreEntry, error) {
	defer rows.Close()

	var entries []domain.ScoreEntry
	for rows.Next() {
		var entry domain.ScoreEntry
		if err := rows.Scan(&entry.ID, &entry.UserID, &entry.UserName, &entry.Score, &entry.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan score row: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read score rows: %w", err)
	}
	return entries, nil
}
