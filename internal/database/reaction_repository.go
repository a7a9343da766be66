package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mundotango/engagement/internal/domain"
)

// ReactionRepo implements domain.ReactionRepository backed by PostgreSQL.
// A (post, user) pair holds at most one reaction; Set replaces any
// existing kind.
type ReactionRepo struct {
	pool *pgxpool.Pool
}

// NewReactionRepo creates a ReactionRepo from the shared connection pool.
func NewReactionRepo(pool *pgxpool.Pool) *ReactionRepo {
	return &ReactionRepo{pool: pool}
}

func (r *ReactionRepo) Set(ctx context.Context, postID, userID int64, kind string) (*domain.ReactionSummary, error) {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO post_reactions (post_id, user_id, kind)
		VALUES ($1, $2, $3)
		ON CONFLICT (post_id, user_id) DO UPDATE SET
			kind = EXCLUDED.kind,
			updated_at = NOW()`,
		postID, userID, kind,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to set reaction: %w", err)
	}
	return r.Summary(ctx, postID, userID)
}

func (r *ReactionRepo) Remove(ctx context.Context, postID, userID int64) (*domain.ReactionSummary, error) {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM post_reactions WHERE post_id = $1 AND user_id = $2`,
		postID, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to remove reaction: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, domain.ErrReactionNotFound
	}
	return r.Summary(ctx, postID, userID)
}

func (r *ReactionRepo) Summary(ctx context.Context, postID, userID int64) (*domain.ReactionSummary, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT kind, user_id FROM post_reactions WHERE post_id = $1`,
		postID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query reactions: %w", err)
	}
	defer rows.Close()

	summary := &domain.ReactionSummary{
		PostID:    postID,
		Reactions: make(map[string]int),
	}
	for rows.Next() {
		var kind string
		var reactorID int64
		if err := rows.Scan(&kind, &reactorID); err != nil {
			return nil, fmt.Errorf("failed to scan reaction: %w", err)
		}
		summary.Reactions[kind]++
		if reactorID == userID {
			summary.CurrentReaction = kind
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read reactions: %w", err)
	}

	summary.TotalReactions = summary.Total()
	return summary, nil
}
