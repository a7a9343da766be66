package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mundotango/engagement/internal/domain"
)

// CommentRepo implements domain.CommentRepository backed by PostgreSQL.
type CommentRepo struct {
	pool *pgxpool.Pool
}

// NewCommentRepo creates a CommentRepo from the shared connection pool.
func NewCommentRepo(pool *pgxpool.Pool) *CommentRepo {
	return &CommentRepo{pool: pool}
}

func (r *CommentRepo) Create(ctx context.Context, postID, userID int64, username, body string) (*domain.Comment, error) {
	comment := domain.Comment{
		PostID:   postID,
		UserID:   userID,
		Username: username,
		Body:     body,
	}
	err := r.pool.QueryRow(ctx,
		`INSERT INTO post_comments (post_id, user_id, username, body)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`,
		postID, userID, username, body,
	).Scan(&comment.ID, &comment.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create comment: %w", err)
	}
	return &comment, nil
}

func (r *CommentRepo) ListByPost(ctx context.Context, postID int64, limit int) ([]domain.Comment, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, post_id, user_id, username, body, created_at
		FROM post_comments
		WHERE post_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2`,
		postID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query comments: %w", err)
	}
	defer rows.Close()

	comments, err := pgx.CollectRows(rows, pgx.RowToStructByPos[domain.Comment])
	if err != nil {
		return nil, fmt.Errorf("failed to collect comments: %w", err)
	}
	return comments, nil
}
