package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mundotango/engagement/internal/domain"
)

// PostRepo implements domain.PostRepository backed by PostgreSQL.
type PostRepo struct {
	pool *pgxpool.Pool
}

// NewPostRepo creates a PostRepo from the shared connection pool.
func NewPostRepo(pool *pgxpool.Pool) *PostRepo {
	return &PostRepo{pool: pool}
}

func (r *PostRepo) Create(ctx context.Context, userID int64, body string) (*domain.Post, error) {
	var post domain.Post
	err := r.pool.QueryRow(ctx,
		`INSERT INTO posts (user_id, body)
		VALUES ($1, $2)
		RETURNING id, user_id, body, created_at`,
		userID, body,
	).Scan(&post.ID, &post.UserID, &post.Body, &post.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create post: %w", err)
	}
	return &post, nil
}

func (r *PostRepo) GetByID(ctx context.Context, postID int64) (*domain.Post, error) {
	var post domain.Post
	err := r.pool.QueryRow(ctx,
		`SELECT id, user_id, body, created_at FROM posts WHERE id = $1`,
		postID,
	).Scan(&post.ID, &post.UserID, &post.Body, &post.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrPostNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get post: %w", err)
	}
	return &post, nil
}
