package domain

import "context"

// PostRepository provides access to posts.
type PostRepository interface {
	Create(ctx context.Context, userID int64, body string) (*Post, error)
	GetByID(ctx context.Context, postID int64) (*Post, error)
}

// ReactionRepository persists reactions. A user has at most one reaction per
// post; setting a new kind replaces the old one.
type ReactionRepository interface {
	// Set upserts the user's reaction and returns the resulting summary.
	Set(ctx context.Context, postID, userID int64, kind string) (*ReactionSummary, error)
	// Remove deletes the user's reaction and returns the resulting summary.
	Remove(ctx context.Context, postID, userID int64) (*ReactionSummary, error)
	// Summary returns the current reaction state for a post as seen by userID.
	Summary(ctx context.Context, postID, userID int64) (*ReactionSummary, error)
}

// CommentRepository persists comments.
type CommentRepository interface {
	Create(ctx context.Context, postID, userID int64, username, body string) (*Comment, error)
	ListByPost(ctx context.Context, postID int64, limit int) ([]Comment, error)
}
