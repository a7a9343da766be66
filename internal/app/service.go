package app

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/mundotango/engagement/internal/domain"
	apperrors "github.com/mundotango/engagement/internal/errors"
)

const (
	maxPostBodyLength    = 10000
	maxCommentBodyLength = 2000

	defaultCommentLimit = 50
	maxCommentLimit     = 200
)

// Service is the application layer, the only component that references
// multiple domain components. Writes go to PostgreSQL first; broadcasts
// happen after the write succeeds, so connections never see events for data
// that wasn't persisted.
type Service struct {
	posts       domain.PostRepository
	reactions   domain.ReactionRepository
	comments    domain.CommentRepository
	broadcaster domain.EngagementBroadcaster
	publisher   domain.EventPublisher
}

// NewService creates the application layer service.
// publisher may be nil when running without the cross-instance bridge.
func NewService(posts domain.PostRepository, reactions domain.ReactionRepository, comments domain.CommentRepository, broadcaster domain.EngagementBroadcaster, publisher domain.EventPublisher) *Service {
	return &Service{
		posts:       posts,
		reactions:   reactions,
		comments:    comments,
		broadcaster: broadcaster,
		publisher:   publisher,
	}
}

// CreatePost persists a new post.
func (s *Service) CreatePost(ctx context.Context, userID int64, body string) (*domain.Post, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, apperrors.ValidationError("post body must not be empty")
	}
	if len(body) > maxPostBodyLength {
		return nil, apperrors.ValidationError("post body too long")
	}
	return s.posts.Create(ctx, userID, body)
}

// GetPost retrieves a post by ID.
func (s *Service) GetPost(ctx context.Context, postID int64) (*domain.Post, error) {
	post, err := s.posts.GetByID(ctx, postID)
	if errors.Is(err, domain.ErrPostNotFound) {
		return nil, apperrors.NotFoundError("post not found").WithContext("post_id", postID)
	}
	return post, err
}

// ReactToPost sets the user's reaction on a post, replacing any previous
// kind, then broadcasts the updated summary to the post's viewers except the
// acting user.
func (s *Service) ReactToPost(ctx context.Context, postID, userID int64, username, kind string) (*domain.ReactionSummary, error) {
	if !domain.ValidReactionKind(kind) {
		return nil, apperrors.ValidationError("invalid reaction type: " + kind)
	}
	if _, err := s.GetPost(ctx, postID); err != nil {
		return nil, err
	}

	summary, err := s.reactions.Set(ctx, postID, userID, kind)
	if err != nil {
		return nil, err
	}

	s.broadcastReaction(ctx, postID, userID, username, summary)
	return summary, nil
}

// RemoveReaction deletes the user's reaction from a post and broadcasts the
// updated summary.
func (s *Service) RemoveReaction(ctx context.Context, postID, userID int64, username string) (*domain.ReactionSummary, error) {
	if _, err := s.GetPost(ctx, postID); err != nil {
		return nil, err
	}

	summary, err := s.reactions.Remove(ctx, postID, userID)
	if errors.Is(err, domain.ErrReactionNotFound) {
		return nil, apperrors.NotFoundError("reaction not found").WithContext("post_id", postID)
	}
	if err != nil {
		return nil, err
	}

	s.broadcastReaction(ctx, postID, userID, username, summary)
	return summary, nil
}

// AddComment persists a comment and broadcasts it to the post's viewers,
// including the author's other connections but not the authoring user.
func (s *Service) AddComment(ctx context.Context, postID, userID int64, username, body string) (*domain.Comment, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, apperrors.ValidationError("comment body must not be empty")
	}
	if len(body) > maxCommentBodyLength {
		return nil, apperrors.ValidationError("comment body too long")
	}
	if _, err := s.GetPost(ctx, postID); err != nil {
		return nil, err
	}

	comment, err := s.comments.Create(ctx, postID, userID, username, body)
	if err != nil {
		return nil, err
	}

	attempted := s.broadcaster.BroadcastNewComment(postID, comment)
	slog.DebugContext(ctx, "broadcast new_comment", "post_id", postID, "comment_id", comment.ID, "attempted", attempted)

	if s.publisher != nil {
		if err := s.publisher.PublishNewComment(postID, comment); err != nil {
			slog.WarnContext(ctx, "failed to publish new_comment event", "post_id", postID, "error", err)
		}
	}

	return comment, nil
}

// ListComments returns the newest comments on a post, at most limit
// (defaulted and capped).
func (s *Service) ListComments(ctx context.Context, postID int64, limit int) ([]domain.Comment, error) {
	if limit <= 0 {
		limit = defaultCommentLimit
	}
	if limit > maxCommentLimit {
		limit = maxCommentLimit
	}
	if _, err := s.GetPost(ctx, postID); err != nil {
		return nil, err
	}
	return s.comments.ListByPost(ctx, postID, limit)
}

// ReactionSummary returns the current reaction state of a post as seen by
// userID.
func (s *Service) ReactionSummary(ctx context.Context, postID, userID int64) (*domain.ReactionSummary, error) {
	if _, err := s.GetPost(ctx, postID); err != nil {
		return nil, err
	}
	return s.reactions.Summary(ctx, postID, userID)
}

// ViewerCount returns the number of connections currently subscribed to a
// post on this instance.
func (s *Service) ViewerCount(postID int64) int {
	return s.broadcaster.ViewerCount(postID)
}

func (s *Service) broadcastReaction(ctx context.Context, postID, userID int64, username string, summary *domain.ReactionSummary) {
	attempted := s.broadcaster.BroadcastReactionUpdate(postID, userID, username,
		summary.Reactions, summary.CurrentReaction, summary.TotalReactions)
	slog.DebugContext(ctx, "broadcast reaction_update", "post_id", postID, "attempted", attempted)

	if s.publisher != nil {
		if err := s.publisher.PublishReactionUpdate(postID, userID, username,
			summary.Reactions, summary.CurrentReaction, summary.TotalReactions); err != nil {
			slog.WarnContext(ctx, "failed to publish reaction_update event", "post_id", postID, "error", err)
		}
	}
}
