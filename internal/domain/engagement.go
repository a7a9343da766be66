package domain

import "time"

// Reaction kinds accepted by the API. Anything else is a validation error.
const (
	ReactionLike      = "like"
	ReactionLove      = "love"
	ReactionCelebrate = "celebrate"
	ReactionInsight   = "insight"
)

// ValidReactionKind reports whether kind is one of the accepted reactions.
func ValidReactionKind(kind string) bool {
	switch kind {
	case ReactionLike, ReactionLove, ReactionCelebrate, ReactionInsight:
		return true
	}
	return false
}

// Post is a content item connections subscribe to for engagement events.
type Post struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"userId"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"createdAt"`
}

// Comment is a persisted comment on a post. The full payload travels in
// new_comment broadcasts.
type Comment struct {
	ID        int64     `json:"id"`
	PostID    int64     `json:"postId"`
	UserID    int64     `json:"userId"`
	Username  string    `json:"username"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"createdAt"`
}

// ReactionSummary is the post-write state of a post's reactions: counts per
// kind, the acting user's own current reaction ("" if none), and the total.
type ReactionSummary struct {
	PostID          int64          `json:"postId"`
	Reactions       map[string]int `json:"reactions"`
	CurrentReaction string         `json:"currentReaction"`
	TotalReactions  int            `json:"totalReactions"`
}

// Total sums the per-kind counts.
func (s ReactionSummary) Total() int {
	total := 0
	for _, n := range s.Reactions {
		total += n
	}
	return total
}
