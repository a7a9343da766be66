package domain

// EngagementBroadcaster is the port to the realtime fan-out engine. Delivery
// is best effort: the int results are the number of recipients the broadcast
// was attempted for, not confirmations.
type EngagementBroadcaster interface {
	BroadcastReactionUpdate(postID, userID int64, username string, reactions map[string]int, currentReaction string, totalReactions int) int
	BroadcastNewComment(postID int64, comment *Comment) int
	ViewerCount(postID int64) int
	HasViewers(postID int64) bool
}

// EventPublisher publishes engagement events to other instances after the
// local fan-out. Implemented by the Redis bridge.
type EventPublisher interface {
	PublishReactionUpdate(postID, userID int64, username string, reactions map[string]int, currentReaction string, totalReactions int) error
	PublishNewComment(postID int64, comment *Comment) error
}
