package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/mundotango/engagement/internal/domain"
	"github.com/mundotango/engagement/internal/metrics"
)

// eventsChannel is the Pub/Sub channel all instances share for engagement
// events.
const eventsChannel = "engagement:events"

// Event types carried over the bridge.
const (
	eventReactionUpdate = "reaction_update"
	eventNewComment     = "new_comment"
)

// EngagementEvent is the message published via Redis Pub/Sub. Origin carries
// the publishing instance's ID so instances skip their own events.
type EngagementEvent struct {
	Origin          string          `json:"origin"`
	Type            string          `json:"type"`
	PostID          int64           `json:"postId"`
	UserID          int64           `json:"userId,omitempty"`
	Username        string          `json:"username,omitempty"`
	Reactions       map[string]int  `json:"reactions,omitempty"`
	CurrentReaction string          `json:"currentReaction,omitempty"`
	TotalReactions  int             `json:"totalReactions,omitempty"`
	Comment         *domain.Comment `json:"comment,omitempty"`
}

// Bridge relays engagement events between instances via Redis Pub/Sub. After
// a local fan-out the event is published; other instances receive it and fan
// out to their own connections. Publishing is best effort.
type Bridge struct {
	rdb        *goredis.Client
	instanceID string
	local      domain.EngagementBroadcaster
}

var _ domain.EventPublisher = (*Bridge)(nil)

// NewBridge creates a Bridge with a fresh instance ID, delivering received
// events to local.
func NewBridge(client *Client, local domain.EngagementBroadcaster) *Bridge {
	return &Bridge{
		rdb:        client.rdb,
		instanceID: uuid.NewString(),
		local:      local,
	}
}

// InstanceID returns this instance's origin identifier.
func (b *Bridge) InstanceID() string {
	return b.instanceID
}

// PublishReactionUpdate publishes a reaction_update event for other instances.
func (b *Bridge) PublishReactionUpdate(postID, userID int64, username string, reactions map[string]int, currentReaction string, totalReactions int) error {
	return b.publish(EngagementEvent{
		Origin:          b.instanceID,
		Type:            eventReactionUpdate,
		PostID:          postID,
		UserID:          userID,
		Username:        username,
		Reactions:       reactions,
		CurrentReaction: currentReaction,
		TotalReactions:  totalReactions,
	})
}

// PublishNewComment publishes a new_comment event for other instances.
func (b *Bridge) PublishNewComment(postID int64, comment *domain.Comment) error {
	return b.publish(EngagementEvent{
		Origin:  b.instanceID,
		Type:    eventNewComment,
		PostID:  postID,
		Comment: comment,
	})
}

func (b *Bridge) publish(event EngagementEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		metrics.BridgeEventsPublished.WithLabelValues(event.Type, "error").Inc()
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := b.rdb.Publish(ctx, eventsChannel, data).Err(); err != nil {
		metrics.BridgeEventsPublished.WithLabelValues(event.Type, "error").Inc()
		return fmt.Errorf("failed to publish event: %w", err)
	}

	metrics.BridgeEventsPublished.WithLabelValues(event.Type, "success").Inc()
	return nil
}

// Run subscribes to the events channel and fans received events out to local
// connections until ctx is cancelled. Events published by this instance are
// skipped.
func (b *Bridge) Run(ctx context.Context) error {
	sub := b.rdb.Subscribe(ctx, eventsChannel)
	defer sub.Close() //nolint:errcheck

	// Confirm the subscription before reporting active.
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", eventsChannel, err)
	}

	metrics.BridgeSubscriptionActive.Set(1)
	defer metrics.BridgeSubscriptionActive.Set(0)

	slog.Info("engagement bridge subscribed", "channel", eventsChannel, "instance_id", b.instanceID)

	msgCh := sub.Channel()
	for {
		select {
		case msg, ok := <-msgCh:
			if !ok {
				return nil
			}
			b.handleMessage(msg.Payload)
		case <-ctx.Done():
			return nil
		}
	}
}

func (b *Bridge) handleMessage(payload string) {
	var event EngagementEvent
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		metrics.BridgeEventsReceived.WithLabelValues("malformed").Inc()
		slog.Warn("failed to unmarshal bridge event", "error", err)
		return
	}

	if event.Origin == b.instanceID {
		metrics.BridgeEventsReceived.WithLabelValues("own_origin").Inc()
		return
	}

	switch event.Type {
	case eventReactionUpdate:
		b.local.BroadcastReactionUpdate(event.PostID, event.UserID, event.Username,
			event.Reactions, event.CurrentReaction, event.TotalReactions)
		metrics.BridgeEventsReceived.WithLabelValues("fanned_out").Inc()
	case eventNewComment:
		if event.Comment == nil {
			metrics.BridgeEventsReceived.WithLabelValues("malformed").Inc()
			return
		}
		b.local.BroadcastNewComment(event.PostID, event.Comment)
		metrics.BridgeEventsReceived.WithLabelValues("fanned_out").Inc()
	default:
		metrics.BridgeEventsReceived.WithLabelValues("unknown_type").Inc()
		slog.Warn("unknown bridge event type", "type", event.Type)
	}
}
