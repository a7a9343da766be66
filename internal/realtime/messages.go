package realtime

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/mundotango/engagement/internal/domain"
)

// Inbound message types. The closed interface keeps the dispatch exhaustive:
// decodeInbound can only produce one of the variants below, and the read
// pump switches over all of them.

type inboundMessage interface{ isInbound() }

type pingMessage struct{}

type subscribeMessage struct {
	postID int64
}

type unsubscribeMessage struct {
	postID int64
}

type typingMessage struct {
	postID   int64
	username string
}

func (pingMessage) isInbound()        {}
func (subscribeMessage) isInbound()   {}
func (unsubscribeMessage) isInbound() {}
func (typingMessage) isInbound()      {}

// inboundEnvelope is the raw shape of every client message.
type inboundEnvelope struct {
	Type     string `json:"type"`
	PostID   int64  `json:"postId"`
	Username string `json:"username"`
}

// protocolError is a non-fatal inbound decoding failure. The reason feeds
// the protocol-error metric; the connection is never closed for one.
type protocolError struct {
	reason string
	detail string
}

func (e *protocolError) Error() string {
	return e.detail
}

// decodeInbound parses a client frame into one of the inbound variants.
// Malformed JSON and unknown types are protocol errors: the caller logs and
// drops the message, the connection survives.
func decodeInbound(data []byte) (inboundMessage, error) {
	var env inboundEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, &protocolError{reason: "malformed", detail: fmt.Sprintf("malformed message: %v", err)}
	}

	switch env.Type {
	case "ping":
		return pingMessage{}, nil
	case "subscribe":
		if env.PostID <= 0 {
			return nil, &protocolError{reason: "malformed", detail: fmt.Sprintf("subscribe requires a positive postId, got %d", env.PostID)}
		}
		return subscribeMessage{postID: env.PostID}, nil
	case "unsubscribe":
		if env.PostID <= 0 {
			return nil, &protocolError{reason: "malformed", detail: fmt.Sprintf("unsubscribe requires a positive postId, got %d", env.PostID)}
		}
		return unsubscribeMessage{postID: env.PostID}, nil
	case "typing":
		if env.PostID <= 0 {
			return nil, &protocolError{reason: "malformed", detail: fmt.Sprintf("typing requires a positive postId, got %d", env.PostID)}
		}
		return typingMessage{postID: env.PostID, username: env.Username}, nil
	default:
		return nil, &protocolError{reason: "unknown_type", detail: fmt.Sprintf("unknown message type %q", env.Type)}
	}
}

// Outbound message shapes. Every server frame carries a type discriminator;
// events tied to a post also carry a server-side timestamp.

type authSuccessMessage struct {
	Type    string `json:"type"`
	UserID  int64  `json:"userId"`
	Message string `json:"message"`
}

type pongReply struct {
	Type string `json:"type"`
}

type errorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type reactionUpdateMessage struct {
	Type            string         `json:"type"`
	PostID          int64          `json:"postId"`
	UserID          int64          `json:"userId"`
	Username        string         `json:"username"`
	Reactions       map[string]int `json:"reactions"`
	CurrentReaction string         `json:"currentReaction"`
	TotalReactions  int            `json:"totalReactions"`
	Timestamp       time.Time      `json:"timestamp"`
}

type newCommentMessage struct {
	Type      string          `json:"type"`
	PostID    int64           `json:"postId"`
	Comment   *domain.Comment `json:"comment"`
	Timestamp time.Time       `json:"timestamp"`
}

type userTypingMessage struct {
	Type      string    `json:"type"`
	UserID    int64     `json:"userId"`
	Username  string    `json:"username"`
	PostID    int64     `json:"postId"`
	Timestamp time.Time `json:"timestamp"`
}

func mustMarshal(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		// All outbound shapes are plain structs; a marshal failure is a bug.
		panic(fmt.Sprintf("failed to marshal outbound message: %v", err))
	}
	return data
}
