package realtime

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"

	"github.com/mundotango/engagement/internal/domain"
	"github.com/mundotango/engagement/internal/metrics"
)

const (
	commandTimeout     = 5 * time.Second
	stopTimeout        = 10 * time.Second
	commandChannelSize = 256

	// closeCodeHeartbeatTimeout distinguishes sweep evictions from normal
	// closes so clients know to silently reconnect and re-subscribe.
	closeCodeHeartbeatTimeout = 4000
)

// Defaults applied by NewHub when the corresponding option is zero.
const (
	DefaultMaxSubscriptionsPerConn = 100
	DefaultHeartbeatTimeout        = 60 * time.Second
	DefaultSweepInterval           = 30 * time.Second
)

// client is the per-socket state: the owner bound at handshake, the writer
// that owns the socket, the subscription set, and the liveness timestamp.
type client struct {
	userID        int64
	username      string
	conn          *websocket.Conn
	writer        *clientWriter
	subscriptions map[int64]struct{}
	lastSeen      time.Time
}

// hubCmd is the command interface for the hub actor.
type hubCmd interface{ isHubCmd() }

type baseHubCmd struct{}

func (baseHubCmd) isHubCmd() {}

type registerCmd struct {
	baseHubCmd
	userID       int64
	username     string
	connection   *websocket.Conn
	errorChannel chan error
}

type unregisterCmd struct {
	baseHubCmd
	connection *websocket.Conn
}

type subscribeCmd struct {
	baseHubCmd
	connection *websocket.Conn
	postID     int64
}

type unsubscribeCmd struct {
	baseHubCmd
	connection *websocket.Conn
	postID     int64
}

type heartbeatCmd struct {
	baseHubCmd
	connection *websocket.Conn
}

type typingCmd struct {
	baseHubCmd
	connection *websocket.Conn
	postID     int64
	username   string
}

type broadcastCmd struct {
	baseHubCmd
	postID        int64
	data          []byte
	excludeUserID int64
	replyChannel  chan int
}

type viewerCountCmd struct {
	baseHubCmd
	postID       int64
	replyChannel chan int
}

type stopCmd struct {
	baseHubCmd
}

// Hub owns the connection registry and performs all fan-out. A single
// goroutine processes commands, so registry access needs no locking.
type Hub struct {
	cmdCh chan hubCmd
	clock clockwork.Clock
	done  chan struct{}

	// users keeps each user's connections in registration order; conns
	// indexes the same records by socket for O(1) lookup.
	users map[int64][]*client
	conns map[*websocket.Conn]*client

	maxSubscriptions int
	heartbeatTimeout time.Duration
	sweepInterval    time.Duration
}

// NewHub creates the hub and starts its actor goroutine. Zero values for
// maxSubscriptions, heartbeatTimeout, and sweepInterval select defaults.
func NewHub(clock clockwork.Clock, maxSubscriptions int, heartbeatTimeout, sweepInterval time.Duration) *Hub {
	if maxSubscriptions <= 0 {
		maxSubscriptions = DefaultMaxSubscriptionsPerConn
	}
	if heartbeatTimeout <= 0 {
		heartbeatTimeout = DefaultHeartbeatTimeout
	}
	if sweepInterval <= 0 {
		sweepInterval = DefaultSweepInterval
	}

	h := &Hub{
		cmdCh:            make(chan hubCmd, commandChannelSize),
		clock:            clock,
		done:             make(chan struct{}),
		users:            make(map[int64][]*client),
		conns:            make(map[*websocket.Conn]*client),
		maxSubscriptions: maxSubscriptions,
		heartbeatTimeout: heartbeatTimeout,
		sweepInterval:    sweepInterval,
	}
	go h.run()
	return h
}

// Register admits an authenticated connection under userID and sends the
// auth_success acknowledgment. Returns an error if the hub is stuck or
// stopped.
func (h *Hub) Register(userID int64, username string, conn *websocket.Conn) error {
	errCh := make(chan error, 1)
	h.cmdCh <- registerCmd{userID: userID, username: username, connection: conn, errorChannel: errCh}

	timer := h.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case err := <-errCh:
		return err
	case <-timer.Chan():
		return fmt.Errorf("register command timed out after %v", commandTimeout)
	}
}

// Unregister removes a connection from the registry and stops its writer.
// Safe to call for connections that were never registered or already removed.
func (h *Hub) Unregister(conn *websocket.Conn) {
	h.cmdCh <- unregisterCmd{connection: conn}
}

// BroadcastReactionUpdate fans a reaction_update out to every subscriber of
// the post, including the actor's own connections. Returns recipients
// attempted.
func (h *Hub) BroadcastReactionUpdate(postID, userID int64, username string, reactions map[string]int, currentReaction string, totalReactions int) int {
	msg := reactionUpdateMessage{
		Type:            "reaction_update",
		PostID:          postID,
		UserID:          userID,
		Username:        username,
		Reactions:       reactions,
		CurrentReaction: currentReaction,
		TotalReactions:  totalReactions,
		Timestamp:       h.clock.Now().UTC(),
	}
	metrics.HubBroadcastsTotal.WithLabelValues("reaction_update").Inc()
	return h.broadcastToPost(postID, mustMarshal(msg), 0)
}

// BroadcastNewComment fans a new_comment out to every subscriber of the
// post. Returns recipients attempted.
func (h *Hub) BroadcastNewComment(postID int64, comment *domain.Comment) int {
	msg := newCommentMessage{
		Type:      "new_comment",
		PostID:    postID,
		Comment:   comment,
		Timestamp: h.clock.Now().UTC(),
	}
	metrics.HubBroadcastsTotal.WithLabelValues("new_comment").Inc()
	return h.broadcastToPost(postID, mustMarshal(msg), 0)
}

// broadcastToPost posts a broadcast command and waits for the attempted
// count. Returns 0 if the hub does not answer within the command timeout.
func (h *Hub) broadcastToPost(postID int64, data []byte, excludeUserID int64) int {
	replyCh := make(chan int, 1)
	h.cmdCh <- broadcastCmd{postID: postID, data: data, excludeUserID: excludeUserID, replyChannel: replyCh}

	timer := h.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case n := <-replyCh:
		return n
	case <-timer.Chan():
		slog.Warn("broadcast command timed out", "post_id", postID, "timeout", commandTimeout)
		return 0
	}
}

// ViewerCount returns how many live connections are subscribed to the post.
// Returns 0 if the hub does not answer within the command timeout.
func (h *Hub) ViewerCount(postID int64) int {
	replyCh := make(chan int, 1)
	h.cmdCh <- viewerCountCmd{postID: postID, replyChannel: replyCh}

	timer := h.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case n := <-replyCh:
		return n
	case <-timer.Chan():
		slog.Warn("viewer count command timed out", "post_id", postID, "timeout", commandTimeout)
		return 0
	}
}

// HasViewers reports whether any live connection is subscribed to the post.
func (h *Hub) HasViewers(postID int64) bool {
	return h.ViewerCount(postID) > 0
}

// Stop shuts the hub down, closing every connection with a going-away frame.
// Blocks until the actor goroutine exits or the stop timeout elapses.
func (h *Hub) Stop() {
	h.cmdCh <- stopCmd{}

	timer := h.clock.NewTimer(stopTimeout)
	defer timer.Stop()

	select {
	case <-h.done:
		slog.Info("hub stopped")
	case <-timer.Chan():
		slog.Warn("hub stop timeout exceeded", "timeout", stopTimeout)
		metrics.HubStopTimeoutsTotal.Inc()
	}
}

// ReadPump consumes frames from an admitted connection until it closes,
// dispatching each inbound variant to the hub. It blocks the caller (the
// HTTP handler goroutine) and unregisters the connection on the way out,
// whatever the close reason.
func (h *Hub) ReadPump(conn *websocket.Conn) {
	defer h.Unregister(conn)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		msg, err := decodeInbound(data)
		if err != nil {
			reason := "malformed"
			var perr *protocolError
			if errors.As(err, &perr) {
				reason = perr.reason
			}
			metrics.WebSocketProtocolErrors.WithLabelValues(reason).Inc()
			slog.Warn("dropping inbound message", "reason", reason, "error", err)
			continue
		}

		switch m := msg.(type) {
		case pingMessage:
			h.cmdCh <- heartbeatCmd{connection: conn}
		case subscribeMessage:
			h.cmdCh <- subscribeCmd{connection: conn, postID: m.postID}
		case unsubscribeMessage:
			h.cmdCh <- unsubscribeCmd{connection: conn, postID: m.postID}
		case typingMessage:
			h.cmdCh <- typingCmd{connection: conn, postID: m.postID, username: m.username}
		}
	}
}

func (h *Hub) run() {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("hub panic recovered", "panic", r)
			metrics.HubPanicsTotal.Inc()
			h.closeAllClients(websocket.CloseInternalServerErr, "internal error")
			close(h.done)
		}
	}()

	sweepTicker := h.clock.NewTicker(h.sweepInterval)
	defer sweepTicker.Stop()

	depthTicker := h.clock.NewTicker(1 * time.Second)
	defer depthTicker.Stop()

	for {
		select {
		case cmd := <-h.cmdCh:
			switch c := cmd.(type) {
			case registerCmd:
				h.handleRegister(c)
			case unregisterCmd:
				h.handleUnregister(c.connection)
			case subscribeCmd:
				h.handleSubscribe(c)
			case unsubscribeCmd:
				h.handleUnsubscribe(c)
			case heartbeatCmd:
				h.handleHeartbeat(c)
			case typingCmd:
				h.handleTyping(c)
			case broadcastCmd:
				c.replyChannel <- h.fanOut(c.postID, c.data, c.excludeUserID)
			case viewerCountCmd:
				c.replyChannel <- h.viewerCount(c.postID)
			case stopCmd:
				h.handleStop()
				close(h.done)
				return
			default:
				slog.Warn("hub received unknown command type", "command_type", fmt.Sprintf("%T", cmd))
			}
		case <-sweepTicker.Chan():
			h.handleSweep()
		case <-depthTicker.Chan():
			metrics.HubCommandChannelDepth.Set(float64(len(h.cmdCh)))
		}
	}
}

func (h *Hub) handleRegister(c registerCmd) {
	cl := &client{
		userID:        c.userID,
		username:      c.username,
		conn:          c.connection,
		writer:        newClientWriter(c.connection, h.clock),
		subscriptions: make(map[int64]struct{}),
		lastSeen:      h.clock.Now(),
	}
	h.users[c.userID] = append(h.users[c.userID], cl)
	h.conns[c.connection] = cl

	metrics.HubConnectedClients.Set(float64(len(h.conns)))

	ack := authSuccessMessage{Type: "auth_success", UserID: c.userID, Message: "authenticated"}
	cl.writer.trySend(mustMarshal(ack))

	slog.Debug("connection registered", "user_id", c.userID, "user_connections", len(h.users[c.userID]))
	c.errorChannel <- nil
}

func (h *Hub) handleUnregister(conn *websocket.Conn) {
	cl, ok := h.conns[conn]
	if !ok {
		return
	}
	h.removeClient(cl)
	cl.writer.stop()
	slog.Debug("connection unregistered", "user_id", cl.userID, "user_connections", len(h.users[cl.userID]))
}

// removeClient detaches a record from both indexes. The caller decides how
// to close the writer.
func (h *Hub) removeClient(cl *client) {
	delete(h.conns, cl.conn)
	metrics.HubSubscriptionsCurrent.Sub(float64(len(cl.subscriptions)))

	conns := h.users[cl.userID]
	for i, other := range conns {
		if other == cl {
			h.users[cl.userID] = append(conns[:i], conns[i+1:]...)
			break
		}
	}
	if len(h.users[cl.userID]) == 0 {
		delete(h.users, cl.userID)
	}

	metrics.HubConnectedClients.Set(float64(len(h.conns)))
}

func (h *Hub) handleSubscribe(c subscribeCmd) {
	cl, ok := h.conns[c.connection]
	if !ok {
		return
	}
	if _, already := cl.subscriptions[c.postID]; already {
		return
	}
	if len(cl.subscriptions) >= h.maxSubscriptions {
		metrics.HubSubscriptionsRejected.Inc()
		slog.Warn("subscription cap reached", "user_id", cl.userID, "max_subscriptions", h.maxSubscriptions)
		msg := errorMessage{Type: "error", Message: fmt.Sprintf("subscription limit (%d) reached", h.maxSubscriptions)}
		cl.writer.trySend(mustMarshal(msg))
		return
	}
	cl.subscriptions[c.postID] = struct{}{}
	metrics.HubSubscriptionsCurrent.Inc()
}

func (h *Hub) handleUnsubscribe(c unsubscribeCmd) {
	cl, ok := h.conns[c.connection]
	if !ok {
		return
	}
	if _, subscribed := cl.subscriptions[c.postID]; !subscribed {
		return
	}
	delete(cl.subscriptions, c.postID)
	metrics.HubSubscriptionsCurrent.Dec()
}

func (h *Hub) handleHeartbeat(c heartbeatCmd) {
	cl, ok := h.conns[c.connection]
	if !ok {
		return
	}
	cl.lastSeen = h.clock.Now()
	cl.writer.trySend(mustMarshal(pongReply{Type: "pong"}))
}

func (h *Hub) handleTyping(c typingCmd) {
	cl, ok := h.conns[c.connection]
	if !ok {
		return
	}
	msg := userTypingMessage{
		Type:      "user_typing",
		UserID:    cl.userID,
		Username:  c.username,
		PostID:    c.postID,
		Timestamp: h.clock.Now().UTC(),
	}
	metrics.HubBroadcastsTotal.WithLabelValues("user_typing").Inc()
	h.fanOut(c.postID, mustMarshal(msg), cl.userID)
}

// fanOut delivers data to every connection subscribed to postID, skipping
// all connections owned by excludeUserID (0 = no exclusion). Returns the
// number of recipients attempted. A full send buffer is counted and skipped;
// it never aborts delivery to the rest.
func (h *Hub) fanOut(postID int64, data []byte, excludeUserID int64) int {
	attempted := 0
	for _, cl := range h.conns {
		if _, subscribed := cl.subscriptions[postID]; !subscribed {
			continue
		}
		if excludeUserID != 0 && cl.userID == excludeUserID {
			continue
		}
		attempted++
		if !cl.writer.trySend(data) {
			metrics.HubMessagesDropped.Inc()
		}
	}
	metrics.HubBroadcastRecipients.Observe(float64(attempted))
	return attempted
}

func (h *Hub) viewerCount(postID int64) int {
	count := 0
	for _, cl := range h.conns {
		if _, subscribed := cl.subscriptions[postID]; subscribed {
			count++
		}
	}
	return count
}

// handleSweep evicts every connection whose last heartbeat is older than the
// timeout. This is the only path that reclaims connections that vanish
// without a close or error.
func (h *Hub) handleSweep() {
	cutoff := h.clock.Now().Add(-h.heartbeatTimeout)

	var stale []*client
	for _, cl := range h.conns {
		if cl.lastSeen.Before(cutoff) {
			stale = append(stale, cl)
		}
	}

	for _, cl := range stale {
		h.removeClient(cl)
		cl.writer.stopWithClose(closeCodeHeartbeatTimeout, "heartbeat timeout")
		metrics.HubSweepEvictions.Inc()
		slog.Info("evicted silent connection", "user_id", cl.userID, "last_seen", cl.lastSeen)
	}
}

func (h *Hub) handleStop() {
	slog.Info("hub shutting down", "users", len(h.users), "connections", len(h.conns))
	h.closeAllClients(websocket.CloseGoingAway, "server shutting down")
}

func (h *Hub) closeAllClients(code int, reason string) {
	for _, cl := range h.conns {
		cl.writer.stopWithClose(code, reason)
	}
	h.users = make(map[int64][]*client)
	h.conns = make(map[*websocket.Conn]*client)
	metrics.HubConnectedClients.Set(0)
	metrics.HubSubscriptionsCurrent.Set(0)
}
