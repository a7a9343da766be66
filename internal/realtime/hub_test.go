package realtime

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mundotango/engagement/internal/domain"
)

// testHub sets up a Hub behind a test HTTP server. The returned dial function
// connects as the given user and consumes nothing: callers read the
// auth_success frame themselves.
func testHub(t *testing.T, clock clockwork.Clock, maxSubscriptions int, heartbeatTimeout, sweepInterval time.Duration) (*Hub, func(userID int64, username string) *ws.Conn) {
	t.Helper()

	hub := NewHub(clock, maxSubscriptions, heartbeatTimeout, sweepInterval)
	t.Cleanup(func() { hub.Stop() })

	upgrader := ws.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		userID, _ := strconv.ParseInt(r.URL.Query().Get("user"), 10, 64)
		username := r.URL.Query().Get("username")
		if err := hub.Register(userID, username, conn); err != nil {
			t.Errorf("register failed: %v", err)
			return
		}
		go hub.ReadPump(conn)
	}))
	t.Cleanup(func() { server.Close() })

	dial := func(userID int64, username string) *ws.Conn {
		t.Helper()
		url := "ws" + strings.TrimPrefix(server.URL, "http") +
			fmt.Sprintf("?user=%d&username=%s", userID, username)
		conn, _, err := ws.DefaultDialer.Dial(url, nil)
		require.NoError(t, err)
		t.Cleanup(func() { conn.Close() })
		return conn
	}

	return hub, dial
}

func readFrame(t *testing.T, conn *ws.Conn) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var frame map[string]any
	require.NoError(t, json.Unmarshal(data, &frame))
	return frame
}

func expectNoFrame(t *testing.T, conn *ws.Conn) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	_, data, err := conn.ReadMessage()
	require.Error(t, err, "unexpected frame: %s", data)
}

func send(t *testing.T, conn *ws.Conn, frame string) {
	t.Helper()
	require.NoError(t, conn.WriteMessage(ws.TextMessage, []byte(frame)))
}

func waitForViewers(h *Hub, postID int64, expected int) bool {
	for i := 0; i < 100; i++ {
		if h.ViewerCount(postID) == expected {
			return true
		}
		time.Sleep(time.Millisecond)
	}
	return false
}

func TestHub_RegisterSendsAuthSuccess(t *testing.T) {
	_, dial := testHub(t, clockwork.NewRealClock(), 0, 0, 0)

	conn := dial(7, "maria")
	frame := readFrame(t, conn)
	assert.Equal(t, "auth_success", frame["type"])
	assert.Equal(t, float64(7), frame["userId"])
}

func TestHub_SubscribeAndBroadcastReaction(t *testing.T) {
	hub, dial := testHub(t, clockwork.NewRealClock(), 0, 0, 0)

	conn := dial(7, "maria")
	readFrame(t, conn) // auth_success

	send(t, conn, `{"type":"subscribe","postId":42}`)
	require.True(t, waitForViewers(hub, 42, 1))

	attempted := hub.BroadcastReactionUpdate(42, 9, "diego", map[string]int{"like": 3}, "like", 3)
	assert.Equal(t, 1, attempted)

	frame := readFrame(t, conn)
	assert.Equal(t, "reaction_update", frame["type"])
	assert.Equal(t, float64(42), frame["postId"])
	assert.Equal(t, float64(9), frame["userId"])
	assert.Equal(t, "diego", frame["username"])
	assert.Equal(t, "like", frame["currentReaction"])
	assert.Equal(t, float64(3), frame["totalReactions"])
	assert.NotEmpty(t, frame["timestamp"])
}

func TestHub_BroadcastNewComment(t *testing.T) {
	hub, dial := testHub(t, clockwork.NewRealClock(), 0, 0, 0)

	conn := dial(7, "maria")
	readFrame(t, conn)

	send(t, conn, `{"type":"subscribe","postId":5}`)
	require.True(t, waitForViewers(hub, 5, 1))

	comment := &domain.Comment{ID: 11, PostID: 5, UserID: 9, Username: "diego", Body: "great milonga"}
	attempted := hub.BroadcastNewComment(5, comment)
	assert.Equal(t, 1, attempted)

	frame := readFrame(t, conn)
	assert.Equal(t, "new_comment", frame["type"])
	assert.Equal(t, float64(5), frame["postId"])

	payload, ok := frame["comment"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(11), payload["id"])
	assert.Equal(t, "great milonga", payload["body"])
	assert.Equal(t, "diego", payload["username"])
}

func TestHub_BroadcastWithoutSubscribersReturnsZero(t *testing.T) {
	hub, dial := testHub(t, clockwork.NewRealClock(), 0, 0, 0)

	conn := dial(7, "maria")
	readFrame(t, conn)

	attempted := hub.BroadcastReactionUpdate(42, 9, "diego", nil, "", 0)
	assert.Equal(t, 0, attempted)
	expectNoFrame(t, conn)
}

func TestHub_UnsubscribeStopsDelivery(t *testing.T) {
	hub, dial := testHub(t, clockwork.NewRealClock(), 0, 0, 0)

	conn := dial(7, "maria")
	readFrame(t, conn)

	send(t, conn, `{"type":"subscribe","postId":42}`)
	require.True(t, waitForViewers(hub, 42, 1))

	send(t, conn, `{"type":"unsubscribe","postId":42}`)
	require.True(t, waitForViewers(hub, 42, 0))

	attempted := hub.BroadcastReactionUpdate(42, 9, "diego", nil, "", 0)
	assert.Equal(t, 0, attempted)
	expectNoFrame(t, conn)
}

func TestHub_SubscribeIdempotent(t *testing.T) {
	hub, dial := testHub(t, clockwork.NewRealClock(), 0, 0, 0)

	conn := dial(7, "maria")
	readFrame(t, conn)

	send(t, conn, `{"type":"subscribe","postId":42}`)
	send(t, conn, `{"type":"subscribe","postId":42}`)
	// ping/pong as a barrier so both subscribes are processed
	send(t, conn, `{"type":"ping"}`)
	assert.Equal(t, "pong", readFrame(t, conn)["type"])

	assert.Equal(t, 1, hub.ViewerCount(42))

	attempted := hub.BroadcastReactionUpdate(42, 9, "diego", nil, "", 0)
	assert.Equal(t, 1, attempted)

	frame := readFrame(t, conn)
	assert.Equal(t, "reaction_update", frame["type"])
	expectNoFrame(t, conn)
}

func TestHub_TwoConnectionsSameUserBothReceive(t *testing.T) {
	hub, dial := testHub(t, clockwork.NewRealClock(), 0, 0, 0)

	tab1 := dial(7, "maria")
	tab2 := dial(7, "maria")
	readFrame(t, tab1)
	readFrame(t, tab2)

	send(t, tab1, `{"type":"subscribe","postId":42}`)
	send(t, tab2, `{"type":"subscribe","postId":42}`)
	require.True(t, waitForViewers(hub, 42, 2))

	attempted := hub.BroadcastReactionUpdate(42, 9, "diego", map[string]int{"love": 1}, "", 1)
	assert.Equal(t, 2, attempted)

	for _, conn := range []*ws.Conn{tab1, tab2} {
		frame := readFrame(t, conn)
		assert.Equal(t, "reaction_update", frame["type"])
	}
}

func TestHub_TypingExcludesAllSenderConnections(t *testing.T) {
	hub, dial := testHub(t, clockwork.NewRealClock(), 0, 0, 0)

	aliceTab1 := dial(7, "alice")
	aliceTab2 := dial(7, "alice")
	bob := dial(9, "bob")
	for _, conn := range []*ws.Conn{aliceTab1, aliceTab2, bob} {
		readFrame(t, conn)
		send(t, conn, `{"type":"subscribe","postId":42}`)
	}
	require.True(t, waitForViewers(hub, 42, 3))

	send(t, aliceTab1, `{"type":"typing","postId":42,"username":"alice"}`)

	frame := readFrame(t, bob)
	assert.Equal(t, "user_typing", frame["type"])
	assert.Equal(t, float64(7), frame["userId"])
	assert.Equal(t, "alice", frame["username"])
	assert.Equal(t, float64(42), frame["postId"])

	// Neither of the sender's connections hears their own typing.
	expectNoFrame(t, aliceTab1)
	expectNoFrame(t, aliceTab2)
}

func TestHub_SubscriptionCap(t *testing.T) {
	hub, dial := testHub(t, clockwork.NewRealClock(), 3, 0, 0)

	conn := dial(7, "maria")
	readFrame(t, conn)

	for postID := int64(0); postID < 3; postID++ {
		send(t, conn, fmt.Sprintf(`{"type":"subscribe","postId":%d}`, postID+1))
	}
	require.True(t, waitForViewers(hub, 3, 1))

	send(t, conn, `{"type":"subscribe","postId":99}`)

	frame := readFrame(t, conn)
	assert.Equal(t, "error", frame["type"])
	assert.Contains(t, frame["message"], "subscription limit (3) reached")
	assert.Equal(t, 0, hub.ViewerCount(99))

	// Existing subscriptions keep working.
	attempted := hub.BroadcastReactionUpdate(1, 9, "diego", nil, "", 0)
	assert.Equal(t, 1, attempted)
	assert.Equal(t, "reaction_update", readFrame(t, conn)["type"])
}

func TestHub_PingPong(t *testing.T) {
	_, dial := testHub(t, clockwork.NewRealClock(), 0, 0, 0)

	conn := dial(7, "maria")
	readFrame(t, conn)

	send(t, conn, `{"type":"ping"}`)
	assert.Equal(t, "pong", readFrame(t, conn)["type"])
}

func TestHub_MalformedMessagesAreIgnored(t *testing.T) {
	hub, dial := testHub(t, clockwork.NewRealClock(), 0, 0, 0)

	conn := dial(7, "maria")
	readFrame(t, conn)

	send(t, conn, `{not json`)
	send(t, conn, `{"type":"launch_missiles"}`)
	send(t, conn, `{"type":"subscribe"}`)
	send(t, conn, `{"type":"subscribe","postId":-4}`)

	// The connection survives all of them.
	send(t, conn, `{"type":"ping"}`)
	assert.Equal(t, "pong", readFrame(t, conn)["type"])
	assert.Equal(t, 0, hub.ViewerCount(-4))
}

func TestHub_DisconnectCleansRegistry(t *testing.T) {
	hub, dial := testHub(t, clockwork.NewRealClock(), 0, 0, 0)

	conn := dial(7, "maria")
	readFrame(t, conn)
	send(t, conn, `{"type":"subscribe","postId":42}`)
	require.True(t, waitForViewers(hub, 42, 1))

	conn.Close()
	require.True(t, waitForViewers(hub, 42, 0))
	assert.False(t, hub.HasViewers(42))
}

func TestHub_ViewerCountPerPost(t *testing.T) {
	hub, dial := testHub(t, clockwork.NewRealClock(), 0, 0, 0)

	conn1 := dial(7, "maria")
	conn2 := dial(9, "diego")
	readFrame(t, conn1)
	readFrame(t, conn2)

	send(t, conn1, `{"type":"subscribe","postId":1}`)
	send(t, conn2, `{"type":"subscribe","postId":1}`)
	send(t, conn2, `{"type":"subscribe","postId":2}`)

	require.True(t, waitForViewers(hub, 1, 2))
	require.True(t, waitForViewers(hub, 2, 1))
	assert.True(t, hub.HasViewers(1))
	assert.False(t, hub.HasViewers(3))
}

func TestHub_SweepEvictsSilentConnection(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Now())
	_, dial := testHub(t, clock, 0, 60*time.Second, 30*time.Second)

	conn := dial(7, "maria")
	readFrame(t, conn)

	// First sweep: connection is 30s old, still within the timeout.
	clock.Advance(30 * time.Second)
	time.Sleep(20 * time.Millisecond)

	// Second sweep: 61s old, past the 60s heartbeat timeout.
	clock.Advance(31 * time.Second)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
	assert.True(t, ws.IsCloseError(err, closeCodeHeartbeatTimeout), "expected close %d, got %v", closeCodeHeartbeatTimeout, err)
}

func TestHub_HeartbeatPreventsEviction(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Now())
	_, dial := testHub(t, clock, 0, 60*time.Second, 30*time.Second)

	conn := dial(7, "maria")
	readFrame(t, conn)

	clock.Advance(30 * time.Second)
	send(t, conn, `{"type":"ping"}`)
	assert.Equal(t, "pong", readFrame(t, conn)["type"])

	// 61s since connect, but only 31s since the last heartbeat.
	clock.Advance(31 * time.Second)
	time.Sleep(20 * time.Millisecond)

	send(t, conn, `{"type":"ping"}`)
	assert.Equal(t, "pong", readFrame(t, conn)["type"])
}

func TestHub_StopClosesConnections(t *testing.T) {
	hub := NewHub(clockwork.NewRealClock(), 0, 0, 0)

	upgrader := ws.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		require.NoError(t, hub.Register(1, "maria", conn))
		go hub.ReadPump(conn)
	}))
	t.Cleanup(func() { server.Close() })

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := ws.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	readFrame(t, conn)

	hub.Stop()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err = conn.ReadMessage()
	require.Error(t, err)
	assert.True(t, ws.IsCloseError(err, ws.CloseGoingAway), "expected going-away close, got %v", err)
}
