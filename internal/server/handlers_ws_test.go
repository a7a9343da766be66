package server

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func wsURL(env *testEnv, token string) string {
	url := "ws" + strings.TrimPrefix(env.httpSrv.URL, "http") + "/ws"
	if token != "" {
		url += "?token=" + token
	}
	return url
}

func dialWS(t *testing.T, env *testEnv, token string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(env, token), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var frame map[string]any
	require.NoError(t, json.Unmarshal(data, &frame))
	return frame
}

func sendFrame(t *testing.T, conn *websocket.Conn, frame any) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(frame))
}

func waitForViewers(t *testing.T, env *testEnv, postID int64, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if env.hub.ViewerCount(postID) == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("post %d never reached %d viewers", postID, want)
}

func TestWebSocket_AuthSuccess(t *testing.T) {
	env := newTestEnv(t, testConfig())

	conn := dialWS(t, env, env.token(t, 7, "maria"))
	frame := readFrame(t, conn)

	assert.Equal(t, "auth_success", frame["type"])
	assert.Equal(t, float64(7), frame["userId"])
}

func TestWebSocket_AuthFailureClosesWithPolicyViolation(t *testing.T) {
	env := newTestEnv(t, testConfig())

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(env, "bogus-token"), nil)
	require.NoError(t, err, "upgrade succeeds, auth happens after")
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err = conn.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.ClosePolicyViolation), "got %v", err)
}

func TestWebSocket_MissingToken(t *testing.T) {
	env := newTestEnv(t, testConfig())

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(env, ""), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.ClosePolicyViolation), "got %v", err)
}

func TestWebSocket_ConnectionLimitRejected(t *testing.T) {
	cfg := testConfig()
	cfg.MaxConnections = 1
	env := newTestEnv(t, cfg)

	conn := dialWS(t, env, env.token(t, 7, "maria"))
	readFrame(t, conn)

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(env, env.token(t, 8, "diego")), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}

func TestWebSocket_SubscribeAndReceiveReaction(t *testing.T) {
	env := newTestEnv(t, testConfig())
	post := env.seedPost(t)

	viewer := dialWS(t, env, env.token(t, 7, "maria"))
	readFrame(t, viewer)

	sendFrame(t, viewer, map[string]any{"type": "subscribe", "postId": post.ID})
	waitForViewers(t, env, post.ID, 1)

	// Another user reacts over the REST API.
	resp, _ := doJSON(t, env, http.MethodPost, "/api/posts/1/reactions",
		env.token(t, 8, "diego"), map[string]string{"kind": "celebrate"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	frame := readFrame(t, viewer)
	assert.Equal(t, "reaction_update", frame["type"])
	assert.Equal(t, float64(post.ID), frame["postId"])
	assert.Equal(t, float64(8), frame["userId"])
	assert.Equal(t, "diego", frame["username"])
	assert.Equal(t, map[string]any{"celebrate": float64(1)}, frame["reactions"])
	assert.NotEmpty(t, frame["timestamp"])
}

func TestWebSocket_CommentBroadcast(t *testing.T) {
	env := newTestEnv(t, testConfig())
	post := env.seedPost(t)

	viewer := dialWS(t, env, env.token(t, 7, "maria"))
	readFrame(t, viewer)
	sendFrame(t, viewer, map[string]any{"type": "subscribe", "postId": post.ID})
	waitForViewers(t, env, post.ID, 1)

	resp, _ := doJSON(t, env, http.MethodPost, "/api/posts/1/comments",
		env.token(t, 8, "diego"), map[string]string{"body": "que lindo"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	frame := readFrame(t, viewer)
	assert.Equal(t, "new_comment", frame["type"])
	comment, ok := frame["comment"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "que lindo", comment["body"])
	assert.Equal(t, "diego", comment["username"])
}

func TestWebSocket_TokenExpiryDoesNotDropConnection(t *testing.T) {
	env := newTestEnv(t, testConfig())

	shortLived, err := env.verifier.Issue(7, "maria", time.Second)
	require.NoError(t, err)

	conn := dialWS(t, env, shortLived)
	readFrame(t, conn)

	// The identity is bound at the handshake for the connection's lifetime;
	// the token expiring afterwards changes nothing.
	time.Sleep(1100 * time.Millisecond)
	sendFrame(t, conn, map[string]string{"type": "ping"})
	frame := readFrame(t, conn)
	assert.Equal(t, "pong", frame["type"])
}

func TestWebSocket_PingPong(t *testing.T) {
	env := newTestEnv(t, testConfig())

	conn := dialWS(t, env, env.token(t, 7, "maria"))
	readFrame(t, conn)

	sendFrame(t, conn, map[string]string{"type": "ping"})
	frame := readFrame(t, conn)
	assert.Equal(t, "pong", frame["type"])
}

func TestWebSocket_ViewerCountReflectsSubscriptions(t *testing.T) {
	env := newTestEnv(t, testConfig())
	post := env.seedPost(t)
	token := env.token(t, 7, "maria")

	conn := dialWS(t, env, env.token(t, 8, "diego"))
	readFrame(t, conn)
	sendFrame(t, conn, map[string]any{"type": "subscribe", "postId": post.ID})
	waitForViewers(t, env, post.ID, 1)

	resp, body := doJSON(t, env, http.MethodGet, "/api/posts/1/viewers", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"postId":1,"viewerCount":1,"hasViewers":true}`, string(body))

	require.NoError(t, conn.Close())
	waitForViewers(t, env, post.ID, 0)
}
