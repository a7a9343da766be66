package server

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/mundotango/engagement/internal/app"
	"github.com/mundotango/engagement/internal/auth"
	"github.com/mundotango/engagement/internal/config"
	"github.com/mundotango/engagement/internal/domain"
	"github.com/mundotango/engagement/internal/realtime"
)

const testJWTSecret = "test-secret-0123456789"

// In-memory repositories backing the test server.

type memPostRepo struct {
	posts  map[int64]*domain.Post
	nextID int64
}

func (m *memPostRepo) Create(_ context.Context, userID int64, body string) (*domain.Post, error) {
	post := &domain.Post{ID: m.nextID, UserID: userID, Body: body, CreatedAt: time.Now()}
	m.posts[post.ID] = post
	m.nextID++
	return post, nil
}

func (m *memPostRepo) GetByID(_ context.Context, postID int64) (*domain.Post, error) {
	post, ok := m.posts[postID]
	if !ok {
		return nil, domain.ErrPostNotFound
	}
	return post, nil
}

type memReactionRepo struct {
	reactions map[int64]map[int64]string
}

func (m *memReactionRepo) Set(ctx context.Context, postID, userID int64, kind string) (*domain.ReactionSummary, error) {
	if m.reactions[postID] == nil {
		m.reactions[postID] = make(map[int64]string)
	}
	m.reactions[postID][userID] = kind
	return m.Summary(ctx, postID, userID)
}

func (m *memReactionRepo) Remove(ctx context.Context, postID, userID int64) (*domain.ReactionSummary, error) {
	if _, ok := m.reactions[postID][userID]; !ok {
		return nil, domain.ErrReactionNotFound
	}
	delete(m.reactions[postID], userID)
	return m.Summary(ctx, postID, userID)
}

func (m *memReactionRepo) Summary(_ context.Context, postID, userID int64) (*domain.ReactionSummary, error) {
	summary := &domain.ReactionSummary{PostID: postID, Reactions: make(map[string]int)}
	for reactor, kind := range m.reactions[postID] {
		summary.Reactions[kind]++
		if reactor == userID {
			summary.CurrentReaction = kind
		}
	}
	summary.TotalReactions = summary.Total()
	return summary, nil
}

type memCommentRepo struct {
	comments map[int64][]domain.Comment
	nextID   int64
}

func (m *memCommentRepo) Create(_ context.Context, postID, userID int64, username, body string) (*domain.Comment, error) {
	comment := domain.Comment{ID: m.nextID, PostID: postID, UserID: userID, Username: username, Body: body, CreatedAt: time.Now()}
	m.comments[postID] = append(m.comments[postID], comment)
	m.nextID++
	return &comment, nil
}

func (m *memCommentRepo) ListByPost(_ context.Context, postID int64, limit int) ([]domain.Comment, error) {
	list := m.comments[postID]
	if len(list) > limit {
		list = list[:limit]
	}
	return list, nil
}

type testEnv struct {
	srv      *Server
	httpSrv  *httptest.Server
	hub      *realtime.Hub
	verifier *auth.Verifier
	posts    *memPostRepo
}

func testConfig() *config.Config {
	return &config.Config{
		AppEnv:                  "test",
		Port:                    "0",
		JWTSecret:               testJWTSecret,
		MaxSubscriptionsPerConn: 100,
		HeartbeatTimeout:        60 * time.Second,
		SweepInterval:           30 * time.Second,
		MaxConnections:          100,
		MaxConnectionsPerIP:     100,
		ConnectionRate:          1000,
		ConnectionBurst:         1000,
	}
}

func newTestEnv(t *testing.T, cfg *config.Config) *testEnv {
	t.Helper()

	posts := &memPostRepo{posts: make(map[int64]*domain.Post), nextID: 1}
	reactions := &memReactionRepo{reactions: make(map[int64]map[int64]string)}
	comments := &memCommentRepo{comments: make(map[int64][]domain.Comment), nextID: 1}

	hub := realtime.NewHub(clockwork.NewRealClock(), cfg.MaxSubscriptionsPerConn, cfg.HeartbeatTimeout, cfg.SweepInterval)
	t.Cleanup(hub.Stop)

	svc := app.NewService(posts, reactions, comments, hub, nil)
	verifier := auth.NewVerifier(cfg.JWTSecret)

	srv := NewServer(cfg, svc, hub, verifier, nil, nil)
	httpSrv := httptest.NewServer(srv.echo)
	t.Cleanup(httpSrv.Close)

	return &testEnv{srv: srv, httpSrv: httpSrv, hub: hub, verifier: verifier, posts: posts}
}

func (e *testEnv) token(t *testing.T, userID int64, username string) string {
	t.Helper()
	token, err := e.verifier.Issue(userID, username, time.Hour)
	require.NoError(t, err)
	return token
}

func (e *testEnv) seedPost(t *testing.T) *domain.Post {
	t.Helper()
	post, err := e.posts.Create(context.Background(), 1, "an evening milonga in Buenos Aires")
	require.NoError(t, err)
	return post
}
