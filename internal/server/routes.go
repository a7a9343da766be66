package server

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) registerRoutes() {
	// Observability endpoints (no auth required)
	s.echo.GET("/health/live", s.handleLiveness)
	s.echo.GET("/health/ready", s.handleReadiness)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	s.echo.GET("/version", s.handleVersion)

	// Engagement API (JWT authenticated)
	api := s.echo.Group("/api", s.requireAuth)
	api.POST("/posts", s.handleCreatePost)
	api.GET("/posts/:id", s.handleGetPost)
	api.POST("/posts/:id/reactions", s.handleSetReaction)
	api.DELETE("/posts/:id/reactions", s.handleRemoveReaction)
	api.GET("/posts/:id/reactions", s.handleReactionSummary)
	api.POST("/posts/:id/comments", s.handleAddComment)
	api.GET("/posts/:id/comments", s.handleListComments)
	api.GET("/posts/:id/viewers", s.handleViewerCount)

	// WebSocket endpoint (token authenticated after upgrade)
	s.echo.GET("/ws", s.handleWebSocket)
}
