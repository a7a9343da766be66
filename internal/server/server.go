package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/mundotango/engagement/internal/app"
	"github.com/mundotango/engagement/internal/auth"
	"github.com/mundotango/engagement/internal/config"
	apperrors "github.com/mundotango/engagement/internal/errors"
	"github.com/mundotango/engagement/internal/realtime"
	"github.com/mundotango/engagement/internal/redis"
)

type Server struct {
	echo      *echo.Echo
	config    *config.Config
	app       *app.Service
	hub       *realtime.Hub
	verifier  *auth.Verifier
	limits    *ConnectionLimits
	db        *pgxpool.Pool
	redis     *redis.Client
	startTime time.Time
}

func NewServer(cfg *config.Config, svc *app.Service, hub *realtime.Hub, verifier *auth.Verifier, db *pgxpool.Pool, redisClient *redis.Client) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(correlationMiddleware())
	e.Use(apperrors.Middleware())

	srv := &Server{
		echo:      e,
		config:    cfg,
		app:       svc,
		hub:       hub,
		verifier:  verifier,
		limits:    NewConnectionLimits(cfg.MaxConnections, cfg.MaxConnectionsPerIP, cfg.ConnectionRate, cfg.ConnectionBurst),
		db:        db,
		redis:     redisClient,
		startTime: time.Now(),
	}

	srv.registerRoutes()

	return srv
}

func (s *Server) Start() error {
	slog.Info("starting server", "port", s.config.Port)
	return s.echo.Start(fmt.Sprintf(":%s", s.config.Port))
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
