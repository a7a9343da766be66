package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"

	"github.com/mundotango/engagement/internal/app"
	"github.com/mundotango/engagement/internal/auth"
	"github.com/mundotango/engagement/internal/config"
	"github.com/mundotango/engagement/internal/database"
	"github.com/mundotango/engagement/internal/logging"
	"github.com/mundotango/engagement/internal/realtime"
	"github.com/mundotango/engagement/internal/redis"
	"github.com/mundotango/engagement/internal/server"
	"github.com/mundotango/engagement/internal/version"
)

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func setupDB(cfg *config.Config) *pgxpool.Pool {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}

	if err := database.RunMigrationsWithLock(ctx, pool); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}

	return pool
}

func setupRedis(cfg *config.Config) *redis.Client {
	client, err := redis.NewClient(cfg.RedisURL)
	if err != nil {
		slog.Error("Failed to create Redis client", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx); err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	return client
}

func runGracefulShutdown(srv *server.Server, hub *realtime.Hub, stopBridge context.CancelFunc) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		stopBridge()
		hub.Stop()

		close(done)
	}()

	return done
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	version.RecordBuildInfo()
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port, "version", version.Version)

	pool := setupDB(cfg)
	defer pool.Close()

	redisClient := setupRedis(cfg)
	defer func() { _ = redisClient.Close() }()

	postRepo := database.NewPostRepo(pool)
	reactionRepo := database.NewReactionRepo(pool)
	commentRepo := database.NewCommentRepo(pool)

	hub := realtime.NewHub(clock, cfg.MaxSubscriptionsPerConn, cfg.HeartbeatTimeout, cfg.SweepInterval)

	bridge := redis.NewBridge(redisClient, hub)
	bridgeCtx, stopBridge := context.WithCancel(context.Background())
	go func() {
		if err := bridge.Run(bridgeCtx); err != nil {
			slog.Error("Event bridge stopped", "error", err)
		}
	}()

	appSvc := app.NewService(postRepo, reactionRepo, commentRepo, hub, bridge)

	verifier := auth.NewVerifier(cfg.JWTSecret)
	srv := server.NewServer(cfg, appSvc, hub, verifier, pool, redisClient)

	done := runGracefulShutdown(srv, hub, stopBridge)

	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
}
