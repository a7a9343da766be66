// Package config provides environment-based configuration.
//
// Loads from .env file (godotenv), maps to Config struct via go-simpler/env
// struct tags. Validates required fields and timing relationships.
package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

const minJWTSecretLength = 16

type Config struct {
	AppEnv      string `env:"APP_ENV" default:"development"`
	Port        string `env:"PORT" default:"8080"`
	DatabaseURL string `env:"DATABASE_URL"`
	RedisURL    string `env:"REDIS_URL"`
	JWTSecret   string `env:"JWT_SECRET"`
	LogLevel    string `env:"LOG_LEVEL" default:"info"`
	LogFormat   string `env:"LOG_FORMAT" default:"text"`

	// Hub tuning
	MaxSubscriptionsPerConn int           `env:"MAX_SUBSCRIPTIONS_PER_CONN" default:"100"`
	HeartbeatTimeout        time.Duration `env:"HEARTBEAT_TIMEOUT" default:"60s"`
	SweepInterval           time.Duration `env:"SWEEP_INTERVAL" default:"30s"`

	// Connection limits
	MaxConnections      int64   `env:"MAX_CONNECTIONS" default:"5000"`
	MaxConnectionsPerIP int     `env:"MAX_CONNECTIONS_PER_IP" default:"20"`
	ConnectionRate      float64 `env:"CONNECTION_RATE" default:"10"`
	ConnectionBurst     int     `env:"CONNECTION_BURST" default:"10"`
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func validate(cfg *Config) error {
	required := map[string]string{
		"DATABASE_URL": cfg.DatabaseURL,
		"REDIS_URL":    cfg.RedisURL,
		"JWT_SECRET":   cfg.JWTSecret,
	}
	for name, value := range required {
		if value == "" {
			return fmt.Errorf("%s is required", name)
		}
	}

	if len(cfg.JWTSecret) < minJWTSecretLength {
		return fmt.Errorf("JWT_SECRET must be at least %d characters", minJWTSecretLength)
	}

	if cfg.HeartbeatTimeout <= cfg.SweepInterval {
		return fmt.Errorf("HEARTBEAT_TIMEOUT (%v) must exceed SWEEP_INTERVAL (%v)", cfg.HeartbeatTimeout, cfg.SweepInterval)
	}

	if cfg.MaxSubscriptionsPerConn <= 0 {
		return fmt.Errorf("MAX_SUBSCRIPTIONS_PER_CONN must be positive")
	}

	return nil
}
