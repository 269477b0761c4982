// Package config loads service configuration from the environment.
package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config is the root configuration for cmd/server.
type Config struct {
	App      AppConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Gateway  GatewayConfig
	Markets  MarketsConfig
	Polling  PollingConfig
}

type AppConfig struct {
	Addr     string `envconfig:"HTTP_ADDR" default:":8080"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	GinMode  string `envconfig:"GIN_MODE" default:"release"`
}

type PostgresConfig struct {
	Host          string        `envconfig:"DB_HOST" default:"localhost"`
	Port          int           `envconfig:"DB_PORT" default:"5432"`
	User          string        `envconfig:"DB_USER" default:"postgres"`
	Password      string        `envconfig:"DB_PASSWORD"`
	Name          string        `envconfig:"DB_NAME" default:"postgres"`
	SSLMode       string        `envconfig:"DB_SSL_MODE" default:"disable"`
	ConnectWait   time.Duration `envconfig:"DB_CONNECT_WAIT" default:"60s"`
	RunMigrations bool          `envconfig:"RUN_MIGRATIONS" default:"false"`
}

// DSN renders a libpq keyword/value connection string usable by both gorm and pgx.
func (c PostgresConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
}

type RedisConfig struct {
	Host     string        `envconfig:"REDIS_HOST"`
	Port     int           `envconfig:"REDIS_PORT" default:"6379"`
	Password string        `envconfig:"REDIS_PASSWORD"`
	DB       int           `envconfig:"REDIS_DB" default:"0"`
	CacheTTL time.Duration `envconfig:"SERIES_CACHE_TTL" default:"5s"`
}

// Enabled reports whether a Redis host was configured.
func (c RedisConfig) Enabled() bool { return c.Host != "" }

// Addr is host:port.
func (c RedisConfig) Addr() string { return fmt.Sprintf("%s:%d", c.Host, c.Port) }

type JWTConfig struct {
	Secret     string        `envconfig:"JWT_SECRET"`
	Expiration time.Duration `envconfig:"JWT_EXPIRATION" default:"24h"`
}

type GatewayConfig struct {
	BaseURL        string        `envconfig:"CHAIN_GATEWAY_URL" default:"http://localhost:8545"`
	APIKey         string        `envconfig:"CHAIN_GATEWAY_API_KEY"`
	Timeout        time.Duration `envconfig:"CHAIN_GATEWAY_TIMEOUT" default:"10s"`
	RatePerSecond  int           `envconfig:"CHAIN_GATEWAY_RATE" default:"20"`
	ReceiptPoll    time.Duration `envconfig:"CHAIN_RECEIPT_POLL" default:"2s"`
	ReceiptTimeout time.Duration `envconfig:"CHAIN_RECEIPT_TIMEOUT" default:"2m"`
}

type MarketsConfig struct {
	// File is a YAML registry; empty uses the bundled Sepolia registry.
	File string `envconfig:"MARKETS_FILE"`
}

type PollingConfig struct {
	MarkPrice  time.Duration `envconfig:"POLL_MARK_PRICE" default:"5s"`
	RiskParams time.Duration `envconfig:"POLL_RISK_PARAMS" default:"30s"`
	// RecordMarks appends polled mark prices to vamm_price_history.
	RecordMarks bool `envconfig:"RECORD_MARK_PRICES" default:"false"`
}

// Load reads an optional .env file and then the process environment.
func Load(envFiles ...string) (*Config, error) {
	if err := godotenv.Load(envFiles...); err != nil {
		slog.Debug("no .env file loaded", "error", err)
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("process env: %w", err)
	}
	if cfg.JWT.Secret == "" {
		slog.Warn("JWT_SECRET is not set. Set a strong secret in production.")
	}
	return &cfg, nil
}

// SlogLevel maps LogLevel to a slog level, defaulting to info.
func (c AppConfig) SlogLevel() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}
