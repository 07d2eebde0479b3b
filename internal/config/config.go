package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Event transports.
const (
	TransportPoll   = "poll"
	TransportMemory = "memory"
	TransportRedis  = "redis"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	Port        int
	DatabaseURL string

	JWTSecret string
	JWTTTL    time.Duration

	RedisURL        string
	EventsTransport string
	PollInterval    time.Duration

	LogLevel      string
	CORSOrigins   []string
	AuthRateLimit int
	UploadDir     string

	SeedAdminEmail       string
	SeedAdminPassword    string
	AdminBootstrapSecret string
}

// Load reads an optional .env file, then the environment, and validates the
// result.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv()
}

// FromEnv builds a Config from the process environment only.
func FromEnv() (Config, error) {
	port, err := getEnvInt("PORT", 8080)
	if err != nil {
		return Config{}, fmt.Errorf("parse PORT: %w", err)
	}

	ttl, err := getEnvDuration("JWT_TTL", 72*time.Hour)
	if err != nil {
		return Config{}, fmt.Errorf("parse JWT_TTL: %w", err)
	}

	pollInterval, err := getEnvDuration("POLL_INTERVAL", 3*time.Second)
	if err != nil {
		return Config{}, fmt.Errorf("parse POLL_INTERVAL: %w", err)
	}

	rateLimit, err := getEnvInt("AUTH_RATE_LIMIT", 20)
	if err != nil {
		return Config{}, fmt.Errorf("parse AUTH_RATE_LIMIT: %w", err)
	}

	cfg := Config{
		Port:                 port,
		DatabaseURL:          databaseURL(),
		JWTSecret:            getEnv("JWT_SECRET", ""),
		JWTTTL:               ttl,
		RedisURL:             getEnv("REDIS_URL", ""),
		EventsTransport:      strings.ToLower(getEnv("EVENTS_TRANSPORT", TransportPoll)),
		PollInterval:         pollInterval,
		LogLevel:             getEnv("LOG_LEVEL", "info"),
		CORSOrigins:          splitList(getEnv("CORS_ORIGINS", "*")),
		AuthRateLimit:        rateLimit,
		UploadDir:            getEnv("UPLOAD_DIR", "uploads"),
		SeedAdminEmail:       getEnv("SEED_ADMIN_EMAIL", ""),
		SeedAdminPassword:    getEnv("SEED_ADMIN_PASSWORD", ""),
		AdminBootstrapSecret: getEnv("ADMIN_BOOTSTRAP_SECRET", ""),
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("PORT out of range: %d", c.Port)
	}
	if c.JWTTTL <= 0 {
		return fmt.Errorf("JWT_TTL must be positive")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("POLL_INTERVAL must be positive")
	}
	if c.AuthRateLimit <= 0 {
		return fmt.Errorf("AUTH_RATE_LIMIT must be positive")
	}
	switch c.EventsTransport {
	case TransportPoll, TransportMemory:
	case TransportRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required when EVENTS_TRANSPORT=redis")
		}
	default:
		return fmt.Errorf("unknown EVENTS_TRANSPORT %q", c.EventsTransport)
	}
	if (c.SeedAdminEmail == "") != (c.SeedAdminPassword == "") {
		return fmt.Errorf("SEED_ADMIN_EMAIL and SEED_ADMIN_PASSWORD must be set together")
	}
	return nil
}

// SlogLevel maps LogLevel to a slog level, defaulting to info.
func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// LoadDatabaseURL is the database part of Load for tools that don't run the
// API and so have no JWT secret.
func LoadDatabaseURL() (string, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return "", fmt.Errorf("load .env: %w", err)
	}
	return databaseURL(), nil
}

// databaseURL prefers DATABASE_URL and falls back to the DB_* parts. An empty
// result selects the in-memory store.
func databaseURL() string {
	if v := getEnv("DATABASE_URL", ""); v != "" {
		return v
	}
	host := getEnv("DB_HOST", "")
	if host == "" {
		return ""
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s",
		getEnv("DB_USER", ""),
		getEnv("DB_PASSWORD", ""),
		host,
		getEnv("DB_PORT", "5432"),
		getEnv("DB_NAME", ""),
	)
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}
	return strconv.Atoi(v)
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}
	return time.ParseDuration(v)
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
