package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Database DatabaseConfig
	JWT      JWTConfig
	App      AppConfig
	Tracking TrackingConfig
	Cache    CacheConfig
	Events   EventsConfig
}

type DatabaseConfig struct {
	Host        string
	Port        int
	User        string
	Password    string
	Name        string
	SSLMode     string
	MaxConns    int32
	AutoMigrate bool
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret           string
	AccessExpiration time.Duration
}

// AppConfig holds application configuration
type AppConfig struct {
	Port           int
	Env            string
	LogLevel       string
	AllowedOrigins []string
}

// StorageMemory keeps sessions in process; used for local runs without Postgres.
const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

type TrackingConfig struct {
	Timezone      string
	Location      *time.Location
	Storage       string
	HighAccuracy  bool
	FeedTimeout   time.Duration
	MaxCacheAge   time.Duration
	Retries       int
	RetryInterval time.Duration
	ActionTimeout time.Duration
	SyncInterval  time.Duration
}

type CacheConfig struct {
	ValkeyAddr string
	TTL        time.Duration
}

type EventsConfig struct {
	NatsURL string
}

// Load reads .env when present and then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	config := &Config{}
	var err error

	// Database configuration
	dbPort, err := strconv.Atoi(getEnv("DB_PORT", "5432"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_PORT: %w", err)
	}
	maxConns, err := strconv.Atoi(getEnv("DB_MAX_CONNS", "10"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MAX_CONNS: %w", err)
	}
	autoMigrate, err := getEnvBool("DB_AUTO_MIGRATE", true)
	if err != nil {
		return nil, err
	}

	config.Database = DatabaseConfig{
		Host:        getEnv("DB_HOST", "localhost"),
		Port:        dbPort,
		User:        getEnv("DB_USER", "postgres"),
		Password:    getEnv("DB_PASSWORD", ""),
		Name:        getEnv("DB_NAME", "clubtrack"),
		SSLMode:     getEnv("DB_SSL_MODE", "disable"),
		MaxConns:    int32(maxConns),
		AutoMigrate: autoMigrate,
	}

	// Application configuration
	appPort, err := strconv.Atoi(getEnv("APP_PORT", "8080"))
	if err != nil {
		return nil, fmt.Errorf("invalid APP_PORT: %w", err)
	}

	config.App = AppConfig{
		Port:           appPort,
		Env:            getEnv("APP_ENV", "development"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		AllowedOrigins: getEnvSlice("CORS_ALLOWED_ORIGINS", "http://localhost:3000"),
	}

	// JWT configuration
	accessExpiration, err := getEnvDuration("JWT_ACCESS_EXPIRATION_TIME", "1h")
	if err != nil {
		return nil, err
	}

	config.JWT = JWTConfig{
		Secret:           getEnv("JWT_SECRET_KEY", ""),
		AccessExpiration: accessExpiration,
	}

	// Tracking configuration
	if config.Tracking, err = loadTracking(); err != nil {
		return nil, err
	}

	// Cache and events are optional; empty addresses disable them
	cacheTTL, err := getEnvDuration("CACHE_TTL", "30s")
	if err != nil {
		return nil, err
	}
	config.Cache = CacheConfig{
		ValkeyAddr: getEnv("VALKEY_ADDR", ""),
		TTL:        cacheTTL,
	}
	config.Events = EventsConfig{
		NatsURL: getEnv("NATS_URL", ""),
	}

	// Validate required fields
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

func loadTracking() (TrackingConfig, error) {
	var (
		tc  TrackingConfig
		err error
	)

	tc.Timezone = getEnv("TRACKING_TIMEZONE", "UTC")
	if tc.Location, err = time.LoadLocation(tc.Timezone); err != nil {
		return tc, fmt.Errorf("invalid TRACKING_TIMEZONE: %w", err)
	}
	tc.Storage = getEnv("TRACKING_STORAGE", StoragePostgres)

	if tc.HighAccuracy, err = getEnvBool("TRACKING_HIGH_ACCURACY", true); err != nil {
		return tc, err
	}
	if tc.FeedTimeout, err = getEnvDuration("TRACKING_FEED_TIMEOUT", "10s"); err != nil {
		return tc, err
	}
	if tc.MaxCacheAge, err = getEnvDuration("TRACKING_MAX_CACHE_AGE", "5s"); err != nil {
		return tc, err
	}
	if tc.Retries, err = strconv.Atoi(getEnv("TRACKING_PERSIST_RETRIES", "0")); err != nil {
		return tc, fmt.Errorf("invalid TRACKING_PERSIST_RETRIES: %w", err)
	}
	if tc.RetryInterval, err = getEnvDuration("TRACKING_PERSIST_RETRY_INTERVAL", "200ms"); err != nil {
		return tc, err
	}
	if tc.ActionTimeout, err = getEnvDuration("TRACKING_PERSIST_TIMEOUT", "10s"); err != nil {
		return tc, err
	}
	if tc.SyncInterval, err = getEnvDuration("TRACKING_SYNC_INTERVAL", "1m"); err != nil {
		return tc, err
	}
	return tc, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET_KEY is required")
	}
	switch c.Tracking.Storage {
	case StoragePostgres:
		if c.Database.Password == "" {
			return fmt.Errorf("DB_PASSWORD is required")
		}
	case StorageMemory:
	default:
		return fmt.Errorf("TRACKING_STORAGE must be %q or %q", StoragePostgres, StorageMemory)
	}
	if c.Tracking.Retries < 0 {
		return fmt.Errorf("TRACKING_PERSIST_RETRIES must not be negative")
	}
	if c.Tracking.SyncInterval <= 0 {
		return fmt.Errorf("TRACKING_SYNC_INTERVAL must be positive")
	}
	return nil
}

// DatabaseURL returns the PostgreSQL connection string
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvSlice(key, fallback string) []string {
	value := getEnv(key, fallback)
	if value == "" {
		return []string{}
	}
	parts := strings.Split(value, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func getEnvDuration(key, fallback string) (time.Duration, error) {
	d, err := time.ParseDuration(getEnv(key, fallback))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func getEnvBool(key string, fallback bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}
