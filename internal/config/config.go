package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	ServerPort  string
	LocalDBPath string
	DatabaseURL string
	RedisURL    string
	JWTSecret   string
	JWTExpiry   time.Duration
	LogLevel    slog.Level

	SyncInterval  time.Duration
	SyncBatchSize int
	CloudTimeout  time.Duration
	ProbeAddr     string
	ProbeTimeout  time.Duration

	BreakerFailures int
	BreakerOpenFor  time.Duration

	AIOUsername  string
	AIOKey       string
	AIOFeeds     map[string]string
	FeedCacheTTL time.Duration
}

// CloudConfigured reports whether a cloud connection string is set.
// Without one the relay runs in local-only mode.
func (c *Config) CloudConfigured() bool {
	return c.DatabaseURL != ""
}

// FeedsConfigured reports whether the broker credentials and feed map are present.
func (c *Config) FeedsConfigured() bool {
	return c.AIOUsername != "" && c.AIOKey != "" && len(c.AIOFeeds) > 0
}

func LoadConfig() (*Config, error) {
	var err error
	cfg := &Config{
		ServerPort:  getEnv("SERVER_PORT", "8080"),
		LocalDBPath: getEnv("LOCAL_DB_PATH", "db/robot_telemetry.db"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisURL:    os.Getenv("REDIS_URL"),
		JWTSecret:   os.Getenv("JWT_SECRET"),
		ProbeAddr:   os.Getenv("PROBE_ADDR"),
		AIOUsername: os.Getenv("AIO_USERNAME"),
		AIOKey:      os.Getenv("AIO_KEY"),
	}

	if cfg.JWTExpiry, err = getDuration("JWT_EXPIRY", "720h"); err != nil {
		return nil, err
	}
	if cfg.SyncInterval, err = getDuration("SYNC_INTERVAL", "5m"); err != nil {
		return nil, err
	}
	if cfg.CloudTimeout, err = getDuration("CLOUD_TIMEOUT", "5s"); err != nil {
		return nil, err
	}
	if cfg.ProbeTimeout, err = getDuration("PROBE_TIMEOUT", "3s"); err != nil {
		return nil, err
	}
	if cfg.BreakerOpenFor, err = getDuration("BREAKER_OPEN_FOR", "30s"); err != nil {
		return nil, err
	}
	if cfg.FeedCacheTTL, err = getDuration("FEED_CACHE_TTL", "10s"); err != nil {
		return nil, err
	}
	if cfg.SyncBatchSize, err = getInt("SYNC_BATCH_SIZE", 500); err != nil {
		return nil, err
	}
	if cfg.BreakerFailures, err = getInt("BREAKER_FAILURES", 3); err != nil {
		return nil, err
	}
	if err := cfg.LogLevel.UnmarshalText([]byte(getEnv("LOG_LEVEL", "info"))); err != nil {
		return nil, errors.New("invalid LOG_LEVEL")
	}

	feeds, err := loadFeeds(os.Getenv("AIO_FEEDS"), os.Getenv("AIO_FEEDS_FILE"))
	if err != nil {
		return nil, err
	}
	cfg.AIOFeeds = feeds

	// Validate ranges
	if cfg.SyncInterval <= 0 {
		return nil, errors.New("SYNC_INTERVAL must be positive")
	}
	if cfg.SyncBatchSize <= 0 {
		return nil, errors.New("SYNC_BATCH_SIZE must be positive")
	}
	if cfg.BreakerFailures <= 0 {
		return nil, errors.New("BREAKER_FAILURES must be positive")
	}

	return cfg, nil
}

// loadFeeds parses the feed-key to feed-name map. AIO_FEEDS takes priority and may be JSON or
// YAML (JSON is valid YAML); AIO_FEEDS_FILE is read only when AIO_FEEDS is empty.
func loadFeeds(inline, path string) (map[string]string, error) {
	feeds := map[string]string{}

	raw := strings.TrimSpace(inline)
	if (raw == "" || raw == "{}") && path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read AIO_FEEDS_FILE: %w", err)
		}
		raw = string(data)
	}
	if raw == "" {
		return feeds, nil
	}

	var doc struct {
		Feeds map[string]string `yaml:"feeds"`
	}
	if err := yaml.Unmarshal([]byte(raw), &doc); err == nil && len(doc.Feeds) > 0 {
		return doc.Feeds, nil
	}
	if err := yaml.Unmarshal([]byte(raw), &feeds); err != nil {
		return nil, fmt.Errorf("invalid AIO_FEEDS: %w", err)
	}
	return feeds, nil
}

// Helper: get env with default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key, defaultValue string) (time.Duration, error) {
	d, err := time.ParseDuration(getEnv(key, defaultValue))
	if err != nil {
		return 0, fmt.Errorf("invalid %s format", key)
	}
	return d, nil
}

func getInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s format", key)
	}
	return n, nil
}
