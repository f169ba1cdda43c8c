package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// Feed
	Symbols string // comma-separated, e.g. "BTCUSD,ETHUSD"
	FeedURL string

	// Infrastructure
	RedisAddr     string
	RedisPassword string
	SQLitePath    string
	HTTPAddr      string
	GatewayAddr   string

	// Processing
	IndicatorConfigs    string // "SMA:10,EMA:10,RSI:14,BB:20:2,MACD:12:26:9"
	SnapshotIntervalSec int
	BookDepth           int
	RingSize            int
	TickRetentionHours  int // 0 keeps ticks forever

	// Alerting
	AlertWebhookURL    string
	AlertTelegramToken string
	AlertTelegramChat  string
	AlertCooldownSec   int

	LogLevel string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() *Config {
	return &Config{
		Symbols: getEnv("SYMBOLS", "BTCUSD,ETHUSD"),
		FeedURL: getEnv("FEED_URL", "ws://localhost:9001/ws"),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		SQLitePath:    getEnv("SQLITE_PATH", "data/ticks.db"),
		HTTPAddr:      getEnv("HTTP_ADDR", ":9090"),
		GatewayAddr:   getEnv("GATEWAY_ADDR", ":9100"),

		IndicatorConfigs:    getEnv("INDICATOR_CONFIGS", "SMA:10,EMA:10,RSI:14,BB:20:2,MACD:12:26:9"),
		SnapshotIntervalSec: getEnvInt("SNAPSHOT_INTERVAL_SEC", 30),
		BookDepth:           getEnvInt("BOOK_DEPTH", 10),
		RingSize:            getEnvInt("RING_SIZE", 65536),
		TickRetentionHours:  getEnvInt("TICK_RETENTION_HOURS", 24),

		AlertWebhookURL:    getEnv("ALERT_WEBHOOK_URL", ""),
		AlertTelegramToken: getEnv("ALERT_TELEGRAM_TOKEN", ""),
		AlertTelegramChat:  getEnv("ALERT_TELEGRAM_CHAT", ""),
		AlertCooldownSec:   getEnvInt("ALERT_COOLDOWN_SEC", 300),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

// ParseSymbols splits Symbols into a de-duplicated, upper-cased list.
func (c *Config) ParseSymbols() []string {
	parts := strings.Split(c.Symbols, ",")
	out := make([]string, 0, len(parts))
	seen := make(map[string]bool, len(parts))
	for _, p := range parts {
		p = strings.ToUpper(strings.TrimSpace(p))
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}

// SnapshotInterval returns the snapshot period; zero disables snapshots.
func (c *Config) SnapshotInterval() time.Duration {
	return time.Duration(c.SnapshotIntervalSec) * time.Second
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		slog.Warn("invalid integer env var, using default", "key", key, "value", v, "default", fallback)
		return fallback
	}
	return n
}
