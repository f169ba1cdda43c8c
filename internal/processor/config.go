package processor

import (
	"fmt"
	"time"

	"market-data-processor/config"
	"market-data-processor/internal/indicator"
	"market-data-processor/internal/notification"
)

// Config holds processor settings, resolved from the environment config.
type Config struct {
	Symbols          []string
	FeedURL          string
	RedisAddr        string
	RedisPassword    string
	SQLitePath       string
	HTTPAddr         string
	Indicators       []indicator.IndicatorConfig
	SnapshotInterval time.Duration // 0 disables periodic snapshots
	BookDepth        int
	RingSize         int
	TickRetention    time.Duration // 0 keeps ticks forever
	Notifier         notification.Notifier
	AlertCooldown    time.Duration
}

// ConfigFrom validates env config and parses the indicator specs.
func ConfigFrom(c *config.Config) (Config, error) {
	inds, err := indicator.ParseSpecs(c.IndicatorConfigs)
	if err != nil {
		return Config{}, fmt.Errorf("INDICATOR_CONFIGS: %w", err)
	}
	symbols := c.ParseSymbols()
	if len(symbols) == 0 {
		return Config{}, fmt.Errorf("SYMBOLS: no symbols configured")
	}
	return Config{
		Symbols:          symbols,
		FeedURL:          c.FeedURL,
		RedisAddr:        c.RedisAddr,
		RedisPassword:    c.RedisPassword,
		SQLitePath:       c.SQLitePath,
		HTTPAddr:         c.HTTPAddr,
		Indicators:       inds,
		SnapshotInterval: c.SnapshotInterval(),
		BookDepth:        c.BookDepth,
		RingSize:         c.RingSize,
		TickRetention:    time.Duration(c.TickRetentionHours) * time.Hour,
		Notifier:         notification.FromConfig(c.AlertWebhookURL, c.AlertTelegramToken, c.AlertTelegramChat),
		AlertCooldown:    time.Duration(c.AlertCooldownSec) * time.Second,
	}, nil
}
