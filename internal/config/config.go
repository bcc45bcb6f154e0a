package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Config is the top-level configuration loaded from file/env.
type Config struct {
	DataDir  string `json:"dataDir"`
	HTTPAddr string `json:"httpAddr"`
	// Fsync selects WAL durability: "always", "interval", or "never".
	Fsync     string `json:"fsync"`
	LogLevel  string `json:"logLevel"`
	LogFormat string `json:"logFormat"`

	// JWTSecret enables token validation on connect. Empty runs the server in
	// trusted mode where the declared userId is accepted as-is.
	JWTSecret string `json:"jwtSecret"`

	// StatsdAddr enables the statsd metrics sink when non-empty.
	StatsdAddr string `json:"statsdAddr"`

	Channels ChannelFlags `json:"channels"`

	// SubscriptionTimeoutSeconds bounds the lifetime of every subscription.
	SubscriptionTimeoutSeconds int `json:"subscriptionTimeoutSeconds"`
	// MaxSubscriptionsPerUser caps concurrent subscriptions per user.
	MaxSubscriptionsPerUser int `json:"maxSubscriptionsPerUser"`

	// EventHistoryMax caps the per-user recent-event list.
	EventHistoryMax int `json:"eventHistoryMax"`
	// EventHistoryRetentionDays bounds how long the list is kept.
	EventHistoryRetentionDays int `json:"eventHistoryRetentionDays"`

	// QueuePollIntervalMs is the delivery processor tick.
	QueuePollIntervalMs int `json:"queuePollIntervalMs"`
	// QueuePopTimeoutMs bounds the blocking pop inside one tick. It is clamped
	// to the poll interval so a tick never outlives its schedule.
	QueuePopTimeoutMs int `json:"queuePopTimeoutMs"`
	// SweepIntervalSeconds is the expiry sweeper tick.
	SweepIntervalSeconds int `json:"sweepIntervalSeconds"`

	// ConnectionTTLSeconds bounds connection bindings.
	ConnectionTTLSeconds int `json:"connectionTtlSeconds"`
}

// ChannelFlags enables or disables delivery channels globally.
type ChannelFlags struct {
	LivePush   bool `json:"livePush"`
	StreamPush bool `json:"streamPush"`
	MobilePush bool `json:"mobilePush"`
}

// Default returns built-in defaults.
func Default() Config {
	return Config{
		DataDir:                    DefaultDataDir(),
		HTTPAddr:                   ":8580",
		Fsync:                      "interval",
		LogLevel:                   "info",
		LogFormat:                  "text",
		Channels:                   ChannelFlags{LivePush: true, StreamPush: true, MobilePush: false},
		SubscriptionTimeoutSeconds: 3600,
		MaxSubscriptionsPerUser:    16,
		EventHistoryMax:            100,
		EventHistoryRetentionDays:  7,
		QueuePollIntervalMs:        1000,
		QueuePopTimeoutMs:          500,
		SweepIntervalSeconds:       60,
		ConnectionTTLSeconds:       3600,
	}
}

// Load reads configuration from a JSON file. If path is empty, returns
// defaults.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	cfg := Default()
	if err := json.Unmarshal(b, &cfg); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// SubscriptionTimeout returns the subscription lifetime as a duration.
func (c Config) SubscriptionTimeout() time.Duration {
	return time.Duration(c.SubscriptionTimeoutSeconds) * time.Second
}

// QueuePollInterval returns the processor tick as a duration.
func (c Config) QueuePollInterval() time.Duration {
	return time.Duration(c.QueuePollIntervalMs) * time.Millisecond
}

// QueuePopTimeout returns the blocking-pop bound, clamped to the tick.
func (c Config) QueuePopTimeout() time.Duration {
	d := time.Duration(c.QueuePopTimeoutMs) * time.Millisecond
	if max := c.QueuePollInterval(); d > max {
		return max
	}
	return d
}

// SweepInterval returns the expiry sweeper tick as a duration.
func (c Config) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalSeconds) * time.Second
}

// ConnectionTTL returns the connection binding lifetime.
func (c Config) ConnectionTTL() time.Duration {
	return time.Duration(c.ConnectionTTLSeconds) * time.Second
}

// EventHistoryRetention returns the recent-event list lifetime.
func (c Config) EventHistoryRetention() time.Duration {
	return time.Duration(c.EventHistoryRetentionDays) * 24 * time.Hour
}
