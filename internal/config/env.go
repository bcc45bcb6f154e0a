package config

import (
	"os"
	"strconv"
)

// FromEnv overlays CHITLAQ_* environment variables onto cfg.
func FromEnv(cfg *Config) {
	setStr := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setInt := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}
	setBool := func(key string, dst *bool) {
		if v := os.Getenv(key); v != "" {
			if b, err := strconv.ParseBool(v); err == nil {
				*dst = b
			}
		}
	}

	setStr("CHITLAQ_DATA_DIR", &cfg.DataDir)
	setStr("CHITLAQ_HTTP_ADDR", &cfg.HTTPAddr)
	setStr("CHITLAQ_FSYNC", &cfg.Fsync)
	setStr("CHITLAQ_LOG_LEVEL", &cfg.LogLevel)
	setStr("CHITLAQ_LOG_FORMAT", &cfg.LogFormat)
	setStr("CHITLAQ_JWT_SECRET", &cfg.JWTSecret)
	setStr("CHITLAQ_STATSD_ADDR", &cfg.StatsdAddr)

	setBool("CHITLAQ_CHANNEL_LIVE_PUSH", &cfg.Channels.LivePush)
	setBool("CHITLAQ_CHANNEL_STREAM_PUSH", &cfg.Channels.StreamPush)
	setBool("CHITLAQ_CHANNEL_MOBILE_PUSH", &cfg.Channels.MobilePush)

	setInt("CHITLAQ_SUBSCRIPTION_TIMEOUT_SECONDS", &cfg.SubscriptionTimeoutSeconds)
	setInt("CHITLAQ_MAX_SUBSCRIPTIONS_PER_USER", &cfg.MaxSubscriptionsPerUser)
	setInt("CHITLAQ_EVENT_HISTORY_MAX", &cfg.EventHistoryMax)
	setInt("CHITLAQ_EVENT_HISTORY_RETENTION_DAYS", &cfg.EventHistoryRetentionDays)
	setInt("CHITLAQ_QUEUE_POLL_INTERVAL_MS", &cfg.QueuePollIntervalMs)
	setInt("CHITLAQ_QUEUE_POP_TIMEOUT_MS", &cfg.QueuePopTimeoutMs)
	setInt("CHITLAQ_SWEEP_INTERVAL_SECONDS", &cfg.SweepIntervalSeconds)
	setInt("CHITLAQ_CONNECTION_TTL_SECONDS", &cfg.ConnectionTTLSeconds)
}
