package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.SubscriptionTimeoutSeconds != 3600 {
		t.Fatalf("subscription timeout default")
	}
	if cfg.MaxSubscriptionsPerUser != 16 {
		t.Fatalf("subscription cap default")
	}
	if !cfg.Channels.LivePush || !cfg.Channels.StreamPush {
		t.Fatalf("live and stream push should default on")
	}
	if cfg.Channels.MobilePush {
		t.Fatalf("mobile push should default off")
	}
	if cfg.QueuePollInterval() != time.Second {
		t.Fatalf("poll interval default")
	}
}

func TestLoadJSON(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "chitlaq.json")
	data := []byte(`{"httpAddr":":9000","maxSubscriptionsPerUser":4,"channels":{"livePush":false,"streamPush":true,"mobilePush":true}}`)
	if err := os.WriteFile(file, data, 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(file)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTPAddr != ":9000" {
		t.Fatalf("httpAddr not loaded")
	}
	if cfg.MaxSubscriptionsPerUser != 4 {
		t.Fatalf("cap not loaded")
	}
	if cfg.Channels.LivePush || !cfg.Channels.MobilePush {
		t.Fatalf("channel flags not loaded")
	}
	// untouched keys keep defaults
	if cfg.SweepIntervalSeconds != 60 {
		t.Fatalf("sweep default lost on load")
	}
}

func TestFromEnv(t *testing.T) {
	cfg := Default()
	t.Setenv("CHITLAQ_HTTP_ADDR", ":7777")
	t.Setenv("CHITLAQ_CHANNEL_MOBILE_PUSH", "true")
	t.Setenv("CHITLAQ_QUEUE_POP_TIMEOUT_MS", "250")
	FromEnv(&cfg)
	if cfg.HTTPAddr != ":7777" {
		t.Fatalf("env addr not applied")
	}
	if !cfg.Channels.MobilePush {
		t.Fatalf("env channel flag not applied")
	}
	if cfg.QueuePopTimeoutMs != 250 {
		t.Fatalf("env pop timeout not applied")
	}
}

func TestPopTimeoutClampedToTick(t *testing.T) {
	cfg := Default()
	cfg.QueuePollIntervalMs = 200
	cfg.QueuePopTimeoutMs = 500
	if got := cfg.QueuePopTimeout(); got != 200*time.Millisecond {
		t.Fatalf("pop timeout should clamp to tick, got %v", got)
	}
}
