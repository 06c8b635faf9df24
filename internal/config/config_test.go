package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "LISTEN_ADDR", "DATABASE_URL", "MERGE_GAP", "TIMEZONE", "ALLOWED_ORIGINS", "LOG_LEVEL"} {
		t.Setenv(key, "")
	}

	cfg := Load()
	if cfg.ListenAddr != ":8080" {
		t.Fatalf("expected :8080, got %q", cfg.ListenAddr)
	}
	if cfg.DatabaseURL != "attendlog.db" {
		t.Fatalf("unexpected database url %q", cfg.DatabaseURL)
	}
	if cfg.MergeGap != 2*time.Minute {
		t.Fatalf("expected 2m merge gap, got %s", cfg.MergeGap)
	}
	if cfg.LogLevel != "info" {
		t.Fatalf("expected info log level, got %q", cfg.LogLevel)
	}
	loc, err := cfg.Location()
	if err != nil || loc != time.UTC {
		t.Fatalf("expected UTC, got %v (%v)", loc, err)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("LISTEN_ADDR", "")
	t.Setenv("MERGE_GAP", "90s")
	t.Setenv("HEARTBEAT_RATE_PER_MINUTE", "abc")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, ,https://b.example")
	t.Setenv("TIMEZONE", "Europe/Berlin")

	cfg := Load()
	if cfg.ListenAddr != ":9090" {
		t.Fatalf("expected :9090, got %q", cfg.ListenAddr)
	}
	if cfg.MergeGap != 90*time.Second {
		t.Fatalf("expected 90s, got %s", cfg.MergeGap)
	}
	if cfg.HeartbeatRatePerMinute != 10 {
		t.Fatalf("expected invalid int to fall back to 10, got %d", cfg.HeartbeatRatePerMinute)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "https://b.example" {
		t.Fatalf("unexpected origins %v", cfg.AllowedOrigins)
	}
	if cfg.Timezone != "Europe/Berlin" {
		t.Fatalf("unexpected timezone %q", cfg.Timezone)
	}
}

func TestLocationRejectsUnknownZone(t *testing.T) {
	cfg := AppConfig{Timezone: "Mars/Olympus"}
	if _, err := cfg.Location(); err == nil {
		t.Fatal("expected error for unknown zone")
	}
}
