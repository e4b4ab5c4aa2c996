package config

import (
	"log/slog"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Environment != "development" {
		t.Errorf("Environment = %q, want development", cfg.Environment)
	}
	if cfg.DataDir != "./data" || cfg.SavesDir != "./saves" || cfg.ProfilesDir != "./profiles" {
		t.Errorf("directory defaults wrong: %+v", cfg)
	}
	if cfg.SnapshotTTL != 24*time.Hour {
		t.Errorf("SnapshotTTL = %v, want 24h", cfg.SnapshotTTL)
	}
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("SNAPSHOT_TTL", "1h")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.RedisAddr != "localhost:6379" {
		t.Errorf("RedisAddr = %q", cfg.RedisAddr)
	}
	if cfg.SnapshotTTL != time.Hour {
		t.Errorf("SnapshotTTL = %v", cfg.SnapshotTTL)
	}
	if cfg.SlogLevel() != slog.LevelDebug {
		t.Errorf("SlogLevel = %v, want debug", cfg.SlogLevel())
	}
}

func TestSlogLevel_UnknownFallsBackToInfo(t *testing.T) {
	cfg := &Config{LogLevel: "chatty"}
	if cfg.SlogLevel() != slog.LevelInfo {
		t.Errorf("SlogLevel = %v, want info", cfg.SlogLevel())
	}
}
