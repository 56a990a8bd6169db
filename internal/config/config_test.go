package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"LISTEN_ADDR", "GAME_MODE", "GAME_RULESET", "REDIS_URL", "DATABASE_URL", "SESSION_TTL_SEC", "SEAT_SECRET_LENGTH", "ALLOWED_ORIGINS", "MESSAGES_DIR"} {
		t.Setenv(k, "")
	}
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ListenAddr != ":5000" || cfg.Mode != ModeOnline {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.SessionTTL != 24*time.Hour || cfg.SeatSecretLength != 8 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("GAME_MODE", "LOCAL")
	t.Setenv("GAME_RULESET", "Frontline")
	t.Setenv("SESSION_TTL_SEC", "60")
	t.Setenv("SEAT_SECRET_LENGTH", "2")
	t.Setenv("ALLOWED_ORIGINS", " a.example , ,b.example")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Mode != ModeLocal || cfg.Ruleset != "frontline" {
		t.Fatalf("mode/ruleset: %+v", cfg)
	}
	if cfg.SessionTTL != time.Minute {
		t.Fatalf("ttl = %v", cfg.SessionTTL)
	}
	if cfg.SeatSecretLength != 8 {
		t.Fatalf("too-short secret length should be ignored, got %d", cfg.SeatSecretLength)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "b.example" {
		t.Fatalf("origins = %v", cfg.AllowedOrigins)
	}
}

func TestLoadRejectsUnknownMode(t *testing.T) {
	t.Setenv("GAME_MODE", "spectator")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for unknown mode")
	}
}

func TestLoadSeatCheckRequiresBaseURL(t *testing.T) {
	t.Setenv("BOARD_BASE_URL", "")
	t.Setenv("SEAT_PASSWORD", "x")
	if _, err := LoadSeatCheck(); err == nil {
		t.Fatalf("expected error")
	}
	t.Setenv("BOARD_BASE_URL", "http://localhost:5000")
	cfg, err := LoadSeatCheck()
	if err != nil {
		t.Fatalf("LoadSeatCheck: %v", err)
	}
	if cfg.Password != "x" {
		t.Fatalf("password = %q", cfg.Password)
	}
}
