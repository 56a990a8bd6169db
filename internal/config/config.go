package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Game modes.
const (
	ModeOnline = "online"
	ModeLocal  = "local"
)

type AppConfig struct {
	ListenAddr string
	Mode       string
	Ruleset    string

	RedisURL    string
	DatabaseURL string

	SessionTTL       time.Duration
	SeatSecretLength int
	AllowedOrigins   []string
	MessagesDir      string
	ShutdownTimeout  time.Duration
}

func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		ListenAddr:       ":5000",
		Mode:             ModeOnline,
		SessionTTL:       24 * time.Hour,
		SeatSecretLength: 8,
		ShutdownTimeout:  10 * time.Second,
	}

	if v := env("LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := strings.ToLower(env("GAME_MODE")); v != "" {
		cfg.Mode = v
	}
	cfg.Ruleset = strings.ToLower(env("GAME_RULESET"))

	cfg.RedisURL = env("REDIS_URL")
	cfg.DatabaseURL = env("DATABASE_URL")
	cfg.MessagesDir = env("MESSAGES_DIR")
	cfg.AllowedOrigins = splitList(env("ALLOWED_ORIGINS"))

	if v := env("SESSION_TTL_SEC"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.SessionTTL = time.Duration(n) * time.Second
		}
	}
	if v := env("SEAT_SECRET_LENGTH"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 4 {
			cfg.SeatSecretLength = n
		}
	}
	if v := env("SHUTDOWN_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.ShutdownTimeout = d
		}
	}

	switch cfg.Mode {
	case ModeOnline, ModeLocal:
	default:
		return nil, fmt.Errorf("GAME_MODE must be %q or %q, got %q", ModeOnline, ModeLocal, cfg.Mode)
	}
	if cfg.ListenAddr == "" {
		return nil, errors.New("LISTEN_ADDR is required")
	}
	return cfg, nil
}

// SeatCheckConfig configures the seatcheck smoke tool.
type SeatCheckConfig struct {
	BaseURL  string
	WSURL    string
	Password string
	Timeout  time.Duration
}

func LoadSeatCheck() (*SeatCheckConfig, error) {
	cfg := &SeatCheckConfig{
		BaseURL:  env("BOARD_BASE_URL"),
		WSURL:    env("BOARD_WS_URL"),
		Password: env("SEAT_PASSWORD"),
		Timeout:  8 * time.Second,
	}
	if v := env("SEATCHECK_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.Timeout = d
		}
	}
	if cfg.BaseURL == "" {
		return nil, errors.New("BOARD_BASE_URL is required")
	}
	if cfg.Password == "" {
		return nil, errors.New("SEAT_PASSWORD is required")
	}
	return cfg, nil
}

func env(k string) string { return strings.TrimSpace(os.Getenv(k)) }

func splitList(v string) []string {
	if v == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(v, ",") {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
