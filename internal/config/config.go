// Package config loads service configuration from the environment,
// with an optional YAML overlay for values that are awkward as env
// vars.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type AppConfig struct {
	HTTPAddr string

	RedisURL    string
	DatabaseURL string

	InviteTTL time.Duration
	BotDepth  int

	OnlineStudentsLimit int
}

// fileOverlay mirrors the YAML overlay file named by ARENA_CONFIG.
// Environment values win over the file.
type fileOverlay struct {
	HTTPAddr            string `yaml:"http_addr"`
	RedisURL            string `yaml:"redis_url"`
	DatabaseURL         string `yaml:"database_url"`
	InviteTTL           string `yaml:"invite_ttl"`
	BotDepth            int    `yaml:"bot_depth"`
	OnlineStudentsLimit int    `yaml:"online_students_limit"`
}

func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		HTTPAddr:            ":8090",
		InviteTTL:           5 * time.Minute,
		BotDepth:            3,
		OnlineStudentsLimit: 50,
	}

	if path := strings.TrimSpace(os.Getenv("ARENA_CONFIG")); path != "" {
		if err := applyOverlay(cfg, path); err != nil {
			return nil, err
		}
	}

	if v := strings.TrimSpace(os.Getenv("ARENA_HTTP_ADDR")); v != "" {
		cfg.HTTPAddr = v
	}
	if v := strings.TrimSpace(os.Getenv("REDIS_URL")); v != "" {
		cfg.RedisURL = v
	}
	if v := strings.TrimSpace(os.Getenv("DATABASE_URL")); v != "" {
		cfg.DatabaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("ARENA_INVITE_TTL")); v != "" {
		d, err := parseTTL(v)
		if err != nil {
			return nil, fmt.Errorf("ARENA_INVITE_TTL: %w", err)
		}
		cfg.InviteTTL = d
	}
	if v := strings.TrimSpace(os.Getenv("ARENA_BOT_DEPTH")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.BotDepth = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("ARENA_ONLINE_STUDENTS_LIMIT")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.OnlineStudentsLimit = n
		}
	}

	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	return cfg, nil
}

func applyOverlay(cfg *AppConfig, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config overlay: %w", err)
	}
	var overlay fileOverlay
	if err := yaml.Unmarshal(raw, &overlay); err != nil {
		return fmt.Errorf("parse config overlay: %w", err)
	}
	if overlay.HTTPAddr != "" {
		cfg.HTTPAddr = overlay.HTTPAddr
	}
	if overlay.RedisURL != "" {
		cfg.RedisURL = overlay.RedisURL
	}
	if overlay.DatabaseURL != "" {
		cfg.DatabaseURL = overlay.DatabaseURL
	}
	if overlay.InviteTTL != "" {
		d, err := parseTTL(overlay.InviteTTL)
		if err != nil {
			return fmt.Errorf("invite_ttl: %w", err)
		}
		cfg.InviteTTL = d
	}
	if overlay.BotDepth > 0 {
		cfg.BotDepth = overlay.BotDepth
	}
	if overlay.OnlineStudentsLimit > 0 {
		cfg.OnlineStudentsLimit = overlay.OnlineStudentsLimit
	}
	return nil
}

// parseTTL accepts either a Go duration (5m) or bare seconds (300).
func parseTTL(v string) (time.Duration, error) {
	if d, err := time.ParseDuration(v); err == nil {
		if d <= 0 {
			return 0, fmt.Errorf("must be positive, got %q", v)
		}
		return d, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid duration %q", v)
	}
	return time.Duration(n) * time.Second, nil
}
