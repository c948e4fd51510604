package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Store backends selectable from config.
const (
	storeMemory = "memory"
	storeBolt   = "bolt"
)

type config struct {
	Addr     string     `yaml:"addr"`
	LogLevel slog.Level `yaml:"log_level"`

	Store    string `yaml:"store"`
	BoltPath string `yaml:"bolt_path"`

	BasePath    string        `yaml:"base_path"`
	CORSOrigins []string      `yaml:"cors_origins"`
	RateLimit   int           `yaml:"rate_limit"`
	RateWindow  time.Duration `yaml:"rate_window"`

	MinStreakDays     int    `yaml:"min_streak_days"`
	StipendSupplement string `yaml:"stipend_supplement"`
}

func defaultConfig() config {
	return config{
		Addr:       ":8080",
		LogLevel:   slog.LevelInfo,
		Store:      storeMemory,
		BoltPath:   "hostel.db",
		BasePath:   "/hostel",
		RateLimit:  120,
		RateWindow: time.Minute,
	}
}

// loadConfig reads .env into the environment, then the YAML file named by
// HOSTEL_CONFIG if set, then HOSTEL_* environment overrides.
func loadConfig() (config, error) {
	cfg := defaultConfig()

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return cfg, fmt.Errorf("load .env: %w", err)
	}

	if path := os.Getenv("HOSTEL_CONFIG"); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := parseConfig(raw, &cfg); err != nil {
			return cfg, err
		}
	}

	if err := applyEnv(&cfg, os.Getenv); err != nil {
		return cfg, err
	}
	return cfg, cfg.validate()
}

func parseConfig(raw []byte, cfg *config) error {
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}

func applyEnv(cfg *config, getenv func(string) string) error {
	if v := getenv("HOSTEL_ADDR"); v != "" {
		cfg.Addr = v
	}
	if v := getenv("HOSTEL_LOG_LEVEL"); v != "" {
		if err := cfg.LogLevel.UnmarshalText([]byte(v)); err != nil {
			return fmt.Errorf("HOSTEL_LOG_LEVEL: %w", err)
		}
	}
	if v := getenv("HOSTEL_STORE"); v != "" {
		cfg.Store = v
	}
	if v := getenv("HOSTEL_BOLT_PATH"); v != "" {
		cfg.BoltPath = v
	}
	if v := getenv("HOSTEL_BASE_PATH"); v != "" {
		cfg.BasePath = v
	}
	if v := getenv("HOSTEL_CORS_ORIGINS"); v != "" {
		cfg.CORSOrigins = strings.Split(v, ",")
	}
	if v := getenv("HOSTEL_RATE_LIMIT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("HOSTEL_RATE_LIMIT: %w", err)
		}
		cfg.RateLimit = n
	}
	if v := getenv("HOSTEL_MIN_STREAK_DAYS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("HOSTEL_MIN_STREAK_DAYS: %w", err)
		}
		cfg.MinStreakDays = n
	}
	if v := getenv("HOSTEL_STIPEND_SUPPLEMENT"); v != "" {
		cfg.StipendSupplement = v
	}
	return nil
}

func (c config) validate() error {
	switch c.Store {
	case storeMemory:
	case storeBolt:
		if c.BoltPath == "" {
			return errors.New("bolt_path is required for the bolt store")
		}
	default:
		return fmt.Errorf("unknown store %q", c.Store)
	}
	if c.MinStreakDays < 0 {
		return errors.New("min_streak_days must not be negative")
	}
	return nil
}
