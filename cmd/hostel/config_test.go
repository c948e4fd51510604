package main

import (
	"log/slog"
	"testing"
	"time"
)

func TestParseConfig(t *testing.T) {
	raw := []byte(`
addr: ":9090"
log_level: debug
store: bolt
bolt_path: /var/lib/hostel/mess.db
cors_origins: ["https://mess.example"]
rate_window: 30s
min_streak_days: 5
stipend_supplement: "250.50"
`)
	cfg := defaultConfig()
	if err := parseConfig(raw, &cfg); err != nil {
		t.Fatalf("parseConfig: %v", err)
	}

	if cfg.Addr != ":9090" || cfg.LogLevel != slog.LevelDebug {
		t.Errorf("server: got %q %v", cfg.Addr, cfg.LogLevel)
	}
	if cfg.Store != storeBolt || cfg.BoltPath != "/var/lib/hostel/mess.db" {
		t.Errorf("store: got %q %q", cfg.Store, cfg.BoltPath)
	}
	if cfg.RateWindow != 30*time.Second || cfg.RateLimit != 120 {
		t.Errorf("rate: got %d per %v", cfg.RateLimit, cfg.RateWindow)
	}
	if len(cfg.CORSOrigins) != 1 || cfg.MinStreakDays != 5 || cfg.StipendSupplement != "250.50" {
		t.Errorf("billing: got %+v", cfg)
	}
	if err := cfg.validate(); err != nil {
		t.Errorf("validate: %v", err)
	}
}

func TestApplyEnv(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		check   func(config) bool
		wantErr bool
	}{
		{
			name:  "overrides",
			env:   map[string]string{"HOSTEL_ADDR": ":7000", "HOSTEL_LOG_LEVEL": "warn", "HOSTEL_CORS_ORIGINS": "a,b"},
			check: func(c config) bool { return c.Addr == ":7000" && c.LogLevel == slog.LevelWarn && len(c.CORSOrigins) == 2 },
		},
		{
			name:  "numbers",
			env:   map[string]string{"HOSTEL_RATE_LIMIT": "0", "HOSTEL_MIN_STREAK_DAYS": "10"},
			check: func(c config) bool { return c.RateLimit == 0 && c.MinStreakDays == 10 },
		},
		{name: "bad level", env: map[string]string{"HOSTEL_LOG_LEVEL": "loud"}, wantErr: true},
		{name: "bad streak", env: map[string]string{"HOSTEL_MIN_STREAK_DAYS": "week"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			err := applyEnv(&cfg, func(k string) string { return tt.env[k] })
			if (err != nil) != tt.wantErr {
				t.Fatalf("err: got %v, wantErr %v", err, tt.wantErr)
			}
			if tt.check != nil && !tt.check(cfg) {
				t.Errorf("config: got %+v", cfg)
			}
		})
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*config)
		wantErr bool
	}{
		{"defaults", func(*config) {}, false},
		{"unknown store", func(c *config) { c.Store = "redis" }, true},
		{"bolt without path", func(c *config) { c.Store, c.BoltPath = storeBolt, "" }, true},
		{"negative streak", func(c *config) { c.MinStreakDays = -1 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(&cfg)
			if err := cfg.validate(); (err != nil) != tt.wantErr {
				t.Errorf("validate: got %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
