package config

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"
)

func load(t *testing.T, args ...string) *Config {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	Flags(fs)
	if err := fs.Parse(args); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return Load(NewViper(fs))
}

func TestDefaults(t *testing.T) {
	cfg := load(t)

	if cfg.Port != "8080" || cfg.Storage != StoragePostgres || cfg.RequiredPlayers != 2 {
		t.Errorf("unexpected defaults %+v", cfg)
	}
	if cfg.TokenTTL != 24*time.Hour || cfg.SnapshotTTL != time.Hour {
		t.Errorf("unexpected durations %s and %s", cfg.TokenTTL, cfg.SnapshotTTL)
	}
	if cfg.RedisHost != "" || InitRedis(cfg) != nil {
		t.Error("redis should be disabled by default")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("REQUIRED_PLAYERS", "4")
	t.Setenv("STORAGE", "Memory")
	t.Setenv("TOKEN_TTL", "30m")

	cfg := load(t)
	if cfg.Port != "9090" || cfg.DBHost != "db.internal" {
		t.Errorf("env not applied: %+v", cfg)
	}
	if cfg.RequiredPlayers != 4 || cfg.Storage != StorageMemory || cfg.TokenTTL != 30*time.Minute {
		t.Errorf("env not applied: %+v", cfg)
	}
}

func TestFlagsWinOverEnvironment(t *testing.T) {
	t.Setenv("REQUIRED_PLAYERS", "4")

	cfg := load(t, "--required-players", "3", "--storage", "memory")
	if cfg.RequiredPlayers != 3 {
		t.Errorf("expected the flag to win, got %d", cfg.RequiredPlayers)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"unknown storage", func(c *Config) { c.Storage = "sqlite" }, "invalid storage"},
		{"one player", func(c *Config) { c.RequiredPlayers = 1 }, "required players"},
		{"more players than colors", func(c *Config) { c.RequiredPlayers = 17 }, "required players"},
		{"empty secret", func(c *Config) { c.JWTSecret = "" }, "jwt secret"},
		{"zero token ttl", func(c *Config) { c.TokenTTL = 0 }, "token ttl"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := load(t)
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestAddr(t *testing.T) {
	cfg := load(t, "--bind-address", "0.0.0.0", "--port", "3000")
	if got := cfg.Addr(); got != "0.0.0.0:3000" {
		t.Errorf("unexpected addr %q", got)
	}
}

func TestCacheNamespace(t *testing.T) {
	cfg := load(t)
	if cfg.CacheNamespace() != "colorgrid" || cfg.CacheNamespace() != cfg.CacheNamespace() {
		t.Errorf("postgres ids persist, expected a stable namespace, got %q", cfg.CacheNamespace())
	}

	cfg.Storage = StorageMemory
	first, second := cfg.CacheNamespace(), cfg.CacheNamespace()
	if first == second || !strings.HasPrefix(first, "colorgrid:") {
		t.Errorf("memory storage needs a namespace per boot, got %q and %q", first, second)
	}
}
