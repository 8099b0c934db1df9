package config

import (
	"testing"
	"time"
)

type testConfig struct {
	Path     string        `env:"PMAX_STEWARD_TEST_PATH" envDefault:"data/test.db"`
	Interval time.Duration `env:"PMAX_STEWARD_TEST_INTERVAL" envDefault:"15m"`
}

func TestParseEnvDefaults(t *testing.T) {
	var cfg testConfig
	if err := ParseEnv(&cfg); err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if cfg.Path != "data/test.db" {
		t.Fatalf("expected default path, got %q", cfg.Path)
	}
	if cfg.Interval != 15*time.Minute {
		t.Fatalf("expected default interval, got %v", cfg.Interval)
	}
}

func TestParseEnvOverrides(t *testing.T) {
	t.Setenv("PMAX_STEWARD_TEST_PATH", "/tmp/override.db")
	t.Setenv("PMAX_STEWARD_TEST_INTERVAL", "1h")

	var cfg testConfig
	if err := ParseEnv(&cfg); err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if cfg.Path != "/tmp/override.db" {
		t.Fatalf("expected override path, got %q", cfg.Path)
	}
	if cfg.Interval != time.Hour {
		t.Fatalf("expected override interval, got %v", cfg.Interval)
	}
}
