package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(cfgPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return cfgPath
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://override:pw@db:5432/personas")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("PERSONAHUB_ADMIN_SECRET", "env-secret")

	cfgPath := writeConfig(t, `
port: "8000"
logLevel: "info"
databaseURL: "postgres://file:pw@localhost:5432/personas"
fallbackPath: "data/personas.json"
rateLimit: 30
rateWindow: "1m"
`)

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.DatabaseURL != "postgres://override:pw@db:5432/personas" {
		t.Fatalf("databaseURL = %q", cfg.DatabaseURL)
	}
	if cfg.RedisAddr != "redis:6379" {
		t.Fatalf("redisAddr = %q", cfg.RedisAddr)
	}
	if cfg.AdminSecret != "env-secret" {
		t.Fatalf("adminSecret = %q", cfg.AdminSecret)
	}
}

func TestLoadRequiresPort(t *testing.T) {
	cfgPath := writeConfig(t, `
logLevel: "info"
`)
	if _, err := Load(cfgPath); err == nil {
		t.Fatal("missing port should fail")
	}
}

func TestLoadDefaultsFallbackPath(t *testing.T) {
	cfgPath := writeConfig(t, `
port: "8000"
`)
	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.FallbackPath != "data/personas.json" {
		t.Fatalf("fallbackPath = %q", cfg.FallbackPath)
	}
}

func TestParseRateWindow(t *testing.T) {
	d, err := ParseRateWindow("")
	if err != nil || d != time.Minute {
		t.Fatalf("default window = %v, err = %v", d, err)
	}
	d, err = ParseRateWindow("30s")
	if err != nil || d != 30*time.Second {
		t.Fatalf("30s window = %v, err = %v", d, err)
	}
	if _, err := ParseRateWindow("-5s"); err == nil {
		t.Fatal("negative window should fail")
	}
	if _, err := ParseRateWindow("bogus"); err == nil {
		t.Fatal("malformed window should fail")
	}
}
