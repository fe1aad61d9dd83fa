package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Moneyman334/codex-wallet-sub000/domain/tier"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "codex.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
database:
  path: /tmp/test.db
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("port = %d", cfg.Server.Port)
	}
	if cfg.Addr() != "0.0.0.0:9090" {
		t.Errorf("addr = %q", cfg.Addr())
	}
	if cfg.Admission.RateWindow != time.Minute {
		t.Errorf("rate window = %v, want default 1m", cfg.Admission.RateWindow)
	}
	if cfg.Admission.RecorderQueue != 1024 || cfg.Admission.RecorderWorkers != 2 {
		t.Errorf("recorder defaults = %d/%d", cfg.Admission.RecorderQueue, cfg.Admission.RecorderWorkers)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "json" {
		t.Errorf("logging defaults = %+v", cfg.Logging)
	}
	if !cfg.Metrics.Enabled {
		t.Error("metrics should default on")
	}
	if len(cfg.Features) != 4 {
		t.Errorf("default feature classes = %d, want 4", len(cfg.Features))
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
`)

	t.Setenv("CODEX_SERVER_PORT", "7070")
	t.Setenv("CODEX_RATE_WINDOW", "30s")
	t.Setenv("CODEX_LOG_LEVEL", "debug")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Server.Port != 7070 {
		t.Errorf("port = %d, want env override 7070", cfg.Server.Port)
	}
	if cfg.Admission.RateWindow != 30*time.Second {
		t.Errorf("rate window = %v", cfg.Admission.RateWindow)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("log level = %q", cfg.Logging.Level)
	}
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad port", "server:\n  port: 99999\n"},
		{"tiny window", "admission:\n  rate_window: 10ms\n"},
		{"nameless tier", "tiers:\n  - requests_per_minute: 5\n    requests_per_month: 100\n"},
		{"zero tier limit", "tiers:\n  - name: broken\n    requests_per_minute: 0\n    requests_per_month: 100\n"},
		{"negative feature", "feature_limits:\n  - class: trading\n    per_user: -1\n    window: 1m\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tt.content)); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestTierTableMerge(t *testing.T) {
	path := writeConfig(t, `
tiers:
  - name: free
    requests_per_minute: 5
    requests_per_month: 500
  - name: enterprise
    requests_per_minute: 5000
    requests_per_month: 50000000
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	table := cfg.TierTable()

	free := tier.Find(table, "free")
	if free.RequestsPerMinute != 5 || free.RequestsPerMonth != 500 {
		t.Errorf("free override not applied: %+v", free)
	}

	// Untouched defaults survive.
	growth := tier.Find(table, "growth")
	if growth.RequestsPerMinute != 300 {
		t.Errorf("growth default lost: %+v", growth)
	}

	// New tiers are appended.
	ent := tier.Find(table, "enterprise")
	if ent.RequestsPerMinute != 5000 {
		t.Errorf("enterprise not added: %+v", ent)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/codex.yaml"); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadWithFallbackUsesEnv(t *testing.T) {
	t.Setenv("CODEX_DATABASE_PATH", "/tmp/env.db")

	cfg, err := LoadWithFallback("/nonexistent/codex.yaml")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Database.Path != "/tmp/env.db" {
		t.Errorf("database path = %q", cfg.Database.Path)
	}
}

func TestFeatureLimitsConversion(t *testing.T) {
	path := writeConfig(t, `
feature_limits:
  - class: trading
    per_user: 30
    window: 1m
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	limits := cfg.FeatureLimits()
	if len(limits) != 1 {
		t.Fatalf("limits = %d", len(limits))
	}
	if limits[0].Class != tier.ClassTrading || limits[0].PerUser != 30 || limits[0].Window != time.Minute {
		t.Errorf("limit = %+v", limits[0])
	}
}
