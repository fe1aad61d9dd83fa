package config

import (
	"os"
	"testing"

	"github.com/rs/zerolog"
)

func TestHolderReload(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
`)

	h, err := NewHolder(path, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	defer h.Stop()

	if h.Get().Server.Port != 9090 {
		t.Fatalf("initial port = %d", h.Get().Server.Port)
	}

	var notified *Config
	h.OnChange(func(c *Config) { notified = c })

	if err := os.WriteFile(path, []byte("server:\n  port: 7070\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := h.Reload(); err != nil {
		t.Fatalf("reload: %v", err)
	}

	if h.Get().Server.Port != 7070 {
		t.Errorf("reloaded port = %d", h.Get().Server.Port)
	}
	if notified == nil || notified.Server.Port != 7070 {
		t.Error("OnChange not invoked with new config")
	}
}

func TestHolderReloadKeepsOldOnError(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
`)

	h, err := NewHolder(path, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	defer h.Stop()

	// Invalid port fails validation; the holder keeps the old config.
	if err := os.WriteFile(path, []byte("server:\n  port: 99999\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := h.Reload(); err == nil {
		t.Fatal("expected reload error")
	}
	if h.Get().Server.Port != 9090 {
		t.Errorf("old config lost: port = %d", h.Get().Server.Port)
	}
}

func TestHolderTierSource(t *testing.T) {
	path := writeConfig(t, `
tiers:
  - name: free
    requests_per_minute: 7
    requests_per_month: 700
`)

	h, err := NewHolder(path, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	defer h.Stop()

	src := NewTierSource(h)
	for _, tr := range src.Tiers() {
		if tr.Name == "free" && tr.RequestsPerMinute != 7 {
			t.Errorf("free = %+v", tr)
		}
	}

	// The source follows reloads.
	if err := os.WriteFile(path, []byte("tiers:\n  - name: free\n    requests_per_minute: 9\n    requests_per_month: 900\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := h.Reload(); err != nil {
		t.Fatal(err)
	}
	found := false
	for _, tr := range src.Tiers() {
		if tr.Name == "free" {
			found = true
			if tr.RequestsPerMinute != 9 {
				t.Errorf("reloaded free = %+v", tr)
			}
		}
	}
	if !found {
		t.Error("free tier missing")
	}
}
