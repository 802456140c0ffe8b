package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Bind != ":8080" || cfg.Store.Driver != StoreMemory || cfg.Meet.CodePrefix != "sb-" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.Relay.WriteTimeout != 5*time.Second || cfg.Relay.PingInterval != 30*time.Second {
		t.Fatalf("unexpected relay defaults: %+v", cfg.Relay)
	}
	if cfg.Meet.MaxLifetime != 0 || cfg.Meet.SweepSchedule != "@every 10m" {
		t.Fatalf("unexpected meet defaults: %+v", cfg.Meet)
	}
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	settings := `
bind = "127.0.0.1:9000"
debug = true

[store]
driver = "badger"
badger_dir = "/var/lib/safemeet"

[meet]
max_lifetime = "4h"
`
	if err := os.WriteFile(filepath.Join(dir, "settings.toml"), []byte(settings), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SAFEMEET_MEET_CODE_PREFIX", "xy-")

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Bind != "127.0.0.1:9000" || !cfg.Debug {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	if cfg.Store.Driver != StoreBadger || cfg.Store.BadgerDir != "/var/lib/safemeet" {
		t.Fatalf("store not applied: %+v", cfg.Store)
	}
	if cfg.Meet.MaxLifetime != 4*time.Hour || cfg.Meet.CodePrefix != "xy-" {
		t.Fatalf("meet not applied: %+v", cfg.Meet)
	}
}

func TestLoad_RejectsPostgresWithoutDSN(t *testing.T) {
	t.Setenv("SAFEMEET_STORE_DRIVER", "postgres")
	if _, err := Load(t.TempDir()); err == nil {
		t.Fatalf("expected error for postgres without dsn")
	}
}

func TestLoad_RejectsUnknownDriver(t *testing.T) {
	t.Setenv("SAFEMEET_STORE_DRIVER", "sqlite")
	if _, err := Load(t.TempDir()); err == nil {
		t.Fatalf("expected error for unknown driver")
	}
}
