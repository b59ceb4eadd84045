package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Database.Path != "referrals.db" {
		t.Errorf("expected default database path, got %q", cfg.Database.Path)
	}
	if cfg.Database.MaxOpenConns != 25 {
		t.Errorf("expected 25 max open conns, got %d", cfg.Database.MaxOpenConns)
	}
	if cfg.Service.StoreTimeout != 10*time.Second {
		t.Errorf("expected 10s store timeout, got %v", cfg.Service.StoreTimeout)
	}
	if cfg.Service.LedgerMirror != "" {
		t.Errorf("expected no ledger mirror, got %q", cfg.Service.LedgerMirror)
	}
	if cfg.Watcher.PollingInterval != 5*time.Second {
		t.Errorf("expected 5s polling interval, got %v", cfg.Watcher.PollingInterval)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("DATABASE_PATH", "/tmp/test.db")
	t.Setenv("SEED_DEMO_DATA", "true")
	t.Setenv("LEDGER_MIRROR", "Formance")
	t.Setenv("STORE_TIMEOUT", "2s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Database.Path != "/tmp/test.db" {
		t.Errorf("expected overridden path, got %q", cfg.Database.Path)
	}
	if !cfg.Service.SeedDemoData {
		t.Error("expected seeding enabled")
	}
	if cfg.Service.LedgerMirror != "formance" {
		t.Errorf("expected formance mirror, got %q", cfg.Service.LedgerMirror)
	}
	if cfg.Service.StoreTimeout != 2*time.Second {
		t.Errorf("expected 2s store timeout, got %v", cfg.Service.StoreTimeout)
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	t.Setenv("STORE_TIMEOUT", "soon")
	if _, err := Load(); err == nil {
		t.Error("expected error for invalid duration")
	}

	t.Setenv("STORE_TIMEOUT", "1s")
	t.Setenv("LEDGER_MIRROR", "postgres")
	if _, err := Load(); err == nil {
		t.Error("expected error for unsupported ledger mirror")
	}
}
