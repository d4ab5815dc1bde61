package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadCreatesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.json")

	mgr := NewManager(path)
	settings, err := mgr.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if settings.Search.ConcurrencyLimit != 5 {
		t.Fatalf("expected default concurrency 5, got %d", settings.Search.ConcurrencyLimit)
	}
	if settings.Runtime.DriftTolerance != 0.15 {
		t.Fatalf("expected default drift tolerance 0.15, got %v", settings.Runtime.DriftTolerance)
	}
	if len(settings.Providers) == 0 {
		t.Fatalf("expected default provider list")
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("settings file should have been created: %v", err)
	}
}

func TestLoadAppliesDefaultsToPartialFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.json")
	partial := `{"server":{"port":9090},"breaker":{"muteSeconds":30}}`
	if err := os.WriteFile(path, []byte(partial), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	settings, err := NewManager(path).Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if settings.Server.Port != 9090 {
		t.Fatalf("explicit port lost: %d", settings.Server.Port)
	}
	if settings.Breaker.MuteSeconds != 30 {
		t.Fatalf("explicit mute lost: %d", settings.Breaker.MuteSeconds)
	}
	if settings.Breaker.FailureThreshold != 4 {
		t.Fatalf("expected default failure threshold 4, got %d", settings.Breaker.FailureThreshold)
	}
	if settings.Scoring.Weights.YearExact != 80 {
		t.Fatalf("expected default year weight, got %v", settings.Scoring.Weights.YearExact)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.json")
	mgr := NewManager(path)
	settings, err := mgr.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	settings.Search.GlobalCap = 8
	if err := mgr.Save(settings); err != nil {
		t.Fatalf("save: %v", err)
	}
	again, err := mgr.Load()
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if again.Search.GlobalCap != 8 {
		t.Fatalf("expected global cap 8 after reload, got %d", again.Search.GlobalCap)
	}
}
