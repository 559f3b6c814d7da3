package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func restoreConfig(t *testing.T) {
	orig := GetConfig()
	t.Cleanup(func() { SetConfig(orig) })
}

func TestEmbeddedDefaults(t *testing.T) {
	cfg := GetConfig()

	if cfg.Database.Driver != "sqlite" {
		t.Fatalf("default driver was %q, want sqlite", cfg.Database.Driver)
	}
	if cfg.Database.BatchSize != 10000 {
		t.Fatalf("default batch size was %d, want 10000", cfg.Database.BatchSize)
	}
	if got := cfg.EditionNames(); !reflect.DeepEqual(got, []string{"asn", "city", "country"}) {
		t.Fatalf("EditionNames returned %v", got)
	}

	asn, ok := cfg.Edition("asn")
	if !ok {
		t.Fatal("expected asn edition in defaults")
	}
	if asn.Archive != "GeoLite2-ASN-CSV.zip" || asn.BlocksFile != "GeoLite2-ASN-Blocks-IPv4.csv" {
		t.Fatalf("unexpected asn edition: %+v", asn)
	}
	if cfg.CacheTTL() != 24*time.Hour {
		t.Fatalf("CacheTTL returned %s, want 24h", cfg.CacheTTL())
	}
}

func TestReadSettingsMergesOverrides(t *testing.T) {
	restoreConfig(t)

	path := filepath.Join(t.TempDir(), "settings.json")
	override := `{"database": {"batch_size": 500}, "report": {"workers": 2, "cache_ttl_seconds": 0}}`
	if err := os.WriteFile(path, []byte(override), 0o644); err != nil {
		t.Fatalf("write settings: %v", err)
	}

	if err := ReadSettings(path); err != nil {
		t.Fatalf("ReadSettings returned error: %v", err)
	}

	cfg := GetConfig()
	if cfg.Database.BatchSize != 500 {
		t.Fatalf("batch size was %d, want 500", cfg.Database.BatchSize)
	}
	if cfg.Database.Driver != "sqlite" {
		t.Fatalf("driver default was lost, got %q", cfg.Database.Driver)
	}
	if cfg.Report.Workers != 2 {
		t.Fatalf("workers was %d, want 2", cfg.Report.Workers)
	}
	if cfg.CacheTTL() != 0 {
		t.Fatalf("CacheTTL returned %s, want 0", cfg.CacheTTL())
	}
}

func TestReadSettingsMissingFileKeepsDefaults(t *testing.T) {
	restoreConfig(t)

	if err := ReadSettings(filepath.Join(t.TempDir(), "missing.json")); err != nil {
		t.Fatalf("ReadSettings returned error: %v", err)
	}
	if got := GetConfig().Report.Output; got != "results.json" {
		t.Fatalf("report output was %q, want results.json", got)
	}
}

func TestReadSettingsInvalidJSON(t *testing.T) {
	restoreConfig(t)

	path := filepath.Join(t.TempDir(), "settings.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write settings: %v", err)
	}

	if err := ReadSettings(path); err == nil {
		t.Fatal("expected error for invalid settings, got nil")
	}
}
