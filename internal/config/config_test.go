package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sieve.yaml")
	body := "source: out.csv\nbefore: JLT\nafter: SZ\nmax_metric: 3\nredis_url: redis://file\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("REDIS_URL", "redis://env")
	t.Setenv("FUMEN_MAX_METRIC", "2")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Source != "out.csv" || cfg.Before != "JLT" || cfg.After != "SZ" {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	if cfg.RedisURL != "redis://env" || cfg.MaxMetric != 2 {
		t.Fatalf("env did not override file: %+v", cfg)
	}
	if cfg.Pivot != "T" || cfg.ReferencePrefix != DefaultReferencePrefix || cfg.MetricColumn != 7 {
		t.Fatalf("defaults lost: %+v", cfg)
	}
	if err := cfg.ValidateFilter(); err != nil {
		t.Fatalf("ValidateFilter: %v", err)
	}
}

func TestValidateFilter(t *testing.T) {
	cfg := Default()
	cfg.Source = "out.csv"
	cfg.Before = "JLT"
	cfg.After = "SZ"
	if err := cfg.ValidateFilter(); err == nil {
		t.Fatalf("expected error without max metric")
	}
	cfg.MaxMetric = 1
	cfg.After = "SQ"
	if err := cfg.ValidateFilter(); err == nil {
		t.Fatalf("expected error for invalid letter")
	}
	cfg.After = "sz"
	if err := cfg.ValidateFilter(); err != nil {
		t.Fatalf("lowercase letters should be accepted: %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestValidateServePivot(t *testing.T) {
	cfg := Default()
	if err := cfg.ValidateServe(); err != nil {
		t.Fatalf("default: %v", err)
	}
	cfg.Pivot = "TT"
	if err := cfg.ValidateServe(); err == nil {
		t.Fatalf("expected error for multi-letter pivot")
	}
}
