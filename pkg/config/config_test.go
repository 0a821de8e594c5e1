package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pdftext.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Extract.Separator != " " {
		t.Errorf("separator = %q", cfg.Extract.Separator)
	}
	if cfg.Extract.MaxReportedErrors != 10 {
		t.Errorf("max_reported_errors = %d", cfg.Extract.MaxReportedErrors)
	}
	if cfg.Loader.Engine != LoaderAuto || cfg.Extract.Fallback != FallbackNone {
		t.Errorf("engine = %q, fallback = %q", cfg.Loader.Engine, cfg.Extract.Fallback)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
extract:
  workers: 4
  page_timeout: 30s
  fallback: dslipak
  max_reported_errors: 3
loader:
  engine: pdfcpu
log:
  level: debug
  format: json
s3:
  region: eu-west-1
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Extract.Workers != 4 {
		t.Errorf("workers = %d", cfg.Extract.Workers)
	}
	if cfg.Extract.PageTimeout != 30*time.Second {
		t.Errorf("page_timeout = %s", cfg.Extract.PageTimeout)
	}
	if cfg.Extract.Fallback != FallbackDslipak || cfg.Loader.Engine != LoaderPDFCPU {
		t.Errorf("fallback = %q, engine = %q", cfg.Extract.Fallback, cfg.Loader.Engine)
	}
	if cfg.Extract.Separator != " " {
		t.Errorf("separator should keep its default, got %q", cfg.Extract.Separator)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "json" || cfg.S3.Region != "eu-west-1" {
		t.Errorf("unexpected config %+v", cfg)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	path := writeConfig(t, "extract:\n  workers: 4\n")
	t.Setenv("PDFTEXT_WORKERS", "8")
	t.Setenv("PDFTEXT_LOADER", "native")
	t.Setenv("PDFTEXT_S3_ENDPOINT", "http://localhost:9000")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Extract.Workers != 8 {
		t.Errorf("workers = %d, want 8", cfg.Extract.Workers)
	}
	if cfg.Loader.Engine != LoaderNative {
		t.Errorf("engine = %q", cfg.Loader.Engine)
	}
	if cfg.S3.Endpoint != "http://localhost:9000" {
		t.Errorf("endpoint = %q", cfg.S3.Endpoint)
	}
}

func TestLoadBadEnv(t *testing.T) {
	t.Setenv("PDFTEXT_WORKERS", "many")
	if _, err := Load(""); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
	if _, err := Load(writeConfig(t, "extract: [")); err == nil {
		t.Error("expected error for malformed YAML")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"negative workers", func(c *Config) { c.Extract.Workers = -1 }},
		{"negative timeout", func(c *Config) { c.Extract.PageTimeout = -time.Second }},
		{"negative error cap", func(c *Config) { c.Extract.MaxReportedErrors = -1 }},
		{"unknown fallback", func(c *Config) { c.Extract.Fallback = "poppler" }},
		{"unknown loader", func(c *Config) { c.Loader.Engine = "lopdf" }},
		{"unknown level", func(c *Config) { c.Log.Level = "loud" }},
		{"unknown format", func(c *Config) { c.Log.Format = "xml" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); !errors.Is(err, ErrInvalid) {
				t.Errorf("expected ErrInvalid, got %v", err)
			}
		})
	}
}
