package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Database.ConnectTimeout != 10*time.Second {
		t.Errorf("ConnectTimeout = %s", cfg.Database.ConnectTimeout)
	}
	if cfg.Log.Level != "info" || cfg.Metrics.Namespace != "pgcore" {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if cfg.Telemetry.Enabled {
		t.Error("telemetry should be off by default")
	}
}

func TestLoadFromFileJSON(t *testing.T) {
	path := writeFile(t, t.TempDir(), "pgcore.json", `{
		"database": {"dsn": "postgresql://app@db/app", "async": true},
		"log": {"level": "debug"}
	}`)
	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Database.DSN != "postgresql://app@db/app" || !cfg.Database.Async {
		t.Errorf("database = %+v", cfg.Database)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "text" {
		t.Errorf("log = %+v", cfg.Log)
	}
}

func TestLoadFromFileYAML(t *testing.T) {
	path := writeFile(t, t.TempDir(), "pgcore.yaml", `
database:
  dsn: postgresql://app@db/app
metrics:
  addr: ":9090"
  buckets: [1, 5, 25]
telemetry:
  enabled: true
  sample_rate: 0.5
`)
	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Metrics.Addr != ":9090" || len(cfg.Metrics.Buckets) != 3 {
		t.Errorf("metrics = %+v", cfg.Metrics)
	}
	if !cfg.Telemetry.Enabled || cfg.Telemetry.SampleRate != 0.5 || cfg.Telemetry.ServiceName != "pgcore" {
		t.Errorf("telemetry = %+v", cfg.Telemetry)
	}
}

func TestLoadFromFileErrors(t *testing.T) {
	if _, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}
	path := writeFile(t, t.TempDir(), "bad.json", `{"database": `)
	if _, err := LoadFromFile(path); err == nil {
		t.Error("expected error for malformed file")
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PGCORE_DSN", "postgresql://env@localhost")
	t.Setenv("PGCORE_CONNECT_TIMEOUT", "3s")
	t.Setenv("PGCORE_ASYNC", "true")
	t.Setenv("PGCORE_LOG_LEVEL", "warn")
	t.Setenv("PGCORE_OTEL_ENDPOINT", "collector:4318")

	cfg := DefaultConfig()
	LoadFromEnv(cfg)
	if cfg.Database.DSN != "postgresql://env@localhost" {
		t.Errorf("DSN = %q", cfg.Database.DSN)
	}
	if cfg.Database.ConnectTimeout != 3*time.Second || !cfg.Database.Async {
		t.Errorf("database = %+v", cfg.Database)
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("Level = %q", cfg.Log.Level)
	}
	if !cfg.Telemetry.Enabled || cfg.Telemetry.Endpoint != "collector:4318" {
		t.Errorf("telemetry = %+v", cfg.Telemetry)
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ".env", "PGCORE_TEST_DOTENV_A=base\nPGCORE_TEST_DOTENV_B=base\n")
	writeFile(t, dir, ".env.local", "PGCORE_TEST_DOTENV_B=local\n")
	t.Setenv("PGCORE_TEST_DOTENV_A", "")
	os.Unsetenv("PGCORE_TEST_DOTENV_A")
	t.Setenv("PGCORE_TEST_DOTENV_B", "")
	os.Unsetenv("PGCORE_TEST_DOTENV_B")

	if err := LoadDotEnv(dir); err != nil {
		t.Fatal(err)
	}
	if got := os.Getenv("PGCORE_TEST_DOTENV_A"); got != "base" {
		t.Errorf("A = %q", got)
	}
	if got := os.Getenv("PGCORE_TEST_DOTENV_B"); got != "local" {
		t.Errorf("B = %q, want .env.local to win", got)
	}

	if err := LoadDotEnv(t.TempDir()); err != nil {
		t.Errorf("missing files should be ignored: %v", err)
	}
}
