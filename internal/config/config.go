package config

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DatabaseConfig holds connection settings
type DatabaseConfig struct {
	DSN            string        `json:"dsn" yaml:"dsn"`
	ConnectTimeout time.Duration `json:"connect_timeout" yaml:"connect_timeout"`
	Async          bool          `json:"async" yaml:"async"`
}

// LogConfig holds operational and statement log settings
type LogConfig struct {
	Level        string `json:"level" yaml:"level"`
	Format       string `json:"format" yaml:"format"` // text, json
	StatementLog string `json:"statement_log" yaml:"statement_log"`
	Console      bool   `json:"console" yaml:"console"`
}

// MetricsConfig holds Prometheus settings
type MetricsConfig struct {
	Addr      string    `json:"addr" yaml:"addr"` // empty disables the endpoint
	Namespace string    `json:"namespace" yaml:"namespace"`
	Buckets   []float64 `json:"buckets" yaml:"buckets"`
}

// TelemetryConfig holds tracing settings
type TelemetryConfig struct {
	Enabled     bool    `json:"enabled" yaml:"enabled"`
	Exporter    string  `json:"exporter" yaml:"exporter"` // otlp-http, none
	Endpoint    string  `json:"endpoint" yaml:"endpoint"`
	ServiceName string  `json:"service_name" yaml:"service_name"`
	SampleRate  float64 `json:"sample_rate" yaml:"sample_rate"`
}

// Config is the central configuration struct embedding all component configs
type Config struct {
	Database  DatabaseConfig  `json:"database" yaml:"database"`
	Log       LogConfig       `json:"log" yaml:"log"`
	Metrics   MetricsConfig   `json:"metrics" yaml:"metrics"`
	Telemetry TelemetryConfig `json:"telemetry" yaml:"telemetry"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			DSN:            "postgresql://postgres@localhost",
			ConnectTimeout: 10 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Namespace: "pgcore",
		},
		Telemetry: TelemetryConfig{
			Exporter:    "otlp-http",
			Endpoint:    "localhost:4318",
			ServiceName: "pgcore",
			SampleRate:  1.0,
		},
	}
}

// LoadFromFile loads configuration from a JSON or YAML file, chosen by
// extension. Unset fields keep their defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	default:
		err = json.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadDotEnv loads .env and then .env.local from dir into the process
// environment. Variables already set win over .env; .env.local overrides
// both. Missing files are ignored.
func LoadDotEnv(dir string) error {
	if err := godotenv.Load(filepath.Join(dir, ".env")); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	if err := godotenv.Overload(filepath.Join(dir, ".env.local")); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// LoadFromEnv applies environment variable overrides to the config
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("PGCORE_DSN"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("PGCORE_CONNECT_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Database.ConnectTimeout = d
		}
	}
	if v := os.Getenv("PGCORE_ASYNC"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Database.Async = b
		}
	}
	if v := os.Getenv("PGCORE_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("PGCORE_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("PGCORE_STATEMENT_LOG"); v != "" {
		cfg.Log.StatementLog = v
	}
	if v := os.Getenv("PGCORE_METRICS_ADDR"); v != "" {
		cfg.Metrics.Addr = v
	}
	if v := os.Getenv("PGCORE_OTEL_ENDPOINT"); v != "" {
		cfg.Telemetry.Enabled = true
		cfg.Telemetry.Endpoint = v
	}
}
