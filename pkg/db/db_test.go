package db

import (
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Host != "localhost" {
		t.Errorf("unexpected host: %s", cfg.Host)
	}
	if cfg.Port != 5432 {
		t.Errorf("unexpected port: %d", cfg.Port)
	}
	if cfg.Database != "minuted" {
		t.Errorf("unexpected database: %s", cfg.Database)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestConfigFromEnv_URLOverride(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://u:p@db.example.com:5432/meetings")
	t.Setenv("DB_HOST", "ignored-host")

	cfg := ConfigFromEnv()
	if cfg.ConnectionString() != "postgres://u:p@db.example.com:5432/meetings" {
		t.Errorf("URL should override discrete fields, got %s", cfg.ConnectionString())
	}
}

func TestConfigFromEnv_DiscreteFields(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("DB_HOST", "pg.internal")
	t.Setenv("DB_PORT", "5433")
	t.Setenv("DB_NAME", "meetings")
	t.Setenv("DB_USER", "pipeline")
	t.Setenv("DB_PASSWORD", "s3cret")
	t.Setenv("DB_MAX_CONNS", "10")
	t.Setenv("DB_MIN_CONNS", "2")

	cfg := ConfigFromEnv()
	if cfg.Host != "pg.internal" || cfg.Port != 5433 {
		t.Errorf("unexpected host/port: %s:%d", cfg.Host, cfg.Port)
	}
	if cfg.MaxConns != 10 || cfg.MinConns != 2 {
		t.Errorf("unexpected conn limits: max=%d min=%d", cfg.MaxConns, cfg.MinConns)
	}

	cs := cfg.ConnectionString()
	if !strings.Contains(cs, "pg.internal:5433/meetings") {
		t.Errorf("unexpected connection string: %s", cs)
	}
	if !strings.Contains(cs, "s3cret") {
		t.Errorf("password missing from connection string: %s", cs)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"url bypasses checks", func(c *Config) { c.Host = ""; c.URL = "postgres://x" }, false},
		{"missing host", func(c *Config) { c.Host = "" }, true},
		{"bad port", func(c *Config) { c.Port = 70000 }, true},
		{"missing database", func(c *Config) { c.Database = "" }, true},
		{"missing user", func(c *Config) { c.User = "" }, true},
		{"max < min conns", func(c *Config) { c.MaxConns = 1; c.MinConns = 5 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCheck_NilPool(t *testing.T) {
	status := Check(nil, nil)
	if status.Healthy {
		t.Error("nil pool must not be healthy")
	}
	if status.Error == nil {
		t.Error("nil pool must carry an error")
	}
}

func TestConnectionStringEscapesCredentials(t *testing.T) {
	cfg := DefaultConfig()
	cfg.User = "user@corp"
	cfg.Password = "p#ss/word"

	cs := cfg.ConnectionString()
	if strings.Contains(cs, "p#ss/word") {
		t.Errorf("password must be URL-escaped: %s", cs)
	}
	if cfg.ConnectTimeout != 10*time.Second {
		t.Errorf("unexpected connect timeout: %v", cfg.ConnectTimeout)
	}
}
