package config

import (
	"errors"
	"testing"
	"time"
)

func validConfig() Config {
	return Config{
		Mode:                   "dual",
		RemoteRedisAddr:        "localhost:6379",
		ConnectTimeout:         200 * time.Millisecond,
		OperationTimeout:       500 * time.Millisecond,
		HealthCheckInterval:    10 * time.Second,
		UnhealthyAfterFailures: 3,
	}
}

func TestValidate_OK(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Errorf("Expected valid config, got %v", err)
	}
}

func TestValidate_LocalModeNeedsNoRemote(t *testing.T) {
	cfg := validConfig()
	cfg.Mode = "local"
	cfg.RemoteRedisAddr = ""
	if err := cfg.Validate(); err != nil {
		t.Errorf("Expected valid config, got %v", err)
	}
}

func TestValidate_Rejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown mode", func(c *Config) { c.Mode = "hybrid" }},
		{"dual without remote", func(c *Config) { c.RemoteRedisAddr = "" }},
		{"remote without remote", func(c *Config) { c.Mode = "remote"; c.RemoteRedisAddr = "" }},
		{"zero connect timeout", func(c *Config) { c.ConnectTimeout = 0 }},
		{"zero operation timeout", func(c *Config) { c.OperationTimeout = 0 }},
		{"zero health interval", func(c *Config) { c.HealthCheckInterval = 0 }},
		{"zero failure threshold", func(c *Config) { c.UnhealthyAfterFailures = 0 }},
		{"negative compress threshold", func(c *Config) { c.CompressThresholdBytes = -1 }},
	}

	for _, tc := range cases {
		cfg := validConfig()
		tc.mutate(&cfg)
		err := cfg.Validate()
		if err == nil {
			t.Errorf("%s: expected error", tc.name)
			continue
		}
		var cerr *ConfigError
		if !errors.As(err, &cerr) {
			t.Errorf("%s: expected *ConfigError, got %T", tc.name, err)
		}
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg := LoadConfig()

	if cfg.Mode != "dual" {
		t.Errorf("Expected default mode dual, got %q", cfg.Mode)
	}
	if cfg.ConnectTimeout != 200*time.Millisecond {
		t.Errorf("Expected 200ms connect timeout, got %v", cfg.ConnectTimeout)
	}
	if cfg.OperationTimeout != 500*time.Millisecond {
		t.Errorf("Expected 500ms operation timeout, got %v", cfg.OperationTimeout)
	}
	if cfg.HealthCheckInterval != 10*time.Second {
		t.Errorf("Expected 10s health interval, got %v", cfg.HealthCheckInterval)
	}
	if cfg.UnhealthyAfterFailures != 3 {
		t.Errorf("Expected threshold 3, got %d", cfg.UnhealthyAfterFailures)
	}
	if cfg.RepopulateOnFallbackHit {
		t.Error("Expected repopulation off by default")
	}
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("CACHE_MODE", "remote")
	t.Setenv("REMOTE_REDIS_ADDR", "redis.internal:6379")
	t.Setenv("OPERATION_TIMEOUT_MS", "250")
	t.Setenv("REPOPULATE_ON_FALLBACK_HIT", "true")

	cfg := LoadConfig()
	if cfg.Mode != "remote" {
		t.Errorf("Expected mode remote, got %q", cfg.Mode)
	}
	if cfg.RemoteRedisAddr != "redis.internal:6379" {
		t.Errorf("Unexpected remote addr %q", cfg.RemoteRedisAddr)
	}
	if cfg.OperationTimeout != 250*time.Millisecond {
		t.Errorf("Expected 250ms, got %v", cfg.OperationTimeout)
	}
	if !cfg.RepopulateOnFallbackHit {
		t.Error("Expected repopulation enabled")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Expected valid config, got %v", err)
	}
}
