package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	// Operating mode: local, dual or remote
	Mode string

	// Local tier. With no address the local tier is in-process memory;
	// with an address it is a nearby redis.
	LocalRedisAddr        string
	LocalRedisPassword    string
	MemoryCacheLimitBytes int64

	// Remote tier (redis of record)
	RemoteRedisAddr     string
	RemoteRedisPassword string
	RemoteRedisDB       int
	RemoteRedisTLS      bool

	// Timeouts
	ConnectTimeout   time.Duration
	OperationTimeout time.Duration

	// Health monitoring
	HealthCheckInterval    time.Duration
	UnhealthyAfterFailures int

	// Behavior
	RepopulateOnFallbackHit bool
	CompressThresholdBytes  int
	InvalidateRatePerMin    int

	Port          string
	Debug         bool
	EnableMetrics bool
}

// ConfigError reports a fatal startup misconfiguration.
type ConfigError struct {
	Option string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid configuration %s: %s", e.Option, e.Reason)
}

// LoadConfig loads configuration from environment variables
func LoadConfig() Config {
	godotenv.Load()

	return Config{
		Mode:                    getEnv("CACHE_MODE", "dual"),
		LocalRedisAddr:          os.Getenv("LOCAL_REDIS_ADDR"),
		LocalRedisPassword:      os.Getenv("LOCAL_REDIS_PASSWORD"),
		MemoryCacheLimitBytes:   int64(getEnvInt("MEMORY_CACHE_LIMIT_BYTES", 64<<20)),
		RemoteRedisAddr:         os.Getenv("REMOTE_REDIS_ADDR"),
		RemoteRedisPassword:     os.Getenv("REMOTE_REDIS_PASSWORD"),
		RemoteRedisDB:           getEnvInt("REMOTE_REDIS_DB", 0),
		RemoteRedisTLS:          getEnvBool("REMOTE_REDIS_TLS", false),
		ConnectTimeout:          time.Duration(getEnvInt("CONNECT_TIMEOUT_MS", 200)) * time.Millisecond,
		OperationTimeout:        time.Duration(getEnvInt("OPERATION_TIMEOUT_MS", 500)) * time.Millisecond,
		HealthCheckInterval:     time.Duration(getEnvInt("HEALTH_CHECK_INTERVAL_S", 10)) * time.Second,
		UnhealthyAfterFailures:  getEnvInt("UNHEALTHY_AFTER_FAILURES", 3),
		RepopulateOnFallbackHit: getEnvBool("REPOPULATE_ON_FALLBACK_HIT", false),
		CompressThresholdBytes:  getEnvInt("COMPRESS_THRESHOLD_BYTES", 0),
		InvalidateRatePerMin:    getEnvInt("INVALIDATE_RATE_PER_MIN", 30),
		Port:                    getEnv("PORT", "8080"),
		Debug:                   getEnvBool("DEBUG", false),
		EnableMetrics:           getEnvBool("ENABLE_METRICS", true),
	}
}

// Validate rejects configurations the service must not start with.
func (c Config) Validate() error {
	switch c.Mode {
	case "local":
	case "dual", "remote":
		if c.RemoteRedisAddr == "" {
			return &ConfigError{Option: "REMOTE_REDIS_ADDR", Reason: fmt.Sprintf("required in %s mode", c.Mode)}
		}
	default:
		return &ConfigError{Option: "CACHE_MODE", Reason: fmt.Sprintf("unknown mode %q", c.Mode)}
	}
	if c.ConnectTimeout <= 0 {
		return &ConfigError{Option: "CONNECT_TIMEOUT_MS", Reason: "must be positive"}
	}
	if c.OperationTimeout <= 0 {
		return &ConfigError{Option: "OPERATION_TIMEOUT_MS", Reason: "must be positive"}
	}
	if c.HealthCheckInterval <= 0 {
		return &ConfigError{Option: "HEALTH_CHECK_INTERVAL_S", Reason: "must be positive"}
	}
	if c.UnhealthyAfterFailures < 1 {
		return &ConfigError{Option: "UNHEALTHY_AFTER_FAILURES", Reason: "must be at least 1"}
	}
	if c.CompressThresholdBytes < 0 {
		return &ConfigError{Option: "COMPRESS_THRESHOLD_BYTES", Reason: "must not be negative"}
	}
	return nil
}

// Helpers
func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		val, err := strconv.ParseBool(value)
		if err == nil {
			return val
		}
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		val, err := strconv.Atoi(value)
		if err == nil {
			return val
		}
	}
	return fallback
}
