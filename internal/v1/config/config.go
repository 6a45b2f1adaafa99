// Package config validates and holds the relay service's environment
// configuration, following the teacher's ValidateEnv shape: collect every
// error before returning, log the validated result with secrets redacted.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/climanger/relay/internal/v1/logging"
)

// Config holds validated environment configuration for cmd/relayd.
type Config struct {
	// JWTSecret is required; Port defaults to "8080"
	JWTSecret string
	Port      string

	// Optional, defaulted
	Environment             string
	AllowedOrigins          []string
	MaxConnectionsPerDevice int
	PinExpiry               time.Duration
	SessionExpiry           time.Duration
	RedisAddr               string
	RedisPassword           string
	RedisEnabled            bool
	OTLPCollectorAddr       string
	TracingEnabled          bool
}

// ValidateEnv validates all required environment variables and returns a
// Config. Returns an error naming every problem found, not just the first.
func ValidateEnv() (*Config, error) {
	cfg := &Config{}
	var errs []string

	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	if cfg.JWTSecret == "" {
		errs = append(errs, "JWT_SECRET is required")
	} else if len(cfg.JWTSecret) < 32 {
		errs = append(errs, fmt.Sprintf("JWT_SECRET must be at least 32 characters (got %d)", len(cfg.JWTSecret)))
	}

	cfg.Port = os.Getenv("PORT")
	if cfg.Port == "" {
		cfg.Port = "8080"
	} else if port, err := strconv.Atoi(cfg.Port); err != nil || port < 1 || port > 65535 {
		errs = append(errs, fmt.Sprintf("PORT must be a valid port number between 1 and 65535 (got '%s')", cfg.Port))
	}

	cfg.Environment = os.Getenv("ENVIRONMENT")
	if cfg.Environment == "" {
		cfg.Environment = "dev"
	}

	originsStr := os.Getenv("ALLOWED_ORIGINS")
	if originsStr == "" {
		cfg.AllowedOrigins = []string{"*"}
	} else {
		cfg.AllowedOrigins = strings.Split(originsStr, ",")
	}

	cfg.MaxConnectionsPerDevice = getEnvIntOrDefault("MAX_CONNECTIONS_PER_DEVICE", 3, &errs)
	cfg.PinExpiry = time.Duration(getEnvIntOrDefault("PIN_EXPIRY_SECONDS", 300, &errs)) * time.Second
	cfg.SessionExpiry = time.Duration(getEnvIntOrDefault("SESSION_EXPIRY_SECONDS", 86400, &errs)) * time.Second

	cfg.RedisAddr = os.Getenv("REDIS_ADDR")
	cfg.RedisEnabled = cfg.RedisAddr != ""
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")

	cfg.OTLPCollectorAddr = os.Getenv("OTEL_COLLECTOR_ADDR")
	cfg.TracingEnabled = cfg.OTLPCollectorAddr != ""

	if len(errs) > 0 {
		return nil, fmt.Errorf("environment validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	logValidatedConfig(cfg)
	return cfg, nil
}

func getEnvIntOrDefault(key string, defaultValue int, errs *[]string) int {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*errs = append(*errs, fmt.Sprintf("%s must be an integer (got '%s')", key, v))
		return defaultValue
	}
	return n
}

func logValidatedConfig(cfg *Config) {
	slog.Info("environment configuration validated",
		"jwt_secret", logging.RedactSecret(cfg.JWTSecret),
		"port", cfg.Port,
		"environment", cfg.Environment,
		"allowed_origins", cfg.AllowedOrigins,
		"max_connections_per_device", cfg.MaxConnectionsPerDevice,
		"pin_expiry", cfg.PinExpiry,
		"session_expiry", cfg.SessionExpiry,
		"redis_enabled", cfg.RedisEnabled,
	)
}
