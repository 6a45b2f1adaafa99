package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"JWT_SECRET", "PORT", "ENVIRONMENT", "ALLOWED_ORIGINS",
		"MAX_CONNECTIONS_PER_DEVICE", "PIN_EXPIRY_SECONDS",
		"SESSION_EXPIRY_SECONDS", "REDIS_ADDR", "REDIS_PASSWORD",
		"OTEL_COLLECTOR_ADDR",
	} {
		os.Unsetenv(k)
	}
}

func TestValidateEnv_MissingSecret(t *testing.T) {
	clearEnv(t)
	_, err := ValidateEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET is required")
}

func TestValidateEnv_ShortSecret(t *testing.T) {
	clearEnv(t)
	os.Setenv("JWT_SECRET", "too-short")
	defer os.Unsetenv("JWT_SECRET")

	_, err := ValidateEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least 32 characters")
}

func TestValidateEnv_Defaults(t *testing.T) {
	clearEnv(t)
	os.Setenv("JWT_SECRET", "01234567890123456789012345678901")
	defer os.Unsetenv("JWT_SECRET")

	cfg, err := ValidateEnv()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "dev", cfg.Environment)
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins)
	assert.Equal(t, 3, cfg.MaxConnectionsPerDevice)
	assert.Equal(t, int64(300), cfg.PinExpiry.Nanoseconds()/1e9)
	assert.Equal(t, int64(86400), cfg.SessionExpiry.Nanoseconds()/1e9)
	assert.False(t, cfg.RedisEnabled)
}

func TestValidateEnv_Overrides(t *testing.T) {
	clearEnv(t)
	os.Setenv("JWT_SECRET", "01234567890123456789012345678901")
	os.Setenv("PORT", "9090")
	os.Setenv("ALLOWED_ORIGINS", "https://a.example,https://b.example")
	os.Setenv("MAX_CONNECTIONS_PER_DEVICE", "5")
	os.Setenv("REDIS_ADDR", "localhost:6379")
	defer clearEnv(t)

	cfg, err := ValidateEnv()
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
	assert.Equal(t, 5, cfg.MaxConnectionsPerDevice)
	assert.True(t, cfg.RedisEnabled)
}

func TestValidateEnv_InvalidPort(t *testing.T) {
	clearEnv(t)
	os.Setenv("JWT_SECRET", "01234567890123456789012345678901")
	os.Setenv("PORT", "not-a-port")
	defer clearEnv(t)

	_, err := ValidateEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PORT must be a valid port number")
}
