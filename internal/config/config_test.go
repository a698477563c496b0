package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Setenv("CODEC_SECRET", "xor")
	t.Setenv("API_SHARED_SECRET", "shared")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Address())
	assert.Equal(t, DriverSQLite, cfg.Database.Driver)
	assert.Equal(t, 3, cfg.Auth.Threshold)
	assert.Equal(t, 30*time.Minute, cfg.Auth.Lockout)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.Equal(t, 500*time.Millisecond, cfg.Retry.Backoff)
	assert.Equal(t, 5, cfg.Retry.ConnectMaxAttempts)
	assert.Equal(t, 2*time.Second, cfg.Retry.ConnectBackoff)
	assert.Equal(t, "memory", cfg.RateLimit.Store)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
}

func TestLoad_XORKeyFallback(t *testing.T) {
	t.Setenv("CODEC_SECRET", "")
	t.Setenv("XOR_KEY", "legacy")
	t.Setenv("API_SHARED_SECRET", "shared")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "legacy", cfg.Auth.CodecSecret)
}

func TestLoad_MissingSecrets(t *testing.T) {
	t.Setenv("CODEC_SECRET", "")
	t.Setenv("XOR_KEY", "")
	t.Setenv("API_SHARED_SECRET", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CODEC_SECRET")
	assert.Contains(t, err.Error(), "API_SHARED_SECRET")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"unknown driver", func(c *Config) { c.Database.Driver = "oracle" }, "DATABASE_DRIVER"},
		{"unknown limiter store", func(c *Config) { c.RateLimit.Store = "memcached" }, "RATE_LIMIT_STORE"},
		{"zero attempts", func(c *Config) { c.Retry.MaxAttempts = 0 }, "retry attempts"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequired(t)
			cfg, err := Load()
			require.NoError(t, err)

			tt.mutate(cfg)
			err = cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestRedacted(t *testing.T) {
	setRequired(t)
	t.Setenv("DATABASE_URL", "postgres://user:pw@db/inventory")

	cfg, err := Load()
	require.NoError(t, err)

	red := cfg.Redacted()
	assert.Equal(t, "[REDACTED]", red.Auth.CodecSecret)
	assert.Equal(t, "[REDACTED]", red.Auth.SharedSecret)
	assert.Equal(t, "[REDACTED]", red.Database.URL)
	assert.Equal(t, "", red.App.LoginKey)
	assert.Equal(t, "shared", cfg.Auth.SharedSecret)
}
