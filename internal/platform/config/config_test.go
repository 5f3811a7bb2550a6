package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "0123456789abcdef0123456789abcdef"

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", secret)

	cfg, err := FromEnv()
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "digitalbank.audit", cfg.Kafka.AuditTopic)
	assert.Equal(t, 1, cfg.Auth.KeyVersion)
	assert.Equal(t, "digitalbank", cfg.Auth.Issuer)
	assert.Equal(t, 24*time.Hour, cfg.Auth.SessionTTL)
	assert.Equal(t, "DigitalBank", cfg.MFA.Issuer)
	assert.Equal(t, 5*time.Minute, cfg.MFA.ChallengeTTL)
	assert.Equal(t, 5, cfg.Lockout.MaxAttempts)
	assert.Equal(t, 15*time.Minute, cfg.Lockout.Window)
	assert.Equal(t, 15*time.Minute, cfg.Lockout.LockDuration)
	assert.True(t, cfg.RateLimit.Enabled)
	assert.Equal(t, 20, cfg.RateLimit.AuthPerMinute)
	assert.Equal(t, 300, cfg.RateLimit.ReadPerMinute)
	assert.Equal(t, 60, cfg.RateLimit.WritePerMinute)
	assert.Equal(t, 3*time.Second, cfg.UpstreamTimeout)
	assert.Empty(t, cfg.Database.URL)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("DIGITALBANK_ADDR", ":9090")
	t.Setenv("SESSION_TTL", "1h")
	t.Setenv("LOGIN_MAX_ATTEMPTS", "3")
	t.Setenv("OTEL_ENABLED", "true")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, time.Hour, cfg.Auth.SessionTTL)
	assert.Equal(t, 3, cfg.Lockout.MaxAttempts)
	assert.True(t, cfg.Tracing.Enabled)
}

func TestFromEnvReportsMalformedValues(t *testing.T) {
	t.Setenv("SESSION_TTL", "a day")
	t.Setenv("LOGIN_MAX_ATTEMPTS", "five")

	_, err := FromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SESSION_TTL")
	assert.Contains(t, err.Error(), "LOGIN_MAX_ATTEMPTS")
}

func TestValidate(t *testing.T) {
	t.Setenv("JWT_SECRET", "short")
	cfg, err := FromEnv()
	require.NoError(t, err)
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")

	t.Run("previous secret needs a newer key version", func(t *testing.T) {
		t.Setenv("JWT_SECRET", secret)
		t.Setenv("JWT_PREVIOUS_SECRET", secret+"-old")
		cfg, err := FromEnv()
		require.NoError(t, err)
		assert.ErrorContains(t, cfg.Validate(), "JWT_KEY_VERSION")
	})

	t.Run("enabled rate limits need positive budgets", func(t *testing.T) {
		t.Setenv("JWT_SECRET", secret)
		t.Setenv("RATE_LIMIT_WRITE_PER_MINUTE", "0")
		cfg, err := FromEnv()
		require.NoError(t, err)
		assert.ErrorContains(t, cfg.Validate(), "RATE_LIMIT")

		t.Setenv("RATE_LIMIT_ENABLED", "false")
		cfg, err = FromEnv()
		require.NoError(t, err)
		assert.NoError(t, cfg.Validate())
	})

	t.Run("relay needs the outbox database", func(t *testing.T) {
		t.Setenv("JWT_SECRET", secret)
		t.Setenv("KAFKA_BROKERS", "localhost:9092")
		cfg, err := FromEnv()
		require.NoError(t, err)
		assert.ErrorContains(t, cfg.Validate(), "KAFKA_BROKERS")
	})
}

func TestMissingConformance(t *testing.T) {
	t.Setenv("CUSTOMER_EMAIL", "jean.dupont@digitalbank.fr")
	t.Setenv("CUSTOMER_PASSWORD", "Secure123!")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"ANALYST_EMAIL", "ANALYST_PASSWORD", "ADMIN_EMAIL", "ADMIN_PASSWORD"}, cfg.MissingConformance())
}
