package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("ENROLLGW_PRIMARY__ENV", "test")
	t.Setenv("ENROLLGW_PRIMARY__PUBLIC_BASE_URL", "https://pay.example.com")
	t.Setenv("ENROLLGW_PRIMARY__CLIENT_STATUS_URL", "https://app.example.com/payment-status")
	t.Setenv("ENROLLGW_SERVER__PORT", "8080")
	t.Setenv("ENROLLGW_SERVER__READ_TIMEOUT", "10s")
	t.Setenv("ENROLLGW_SERVER__WRITE_TIMEOUT", "10s")
	t.Setenv("ENROLLGW_SERVER__IDLE_TIMEOUT", "60s")
	t.Setenv("ENROLLGW_DATABASE__HOST", "localhost")
	t.Setenv("ENROLLGW_DATABASE__PORT", "5432")
	t.Setenv("ENROLLGW_DATABASE__USER", "gateway")
	t.Setenv("ENROLLGW_DATABASE__PASSWORD", "secret")
	t.Setenv("ENROLLGW_DATABASE__NAME", "enrollments")
	t.Setenv("ENROLLGW_DATABASE__SSL_MODE", "disable")
	t.Setenv("ENROLLGW_WEBHOOK__SECRET", "whsec_test")
	t.Setenv("ENROLLGW_WORKER__INTERVAL", "1m")
	t.Setenv("ENROLLGW_WORKER__BATCH_SIZE", "50")
	t.Setenv("ENROLLGW_WORKER__MIN_AGE", "10m")
}

func TestLoadConfig(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 10*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "enrollments", cfg.Database.Name)
	assert.Equal(t, time.Minute, cfg.Worker.Interval)

	// Defaults kick in for everything not set.
	assert.Equal(t, int32(10), cfg.Database.MaxConns)
	assert.Equal(t, int32(2), cfg.Database.MinConns)
	assert.Equal(t, "strict", cfg.Reconciler.ValidationPolicy)
	assert.Equal(t, int64(1), cfg.Reconciler.ToleranceCents)
	assert.Equal(t, 10*time.Second, cfg.IntentGateway.ConnTimeout)
}

func TestLoadConfigOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("ENROLLGW_RECONCILER__VALIDATION_POLICY", "lenient")
	t.Setenv("ENROLLGW_RECONCILER__TOLERANCE_CENTS", "5")
	t.Setenv("ENROLLGW_DATABASE__MAX_CONNS", "25")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "lenient", cfg.Reconciler.ValidationPolicy)
	assert.Equal(t, int64(5), cfg.Reconciler.ToleranceCents)
	assert.Equal(t, int32(25), cfg.Database.MaxConns)
}

func TestLoadConfigRejectsUnknownPolicy(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("ENROLLGW_RECONCILER__VALIDATION_POLICY", "trusting")

	_, err := LoadConfig()
	require.Error(t, err)
}

func TestLoadConfigMissingWebhookSecret(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("ENROLLGW_WEBHOOK__SECRET", "")

	_, err := LoadConfig()
	require.Error(t, err)
}

func TestPgxConfig(t *testing.T) {
	cfg := DatabaseConfig{
		Host:     "db.internal",
		Port:     5432,
		User:     "gateway",
		Password: "secret",
		Name:     "enrollments",
		SSLMode:  "require",
		MaxConns: 20,
		MinConns: 5,
	}

	poolCfg, err := cfg.PgxConfig()
	require.NoError(t, err)
	assert.Equal(t, "db.internal", poolCfg.ConnConfig.Host)
	assert.Equal(t, "enrollments", poolCfg.ConnConfig.Database)
	assert.Equal(t, int32(20), poolCfg.MaxConns)
	assert.Equal(t, int32(5), poolCfg.MinConns)
}
