package config

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setEnvs(t *testing.T, envs map[string]string) {
	t.Helper()
	for k, v := range envs {
		t.Setenv(k, v)
	}
}

var (
	strongAccess  = strings.Repeat("a", 32)
	strongRefresh = strings.Repeat("r", 40)
)

func TestLoad_Defaults(t *testing.T) {
	setEnvs(t, map[string]string{"ENVIRONMENT": "development"})

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, 8000, cfg.HTTPPort)
	assert.Equal(t, 15*time.Minute, cfg.AccessTokenExpiry)
	assert.Equal(t, 240*time.Hour, cfg.RefreshTokenExpiry)
	assert.Equal(t, 20*time.Minute, cfg.EphemeralSecretTTL)
	assert.Equal(t, 10, cfg.PasswordHashCost)
	assert.Equal(t, StorePostgres, cfg.StoreDriver)
	assert.Equal(t, NotifyLog, cfg.NotifyTransport)
	assert.True(t, cfg.IsDevelopment())
}

func TestLoad_Development_AcceptsDefaultSecrets(t *testing.T) {
	setEnvs(t, map[string]string{
		"ENVIRONMENT":          "development",
		"ACCESS_TOKEN_SECRET":  defaultAccessSecret,
		"REFRESH_TOKEN_SECRET": defaultRefreshSecret,
	})

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, defaultAccessSecret, cfg.AccessTokenSecret)
}

func TestLoad_Production_RejectsDefaultSecret(t *testing.T) {
	setEnvs(t, map[string]string{
		"ENVIRONMENT":          "production",
		"REFRESH_TOKEN_SECRET": strongRefresh,
	})

	cfg, err := Load()

	assert.Nil(t, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ACCESS_TOKEN_SECRET must be explicitly set")
}

func TestLoad_Production_RejectsShortSecret(t *testing.T) {
	setEnvs(t, map[string]string{
		"ENVIRONMENT":          "production",
		"ACCESS_TOKEN_SECRET":  strongAccess,
		"REFRESH_TOKEN_SECRET": "too-short",
	})

	cfg, err := Load()

	assert.Nil(t, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "REFRESH_TOKEN_SECRET must be at least 32 characters")
}

func TestLoad_Production_RejectsIdenticalSecrets(t *testing.T) {
	setEnvs(t, map[string]string{
		"ENVIRONMENT":          "production",
		"ACCESS_TOKEN_SECRET":  strongAccess,
		"REFRESH_TOKEN_SECRET": strongAccess,
	})

	cfg, err := Load()

	assert.Nil(t, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must differ")
}

func TestLoad_Production_AcceptsStrongSecrets(t *testing.T) {
	setEnvs(t, map[string]string{
		"ENVIRONMENT":          "production",
		"ACCESS_TOKEN_SECRET":  strongAccess,
		"REFRESH_TOKEN_SECRET": strongRefresh,
		"NOTIFY_TRANSPORT":     NotifySMTP,
	})

	cfg, err := Load()

	require.NoError(t, err)
	assert.False(t, cfg.IsDevelopment())
	assert.Equal(t, NotifySMTP, cfg.NotifyTransport)
}

func TestLoad_Production_RejectsLogTransport(t *testing.T) {
	tests := []struct {
		name string
		envs map[string]string
	}{
		{"unset", map[string]string{}},
		{"explicit", map[string]string{"NOTIFY_TRANSPORT": NotifyLog}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setEnvs(t, map[string]string{
				"ENVIRONMENT":          "production",
				"ACCESS_TOKEN_SECRET":  strongAccess,
				"REFRESH_TOKEN_SECRET": strongRefresh,
			})
			setEnvs(t, tt.envs)

			cfg, err := Load()

			assert.Nil(t, cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "NOTIFY_TRANSPORT")
			assert.Contains(t, err.Error(), "only allowed in development")
		})
	}
}

func TestLoad_Production_AcceptsKafkaTransport(t *testing.T) {
	setEnvs(t, map[string]string{
		"ENVIRONMENT":          "production",
		"ACCESS_TOKEN_SECRET":  strongAccess,
		"REFRESH_TOKEN_SECRET": strongRefresh,
		"NOTIFY_TRANSPORT":     NotifyKafka,
	})

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, NotifyKafka, cfg.NotifyTransport)
}

func TestLoad_RejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		envs map[string]string
		want string
	}{
		{"port", map[string]string{"AUTH_HTTP_PORT": "70000"}, "invalid HTTP port"},
		{"store driver", map[string]string{"STORE_DRIVER": "sqlite"}, "STORE_DRIVER"},
		{"transport", map[string]string{"NOTIFY_TRANSPORT": "carrier-pigeon"}, "NOTIFY_TRANSPORT"},
		{"access longer than refresh", map[string]string{"ACCESS_TOKEN_EXPIRY": "300h"}, "must be shorter"},
		{"hash cost", map[string]string{"PASSWORD_HASH_COST": "3"}, "PASSWORD_HASH_COST"},
		{"ephemeral ttl", map[string]string{"EPHEMERAL_SECRET_TTL": "0s"}, "EPHEMERAL_SECRET_TTL"},
		{"unparsable duration", map[string]string{"ACCESS_TOKEN_EXPIRY": "soon"}, "load auth config"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setEnvs(t, tt.envs)

			cfg, err := Load()

			assert.Nil(t, cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestConfig_Links(t *testing.T) {
	cfg := &Config{
		PublicBaseURL:             "https://api.example.com/",
		ForgotPasswordRedirectURL: "https://app.example.com/reset",
	}

	assert.Equal(t, "https://api.example.com/api/v1/auth/verify-email/abc", cfg.VerificationURL("abc"))
	assert.Equal(t, "https://app.example.com/reset/abc", cfg.PasswordResetURL("abc"))
}
