package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Setenv("BALLDONTLIE_API_KEY", "test-key")
	t.Setenv("DATABASE_PASSWORD", "secret")
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://api.balldontlie.io/v1", cfg.BallDontLieBaseURL)
	assert.Equal(t, 4, cfg.ProviderMaxAttempts)
	assert.Equal(t, "0 6 * * *", cfg.SyncCron)
	assert.Equal(t, 2, cfg.SyncDefaultLookbackDays)
	assert.Equal(t, "America/New_York", cfg.Location().String())
	assert.Nil(t, cfg.InitialSyncSeasonPtr())
	assert.Equal(t, "localhost:6379", cfg.RedisAddr())
	assert.True(t, cfg.IsDevelopment())
	assert.Equal(t, []string{"*"}, cfg.CORSAllowOrigins)
}

func TestLoad_CORSOriginList(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("CORS_ALLOW_ORIGINS", "https://a.example.com,https://b.example.com")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.CORSAllowOrigins)
}

func TestLoad_MissingAPIKey(t *testing.T) {
	t.Setenv("BALLDONTLIE_API_KEY", "")
	t.Setenv("DATABASE_PASSWORD", "secret")

	_, err := Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad cron", func(c *Config) { c.SyncCron = "every day" }},
		{"bad timezone", func(c *Config) { c.SyncTimezone = "Mars/Olympus" }},
		{"zero attempts", func(c *Config) { c.ProviderMaxAttempts = 0 }},
		{"page size", func(c *Config) { c.ProviderPageSize = 500 }},
		{"initial without date", func(c *Config) { c.InitialSyncEnabled = true }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequiredEnv(t)
			cfg, err := Load()
			require.NoError(t, err)

			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestInitialSyncSeasonPtr(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("INITIAL_SYNC_SEASON", "2024")

	cfg, err := Load()
	require.NoError(t, err)
	require.NotNil(t, cfg.InitialSyncSeasonPtr())
	assert.Equal(t, 2024, *cfg.InitialSyncSeasonPtr())
}
