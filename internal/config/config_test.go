package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 5*time.Second, cfg.PollInterval)
	assert.Equal(t, 20*time.Second, cfg.VoteCooldown)
	assert.Equal(t, 15*time.Minute, cfg.InactivityTimeout)
	assert.NotEmpty(t, cfg.AllowedOrigins)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("BACKEND_BASE_URL", "https://debates.example.com")
	t.Setenv("VOTE_COOLDOWN", "5s")
	t.Setenv("POLL_INTERVAL", "2s")
	t.Setenv("ALLOWED_ORIGINS", "https://app.example.com, https://staging.example.com")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "https://debates.example.com", cfg.BackendBaseURL)
	assert.Equal(t, 5*time.Second, cfg.VoteCooldown)
	assert.Equal(t, 2*time.Second, cfg.PollInterval)
	assert.Equal(t, []string{"https://app.example.com", "https://staging.example.com"}, cfg.AllowedOrigins)
}

func TestLoad_InvalidDurationFallsBack(t *testing.T) {
	t.Setenv("VOTE_COOLDOWN", "not-a-duration")
	t.Setenv("POLL_INTERVAL", "-3s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 20*time.Second, cfg.VoteCooldown)
	assert.Equal(t, 5*time.Second, cfg.PollInterval)
}
