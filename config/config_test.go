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
	assert.Equal(t, "http://localhost:8080", cfg.Server.BaseURL)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "sqlite:///./pricesync.db", cfg.Server.DatabaseURL)
	assert.Equal(t, 0.85, cfg.Sync.FuzzyThreshold)
	assert.Equal(t, 500*time.Millisecond, cfg.Sync.CallInterval)
	assert.Equal(t, int64(5<<20), cfg.Sync.MaxUploadBytes)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("PRICESYNC_SERVER_BASE_URL", "https://sync.example.com/")
	t.Setenv("PRICESYNC_JOBBER_CLIENT_ID", "app-123")
	t.Setenv("PRICESYNC_SYNC_FUZZY_THRESHOLD", "0.9")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, "https://sync.example.com", cfg.Server.BaseURL, "trailing slash is stripped")
	assert.Equal(t, "app-123", cfg.Jobber.ClientID)
	assert.Equal(t, 0.9, cfg.Sync.FuzzyThreshold)
}

func TestSecureCookies(t *testing.T) {
	https := Config{}
	https.Server.BaseURL = "https://sync.example.com"
	assert.True(t, https.SecureCookies())

	http := Config{}
	http.Server.BaseURL = "http://localhost:8080"
	assert.False(t, http.SecureCookies())
}
