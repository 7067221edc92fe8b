package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"SERVER_PORT", "DATA_DIR", "LOGIN_MAX_ATTEMPTS", "STORE_RETRY_DELAY_MS", "ENVIRONMENT", "CORS_ALLOWED_ORIGINS", "REDIS_URL"} {
		t.Setenv(k, "")
	}

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.ServerPort)
	assert.Equal(t, "./data", cfg.DataDir)
	assert.Equal(t, 5, cfg.LoginMaxAttempts)
	assert.Equal(t, 15*time.Minute, cfg.LoginLockout)
	assert.Equal(t, 100*time.Millisecond, cfg.Store.RetryDelay)
	assert.Equal(t, 3, cfg.Store.ReadAttempts)
	assert.Equal(t, 5, cfg.Store.WriteAttempts)
	assert.Equal(t, "sv", cfg.DefaultLocale)
	assert.Empty(t, cfg.RedisURL)
	assert.Equal(t, filepath.Join("data", "pairs.json"), filepath.Clean(cfg.DrawsPath()))
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("DATA_DIR", "/srv/santa")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example,")
	t.Setenv("DEFAULT_LOCALE", "EN")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.ServerPort)
	assert.Equal(t, "/srv/santa/users.json", cfg.UsersPath())
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowedOrigins)
	assert.Equal(t, "en", cfg.DefaultLocale)
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("SERVER_PORT", "eighty")
	_, err := Load()
	assert.ErrorContains(t, err, "SERVER_PORT")

	t.Setenv("SERVER_PORT", "8080")
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("JWT_SECRET", "")
	_, err = Load()
	assert.ErrorContains(t, err, "JWT_SECRET")
}
