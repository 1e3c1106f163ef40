package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wizzzard/config"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)
	t.Setenv("DATABASE_URL", "")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "3000", cfg.Port)
	assert.Equal(t, "postgres", cfg.StoreBackend)
	assert.Equal(t, 168*time.Hour, cfg.JWTTTL)
	assert.Equal(t, 5, cfg.RateLimit.AuthRequests)
	assert.Contains(t, cfg.Database.DSN(), "dbname=wizzzard")
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)
	t.Setenv("PORT", "8080")
	t.Setenv("STORE_BACKEND", "Memory")
	t.Setenv("DATABASE_URL", "postgres://quiz@db/quiz")
	t.Setenv("RATE_LIMIT_WINDOW", "30s")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "memory", cfg.StoreBackend)
	assert.Equal(t, "postgres://quiz@db/quiz", cfg.Database.DSN())
	assert.Equal(t, 30*time.Second, cfg.RateLimit.Window)
}

func TestLoadRejectsWeakSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "short")

	_, err := config.Load()
	assert.ErrorContains(t, err, "at least 32 characters")
}

func TestLoadRejectsUnknownBackend(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)
	t.Setenv("STORE_BACKEND", "firestore")

	_, err := config.Load()
	assert.ErrorContains(t, err, "STORE_BACKEND")
}

func TestLoadOAuthClients(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)
	t.Setenv("OAUTH_REDIRECT_BASE", "https://quiz.example.com/")
	t.Setenv("GITHUB_CLIENT_ID", "gh-id")
	t.Setenv("GITHUB_CLIENT_SECRET", "gh-secret")
	t.Setenv("GOOGLE_CLIENT_ID", "")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "https://quiz.example.com", cfg.OAuth.RedirectBase)
	assert.True(t, cfg.OAuth.GitHub.Enabled())
	assert.False(t, cfg.OAuth.Google.Enabled())
}
