package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestLoadDefaultsAndEnv(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)
	t.Setenv("PORT", "8081")
	t.Setenv("ENABLE_WORKERS", "false")
	t.Setenv(EnvConfigPath, "")

	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "8081", c.Port)
	assert.False(t, c.EnableWorkers)
	assert.Equal(t, 15, c.AccessTokenMinutes)
	assert.Equal(t, time.Hour, c.WorkerInterval)
	assert.Equal(t, testSecret+"-refresh", c.JWTRefreshSecret)
	assert.False(t, c.SMTPConfigured())
}

func TestLoadRejectsShortSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "short")
	t.Setenv(EnvConfigPath, "")
	_, err := Load("")
	assert.ErrorContains(t, err, "at least 32")
}

func TestLoadFileThenEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "evently.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"jwt_secret: "+testSecret+"\nport: \"4000\"\nsmtp_host: mail.local\nlog_level: debug\n"), 0o600))
	t.Setenv("PORT", "5000")
	t.Setenv("JWT_SECRET", "")

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "5000", c.Port)
	assert.Equal(t, "debug", c.LogLevel)
	assert.True(t, c.SMTPConfigured())
}

func TestOrigins(t *testing.T) {
	c := &Config{AllowedOrigins: " https://a.example/ ,https://b.example,, "}
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, c.Origins())
}
