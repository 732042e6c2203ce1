package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envKeys = []string{
	"CBT_HOST", "API_TOKEN", "OUTPUT_DIR", "ROOT_TITLE", "REQUEST_TIMEOUT", "REQUEST_DELAY",
	"DOWNLOAD_CONCURRENCY", "USER_AGENT", "MAX_BODY_SIZE", "VERBOSE",
	"LOG_FORMAT", "MANIFEST_DIR",
}

// clearEnvVars unsets every variable read by LoadFromEnv for the test's duration.
func clearEnvVars(t *testing.T) {
	t.Helper()
	for _, key := range envKeys {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
}

func TestLoadFromEnv_Unset(t *testing.T) {
	clearEnvVars(t)

	env, err := LoadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, EnvConfig{}, env)

	cfg := NewConfig()
	env.ApplyTo(cfg)
	assert.Equal(t, NewConfig(), cfg)
}

func TestLoadFromEnv_Values(t *testing.T) {
	clearEnvVars(t)
	t.Setenv("CBT_HOST", "https://wiki.example.com")
	t.Setenv("API_TOKEN", "tok")
	t.Setenv("OUTPUT_DIR", "/srv/export")
	t.Setenv("ROOT_TITLE", "Start")
	t.Setenv("REQUEST_TIMEOUT", "45s")
	t.Setenv("REQUEST_DELAY", "100ms")
	t.Setenv("DOWNLOAD_CONCURRENCY", "3")
	t.Setenv("MAX_BODY_SIZE", "1048576")
	t.Setenv("VERBOSE", "true")
	t.Setenv("LOG_FORMAT", "json")

	env, err := LoadFromEnv()
	require.NoError(t, err)

	cfg := NewConfig()
	env.ApplyTo(cfg)

	assert.Equal(t, "https://wiki.example.com", cfg.Host)
	assert.Equal(t, "tok", cfg.Token)
	assert.Equal(t, "/srv/export", cfg.OutputDir)
	assert.Equal(t, "Start", cfg.RootTitle)
	assert.Equal(t, 45*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 100*time.Millisecond, cfg.RequestDelay)
	assert.Equal(t, 3, cfg.DownloadConcurrency)
	assert.Equal(t, int64(1048576), cfg.MaxBodySize)
	assert.True(t, cfg.Verbose)
	assert.Equal(t, "json", cfg.LogFormat)
}

func TestLoadFromEnv_InvalidDuration(t *testing.T) {
	clearEnvVars(t)
	t.Setenv("REQUEST_TIMEOUT", "soon")

	_, err := LoadFromEnv()
	assert.Error(t, err)
}

func TestLoad_Precedence(t *testing.T) {
	clearEnvVars(t)
	dir := t.TempDir()

	settings := filepath.Join(dir, "settings.yaml")
	require.NoError(t, os.WriteFile(settings, []byte("host: https://from-file.example.com/\nroot: FileRoot\noutput: /from/file\n"), 0600))

	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("API_TOKEN=from-dotenv\nROOT_TITLE=DotEnvRoot\n"), 0600))

	t.Setenv("ROOT_TITLE", "EnvRoot")
	t.Cleanup(func() {
		_ = os.Unsetenv("API_TOKEN")
	})

	cfg, err := Load(LoadOptions{ConfigFilePath: settings, EnvFile: envFile})
	require.NoError(t, err)

	assert.Equal(t, "https://from-file.example.com", cfg.Host, "file value with trailing slash trimmed")
	assert.Equal(t, "from-dotenv", cfg.Token, ".env fills unset variables")
	assert.Equal(t, "EnvRoot", cfg.RootTitle, "process environment wins over .env and file")
	assert.Equal(t, "/from/file", cfg.OutputDir)
	require.NoError(t, cfg.Validate())
}

func TestLoad_ExplicitMissingFile(t *testing.T) {
	clearEnvVars(t)

	_, err := Load(LoadOptions{
		ConfigFilePath: filepath.Join(t.TempDir(), "missing.yaml"),
		EnvFile:        filepath.Join(t.TempDir(), "missing.env"),
	})
	assert.ErrorIs(t, err, ErrConfigNotFound)
}

func TestLoadDotEnv_MissingFileIsNotAnError(t *testing.T) {
	assert.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), "absent.env")))
}
