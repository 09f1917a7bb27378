package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{EnvEndpoint, EnvOutput, EnvTimeout} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, DefaultEndpoint, cfg.Endpoint)
	assert.Empty(t, cfg.OutputFolder)
	assert.Equal(t, DefaultTimeout, cfg.Timeout)
}

func TestLoadFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvEndpoint, "https://studio.example.com")
	t.Setenv(EnvTimeout, "30")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, "https://studio.example.com", cfg.Endpoint)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
}

func TestLoadDotEnv(t *testing.T) {
	clearEnv(t)
	// variables already set win over the file
	t.Setenv(EnvTimeout, "10")

	f := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(f, []byte(
		EnvEndpoint+"=http://127.0.0.1:5001\n"+
			EnvOutput+"=/tmp/images\n"+
			EnvTimeout+"=99\n"), 0o644))
	t.Cleanup(func() {
		os.Unsetenv(EnvEndpoint)
		os.Unsetenv(EnvOutput)
	})

	cfg, err := Load(f)
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:5001", cfg.Endpoint)
	assert.Equal(t, "/tmp/images", cfg.OutputFolder)
	assert.Equal(t, 10*time.Second, cfg.Timeout)
}

func TestLoadBadTimeout(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvTimeout, "soon")

	_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	assert.ErrorContains(t, err, EnvTimeout)
}
