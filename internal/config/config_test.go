package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"BACKEND_URL", "SERVICE_NAME", "ENV", "HTTP_ADDR", "LOG_FILE", "DEBUG", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST"} {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8000", cfg.BackendURL)
	assert.Equal(t, "storefront", cfg.ServiceName)
	assert.Equal(t, "dev", cfg.Env)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.InDelta(t, 10, cfg.RateLimitRPS, 1e-9)
	assert.Equal(t, 20, cfg.RateLimitBurst)
	assert.Equal(t, "http://localhost:8000/api", cfg.APIBase())
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(file, []byte("BACKEND_URL=http://from-file:9000/\nENV=staging\n"), 0o600))

	t.Setenv("ENV", "prod")
	t.Setenv("BACKEND_URL", "")
	require.NoError(t, os.Unsetenv("BACKEND_URL"))
	t.Cleanup(func() { _ = os.Unsetenv("BACKEND_URL") })

	cfg, err := Load(file)
	require.NoError(t, err)
	assert.Equal(t, "prod", cfg.Env)
	assert.Equal(t, "http://from-file:9000/api", cfg.APIBase())
}

func TestValidate(t *testing.T) {
	base := Config{BackendURL: "http://b", RateLimitRPS: 1, RateLimitBurst: 1}
	assert.NoError(t, base.Validate())

	bad := base
	bad.BackendURL = "localhost:8000"
	assert.Error(t, bad.Validate())

	bad = base
	bad.RateLimitBurst = 0
	assert.Error(t, bad.Validate())
}
