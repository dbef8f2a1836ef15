package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFromFile_Defaults(t *testing.T) {
	path := writeConfig(t, "app:\n  name: gateway-test\n")

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, DefaultUpstreamBaseURL, cfg.Upstream.BaseURL)
	assert.Equal(t, 15000, cfg.Upstream.Timeout)
	assert.Equal(t, "/api", cfg.Server.PathPrefix)
	assert.Equal(t, ":3001", cfg.Server.Address)
	assert.Equal(t, int64(2<<20), cfg.Server.MaxBodyBytes)
	assert.True(t, cfg.RateLimit.Enabled)
	assert.Equal(t, 300, cfg.RateLimit.Limit)
	assert.True(t, cfg.CircuitBreaker.Enabled)
	assert.Equal(t, uint32(5), cfg.CircuitBreaker.FailureThreshold)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "gateway-test", cfg.App.Name)
}

func TestLoadFromFile_FileValues(t *testing.T) {
	path := writeConfig(t, `
server:
  address: ":9090"
  path_prefix: "proxy/"
upstream:
  base_url: "https://ops.example.test/"
  timeout: 2500
rate_limit:
  enabled: false
circuit_breaker:
  failure_threshold: 2
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Address)
	assert.Equal(t, "/proxy", cfg.Server.PathPrefix)
	assert.Equal(t, "https://ops.example.test", cfg.Upstream.BaseURL)
	assert.Equal(t, 2500*time.Millisecond, GetDuration(cfg.Upstream.Timeout))
	assert.False(t, cfg.RateLimit.Enabled)
	assert.Equal(t, uint32(2), cfg.CircuitBreaker.FailureThreshold)
}

func TestLoadFromFile_EnvOverridesBaseURL(t *testing.T) {
	t.Setenv("UPSTREAM_BASE_URL", "http://upstream.internal:8080")
	path := writeConfig(t, "upstream:\n  base_url: \"http://from-file:1\"\n")

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "http://upstream.internal:8080", cfg.Upstream.BaseURL)
}

func TestLoadFromFile_LegacyEnvName(t *testing.T) {
	t.Setenv("EXTERNAL_API_URL", "http://legacy.internal")
	path := writeConfig(t, "app:\n  name: x\n")

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "http://legacy.internal", cfg.Upstream.BaseURL)
}

func TestLoadFromFile_ExpandsPlaceholders(t *testing.T) {
	t.Setenv("OPS_HOST", "ops.example.test")
	path := writeConfig(t, "upstream:\n  base_url: \"https://${OPS_HOST}\"\n")

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "https://ops.example.test", cfg.Upstream.BaseURL)
}

func TestLoadFromFile_UnsetPlaceholderFallsBackToDefault(t *testing.T) {
	t.Setenv("UPSTREAM_BASE_URL", "")
	os.Unsetenv("UPSTREAM_BASE_URL")
	path := writeConfig(t, "upstream:\n  base_url: ${STAFFING_UNSET_HOST}\n")

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultUpstreamBaseURL, cfg.Upstream.BaseURL)
}

func TestLoadFromFile_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "non-http scheme",
			body: "upstream:\n  base_url: \"ftp://files.example.test\"\n",
			want: "must use http or https",
		},
		{
			name: "missing host",
			body: "upstream:\n  base_url: \"http://\"\n",
			want: "must include a host",
		},
		{
			name: "query on base url",
			body: "upstream:\n  base_url: \"http://ops.example.test?x=1\"\n",
			want: "must not carry a query",
		},
		{
			name: "enabled limiter without limit",
			body: "rate_limit:\n  enabled: true\n  limit: -1\n",
			want: "rate_limit.limit must be positive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromFile(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadFromFile_MissingFile(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
