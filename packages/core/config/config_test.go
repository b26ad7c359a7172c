package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Equal(t, 25, cfg.MaxRedirects)
	assert.True(t, cfg.GetFollowRedirects())
	assert.True(t, cfg.GetValidateSSL())
	assert.Equal(t, 5, cfg.Concurrency)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.NoError(t, Validate(cfg))
}

func TestFindAndLoadConfig_NoFile(t *testing.T) {
	cfg, err := FindAndLoadConfig(t.TempDir())

	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestFindAndLoadConfig_YAML(t *testing.T) {
	dir := t.TempDir()
	content := `
timeout: 5s
followRedirects: false
maxRedirects: 3
headers:
  X-Team: platform
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "hitwire.yaml"), []byte(content), 0o644))

	cfg, err := FindAndLoadConfig(dir)

	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, cfg.Timeout)
	assert.False(t, cfg.GetFollowRedirects())
	assert.True(t, cfg.GetValidateSSL(), "unset keys keep their defaults")
	assert.Equal(t, 3, cfg.MaxRedirects)
	assert.Equal(t, "platform", cfg.Headers["X-Team"])
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestFindAndLoadConfig_JSONTakesPrecedence(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".hitwire.config.json"), []byte(`{"maxRedirects": 7, "validateSSL": false}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "hitwire.yaml"), []byte("maxRedirects: 1\n"), 0o644))

	cfg, err := FindAndLoadConfig(dir)

	require.NoError(t, err)
	assert.Equal(t, 7, cfg.MaxRedirects)
	assert.False(t, cfg.GetValidateSSL())
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		field   string
	}{
		{"negative redirects", "maxRedirects: -1\n", "MaxRedirects"},
		{"zero concurrency", "concurrency: 0\n", "Concurrency"},
		{"bad proxy", "proxy: not a url\n", "Proxy"},
		{"bad level", "log:\n  level: loud\n", "Level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "hitwire.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))

			_, err := LoadConfig(path)

			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestMerge(t *testing.T) {
	base := DefaultConfig()
	base.Headers = map[string]string{"A": "1"}

	merged := base.Merge(&Config{
		MaxRedirects:    2,
		FollowRedirects: BoolPtr(false),
		Headers:         map[string]string{"B": "2"},
	})

	assert.Equal(t, 2, merged.MaxRedirects)
	assert.False(t, merged.GetFollowRedirects())
	assert.True(t, merged.GetValidateSSL())
	assert.Equal(t, map[string]string{"A": "1", "B": "2"}, merged.Headers)
	assert.Equal(t, map[string]string{"A": "1"}, base.Headers)
	assert.Same(t, base, base.Merge(nil))
}
