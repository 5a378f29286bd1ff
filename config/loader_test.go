package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoader_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.yaml")
	content := `
querycache:
  enabled: true
  stale_time: 3m
  retry:
    max_retries: 2
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	loader, err := NewLoader(path, "")
	require.NoError(t, err)

	assert.True(t, loader.GetBool("querycache.enabled"))
	assert.Equal(t, 2, loader.GetInt("querycache.retry.max_retries"))
	assert.True(t, loader.IsSet("querycache"))
	assert.False(t, loader.IsSet("nonexistent"))
}

func TestNewLoader_FileNotFound(t *testing.T) {
	_, err := NewLoader("/nonexistent/app.yaml", "")
	assert.Error(t, err)
}

func TestLoader_Unmarshal(t *testing.T) {
	loader := NewLoaderFromMap(map[string]interface{}{
		"querycache.enabled":    true,
		"querycache.stale_time": "90s",
	})

	var cfg struct {
		Enabled   bool          `mapstructure:"enabled"`
		StaleTime time.Duration `mapstructure:"stale_time"`
	}
	require.NoError(t, loader.Unmarshal("querycache", &cfg))
	assert.True(t, cfg.Enabled)
	assert.Equal(t, 90*time.Second, cfg.StaleTime)
}

func TestLoader_UnmarshalMissingSection(t *testing.T) {
	loader := NewLoaderFromMap(map[string]interface{}{"other.key": 1})

	var cfg struct{}
	err := loader.Unmarshal("querycache", &cfg)
	assert.Error(t, err)
}
