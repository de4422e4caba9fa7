package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	config, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "localhost", config.Server.Host)
	assert.Equal(t, 8080, config.Server.Port)
	assert.Equal(t, "yt-dlp", config.Downloads.YTDLPBinary)
	assert.Equal(t, 3, config.Downloads.ConcurrentLimit)
	assert.Equal(t, 5*time.Minute, config.Downloads.StallTimeout)
	assert.NotContains(t, config.Library.BaseDir, "$HOME")
}

func TestLoadConfig_FromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte(`
server:
  port: 9090
downloads:
  concurrent_limit: 5
  stall_timeout: 90s
`)
	require.NoError(t, os.WriteFile(path, content, 0644))

	config, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, config.Server.Port)
	assert.Equal(t, 5, config.Downloads.ConcurrentLimit)
	assert.Equal(t, 90*time.Second, config.Downloads.StallTimeout)
	// untouched values keep their defaults
	assert.Equal(t, "localhost", config.Server.Host)
}

func TestLoadConfig_RejectsInvalidValues(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("downloads:\n  concurrent_limit: 0\n"), 0644))

	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "concurrent limit")
}
