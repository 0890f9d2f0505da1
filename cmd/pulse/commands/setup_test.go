package commands

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigVerboseForcesDebug(t *testing.T) {
	verbose = true
	t.Cleanup(func() { verbose = false })

	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadConfigReadsConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pulse.env")
	require.NoError(t, os.WriteFile(path, []byte("LOG_LEVEL=warn\n"), 0o644))

	configFile = path
	t.Cleanup(func() {
		configFile = ""
		os.Unsetenv("LOG_LEVEL")
	})

	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.LogLevel)
}
