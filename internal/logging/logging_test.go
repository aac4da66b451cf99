package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithDefaults(t *testing.T) {
	logger, err := New(DefaultConfig())
	require.NoError(t, err)
	assert.NotNil(t, logger)
}

func TestNewWithFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "matscan.log")

	logger, err := New(Config{Level: LevelInfo, Format: FormatJSON, Output: path})
	require.NoError(t, err)

	logger.Info("hello", "key", "value")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"hello"`)
	assert.Contains(t, string(data), `"key":"value"`)
}

func TestNewUnknownLevelDefaultsToInfo(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.log")
	logger, err := New(Config{Level: LogLevel("verbose"), Format: FormatJSON, Output: path})
	require.NoError(t, err)

	logger.Debug("hidden")
	logger.Info("shown")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "hidden")
	assert.Contains(t, string(data), "shown")
}

func TestComponentAndTargetScoping(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.log")
	logger, err := New(Config{Level: LevelDebug, Format: FormatJSON, Output: path})
	require.NoError(t, err)

	logger.WithComponent("rescan").WithTarget("1.2.3.4:25565").Info("selected")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"component":"rescan"`)
	assert.Contains(t, string(data), `"target":"1.2.3.4:25565"`)
}

func TestSetDefault(t *testing.T) {
	original := Default()
	defer SetDefault(original)

	replacement := NewDefault()
	SetDefault(replacement)
	assert.Same(t, replacement, Default())
}
