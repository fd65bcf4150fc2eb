package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFileConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "machfeed.yml")
	data := `
connection: "localhost:4444"
block_buffer_count: 8
settle_ms: 500
failure_keywords: ["error", "alarm", "fatal"]
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := loadFileConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "localhost:4444", cfg.Connection)
	assert.Equal(t, 8, cfg.BlockBufferCount)
	assert.Equal(t, 500, cfg.SettleMs)
	assert.Equal(t, []string{"error", "alarm", "fatal"}, cfg.FailureKeywords)
}

func TestLoadFileConfig_Missing(t *testing.T) {
	_, err := loadFileConfig(filepath.Join(t.TempDir(), "nope.yml"))
	assert.Error(t, err)
}

func TestLoadFileConfig_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yml")
	require.NoError(t, os.WriteFile(path, []byte("{not yaml"), 0o644))

	_, err := loadFileConfig(path)
	assert.Error(t, err)
}
