package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_InvalidLevel(t *testing.T) {
	_, err := New(Config{Level: "loud"})
	assert.Error(t, err)
}

func TestNew_WritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "busmon.log")

	log, err := New(Config{Level: "info", Format: "json", File: path})
	require.NoError(t, err)

	log.Info("frame rejected")
	log.Debug("not written")
	_ = log.Sync()

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"message":"frame rejected"`)
	assert.NotContains(t, string(b), "not written")
}
