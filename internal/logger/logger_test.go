package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nixlim/herd-top/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithoutPathIsNop(t *testing.T) {
	log, cleanup, err := New(config.LogConfig{Level: "info"})
	require.NoError(t, err)
	defer cleanup()

	log.Infow("dropped", "farm", "1")
}

func TestNewWritesJSONToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "herd-top.log")

	log, cleanup, err := New(config.LogConfig{Path: path, Level: "info", JSON: true})
	require.NoError(t, err)

	log.Infow("alerts refreshed", "farm", "7", "total", 3)
	log.Debugw("below threshold", "farm", "7")
	cleanup()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(data)
	assert.Contains(t, out, `"msg":"alerts refreshed"`)
	assert.Contains(t, out, `"farm":"7"`)
	assert.False(t, strings.Contains(out, "below threshold"), "debug entry should be filtered at info level")
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "herd-top.log")
	_, _, err := New(config.LogConfig{Path: path, Level: "chatty"})
	assert.Error(t, err)
}
