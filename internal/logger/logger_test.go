package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewWritesRotatingFile(t *testing.T) {
	dir := t.TempDir()
	log, err := New(Options{Level: "debug", ToFile: true, Dir: dir})
	require.NoError(t, err)

	log.Debug("hello", zap.String("k", "v"))
	require.NoError(t, log.Close())

	data, err := os.ReadFile(filepath.Join(dir, "agent.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"hello"`)
	assert.Contains(t, string(data), `"k":"v"`)
}

func TestNewRespectsLevel(t *testing.T) {
	dir := t.TempDir()
	log, err := New(Options{Level: "WARN", ToFile: true, Dir: dir})
	require.NoError(t, err)

	log.Info("dropped")
	log.Warn("kept")
	require.NoError(t, log.Close())

	data, err := os.ReadFile(filepath.Join(dir, "agent.log"))
	require.NoError(t, err)
	assert.NotContains(t, string(data), "dropped")
	assert.Contains(t, string(data), "kept")
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New(Options{Level: "loud"})
	assert.Error(t, err)
}

func TestNewWithoutDestinationsIsNop(t *testing.T) {
	log, err := New(Options{})
	require.NoError(t, err)
	log.Info("nothing")
	assert.NoError(t, log.Close())
}

func TestNewFileRequiresDir(t *testing.T) {
	_, err := New(Options{ToFile: true})
	assert.Error(t, err)
}
