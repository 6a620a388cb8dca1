package database

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewRunsMigrations(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "agent.db")

	db, err := New(path, zap.NewNop())
	require.NoError(t, err)
	defer db.Close()

	var count int
	err = db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'screenshots'`).Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.FileExists(t, path)
}

func TestNewIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agent.db")

	db, err := New(path, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = New(path, zap.NewNop())
	require.NoError(t, err)
	defer db.Close()

	var version int
	require.NoError(t, db.QueryRow(`SELECT MAX(version) FROM schema_migrations`).Scan(&version))
	assert.Equal(t, 1, version)
}
