package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"Mansoor88-6/devpulse-agent/internal/database"
	"Mansoor88-6/devpulse-agent/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newRepo(t *testing.T) *ScreenshotRepository {
	t.Helper()
	db, err := database.New(filepath.Join(t.TempDir(), "agent.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewScreenshotRepository(db.DB)
}

func TestScreenshotRepositoryRecordAndList(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	base := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		shot := &models.Screenshot{
			FilePath:   filepath.Join("shots", "monitor1.png"),
			Monitor:    1,
			Format:     "png",
			SizeBytes:  int64(100 + i),
			CapturedAt: base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, repo.Record(ctx, shot))
		assert.NotZero(t, shot.ID)
	}

	shots, err := repo.List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, shots, 2)
	assert.Equal(t, base.Add(2*time.Minute), shots[0].CapturedAt)
	assert.Equal(t, int64(102), shots[0].SizeBytes)
	assert.Equal(t, base.Add(time.Minute), shots[1].CapturedAt)
}

func TestScreenshotRepositoryDeleteOlderThan(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	base := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

	for i := 0; i < 4; i++ {
		require.NoError(t, repo.Record(ctx, &models.Screenshot{
			FilePath:   "f",
			Monitor:    i,
			Format:     "jpeg",
			CapturedAt: base.Add(time.Duration(i) * time.Hour),
		}))
	}

	expired, err := repo.DeleteOlderThan(ctx, base.Add(2*time.Hour))
	require.NoError(t, err)
	require.Len(t, expired, 2)
	assert.Equal(t, 0, expired[0].Monitor)
	assert.Equal(t, 1, expired[1].Monitor)

	remaining, err := repo.List(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, remaining, 2)
}
