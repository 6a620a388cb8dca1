package capture

import (
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"Mansoor88-6/devpulse-agent/internal/database"
	"Mansoor88-6/devpulse-agent/internal/models"
	"Mansoor88-6/devpulse-agent/internal/repository"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var t0 = time.Date(2024, 5, 1, 9, 30, 15, 0, time.UTC)

type fakeGrabber struct {
	images []image.Image
	err    error
}

func (f fakeGrabber) CaptureScreens() ([]image.Image, error) { return f.images, f.err }

func solid(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 30, B: 30, A: 255})
		}
	}
	return img
}

func newCatalog(t *testing.T) *repository.ScreenshotRepository {
	t.Helper()
	db, err := database.New(filepath.Join(t.TempDir(), "agent.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return repository.NewScreenshotRepository(db.DB)
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "monitor2_20240501_093015.jpeg", FileName(2, t0, "jpeg"))
}

func TestCapturePNGPerMonitor(t *testing.T) {
	dir := t.TempDir()
	catalog := newCatalog(t)
	c := NewCapturer(fakeGrabber{images: []image.Image{solid(8, 4), solid(4, 4)}}, catalog,
		Options{Dir: dir, Format: "png"}, zap.NewNop())

	shots, err := c.Capture(context.Background(), t0)
	require.NoError(t, err)
	require.Len(t, shots, 2)

	assert.Equal(t, filepath.Join(dir, "monitor1_20240501_093015.png"), shots[0].FilePath)
	assert.Equal(t, 2, shots[1].Monitor)
	assert.NotZero(t, shots[0].ID)

	f, err := os.Open(shots[0].FilePath)
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, 8, img.Bounds().Dx())

	listed, err := catalog.List(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, listed, 2)
}

func TestCaptureJPEG(t *testing.T) {
	dir := t.TempDir()
	c := NewCapturer(fakeGrabber{images: []image.Image{solid(16, 16)}}, nil,
		Options{Dir: dir, Format: "jpeg", Quality: 50}, zap.NewNop())

	shots, err := c.Capture(context.Background(), t0)
	require.NoError(t, err)
	require.Len(t, shots, 1)

	f, err := os.Open(shots[0].FilePath)
	require.NoError(t, err)
	defer f.Close()
	_, err = jpeg.Decode(f)
	require.NoError(t, err)
}

func TestCaptureGrabFailure(t *testing.T) {
	c := NewCapturer(fakeGrabber{err: errors.New("no display")}, nil,
		Options{Dir: t.TempDir()}, zap.NewNop())

	_, err := c.Capture(context.Background(), t0)
	assert.ErrorContains(t, err, "no display")

	c = NewCapturer(fakeGrabber{}, nil, Options{Dir: t.TempDir()}, zap.NewNop())
	_, err = c.Capture(context.Background(), t0)
	assert.Error(t, err)
}

func TestPruneRemovesFilesAndRows(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	catalog := newCatalog(t)
	c := NewCapturer(fakeGrabber{images: []image.Image{solid(2, 2)}}, catalog,
		Options{Dir: dir, Format: "png"}, zap.NewNop())

	old, err := c.Capture(ctx, t0)
	require.NoError(t, err)
	fresh, err := c.Capture(ctx, t0.Add(48*time.Hour))
	require.NoError(t, err)

	// a file removed by hand must not fail the prune
	require.NoError(t, catalog.Record(ctx, &models.Screenshot{
		FilePath: filepath.Join(dir, "gone.png"), Monitor: 9, Format: "png", CapturedAt: t0,
	}))

	removed, err := c.Prune(ctx, t0.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	assert.NoFileExists(t, old[0].FilePath)
	assert.FileExists(t, fresh[0].FilePath)
}
