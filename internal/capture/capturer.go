// Package capture writes screenshots of every display to disk and keeps a
// catalog of them.
package capture

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"time"

	"Mansoor88-6/devpulse-agent/internal/metrics"
	"Mansoor88-6/devpulse-agent/internal/models"
	"Mansoor88-6/devpulse-agent/internal/platform"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Catalog stores screenshot metadata
type Catalog interface {
	Record(ctx context.Context, shot *models.Screenshot) error
	DeleteOlderThan(ctx context.Context, cutoff time.Time) ([]models.Screenshot, error)
}

type Options struct {
	Dir     string
	Format  string // png or jpeg
	Quality int    // jpeg only
}

type Capturer struct {
	grabber platform.ScreenGrabber
	catalog Catalog
	opts    Options
	logger  *zap.Logger
}

func NewCapturer(grabber platform.ScreenGrabber, catalog Catalog, opts Options, logger *zap.Logger) *Capturer {
	if opts.Format == "" {
		opts.Format = "png"
	}
	if opts.Quality <= 0 || opts.Quality > 100 {
		opts.Quality = jpeg.DefaultQuality
	}
	return &Capturer{
		grabber: grabber,
		catalog: catalog,
		opts:    opts,
		logger:  logger,
	}
}

// Capture grabs every display and writes one file per monitor. Monitors
// are numbered from 1.
func (c *Capturer) Capture(ctx context.Context, now time.Time) ([]models.Screenshot, error) {
	images, err := c.grabber.CaptureScreens()
	if err != nil {
		metrics.IncScreenshot("error")
		return nil, errors.Wrap(err, "grab screens")
	}
	if len(images) == 0 {
		metrics.IncScreenshot("error")
		return nil, errors.New("no displays captured")
	}

	if err := os.MkdirAll(c.opts.Dir, 0o755); err != nil {
		metrics.IncScreenshot("error")
		return nil, errors.Wrap(err, "create screenshot directory")
	}

	shots := make([]models.Screenshot, 0, len(images))
	for i, img := range images {
		shot, err := c.write(ctx, i+1, img, now)
		if err != nil {
			metrics.IncScreenshot("error")
			return shots, err
		}
		metrics.IncScreenshot("ok")
		c.logger.Debug("Screenshot saved",
			zap.String("path", shot.FilePath),
			zap.Int64("size_bytes", shot.SizeBytes),
		)
		shots = append(shots, shot)
	}
	return shots, nil
}

func (c *Capturer) write(ctx context.Context, monitor int, img image.Image, now time.Time) (models.Screenshot, error) {
	data, err := c.encode(img)
	if err != nil {
		return models.Screenshot{}, errors.Wrapf(err, "encode monitor %d", monitor)
	}

	path := filepath.Join(c.opts.Dir, FileName(monitor, now, c.opts.Format))
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return models.Screenshot{}, errors.Wrapf(err, "write %s", path)
	}

	shot := models.Screenshot{
		FilePath:   path,
		Monitor:    monitor,
		Format:     c.opts.Format,
		SizeBytes:  int64(len(data)),
		CapturedAt: now,
	}
	if c.catalog != nil {
		if err := c.catalog.Record(ctx, &shot); err != nil {
			// the file is on disk even if the catalog is not
			c.logger.Warn("Failed to record screenshot", zap.String("path", path), zap.Error(err))
		}
	}
	return shot, nil
}

func (c *Capturer) encode(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	var err error
	switch c.opts.Format {
	case "jpeg":
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: c.opts.Quality})
	case "png":
		err = png.Encode(&buf, img)
	default:
		return nil, fmt.Errorf("unsupported format %q", c.opts.Format)
	}
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Prune removes screenshots captured before cutoff from the catalog and
// from disk. Missing files are not an error.
func (c *Capturer) Prune(ctx context.Context, cutoff time.Time) (int, error) {
	if c.catalog == nil {
		return 0, nil
	}
	expired, err := c.catalog.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, errors.Wrap(err, "prune catalog")
	}

	for _, shot := range expired {
		if err := os.Remove(shot.FilePath); err != nil && !os.IsNotExist(err) {
			c.logger.Warn("Failed to remove screenshot", zap.String("path", shot.FilePath), zap.Error(err))
		}
	}
	return len(expired), nil
}

// FileName returns monitor{n}_{YYYYMMDD_HHMMSS}.{ext}
func FileName(monitor int, at time.Time, format string) string {
	return fmt.Sprintf("monitor%d_%s.%s", monitor, at.Format("20060102_150405"), format)
}
