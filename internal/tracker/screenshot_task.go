package tracker

import (
	"context"
	"time"

	"Mansoor88-6/devpulse-agent/internal/models"

	"go.uber.org/zap"
)

// ScreenCapturer writes screenshots to disk and prunes old ones
type ScreenCapturer interface {
	Capture(ctx context.Context, now time.Time) ([]models.Screenshot, error)
	Prune(ctx context.Context, cutoff time.Time) (int, error)
}

// ScreenshotTask captures every display once per interval. Captures are a
// file-system side effect only; no event is queued.
type ScreenshotTask struct {
	gate      IntervalGate
	capturer  ScreenCapturer
	retention time.Duration // 0 keeps everything
	timeout   time.Duration
	logger    *zap.Logger
}

func NewScreenshotTask(interval, retention time.Duration, capturer ScreenCapturer, logger *zap.Logger) *ScreenshotTask {
	return &ScreenshotTask{
		gate:      NewIntervalGate(interval),
		capturer:  capturer,
		retention: retention,
		timeout:   30 * time.Second,
		logger:    logger,
	}
}

func (s *ScreenshotTask) Name() string { return "screenshot" }

func (s *ScreenshotTask) Tick(now time.Time) {
	if !s.gate.Due(now) {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	shots, err := s.capturer.Capture(ctx, now)
	if err != nil {
		s.logger.Error("Screenshot capture failed", zap.Error(err))
	} else {
		s.logger.Info("Screenshots captured", zap.Int("count", len(shots)))
	}

	if s.retention > 0 {
		removed, err := s.capturer.Prune(ctx, now.Add(-s.retention))
		if err != nil {
			s.logger.Warn("Failed to prune screenshots", zap.Error(err))
		} else if removed > 0 {
			s.logger.Info("Pruned old screenshots", zap.Int("count", removed))
		}
	}
}
