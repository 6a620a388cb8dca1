package tracker

import (
	"sync"
	"time"

	"Mansoor88-6/devpulse-agent/internal/models"
	"Mansoor88-6/devpulse-agent/internal/platform"

	"go.uber.org/zap"
)

// WindowTask samples the focused window on every tick and records a window
// event for each window that kept focus for at least the dwell interval.
// Shorter focus spans are discarded.
type WindowTask struct {
	titles   platform.WindowTitleProvider
	dwell    time.Duration
	username string
	sink     EventSink
	logger   *zap.Logger

	mu       sync.RWMutex
	title    string
	since    time.Time
	tracking bool
}

func NewWindowTask(
	titles platform.WindowTitleProvider,
	dwell time.Duration,
	username string,
	sink EventSink,
	logger *zap.Logger,
) *WindowTask {
	return &WindowTask{
		titles:   titles,
		dwell:    dwell,
		username: username,
		sink:     sink,
		logger:   logger,
	}
}

func (w *WindowTask) Name() string { return "window" }

func (w *WindowTask) Tick(now time.Time) {
	title := w.titles.CurrentWindowTitle()

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.tracking && title == w.title {
		return
	}

	if w.tracking {
		w.recordLocked(now)
	}

	w.logger.Debug("Window changed", zap.String("title", title))
	w.title = title
	w.since = now
	w.tracking = true
}

// Close records the window that is still focused when tracking stops
func (w *WindowTask) Close(now time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.tracking {
		w.recordLocked(now)
		w.tracking = false
	}
}

// Current returns the focused window title and when it gained focus
func (w *WindowTask) Current() (string, time.Time, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.title, w.since, w.tracking
}

func (w *WindowTask) recordLocked(now time.Time) {
	if now.Sub(w.since) < w.dwell {
		return
	}
	w.sink.Push(models.NewWindowEvent(w.username, w.title, w.since, now))
}
