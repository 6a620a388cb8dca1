package service

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"Mansoor88-6/devpulse-agent/internal/models"
	"Mansoor88-6/devpulse-agent/internal/platform"
	"Mansoor88-6/devpulse-agent/internal/queue"
	"Mansoor88-6/devpulse-agent/internal/sender"
	"Mansoor88-6/devpulse-agent/internal/tracker"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Sender ships queued events in the background
type Sender interface {
	Start(ctx context.Context, interval time.Duration)
	Stop()
	Flush(ctx context.Context) error
	LastResult() (sender.Result, time.Time, bool)
}

type Options struct {
	Username     string
	PollInterval time.Duration
	SendInterval time.Duration
	FlushTimeout time.Duration // bound on the final send at shutdown
	GOOS         string        // defaults to runtime.GOOS
}

// TrackingService is the main loop. It ticks every registered task in
// order on one goroutine while the sender drains the store on another.
type TrackingService struct {
	opts   Options
	store  *queue.EventStore
	sender Sender
	tasks  []tracker.Task
	logger *zap.Logger
	clock  func() time.Time

	mu        sync.RWMutex
	running   bool
	startedAt time.Time
	stoppedAt time.Time
}

// NewTrackingService creates a new tracking service
func NewTrackingService(
	opts Options,
	store *queue.EventStore,
	sender Sender,
	logger *zap.Logger,
	tasks ...tracker.Task,
) *TrackingService {
	if opts.GOOS == "" {
		opts.GOOS = runtime.GOOS
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 100 * time.Millisecond
	}
	if opts.SendInterval <= 0 {
		opts.SendInterval = 5 * time.Second
	}
	if opts.FlushTimeout <= 0 {
		opts.FlushTimeout = 5 * time.Second
	}
	return &TrackingService{
		opts:   opts,
		store:  store,
		sender: sender,
		tasks:  tasks,
		logger: logger,
		clock:  time.Now,
	}
}

// Run blocks until ctx is cancelled. System Started is queued before the
// first tick and System Stopped on every exit, including a panic in a task.
func (ts *TrackingService) Run(ctx context.Context) (err error) {
	if !platform.IsSupported(ts.opts.GOOS) {
		ts.logger.Error("Unsupported system", zap.String("os", ts.opts.GOOS))
		return &platform.UnsupportedPlatformError{OS: ts.opts.GOOS}
	}

	taskNames := make([]string, 0, len(ts.tasks))
	for _, task := range ts.tasks {
		taskNames = append(taskNames, task.Name())
	}
	ts.logger.Info("Starting tracking service",
		zap.String("username", ts.opts.Username),
		zap.Strings("tasks", taskNames),
		zap.Duration("poll_interval", ts.opts.PollInterval),
	)

	start := ts.clock()
	ts.store.Push(models.NewActivityEvent(ts.opts.Username, models.LabelStarted, start))
	ts.setRunning(true, start)

	if ts.sender != nil {
		ts.sender.Start(ctx, ts.opts.SendInterval)
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tracking loop panicked: %v", r)
			ts.logger.Error("Tracking loop panicked", zap.Any("panic", r), zap.Stack("stack"))
		}
		ts.shutdown()
	}()

	ticker := time.NewTicker(ts.opts.PollInterval)
	defer ticker.Stop()

	ts.tick(start)
	for {
		select {
		case <-ctx.Done():
			ts.logger.Info("Tracking loop interrupted")
			return nil
		case <-ticker.C:
			ts.tick(ts.clock())
		}
	}
}

func (ts *TrackingService) tick(now time.Time) {
	for _, task := range ts.tasks {
		task.Tick(now)
	}
}

func (ts *TrackingService) shutdown() {
	now := ts.clock()
	for _, task := range ts.tasks {
		if closer, ok := task.(tracker.Closer); ok {
			closer.Close(now)
		}
	}

	// Stopped is the last event of a run
	ts.store.Push(models.NewActivityEvent(ts.opts.Username, models.LabelStopped, now))
	ts.setRunning(false, now)
	ts.logger.Info("System stopped")

	if ts.sender == nil {
		return
	}
	ts.sender.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), ts.opts.FlushTimeout)
	defer cancel()
	if err := ts.sender.Flush(ctx); err != nil {
		ts.logger.Warn("Final flush failed",
			zap.Int("pending_events", ts.store.Len()),
			zap.Error(errors.WithStack(err)),
		)
	}
}

func (ts *TrackingService) setRunning(running bool, at time.Time) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.running = running
	if running {
		ts.startedAt = at
	} else {
		ts.stoppedAt = at
	}
}
