package sender

import (
	"context"
	"errors"
	"sync"
	"time"

	"Mansoor88-6/devpulse-agent/internal/metrics"
	"Mansoor88-6/devpulse-agent/internal/models"
	"Mansoor88-6/devpulse-agent/internal/queue"

	"go.uber.org/zap"
)

// Transport delivers a batch to the backend
type Transport interface {
	SendBatch(ctx context.Context, events []models.TrackingEvent) error
}

// Result describes the most recent send attempt
type Result struct {
	At    time.Time `json:"at"`
	Count int       `json:"count"`
	Error string    `json:"error,omitempty"`
}

// BatchSender drains the event store and ships its content in one request.
// Failed batches are put back at the head of the store.
type BatchSender struct {
	store     *queue.EventStore
	transport Transport
	logger    *zap.Logger

	// serialises drains so two sends never interleave their requeues
	sendMu sync.Mutex

	mu       sync.RWMutex
	last     Result
	lastOK   time.Time
	attempts int

	cancel context.CancelFunc
	wg     sync.WaitGroup
	clock  func() time.Time
}

func NewBatchSender(store *queue.EventStore, transport Transport, logger *zap.Logger) *BatchSender {
	return &BatchSender{
		store:     store,
		transport: transport,
		logger:    logger,
		clock:     time.Now,
	}
}

// SendBatch drains the store and posts everything drained. An empty store
// makes no request. On failure the events are requeued and the error is
// returned.
func (s *BatchSender) SendBatch(ctx context.Context) error {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	events := s.store.DrainAll()
	if len(events) == 0 {
		return nil
	}

	start := s.clock()
	err := s.transport.SendBatch(ctx, events)
	elapsed := s.clock().Sub(start).Seconds()

	result := Result{At: start, Count: len(events)}
	if err != nil {
		s.store.Requeue(events)
		metrics.ObserveBatch("error", elapsed)
		result.Error = err.Error()
		s.logger.Warn("Batch send failed, events requeued",
			zap.Int("event_count", len(events)),
			zap.Error(err),
		)
	} else {
		metrics.ObserveBatch("ok", elapsed)
	}

	s.mu.Lock()
	s.last = result
	s.attempts++
	if err == nil {
		s.lastOK = start
	}
	s.mu.Unlock()

	return err
}

// Flush is SendBatch for callers outside the cadence loop
func (s *BatchSender) Flush(ctx context.Context) error {
	return s.SendBatch(ctx)
}

// Start runs SendBatch every interval on its own goroutine until Stop is
// called or ctx is done.
func (s *BatchSender) Start(ctx context.Context, interval time.Duration) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.Run(ctx, interval)
	}()

	s.logger.Info("Batch sender started", zap.Duration("interval", interval))
}

// Stop ends the loop started by Start and waits for it. A send in flight
// is cancelled and its events requeued.
func (s *BatchSender) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	s.wg.Wait()
	s.logger.Info("Batch sender stopped")
}

// Run blocks, sending once per interval, until ctx is done
func (s *BatchSender) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			err := s.SendBatch(ctx)
			if err != nil && !errors.Is(err, context.Canceled) {
				s.logger.Debug("Send cycle failed", zap.Error(err))
			}
		case <-ctx.Done():
			return
		}
	}
}

// LastResult returns the last attempt, the time of the last success and
// whether any attempt was made.
func (s *BatchSender) LastResult() (Result, time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last, s.lastOK, s.attempts > 0
}
