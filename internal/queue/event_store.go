package queue

import (
	"sync"

	"Mansoor88-6/devpulse-agent/internal/metrics"
	"Mansoor88-6/devpulse-agent/internal/models"

	"go.uber.org/zap"
)

// EventStore holds events waiting to be sent. It is safe for concurrent use
// by any number of producers and a single draining consumer.
type EventStore struct {
	mu        sync.Mutex
	events    []models.TrackingEvent
	maxEvents int // 0 means unbounded
	dropped   uint64
	logger    *zap.Logger
}

// NewEventStore creates an empty store. When maxEvents is positive the store
// keeps at most that many events and evicts the oldest ones first.
func NewEventStore(maxEvents int, logger *zap.Logger) *EventStore {
	if maxEvents < 0 {
		maxEvents = 0
	}
	return &EventStore{
		maxEvents: maxEvents,
		logger:    logger,
	}
}

// Push appends an event to the tail of the queue
func (s *EventStore) Push(event models.TrackingEvent) {
	if err := event.Validate(); err != nil {
		s.logger.Warn("Rejecting invalid event",
			zap.String("type", string(event.Type)),
			zap.Error(err),
		)
		metrics.AddEventsDropped(1)
		return
	}

	s.mu.Lock()
	s.events = append(s.events, event)
	evicted := s.enforceLimitLocked()
	s.mu.Unlock()

	metrics.IncEventPushed(string(event.Type))
	s.reportEvicted(evicted)
}

// Snapshot returns a copy of the queued events in insertion order
func (s *EventStore) Snapshot() []models.TrackingEvent {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.TrackingEvent, len(s.events))
	copy(out, s.events)
	return out
}

// DrainAll atomically removes and returns every queued event
func (s *EventStore) DrainAll() []models.TrackingEvent {
	s.mu.Lock()
	events := s.events
	s.events = nil
	metrics.SetQueueDepth(0)
	s.mu.Unlock()

	return events
}

// Clear drops every queued event
func (s *EventStore) Clear() {
	s.mu.Lock()
	s.events = nil
	metrics.SetQueueDepth(0)
	s.mu.Unlock()
}

// Requeue puts previously drained events back in front of anything pushed
// since the drain, so delivery order is preserved.
func (s *EventStore) Requeue(events []models.TrackingEvent) {
	if len(events) == 0 {
		return
	}

	s.mu.Lock()
	merged := make([]models.TrackingEvent, 0, len(events)+len(s.events))
	merged = append(merged, events...)
	merged = append(merged, s.events...)
	s.events = merged
	evicted := s.enforceLimitLocked()
	s.mu.Unlock()

	s.reportEvicted(evicted)
}

// Len returns the number of queued events
func (s *EventStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

// Dropped returns how many events were evicted because the store was full
func (s *EventStore) Dropped() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

// enforceLimitLocked trims the oldest events past maxEvents and publishes
// the depth while the lock is held, so the gauge follows mutation order.
func (s *EventStore) enforceLimitLocked() int {
	defer func() { metrics.SetQueueDepth(len(s.events)) }()
	if s.maxEvents == 0 || len(s.events) <= s.maxEvents {
		return 0
	}
	evicted := len(s.events) - s.maxEvents
	s.events = append([]models.TrackingEvent(nil), s.events[evicted:]...)
	s.dropped += uint64(evicted)
	return evicted
}

func (s *EventStore) reportEvicted(evicted int) {
	if evicted > 0 {
		metrics.AddEventsDropped(evicted)
		s.logger.Warn("Event store full, dropped oldest events",
			zap.Int("dropped", evicted),
			zap.Int("max_events", s.maxEvents),
		)
	}
}
