package queue

import (
	"sync"
	"testing"
	"time"

	"Mansoor88-6/devpulse-agent/internal/metrics"
	"Mansoor88-6/devpulse-agent/internal/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func heartbeat(ts time.Time) models.TrackingEvent {
	return models.NewHeartbeatEvent("alice", ts)
}

func TestPushSnapshotPreservesOrder(t *testing.T) {
	s := NewEventStore(0, zap.NewNop())
	base := time.Unix(1_700_000_000, 0)
	for i := 0; i < 3; i++ {
		s.Push(heartbeat(base.Add(time.Duration(i) * time.Second)))
	}

	snap := s.Snapshot()
	require.Len(t, snap, 3)
	for i, e := range snap {
		assert.Equal(t, base.Add(time.Duration(i)*time.Second), e.Timestamp)
	}
	assert.Equal(t, 3, s.Len(), "snapshot must not remove events")
}

func TestDrainAllIsExhaustiveAndExclusive(t *testing.T) {
	s := NewEventStore(0, zap.NewNop())
	s.Push(heartbeat(time.Now()))
	s.Push(heartbeat(time.Now()))

	drained := s.DrainAll()
	assert.Len(t, drained, 2)
	assert.Empty(t, s.Snapshot())

	s.Push(heartbeat(time.Now()))
	assert.Len(t, s.DrainAll(), 1)
	assert.Empty(t, s.DrainAll())
}

func TestClear(t *testing.T) {
	s := NewEventStore(0, zap.NewNop())
	s.Push(heartbeat(time.Now()))
	s.Clear()
	assert.Zero(t, s.Len())
}

func TestRequeuePutsEventsInFront(t *testing.T) {
	s := NewEventStore(0, zap.NewNop())
	first := heartbeat(time.Now())
	s.Push(first)

	drained := s.DrainAll()
	later := heartbeat(time.Now())
	s.Push(later)
	s.Requeue(drained)

	snap := s.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, first.ID, snap[0].ID)
	assert.Equal(t, later.ID, snap[1].ID)
}

func TestPushRejectsEventWithoutUsername(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	s := NewEventStore(0, zap.New(core))

	s.Push(models.NewHeartbeatEvent("", time.Now()))

	assert.Zero(t, s.Len())
	assert.Equal(t, 1, logs.FilterMessage("Rejecting invalid event").Len())
}

func TestMaxEventsEvictsOldest(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	s := NewEventStore(2, zap.New(core))

	events := []models.TrackingEvent{heartbeat(time.Now()), heartbeat(time.Now()), heartbeat(time.Now())}
	for _, e := range events {
		s.Push(e)
	}

	snap := s.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, events[1].ID, snap[0].ID)
	assert.Equal(t, events[2].ID, snap[1].ID)
	assert.Equal(t, uint64(1), s.Dropped())
	assert.Equal(t, 1, logs.FilterMessage("Event store full, dropped oldest events").Len())
}

func TestConcurrentPushAndDrainLosesNothing(t *testing.T) {
	s := NewEventStore(0, zap.NewNop())

	const producers = 8
	const perProducer = 500

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				s.Push(heartbeat(time.Now()))
			}
		}()
	}

	done := make(chan struct{})
	seen := make(map[string]int)
	var collected int
	go func() {
		defer close(done)
		for {
			for _, e := range s.DrainAll() {
				seen[e.ID]++
				collected++
			}
			if collected == producers*perProducer {
				return
			}
			time.Sleep(time.Millisecond)
		}
	}()

	wg.Wait()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("drainer did not collect every event")
	}

	assert.Equal(t, producers*perProducer, collected)
	assert.Len(t, seen, producers*perProducer)
	for id, n := range seen {
		assert.Equal(t, 1, n, "event %s drained more than once", id)
	}
}

func queueDepthGauge(t *testing.T) float64 {
	t.Helper()
	mfs, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)
	for _, mf := range mfs {
		if mf.GetName() == "devpulse_queue_depth" {
			return mf.GetMetric()[0].GetGauge().GetValue()
		}
	}
	t.Fatal("devpulse_queue_depth not registered")
	return 0
}

func TestQueueDepthGaugeFollowsConcurrentMutations(t *testing.T) {
	require.NoError(t, metrics.Register(prometheus.DefaultRegisterer))
	s := NewEventStore(0, zap.NewNop())
	base := time.Unix(1_700_000_000, 0)

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				s.Push(heartbeat(base))
			}
		}()
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				if events := s.DrainAll(); len(events) > 1 {
					s.Requeue(events[1:])
				}
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, float64(s.Len()), queueDepthGauge(t))

	s.Clear()
	assert.Zero(t, queueDepthGauge(t))
}
