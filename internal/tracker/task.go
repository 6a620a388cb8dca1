package tracker

import (
	"time"

	"Mansoor88-6/devpulse-agent/internal/models"
)

// Task is advanced by the scheduler on every tick
type Task interface {
	Name() string
	Tick(now time.Time)
}

// Closer is implemented by tasks holding state that should be flushed when
// the scheduler stops.
type Closer interface {
	Close(now time.Time)
}

// EventSink receives the events produced by tasks
type EventSink interface {
	Push(event models.TrackingEvent)
}

// IntervalGate fires at most once per interval. A zero interval fires on
// every call; the first call always fires.
type IntervalGate struct {
	interval  time.Duration
	lastFired time.Time
	fired     bool
}

func NewIntervalGate(interval time.Duration) IntervalGate {
	return IntervalGate{interval: interval}
}

// Due reports whether the interval has elapsed and, if so, records now as
// the last firing time.
func (g *IntervalGate) Due(now time.Time) bool {
	if g.fired && now.Sub(g.lastFired) < g.interval {
		return false
	}
	g.lastFired = now
	g.fired = true
	return true
}

func (g *IntervalGate) Interval() time.Duration {
	return g.interval
}
