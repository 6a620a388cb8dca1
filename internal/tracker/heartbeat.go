package tracker

import (
	"time"

	"Mansoor88-6/devpulse-agent/internal/models"
)

// HeartbeatTask pushes a heartbeat event once per interval
type HeartbeatTask struct {
	gate     IntervalGate
	username string
	sink     EventSink
}

func NewHeartbeatTask(interval time.Duration, username string, sink EventSink) *HeartbeatTask {
	return &HeartbeatTask{
		gate:     NewIntervalGate(interval),
		username: username,
		sink:     sink,
	}
}

func (h *HeartbeatTask) Name() string { return "heartbeat" }

func (h *HeartbeatTask) Tick(now time.Time) {
	if h.gate.Due(now) {
		h.sink.Push(models.NewHeartbeatEvent(h.username, now))
	}
}
