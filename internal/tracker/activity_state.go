package tracker

import (
	"sync"
	"time"

	"Mansoor88-6/devpulse-agent/internal/metrics"
	"Mansoor88-6/devpulse-agent/internal/models"
	"Mansoor88-6/devpulse-agent/internal/platform"

	"go.uber.org/zap"
)

// Flag is a sampled boolean that starts out unknown
type Flag uint8

const (
	FlagUnknown Flag = iota
	FlagFalse
	FlagTrue
)

func flagOf(v bool) Flag {
	if v {
		return FlagTrue
	}
	return FlagFalse
}

func (f Flag) String() string {
	switch f {
	case FlagTrue:
		return "true"
	case FlagFalse:
		return "false"
	default:
		return "unknown"
	}
}

func (f Flag) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

// ActivityState is the last lock and idle state observed
type ActivityState struct {
	Locked Flag `json:"locked"`
	Idle   Flag `json:"idle"`
}

// ActivityStateTask turns lock and idle samples into transition events.
// Only changes are reported; identical samples produce nothing.
type ActivityStateTask struct {
	lock          platform.LockDetector
	idle          platform.IdleDetector
	idleThreshold float64 // seconds
	username      string
	sink          EventSink
	logger        *zap.Logger

	mu    sync.RWMutex
	state ActivityState
}

func NewActivityStateTask(
	lock platform.LockDetector,
	idle platform.IdleDetector,
	idleThreshold time.Duration,
	username string,
	sink EventSink,
	logger *zap.Logger,
) *ActivityStateTask {
	return &ActivityStateTask{
		lock:          lock,
		idle:          idle,
		idleThreshold: idleThreshold.Seconds(),
		username:      username,
		sink:          sink,
		logger:        logger,
	}
}

func (a *ActivityStateTask) Name() string { return "activity_state" }

func (a *ActivityStateTask) Tick(now time.Time) {
	a.Evaluate(now)
}

// State returns the current state
func (a *ActivityStateTask) State() ActivityState {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.state
}

// Evaluate samples the probes once, emits the events for any transition and
// returns the resulting state.
func (a *ActivityStateTask) Evaluate(now time.Time) ActivityState {
	locked := a.lock.IsLocked()

	a.mu.Lock()
	defer a.mu.Unlock()

	s := a.state
	switch {
	case s.Locked == FlagUnknown:
		if locked {
			a.emit(models.LabelScreenLocked, now)
			s = ActivityState{Locked: FlagTrue, Idle: FlagFalse}
		} else {
			idle := a.isIdle()
			if idle {
				a.emit(models.LabelInactive, now)
			} else {
				a.emit(models.LabelActive, now)
			}
			s = ActivityState{Locked: FlagFalse, Idle: flagOf(idle)}
		}
		a.state = s
		return s

	case locked && s.Locked == FlagFalse:
		a.emit(models.LabelScreenLocked, now)
		s = ActivityState{Locked: FlagTrue, Idle: FlagFalse}

	case !locked && s.Locked == FlagTrue:
		// unlocking counts as activity; idleness is re-checked next tick
		a.emit(models.LabelScreenUnlocked, now)
		a.emit(models.LabelActive, now)
		s = ActivityState{Locked: FlagFalse, Idle: FlagFalse}
		a.state = s
		return s
	}

	if !locked {
		idle := a.isIdle()
		switch {
		case idle && s.Idle != FlagTrue:
			a.emit(models.LabelInactive, now)
			s.Idle = FlagTrue
		case !idle && s.Idle == FlagTrue:
			a.emit(models.LabelActive, now)
			s.Idle = FlagFalse
		}
	}

	a.state = s
	return s
}

func (a *ActivityStateTask) isIdle() bool {
	return a.idle.SecondsIdle() >= a.idleThreshold
}

func (a *ActivityStateTask) emit(label models.ActivityLabel, now time.Time) {
	a.logger.Info("Activity state changed", zap.String("event", string(label)))
	metrics.IncActivityTransition(string(label))
	a.sink.Push(models.NewActivityEvent(a.username, label, now))
}
