package tracker

import (
	"testing"
	"time"

	"Mansoor88-6/devpulse-agent/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var t0 = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

func newActivityTask(probes *fakeProbes, sink *recordingSink) *ActivityStateTask {
	return NewActivityStateTask(probes, probes, 10*time.Second, "alice", sink, zap.NewNop())
}

func TestActivityStateScenario(t *testing.T) {
	probes := &fakeProbes{}
	sink := &recordingSink{}
	task := newActivityTask(probes, sink)

	probes.locked, probes.idle = false, 0
	st := task.Evaluate(t0)
	assert.Equal(t, ActivityState{Locked: FlagFalse, Idle: FlagFalse}, st)

	probes.locked = true
	st = task.Evaluate(t0.Add(5 * time.Second))
	assert.Equal(t, ActivityState{Locked: FlagTrue, Idle: FlagFalse}, st)

	probes.locked, probes.idle = false, 15
	st = task.Evaluate(t0.Add(20 * time.Second))
	assert.Equal(t, ActivityState{Locked: FlagFalse, Idle: FlagFalse}, st)

	st = task.Evaluate(t0.Add(35 * time.Second))
	assert.Equal(t, ActivityState{Locked: FlagFalse, Idle: FlagTrue}, st)

	assert.Equal(t, []models.ActivityLabel{
		models.LabelActive,
		models.LabelScreenLocked,
		models.LabelScreenUnlocked,
		models.LabelActive,
		models.LabelInactive,
	}, sink.labels())

	for _, e := range sink.all() {
		assert.Equal(t, "alice", e.Username)
		assert.Equal(t, models.EventTypeActivity, e.Type)
	}
}

func TestActivityStateIdenticalTicksEmitOnce(t *testing.T) {
	tests := []struct {
		name   string
		probes fakeProbes
		want   models.ActivityLabel
	}{
		{"active", fakeProbes{idle: 1}, models.LabelActive},
		{"inactive", fakeProbes{idle: 60}, models.LabelInactive},
		{"locked", fakeProbes{locked: true, idle: 60}, models.LabelScreenLocked},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			probes := tt.probes
			sink := &recordingSink{}
			task := newActivityTask(&probes, sink)

			for i := 0; i < 20; i++ {
				task.Tick(t0.Add(time.Duration(i) * 100 * time.Millisecond))
			}
			assert.Equal(t, []models.ActivityLabel{tt.want}, sink.labels())
		})
	}
}

func TestActivityStateUnlockAlwaysEmitsUnlockedThenActive(t *testing.T) {
	for _, idle := range []float64{0, 9.9, 10, 500, -1} {
		probes := &fakeProbes{locked: true}
		sink := &recordingSink{}
		task := newActivityTask(probes, sink)

		task.Evaluate(t0)
		probes.locked, probes.idle = false, idle
		task.Evaluate(t0.Add(time.Minute))

		labels := sink.labels()
		require.Len(t, labels, 3, "idle=%v", idle)
		assert.Equal(t, []models.ActivityLabel{models.LabelScreenUnlocked, models.LabelActive}, labels[1:])
	}
}

func TestActivityStateIdleEdges(t *testing.T) {
	probes := &fakeProbes{}
	sink := &recordingSink{}
	task := newActivityTask(probes, sink)

	task.Evaluate(t0)
	probes.idle = 10 // threshold is inclusive
	task.Evaluate(t0.Add(time.Second))
	probes.idle = 11
	task.Evaluate(t0.Add(2 * time.Second))
	probes.idle = 0.5
	task.Evaluate(t0.Add(3 * time.Second))

	assert.Equal(t, []models.ActivityLabel{
		models.LabelActive,
		models.LabelInactive,
		models.LabelActive,
	}, sink.labels())
}

func TestActivityStateIdleWhileLockedIsIgnored(t *testing.T) {
	probes := &fakeProbes{}
	sink := &recordingSink{}
	task := newActivityTask(probes, sink)

	task.Evaluate(t0)
	probes.locked, probes.idle = true, 600
	task.Evaluate(t0.Add(time.Second))
	task.Evaluate(t0.Add(2 * time.Second))

	assert.Equal(t, []models.ActivityLabel{models.LabelActive, models.LabelScreenLocked}, sink.labels())
}

func TestActivityStateUndeterminableIdleNeverIdle(t *testing.T) {
	probes := &fakeProbes{idle: -1}
	sink := &recordingSink{}
	task := newActivityTask(probes, sink)

	task.Evaluate(t0)
	task.Evaluate(t0.Add(time.Second))

	assert.Equal(t, []models.ActivityLabel{models.LabelActive}, sink.labels())
	assert.Equal(t, FlagFalse, task.State().Idle)
}

func TestFlagText(t *testing.T) {
	b, err := FlagUnknown.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "unknown", string(b))
	assert.Equal(t, "true", FlagTrue.String())
}
