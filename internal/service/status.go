package service

import (
	"time"

	"Mansoor88-6/devpulse-agent/internal/tracker"
)

// Status is a point-in-time view of the agent
type Status struct {
	Username       string                 `json:"username"`
	Running        bool                   `json:"running"`
	StartedAt      time.Time              `json:"started_at"`
	Uptime         string                 `json:"uptime,omitempty"`
	Activity       *tracker.ActivityState `json:"activity,omitempty"`
	CurrentWindow  *WindowStatus          `json:"current_window,omitempty"`
	QueueDepth     int                    `json:"queue_depth"`
	DroppedEvents  uint64                 `json:"dropped_events"`
	LastSendAt     *time.Time             `json:"last_send_at,omitempty"`
	LastSuccessAt  *time.Time             `json:"last_success_at,omitempty"`
	LastSendError  string                 `json:"last_send_error,omitempty"`
	LastBatchCount int                    `json:"last_batch_count"`
}

type WindowStatus struct {
	Title string    `json:"title"`
	Since time.Time `json:"since"`
}

type activityReporter interface {
	State() tracker.ActivityState
}

type windowReporter interface {
	Current() (string, time.Time, bool)
}

// Status reports the running state, the latest activity and window samples
// and the outcome of the last send.
func (ts *TrackingService) Status() Status {
	ts.mu.RLock()
	st := Status{
		Username:  ts.opts.Username,
		Running:   ts.running,
		StartedAt: ts.startedAt,
	}
	ts.mu.RUnlock()

	if st.Running {
		st.Uptime = ts.clock().Sub(st.StartedAt).Truncate(time.Second).String()
	}

	for _, task := range ts.tasks {
		switch r := task.(type) {
		case activityReporter:
			state := r.State()
			st.Activity = &state
		case windowReporter:
			if title, since, ok := r.Current(); ok {
				st.CurrentWindow = &WindowStatus{Title: title, Since: since}
			}
		}
	}

	st.QueueDepth = ts.store.Len()
	st.DroppedEvents = ts.store.Dropped()

	if ts.sender != nil {
		if last, lastOK, attempted := ts.sender.LastResult(); attempted {
			st.LastSendAt = &last.At
			st.LastSendError = last.Error
			st.LastBatchCount = last.Count
			if !lastOK.IsZero() {
				st.LastSuccessAt = &lastOK
			}
		}
	}
	return st
}
