package models

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// EventType discriminates the kinds of tracking events sent to the backend
type EventType string

const (
	EventTypeActivity  EventType = "activity"
	EventTypeHeartbeat EventType = "heartbeat"
	EventTypeWindow    EventType = "window"
	EventTypeCaptcha   EventType = "captcha"
)

// ActivityLabel is the value of the "event" field of an activity event
type ActivityLabel string

// Activity labels understood by the ingest API
const (
	LabelStarted        ActivityLabel = "System Started"
	LabelStopped        ActivityLabel = "System Stopped"
	LabelScreenLocked   ActivityLabel = "Screen Locked"
	LabelScreenUnlocked ActivityLabel = "Screen Unlocked"
	LabelActive         ActivityLabel = "User Active"
	LabelInactive       ActivityLabel = "User Inactive"
	LabelUnsupported    ActivityLabel = "Unsupported Platform"
	LabelSystemShutdown ActivityLabel = "System Shutdown"

	LabelCaptchaChallenge ActivityLabel = "captcha_challenge"
)

// TrackingEvent is a single record queued for delivery to the ingest API.
// Only the fields belonging to its Type are populated.
type TrackingEvent struct {
	ID        string        `json:"event_id"`
	Type      EventType     `json:"type"`
	Username  string        `json:"username"`
	Timestamp time.Time     `json:"timestamp"`
	Event     ActivityLabel `json:"event,omitempty"`

	// window
	WindowTitle *string    `json:"window_title,omitempty"`
	StartTime   *time.Time `json:"start_time,omitempty"`
	EndTime     *time.Time `json:"end_time,omitempty"`
	Duration    *float64   `json:"duration,omitempty"` // seconds

	// captcha
	Expression    *string `json:"expression,omitempty"`
	UserAnswer    *int    `json:"user_answer,omitempty"`
	CorrectAnswer *int    `json:"correct_answer,omitempty"`
	IsCorrect     *bool   `json:"is_correct,omitempty"`
}

// BatchEventRequest is the body of POST /api/ingest/events
type BatchEventRequest struct {
	Events []TrackingEvent `json:"events"`
}

var ErrMissingUsername = errors.New("event has no username")

// NewActivityEvent creates an activity transition event
func NewActivityEvent(username string, label ActivityLabel, ts time.Time) TrackingEvent {
	e := newEvent(EventTypeActivity, username, ts)
	e.Event = label
	return e
}

// NewHeartbeatEvent creates a heartbeat event
func NewHeartbeatEvent(username string, ts time.Time) TrackingEvent {
	return newEvent(EventTypeHeartbeat, username, ts)
}

// NewWindowEvent creates a focused-window event. The timestamp is the moment
// the window gained focus; end is clamped so the duration is never negative.
func NewWindowEvent(username, title string, start, end time.Time) TrackingEvent {
	start = truncate(start)
	end = truncate(end)
	if end.Before(start) {
		end = start
	}
	duration := end.Sub(start).Seconds()

	e := newEvent(EventTypeWindow, username, start)
	e.WindowTitle = &title
	e.StartTime = &start
	e.EndTime = &end
	e.Duration = &duration
	return e
}

// NewCaptchaEvent records the answer given to an attention challenge
func NewCaptchaEvent(username, expression string, answer, correct int, ts time.Time) TrackingEvent {
	isCorrect := answer == correct

	e := newEvent(EventTypeCaptcha, username, ts)
	e.Event = LabelCaptchaChallenge
	e.Expression = &expression
	e.UserAnswer = &answer
	e.CorrectAnswer = &correct
	e.IsCorrect = &isCorrect
	return e
}

// Validate checks the invariants every queued event must hold
func (e TrackingEvent) Validate() error {
	if e.Username == "" {
		return ErrMissingUsername
	}
	if e.Type == EventTypeWindow {
		if e.StartTime == nil || e.EndTime == nil || e.Duration == nil {
			return errors.New("window event is missing its time range")
		}
		if e.EndTime.Before(*e.StartTime) || *e.Duration < 0 {
			return errors.New("window event ends before it starts")
		}
	}
	return nil
}

func newEvent(t EventType, username string, ts time.Time) TrackingEvent {
	return TrackingEvent{
		ID:        uuid.NewString(),
		Type:      t,
		Username:  username,
		Timestamp: truncate(ts),
	}
}

// truncate drops sub-second precision and the monotonic reading so that
// timestamps serialize as plain ISO-8601 seconds.
func truncate(t time.Time) time.Time {
	return t.Round(0).Truncate(time.Second)
}
