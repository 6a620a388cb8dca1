package tracker

import (
	"context"
	"sync"
	"time"

	"Mansoor88-6/devpulse-agent/internal/models"
	"Mansoor88-6/devpulse-agent/internal/platform"
)

type recordingSink struct {
	mu     sync.Mutex
	events []models.TrackingEvent
}

func (r *recordingSink) Push(e models.TrackingEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recordingSink) all() []models.TrackingEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.TrackingEvent(nil), r.events...)
}

func (r *recordingSink) labels() []models.ActivityLabel {
	var out []models.ActivityLabel
	for _, e := range r.all() {
		out = append(out, e.Event)
	}
	return out
}

// fakeProbes returns scripted lock, idle and title samples
type fakeProbes struct {
	locked bool
	idle   float64
	title  string
}

func (f *fakeProbes) IsLocked() bool             { return f.locked }
func (f *fakeProbes) SecondsIdle() float64       { return f.idle }
func (f *fakeProbes) CurrentWindowTitle() string { return f.title }

type fakePrompter struct {
	mu      sync.Mutex
	answer  int
	err     error
	block   bool
	asked   int
	notices []platform.NoticeKind
}

func (f *fakePrompter) AskInt(ctx context.Context, _, _ string) (int, error) {
	f.mu.Lock()
	f.asked++
	block := f.block
	f.mu.Unlock()

	if block {
		<-ctx.Done()
		return 0, platform.ErrPromptCancelled
	}
	return f.answer, f.err
}

func (f *fakePrompter) Notify(_ context.Context, kind platform.NoticeKind, _ string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notices = append(f.notices, kind)
}

func (f *fakePrompter) snapshot() (int, []platform.NoticeKind) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.asked, append([]platform.NoticeKind(nil), f.notices...)
}

type fakeCapturer struct {
	captures int
	cutoffs  []time.Time
	err      error
}

func (f *fakeCapturer) Capture(_ context.Context, now time.Time) ([]models.Screenshot, error) {
	f.captures++
	if f.err != nil {
		return nil, f.err
	}
	return []models.Screenshot{{FilePath: "monitor1.png", CapturedAt: now}}, nil
}

func (f *fakeCapturer) Prune(_ context.Context, cutoff time.Time) (int, error) {
	f.cutoffs = append(f.cutoffs, cutoff)
	return 0, nil
}
