package metrics

import (
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Package-level collectors. They are registered via Register.
var (
	regOK atomic.Bool

	eventsPushed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "devpulse",
			Name:      "events_pushed_total",
			Help:      "Events appended to the in-memory store.",
		}, []string{"type"},
	)
	eventsDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "devpulse",
			Name:      "events_dropped_total",
			Help:      "Events evicted from a full store or rejected as invalid.",
		},
	)
	queueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "devpulse",
			Name:      "queue_depth",
			Help:      "Events currently waiting to be sent.",
		},
	)
	batches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "devpulse",
			Name:      "batches_total",
			Help:      "Batch delivery attempts by result.",
		}, []string{"result"},
	)
	batchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "devpulse",
			Name:      "batch_send_duration_seconds",
			Help:      "Time spent delivering a batch to the ingest API.",
			Buckets:   prometheus.DefBuckets,
		},
	)
	activityTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "devpulse",
			Name:      "activity_transitions_total",
			Help:      "Lock and idle transitions observed by the activity state machine.",
		}, []string{"label"},
	)
	screenshots = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "devpulse",
			Name:      "screenshots_total",
			Help:      "Screenshot capture attempts by result.",
		}, []string{"result"},
	)
)

// Register registers all metrics with the provided registerer.
// It is safe to call multiple times; subsequent calls after success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{eventsPushed, eventsDropped, queueDepth, batches, batchDuration, activityTransitions, screenshots}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	regOK.Store(true)
	return nil
}

// Handler serves the default gatherer.
func Handler() http.Handler { return promhttp.Handler() }

// Helpers below no-op until Register has been called.

func IncEventPushed(eventType string) {
	if regOK.Load() {
		eventsPushed.WithLabelValues(eventType).Inc()
	}
}

func AddEventsDropped(n int) {
	if regOK.Load() && n > 0 {
		eventsDropped.Add(float64(n))
	}
}

func SetQueueDepth(n int) {
	if regOK.Load() {
		queueDepth.Set(float64(n))
	}
}

func ObserveBatch(result string, seconds float64) {
	if regOK.Load() {
		batches.WithLabelValues(result).Inc()
		batchDuration.Observe(seconds)
	}
}

func IncActivityTransition(label string) {
	if regOK.Load() {
		activityTransitions.WithLabelValues(label).Inc()
	}
}

func IncScreenshot(result string) {
	if regOK.Load() {
		screenshots.WithLabelValues(result).Inc()
	}
}
