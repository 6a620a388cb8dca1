package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"Mansoor88-6/devpulse-agent/internal/models"
	"Mansoor88-6/devpulse-agent/internal/service"

	"go.uber.org/zap"
)

const (
	defaultScreenshotLimit = 20
	maxScreenshotLimit     = 500
)

type StatusProvider interface {
	Status() service.Status
}

type EventSource interface {
	Snapshot() []models.TrackingEvent
}

type ScreenshotLister interface {
	List(ctx context.Context, limit int) ([]models.Screenshot, error)
}

type Flusher interface {
	Flush(ctx context.Context) error
}

// StatusHandler serves the local read-only view of the agent plus a manual
// flush trigger.
type StatusHandler struct {
	status      StatusProvider
	events      EventSource
	screenshots ScreenshotLister // nil when capture is disabled
	flusher     Flusher
	logger      *zap.Logger
}

func NewStatusHandler(
	status StatusProvider,
	events EventSource,
	screenshots ScreenshotLister,
	flusher Flusher,
	logger *zap.Logger,
) *StatusHandler {
	return &StatusHandler{
		status:      status,
		events:      events,
		screenshots: screenshots,
		flusher:     flusher,
		logger:      logger,
	}
}

func (h *StatusHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().Unix(),
	})
}

func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.status.Status())
}

func (h *StatusHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	events := h.events.Snapshot()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"count":  len(events),
		"events": events,
	})
}

func (h *StatusHandler) ListScreenshots(w http.ResponseWriter, r *http.Request) {
	if h.screenshots == nil {
		writeError(w, http.StatusNotFound, "screenshot capture is disabled")
		return
	}

	limit := defaultScreenshotLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "Invalid limit parameter")
			return
		}
		limit = min(n, maxScreenshotLimit)
	}

	shots, err := h.screenshots.List(r.Context(), limit)
	if err != nil {
		h.logger.Error("Failed to list screenshots", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to list screenshots")
		return
	}
	if shots == nil {
		shots = []models.Screenshot{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"count":       len(shots),
		"screenshots": shots,
	})
}

func (h *StatusHandler) Flush(w http.ResponseWriter, r *http.Request) {
	if err := h.flusher.Flush(r.Context()); err != nil {
		h.logger.Warn("Manual flush failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "flushed"})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
