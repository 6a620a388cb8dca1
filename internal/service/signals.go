package service

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"Mansoor88-6/devpulse-agent/internal/models"
	"Mansoor88-6/devpulse-agent/internal/tracker"

	"go.uber.org/zap"
)

// WatchSignals cancels the run on SIGINT, SIGTERM or SIGHUP. Termination
// and hangup are recorded as a System Shutdown event first; an interrupt
// only cancels. The returned func stops watching.
func WatchSignals(cancel context.CancelFunc, sink tracker.EventSink, username string, logger *zap.Logger) func() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)

	done := make(chan struct{})
	go func() {
		select {
		case sig := <-sigChan:
			handleSignal(sig, cancel, sink, username, logger, time.Now())
		case <-done:
		}
	}()

	return func() {
		signal.Stop(sigChan)
		close(done)
	}
}

func handleSignal(
	sig os.Signal,
	cancel context.CancelFunc,
	sink tracker.EventSink,
	username string,
	logger *zap.Logger,
	now time.Time,
) {
	logger.Info("Received signal", zap.String("signal", sig.String()))
	if sig == syscall.SIGTERM || sig == syscall.SIGHUP {
		sink.Push(models.NewActivityEvent(username, models.LabelSystemShutdown, now))
	}
	cancel()
}
