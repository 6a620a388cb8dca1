package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"Mansoor88-6/devpulse-agent/internal/auth"
	"Mansoor88-6/devpulse-agent/internal/capture"
	"Mansoor88-6/devpulse-agent/internal/client"
	"Mansoor88-6/devpulse-agent/internal/config"
	"Mansoor88-6/devpulse-agent/internal/database"
	"Mansoor88-6/devpulse-agent/internal/device"
	"Mansoor88-6/devpulse-agent/internal/handler"
	"Mansoor88-6/devpulse-agent/internal/logger"
	"Mansoor88-6/devpulse-agent/internal/metrics"
	"Mansoor88-6/devpulse-agent/internal/platform"
	"Mansoor88-6/devpulse-agent/internal/queue"
	"Mansoor88-6/devpulse-agent/internal/repository"
	"Mansoor88-6/devpulse-agent/internal/router"
	"Mansoor88-6/devpulse-agent/internal/sender"
	"Mansoor88-6/devpulse-agent/internal/server"
	"Mansoor88-6/devpulse-agent/internal/service"
	"Mansoor88-6/devpulse-agent/internal/tracker"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

func newLogger(cfg *config.Config) (*logger.Logger, error) {
	log, err := logger.New(logger.Options{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		ToConsole:  cfg.Log.ToConsole,
		ToFile:     cfg.Log.ToFile,
		Dir:        cfg.LogDir(),
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return log, nil
}

func runAgent(ctx context.Context, cfg *config.Config, configPath string) error {
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer log.Close()

	log.Info("Starting DevPulse agent",
		zap.String("version", version),
		zap.String("env", cfg.Env),
		zap.String("config_path", configPath),
		zap.String("user", cfg.User),
	)

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		log.Warn("Failed to register metrics", zap.Error(err))
	}

	// Initialize platform
	probes, err := platform.NewPlatform(log.Logger)
	if err != nil {
		log.Error("Failed to initialize platform", zap.Error(err))
		return err
	}
	if info, err := probes.GetSystemInfo(); err == nil {
		log.Info("Platform detected",
			zap.String("os", info.OS),
			zap.String("os_version", info.OSVersion),
			zap.String("arch", info.Arch),
			zap.String("hostname", info.Hostname),
		)
	}

	deviceManager := device.NewDeviceManager(log.Logger)
	apiClient := client.NewAPIClient(cfg.Backend.BaseURL, version, cfg.HTTPTimeout(), log.Logger)
	deviceID, err := identifyDevice(cfg, deviceManager, apiClient)
	if err != nil {
		return err
	}
	log.Info("Using device", zap.String("device_id", deviceID), zap.String("device_name", cfg.Device.Name))

	authenticate(ctx, cfg, configPath, apiClient, deviceManager, log.Logger)

	hctx, cancel := context.WithTimeout(ctx, cfg.HTTPTimeout())
	if err := apiClient.HealthCheck(hctx); err != nil {
		log.Warn("Backend not reachable, events will be queued", zap.Error(err))
	}
	cancel()

	store := queue.NewEventStore(cfg.Queue.MaxEvents, log.Logger)
	batchSender := sender.NewBatchSender(store, apiClient, log.Logger)

	username := cfg.User
	tasks := []tracker.Task{
		tracker.NewActivityStateTask(probes, probes, seconds(cfg.Tracking.IdleThreshold), username, store, log.Logger),
		tracker.NewHeartbeatTask(time.Duration(cfg.Tracking.HeartbeatInterval)*time.Second, username, store),
		tracker.NewWindowTask(probes, time.Duration(cfg.Tracking.WindowEventInterval)*time.Second, username, store, log.Logger),
	}

	var catalog *repository.ScreenshotRepository
	if cfg.Tracking.ScreenshotInterval > 0 {
		db, err := database.New(cfg.StoragePath, log.Logger)
		if err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		defer func() {
			if err := db.Close(); err != nil {
				log.Error("Failed to close database", zap.Error(err))
			}
		}()

		catalog = repository.NewScreenshotRepository(db.DB)
		capturer := capture.NewCapturer(probes, catalog, capture.Options{
			Dir:     cfg.ScreenshotDir(),
			Format:  cfg.Screenshot.Format,
			Quality: cfg.Screenshot.Quality,
		}, log.Logger)
		tasks = append(tasks, tracker.NewScreenshotTask(
			time.Duration(cfg.Tracking.ScreenshotInterval)*time.Second,
			time.Duration(cfg.Screenshot.RetentionDays)*24*time.Hour,
			capturer,
			log.Logger,
		))
	} else {
		log.Info("Screenshot capture disabled")
	}

	if cfg.Tracking.CaptchaInterval > 0 {
		prompter, err := platform.NewPrompter(log.Logger)
		if err != nil {
			log.Warn("Captcha challenges disabled", zap.Error(err))
		} else {
			tasks = append(tasks, tracker.NewCaptchaTask(
				time.Duration(cfg.Tracking.CaptchaInterval)*time.Second,
				prompter, username, store, log.Logger,
			))
		}
	}

	trackingService := service.NewTrackingService(service.Options{
		Username:     username,
		PollInterval: cfg.PollInterval(),
		SendInterval: cfg.SendInterval(),
		FlushTimeout: cfg.HTTPTimeout(),
	}, store, batchSender, log.Logger, tasks...)

	if cfg.Server.Enabled {
		var lister handler.ScreenshotLister
		if catalog != nil {
			lister = catalog
		}
		statusHandler := handler.NewStatusHandler(trackingService, store, lister, batchSender, log.Logger)
		statusServer := server.NewStatusServer(cfg.Server.Port, router.New(statusHandler, metrics.Handler(), log.Logger), log.Logger)
		if _, err := statusServer.Start(); err != nil {
			log.Warn("Status server disabled", zap.Error(err))
		} else {
			defer func() {
				sctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				defer cancel()
				if err := statusServer.Shutdown(sctx); err != nil {
					log.Warn("Status server shutdown error", zap.Error(err))
				}
			}()
		}
	} else {
		log.Info("Status server disabled in configuration")
	}

	runCtx, stop := context.WithCancel(ctx)
	defer stop()
	unwatch := service.WatchSignals(stop, store, username, log.Logger)
	defer unwatch()

	if err := trackingService.Run(runCtx); err != nil {
		log.Error("Tracking stopped with error", zap.Error(err))
		return err
	}

	log.Info("DevPulse agent stopped", zap.Int("unsent_events", store.Len()))
	return nil
}

type deviceIdentifier interface {
	GetOrGenerateDeviceID(existingID string) (string, error)
}

// identifyDevice resolves the device id and tags every backend request with
// it and the configured device name.
func identifyDevice(cfg *config.Config, ids deviceIdentifier, apiClient *client.APIClient) (string, error) {
	id, err := ids.GetOrGenerateDeviceID(cfg.Device.ID)
	if err != nil {
		return "", fmt.Errorf("failed to get device ID: %w", err)
	}
	apiClient.SetDevice(id, cfg.Device.Name)
	return id, nil
}

// authenticate installs a token on the client. Failure is not fatal: the
// agent keeps tracking and the backend rejects batches until a token exists.
func authenticate(
	ctx context.Context,
	cfg *config.Config,
	configPath string,
	apiClient *client.APIClient,
	deviceManager *device.DeviceManager,
	log *zap.Logger,
) {
	authService := auth.NewService(apiClient, deviceManager, log)

	actx, cancel := context.WithTimeout(ctx, 2*cfg.HTTPTimeout())
	defer cancel()

	token, refreshed, err := authService.Authenticate(actx, auth.Credentials{
		Username:    cfg.Auth.Username,
		Password:    cfg.Auth.Password,
		AccessToken: cfg.Auth.AccessToken,
	})
	if err != nil {
		log.Warn("Running without an access token", zap.Error(err))
		return
	}

	if refreshed && fileExists(configPath) {
		if err := config.SaveAccessToken(configPath, token); err != nil {
			log.Warn("Failed to save access token to config", zap.Error(err))
		} else {
			log.Info("Access token saved to config")
		}
	}
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
