package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"os/user"
	"path/filepath"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// Config is the agent configuration, read from YAML and overridden by the
// environment.
type Config struct {
	Env         string `yaml:"env" env:"DEVPULSE_ENV" env-default:"production"`
	BaseDir     string `yaml:"base_dir" env:"BASE_DIR" env-default:"tracker"`
	StoragePath string `yaml:"storage_path" env:"DEVPULSE_STORAGE_PATH"`
	User        string `yaml:"user" env:"DEVPULSE_USER"`

	Log        LogConfig        `yaml:"log"`
	Device     DeviceConfig     `yaml:"device"`
	Auth       AuthConfig       `yaml:"auth"`
	Backend    BackendConfig    `yaml:"backend"`
	Server     ServerConfig     `yaml:"server"`
	Tracking   TrackingConfig   `yaml:"tracking"`
	Screenshot ScreenshotConfig `yaml:"screenshot"`
	Queue      QueueConfig      `yaml:"queue"`
}

type LogConfig struct {
	Level      string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
	Format     string `yaml:"format" env:"LOG_FORMAT" env-default:"console"`
	ToConsole  bool   `yaml:"to_console" env:"LOG_TO_CONSOLE" env-default:"true"`
	ToFile     bool   `yaml:"to_file" env:"LOG_TO_FILE" env-default:"true"`
	MaxSizeMB  int    `yaml:"max_size_mb" env:"LOG_ROTATION_MB" env-default:"10"`
	MaxAgeDays int    `yaml:"max_age_days" env:"LOG_RETENTION_DAYS" env-default:"7"`
	MaxBackups int    `yaml:"max_backups" env:"LOG_MAX_BACKUPS" env-default:"5"`
}

type DeviceConfig struct {
	ID   string `yaml:"id" env:"DEVICE_ID"`
	Name string `yaml:"name" env:"DEVICE_NAME"`
}

type AuthConfig struct {
	Username    string `yaml:"username" env:"DEVPULSE_USERNAME"`
	Password    string `yaml:"password" env:"DEVPULSE_PASSWORD"`
	Email       string `yaml:"email" env:"DEVPULSE_EMAIL"`
	AccessToken string `yaml:"access_token" env:"DEVPULSE_ACCESS_TOKEN"`
}

type BackendConfig struct {
	BaseURL      string `yaml:"base_url" env:"SERVER_URL" env-default:"http://localhost:8000"`
	Timeout      int    `yaml:"timeout" env:"HTTP_TIMEOUT" env-default:"10"`         // seconds
	SendInterval int    `yaml:"send_interval" env:"SEND_INTERVAL" env-default:"5"` // seconds
}

type ServerConfig struct {
	Enabled bool `yaml:"enabled" env:"STATUS_SERVER_ENABLED" env-default:"false"`
	Port    int  `yaml:"port" env:"STATUS_SERVER_PORT" env-default:"8787"`
}

// TrackingConfig holds task intervals in seconds unless noted otherwise
type TrackingConfig struct {
	PollIntervalMS      int     `yaml:"poll_interval_ms" env:"SYSTEM_RUN_DELAY_MS" env-default:"100"`
	IdleThreshold       float64 `yaml:"idle_threshold" env:"IDLE_THRESHOLD" env-default:"10"`
	HeartbeatInterval   int     `yaml:"heartbeat_interval" env:"HEARTBEAT_EVERY" env-default:"10"`
	WindowEventInterval int     `yaml:"window_event_interval" env:"WINDOW_EVENT_INTERVAL" env-default:"0"`
	ScreenshotInterval  int     `yaml:"screenshot_interval" env:"SCREENSHOT_INTERVAL" env-default:"86400"` // 0 disables
	CaptchaInterval     int     `yaml:"captcha_interval" env:"CAPTCHA_INTERVAL" env-default:"0"`           // 0 disables
}

type ScreenshotConfig struct {
	Format        string `yaml:"format" env:"IMAGE_FORMAT" env-default:"png"`
	Quality       int    `yaml:"quality" env:"IMAGE_QUALITY" env-default:"85"`
	RetentionDays int    `yaml:"retention_days" env:"SCREENSHOT_RETENTION_DAYS" env-default:"30"`
}

type QueueConfig struct {
	MaxEvents int `yaml:"max_events" env:"QUEUE_MAX_EVENTS" env-default:"0"`
}

// LoadConfig reads configuration from path (if it exists) and the
// environment. A .env file in the working directory is loaded first.
func LoadConfig(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	var cfg Config
	if path != "" && fileExists(path) {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	} else {
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("failed to read config from environment: %w", err)
		}
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.StoragePath == "" {
		c.StoragePath = filepath.Join(c.BaseDir, "devpulse.db")
	}
	if c.User == "" {
		c.User = currentUsername()
	}
	if c.Device.Name == "" {
		c.Device.Name, _ = os.Hostname()
	}
	c.Screenshot.Format = strings.ToLower(c.Screenshot.Format)
	if c.Screenshot.Format == "jpg" {
		c.Screenshot.Format = "jpeg"
	}
	c.Backend.BaseURL = strings.TrimRight(c.Backend.BaseURL, "/")
}

// Validate reports the first invalid setting
func (c *Config) Validate() error {
	switch {
	case c.User == "":
		return errors.New("config: user could not be determined")
	case c.Tracking.PollIntervalMS <= 0:
		return errors.New("config: tracking.poll_interval_ms must be positive")
	case c.Tracking.IdleThreshold <= 0:
		return errors.New("config: tracking.idle_threshold must be positive")
	case c.Tracking.HeartbeatInterval < 0, c.Tracking.WindowEventInterval < 0,
		c.Tracking.ScreenshotInterval < 0, c.Tracking.CaptchaInterval < 0:
		return errors.New("config: tracking intervals must not be negative")
	case c.Backend.SendInterval <= 0:
		return errors.New("config: backend.send_interval must be positive")
	case c.Backend.Timeout <= 0:
		return errors.New("config: backend.timeout must be positive")
	case c.Screenshot.Format != "png" && c.Screenshot.Format != "jpeg":
		return fmt.Errorf("config: unsupported screenshot.format %q", c.Screenshot.Format)
	case c.Screenshot.Quality < 1 || c.Screenshot.Quality > 100:
		return errors.New("config: screenshot.quality must be between 1 and 100")
	case c.Screenshot.RetentionDays < 0:
		return errors.New("config: screenshot.retention_days must not be negative")
	case c.Queue.MaxEvents < 0:
		return errors.New("config: queue.max_events must not be negative")
	case c.Server.Enabled && (c.Server.Port <= 0 || c.Server.Port > 65535):
		return fmt.Errorf("config: invalid server.port %d", c.Server.Port)
	}

	u, err := url.Parse(c.Backend.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("config: invalid backend.base_url %q", c.Backend.BaseURL)
	}
	return nil
}

func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Tracking.PollIntervalMS) * time.Millisecond
}

func (c *Config) SendInterval() time.Duration {
	return time.Duration(c.Backend.SendInterval) * time.Second
}

func (c *Config) HTTPTimeout() time.Duration {
	return time.Duration(c.Backend.Timeout) * time.Second
}

func (c *Config) ScreenshotDir() string {
	return filepath.Join(c.BaseDir, "screenshots")
}

func (c *Config) LogDir() string {
	return filepath.Join(c.BaseDir, "logs")
}

func currentUsername() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		name := u.Username
		// DOMAIN\user on Windows
		if i := strings.LastIndex(name, `\`); i >= 0 {
			name = name[i+1:]
		}
		return name
	}
	for _, key := range []string{"USER", "USERNAME"} {
		if v := os.Getenv(key); v != "" {
			return v
		}
	}
	return ""
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
