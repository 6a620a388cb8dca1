package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"Mansoor88-6/devpulse-agent/internal/auth"
	"Mansoor88-6/devpulse-agent/internal/client"
	"Mansoor88-6/devpulse-agent/internal/config"
	"Mansoor88-6/devpulse-agent/internal/device"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// GlobalFlags holds the persistent flags
type GlobalFlags struct {
	ConfigPath string
}

// CredentialFlags override the backend settings from the config file
type CredentialFlags struct {
	Server   string
	Username string
	Password string
	Email    string
}

func buildRoot() *cobra.Command {
	globalFlags := &GlobalFlags{}

	root := &cobra.Command{
		Use:   "devpulse",
		Short: "Desktop activity agent",
		Long: `DevPulse samples screen lock, idle time and the focused window,
turns them into activity events and ships them to the DevPulse backend.

Examples:
  devpulse enroll --server=https://pulse.example.com --username=alice --password=... --email=alice@example.com
  devpulse run --config=config.yaml`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&globalFlags.ConfigPath, "config", "config.yaml", "path to YAML config file (used when present)")

	root.AddCommand(
		createRunCommand(globalFlags),
		createEnrollCommand(globalFlags),
		createVersionCommand(),
	)
	return root
}

func createRunCommand(globalFlags *GlobalFlags) *cobra.Command {
	flags := &CredentialFlags{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start tracking",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(globalFlags.ConfigPath, flags)
			if err != nil {
				return err
			}
			return runAgent(cmd.Context(), cfg, globalFlags.ConfigPath)
		},
	}

	cmd.Flags().StringVar(&flags.Server, "server", "", "backend base URL")
	cmd.Flags().StringVar(&flags.Username, "username", "", "account username")
	cmd.Flags().StringVar(&flags.Password, "password", "", "account password")
	return cmd
}

func createEnrollCommand(globalFlags *GlobalFlags) *cobra.Command {
	flags := &CredentialFlags{}
	cmd := &cobra.Command{
		Use:   "enroll",
		Short: "Register this device and store an access token",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(globalFlags.ConfigPath, flags)
			if err != nil {
				return err
			}
			return enroll(cmd.Context(), cfg, globalFlags.ConfigPath, flags)
		},
	}

	cmd.Flags().StringVar(&flags.Server, "server", "", "backend base URL")
	cmd.Flags().StringVar(&flags.Username, "username", "", "account username (required)")
	cmd.Flags().StringVar(&flags.Password, "password", "", "account password (required)")
	cmd.Flags().StringVar(&flags.Email, "email", "", "account email (required)")
	for _, name := range []string{"username", "password", "email"} {
		if err := cmd.MarkFlagRequired(name); err != nil {
			panic(err)
		}
	}
	return cmd
}

func createVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the agent version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "devpulse "+version)
		},
	}
}

func loadConfig(path string, flags *CredentialFlags) (*config.Config, error) {
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, err
	}
	applyFlags(cfg, flags)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyFlags(cfg *config.Config, flags *CredentialFlags) {
	if flags.Server != "" {
		cfg.Backend.BaseURL = strings.TrimRight(flags.Server, "/")
	}
	if flags.Username != "" {
		cfg.Auth.Username = flags.Username
	}
	if flags.Password != "" {
		cfg.Auth.Password = flags.Password
	}
	if flags.Email != "" {
		cfg.Auth.Email = flags.Email
	}
}

func enroll(ctx context.Context, cfg *config.Config, configPath string, flags *CredentialFlags) error {
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer log.Close()

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	apiClient := client.NewAPIClient(cfg.Backend.BaseURL, version, cfg.HTTPTimeout(), log.Logger)
	deviceManager := device.NewDeviceManager(log.Logger)
	if _, err := identifyDevice(cfg, deviceManager, apiClient); err != nil {
		return err
	}
	authService := auth.NewService(apiClient, deviceManager, log.Logger)

	creds := auth.Credentials{
		Username: cfg.Auth.Username,
		Password: cfg.Auth.Password,
		Email:    cfg.Auth.Email,
	}
	if err := authService.Signup(ctx, creds); err != nil {
		return fmt.Errorf("signup failed: %w", err)
	}

	token, err := authService.Login(ctx, creds.Username, creds.Password)
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	if err := config.SaveAccessToken(configPath, token); err != nil {
		log.Warn("Failed to save access token to config", zap.Error(err))
		return err
	}
	log.Info("Device enrolled and access token saved", zap.String("config_path", configPath))
	return nil
}
