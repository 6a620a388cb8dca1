// Package auth enrolls the device with the backend and keeps the agent's
// access token current.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"Mansoor88-6/devpulse-agent/internal/client"
	"Mansoor88-6/devpulse-agent/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// ErrNoCredentials is returned when neither a usable token nor a
// username/password pair is configured.
var ErrNoCredentials = errors.New("no credentials configured")

// CredentialsAPI is the part of the backend client used for enrollment
type CredentialsAPI interface {
	Signup(ctx context.Context, req client.SignupRequest) error
	RequestToken(ctx context.Context, req client.TokenRequest) (string, error)
	SetAccessToken(token string)
}

// Fingerprinter collects the device identity sent at enrollment
type Fingerprinter interface {
	CollectFingerprint(ctx context.Context) (models.DeviceFingerprint, error)
}

type Credentials struct {
	Username    string
	Password    string
	Email       string
	AccessToken string
}

type Service struct {
	api    CredentialsAPI
	device Fingerprinter
	logger *zap.Logger
	clock  func() time.Time
}

func NewService(api CredentialsAPI, device Fingerprinter, logger *zap.Logger) *Service {
	return &Service{
		api:    api,
		device: device,
		logger: logger,
		clock:  time.Now,
	}
}

// Signup registers the user together with this device's fingerprint
func (s *Service) Signup(ctx context.Context, creds Credentials) error {
	if creds.Username == "" || creds.Password == "" || creds.Email == "" {
		return fmt.Errorf("signup requires username, password and email")
	}

	fp, err := s.device.CollectFingerprint(ctx)
	if err != nil {
		return fmt.Errorf("failed to collect device fingerprint: %w", err)
	}

	err = s.api.Signup(ctx, client.SignupRequest{
		Username:          creds.Username,
		Email:             creds.Email,
		Password:          creds.Password,
		Hostname:          fp.Hostname,
		Platform:          fp.Platform,
		DeviceFingerprint: fp,
	})
	if err != nil {
		return err
	}

	s.logger.Info("Device enrolled",
		zap.String("username", creds.Username),
		zap.String("hostname", fp.Hostname),
	)
	return nil
}

// Login requests a non-expiring token bound to this device's MAC address
// and installs it on the client.
func (s *Service) Login(ctx context.Context, username, password string) (string, error) {
	if username == "" || password == "" {
		return "", ErrNoCredentials
	}

	fp, err := s.device.CollectFingerprint(ctx)
	if err != nil {
		s.logger.Warn("Could not collect device fingerprint", zap.Error(err))
	}

	token, err := s.api.RequestToken(ctx, client.TokenRequest{
		Username:     username,
		Password:     password,
		MACAddress:   fp.MACAddress,
		NeverExpires: true,
	})
	if err != nil {
		return "", err
	}

	s.api.SetAccessToken(token)
	s.logger.Info("Access token obtained", zap.String("username", username))
	return token, nil
}

// Authenticate returns a usable token: the configured one while it has not
// expired (tokens that are not JWTs never expire locally), otherwise a fresh
// one from Login. refreshed reports whether a
// new token was issued.
func (s *Service) Authenticate(ctx context.Context, creds Credentials) (token string, refreshed bool, err error) {
	if creds.AccessToken != "" {
		exp, hasExp, err := TokenExpiry(creds.AccessToken)
		switch {
		case err != nil:
			// opaque bearer tokens carry no expiry, the backend decides
			s.logger.Debug("Access token is not a JWT, using it as is", zap.Error(err))
			s.api.SetAccessToken(creds.AccessToken)
			return creds.AccessToken, false, nil
		case !hasExp || s.clock().Before(exp):
			s.api.SetAccessToken(creds.AccessToken)
			return creds.AccessToken, false, nil
		default:
			s.logger.Info("Access token expired", zap.Time("expired_at", exp))
		}
	}

	token, err = s.Login(ctx, creds.Username, creds.Password)
	if err != nil {
		return "", false, err
	}
	return token, true, nil
}

// TokenExpiry reads the exp claim without verifying the signature. ok is
// false for tokens without an expiry.
func TokenExpiry(token string) (exp time.Time, ok bool, err error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false, fmt.Errorf("failed to parse token: %w", err)
	}

	date, err := claims.GetExpirationTime()
	if err != nil {
		return time.Time{}, false, fmt.Errorf("invalid exp claim: %w", err)
	}
	if date == nil {
		return time.Time{}, false, nil
	}
	return date.Time, true, nil
}
