package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"Mansoor88-6/devpulse-agent/internal/models"

	"go.uber.org/zap"
)

// APIClient handles communication with the backend API
type APIClient struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	logger     *zap.Logger

	mu          sync.RWMutex
	accessToken string
	deviceID    string
	deviceName  string
}

// NewAPIClient creates a new API client
func NewAPIClient(baseURL, version string, timeout time.Duration, logger *zap.Logger) *APIClient {
	return &APIClient{
		baseURL:   baseURL,
		userAgent: "DevPulse-Client/" + version,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// SetAccessToken sets the bearer token sent with ingest requests
func (c *APIClient) SetAccessToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accessToken = token
}

func (c *APIClient) AccessToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.accessToken
}

func (c *APIClient) BaseURL() string { return c.baseURL }

// SetDevice identifies this machine on every request via the X-Device-ID
// and X-Device-Name headers. Empty values are not sent.
func (c *APIClient) SetDevice(id, name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deviceID = id
	c.deviceName = name
}

// SendBatch posts events to the ingest endpoint. Only 200 counts as accepted.
func (c *APIClient) SendBatch(ctx context.Context, events []models.TrackingEvent) error {
	if len(events) == 0 {
		return fmt.Errorf("cannot send empty batch")
	}

	startTime := time.Now()
	resp, body, err := c.do(ctx, http.MethodPost, "/api/ingest/events", models.BatchEventRequest{Events: events}, true)
	duration := time.Since(startTime)

	if err != nil {
		c.logger.Error("Failed to send batch",
			zap.Error(err),
			zap.Int("event_count", len(events)),
			zap.Duration("duration", duration),
		)
		return fmt.Errorf("request failed: %w", err)
	}

	if resp.StatusCode == http.StatusOK {
		c.logger.Info("Batch sent successfully",
			zap.Int("event_count", len(events)),
			zap.Int("status_code", resp.StatusCode),
			zap.Duration("duration", duration),
		)
		return nil
	}

	return c.statusError(resp.StatusCode, body)
}

// HealthCheck checks if the backend is reachable
func (c *APIClient) HealthCheck(ctx context.Context) error {
	resp, _, err := c.do(ctx, http.MethodGet, "/health", nil, false)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}
	return nil
}

// SignupRequest is the body of POST /api/credentials/signup
type SignupRequest struct {
	Username          string                   `json:"username"`
	Email             string                   `json:"user_email"`
	Password          string                   `json:"password"`
	Hostname          string                   `json:"hostname"`
	Platform          string                   `json:"platform"`
	DeviceFingerprint models.DeviceFingerprint `json:"device_fingerprint"`
}

// TokenRequest is the body of POST /api/credentials/token
type TokenRequest struct {
	Username     string `json:"username"`
	Password     string `json:"password"`
	MACAddress   string `json:"mac_address"`
	NeverExpires bool   `json:"never_expires"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
}

// Signup registers the user and device. 200 and 201 are both accepted.
func (c *APIClient) Signup(ctx context.Context, req SignupRequest) error {
	resp, body, err := c.do(ctx, http.MethodPost, "/api/credentials/signup", req, false)
	if err != nil {
		return fmt.Errorf("signup request failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return c.statusError(resp.StatusCode, body)
	}
	return nil
}

// RequestToken exchanges credentials for an access token
func (c *APIClient) RequestToken(ctx context.Context, req TokenRequest) (string, error) {
	resp, body, err := c.do(ctx, http.MethodPost, "/api/credentials/token", req, false)
	if err != nil {
		return "", fmt.Errorf("token request failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", c.statusError(resp.StatusCode, body)
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if tr.AccessToken == "" {
		return "", &BackendError{Message: "token response has no access_token", StatusCode: resp.StatusCode}
	}
	return tr.AccessToken, nil
}

func (c *APIClient) do(ctx context.Context, method, path string, payload any, withToken bool) (*http.Response, []byte, error) {
	var reader io.Reader
	if payload != nil {
		jsonData, err := json.Marshal(payload)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create request: %w", err)
	}

	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("User-Agent", c.userAgent)
	c.mu.RLock()
	token, deviceID, deviceName := c.accessToken, c.deviceID, c.deviceName
	c.mu.RUnlock()
	if withToken && token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if deviceID != "" {
		req.Header.Set("X-Device-ID", deviceID)
	}
	if deviceName != "" {
		req.Header.Set("X-Device-Name", deviceName)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp, nil, fmt.Errorf("failed to read response: %w", err)
	}
	return resp, body, nil
}

func (c *APIClient) statusError(status int, body []byte) error {
	errMsg := fmt.Sprintf("backend returned status %d: %s", status, string(body))

	switch {
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		c.logger.Error("Authentication failed",
			zap.Int("status_code", status),
			zap.String("response", string(body)),
		)
		return &AuthError{Message: errMsg, StatusCode: status}
	case status == http.StatusTooManyRequests:
		c.logger.Warn("Rate limited",
			zap.Int("status_code", status),
		)
		return &RateLimitError{Message: errMsg, StatusCode: status}
	case status == http.StatusBadRequest:
		c.logger.Error("Invalid request",
			zap.Int("status_code", status),
			zap.String("response", string(body)),
		)
		return &BadRequestError{Message: errMsg, StatusCode: status}
	default:
		c.logger.Error("Backend error",
			zap.Int("status_code", status),
			zap.String("response", string(body)),
		)
		return &BackendError{Message: errMsg, StatusCode: status}
	}
}

// Error types
type AuthError struct {
	Message    string
	StatusCode int
}

func (e *AuthError) Error() string {
	return e.Message
}

type RateLimitError struct {
	Message    string
	StatusCode int
}

func (e *RateLimitError) Error() string {
	return e.Message
}

type BadRequestError struct {
	Message    string
	StatusCode int
}

func (e *BadRequestError) Error() string {
	return e.Message
}

type BackendError struct {
	Message    string
	StatusCode int
}

func (e *BackendError) Error() string {
	return e.Message
}
