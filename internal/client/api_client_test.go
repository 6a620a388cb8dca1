package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"Mansoor88-6/devpulse-agent/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *APIClient {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewAPIClient(srv.URL, "1.2.3", 2*time.Second, zap.NewNop())
}

func sampleEvents() []models.TrackingEvent {
	ts := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	return []models.TrackingEvent{
		models.NewHeartbeatEvent("alice", ts),
		models.NewActivityEvent("alice", models.LabelActive, ts),
	}
}

func TestSendBatchSuccess(t *testing.T) {
	var got models.BatchEventRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/ingest/events", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "DevPulse-Client/1.2.3", r.Header.Get("User-Agent"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	})
	c.SetAccessToken("tok")

	require.NoError(t, c.SendBatch(context.Background(), sampleEvents()))
	require.Len(t, got.Events, 2)
	assert.Equal(t, models.EventTypeHeartbeat, got.Events[0].Type)
}

func TestSendBatchWithoutTokenOmitsAuthorization(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
	})
	require.NoError(t, c.SendBatch(context.Background(), sampleEvents()))
}

func TestRequestsCarryDeviceHeaders(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "dev-42", r.Header.Get("X-Device-ID"))
		assert.Equal(t, "alice-laptop", r.Header.Get("X-Device-Name"))
		w.WriteHeader(http.StatusOK)
	})
	c.SetDevice("dev-42", "alice-laptop")

	require.NoError(t, c.SendBatch(context.Background(), sampleEvents()))
	require.NoError(t, c.HealthCheck(context.Background()))
}

func TestDeviceHeadersOmittedWhenUnset(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, hasID := r.Header["X-Device-Id"]
		_, hasName := r.Header["X-Device-Name"]
		assert.False(t, hasID)
		assert.False(t, hasName)
		w.WriteHeader(http.StatusOK)
	})
	require.NoError(t, c.HealthCheck(context.Background()))
}

func TestSendBatchEmpty(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})
	assert.Error(t, c.SendBatch(context.Background(), nil))
}

func TestSendBatchStatusErrors(t *testing.T) {
	tests := []struct {
		status int
		check  func(t *testing.T, err error)
	}{
		{http.StatusUnauthorized, func(t *testing.T, err error) {
			var e *AuthError
			require.ErrorAs(t, err, &e)
			assert.Equal(t, http.StatusUnauthorized, e.StatusCode)
		}},
		{http.StatusForbidden, func(t *testing.T, err error) {
			var e *AuthError
			require.ErrorAs(t, err, &e)
		}},
		{http.StatusTooManyRequests, func(t *testing.T, err error) {
			var e *RateLimitError
			require.ErrorAs(t, err, &e)
		}},
		{http.StatusBadRequest, func(t *testing.T, err error) {
			var e *BadRequestError
			require.ErrorAs(t, err, &e)
		}},
		{http.StatusInternalServerError, func(t *testing.T, err error) {
			var e *BackendError
			require.ErrorAs(t, err, &e)
			assert.Contains(t, e.Error(), "boom")
		}},
		// any non-200 success code is still a failure
		{http.StatusAccepted, func(t *testing.T, err error) {
			var e *BackendError
			require.ErrorAs(t, err, &e)
			assert.Equal(t, http.StatusAccepted, e.StatusCode)
		}},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte("boom"))
			})
			tt.check(t, c.SendBatch(context.Background(), sampleEvents()))
		})
	}
}

func TestSendBatchTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := NewAPIClient(url, "dev", time.Second, zap.NewNop())
	assert.Error(t, c.SendBatch(context.Background(), sampleEvents()))
}

func TestHealthCheck(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			w.WriteHeader(http.StatusNotFound)
		}
	})
	assert.NoError(t, c.HealthCheck(context.Background()))

	c = newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	assert.Error(t, c.HealthCheck(context.Background()))
}

func TestSignupAndRequestToken(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		switch r.URL.Path {
		case "/api/credentials/signup":
			assert.Equal(t, "a@b.c", body["user_email"])
			fp := body["device_fingerprint"].(map[string]any)
			assert.Equal(t, "aa:bb", fp["mac_address"])
			w.WriteHeader(http.StatusCreated)
		case "/api/credentials/token":
			assert.Equal(t, true, body["never_expires"])
			assert.Equal(t, "aa:bb", body["mac_address"])
			w.Write([]byte(`{"access_token":"jwt"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	err := c.Signup(context.Background(), SignupRequest{
		Username:          "alice",
		Email:             "a@b.c",
		Password:          "pw",
		DeviceFingerprint: models.DeviceFingerprint{MACAddress: "aa:bb"},
	})
	require.NoError(t, err)

	token, err := c.RequestToken(context.Background(), TokenRequest{
		Username: "alice", Password: "pw", MACAddress: "aa:bb", NeverExpires: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "jwt", token)
}

func TestRequestTokenRejected(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	_, err := c.RequestToken(context.Background(), TokenRequest{Username: "alice"})
	var authErr *AuthError
	assert.ErrorAs(t, err, &authErr)
}
