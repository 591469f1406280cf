package remote

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"shiftclock/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	logger := zerolog.Nop()
	return NewClient(server.URL, "test-key", 2*time.Second, &logger)
}

func TestToggleSuccess(t *testing.T) {
	var gotAuth, gotIdemKey string
	var gotBody map[string]any

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v1/clock/toggle", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		gotIdemKey = r.Header.Get("Idempotency-Key")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		json.NewEncoder(w).Encode(ToggleResult{
			Success: true,
			Event: &models.ConfirmedEvent{
				ServerID:   "srv-42",
				EmployeeID: "emp-1",
				EventType:  models.ActionIn,
				Timestamp:  time.Now().UTC(),
			},
			Message: "Alice clocked in",
		})
	}))

	result, err := client.Toggle(context.Background(), ToggleRequest{
		EmployeeID:      "emp-1",
		DebounceSeconds: 60,
	})
	require.NoError(t, err)
	require.True(t, result.Success)
	require.NotNil(t, result.Event)
	assert.Equal(t, "srv-42", result.Event.ServerID)
	assert.Equal(t, models.ActionIn, result.Event.EventType)

	assert.Equal(t, "Bearer test-key", gotAuth)
	assert.Empty(t, gotIdemKey)
	assert.Equal(t, "emp-1", gotBody["employee_id"])
	assert.Equal(t, float64(60), gotBody["debounce_seconds"])
	_, hasTimestamp := gotBody["timestamp"]
	assert.False(t, hasTimestamp, "live punches must not serialize a timestamp")
}

func TestToggleBusinessRejection(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(ToggleResult{
			Success: false,
			Message: "already punched in the last 60 seconds",
		})
	}))

	result, err := client.Toggle(context.Background(), ToggleRequest{EmployeeID: "emp-1"})
	// A debounce rejection is a valid response, not an error.
	require.NoError(t, err)
	require.False(t, result.Success)
	assert.Nil(t, result.Event)
	assert.Contains(t, result.Message, "60 seconds")
}

func TestToggleReplayCarriesKeyAndTimestamp(t *testing.T) {
	var gotKey string
	var gotBody map[string]any
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("Idempotency-Key")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		json.NewEncoder(w).Encode(ToggleResult{Success: true, Event: &models.ConfirmedEvent{ServerID: "srv-1", EventType: models.ActionIn}})
	}))

	punchedAt := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
	_, err := client.Toggle(context.Background(), ToggleRequest{
		EmployeeID:     "emp-1",
		IdempotencyKey: "replay-key-123",
		Timestamp:      punchedAt,
	})
	require.NoError(t, err)
	assert.Equal(t, "replay-key-123", gotKey)
	assert.Equal(t, "2025-06-02T09:00:00Z", gotBody["timestamp"], "replays must carry the original punch time")
}

func TestToggleAPIError(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		json.NewEncoder(w).Encode(map[string]string{"error": "unknown employee"})
	}))

	_, err := client.Toggle(context.Background(), ToggleRequest{EmployeeID: "ghost"})
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.StatusCode)
	assert.Equal(t, "unknown employee", apiErr.Message)
	assert.False(t, IsRetryable(err))
}

func TestToggleNetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // connections now refused
	logger := zerolog.Nop()
	client := NewClient(server.URL, "", time.Second, &logger)

	_, err := client.Toggle(context.Background(), ToggleRequest{EmployeeID: "emp-1"})
	require.Error(t, err)

	var netErr *NetworkError
	assert.True(t, errors.As(err, &netErr))
	assert.True(t, IsRetryable(err))
}

func TestToggleTimeout(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.Toggle(ctx, ToggleRequest{EmployeeID: "emp-1"})
	require.Error(t, err)

	var toErr *TimeoutError
	assert.True(t, errors.As(err, &toErr))
	assert.True(t, IsRetryable(err))
}

func TestGetLastEvent(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/employees/emp-1/last-event", r.URL.Path)
		json.NewEncoder(w).Encode(models.ConfirmedEvent{
			ServerID:   "srv-7",
			EmployeeID: "emp-1",
			EventType:  models.ActionOut,
			Timestamp:  time.Now().UTC(),
		})
	}))

	event, err := client.GetLastEvent(context.Background(), "emp-1")
	require.NoError(t, err)
	require.NotNil(t, event)
	assert.Equal(t, "srv-7", event.ServerID)
	assert.Equal(t, models.ActionOut, event.EventType)
}

func TestGetLastEventNoHistory(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	event, err := client.GetLastEvent(context.Background(), "new-hire")
	require.NoError(t, err)
	assert.Nil(t, event)
}

func TestPing(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/health", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))

	require.NoError(t, client.Ping(context.Background()))
}

func TestPingUnhealthy(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))

	err := client.Ping(context.Background())
	require.Error(t, err)

	var apiErr *APIError
	assert.True(t, errors.As(err, &apiErr))
}

func TestIsRetryableClassification(t *testing.T) {
	assert.True(t, IsRetryable(&NetworkError{Err: errors.New("refused")}))
	assert.True(t, IsRetryable(&TimeoutError{Err: errors.New("deadline")}))
	assert.False(t, IsRetryable(&APIError{StatusCode: 500, Message: "boom"}))
	assert.False(t, IsRetryable(errors.New("plain")))
	assert.False(t, IsRetryable(nil))
}
