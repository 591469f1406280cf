package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"shiftclock/internal/clock"
	"shiftclock/internal/config"
	"shiftclock/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubClock struct {
	result *models.ClockActionResult
	err    error
}

func (s *stubClock) PerformClockAction(ctx context.Context, employeeID, employeeName string) (*models.ClockActionResult, error) {
	return s.result, s.err
}

type stubSyncer struct {
	triggers int
	status   models.SyncStatusEvent
}

func (s *stubSyncer) TriggerDrain() { s.triggers++ }

func (s *stubSyncer) Status(ctx context.Context) models.SyncStatusEvent { return s.status }

type stubQueue struct {
	entries []models.QueuedClockEntry
	listErr error
}

func (s *stubQueue) AppendEntry(ctx context.Context, employeeID, employeeName string, action models.ClockAction, timestamp time.Time) (string, error) {
	return "", nil
}

func (s *stubQueue) ListEntries(ctx context.Context) ([]models.QueuedClockEntry, error) {
	return s.entries, s.listErr
}

func (s *stubQueue) CountEntries(ctx context.Context) (int, error) { return len(s.entries), nil }

func (s *stubQueue) UpdateEntryAttempt(ctx context.Context, id string, attempts int, lastAttempt time.Time, lastError string) error {
	return nil
}

func (s *stubQueue) RemoveEntry(ctx context.Context, id string) error { return nil }
func (s *stubQueue) ClearEntries(ctx context.Context) error           { return nil }

type apiFixture struct {
	clock  *stubClock
	syncer *stubSyncer
	queue  *stubQueue
	server *HTTPServer
}

func newAPIFixture(cfg config.APIConfig) *apiFixture {
	f := &apiFixture{
		clock:  &stubClock{},
		syncer: &stubSyncer{},
		queue:  &stubQueue{},
	}
	logger := zerolog.Nop()
	f.server = NewHTTPServer(cfg, f.clock, f.syncer, f.queue, 10, &logger)
	return f
}

func openConfig() config.APIConfig {
	return config.APIConfig{Enabled: true, Port: 0}
}

func authConfig() config.APIConfig {
	return config.APIConfig{
		Enabled: true,
		Auth: config.APIAuthConfig{
			Enabled:      true,
			HeaderAPIKey: "x-api-key",
			APIKeys:      []config.APIClientKey{{Key: "terminal-key", Name: "front-desk"}},
		},
	}
}

func doRequest(f *apiFixture, method, path string, body []byte, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	return rec
}

func TestClockEndpoint(t *testing.T) {
	f := newAPIFixture(openConfig())
	f.clock.result = &models.ClockActionResult{
		Success: true,
		Message: "Alice clocked in",
		Confirmed: &models.ConfirmedEvent{
			ServerID:  "srv-1",
			EventType: models.ActionIn,
		},
	}

	body := []byte(`{"employee_id":"emp-1","employee_name":"Alice"}`)
	rec := doRequest(f, http.MethodPost, "/api/v1/clock", body, nil)

	require.Equal(t, http.StatusOK, rec.Code)

	var result models.ClockActionResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.True(t, result.Success)
	assert.Equal(t, "Alice clocked in", result.Message)
	require.NotNil(t, result.Confirmed)
	assert.Equal(t, "srv-1", result.Confirmed.ServerID)

	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

func TestClockEndpointValidation(t *testing.T) {
	f := newAPIFixture(openConfig())

	tests := []struct {
		name string
		body string
	}{
		{"empty body", `{}`},
		{"missing name", `{"employee_id":"emp-1"}`},
		{"missing id", `{"employee_name":"Alice"}`},
		{"unknown field", `{"employee_id":"emp-1","employee_name":"Alice","extra":1}`},
		{"malformed", `{`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := doRequest(f, http.MethodPost, "/api/v1/clock", []byte(tc.body), nil)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestClockEndpointNotSaved(t *testing.T) {
	f := newAPIFixture(openConfig())
	f.clock.err = fmt.Errorf("%w: disk full", clock.ErrNotSaved)

	body := []byte(`{"employee_id":"emp-1","employee_name":"Alice"}`)
	rec := doRequest(f, http.MethodPost, "/api/v1/clock", body, nil)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestClockEndpointRemoteFailure(t *testing.T) {
	f := newAPIFixture(openConfig())
	f.clock.err = fmt.Errorf("clock action failed: remote api error (status 422): unknown employee")

	body := []byte(`{"employee_id":"emp-1","employee_name":"Alice"}`)
	rec := doRequest(f, http.MethodPost, "/api/v1/clock", body, nil)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestClockEndpointMethod(t *testing.T) {
	f := newAPIFixture(openConfig())
	rec := doRequest(f, http.MethodGet, "/api/v1/clock", nil, nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestSyncStatusEndpoint(t *testing.T) {
	f := newAPIFixture(openConfig())
	f.syncer.status = models.SyncStatusEvent{Status: models.SyncIdle, QueueCount: 2, Message: "2 entries pending"}

	rec := doRequest(f, http.MethodGet, "/api/v1/sync/status", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var status models.SyncStatusEvent
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, models.SyncIdle, status.Status)
	assert.Equal(t, 2, status.QueueCount)
}

func TestSyncDrainEndpoint(t *testing.T) {
	f := newAPIFixture(openConfig())

	rec := doRequest(f, http.MethodPost, "/api/v1/sync/drain", nil, nil)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, 1, f.syncer.triggers)
}

func TestQueueEndpoint(t *testing.T) {
	f := newAPIFixture(openConfig())
	f.queue.entries = []models.QueuedClockEntry{
		{ID: "e1", EmployeeID: "emp-1", EmployeeName: "Alice", ExpectedAction: models.ActionIn, Timestamp: time.Now()},
	}

	rec := doRequest(f, http.MethodGet, "/api/v1/queue", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var payload struct {
		Count   int                       `json:"count"`
		Entries []models.QueuedClockEntry `json:"entries"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Equal(t, 1, payload.Count)
	require.Len(t, payload.Entries, 1)
	assert.Equal(t, "e1", payload.Entries[0].ID)
}

func TestQueueEndpointEmpty(t *testing.T) {
	f := newAPIFixture(openConfig())

	rec := doRequest(f, http.MethodGet, "/api/v1/queue", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"entries":[]`)
}

func TestQueueExportEndpoint(t *testing.T) {
	f := newAPIFixture(openConfig())
	f.queue.entries = []models.QueuedClockEntry{
		{ID: "e1", EmployeeID: "emp-1", EmployeeName: "Alice", ExpectedAction: models.ActionIn, Timestamp: time.Now()},
	}

	rec := doRequest(f, http.MethodGet, "/api/v1/queue/export", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "attachment")
	assert.NotZero(t, rec.Body.Len())
}

func TestAuthRejectsMissingKey(t *testing.T) {
	f := newAPIFixture(authConfig())

	rec := doRequest(f, http.MethodGet, "/api/v1/sync/status", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthRejectsWrongKey(t *testing.T) {
	f := newAPIFixture(authConfig())

	rec := doRequest(f, http.MethodGet, "/api/v1/sync/status", nil, map[string]string{"x-api-key": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthAcceptsConfiguredKey(t *testing.T) {
	f := newAPIFixture(authConfig())

	rec := doRequest(f, http.MethodGet, "/api/v1/sync/status", nil, map[string]string{"x-api-key": "terminal-key"})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimitPerKey(t *testing.T) {
	cfg := authConfig()
	cfg.RateLimit = config.APIRateLimitConfig{RPS: 1, Burst: 2}
	f := newAPIFixture(cfg)

	headers := map[string]string{"x-api-key": "terminal-key"}

	limited := false
	for i := 0; i < 5; i++ {
		rec := doRequest(f, http.MethodGet, "/api/v1/sync/status", nil, headers)
		if rec.Code == http.StatusTooManyRequests {
			limited = true
			break
		}
		require.Equal(t, http.StatusOK, rec.Code)
	}
	assert.True(t, limited, "expected burst to exhaust the per-key limiter")
}
