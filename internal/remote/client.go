package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"shiftclock/internal/models"

	"github.com/rs/zerolog"
)

// ToggleRequest asks the remote service to record a punch. The server decides
// in/out atomically and enforces the debounce window; the client never
// replicates that decision while online.
type ToggleRequest struct {
	EmployeeID      string `json:"employee_id"`
	DebounceSeconds int    `json:"debounce_seconds"`
	// IdempotencyKey is set when replaying a queued punch so a retried
	// delivery that already landed is not recorded twice.
	IdempotencyKey string `json:"-"`
	// Timestamp is the original wall-clock punch time; zero for live punches
	// and omitted from the wire format.
	Timestamp time.Time `json:"timestamp,omitzero"`
}

// ToggleResult is the remote outcome. Success=false is a legitimate business
// rejection (debounce too-soon), not a transport failure.
type ToggleResult struct {
	Success bool                   `json:"success"`
	Event   *models.ConfirmedEvent `json:"event,omitempty"`
	Message string                 `json:"message"`
}

// Client talks to the remote time-clock API over HTTP.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	logger  *zerolog.Logger
}

func NewClient(baseURL, apiKey string, timeout time.Duration, logger *zerolog.Logger) *Client {
	if timeout <= 0 {
		timeout = time.Duration(models.DefaultRemoteTimeout) * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// Toggle records a punch. Transport failures come back as NetworkError or
// TimeoutError; remote-side failures as APIError.
func (c *Client) Toggle(ctx context.Context, req ToggleRequest) (*ToggleResult, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode toggle request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/clock/toggle", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build toggle request: %w", err)
	}
	c.setHeaders(httpReq)
	if req.IdempotencyKey != "" {
		httpReq.Header.Set("Idempotency-Key", req.IdempotencyKey)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, classifyTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.apiError(resp)
	}

	var result ToggleResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode toggle response: %w", err)
	}
	return &result, nil
}

// GetLastEvent returns the employee's most recent punch, or nil when the
// employee has no history.
func (c *Client) GetLastEvent(ctx context.Context, employeeID string) (*models.ConfirmedEvent, error) {
	url := fmt.Sprintf("%s/v1/employees/%s/last-event", c.baseURL, employeeID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build last-event request: %w", err)
	}
	c.setHeaders(httpReq)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, classifyTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, c.apiError(resp)
	}

	var event models.ConfirmedEvent
	if err := json.NewDecoder(resp.Body).Decode(&event); err != nil {
		return nil, fmt.Errorf("decode last-event response: %w", err)
	}
	if event.ServerID == "" {
		return nil, nil
	}
	return &event, nil
}

// Ping checks the remote health endpoint. Used by the connectivity monitor.
func (c *Client) Ping(ctx context.Context) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/health", nil)
	if err != nil {
		return fmt.Errorf("build health request: %w", err)
	}
	c.setHeaders(httpReq)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return classifyTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.apiError(resp)
	}
	return nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}

func (c *Client) apiError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	message := strings.TrimSpace(string(raw))
	if err := json.Unmarshal(raw, &payload); err == nil {
		if payload.Error != "" {
			message = payload.Error
		} else if payload.Message != "" {
			message = payload.Message
		}
	}
	if message == "" {
		message = resp.Status
	}

	c.logger.Debug().Int("status", resp.StatusCode).Str("message", message).Msg("remote api error")
	return &APIError{StatusCode: resp.StatusCode, Message: message}
}
