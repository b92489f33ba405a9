// Package analytics is a client for the vendor analytics API that reports
// per-user credit usage.
package analytics

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/j-veylop/team-flex-credits/internal/logger"
)

const (
	usagePath     = "/api/v1/Analytics"
	userTablePath = "/api/v1/UserPageAnalytics"

	defaultTimeout = 10 * time.Second
	defaultBackoff = 500 * time.Millisecond

	// maxErrorBody bounds how much of a failed response is kept in errors.
	maxErrorBody = 512
)

var (
	// ErrRateLimited matches errors caused by HTTP 429 responses.
	ErrRateLimited = errors.New("rate limited by analytics API")
	// ErrMalformedResponse is returned when a response body is not valid JSON.
	ErrMalformedResponse = errors.New("malformed analytics response")
)

// StatusError is returned for non-200 responses.
type StatusError struct {
	Body string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("analytics request failed (status %d): %s", e.Code, e.Body)
}

// Is lets errors.Is(err, ErrRateLimited) match 429 responses.
func (e *StatusError) Is(target error) bool {
	return target == ErrRateLimited && e.Code == http.StatusTooManyRequests
}

func (e *StatusError) retryable() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= http.StatusInternalServerError
}

// Config holds configuration for the client.
type Config struct {
	HTTPClient   *http.Client
	BaseURL      string
	ServiceKey   string
	Timeout      time.Duration
	RetryBackoff time.Duration
	MaxRetries   int
}

// Client talks to the analytics API. It is safe for concurrent use.
type Client struct {
	httpClient *http.Client
	baseURL    string
	serviceKey string
	backoff    time.Duration
	maxRetries int
}

// New creates a new analytics client.
func New(cfg Config) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	backoff := cfg.RetryBackoff
	if backoff <= 0 {
		backoff = defaultBackoff
	}
	maxRetries := cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}

	return &Client{
		httpClient: httpClient,
		baseURL:    cfg.BaseURL,
		serviceKey: cfg.ServiceKey,
		backoff:    backoff,
		maxRetries: maxRetries,
	}
}

// post sends a JSON body and returns the response body of a 200 response,
// retrying rate-limit, server and transport errors up to maxRetries times.
func (c *Client) post(ctx context.Context, path string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	backoff := c.backoff
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			logger.Debug("retrying analytics request", "path", path, "attempt", attempt, "error", lastErr)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		respBody, err := c.do(ctx, path, body)
		if err == nil {
			return respBody, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, err
		}
		var statusErr *StatusError
		if errors.As(err, &statusErr) && !statusErr.retryable() {
			return nil, err
		}
	}
	return nil, lastErr
}

func (c *Client) do(ctx context.Context, path string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create analytics request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("analytics request failed: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logger.Error("failed to close response body", "error", err)
		}
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read analytics response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		if len(respBody) > maxErrorBody {
			respBody = respBody[:maxErrorBody]
		}
		return nil, &StatusError{Code: resp.StatusCode, Body: string(respBody)}
	}

	return respBody, nil
}
