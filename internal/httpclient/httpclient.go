// Package httpclient posts JSON to the remote services amber talks to: the
// text-embeddings-inference server and transcript webhooks.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"
)

const (
	defaultRetries = 3
	maxErrorBody   = 512
)

// Client sends JSON requests to one base URL with optional Bearer auth.
// Rate-limited and 5xx responses are retried with exponential backoff.
type Client struct {
	baseURL string
	token   string
	header  http.Header
	hc      *http.Client
	retries int
	backoff time.Duration
	logger  *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout bounds each attempt, not the whole retry sequence.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.hc.Timeout = d }
}

// WithBackoff sets the delay before the first retry; later retries double it.
func WithBackoff(d time.Duration) Option {
	return func(c *Client) { c.backoff = d }
}

// WithRetries sets how many times a retryable failure is retried.
func WithRetries(n int) Option {
	return func(c *Client) { c.retries = max(n, 0) }
}

// WithHeaders adds headers sent with every request.
func WithHeaders(h map[string]string) Option {
	return func(c *Client) {
		for k, v := range h {
			c.header.Set(k, v)
		}
	}
}

// WithLogger sets the logger used to report retries.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a Client for baseURL. An empty token sends no Authorization
// header.
func New(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		token:   token,
		header:  make(http.Header),
		hc:      &http.Client{Timeout: 30 * time.Second},
		retries: defaultRetries,
		backoff: time.Second,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// APIError is a non-2xx response.
type APIError struct {
	StatusCode int
	Body       string // truncated to 512 bytes
	RetryAfter time.Duration
}

func (e *APIError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

// Temporary reports whether the request may succeed if repeated.
func (e *APIError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// PostJSON marshals body, posts it to baseURL+path and decodes the response
// into dest. A nil dest discards the response. Transport errors are returned
// immediately; temporary API errors are retried.
func (c *Client) PostJSON(ctx context.Context, path string, body, dest any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("httpclient: marshal: %w", err)
	}
	url := c.baseURL + path

	for attempt := 0; ; attempt++ {
		respBody, err := c.send(ctx, url, payload)
		if err == nil {
			if dest == nil || len(respBody) == 0 {
				return nil
			}
			if err := json.Unmarshal(respBody, dest); err != nil {
				return fmt.Errorf("httpclient: decode: %w", err)
			}
			return nil
		}

		var apiErr *APIError
		if !errors.As(err, &apiErr) || !apiErr.Temporary() || attempt == c.retries {
			return err
		}
		delay := c.delay(attempt, apiErr)
		c.logger.Debug("retrying request", "url", url, "status", apiErr.StatusCode, "attempt", attempt+1, "delay", delay)
		if err := sleep(ctx, delay); err != nil {
			return err
		}
	}
}

// send performs one attempt and returns the body of a 2xx response.
func (c *Client) send(ctx context.Context, url string, payload []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	for k, v := range c.header {
		req.Header[k] = v
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return body, nil
	}

	apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(body[:min(len(body), maxErrorBody)])}
	if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && secs > 0 {
		apiErr.RetryAfter = time.Duration(secs) * time.Second
	}
	return nil, apiErr
}

// delay is the wait before retry attempt+1: the server's Retry-After when
// given, otherwise backoff doubled per attempt.
func (c *Client) delay(attempt int, last *APIError) time.Duration {
	if last.StatusCode == http.StatusTooManyRequests && last.RetryAfter > 0 {
		return last.RetryAfter
	}
	return c.backoff << attempt
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
