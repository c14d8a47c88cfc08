package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// StatusError is returned for a non-2xx response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.Code, e.Body)
}

// Retryable reports whether the request may succeed on a later attempt.
func (e *StatusError) Retryable() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}

type ClientOption func(*JSONClient)

// JSONClient talks JSON to a single base URL. Transport failures and
// retryable statuses are retried with a linear backoff.
type JSONClient struct {
	baseURL string
	retries int
	backoff time.Duration
	headers map[string]string
	http    *http.Client
}

func NewJSONClient(baseURL string, opts ...ClientOption) *JSONClient {
	c := &JSONClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		backoff: 100 * time.Millisecond,
		headers: map[string]string{},
		http:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *JSONClient) {
		c.http.Timeout = timeout
	}
}

// WithRetries sets how many extra attempts follow the first one.
func WithRetries(n int, backoff time.Duration) ClientOption {
	return func(c *JSONClient) {
		if n >= 0 {
			c.retries = n
		}
		if backoff > 0 {
			c.backoff = backoff
		}
	}
}

func WithHeader(key, value string) ClientOption {
	return func(c *JSONClient) {
		c.headers[key] = value
	}
}

// PostJSON sends in as the body and decodes the response into out. out may
// be nil.
func (c *JSONClient) PostJSON(ctx context.Context, path string, in, out interface{}) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	return c.do(ctx, http.MethodPost, path, body, out)
}

func (c *JSONClient) GetJSON(ctx context.Context, path string, out interface{}) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

func (c *JSONClient) do(ctx context.Context, method, path string, body []byte, out interface{}) error {
	var err error
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(time.Duration(attempt) * c.backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		err = c.once(ctx, method, path, body, out)
		if err == nil {
			return nil
		}
		var se *StatusError
		if errors.As(err, &se) && !se.Retryable() {
			return err
		}
		if ctx.Err() != nil {
			return err
		}
	}
	return err
}

func (c *JSONClient) once(ctx context.Context, method, path string, body []byte, out interface{}) error {
	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, r)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode json: %w", err)
	}
	return nil
}
