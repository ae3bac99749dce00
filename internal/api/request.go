package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"net/url"
	"time"
)

// Error represents an error response from the backend API.
type Error struct {
	StatusCode int
	Message    string
	Body       []byte
}

func (e *Error) Error() string {
	return fmt.Sprintf("backend api error %d: %s", e.StatusCode, e.Message)
}

// IsRetryable returns true if the error should trigger a retry.
func (e *Error) IsRetryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == 429
}

// doRequest performs a single HTTP request. payload, when non-nil, is
// JSON-encoded as the request body.
func (c *Client) doRequest(ctx context.Context, method, path string, query url.Values, payload any) ([]byte, error) {
	fullURL := c.baseURL + path
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}

	var body io.Reader
	if payload != nil {
		buf, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, &Error{
			StatusCode: resp.StatusCode,
			Message:    http.StatusText(resp.StatusCode),
			Body:       respBody,
		}
	}

	return respBody, nil
}

// doWithRetry performs a request with exponential backoff retry. op is
// the telemetry key for this call.
func (c *Client) doWithRetry(ctx context.Context, op, method, path string, query url.Values, payload any) ([]byte, error) {
	var lastErr error
	backoff := c.retryBackoff

	start := time.Now()
	defer func() {
		if c.recorder != nil {
			c.recorder.RecordDuration("api."+op, time.Since(start))
			if lastErr != nil {
				c.recorder.RecordError("api." + op)
			}
		}
	}()

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			// Add jitter: backoff * (0.5 to 1.5)
			jitter := backoff/2 + time.Duration(rand.Int64N(int64(backoff)))
			c.logger.Debug("retrying request",
				"attempt", attempt,
				"backoff", jitter,
				"op", op,
			)

			select {
			case <-ctx.Done():
				lastErr = ctx.Err()
				return nil, lastErr
			case <-time.After(jitter):
			}

			backoff *= 2
		}

		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				lastErr = err
				return nil, lastErr
			}
		}

		body, err := c.doRequest(ctx, method, path, query, payload)
		if err == nil {
			lastErr = nil
			return body, nil
		}

		lastErr = err

		apiErr, ok := err.(*Error)
		if !ok || !apiErr.IsRetryable() {
			return nil, err
		}
	}

	lastErr = fmt.Errorf("max retries exceeded: %w", lastErr)
	return nil, lastErr
}

// get performs a GET request with retries and decodes into result.
func (c *Client) get(ctx context.Context, op, path string, query url.Values, result any) error {
	return c.call(ctx, op, http.MethodGet, path, query, nil, result)
}

// post performs a POST request with retries and decodes into result.
func (c *Client) post(ctx context.Context, op, path string, payload, result any) error {
	return c.call(ctx, op, http.MethodPost, path, nil, payload, result)
}

// put performs a PUT request with retries and decodes into result.
func (c *Client) put(ctx context.Context, op, path string, payload, result any) error {
	return c.call(ctx, op, http.MethodPut, path, nil, payload, result)
}

// del performs a DELETE request with retries. result may be nil.
func (c *Client) del(ctx context.Context, op, path string, result any) error {
	return c.call(ctx, op, http.MethodDelete, path, nil, nil, result)
}

func (c *Client) call(ctx context.Context, op, method, path string, query url.Values, payload, result any) error {
	body, err := c.doWithRetry(ctx, op, method, path, query, payload)
	if err != nil {
		return err
	}
	if result == nil {
		return nil
	}
	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}
