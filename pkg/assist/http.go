package assist

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

// APIError represents a non-2xx upstream response.
type APIError struct {
	StatusCode int
	Body       string // first 512 bytes
	retryAfter string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

// HTTPProvider posts {prompt, system} to an endpoint that answers with a
// data stream.
type HTTPProvider struct {
	endpoint   string
	token      string
	httpClient *http.Client
	maxRetries int
	backoff    func(attempt int, lastErr *APIError) time.Duration
}

// HTTPOption configures an HTTPProvider.
type HTTPOption func(*HTTPProvider)

// WithToken sends a Bearer token.
func WithToken(token string) HTTPOption {
	return func(p *HTTPProvider) { p.token = token }
}

// WithHTTPClient replaces the default client.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(p *HTTPProvider) { p.httpClient = c }
}

// NewHTTPProvider creates a provider for endpoint. The client has no overall
// timeout because the body is streamed; use the request context instead.
func NewHTTPProvider(endpoint string, opts ...HTTPOption) *HTTPProvider {
	p := &HTTPProvider{
		endpoint:   endpoint,
		httpClient: &http.Client{},
		maxRetries: 3,
		backoff:    backoffDelay,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *HTTPProvider) Name() string { return "http" }

// Stream retries on 429 (honouring Retry-After) and 5xx until the response
// headers arrive. Once streaming has started nothing is retried.
func (p *HTTPProvider) Stream(ctx context.Context, r Request) (io.ReadCloser, error) {
	payload, err := json.Marshal(r)
	if err != nil {
		return nil, err
	}

	var lastErr *APIError
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		if attempt > 0 {
			t := time.NewTimer(p.backoff(attempt, lastErr))
			select {
			case <-ctx.Done():
				t.Stop()
				return nil, ctx.Err()
			case <-t.C:
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		if p.token != "" {
			req.Header.Set("Authorization", "Bearer "+p.token)
		}

		resp, err := p.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("assist upstream: %w", err)
		}
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return resp.Body, nil
		}

		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(body)}

		if resp.StatusCode == http.StatusTooManyRequests {
			apiErr.retryAfter = resp.Header.Get("Retry-After")
			lastErr = apiErr
			continue
		}
		if resp.StatusCode >= 500 {
			lastErr = apiErr
			continue
		}
		return nil, apiErr
	}
	return nil, lastErr
}

// backoffDelay returns the wait before a retry: Retry-After for 429s,
// otherwise 1s, 2s, 4s.
func backoffDelay(attempt int, lastErr *APIError) time.Duration {
	if lastErr != nil && lastErr.StatusCode == http.StatusTooManyRequests && lastErr.retryAfter != "" {
		if secs, err := strconv.Atoi(lastErr.retryAfter); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return time.Duration(1<<(attempt-1)) * time.Second
}
