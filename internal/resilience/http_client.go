package resilience

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"time"
)

// HTTPClient wraps a shared http.Client with circuit breaker protection
// for one external API.
type HTTPClient struct {
	client  *http.Client
	breaker *CircuitBreaker
}

// NewHTTPClient builds a guarded HTTP client. The transport reuses
// connections across requests; timeout bounds each individual call.
func NewHTTPClient(timeout time.Duration, breaker *CircuitBreaker) *HTTPClient {
	transport := &http.Transport{
		MaxIdleConns:          10,
		MaxConnsPerHost:       20,
		MaxIdleConnsPerHost:   5,
		IdleConnTimeout:       30 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: timeout,
	}

	return &HTTPClient{
		client: &http.Client{
			Transport: transport,
			Timeout:   timeout,
		},
		breaker: breaker,
	}
}

// Do executes one request under the breaker. A non-2xx status is not a
// breaker failure; only transport-level errors trip it. body may be nil.
func (h *HTTPClient) Do(ctx context.Context, method, url string, headers map[string]string, body []byte) (*http.Response, error) {
	var resp *http.Response

	err := h.breaker.Call(func() error {
		var reader *bytes.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		} else {
			reader = bytes.NewReader(nil)
		}

		req, err := http.NewRequestWithContext(ctx, method, url, reader)
		if err != nil {
			return err
		}
		for key, value := range headers {
			req.Header.Set(key, value)
		}

		start := time.Now()
		resp, err = h.client.Do(req)
		if err != nil {
			slog.Warn("Request failed", "url", url, "error", err, "duration_ms", time.Since(start).Milliseconds())
			return err
		}

		slog.Debug("Request completed", "url", url, "status", resp.StatusCode, "duration_ms", time.Since(start).Milliseconds())
		return nil
	})
	if err != nil {
		return nil, err
	}

	return resp, nil
}

// BreakerState exposes the breaker state for health reporting.
func (h *HTTPClient) BreakerState() BreakerState {
	return h.breaker.State()
}

// Close releases idle connections.
func (h *HTTPClient) Close() error {
	if transport, ok := h.client.Transport.(*http.Transport); ok {
		transport.CloseIdleConnections()
	}
	return nil
}
