package indexer

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"indexer/pkg/circuitbreaker"
	"indexer/pkg/tracing"
)

type httpCaller struct {
	client  *http.Client
	breaker *circuitbreaker.Breaker
}

type HTTPOption func(*httpCaller)

// WithHTTPClient replaces the default client, including its timeout.
func WithHTTPClient(client *http.Client) HTTPOption {
	return func(h *httpCaller) {
		h.client = client
	}
}

func WithCircuitBreaker(b *circuitbreaker.Breaker) HTTPOption {
	return func(h *httpCaller) {
		h.breaker = b
	}
}

func newHTTPCaller(timeout time.Duration, opts []HTTPOption) httpCaller {
	h := httpCaller{client: &http.Client{Timeout: timeout}}
	for _, opt := range opts {
		opt(&h)
	}
	return h
}

// do returns the body of a 2xx response. Any other status is an error so
// that it counts against the breaker.
func (h httpCaller) do(req *http.Request) (string, error) {
	return circuitbreaker.Execute(req.Context(), h.breaker, func() (string, error) {
		tracing.InjectHTTPHeaders(req)

		resp, err := h.client.Do(req)
		if err != nil {
			return "", fmt.Errorf("%s %s: %w", req.Method, req.URL.Redacted(), err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return "", fmt.Errorf("read response body: %w", err)
		}
		if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
			return "", fmt.Errorf("%s %s returned status %d", req.Method, req.URL.Redacted(), resp.StatusCode)
		}
		return string(body), nil
	})
}
