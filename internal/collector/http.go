package collector

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// HTTPOptions configures the shared HTTP client used by remote sources.
type HTTPOptions struct {
	Timeout        time.Duration
	MaxRetries     int
	RetryDelayBase time.Duration
	UserAgent      string
}

type httpClient struct {
	client         *http.Client
	maxRetries     int
	retryDelayBase time.Duration
	userAgent      string
}

func newHTTPClient(opts HTTPOptions) *httpClient {
	if opts.MaxRetries < 1 {
		opts.MaxRetries = 1
	}
	return &httpClient{
		client:         &http.Client{Timeout: opts.Timeout},
		maxRetries:     opts.MaxRetries,
		retryDelayBase: opts.RetryDelayBase,
		userAgent:      opts.UserAgent,
	}
}

// doRequest performs a GET with linear backoff on transport errors and 5xx.
// Other non-2xx statuses fail immediately.
func (c *httpClient) doRequest(ctx context.Context, urlStr, accept string) (*http.Response, error) {
	var lastErr error

	for i := 0; i < c.maxRetries; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(i) * c.retryDelayBase):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", accept)
		if c.userAgent != "" {
			req.Header.Set("User-Agent", c.userAgent)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		if resp.StatusCode >= 500 {
			resp.Body.Close()
			lastErr = fmt.Errorf("server error: %d", resp.StatusCode)
			continue
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			resp.Body.Close()
			return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
		}

		return resp, nil
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}
