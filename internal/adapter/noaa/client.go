// Package noaa fetches the latest MRMS product from the NOAA feed.
package noaa

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"
)

// Client downloads the configured MRMS product URL. Transient failures are
// retried with exponential backoff; sustained failures trip a circuit
// breaker so a dead feed is not hammered every interval.
type Client struct {
	url        string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	maxRetries int
	logger     *slog.Logger
}

// NewClient creates a fetcher for url. failures consecutive errors open the
// breaker for openFor; maxRetries bounds the per-fetch retry attempts.
func NewClient(url string, timeout time.Duration, maxRetries, failures int, openFor time.Duration, logger *slog.Logger) *Client {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "mrms-feed",
		Timeout: openFor,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= uint32(failures)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("feed breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
	return &Client{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
		breaker:    cb,
		maxRetries: maxRetries,
		logger:     logger,
	}
}

// Fetch returns the latest compressed product bytes.
func (c *Client) Fetch(ctx context.Context) ([]byte, error) {
	body, err := c.breaker.Execute(func() (any, error) {
		return c.fetchWithRetry(ctx)
	})
	if err != nil {
		return nil, err
	}
	return body.([]byte), nil
}

// fetchWithRetry downloads the product, retrying transient failures with
// exponential backoff.
func (c *Client) fetchWithRetry(ctx context.Context) ([]byte, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond
	bo.MaxElapsedTime = 0 // bounded by retry count and the request timeout

	var body []byte
	err := backoff.Retry(func() error {
		var err error
		body, err = c.fetchOnce(ctx)
		if err != nil {
			c.logger.Debug("fetch attempt failed", "url", c.url, "error", err)
		}
		return err
	}, backoff.WithContext(backoff.WithMaxRetries(bo, uint64(c.maxRetries)), ctx))
	if err != nil {
		return nil, err
	}
	return body, nil
}

func (c *Client) fetchOnce(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch product: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body) //nolint:errcheck // drain for connection reuse
		return nil, fmt.Errorf("feed returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read product body: %w", err)
	}
	return body, nil
}
