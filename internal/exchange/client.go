// Package exchange fetches historical USD exchange rates from an
// exchangerate.host compatible timeframe endpoint.
package exchange

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"net/url"
	"time"

	"github.com/revmon-dev/revmon/internal/model"
)

// Client provides access to the exchange-rate timeframe API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger

	maxRetries   int
	retryBackoff time.Duration
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// NewClient creates a new exchange-rate client.
func NewClient(baseURL, apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger:       slog.Default(),
		maxRetries:   3,
		retryBackoff: time.Second,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithRetries sets the retry configuration.
func WithRetries(max int, backoff time.Duration) ClientOption {
	return func(c *Client) {
		c.maxRetries = max
		c.retryBackoff = backoff
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// APIError represents an HTTP error from the exchange-rate API.
type APIError struct {
	StatusCode int
	Message    string
	Body       []byte
}

func (e *APIError) Error() string {
	return fmt.Sprintf("exchange rate api error %d: %s", e.StatusCode, e.Message)
}

// IsRetryable returns true if the error should trigger a retry.
func (e *APIError) IsRetryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == 429
}

// timeframeResponse is the JSON body of a timeframe request.
type timeframeResponse struct {
	Success *bool           `json:"success"`
	Source  string          `json:"source"`
	Quotes  json.RawMessage `json:"quotes"`
}

// FetchTimeframe returns the daily quotes between start and end inclusive.
func (c *Client) FetchTimeframe(ctx context.Context, start, end time.Time) (*Quotes, error) {
	query := url.Values{}
	query.Set("start_date", start.Format(model.DateFormat))
	query.Set("end_date", end.Format(model.DateFormat))
	query.Set("access_key", c.apiKey)

	body, err := c.doWithRetry(ctx, query)
	if err != nil {
		return nil, err
	}

	var resp timeframeResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	if resp.Success != nil && !*resp.Success {
		return nil, fmt.Errorf("exchange rate api error: %s", body)
	}

	var byDate map[string]map[string]json.Number
	if len(resp.Quotes) == 0 || resp.Quotes[0] != '{' {
		return nil, fmt.Errorf("unexpected api response: %s", body)
	}
	if err := json.Unmarshal(resp.Quotes, &byDate); err != nil {
		return nil, fmt.Errorf("unexpected api response: %w", err)
	}

	source := resp.Source
	if source == "" {
		source = model.USD
	}

	q := &Quotes{Source: source, ByDate: make(map[string]map[string]Rate, len(byDate))}
	for date, daily := range byDate {
		rates := make(map[string]Rate, len(daily))
		for pair, n := range daily {
			r, err := parseRate(n)
			if err != nil {
				return nil, fmt.Errorf("quote %s %s: %w", date, pair, err)
			}
			rates[pair] = r
		}
		q.ByDate[date] = rates
	}

	c.logger.Debug("fetched exchange rates",
		"start", start.Format(model.DateFormat),
		"end", end.Format(model.DateFormat),
		"days", len(q.ByDate),
	)
	return q, nil
}

// doRequest performs a single GET against the timeframe endpoint.
func (c *Client) doRequest(ctx context.Context, query url.Values) ([]byte, error) {
	fullURL := c.baseURL
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Message:    http.StatusText(resp.StatusCode),
			Body:       body,
		}
	}

	return body, nil
}

// doWithRetry performs the request with exponential backoff retry.
func (c *Client) doWithRetry(ctx context.Context, query url.Values) ([]byte, error) {
	var lastErr error
	backoff := c.retryBackoff

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			// Add jitter: backoff * (0.5 to 1.5)
			jitter := backoff/2 + time.Duration(rand.Int64N(int64(backoff)+1))
			c.logger.Debug("retrying exchange rate request",
				"attempt", attempt,
				"backoff", jitter,
			)

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(jitter):
			}

			backoff *= 2
		}

		body, err := c.doRequest(ctx, query)
		if err == nil {
			return body, nil
		}

		lastErr = err

		var apiErr *APIError
		if !errors.As(err, &apiErr) || !apiErr.IsRetryable() {
			return nil, err
		}
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}
