package valorant

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

const (
	// DefaultBaseURL is the public Henrik Valorant API endpoint
	DefaultBaseURL = "https://api.henrikdev.xyz"
)

// Client is a Henrik Valorant API client with client-side rate limiting
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client

	// Unauthenticated calls are limited to 30 requests/minute, so pace
	// outgoing requests at one per two seconds regardless of credentials.
	limiter *rate.Limiter
}

// NewClient creates a new Valorant API client. The API key is optional;
// without one the documented unauthenticated rate limit applies.
func NewClient(apiKey string) *Client {
	return &Client{
		baseURL: DefaultBaseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		limiter: rate.NewLimiter(rate.Every(2*time.Second), 1),
	}
}

// APIError is a non-2xx response from the match API
type APIError struct {
	StatusCode int
	RetryAfter time.Duration
}

func (e *APIError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("API error: status %d (retry after %s)", e.StatusCode, e.RetryAfter)
	}
	return fmt.Sprintf("API error: status %d", e.StatusCode)
}

// get performs a rate-limited GET request and decodes the JSON response
func (c *Client) get(ctx context.Context, path string, result interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return &APIError{
			StatusCode: resp.StatusCode,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

// parseRetryAfter reads a Retry-After header value in seconds
func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
