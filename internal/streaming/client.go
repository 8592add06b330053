package streaming

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// defaultRequestsPerSecond bounds outbound API calls; the provider throttles
// aggressively above ~10 rps per client.
const defaultRequestsPerSecond = 10

// TokenProvider supplies a valid bearer token for upstream API calls.
type TokenProvider interface {
	GetValidAccessToken(ctx context.Context) (string, error)
}

// APIError is a non-2xx response from the upstream API.
type APIError struct {
	StatusCode int
}

func (e *APIError) Error() string {
	return fmt.Sprintf("upstream API error: status %d", e.StatusCode)
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client for API requests.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithRateLimit overrides the default outbound requests-per-second limit.
func WithRateLimit(rps float64) ClientOption {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

// Client performs authenticated read-only requests against the provider API.
type Client struct {
	baseURL    string
	tokens     TokenProvider
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewClient creates a Client for the given API base URL.
func NewClient(baseURL string, tokens TokenProvider, opts ...ClientOption) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("missing API base URL")
	}
	if tokens == nil {
		return nil, fmt.Errorf("missing token provider")
	}

	c := &Client{
		baseURL:    baseURL,
		tokens:     tokens,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(defaultRequestsPerSecond), 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// get performs an authenticated GET request and decodes the JSON response.
func (c *Client) get(ctx context.Context, endpoint string, result any) error {
	token, err := c.tokens.GetValidAccessToken(ctx)
	if err != nil {
		return err
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode}
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}

// Profile retrieves the authenticated user's profile.
func (c *Client) Profile(ctx context.Context) (*Profile, error) {
	var profile Profile
	if err := c.get(ctx, "/me", &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// Playlists retrieves the authenticated user's playlists with pagination.
func (c *Client) Playlists(ctx context.Context, limit, offset int) (*PaginatedPlaylists, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 50 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	endpoint := fmt.Sprintf("/me/playlists?limit=%d&offset=%d", limit, offset)

	var playlists PaginatedPlaylists
	if err := c.get(ctx, endpoint, &playlists); err != nil {
		return nil, err
	}
	return &playlists, nil
}
